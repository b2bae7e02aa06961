package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ogurasousui/gallon-quota/internal/adapters/repository/postgres"
	"github.com/ogurasousui/gallon-quota/internal/core/employee"
	pg "github.com/ogurasousui/gallon-quota/internal/platform/db/postgres"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the sample employees",
	Args:  cobra.NoArgs,
	RunE:  runSeed,
}

type seedEmployee struct {
	externalID   string
	name         string
	department   string
	position     string
	monthlyQuota int
	currentQuota int
}

var sampleEmployees = []seedEmployee{
	{externalID: "EMP001", name: "John Doe", department: "IT", position: "Software Engineer", monthlyQuota: 10, currentQuota: 8},
	{externalID: "EMP002", name: "Jane Smith", department: "HR", position: "HR Manager", monthlyQuota: 10, currentQuota: 5},
	{externalID: "EMP003", name: "Bob Johnson", department: "Finance", position: "Accountant", monthlyQuota: 10, currentQuota: 10},
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	pool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	txOpts, err := pg.TransactionOptions(cfg.Database)
	if err != nil {
		return err
	}

	svc := employee.NewService(
		postgres.NewEmployeeRepository(pool),
		employee.SystemClock{Location: cfg.Quota.Location},
		pg.NewTransactionManager(pool, txOpts...),
		employee.WithMaxMonthlyQuota(cfg.Quota.MaxMonthlyQuota),
	)

	created, err := seedEmployees(ctx, svc, sampleEmployees)
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Int("created", created).Msg("seed completed")
	return nil
}

// seedEmployees は未登録の社員だけを作成し、作成した件数を返します。
func seedEmployees(ctx context.Context, svc employee.UseCase, items []seedEmployee) (int, error) {
	created := 0
	for _, item := range items {
		active := true
		dept, pos := item.department, item.position
		e, err := svc.CreateEmployee(ctx, employee.CreateEmployeeInput{
			ExternalID:   item.externalID,
			Name:         item.name,
			Department:   &dept,
			Position:     &pos,
			MonthlyQuota: item.monthlyQuota,
			IsActive:     &active,
		})
		if errors.Is(err, employee.ErrExternalIDAlreadyExists) {
			zerolog.Ctx(ctx).Info().Str("employee_id", item.externalID).Msg("employee already exists, skipped")
			continue
		}
		if err != nil {
			return created, fmt.Errorf("seed %s: %w", item.externalID, err)
		}

		if item.currentQuota != e.CurrentQuota {
			current := item.currentQuota
			if _, err := svc.UpdateEmployee(ctx, employee.UpdateEmployeeInput{ID: e.ID, CurrentQuota: &current}); err != nil {
				return created, fmt.Errorf("seed %s: %w", item.externalID, err)
			}
		}
		created++
	}
	return created, nil
}
