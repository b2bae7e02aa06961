package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/ogurasousui/gallon-quota/internal/platform/logger"
	"github.com/spf13/cobra"
)

var migrationsDir string

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|drop|version]",
	Short:     "Apply or inspect database migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "drop", "version"},
	RunE:      runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrationsDir, "dir", "assets/migrations", "directory containing migration files")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	action := "up"
	if len(args) > 0 {
		action = args[0]
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := runMigration(action, migrationsDir, cfg.Database.DSN()); err != nil {
		return fmt.Errorf("migration %s failed: %w", action, err)
	}

	logger.Global().Info().Str("action", action).Msg("migration completed")
	return nil
}

func runMigration(action, dir, dsn string) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve path for %s: %w", dir, err)
	}
	absDir = filepath.ToSlash(absDir)

	m, err := migrate.New(fmt.Sprintf("file://%s", absDir), dsn)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	switch action {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		return nil
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		return nil
	case "drop":
		return m.Drop()
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			if errors.Is(err, migrate.ErrNilVersion) {
				logger.Global().Info().Msg("no migration applied")
				return nil
			}
			return err
		}
		logger.Global().Info().Uint("version", version).Bool("dirty", dirty).Msg("migration version")
		return nil
	default:
		return fmt.Errorf("unsupported action %q", action)
	}
}
