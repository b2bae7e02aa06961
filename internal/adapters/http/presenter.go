package httpapi

import (
	"time"

	"github.com/ogurasousui/gallon-quota/internal/core/employee"
	"github.com/ogurasousui/gallon-quota/internal/core/ledger"
)

const (
	resetLabelLayout = "January 2006"
	dateLayout       = "2006-01-02"
	createdAtLayout  = "2006-01-02 15:04"
)

// employeeSnapshot は配布画面と端末 API で共有する社員の表示形式です。
type employeeSnapshot struct {
	ID             string  `json:"id"`
	EmployeeID     string  `json:"employee_id"`
	Name           string  `json:"name"`
	Department     *string `json:"department"`
	Position       *string `json:"position"`
	MonthlyQuota   int     `json:"monthly_quota"`
	CurrentQuota   int     `json:"current_quota"`
	QuotaResetDate string  `json:"quota_reset_date"`
}

func newEmployeeSnapshot(e *employee.Employee) *employeeSnapshot {
	if e == nil {
		return nil
	}
	return &employeeSnapshot{
		ID:             e.ID,
		EmployeeID:     e.ExternalID,
		Name:           e.Name,
		Department:     e.Department,
		Position:       e.Position,
		MonthlyQuota:   e.MonthlyQuota,
		CurrentQuota:   e.CurrentQuota,
		QuotaResetDate: e.QuotaResetDate.Format(resetLabelLayout),
	}
}

// pageProps は配布画面に渡す状態です。
type pageProps struct {
	Employee *employeeSnapshot `json:"employee"`
	Success  *string           `json:"success"`
	Error    *string           `json:"error"`
}

func textPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type adminEmployee struct {
	ID             string  `json:"id"`
	EmployeeID     string  `json:"employee_id"`
	Name           string  `json:"name"`
	Department     *string `json:"department"`
	Position       *string `json:"position"`
	MonthlyQuota   int     `json:"monthly_quota"`
	CurrentQuota   int     `json:"current_quota"`
	QuotaResetDate string  `json:"quota_reset_date"`
	QuotaPeriod    string  `json:"quota_period"`
	IsActive       bool    `json:"is_active"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

func newAdminEmployee(e *employee.Employee, loc *time.Location) adminEmployee {
	return adminEmployee{
		ID:             e.ID,
		EmployeeID:     e.ExternalID,
		Name:           e.Name,
		Department:     e.Department,
		Position:       e.Position,
		MonthlyQuota:   e.MonthlyQuota,
		CurrentQuota:   e.CurrentQuota,
		QuotaResetDate: e.QuotaResetDate.Format(dateLayout),
		QuotaPeriod:    e.QuotaResetDate.Format(resetLabelLayout),
		IsActive:       e.IsActive,
		CreatedAt:      e.CreatedAt.In(loc).Format(createdAtLayout),
		UpdatedAt:      e.UpdatedAt.In(loc).Format(createdAtLayout),
	}
}

type adminTransaction struct {
	ID              string `json:"id"`
	GallonsTaken    int    `json:"gallons_taken"`
	RemainingQuota  int    `json:"remaining_quota"`
	TransactionDate string `json:"transaction_date"`
	CreatedAt       string `json:"created_at"`
}

func newAdminTransactions(items []*ledger.Transaction, loc *time.Location) []adminTransaction {
	out := make([]adminTransaction, 0, len(items))
	for _, item := range items {
		out = append(out, adminTransaction{
			ID:              item.ID,
			GallonsTaken:    item.GallonsTaken,
			RemainingQuota:  item.RemainingQuota,
			TransactionDate: item.TransactionDate.Format(dateLayout),
			CreatedAt:       item.CreatedAt.In(loc).Format(createdAtLayout),
		})
	}
	return out
}
