package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ogurasousui/gallon-quota/internal/core/employee"
)

// Recorder は確定済みの差し引きを履歴として追記します。
type Recorder struct {
	repo  Repository
	clock employee.Clock
	newID func() string
}

// NewRecorder は Recorder を生成します。
func NewRecorder(repo Repository, clock employee.Clock) *Recorder {
	if clock == nil {
		clock = employee.SystemClock{}
	}
	return &Recorder{repo: repo, clock: clock, newID: uuid.NewString}
}

// Record は差し引き後の社員状態から履歴を 1 件作成します。
// e.CurrentQuota は差し引き後の残量でなければなりません。
func (r *Recorder) Record(ctx context.Context, e *employee.Employee, gallonsTaken int) (*Transaction, error) {
	if e == nil || strings.TrimSpace(e.ID) == "" {
		return nil, ErrInvalidEmployeeID
	}
	if gallonsTaken < 1 {
		return nil, ErrInvalidGallons
	}
	if e.CurrentQuota < 0 {
		return nil, ErrInvalidRemaining
	}

	now := r.clock.Now()
	created, err := r.repo.Create(ctx, &Transaction{
		ID:              r.newID(),
		EmployeeID:      e.ID,
		GallonsTaken:    gallonsTaken,
		RemainingQuota:  e.CurrentQuota,
		TransactionDate: employee.DateOf(now),
		CreatedAt:       now,
	})
	if err != nil {
		return nil, fmt.Errorf("record transaction for %s: %w", e.ExternalID, err)
	}
	return created, nil
}

// History は社員の配布履歴を新しい順に返します。limit が 0 以下なら全件です。
func (r *Recorder) History(ctx context.Context, employeeID string, limit int) ([]*Transaction, error) {
	if strings.TrimSpace(employeeID) == "" {
		return nil, ErrInvalidEmployeeID
	}
	return r.repo.ListByEmployee(ctx, employeeID, limit)
}
