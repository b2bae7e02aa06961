// Package distribution は社員照会とガロン配布のユースケースを提供します。
package distribution

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ogurasousui/gallon-quota/internal/core/employee"
	"github.com/ogurasousui/gallon-quota/internal/core/ledger"
	"github.com/ogurasousui/gallon-quota/internal/core/quota"
	"github.com/ogurasousui/gallon-quota/internal/core/validation"
	"github.com/rs/zerolog"
)

const defaultMaxGallonsPerTransaction = 10

// EmployeeFinder は有効な社員を社員 ID で検索します。
type EmployeeFinder interface {
	FindActiveByExternalID(ctx context.Context, externalID string) (*employee.Employee, error)
}

// QuotaEngine はクォータ期間の確定と差し引きを行います。
type QuotaEngine interface {
	EnsureCurrentWindow(ctx context.Context, e *employee.Employee) (*employee.Employee, error)
	Deduct(ctx context.Context, e *employee.Employee, amount int) (*quota.DeductResult, error)
}

// TransactionRecorder は確定済みの配布を履歴に残します。
type TransactionRecorder interface {
	Record(ctx context.Context, e *employee.Employee, gallonsTaken int) (*ledger.Transaction, error)
}

// Observer は照会と配布の結果を受け取ります。
type Observer interface {
	LookupCompleted(outcome string)
	DistributionCompleted(outcome string, gallons int)
	LedgerWriteFailed()
}

type noopObserver struct{}

func (noopObserver) LookupCompleted(string)            {}
func (noopObserver) DistributionCompleted(string, int) {}
func (noopObserver) LedgerWriteFailed()                {}

// UseCase は配布ユースケースの公開インターフェースです。
type UseCase interface {
	Lookup(ctx context.Context, in LookupInput) (*LookupResult, error)
	Distribute(ctx context.Context, in DistributeInput) (*DistributeResult, error)
}

// Service は照会と配布をまとめます。
type Service struct {
	employees  EmployeeFinder
	engine     QuotaEngine
	recorder   TransactionRecorder
	observer   Observer
	maxGallons int
}

// Option は Service の設定を変更します。
type Option func(*Service)

// WithObserver は結果の通知先を設定します。
func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithMaxGallons は 1 回に配布できる上限を設定します。
func WithMaxGallons(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxGallons = n
		}
	}
}

// NewService は Service を生成します。
func NewService(employees EmployeeFinder, engine QuotaEngine, recorder TransactionRecorder, opts ...Option) *Service {
	s := &Service{
		employees:  employees,
		engine:     engine,
		recorder:   recorder,
		observer:   noopObserver{},
		maxGallons: defaultMaxGallonsPerTransaction,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxGallons は 1 回に配布できる上限を返します。
func (s *Service) MaxGallons() int {
	return s.maxGallons
}

// LookupInput は社員照会の入力です。
type LookupInput struct {
	ExternalID string
}

// DistributeInput は配布の入力です。
type DistributeInput struct {
	ExternalID string
	Gallons    int
}

// Lookup は有効な社員を照会し、当月のクォータを確定させて返します。
func (s *Service) Lookup(ctx context.Context, in LookupInput) (*LookupResult, error) {
	externalID, err := normalizeExternalID(in.ExternalID)
	if err != nil {
		return nil, err
	}

	result, err := s.lookup(ctx, externalID)
	if err != nil {
		return nil, err
	}
	s.observer.LookupCompleted(result.Outcome.String())
	return result, nil
}

func (s *Service) lookup(ctx context.Context, externalID string) (*LookupResult, error) {
	found, err := s.employees.FindActiveByExternalID(ctx, externalID)
	if errors.Is(err, employee.ErrEmployeeNotFound) {
		return notFoundLookup(), nil
	}
	if err != nil {
		return nil, err
	}

	current, err := s.engine.EnsureCurrentWindow(ctx, found)
	if errors.Is(err, employee.ErrEmployeeNotFound) {
		return notFoundLookup(), nil
	}
	if err != nil {
		return nil, err
	}

	return &LookupResult{Outcome: OutcomeFound, Employee: current}, nil
}

// Distribute は gallons を差し引き、成功した場合は履歴を記録します。
// 履歴の記録に失敗しても差し引きは取り消しません。
func (s *Service) Distribute(ctx context.Context, in DistributeInput) (*DistributeResult, error) {
	var errs []error
	externalID, err := normalizeExternalID(in.ExternalID)
	if err != nil {
		errs = append(errs, err)
	}
	if err := s.validateGallons(in.Gallons); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	result, err := s.distribute(ctx, externalID, in.Gallons)
	if err != nil {
		return nil, err
	}

	gallons := 0
	if result.Outcome == OutcomeDistributed {
		gallons = in.Gallons
	}
	s.observer.DistributionCompleted(result.Outcome.String(), gallons)
	return result, nil
}

func (s *Service) distribute(ctx context.Context, externalID string, gallons int) (*DistributeResult, error) {
	found, err := s.employees.FindActiveByExternalID(ctx, externalID)
	if errors.Is(err, employee.ErrEmployeeNotFound) {
		return notFoundDistribution(gallons), nil
	}
	if err != nil {
		return nil, err
	}

	deducted, err := s.engine.Deduct(ctx, found, gallons)
	if errors.Is(err, employee.ErrEmployeeNotFound) {
		return notFoundDistribution(gallons), nil
	}
	if err != nil {
		return nil, err
	}

	if !deducted.Applied {
		return &DistributeResult{
			Outcome:  OutcomeInsufficientQuota,
			Employee: deducted.Employee,
			Gallons:  gallons,
			Message:  insufficientMessage(deducted.Employee.CurrentQuota),
		}, nil
	}

	result := &DistributeResult{
		Outcome:  OutcomeDistributed,
		Employee: deducted.Employee,
		Gallons:  gallons,
		Message:  distributedMessage(gallons, deducted.Employee.CurrentQuota),
	}

	// 差し引きは確定済みのため、呼び出し元のキャンセルに関わらず記録を試みる。
	tx, err := s.recorder.Record(context.WithoutCancel(ctx), deducted.Employee, gallons)
	if err != nil {
		s.observer.LedgerWriteFailed()
		zerolog.Ctx(ctx).Error().Err(err).
			Str("employee_id", deducted.Employee.ExternalID).
			Int("gallons", gallons).
			Int("remaining", deducted.Employee.CurrentQuota).
			Msg("failed to record gallon transaction")
		return result, nil
	}

	result.Transaction = tx
	result.LedgerRecorded = true
	return result, nil
}

func (s *Service) validateGallons(gallons int) error {
	if gallons < 1 {
		return validation.New(FieldGallons, ErrInvalidGallons, "Must take at least 1 gallon.")
	}
	if gallons > s.maxGallons {
		return validation.New(FieldGallons, ErrInvalidGallons,
			fmt.Sprintf("Cannot take more than %d gallons at once.", s.maxGallons))
	}
	return nil
}

func normalizeExternalID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", validation.New(FieldExternalID, ErrInvalidExternalID, "Employee ID is required.")
	}
	return trimmed, nil
}

func notFoundLookup() *LookupResult {
	return &LookupResult{Outcome: OutcomeNotFound, Message: MessageNotFound}
}

func notFoundDistribution(gallons int) *DistributeResult {
	return &DistributeResult{Outcome: OutcomeNotFound, Gallons: gallons, Message: MessageNotFound}
}
