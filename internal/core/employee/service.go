package employee

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/ogurasousui/gallon-quota/internal/core/validation"
)

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// QuotaGate は社員のクォータ期間を当月に揃えます。
type QuotaGate interface {
	EnsureCurrentWindow(ctx context.Context, e *Employee) (*Employee, error)
}

const (
	defaultListPageSize    = 15
	maxListPageSize        = 200
	defaultMaxMonthlyQuota = 100
	maxTextLength          = 255
)

// Field names used in validation errors.
const (
	FieldExternalID   = "employee_id"
	FieldName         = "name"
	FieldDepartment   = "department"
	FieldPosition     = "position"
	FieldMonthlyQuota = "monthly_quota"
	FieldCurrentQuota = "current_quota"
)

// Service は社員管理のユースケースをまとめます。
type Service struct {
	repo            Repository
	clock           Clock
	tx              TransactionManager
	gate            QuotaGate
	newID           func() string
	maxMonthlyQuota int
	defaultPageSize int
}

// UseCase は社員管理ユースケースの公開インターフェースです。
type UseCase interface {
	CreateEmployee(ctx context.Context, in CreateEmployeeInput) (*Employee, error)
	GetEmployee(ctx context.Context, in GetEmployeeInput) (*Employee, error)
	ListEmployees(ctx context.Context, in ListEmployeesInput) (*ListEmployeesResult, error)
	UpdateEmployee(ctx context.Context, in UpdateEmployeeInput) (*Employee, error)
	DeleteEmployee(ctx context.Context, in DeleteEmployeeInput) error
}

// Option は Service の設定を変更します。
type Option func(*Service)

// WithQuotaGate は更新前にクォータ期間を揃えるゲートを設定します。
func WithQuotaGate(g QuotaGate) Option {
	return func(s *Service) { s.gate = g }
}

// WithMaxMonthlyQuota は月次クォータの上限を設定します。
func WithMaxMonthlyQuota(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxMonthlyQuota = n
		}
	}
}

// WithDefaultPageSize は一覧取得の既定ページサイズを設定します。
func WithDefaultPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 && n <= maxListPageSize {
			s.defaultPageSize = n
		}
	}
}

// WithIDGenerator は社員 ID の採番方法を差し替えます。
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewService は Service を生成します。
func NewService(repo Repository, clock Clock, tx TransactionManager, opts ...Option) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	s := &Service{
		repo:            repo,
		clock:           clock,
		tx:              tx,
		newID:           uuid.NewString,
		maxMonthlyQuota: defaultMaxMonthlyQuota,
		defaultPageSize: defaultListPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateEmployeeInput は社員作成時の入力です。
type CreateEmployeeInput struct {
	ExternalID   string
	Name         string
	Department   *string
	Position     *string
	MonthlyQuota int
	IsActive     *bool
}

// UpdateEmployeeInput は社員更新時の入力です。
type UpdateEmployeeInput struct {
	ID            string
	ExternalID    *string
	Name          *string
	Department    *string
	DepartmentSet bool
	Position      *string
	PositionSet   bool
	MonthlyQuota  *int
	CurrentQuota  *int
	IsActive      *bool
}

// DeleteEmployeeInput は社員削除時の入力です。
type DeleteEmployeeInput struct {
	ID string
}

// GetEmployeeInput は社員取得時の入力です。
type GetEmployeeInput struct {
	ID string
}

// ListEmployeesInput は一覧取得時の入力です。
type ListEmployeesInput struct {
	PageSize  int
	PageToken string
	Active    *bool
	Query     string
}

// ListEmployeesResult は一覧取得結果を表します。
type ListEmployeesResult struct {
	Employees     []*Employee
	NextPageToken string
}

// CreateEmployee は新しい社員を作成します。
// CurrentQuota と QuotaResetDate は入力に関わらず New によって決まります。
func (s *Service) CreateEmployee(ctx context.Context, in CreateEmployeeInput) (*Employee, error) {
	var errs []error

	externalID, err := normalizeExternalID(in.ExternalID)
	errs = appendErr(errs, err)

	name, err := normalizeName(in.Name)
	errs = appendErr(errs, err)

	department, err := normalizeOptionalText(FieldDepartment, "Department", ErrInvalidDepartment, in.Department)
	errs = appendErr(errs, err)

	position, err := normalizeOptionalText(FieldPosition, "Position", ErrInvalidPosition, in.Position)
	errs = appendErr(errs, err)

	errs = appendErr(errs, s.validateMonthlyQuota(in.MonthlyQuota))

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	var created *Employee
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.ensureExternalIDNotExists(txCtx, externalID, ""); err != nil {
			return err
		}

		emp := New(s.newID(), NewParams{
			ExternalID:   externalID,
			Name:         name,
			Department:   department,
			Position:     position,
			MonthlyQuota: in.MonthlyQuota,
			IsActive:     active,
		}, s.clock.Now())

		result, err := s.repo.Create(txCtx, emp)
		if err != nil {
			return duplicateAsFieldError(err, "")
		}

		created = result
		return nil
	}); err != nil {
		return nil, err
	}

	return created, nil
}

// UpdateEmployee は社員情報を更新します。
// 前月以前の期間のままの社員は、編集を反映する前にクォータをリセットします。
func (s *Service) UpdateEmployee(ctx context.Context, in UpdateEmployeeInput) (*Employee, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	edit := Edit{
		DepartmentSet: in.DepartmentSet,
		PositionSet:   in.PositionSet,
		MonthlyQuota:  in.MonthlyQuota,
		CurrentQuota:  in.CurrentQuota,
		IsActive:      in.IsActive,
	}

	var errs []error
	if in.ExternalID != nil {
		externalID, err := normalizeExternalID(*in.ExternalID)
		errs = appendErr(errs, err)
		edit.ExternalID = &externalID
	}
	if in.Name != nil {
		name, err := normalizeName(*in.Name)
		errs = appendErr(errs, err)
		edit.Name = &name
	}
	if in.DepartmentSet {
		department, err := normalizeOptionalText(FieldDepartment, "Department", ErrInvalidDepartment, in.Department)
		errs = appendErr(errs, err)
		edit.Department = department
	}
	if in.PositionSet {
		position, err := normalizeOptionalText(FieldPosition, "Position", ErrInvalidPosition, in.Position)
		errs = appendErr(errs, err)
		edit.Position = position
	}
	if in.MonthlyQuota != nil {
		errs = appendErr(errs, s.validateMonthlyQuota(*in.MonthlyQuota))
	}
	if in.CurrentQuota != nil && *in.CurrentQuota < 0 {
		errs = append(errs, validation.New(FieldCurrentQuota, ErrInvalidCurrentQuota, "Current quota cannot be negative."))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	var updated *Employee
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByID(txCtx, in.ID)
		if err != nil {
			return err
		}

		if s.gate != nil {
			existing, err = s.gate.EnsureCurrentWindow(txCtx, existing)
			if err != nil {
				return err
			}
		}

		if edit.ExternalID != nil && *edit.ExternalID != existing.ExternalID {
			if err := s.ensureExternalIDNotExists(txCtx, *edit.ExternalID, existing.ID); err != nil {
				return err
			}
		}

		if err := existing.ApplyEdit(edit, s.clock.Now()); err != nil {
			return editAsFieldError(err)
		}

		result, err := s.repo.Update(txCtx, existing)
		if err != nil {
			return duplicateAsFieldError(err, existing.ID)
		}

		updated = result
		return nil
	}); err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteEmployee は社員を削除します。配布履歴も合わせて削除されます。
func (s *Service) DeleteEmployee(ctx context.Context, in DeleteEmployeeInput) error {
	if strings.TrimSpace(in.ID) == "" {
		return fmt.Errorf("id: %w", ErrInvalidID)
	}

	return s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		return s.repo.Delete(txCtx, in.ID)
	})
}

// GetEmployee は社員を取得します。保存されている値をそのまま返します。
func (s *Service) GetEmployee(ctx context.Context, in GetEmployeeInput) (*Employee, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	var result *Employee
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByID(txCtx, in.ID)
		if err != nil {
			return err
		}
		result = found
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// ListEmployees は社員の一覧を名前順で取得します。
func (s *Service) ListEmployees(ctx context.Context, in ListEmployeesInput) (*ListEmployeesResult, error) {
	limit, err := s.normalizePageSize(in.PageSize)
	if err != nil {
		return nil, err
	}

	offset, err := parsePageToken(in.PageToken)
	if err != nil {
		return nil, err
	}

	var activePtr *bool
	if in.Active != nil {
		active := *in.Active
		activePtr = &active
	}

	var (
		employees []*Employee
		nextToken string
	)

	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		resultEmployees, token, err := s.repo.List(txCtx, ListEmployeesFilter{
			Active: activePtr,
			Search: strings.TrimSpace(in.Query),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			return err
		}
		employees = resultEmployees
		nextToken = token
		return nil
	}); err != nil {
		return nil, err
	}

	return &ListEmployeesResult{Employees: employees, NextPageToken: nextToken}, nil
}

func (s *Service) ensureExternalIDNotExists(ctx context.Context, externalID, selfID string) error {
	emp, err := s.repo.FindByExternalID(ctx, externalID)
	if err != nil && !errors.Is(err, ErrEmployeeNotFound) {
		return err
	}
	if emp != nil && emp.ID != selfID {
		return duplicateAsFieldError(ErrExternalIDAlreadyExists, selfID)
	}
	return nil
}

func (s *Service) validateMonthlyQuota(q int) error {
	if q < 1 {
		return validation.New(FieldMonthlyQuota, ErrInvalidMonthlyQuota, "Monthly quota must be at least 1.")
	}
	if q > s.maxMonthlyQuota {
		return validation.New(FieldMonthlyQuota, ErrInvalidMonthlyQuota,
			fmt.Sprintf("Monthly quota cannot exceed %d.", s.maxMonthlyQuota))
	}
	return nil
}

func (s *Service) normalizePageSize(pageSize int) (int, error) {
	if pageSize <= 0 {
		return s.defaultPageSize, nil
	}
	if pageSize > maxListPageSize {
		return 0, ErrInvalidPageSize
	}
	return pageSize, nil
}

func normalizeExternalID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", validation.New(FieldExternalID, ErrInvalidExternalID, "Employee ID is required.")
	}
	if utf8.RuneCountInString(trimmed) > maxTextLength {
		return "", validation.New(FieldExternalID, ErrInvalidExternalID,
			fmt.Sprintf("Employee ID may not be greater than %d characters.", maxTextLength))
	}
	return trimmed, nil
}

func normalizeName(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", validation.New(FieldName, ErrInvalidName, "Employee name is required.")
	}
	if utf8.RuneCountInString(trimmed) > maxTextLength {
		return "", validation.New(FieldName, ErrInvalidName,
			fmt.Sprintf("Employee name may not be greater than %d characters.", maxTextLength))
	}
	return trimmed, nil
}

// normalizeOptionalText は空文字を nil として扱います。
func normalizeOptionalText(field, label string, sentinel error, raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(trimmed) > maxTextLength {
		return nil, validation.New(field, sentinel,
			fmt.Sprintf("%s may not be greater than %d characters.", label, maxTextLength))
	}
	return &trimmed, nil
}

func duplicateAsFieldError(err error, selfID string) error {
	if !errors.Is(err, ErrExternalIDAlreadyExists) {
		return err
	}
	if selfID == "" {
		return validation.New(FieldExternalID, ErrExternalIDAlreadyExists, "This Employee ID already exists.")
	}
	return validation.New(FieldExternalID, ErrExternalIDAlreadyExists, "This Employee ID is already taken by another employee.")
}

func editAsFieldError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidCurrentQuota):
		return validation.New(FieldCurrentQuota, err, "Current quota cannot exceed monthly quota.")
	case errors.Is(err, ErrInvalidMonthlyQuota):
		return validation.New(FieldMonthlyQuota, err, "Monthly quota must be at least 1.")
	default:
		return err
	}
}

func appendErr(errs []error, err error) []error {
	if err == nil {
		return errs
	}
	return append(errs, err)
}

func parsePageToken(token string) (int, error) {
	if strings.TrimSpace(token) == "" {
		return 0, nil
	}

	offset, err := strconv.Atoi(token)
	if err != nil || offset < 0 {
		return 0, ErrInvalidPageToken
	}

	return offset, nil
}
