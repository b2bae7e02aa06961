package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/gallon-quota/internal/core/employee"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

var employeeColumnNames = []string{
	"id", "external_id", "name", "department", "position", "monthly_quota",
	"current_quota", "quota_reset_date", "is_active", "created_at", "updated_at",
}

type stubEmployeeRow struct {
	scanFn func(dest ...interface{}) error
}

func (s stubEmployeeRow) Scan(dest ...interface{}) error {
	return s.scanFn(dest...)
}

func TestScanEmployee_Success(t *testing.T) {
	t.Parallel()

	resetDate := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	createdAt := time.Now().UTC()
	updatedAt := createdAt.Add(time.Minute)

	row := stubEmployeeRow{scanFn: func(dest ...interface{}) error {
		if len(dest) != 11 {
			return errors.New("unexpected dest length")
		}
		*(dest[0].(*string)) = "emp-1"
		*(dest[1].(*string)) = "EMP001"
		*(dest[2].(*string)) = "John Doe"

		deptDest := dest[3].(*sql.NullString)
		deptDest.String = "IT"
		deptDest.Valid = true

		*(dest[5].(*int)) = 10
		*(dest[6].(*int)) = 8
		*(dest[7].(*time.Time)) = resetDate
		*(dest[8].(*bool)) = true
		*(dest[9].(*time.Time)) = createdAt
		*(dest[10].(*time.Time)) = updatedAt
		return nil
	}}

	emp, err := scanEmployee(row)
	if err != nil {
		t.Fatalf("scanEmployee returned error: %v", err)
	}

	if emp.Department == nil || *emp.Department != "IT" {
		t.Fatalf("expected department IT, got %+v", emp.Department)
	}
	if emp.Position != nil {
		t.Fatalf("expected nil position, got %q", *emp.Position)
	}
	if emp.MonthlyQuota != 10 || emp.CurrentQuota != 8 || !emp.IsActive {
		t.Fatalf("unexpected quota fields %+v", emp)
	}
	if !emp.QuotaResetDate.Equal(resetDate) {
		t.Fatalf("expected reset date %v, got %v", resetDate, emp.QuotaResetDate)
	}
}

func TestScanEmployee_NoRows(t *testing.T) {
	t.Parallel()

	row := stubEmployeeRow{scanFn: func(dest ...interface{}) error {
		return pgx.ErrNoRows
	}}

	_, err := scanEmployee(row)
	if !errors.Is(err, employee.ErrEmployeeNotFound) {
		t.Fatalf("expected ErrEmployeeNotFound, got %v", err)
	}
}

func TestTranslateEmployeePgError(t *testing.T) {
	t.Parallel()

	uniqueErr := &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "employees_external_id_key"}
	if !errors.Is(translateEmployeePgError(uniqueErr), employee.ErrExternalIDAlreadyExists) {
		t.Fatalf("expected unique violation to map to ErrExternalIDAlreadyExists")
	}

	currentErr := &pgconn.PgError{Code: checkViolationCode, ConstraintName: "employees_current_quota_check"}
	if !errors.Is(translateEmployeePgError(currentErr), employee.ErrInvalidCurrentQuota) {
		t.Fatalf("expected current quota check to map to ErrInvalidCurrentQuota")
	}

	monthlyErr := &pgconn.PgError{Code: checkViolationCode, ConstraintName: "employees_monthly_quota_check"}
	if !errors.Is(translateEmployeePgError(monthlyErr), employee.ErrInvalidMonthlyQuota) {
		t.Fatalf("expected monthly quota check to map to ErrInvalidMonthlyQuota")
	}

	other := errors.New("other")
	if translateEmployeePgError(other) != other {
		t.Fatalf("unexpected translation for generic error")
	}
}

func TestEmployeeRepository_Create(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewEmployeeRepository(mock)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	reset := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	dept := "IT"

	mock.ExpectQuery(`INSERT INTO employees`).
		WithArgs("emp-1", "EMP001", "John Doe", "IT", nil, 10, 10, reset, true, now, now).
		WillReturnRows(pgxmock.NewRows(employeeColumnNames).
			AddRow("emp-1", "EMP001", "John Doe", "IT", nil, 10, 10, reset, true, now, now))

	created, err := repo.Create(context.Background(), &employee.Employee{
		ID: "emp-1", ExternalID: "EMP001", Name: "John Doe", Department: &dept,
		MonthlyQuota: 10, CurrentQuota: 10, QuotaResetDate: reset, IsActive: true, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.ID != "emp-1" || created.Department == nil || *created.Department != "IT" {
		t.Fatalf("unexpected created employee %+v", created)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEmployeeRepository_Create_DuplicateExternalID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewEmployeeRepository(mock)

	mock.ExpectQuery(`INSERT INTO employees`).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "employees_external_id_key"})

	_, err = repo.Create(context.Background(), &employee.Employee{ID: "emp-2", ExternalID: "EMP001", Name: "Dup", MonthlyQuota: 10, CurrentQuota: 10})
	if !errors.Is(err, employee.ErrExternalIDAlreadyExists) {
		t.Fatalf("expected ErrExternalIDAlreadyExists, got %v", err)
	}
}

func TestEmployeeRepository_FindActiveByExternalID_NotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewEmployeeRepository(mock)

	mock.ExpectQuery(`FROM employees WHERE external_id = \$1 AND is_active = TRUE`).
		WithArgs("EMP404").
		WillReturnRows(pgxmock.NewRows(employeeColumnNames))

	if _, err := repo.FindActiveByExternalID(context.Background(), "EMP404"); !errors.Is(err, employee.ErrEmployeeNotFound) {
		t.Fatalf("expected ErrEmployeeNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEmployeeRepository_MalformedIDIsNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewEmployeeRepository(mock)
	malformed := &pgconn.PgError{Code: invalidTextRepresentationCode, Message: `invalid input syntax for type uuid: "not-a-uuid"`}

	mock.ExpectQuery(`FROM employees WHERE id = \$1`).
		WithArgs("not-a-uuid").
		WillReturnError(malformed)
	mock.ExpectQuery(`UPDATE employees`).
		WillReturnError(malformed)
	mock.ExpectExec(`DELETE FROM employees WHERE id = \$1`).
		WithArgs("not-a-uuid").
		WillReturnError(malformed)

	ctx := context.Background()
	if _, err := repo.FindByID(ctx, "not-a-uuid"); !errors.Is(err, employee.ErrEmployeeNotFound) {
		t.Fatalf("FindByID: expected ErrEmployeeNotFound, got %v", err)
	}
	if _, err := repo.Update(ctx, &employee.Employee{ID: "not-a-uuid", ExternalID: "EMP001", Name: "John", MonthlyQuota: 10, CurrentQuota: 10}); !errors.Is(err, employee.ErrEmployeeNotFound) {
		t.Fatalf("Update: expected ErrEmployeeNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, "not-a-uuid"); !errors.Is(err, employee.ErrEmployeeNotFound) {
		t.Fatalf("Delete: expected ErrEmployeeNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEmployeeRepository_ResetQuota(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewEmployeeRepository(mock)
	now := time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)
	window := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SET current_quota = monthly_quota`).
		WithArgs("emp-1", window, now).
		WillReturnRows(pgxmock.NewRows(employeeColumnNames).
			AddRow("emp-1", "EMP001", "John Doe", nil, nil, 10, 10, window, true, now, now))

	reset, err := repo.ResetQuota(context.Background(), "emp-1", window, now)
	if err != nil {
		t.Fatalf("ResetQuota returned error: %v", err)
	}
	if reset.CurrentQuota != 10 || !reset.QuotaResetDate.Equal(window) {
		t.Fatalf("unexpected reset result %+v", reset)
	}

	mock.ExpectQuery(`WHERE id = \$1 AND quota_reset_date < \$2`).
		WithArgs("emp-1", window, now).
		WillReturnRows(pgxmock.NewRows(employeeColumnNames))

	if _, err := repo.ResetQuota(context.Background(), "emp-1", window, now); !errors.Is(err, employee.ErrEmployeeNotFound) {
		t.Fatalf("expected ErrEmployeeNotFound for an already reset row, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEmployeeRepository_DeductQuota(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewEmployeeRepository(mock)
	now := time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)
	window := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SET current_quota = current_quota - \$2`).
		WithArgs("emp-1", 3, now).
		WillReturnRows(pgxmock.NewRows(employeeColumnNames).
			AddRow("emp-1", "EMP001", "John Doe", nil, nil, 10, 5, window, true, now, now))

	deducted, err := repo.DeductQuota(context.Background(), "emp-1", 3, now)
	if err != nil {
		t.Fatalf("DeductQuota returned error: %v", err)
	}
	if deducted.CurrentQuota != 5 {
		t.Fatalf("expected 5 remaining, got %d", deducted.CurrentQuota)
	}

	mock.ExpectQuery(`WHERE id = \$1 AND current_quota >= \$2`).
		WithArgs("emp-1", 9, now).
		WillReturnRows(pgxmock.NewRows(employeeColumnNames))

	if _, err := repo.DeductQuota(context.Background(), "emp-1", 9, now); !errors.Is(err, employee.ErrInsufficientQuota) {
		t.Fatalf("expected ErrInsufficientQuota, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEmployeeRepository_Delete(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewEmployeeRepository(mock)

	mock.ExpectExec(`DELETE FROM employees WHERE id = \$1`).
		WithArgs("emp-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM employees WHERE id = \$1`).
		WithArgs("emp-404").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := repo.Delete(context.Background(), "emp-1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if err := repo.Delete(context.Background(), "emp-404"); !errors.Is(err, employee.ErrEmployeeNotFound) {
		t.Fatalf("expected ErrEmployeeNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEmployeeRepository_List_WithFilters(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewEmployeeRepository(mock)
	active := true
	now := time.Now().UTC()
	reset := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows(employeeColumnNames).
		AddRow("emp-1", "EMP001", "Alice", nil, nil, 10, 10, reset, true, now, now).
		AddRow("emp-2", "EMP002", "Bob", nil, nil, 10, 5, reset, true, now, now).
		AddRow("emp-3", "EMP003", "Carol", nil, nil, 10, 1, reset, true, now, now)

	mock.ExpectQuery(`WHERE is_active = \$1 AND \(name ILIKE \$2 OR external_id ILIKE \$2\)\s+ORDER BY name ASC, id ASC\s+LIMIT \$3\s+OFFSET \$4`).
		WithArgs(true, `%50\%%`, 3, 0).
		WillReturnRows(rows)

	employees, nextToken, err := repo.List(context.Background(), employee.ListEmployeesFilter{
		Active: &active,
		Search: "50%",
		Limit:  2,
		Offset: 0,
	})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}

	if len(employees) != 2 {
		t.Fatalf("expected 2 employees, got %d", len(employees))
	}
	if nextToken != "2" {
		t.Fatalf("expected next token '2', got %s", nextToken)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEmployeeRepository_List_InvalidFilter(t *testing.T) {
	t.Parallel()

	repo := NewEmployeeRepository(nil)

	if _, _, err := repo.List(context.Background(), employee.ListEmployeesFilter{Limit: 0}); !errors.Is(err, employee.ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize, got %v", err)
	}
	if _, _, err := repo.List(context.Background(), employee.ListEmployeesFilter{Limit: 1, Offset: -1}); !errors.Is(err, employee.ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}
