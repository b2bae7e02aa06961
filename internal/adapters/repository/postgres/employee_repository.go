package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/gallon-quota/internal/core/employee"
	pgdb "github.com/ogurasousui/gallon-quota/internal/platform/db/postgres"
)

const (
	uniqueViolationCode           = "23505"
	foreignKeyViolationCode       = "23503"
	checkViolationCode            = "23514"
	invalidTextRepresentationCode = "22P02"
)

const employeeColumns = `id, external_id, name, department, position, monthly_quota, current_quota, quota_reset_date, is_active, created_at, updated_at`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EmployeeRepository は PostgreSQL を利用した社員永続化の実装です。
// クォータの更新は条件付き UPDATE で行い、同時実行でも残量が負になりません。
type EmployeeRepository struct {
	pool pgdb.Queryer
}

// NewEmployeeRepository は EmployeeRepository を生成します。
func NewEmployeeRepository(pool pgdb.Queryer) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

// Create は社員を新規作成します。
func (r *EmployeeRepository) Create(ctx context.Context, e *employee.Employee) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO employees (id, external_id, name, department, position, monthly_quota, current_quota, quota_reset_date, is_active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING `+employeeColumns,
		e.ID,
		e.ExternalID,
		e.Name,
		nullableString(e.Department),
		nullableString(e.Position),
		e.MonthlyQuota,
		e.CurrentQuota,
		e.QuotaResetDate,
		e.IsActive,
		e.CreatedAt,
		e.UpdatedAt,
	)

	created, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return created, nil
}

// Update は社員情報を更新します。
func (r *EmployeeRepository) Update(ctx context.Context, e *employee.Employee) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE employees
           SET external_id = $1,
               name = $2,
               department = $3,
               position = $4,
               monthly_quota = $5,
               current_quota = $6,
               quota_reset_date = $7,
               is_active = $8,
               updated_at = $9
         WHERE id = $10
        RETURNING `+employeeColumns,
		e.ExternalID,
		e.Name,
		nullableString(e.Department),
		nullableString(e.Position),
		e.MonthlyQuota,
		e.CurrentQuota,
		e.QuotaResetDate,
		e.IsActive,
		e.UpdatedAt,
		e.ID,
	)

	updated, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return updated, nil
}

// Delete は社員を削除します。配布履歴は外部キーの ON DELETE CASCADE で削除されます。
func (r *EmployeeRepository) Delete(ctx context.Context, id string) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		return translateEmployeePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return employee.ErrEmployeeNotFound
	}
	return nil
}

// FindByID は ID で社員を取得します。
func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1 LIMIT 1`, id)

	found, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return found, nil
}

// FindByExternalID は社員 ID で検索します。無効な社員も対象です。
func (r *EmployeeRepository) FindByExternalID(ctx context.Context, externalID string) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE external_id = $1 LIMIT 1`, externalID)

	found, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return found, nil
}

// FindActiveByExternalID は有効な社員だけを社員 ID で検索します。
func (r *EmployeeRepository) FindActiveByExternalID(ctx context.Context, externalID string) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE external_id = $1 AND is_active = TRUE LIMIT 1`, externalID)

	found, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return found, nil
}

// ResetQuota は quota_reset_date が windowStart より前の場合だけクォータを戻します。
// 既にリセット済み、または存在しない場合は employee.ErrEmployeeNotFound を返します。
func (r *EmployeeRepository) ResetQuota(ctx context.Context, id string, windowStart, updatedAt time.Time) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE employees
           SET current_quota = monthly_quota,
               quota_reset_date = $2,
               updated_at = $3
         WHERE id = $1 AND quota_reset_date < $2
        RETURNING `+employeeColumns,
		id,
		windowStart,
		updatedAt,
	)

	reset, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return reset, nil
}

// DeductQuota は残量が amount 以上の場合だけ差し引きます。
// 対象行が無い場合は employee.ErrInsufficientQuota を返します。
func (r *EmployeeRepository) DeductQuota(ctx context.Context, id string, amount int, updatedAt time.Time) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE employees
           SET current_quota = current_quota - $2,
               updated_at = $3
         WHERE id = $1 AND current_quota >= $2
        RETURNING `+employeeColumns,
		id,
		amount,
		updatedAt,
	)

	deducted, err := scanEmployee(row)
	if errors.Is(err, employee.ErrEmployeeNotFound) {
		return nil, employee.ErrInsufficientQuota
	}
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return deducted, nil
}

// List は社員の一覧を名前順に取得します。
func (r *EmployeeRepository) List(ctx context.Context, filter employee.ListEmployeesFilter) ([]*employee.Employee, string, error) {
	if filter.Limit <= 0 {
		return nil, "", employee.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, "", employee.ErrInvalidPageToken
	}

	limitWithBuffer := filter.Limit + 1

	args := make([]any, 0, 4)
	conditions := make([]string, 0, 2)

	if filter.Active != nil {
		placeholder := "$" + strconv.Itoa(len(args)+1)
		conditions = append(conditions, "is_active = "+placeholder)
		args = append(args, *filter.Active)
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		placeholder := "$" + strconv.Itoa(len(args)+1)
		conditions = append(conditions, "(name ILIKE "+placeholder+" OR external_id ILIKE "+placeholder+")")
		args = append(args, "%"+likeEscaper.Replace(search)+"%")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	limitPlaceholder := "$" + strconv.Itoa(len(args)+1)
	args = append(args, limitWithBuffer)
	offsetPlaceholder := "$" + strconv.Itoa(len(args)+1)
	args = append(args, filter.Offset)

	query := `
        SELECT ` + employeeColumns + `
          FROM employees` + whereClause + `
         ORDER BY name ASC, id ASC
         LIMIT ` + limitPlaceholder + `
        OFFSET ` + offsetPlaceholder + `
    `

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, "", translateEmployeePgError(err)
	}
	defer rows.Close()

	employees := make([]*employee.Employee, 0, filter.Limit)
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, "", translateEmployeePgError(err)
		}
		employees = append(employees, emp)
	}

	if err := rows.Err(); err != nil {
		return nil, "", translateEmployeePgError(err)
	}

	var nextToken string
	if len(employees) == limitWithBuffer {
		employees = employees[:filter.Limit]
		nextToken = strconv.Itoa(filter.Offset + filter.Limit)
	}

	return employees, nextToken, nil
}

func scanEmployee(row pgx.Row) (*employee.Employee, error) {
	var (
		id             string
		externalID     string
		name           string
		department     sql.NullString
		position       sql.NullString
		monthlyQuota   int
		currentQuota   int
		quotaResetDate time.Time
		isActive       bool
		createdAt      time.Time
		updatedAt      time.Time
	)

	if err := row.Scan(
		&id,
		&externalID,
		&name,
		&department,
		&position,
		&monthlyQuota,
		&currentQuota,
		&quotaResetDate,
		&isActive,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, employee.ErrEmployeeNotFound
		}
		return nil, err
	}

	return &employee.Employee{
		ID:             id,
		ExternalID:     externalID,
		Name:           name,
		Department:     stringPtr(department),
		Position:       stringPtr(position),
		MonthlyQuota:   monthlyQuota,
		CurrentQuota:   currentQuota,
		QuotaResetDate: employee.DateOf(quotaResetDate),
		IsActive:       isActive,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

func translateEmployeePgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return employee.ErrEmployeeNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return employee.ErrExternalIDAlreadyExists
		case invalidTextRepresentationCode:
			// UUID として解釈できない ID は該当なしとして扱います。
			return employee.ErrEmployeeNotFound
		case checkViolationCode:
			switch pgErr.ConstraintName {
			case "employees_monthly_quota_check":
				return employee.ErrInvalidMonthlyQuota
			case "employees_current_quota_check":
				return employee.ErrInvalidCurrentQuota
			default:
				return err
			}
		}
	}

	return err
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}
