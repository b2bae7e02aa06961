package postgres

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/gallon-quota/internal/core/employee"
	"github.com/ogurasousui/gallon-quota/internal/core/ledger"
	pgdb "github.com/ogurasousui/gallon-quota/internal/platform/db/postgres"
)

const transactionColumns = `id, employee_id, gallons_taken, remaining_quota, transaction_date, created_at`

// TransactionRepository は配布履歴を gallon_transactions テーブルに保存します。
type TransactionRepository struct {
	pool pgdb.Queryer
}

// NewTransactionRepository は TransactionRepository を生成します。
func NewTransactionRepository(pool pgdb.Queryer) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// Create は履歴を 1 件追記します。
func (r *TransactionRepository) Create(ctx context.Context, tx *ledger.Transaction) (*ledger.Transaction, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO gallon_transactions (id, employee_id, gallons_taken, remaining_quota, transaction_date, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING `+transactionColumns,
		tx.ID,
		tx.EmployeeID,
		tx.GallonsTaken,
		tx.RemainingQuota,
		tx.TransactionDate,
		tx.CreatedAt,
	)

	created, err := scanTransaction(row)
	if err != nil {
		return nil, translateTransactionPgError(err)
	}
	return created, nil
}

// ListByEmployee は社員の履歴を新しい順に返します。limit が 0 以下なら全件です。
func (r *TransactionRepository) ListByEmployee(ctx context.Context, employeeID string, limit int) ([]*ledger.Transaction, error) {
	query := `
        SELECT ` + transactionColumns + `
          FROM gallon_transactions
         WHERE employee_id = $1
         ORDER BY created_at DESC, id DESC`
	args := []any{employeeID}
	if limit > 0 {
		query += `
         LIMIT $` + strconv.Itoa(len(args)+1)
		args = append(args, limit)
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, translateTransactionPgError(err)
	}
	defer rows.Close()

	var items []*ledger.Transaction
	for rows.Next() {
		item, err := scanTransaction(rows)
		if err != nil {
			return nil, translateTransactionPgError(err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, translateTransactionPgError(err)
	}

	return items, nil
}

func scanTransaction(row pgx.Row) (*ledger.Transaction, error) {
	var (
		id              string
		employeeID      string
		gallonsTaken    int
		remainingQuota  int
		transactionDate time.Time
		createdAt       time.Time
	)

	if err := row.Scan(&id, &employeeID, &gallonsTaken, &remainingQuota, &transactionDate, &createdAt); err != nil {
		return nil, err
	}

	return &ledger.Transaction{
		ID:              id,
		EmployeeID:      employeeID,
		GallonsTaken:    gallonsTaken,
		RemainingQuota:  remainingQuota,
		TransactionDate: employee.DateOf(transactionDate),
		CreatedAt:       createdAt,
	}, nil
}

func translateTransactionPgError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case foreignKeyViolationCode:
			return ledger.ErrEmployeeNotFound
		case checkViolationCode:
			switch pgErr.ConstraintName {
			case "gallon_transactions_gallons_taken_check":
				return ledger.ErrInvalidGallons
			case "gallon_transactions_remaining_quota_check":
				return ledger.ErrInvalidRemaining
			}
		}
	}

	return err
}
