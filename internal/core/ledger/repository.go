package ledger

import "context"

// Repository は配布履歴の永続化の抽象です。
type Repository interface {
	Create(ctx context.Context, tx *Transaction) (*Transaction, error)
	// ListByEmployee は新しい順に返します。limit が 0 以下なら全件です。
	ListByEmployee(ctx context.Context, employeeID string, limit int) ([]*Transaction, error)
}
