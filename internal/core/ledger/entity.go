// Package ledger はガロン配布の履歴を記録します。
package ledger

import "time"

// Transaction は 1 回の配布の記録です。作成後に変更されることはありません。
type Transaction struct {
	ID              string
	EmployeeID      string
	GallonsTaken    int
	RemainingQuota  int
	TransactionDate time.Time
	CreatedAt       time.Time
}
