package distribution

import (
	"fmt"

	"github.com/ogurasousui/gallon-quota/internal/core/employee"
	"github.com/ogurasousui/gallon-quota/internal/core/ledger"
)

// Outcome は業務上の結果です。エラーではありません。
type Outcome int

const (
	OutcomeFound Outcome = iota + 1
	OutcomeNotFound
	OutcomeDistributed
	OutcomeInsufficientQuota
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeDistributed:
		return "distributed"
	case OutcomeInsufficientQuota:
		return "insufficient_quota"
	default:
		return "unknown"
	}
}

// MessageNotFound は未登録と無効の社員を区別せずに返す文言です。
const MessageNotFound = "Employee not found or inactive."

// LookupResult は社員照会の結果です。OutcomeFound のときだけ Employee を持ちます。
type LookupResult struct {
	Outcome  Outcome
	Employee *employee.Employee
	Message  string
}

// DistributeResult は配布の結果です。
// OutcomeInsufficientQuota の場合も Employee は最新の残量を持ちます。
// LedgerRecorded が false でも差し引きは確定しています。
type DistributeResult struct {
	Outcome        Outcome
	Employee       *employee.Employee
	Gallons        int
	Message        string
	Transaction    *ledger.Transaction
	LedgerRecorded bool
}

// SuccessMessage は配布成功時の文言を返します。
func (r *DistributeResult) SuccessMessage() string {
	if r.Outcome != OutcomeDistributed {
		return ""
	}
	return r.Message
}

// ErrorMessage は配布失敗時の文言を返します。
func (r *DistributeResult) ErrorMessage() string {
	if r.Outcome == OutcomeDistributed {
		return ""
	}
	return r.Message
}

func distributedMessage(gallons, remaining int) string {
	unit := "gallons"
	if gallons == 1 {
		unit = "gallon"
	}
	return fmt.Sprintf("Successfully distributed %d %s. Remaining quota: %d", gallons, unit, remaining)
}

func insufficientMessage(remaining int) string {
	return fmt.Sprintf("Insufficient quota. Only %d gallons remaining.", remaining)
}
