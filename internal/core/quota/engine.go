// Package quota は月次クォータのリセットと差し引きを扱います。
package quota

import (
	"context"
	"errors"
	"time"

	"github.com/ogurasousui/gallon-quota/internal/core/employee"
	"github.com/rs/zerolog"
)

// Store はクォータ更新に必要な永続化操作です。
// ResetQuota は quota_reset_date が windowStart より前の行だけを更新し、対象行が無ければ
// employee.ErrEmployeeNotFound を返します。DeductQuota は残量が amount 以上の行だけを更新し、
// 対象行が無ければ employee.ErrInsufficientQuota を返します。
type Store interface {
	FindByID(ctx context.Context, id string) (*employee.Employee, error)
	ResetQuota(ctx context.Context, id string, windowStart, updatedAt time.Time) (*employee.Employee, error)
	DeductQuota(ctx context.Context, id string, amount int, updatedAt time.Time) (*employee.Employee, error)
}

// ResetObserver はリセットの発生を受け取ります。
type ResetObserver interface {
	QuotaReset()
}

type noopObserver struct{}

func (noopObserver) QuotaReset() {}

// DeductResult は差し引きの結果です。Applied が false の場合 Employee は差し引き前の最新状態です。
type DeductResult struct {
	Applied  bool
	Employee *employee.Employee
	Reset    bool
}

// Engine はクォータ期間の判定と差し引きを行います。
type Engine struct {
	store    Store
	clock    employee.Clock
	tx       employee.TransactionManager
	observer ResetObserver
}

// Option は Engine の設定を変更します。
type Option func(*Engine)

// WithResetObserver はリセット通知先を設定します。
func WithResetObserver(o ResetObserver) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// NewEngine は Engine を生成します。
func NewEngine(store Store, clock employee.Clock, tx employee.TransactionManager, opts ...Option) *Engine {
	if clock == nil {
		clock = employee.SystemClock{}
	}
	if tx == nil {
		tx = passthroughTx{}
	}
	e := &Engine{store: store, clock: clock, tx: tx, observer: noopObserver{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EnsureCurrentWindow は社員のクォータ期間が当月でなければリセットし、最新の社員を返します。
// 同じ月の中では何度呼んでも結果は変わりません。
func (g *Engine) EnsureCurrentWindow(ctx context.Context, e *employee.Employee) (*employee.Employee, error) {
	now := g.clock.Now()
	if !e.NeedsReset(now) {
		return e, nil
	}

	var (
		current *employee.Employee
		reset   bool
	)
	if err := g.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		var err error
		current, reset, err = g.ensure(txCtx, e, now)
		return err
	}); err != nil {
		return nil, err
	}

	if reset {
		g.observer.QuotaReset()
	}
	return current, nil
}

// Deduct は当月期間を確定させた上で amount を差し引きます。
// 残量不足は DeductResult.Applied = false で表し、エラーにはしません。
// 残量不足の場合も、同じトランザクション内で行われたリセットは確定されます。
func (g *Engine) Deduct(ctx context.Context, e *employee.Employee, amount int) (*DeductResult, error) {
	if amount < 1 {
		return nil, employee.ErrInvalidAmount
	}

	now := g.clock.Now()
	var result DeductResult
	if err := g.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		current, reset, err := g.ensure(txCtx, e, now)
		if err != nil {
			return err
		}
		result.Reset = reset

		updated, err := g.store.DeductQuota(txCtx, current.ID, amount, now)
		switch {
		case err == nil:
			result.Applied = true
			result.Employee = updated
			return nil
		case errors.Is(err, employee.ErrInsufficientQuota):
			latest, err := g.store.FindByID(txCtx, current.ID)
			if err != nil {
				return err
			}
			result.Employee = latest
			return nil
		default:
			return err
		}
	}); err != nil {
		return nil, err
	}

	if result.Reset {
		g.observer.QuotaReset()
	}

	log := zerolog.Ctx(ctx)
	if result.Applied {
		log.Info().
			Str("employee_id", result.Employee.ExternalID).
			Int("gallons", amount).
			Int("remaining", result.Employee.CurrentQuota).
			Msg("quota deducted")
	} else {
		log.Info().
			Str("employee_id", result.Employee.ExternalID).
			Int("gallons", amount).
			Int("remaining", result.Employee.CurrentQuota).
			Msg("quota deduction rejected")
	}

	return &result, nil
}

func (g *Engine) ensure(ctx context.Context, e *employee.Employee, now time.Time) (*employee.Employee, bool, error) {
	if !e.NeedsReset(now) {
		return e, false, nil
	}

	reset, err := g.store.ResetQuota(ctx, e.ID, employee.MonthStart(now), now)
	switch {
	case err == nil:
		zerolog.Ctx(ctx).Info().
			Str("employee_id", reset.ExternalID).
			Int("monthly_quota", reset.MonthlyQuota).
			Time("quota_reset_date", reset.QuotaResetDate).
			Msg("monthly quota reset")
		return reset, true, nil
	case errors.Is(err, employee.ErrEmployeeNotFound):
		// 別のリクエストが先にリセットした場合は最新の行を読み直す。
		latest, err := g.store.FindByID(ctx, e.ID)
		if err != nil {
			return nil, false, err
		}
		return latest, false, nil
	default:
		return nil, false, err
	}
}

type passthroughTx struct{}

func (passthroughTx) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (passthroughTx) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
