package employee

import "time"

// Employee は社員エンティティです。月次ガロンクォータの集約ルートを兼ねます。
// 状態の変更は New / ApplyEdit / ResetQuota / Deduct の各遷移を通して行います。
type Employee struct {
	ID             string
	ExternalID     string
	Name           string
	Department     *string
	Position       *string
	MonthlyQuota   int
	CurrentQuota   int
	QuotaResetDate time.Time
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewParams は社員作成時の検証済みパラメータです。
type NewParams struct {
	ExternalID   string
	Name         string
	Department   *string
	Position     *string
	MonthlyQuota int
	IsActive     bool
}

// New は社員を生成します。CurrentQuota は MonthlyQuota、QuotaResetDate は当月初日に固定されます。
func New(id string, p NewParams, now time.Time) *Employee {
	return &Employee{
		ID:             id,
		ExternalID:     p.ExternalID,
		Name:           p.Name,
		Department:     cloneString(p.Department),
		Position:       cloneString(p.Position),
		MonthlyQuota:   p.MonthlyQuota,
		CurrentQuota:   p.MonthlyQuota,
		QuotaResetDate: MonthStart(now),
		IsActive:       p.IsActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Edit は管理者による編集内容です。nil のフィールドは変更しません。
// Department / Position は *Set が true の場合のみ反映され、nil を渡すと値を消去します。
type Edit struct {
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

// ApplyEdit は編集内容を反映します。0 <= CurrentQuota <= MonthlyQuota を満たさない場合は
// 何も変更せずにエラーを返します。
func (e *Employee) ApplyEdit(edit Edit, now time.Time) error {
	next := *e

	if edit.ExternalID != nil {
		next.ExternalID = *edit.ExternalID
	}
	if edit.Name != nil {
		next.Name = *edit.Name
	}
	if edit.DepartmentSet {
		next.Department = cloneString(edit.Department)
	}
	if edit.PositionSet {
		next.Position = cloneString(edit.Position)
	}
	if edit.MonthlyQuota != nil {
		next.MonthlyQuota = *edit.MonthlyQuota
	}
	if edit.CurrentQuota != nil {
		next.CurrentQuota = *edit.CurrentQuota
	}
	if edit.IsActive != nil {
		next.IsActive = *edit.IsActive
	}

	if next.MonthlyQuota < 1 {
		return ErrInvalidMonthlyQuota
	}
	if next.CurrentQuota < 0 || next.CurrentQuota > next.MonthlyQuota {
		return ErrInvalidCurrentQuota
	}

	next.UpdatedAt = now
	*e = next
	return nil
}

// NeedsReset はクォータ期間が当月より前であれば true を返します。残量には依存しません。
func (e *Employee) NeedsReset(now time.Time) bool {
	return MonthStart(e.QuotaResetDate).Before(MonthStart(now))
}

// ResetQuota はクォータを月次上限に戻し、期間を当月初日に進めます。
func (e *Employee) ResetQuota(now time.Time) {
	e.CurrentQuota = e.MonthlyQuota
	e.QuotaResetDate = MonthStart(now)
	e.UpdatedAt = now
}

// Deduct は amount を差し引きます。残量が不足する場合は変更せずに ErrInsufficientQuota を返します。
func (e *Employee) Deduct(amount int, now time.Time) error {
	if amount < 1 {
		return ErrInvalidAmount
	}
	if e.CurrentQuota < amount {
		return ErrInsufficientQuota
	}
	e.CurrentQuota -= amount
	e.UpdatedAt = now
	return nil
}

// Clone は社員のディープコピーを返します。
func (e *Employee) Clone() *Employee {
	if e == nil {
		return nil
	}
	c := *e
	c.Department = cloneString(e.Department)
	c.Position = cloneString(e.Position)
	return &c
}

// MonthStart は t が属する月の初日を UTC の日付値として返します。
// 年月は t 自身のロケーションで解釈されます。
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// DateOf は t の暦日を UTC の日付値として返します。
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
