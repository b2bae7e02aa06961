package employee

import "context"

// Repository は社員永続化の抽象です。
type Repository interface {
	Create(ctx context.Context, employee *Employee) (*Employee, error)
	Update(ctx context.Context, employee *Employee) (*Employee, error)
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*Employee, error)
	FindByExternalID(ctx context.Context, externalID string) (*Employee, error)
	FindActiveByExternalID(ctx context.Context, externalID string) (*Employee, error)
	List(ctx context.Context, filter ListEmployeesFilter) ([]*Employee, string, error)
}

// ListEmployeesFilter は一覧取得用フィルタです。Search は名前または社員 ID の部分一致です。
type ListEmployeesFilter struct {
	Active *bool
	Search string
	Limit  int
	Offset int
}
