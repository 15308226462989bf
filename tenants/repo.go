package tenants

import "context"

type Repo interface {
	Upsert(ctx context.Context, tenant *Tenant) (*Tenant, error)
	Delete(ctx context.Context, tenantID int64) error
	Get(ctx context.Context, tenantID int64) (*Tenant, error)
	List(ctx context.Context, offset, limit int) (*Page, error)
}
