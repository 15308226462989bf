package tenants

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jrsteele09/go-auth-client/auth"
)

const routeTenants = "/tenants/"

var _ Repo = (*APIRepo)(nil)

// APIRepo reads and writes tenants through the authenticated client, so every call gets the
// session's refresh and retry handling.
type APIRepo struct {
	client *auth.Client
}

func NewAPIRepo(client *auth.Client) *APIRepo {
	return &APIRepo{client: client}
}

// Upsert creates the tenant when it has no ID and replaces it otherwise.
func (r *APIRepo) Upsert(ctx context.Context, tenant *Tenant) (*Tenant, error) {
	if tenant == nil {
		return nil, fmt.Errorf("[APIRepo.Upsert] tenant is nil")
	}

	var (
		resp *http.Response
		err  error
	)
	if tenant.ID == 0 {
		resp, err = r.client.Post(ctx, routeTenants, tenant)
	} else {
		resp, err = r.client.Put(ctx, tenantPath(tenant.ID), tenant)
	}
	if err != nil {
		return nil, fmt.Errorf("[APIRepo.Upsert] %w", err)
	}

	var saved Tenant
	if err := auth.DecodeJSON(resp, &saved); err != nil {
		return nil, fmt.Errorf("[APIRepo.Upsert] %w", err)
	}
	return &saved, nil
}

func (r *APIRepo) Delete(ctx context.Context, tenantID int64) error {
	resp, err := r.client.Delete(ctx, tenantPath(tenantID))
	if err != nil {
		return fmt.Errorf("[APIRepo.Delete] %w", err)
	}
	if err := auth.DecodeJSON(resp, &struct{}{}); err != nil {
		return fmt.Errorf("[APIRepo.Delete] %w", err)
	}
	return nil
}

func (r *APIRepo) Get(ctx context.Context, tenantID int64) (*Tenant, error) {
	resp, err := r.client.Get(ctx, tenantPath(tenantID))
	if err != nil {
		return nil, fmt.Errorf("[APIRepo.Get] %w", err)
	}
	var tenant Tenant
	if err := auth.DecodeJSON(resp, &tenant); err != nil {
		return nil, fmt.Errorf("[APIRepo.Get] %w", err)
	}
	return &tenant, nil
}

func (r *APIRepo) List(ctx context.Context, offset, limit int) (*Page, error) {
	query := url.Values{}
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(limit))

	resp, err := r.client.Get(ctx, routeTenants+"?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("[APIRepo.List] %w", err)
	}
	var page Page
	if err := auth.DecodeJSON(resp, &page); err != nil {
		return nil, fmt.Errorf("[APIRepo.List] %w", err)
	}
	return &page, nil
}

func tenantPath(id int64) string {
	return routeTenants + strconv.FormatInt(id, 10) + "/"
}
