package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/viralship/viralship/internal/apierror"
	"github.com/viralship/viralship/model"
)

const catalogCacheTTL = 5 * time.Minute

// GetService fetches a catalog service, read-through cached. The catalog
// changes rarely and is read on every dispatch, so a short TTL is enough.
func (d Datasource) GetService(ctx context.Context, id string) (*model.Service, error) {
	cacheKey := fmt.Sprintf("service:%s", id)
	if d.Cache != nil {
		cached := &model.Service{}
		if err := d.Cache.Get(ctx, cacheKey, cached); err == nil && cached.ServiceID != "" {
			return cached, nil
		}
	}

	row := d.Conn.QueryRowContext(ctx, `
		SELECT service_id, provider_id, external_id, name, type, quantity, created_at
		FROM services
		WHERE service_id = $1
	`, id)

	service := &model.Service{}
	err := row.Scan(&service.ServiceID, &service.ProviderID, &service.ExternalID, &service.Name, &service.Type, &service.Quantity, &service.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Service with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve service", err)
	}

	if d.Cache != nil {
		_ = d.Cache.Set(ctx, cacheKey, service, catalogCacheTTL)
	}

	return service, nil
}

// GetProvider fetches a provider row including its API credential.
func (d Datasource) GetProvider(ctx context.Context, id string) (*model.Provider, error) {
	cacheKey := fmt.Sprintf("provider:%s", id)
	if d.Cache != nil {
		cached := &model.Provider{}
		if err := d.Cache.Get(ctx, cacheKey, cached); err == nil && cached.ProviderID != "" {
			return cached, nil
		}
	}

	row := d.Conn.QueryRowContext(ctx, `
		SELECT provider_id, name, api_url, api_key, created_at
		FROM providers
		WHERE provider_id = $1
	`, id)

	provider := &model.Provider{}
	err := row.Scan(&provider.ProviderID, &provider.Name, &provider.APIURL, &provider.APIKey, &provider.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Provider with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve provider", err)
	}

	if d.Cache != nil {
		_ = d.Cache.Set(ctx, cacheKey, provider, catalogCacheTTL)
	}

	return provider, nil
}
