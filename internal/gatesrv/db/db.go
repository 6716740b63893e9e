// Package db defines the metadata store contract and its supporting
// plumbing. The concrete implementation lives in the postgresql subpackage;
// consumers depend on the Store interface so tests can substitute stubs.
package db

import (
	"context"
	"time"

	"github.com/postgate/postgate/internal/common/apperrors"
	"github.com/postgate/postgate/internal/common/uuid"
	"github.com/postgate/postgate/internal/gatesrv/db/models"
)

// Store is the metadata store: CRUD on tenants and tokens. Every operation
// is atomic; concurrent creation is serialized by database constraints, not
// in-process locks.
type Store interface {
	// CreateTenant inserts a tenant. Duplicate shared schema names yield
	// ErrAlreadyExists; invariant violations yield ErrInvalidInput.
	CreateTenant(ctx context.Context, tenant *models.Tenant) apperrors.Error
	// GetTenant retrieves a tenant by ID.
	GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, apperrors.Error)
	// DeleteTenant removes a tenant row, cascading its tokens. It reports
	// whether a row existed. It does not touch backend namespaces; that is
	// the provisioner's job.
	DeleteTenant(ctx context.Context, id uuid.UUID) (bool, apperrors.Error)
	// ListTenants returns all tenants, newest first.
	ListTenants(ctx context.Context) ([]*models.Tenant, apperrors.Error)

	// CreateToken inserts a token. Absent tenant yields ErrNotFound; a
	// (tenant, name) clash yields ErrAlreadyExists.
	CreateToken(ctx context.Context, tok *models.Token) apperrors.Error
	// DeleteToken removes a token row and reports whether it existed.
	DeleteToken(ctx context.Context, id uuid.UUID) (bool, apperrors.Error)
	// GetTokenByHash resolves a token hash to the token and its tenant.
	// This is the authentication hot path and is indexed.
	GetTokenByHash(ctx context.Context, hash string) (*models.Token, *models.Tenant, apperrors.Error)
	// ListTokens returns a tenant's tokens without hashes.
	ListTokens(ctx context.Context, tenantID uuid.UUID) ([]*models.Token, apperrors.Error)

	// TouchToken updates last_used_at. Best effort; may be dropped under
	// load.
	TouchToken(ctx context.Context, id uuid.UUID, when time.Time) error
}
