package models

import (
	"time"

	"github.com/postgate/postgate/internal/common/uuid"
	"github.com/postgate/postgate/internal/gatesrv/db/dberror"
	"github.com/postgate/postgate/internal/gatesrv/gatecommon"
)

// Tenant is a logical database: a named, isolated namespace in the host
// cluster or a dedicated external database. Tenants are immutable after
// creation.
type Tenant struct {
	ID        uuid.UUID
	Name      string
	Backend   gatecommon.Backend
	MaxRows   int
	CreatedAt time.Time
}

func (t *Tenant) Validate() error {
	if t.Name == "" {
		return dberror.ErrInvalidInput.Msg("name is required")
	}
	if t.MaxRows <= 0 {
		return dberror.ErrInvalidInput.Msg("max_rows must be positive")
	}
	switch t.Backend.Kind() {
	case gatecommon.BackendShared:
		if t.Backend.SchemaName() == "" {
			return dberror.ErrInvalidInput.Msg("schema name is required for schema backends")
		}
	case gatecommon.BackendDedicated:
		if t.Backend.DSN() == "" {
			return dberror.ErrInvalidInput.Msg("connection string is required for dedicated backends")
		}
	default:
		return dberror.ErrInvalidInput.Msg("backend is required")
	}
	return nil
}
