// Package tenant provisions and destroys tenant namespaces atomically with
// their metadata. Schema DDL and the metadata row commit or roll back
// together, so a failure leaves no orphan namespace.
package tenant

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/postgate/postgate/internal/common/apperrors"
	"github.com/postgate/postgate/internal/common/uuid"
	"github.com/postgate/postgate/internal/gatesrv/db/dberror"
	"github.com/postgate/postgate/internal/gatesrv/db/models"
	"github.com/postgate/postgate/internal/gatesrv/db/postgresql"
	"github.com/postgate/postgate/internal/gatesrv/gatecommon"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// reservedSchemas may never be dropped through tenant deletion. public hosts
// the metadata tables and the admin tenant; postgate_helpers hosts the
// cross-tenant utility functions.
var reservedSchemas = map[string]struct{}{
	"public":           {},
	"postgate_helpers": {},
}

// Provisioner composes the metadata store with DDL on the host database.
type Provisioner struct {
	db    *sql.DB
	store *postgresql.Store
}

// NewProvisioner creates a Provisioner over the host database pool.
func NewProvisioner(hostDB *sql.DB, store *postgresql.Store) *Provisioner {
	return &Provisioner{db: hostDB, store: store}
}

// NewSchemaName derives a fresh namespace name for a shared tenant:
// tenant_<32 random hex>_<sanitized name>.
func NewSchemaName(name string) string {
	var id [16]byte
	if _, err := rand.Read(id[:]); err != nil {
		panic(err)
	}
	sanitized := unsafeChars.ReplaceAllString(name, "_")
	sanitized = strings.ToLower(sanitized)
	if len(sanitized) > 50 {
		sanitized = sanitized[:50]
	}
	if sanitized == "" {
		sanitized = "db"
	}
	return "tenant_" + hex.EncodeToString(id[:]) + "_" + sanitized
}

// CreateSharedTenant creates an isolated schema in the host database and the
// tenant row in a single transaction.
func (p *Provisioner) CreateSharedTenant(ctx context.Context, name string, maxRows int) (*models.Tenant, apperrors.Error) {
	if maxRows <= 0 {
		maxRows = gatecommon.DefaultMaxRows
	}
	schemaName := NewSchemaName(name)

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dberror.ErrDatabase.Err(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(schemaName)); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to create tenant schema")
		return nil, dberror.ErrDatabase.Err(err)
	}

	tenant := &models.Tenant{
		Name:    name,
		Backend: gatecommon.SharedBackend(schemaName),
		MaxRows: maxRows,
	}
	if cerr := p.store.WithTx(tx).CreateTenant(ctx, tenant); cerr != nil {
		return nil, cerr
	}

	if err := tx.Commit(); err != nil {
		return nil, dberror.ErrDatabase.Err(err)
	}
	log.Ctx(ctx).Info().Str("tenant_id", tenant.ID.String()).Str("schema", schemaName).Msg("created shared tenant")
	return tenant, nil
}

// CreateDedicatedTenant records a tenant backed by an external database. The
// remote DSN is not probed; connections are established on first use.
func (p *Provisioner) CreateDedicatedTenant(ctx context.Context, name, dsn string, maxRows int) (*models.Tenant, apperrors.Error) {
	if maxRows <= 0 {
		maxRows = gatecommon.DefaultMaxRows
	}
	tenant := &models.Tenant{
		Name:    name,
		Backend: gatecommon.DedicatedBackend(dsn),
		MaxRows: maxRows,
	}
	if err := p.store.CreateTenant(ctx, tenant); err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Str("tenant_id", tenant.ID.String()).Msg("created dedicated tenant")
	return tenant, nil
}

// DeleteTenant removes the tenant row (cascading its tokens) and, for shared
// backends, drops the schema in the same transaction. Dedicated remotes are
// never touched. Returns whether the tenant existed.
func (p *Provisioner) DeleteTenant(ctx context.Context, id uuid.UUID) (bool, apperrors.Error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return false, dberror.ErrDatabase.Err(err)
	}
	defer tx.Rollback()

	txStore := p.store.WithTx(tx)
	tenant, gerr := txStore.GetTenant(ctx, id)
	if gerr != nil {
		if errors.Is(gerr, dberror.ErrNotFound) {
			return false, nil
		}
		return false, gerr
	}

	if tenant.Backend.Kind() == gatecommon.BackendShared {
		schemaName := tenant.Backend.SchemaName()
		if _, reserved := reservedSchemas[schemaName]; !reserved {
			if _, err := tx.ExecContext(ctx,
				"DROP SCHEMA IF EXISTS "+pq.QuoteIdentifier(schemaName)+" CASCADE"); err != nil {
				log.Ctx(ctx).Error().Err(err).Msg("failed to drop tenant schema")
				return false, dberror.ErrDatabase.Err(err)
			}
		}
	}

	existed, derr := txStore.DeleteTenant(ctx, id)
	if derr != nil {
		return false, derr
	}
	if err := tx.Commit(); err != nil {
		return false, dberror.ErrDatabase.Err(err)
	}
	log.Ctx(ctx).Info().Str("tenant_id", id.String()).Msg("deleted tenant")
	return existed, nil
}
