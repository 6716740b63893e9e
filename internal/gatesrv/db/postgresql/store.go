// Package postgresql implements the metadata store over the host database.
// Correctness of concurrent mutation relies on row-level constraints
// (unique indexes, foreign keys), not in-process locks.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/postgate/postgate/internal/common/apperrors"
	"github.com/postgate/postgate/internal/common/uuid"
	"github.com/postgate/postgate/internal/gatesrv/db/dberror"
	"github.com/postgate/postgate/internal/gatesrv/db/models"
	"github.com/postgate/postgate/internal/gatesrv/gatecommon"
)

// pgUniqueViolation is the SQLSTATE raised on unique-constraint conflicts.
const pgUniqueViolation = "23505"

// querier is satisfied by *sql.DB, *sql.Conn, and *sql.Tx so store
// operations compose into provisioning transactions.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the metadata store over the host database.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over the host database pool.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// WithTx returns a view of the store whose operations run inside tx.
func (s *Store) WithTx(tx *sql.Tx) *TxStore {
	return &TxStore{q: tx}
}

// TxStore runs store operations on an enclosing transaction.
type TxStore struct {
	q querier
}

// CreateTenant inserts a tenant row. A duplicate schema name yields
// ErrAlreadyExists; invariant violations yield ErrInvalidInput.
func (s *Store) CreateTenant(ctx context.Context, tenant *models.Tenant) apperrors.Error {
	return createTenant(ctx, s.db, tenant)
}

// CreateTenant is the transactional variant used by the provisioner.
func (t *TxStore) CreateTenant(ctx context.Context, tenant *models.Tenant) apperrors.Error {
	return createTenant(ctx, t.q, tenant)
}

func createTenant(ctx context.Context, q querier, tenant *models.Tenant) apperrors.Error {
	if err := tenant.Validate(); err != nil {
		return dberror.ErrInvalidInput.Err(err)
	}
	if tenant.ID == uuid.Nil {
		tenant.ID = uuid.New()
	}

	var schemaName, connString sql.NullString
	switch tenant.Backend.Kind() {
	case gatecommon.BackendShared:
		schemaName = sql.NullString{String: tenant.Backend.SchemaName(), Valid: true}
	case gatecommon.BackendDedicated:
		connString = sql.NullString{String: tenant.Backend.DSN(), Valid: true}
	}

	query := `
		INSERT INTO postgate_databases (id, name, backend_type, schema_name, connection_string, max_rows)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at;
	`
	err := q.QueryRowContext(ctx, query,
		tenant.ID, tenant.Name, string(tenant.Backend.Kind()), schemaName, connString, tenant.MaxRows,
	).Scan(&tenant.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			log.Ctx(ctx).Info().Str("name", tenant.Name).Msg("tenant schema already exists")
			return dberror.ErrAlreadyExists.Msg("tenant already exists")
		}
		log.Ctx(ctx).Error().Err(err).Str("name", tenant.Name).Msg("failed to insert tenant")
		return dberror.ErrDatabase.Err(err)
	}
	return nil
}

// GetTenant retrieves a tenant by ID. Absence yields ErrNotFound.
func (s *Store) GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, apperrors.Error) {
	query := `
		SELECT id, name, backend_type, schema_name, connection_string, max_rows, created_at
		FROM postgate_databases
		WHERE id = $1;
	`
	return scanTenant(ctx, s.db.QueryRowContext(ctx, query, id))
}

// GetTenant is the transactional variant.
func (t *TxStore) GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, apperrors.Error) {
	query := `
		SELECT id, name, backend_type, schema_name, connection_string, max_rows, created_at
		FROM postgate_databases
		WHERE id = $1;
	`
	return scanTenant(ctx, t.q.QueryRowContext(ctx, query, id))
}

func scanTenant(ctx context.Context, row *sql.Row) (*models.Tenant, apperrors.Error) {
	var (
		tenant      models.Tenant
		backendType string
		schemaName  sql.NullString
		connString  sql.NullString
	)
	err := row.Scan(&tenant.ID, &tenant.Name, &backendType, &schemaName, &connString,
		&tenant.MaxRows, &tenant.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dberror.ErrNotFound.Msg("database not found")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to retrieve tenant")
		return nil, dberror.ErrDatabase.Err(err)
	}

	backend, berr := backendFromRow(backendType, schemaName, connString)
	if berr != nil {
		return nil, berr
	}
	tenant.Backend = backend
	return &tenant, nil
}

func backendFromRow(backendType string, schemaName, connString sql.NullString) (gatecommon.Backend, apperrors.Error) {
	switch gatecommon.BackendKind(backendType) {
	case gatecommon.BackendShared:
		return gatecommon.SharedBackend(schemaName.String), nil
	case gatecommon.BackendDedicated:
		return gatecommon.DedicatedBackend(connString.String), nil
	default:
		return gatecommon.Backend{}, dberror.ErrDatabase.Msg("invalid backend type: " + backendType)
	}
}

// DeleteTenant deletes a tenant row, cascading its tokens through the
// foreign key. It reports whether a row existed. Backend namespaces are the
// provisioner's responsibility.
func (s *Store) DeleteTenant(ctx context.Context, id uuid.UUID) (bool, apperrors.Error) {
	return deleteTenant(ctx, s.db, id)
}

// DeleteTenant is the transactional variant used by the provisioner.
func (t *TxStore) DeleteTenant(ctx context.Context, id uuid.UUID) (bool, apperrors.Error) {
	return deleteTenant(ctx, t.q, id)
}

func deleteTenant(ctx context.Context, q querier, id uuid.UUID) (bool, apperrors.Error) {
	res, err := q.ExecContext(ctx, `DELETE FROM postgate_databases WHERE id = $1;`, id)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("tenant_id", id.String()).Msg("failed to delete tenant")
		return false, dberror.ErrDatabase.Err(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dberror.ErrDatabase.Err(err)
	}
	return n > 0, nil
}

// ListTenants returns all tenants, newest first.
func (s *Store) ListTenants(ctx context.Context) ([]*models.Tenant, apperrors.Error) {
	query := `
		SELECT id, name, backend_type, schema_name, connection_string, max_rows, created_at
		FROM postgate_databases
		ORDER BY created_at DESC;
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, dberror.ErrDatabase.Err(err)
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		var (
			tenant      models.Tenant
			backendType string
			schemaName  sql.NullString
			connString  sql.NullString
		)
		if err := rows.Scan(&tenant.ID, &tenant.Name, &backendType, &schemaName, &connString,
			&tenant.MaxRows, &tenant.CreatedAt); err != nil {
			return nil, dberror.ErrDatabase.Err(err)
		}
		backend, berr := backendFromRow(backendType, schemaName, connString)
		if berr != nil {
			continue
		}
		tenant.Backend = backend
		tenants = append(tenants, &tenant)
	}
	if err := rows.Err(); err != nil {
		return nil, dberror.ErrDatabase.Err(err)
	}
	return tenants, nil
}

// CreateToken inserts a token row. The tenant must exist (ErrNotFound) and
// the (tenant, name) pair must be free (ErrAlreadyExists).
func (s *Store) CreateToken(ctx context.Context, tok *models.Token) apperrors.Error {
	if err := tok.Validate(); err != nil {
		return dberror.ErrInvalidInput.Err(err)
	}
	if tok.ID == uuid.Nil {
		tok.ID = uuid.New()
	}
	if tok.Name == "" {
		tok.Name = "default"
	}

	ops := make(pq.StringArray, 0, len(tok.Operations))
	for _, op := range tok.Operations {
		ops = append(ops, string(op))
	}

	query := `
		INSERT INTO postgate_tokens (id, database_id, name, token_hash, token_prefix, allowed_operations)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at;
	`
	err := s.db.QueryRowContext(ctx, query,
		tok.ID, tok.TenantID, tok.Name, tok.Hash, tok.Prefix, ops,
	).Scan(&tok.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return dberror.ErrAlreadyExists.Msg("token name already in use")
		}
		if isForeignKeyViolation(err) {
			return dberror.ErrNotFound.Msg("database not found")
		}
		log.Ctx(ctx).Error().Err(err).Str("tenant_id", tok.TenantID.String()).Msg("failed to insert token")
		return dberror.ErrDatabase.Err(err)
	}
	return nil
}

// DeleteToken deletes a token row and reports whether it existed.
func (s *Store) DeleteToken(ctx context.Context, id uuid.UUID) (bool, apperrors.Error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM postgate_tokens WHERE id = $1;`, id)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("token_id", id.String()).Msg("failed to delete token")
		return false, dberror.ErrDatabase.Err(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dberror.ErrDatabase.Err(err)
	}
	return n > 0, nil
}

// GetTokenByHash is the authentication hot path: one indexed join resolving
// a token hash to the token and its tenant.
func (s *Store) GetTokenByHash(ctx context.Context, hash string) (*models.Token, *models.Tenant, apperrors.Error) {
	query := `
		SELECT t.id, t.database_id, t.name, t.token_hash, t.token_prefix, t.allowed_operations,
		       t.created_at, t.last_used_at,
		       d.id, d.name, d.backend_type, d.schema_name, d.connection_string, d.max_rows, d.created_at
		FROM postgate_tokens t
		JOIN postgate_databases d ON d.id = t.database_id
		WHERE t.token_hash = $1;
	`
	var (
		tok         models.Token
		tenant      models.Tenant
		ops         pq.StringArray
		lastUsed    sql.NullTime
		backendType string
		schemaName  sql.NullString
		connString  sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, hash).Scan(
		&tok.ID, &tok.TenantID, &tok.Name, &tok.Hash, &tok.Prefix, &ops,
		&tok.CreatedAt, &lastUsed,
		&tenant.ID, &tenant.Name, &backendType, &schemaName, &connString,
		&tenant.MaxRows, &tenant.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, dberror.ErrNotFound.Msg("token not found")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to look up token")
		return nil, nil, dberror.ErrDatabase.Err(err)
	}

	if lastUsed.Valid {
		t := lastUsed.Time
		tok.LastUsedAt = &t
	}
	for _, op := range ops {
		if parsed, perr := gatecommon.ParseOperation(op); perr == nil {
			tok.Operations = append(tok.Operations, parsed)
		}
	}

	backend, berr := backendFromRow(backendType, schemaName, connString)
	if berr != nil {
		return nil, nil, berr
	}
	tenant.Backend = backend
	return &tok, &tenant, nil
}

// ListTokens returns a tenant's tokens, newest first, without hashes.
func (s *Store) ListTokens(ctx context.Context, tenantID uuid.UUID) ([]*models.Token, apperrors.Error) {
	query := `
		SELECT id, database_id, name, token_prefix, allowed_operations, created_at, last_used_at
		FROM postgate_tokens
		WHERE database_id = $1
		ORDER BY created_at DESC;
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, dberror.ErrDatabase.Err(err)
	}
	defer rows.Close()

	var tokens []*models.Token
	for rows.Next() {
		var (
			tok      models.Token
			ops      pq.StringArray
			lastUsed sql.NullTime
		)
		if err := rows.Scan(&tok.ID, &tok.TenantID, &tok.Name, &tok.Prefix, &ops,
			&tok.CreatedAt, &lastUsed); err != nil {
			return nil, dberror.ErrDatabase.Err(err)
		}
		if lastUsed.Valid {
			t := lastUsed.Time
			tok.LastUsedAt = &t
		}
		for _, op := range ops {
			if parsed, perr := gatecommon.ParseOperation(op); perr == nil {
				tok.Operations = append(tok.Operations, parsed)
			}
		}
		tokens = append(tokens, &tok)
	}
	if err := rows.Err(); err != nil {
		return nil, dberror.ErrDatabase.Err(err)
	}
	return tokens, nil
}

// TouchToken updates last_used_at. Best effort; callers route it through the
// touch queue and tolerate loss.
func (s *Store) TouchToken(ctx context.Context, id uuid.UUID, when time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE postgate_tokens SET last_used_at = $2 WHERE id = $1;`, id, when)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
