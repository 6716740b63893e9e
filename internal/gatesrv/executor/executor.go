// Package executor runs validated statements inside tenant-scoped
// transactions. Each request gets one session, one transaction, a
// server-side statement timeout, and a streamed row scan bounded by the
// tenant's row cap. For shared backends the transaction's search_path is
// bound to the tenant schema plus postgate_helpers, which is what makes
// unqualified names safe.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgconn"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/postgate/postgate/internal/common/apperrors"
	"github.com/postgate/postgate/internal/gatesrv/db"
	"github.com/postgate/postgate/internal/gatesrv/db/dbmanager"
	"github.com/postgate/postgate/internal/gatesrv/gatecommon"
	"github.com/postgate/postgate/internal/gatesrv/sqlvalidator"
)

// pgQueryCanceled is the SQLSTATE raised when statement_timeout fires or a
// client cancel reaches the server.
const pgQueryCanceled = "57014"

// QueryResult is the successful response body of /query.
type QueryResult struct {
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}

// Executor runs validated statements against tenant backends.
type Executor struct {
	provider     *dbmanager.Provider
	queryTimeout time.Duration
	touch        *db.TouchWorker
}

// New creates an Executor. touch may be nil; last_used_at updates are then
// skipped.
func New(provider *dbmanager.Provider, queryTimeout time.Duration, touch *db.TouchWorker) *Executor {
	return &Executor{
		provider:     provider,
		queryTimeout: queryTimeout,
		touch:        touch,
	}
}

// Execute runs a validated statement under the given policy and returns the
// serialized rows. The transaction commits only on a fully successful read;
// every failure path rolls back.
func (e *Executor) Execute(ctx context.Context, policy *gatecommon.Policy, parsed *sqlvalidator.ParsedQuery, params []any) (*QueryResult, apperrors.Error) {
	sess, err := e.provider.SessionFor(ctx, policy.Backend)
	if err != nil {
		if appErr, ok := err.(apperrors.Error); ok {
			return nil, appErr
		}
		return nil, ErrDatabase.Err(err)
	}
	// Close with a background context so the session returns to its pool
	// even when the request context is already cancelled.
	defer sess.Close(context.Background())

	tx, txErr := sess.Conn().BeginTx(ctx, nil)
	if txErr != nil {
		return nil, e.classify(ctx, txErr)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if err := e.scopeTransaction(ctx, tx, policy); err != nil {
		return nil, err
	}

	result, execErr := e.run(ctx, tx, parsed, params, policy.MaxRows)
	if execErr != nil {
		return nil, execErr
	}

	if err := tx.Commit(); err != nil {
		return nil, e.classify(ctx, err)
	}
	committed = true

	if e.touch != nil {
		e.touch.Enqueue(policy.TokenID, time.Now().UTC())
	}
	return result, nil
}

// scopeTransaction applies the per-transaction settings: the statement
// timeout always, and for shared backends the tenant-bound search_path.
// Dedicated backends keep the remote's default search_path.
func (e *Executor) scopeTransaction(ctx context.Context, tx *sql.Tx, policy *gatecommon.Policy) apperrors.Error {
	timeoutMs := strconv.FormatInt(e.queryTimeout.Milliseconds(), 10)
	if _, err := tx.ExecContext(ctx,
		"SET LOCAL statement_timeout = "+pq.QuoteLiteral(timeoutMs)); err != nil {
		return e.classify(ctx, err)
	}

	if policy.Backend.Kind() == gatecommon.BackendShared {
		setPath := fmt.Sprintf("SET LOCAL search_path TO %s, %s",
			pq.QuoteIdentifier(policy.Backend.SchemaName()),
			sqlvalidator.HelperSchema)
		if _, err := tx.ExecContext(ctx, setPath); err != nil {
			return e.classify(ctx, err)
		}
	}
	return nil
}

// run executes the statement. Statements that return rows are streamed with
// the row-cap peek; everything else is executed without a result set.
func (e *Executor) run(ctx context.Context, tx *sql.Tx, parsed *sqlvalidator.ParsedQuery, params []any, maxRows int) (*QueryResult, apperrors.Error) {
	args := bindParams(params)

	if !parsed.ReturnsRows {
		if _, err := tx.ExecContext(ctx, parsed.SQL, args...); err != nil {
			return nil, e.classify(ctx, err)
		}
		return &QueryResult{Rows: []map[string]any{}, RowCount: 0}, nil
	}

	rows, err := tx.QueryContext(ctx, parsed.SQL, args...)
	if err != nil {
		return nil, e.classify(ctx, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, e.classify(ctx, err)
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, e.classify(ctx, err)
	}

	out := make([]map[string]any, 0)
	for rows.Next() {
		// Fetch one row beyond the cap to detect overflow before
		// materializing the full result.
		if len(out) >= maxRows {
			log.Ctx(ctx).Info().Int("max_rows", maxRows).Msg("row limit exceeded")
			return nil, ErrRowLimitExceeded.Msg(fmt.Sprintf("row limit exceeded (max: %d)", maxRows))
		}

		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, e.classify(ctx, err)
		}

		row := make(map[string]any, len(cols))
		for i, name := range cols {
			// First occurrence wins on duplicate column names.
			if _, exists := row[name]; exists {
				continue
			}
			row[name] = jsonValue(values[i], colTypes[i].DatabaseTypeName())
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, e.classify(ctx, err)
	}

	return &QueryResult{Rows: out, RowCount: len(out)}, nil
}

// classify maps a driver error to the error taxonomy. Statement timeouts and
// request cancellation surface as Timeout; everything else is a database
// error whose primary message is safe to show (it concerns the caller's own
// statement).
func (e *Executor) classify(ctx context.Context, err error) apperrors.Error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgQueryCanceled {
			return ErrTimeout
		}
		log.Ctx(ctx).Error().Str("sqlstate", pgErr.Code).Str("detail", pgErr.Message).Msg("database error")
		return ErrDatabase.Msg("database error: " + pgErr.Message)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	log.Ctx(ctx).Error().Err(err).Msg("database error")
	return ErrDatabase
}
