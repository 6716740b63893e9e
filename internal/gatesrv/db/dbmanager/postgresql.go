package dbmanager

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/rs/zerolog/log"

	"github.com/postgate/postgate/internal/gatesrv/db/dberror"
)

// postgresPool is a Pool over a pgx stdlib *sql.DB.
type postgresPool struct {
	db             *sql.DB
	acquireTimeout time.Duration
	connRequests   uint64
	connReturns    uint64
}

// postgresSession is one checked-out connection.
type postgresSession struct {
	conn *sql.Conn
	pool *postgresPool
}

// NewPostgresqlPool opens a connection pool against dsn. Connections are
// established lazily; call Ping to verify reachability.
func NewPostgresqlPool(dsn string, opts Options) (Pool, error) {
	opts = opts.withDefaults()

	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	return &postgresPool{
		db:             sqlDB,
		acquireTimeout: opts.AcquireTimeout,
	}, nil
}

// Ping verifies the pool can reach its backend.
func Ping(ctx context.Context, p Pool) error {
	pp, ok := p.(*postgresPool)
	if !ok {
		return fmt.Errorf("unsupported pool type")
	}
	return pp.db.PingContext(ctx)
}

// DB exposes the underlying *sql.DB of a pool for callers that manage their
// own statements, such as the migration runner and the touch worker.
func DB(p Pool) *sql.DB {
	if pp, ok := p.(*postgresPool); ok {
		return pp.db
	}
	return nil
}

// Session checks out a single connection. The wait is bounded by the
// configured acquire timeout; when the pool is exhausted the caller gets
// dberror.ErrUnavailable rather than queueing indefinitely.
func (p *postgresPool) Session(ctx context.Context) (Session, error) {
	acquireCtx, cancelAcquire := context.WithTimeout(ctx, p.acquireTimeout)
	conn, err := p.db.Conn(acquireCtx)
	cancelAcquire()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			log.Ctx(ctx).Error().Msg("session pool exhausted")
			return nil, dberror.ErrUnavailable.Msg("no database session available")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to obtain connection")
		return nil, dberror.ErrDatabase.Err(err)
	}

	atomic.AddUint64(&p.connRequests, 1)
	return &postgresSession{
		conn: conn,
		pool: p,
	}, nil
}

// Stats returns the number of session requests and returns.
func (p *postgresPool) Stats() (requests, returns uint64) {
	return atomic.LoadUint64(&p.connRequests), atomic.LoadUint64(&p.connReturns)
}

// Close tears down the pool.
func (p *postgresPool) Close() error {
	return p.db.Close()
}

// Conn returns the underlying connection.
func (s *postgresSession) Conn() *sql.Conn {
	return s.conn
}

// Close returns the connection to the pool. Safe to call once per session
// regardless of request outcome.
func (s *postgresSession) Close(ctx context.Context) {
	if s.conn == nil {
		return
	}
	if err := s.conn.Close(); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to return connection to pool")
	}
	s.conn = nil
	atomic.AddUint64(&s.pool.connReturns, 1)
}
