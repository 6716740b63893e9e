package dbmanager

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/postgate/postgate/internal/gatesrv/db/dberror"
	"github.com/postgate/postgate/internal/gatesrv/gatecommon"
)

// dedicatedMaxConns caps each per-tenant pool. Dedicated pools serve a
// single tenant and stay small.
const dedicatedMaxConns = 10

// Provider maps a tenant backend to a live session. Shared backends draw
// from the single host pool; dedicated backends draw from per-DSN pools
// created on first use and retained for the process lifetime.
type Provider struct {
	shared Pool
	opts   Options

	mu        sync.Mutex
	dedicated map[string]Pool
}

// NewProvider builds a Provider over the shared host pool.
func NewProvider(shared Pool, opts Options) *Provider {
	return &Provider{
		shared:    shared,
		opts:      opts.withDefaults(),
		dedicated: make(map[string]Pool),
	}
}

// Shared returns the host database pool.
func (p *Provider) Shared() Pool {
	return p.shared
}

// SessionFor acquires a session on the backend serving the given tenant
// backend variant.
func (p *Provider) SessionFor(ctx context.Context, backend gatecommon.Backend) (Session, error) {
	switch backend.Kind() {
	case gatecommon.BackendShared:
		return p.shared.Session(ctx)
	case gatecommon.BackendDedicated:
		pool, err := p.dedicatedPool(ctx, backend.DSN())
		if err != nil {
			return nil, err
		}
		return pool.Session(ctx)
	default:
		return nil, dberror.ErrInvalidInput.Msg("tenant has no backend")
	}
}

// dedicatedPool returns the pool for dsn, creating it on first use. Pools
// are never evicted; the working set of dedicated tenants is expected to be
// bounded.
func (p *Provider) dedicatedPool(ctx context.Context, dsn string) (Pool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pool, ok := p.dedicated[dsn]; ok {
		return pool, nil
	}

	opts := p.opts
	opts.MaxOpenConns = dedicatedMaxConns
	opts.MaxIdleConns = 2
	pool, err := NewPostgresqlPool(dsn, opts)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to create dedicated pool")
		return nil, dberror.ErrDatabase.Err(err)
	}
	p.dedicated[dsn] = pool
	return pool, nil
}

// Close tears down the shared pool and every dedicated pool.
func (p *Provider) Close() {
	p.shared.Close()
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pool := range p.dedicated {
		pool.Close()
	}
}
