// Package dbtest provides an in-memory Store for handler and middleware
// tests that do not need a live database.
package dbtest

import (
	"context"
	"sync"
	"time"

	"github.com/postgate/postgate/internal/common/apperrors"
	"github.com/postgate/postgate/internal/common/uuid"
	"github.com/postgate/postgate/internal/gatesrv/db/dberror"
	"github.com/postgate/postgate/internal/gatesrv/db/models"
)

// StubStore is a minimal in-memory implementation of db.Store.
type StubStore struct {
	mu      sync.Mutex
	Tenants map[uuid.UUID]*models.Tenant
	Tokens  map[uuid.UUID]*models.Token
	Touched []uuid.UUID
}

// NewStubStore returns an empty stub store.
func NewStubStore() *StubStore {
	return &StubStore{
		Tenants: make(map[uuid.UUID]*models.Tenant),
		Tokens:  make(map[uuid.UUID]*models.Token),
	}
}

// Add inserts a tenant and token pair directly.
func (s *StubStore) Add(tenant *models.Tenant, tok *models.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tenant != nil {
		s.Tenants[tenant.ID] = tenant
	}
	if tok != nil {
		s.Tokens[tok.ID] = tok
	}
}

func (s *StubStore) CreateTenant(ctx context.Context, tenant *models.Tenant) apperrors.Error {
	if tenant.ID == uuid.Nil {
		tenant.ID = uuid.New()
	}
	tenant.CreatedAt = time.Now().UTC()
	s.Add(tenant, nil)
	return nil
}

func (s *StubStore) GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.Tenants[id]; ok {
		return t, nil
	}
	return nil, dberror.ErrNotFound.Msg("database not found")
}

func (s *StubStore) DeleteTenant(ctx context.Context, id uuid.UUID) (bool, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Tenants[id]; !ok {
		return false, nil
	}
	delete(s.Tenants, id)
	for tid, tok := range s.Tokens {
		if tok.TenantID == id {
			delete(s.Tokens, tid)
		}
	}
	return true, nil
}

func (s *StubStore) ListTenants(ctx context.Context) ([]*models.Tenant, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Tenant, 0, len(s.Tenants))
	for _, t := range s.Tenants {
		out = append(out, t)
	}
	return out, nil
}

func (s *StubStore) CreateToken(ctx context.Context, tok *models.Token) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Tenants[tok.TenantID]; !ok {
		return dberror.ErrNotFound.Msg("database not found")
	}
	for _, existing := range s.Tokens {
		if existing.TenantID == tok.TenantID && existing.Name == tok.Name {
			return dberror.ErrAlreadyExists.Msg("token name already in use")
		}
	}
	if tok.ID == uuid.Nil {
		tok.ID = uuid.New()
	}
	tok.CreatedAt = time.Now().UTC()
	s.Tokens[tok.ID] = tok
	return nil
}

func (s *StubStore) DeleteToken(ctx context.Context, id uuid.UUID) (bool, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Tokens[id]; !ok {
		return false, nil
	}
	delete(s.Tokens, id)
	return true, nil
}

func (s *StubStore) GetTokenByHash(ctx context.Context, hash string) (*models.Token, *models.Tenant, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tok := range s.Tokens {
		if tok.Hash == hash {
			tenant := s.Tenants[tok.TenantID]
			return tok, tenant, nil
		}
	}
	return nil, nil, dberror.ErrNotFound.Msg("token not found")
}

func (s *StubStore) ListTokens(ctx context.Context, tenantID uuid.UUID) ([]*models.Token, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Token, 0)
	for _, tok := range s.Tokens {
		if tok.TenantID == tenantID {
			out = append(out, tok)
		}
	}
	return out, nil
}

func (s *StubStore) TouchToken(ctx context.Context, id uuid.UUID, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Touched = append(s.Touched, id)
	return nil
}
