package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postgate/postgate/internal/common/uuid"
	"github.com/postgate/postgate/internal/gatesrv/db/dbtest"
	"github.com/postgate/postgate/internal/gatesrv/db/models"
	"github.com/postgate/postgate/internal/gatesrv/gatecommon"
	"github.com/postgate/postgate/internal/gatesrv/token"
)

func seedStore(t *testing.T) (*dbtest.StubStore, string, *models.Tenant) {
	t.Helper()
	store := dbtest.NewStubStore()

	secret, err := token.Mint()
	require.Nil(t, err)

	tenant := &models.Tenant{
		ID:      uuid.New(),
		Name:    "app",
		Backend: gatecommon.SharedBackend("tenant_abc123_app"),
		MaxRows: 100,
	}
	tok := &models.Token{
		ID:         uuid.New(),
		TenantID:   tenant.ID,
		Name:       "default",
		Hash:       token.Hash(secret),
		Prefix:     token.Prefix(secret),
		Operations: gatecommon.DefaultOperations,
	}
	store.Add(tenant, tok)
	return store, secret, tenant
}

func TestAuthenticateBearer(t *testing.T) {
	store, secret, tenant := seedStore(t)

	ctx, err := Authenticate(context.Background(), store, "Bearer "+secret)
	require.Nil(t, err)

	policy := gatecommon.GetPolicy(ctx)
	require.NotNil(t, policy)
	assert.Equal(t, tenant.ID, policy.TenantID)
	assert.Equal(t, 100, policy.MaxRows)
	assert.True(t, policy.Operations.Contains(gatecommon.OpSelect))
	assert.False(t, policy.Operations.Contains(gatecommon.OpDrop))
}

func TestAuthenticateMissingHeader(t *testing.T) {
	store, _, _ := seedStore(t)

	_, err := Authenticate(context.Background(), store, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticatePlainTokenRejected(t *testing.T) {
	// Only the Bearer scheme is accepted.
	store, secret, _ := seedStore(t)

	_, err := Authenticate(context.Background(), store, secret)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticateMalformedSecret(t *testing.T) {
	store, _, _ := seedStore(t)

	// Right length, wrong alphabet.
	bad := "pg_" + strings.Repeat("zz", 32)
	_, err := Authenticate(context.Background(), store, "Bearer "+bad)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = Authenticate(context.Background(), store, "Bearer invalid_token")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticateUnknownToken(t *testing.T) {
	store, _, _ := seedStore(t)

	other, merr := token.Mint()
	require.Nil(t, merr)
	_, err := Authenticate(context.Background(), store, "Bearer "+other)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticateTenantVanished(t *testing.T) {
	store, secret, tenant := seedStore(t)
	// Simulate the tenant row disappearing while the token row survives.
	delete(store.Tenants, tenant.ID)

	_, err := Authenticate(context.Background(), store, "Bearer "+secret)
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

func TestDeletedTokenRevokesImmediately(t *testing.T) {
	store, secret, _ := seedStore(t)

	ctx, err := Authenticate(context.Background(), store, "Bearer "+secret)
	require.Nil(t, err)
	policy := gatecommon.GetPolicy(ctx)

	existed, derr := store.DeleteToken(context.Background(), policy.TokenID)
	require.Nil(t, derr)
	assert.True(t, existed)

	_, err = Authenticate(context.Background(), store, "Bearer "+secret)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
