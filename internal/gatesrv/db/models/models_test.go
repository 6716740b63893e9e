package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/postgate/postgate/internal/common/uuid"
	"github.com/postgate/postgate/internal/gatesrv/db/dberror"
	"github.com/postgate/postgate/internal/gatesrv/gatecommon"
)

func TestTenantValidate(t *testing.T) {
	tenant := &Tenant{
		Name:    "app",
		Backend: gatecommon.SharedBackend("tenant_abc_app"),
		MaxRows: 100,
	}
	assert.NoError(t, tenant.Validate())
}

func TestTenantValidateRejectsMissingBackend(t *testing.T) {
	tenant := &Tenant{Name: "app", MaxRows: 100}
	assert.ErrorIs(t, tenant.Validate(), dberror.ErrInvalidInput)
}

func TestTenantValidateRejectsEmptySchema(t *testing.T) {
	tenant := &Tenant{
		Name:    "app",
		Backend: gatecommon.SharedBackend(""),
		MaxRows: 100,
	}
	assert.ErrorIs(t, tenant.Validate(), dberror.ErrInvalidInput)
}

func TestTenantValidateRejectsNonPositiveRowCap(t *testing.T) {
	tenant := &Tenant{
		Name:    "app",
		Backend: gatecommon.DedicatedBackend("postgres://elsewhere/db"),
		MaxRows: 0,
	}
	assert.ErrorIs(t, tenant.Validate(), dberror.ErrInvalidInput)
}

func TestTokenValidate(t *testing.T) {
	tok := &Token{
		TenantID:   uuid.New(),
		Name:       "default",
		Hash:       "abc123",
		Operations: gatecommon.DefaultOperations,
	}
	assert.NoError(t, tok.Validate())
}

func TestTokenValidateRejectsEmptyHash(t *testing.T) {
	tok := &Token{TenantID: uuid.New(), Name: "default"}
	assert.ErrorIs(t, tok.Validate(), dberror.ErrInvalidInput)
}

func TestTokenOperationSet(t *testing.T) {
	tok := &Token{Operations: []gatecommon.Operation{gatecommon.OpSelect}}
	set := tok.OperationSet()
	assert.True(t, set.Contains(gatecommon.OpSelect))
	assert.False(t, set.Contains(gatecommon.OpInsert))
}
