package models

import (
	"time"

	"github.com/postgate/postgate/internal/common/uuid"
	"github.com/postgate/postgate/internal/gatesrv/db/dberror"
	"github.com/postgate/postgate/internal/gatesrv/gatecommon"
)

// Token is a bearer credential bound to one tenant. Only the SHA-256 hash of
// the secret is stored; the plaintext is returned once at creation and is
// unrecoverable afterwards.
type Token struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Name       string
	Hash       string
	Prefix     string
	Operations []gatecommon.Operation
	CreatedAt  time.Time
	LastUsedAt *time.Time
}

func (t *Token) Validate() error {
	if t.TenantID == uuid.Nil {
		return dberror.ErrInvalidInput.Msg("tenant id is required")
	}
	if t.Name == "" {
		return dberror.ErrInvalidInput.Msg("name is required")
	}
	if t.Hash == "" {
		return dberror.ErrInvalidInput.Msg("token hash is required")
	}
	return nil
}

// OperationSet returns the token's permissions as a set.
func (t *Token) OperationSet() gatecommon.OperationSet {
	return gatecommon.NewOperationSet(t.Operations...)
}
