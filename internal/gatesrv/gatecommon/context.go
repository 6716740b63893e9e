package gatecommon

import (
	"context"
)

// ctxKeyType represents the type for all context keys.
type ctxKeyType string

const (
	ctxPolicyKey ctxKeyType = "GatePolicy"
)

// WithPolicy stores the authenticated policy in the context.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	return context.WithValue(ctx, ctxPolicyKey, p)
}

// GetPolicy retrieves the authenticated policy from the context. Returns nil
// if the request was not authenticated.
func GetPolicy(ctx context.Context) *Policy {
	if p, ok := ctx.Value(ctxPolicyKey).(*Policy); ok {
		return p
	}
	return nil
}
