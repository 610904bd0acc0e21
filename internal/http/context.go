package http

import (
	"context"

	"github.com/fjod/go_cart/storefront/internal/state"
)

type contextKey string

const (
	sessionIDKey contextKey = "session_id"
	identityKey  contextKey = "identity"
)

func withSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

func getSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}

func withIdentity(ctx context.Context, identity *state.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// getIdentity returns nil for guests.
func getIdentity(ctx context.Context) *state.Identity {
	if identity, ok := ctx.Value(identityKey).(*state.Identity); ok {
		return identity
	}
	return nil
}
