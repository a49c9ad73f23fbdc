package middleware

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/relayonprem/control-plane/internal/store"
)

type contextKey string

const (
	principalKey contextKey = "principal"
	sessionIDKey contextKey = "session_id"
)

var ErrNoPrincipal = errors.New("no authenticated principal in context")

// WithPrincipal attaches the resolved user and its session to the context.
func WithPrincipal(ctx context.Context, user *store.User, sessionID uuid.UUID) context.Context {
	ctx = context.WithValue(ctx, principalKey, user)
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// GetPrincipal returns the authenticated user, or ErrNoPrincipal on
// anonymous requests.
func GetPrincipal(ctx context.Context) (*store.User, error) {
	user, ok := ctx.Value(principalKey).(*store.User)
	if !ok || user == nil {
		return nil, ErrNoPrincipal
	}
	return user, nil
}

// Principal returns the user or nil for routes that accept anonymous callers.
func Principal(ctx context.Context) *store.User {
	user, _ := ctx.Value(principalKey).(*store.User)
	return user
}

// GetSessionID returns the session the access token was minted for. Tokens
// issued before session binding have no session id; the zero UUID is
// returned for those.
func GetSessionID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(sessionIDKey).(uuid.UUID)
	return id
}
