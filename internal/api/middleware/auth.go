package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/relayonprem/control-plane/internal/api/helpers"
	"github.com/relayonprem/control-plane/internal/auth"
	"github.com/relayonprem/control-plane/internal/store"
)

// Authenticator validates bearer tokens and resolves principals.
type Authenticator struct {
	tokens auth.TokenProvider
	store  *store.Store
}

func NewAuthenticator(tokens auth.TokenProvider, st *store.Store) *Authenticator {
	return &Authenticator{tokens: tokens, store: st}
}

// resolve validates the Authorization header and loads the user. A nil user
// with a nil error means no credentials were presented.
func (a *Authenticator) resolve(r *http.Request) (*store.User, uuid.UUID, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, uuid.Nil, nil
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, uuid.Nil, auth.ErrInvalidToken
	}

	claims, err := a.tokens.ValidateToken(parts[1])
	if err != nil {
		return nil, uuid.Nil, err
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, uuid.Nil, auth.ErrInvalidToken
	}

	user, err := a.store.GetUserByID(r.Context(), userID)
	if err != nil {
		return nil, uuid.Nil, auth.ErrInvalidToken
	}
	if !user.IsActive {
		return nil, uuid.Nil, auth.ErrUserInactive
	}

	// Old tokens may carry no session id; tolerated.
	sessionID, _ := uuid.Parse(claims.SessionID)
	return user, sessionID, nil
}

// Require rejects requests without a valid token.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, sessionID, err := a.resolve(r)
		if err != nil {
			slog.Warn("auth_rejected", "error", err, "ip", helpers.GetRealIP(r))
			helpers.RespondError(w, r, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		if user == nil {
			helpers.RespondError(w, r, http.StatusUnauthorized, "Authorization required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), user, sessionID)))
	})
}

// Optional resolves a principal when a token is present but lets anonymous
// requests through. Presented-but-invalid tokens are still rejected.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, sessionID, err := a.resolve(r)
		if err != nil {
			helpers.RespondError(w, r, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		if user != nil {
			r = r.WithContext(WithPrincipal(r.Context(), user, sessionID))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin builds on Require and additionally checks the admin flag.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return a.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := GetPrincipal(r.Context())
		if err != nil || !user.IsAdmin {
			helpers.RespondError(w, r, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}
