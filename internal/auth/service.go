// Package auth implements authentication and session lifecycle: password
// login, TOTP second factor, single-use refresh-token rotation, password
// reset and email verification.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/relayonprem/control-plane/internal/audit"
	"github.com/relayonprem/control-plane/internal/crypto"
	"github.com/relayonprem/control-plane/internal/notify"
	"github.com/relayonprem/control-plane/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTwoFactorRequired  = errors.New("two-factor authentication required")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user is deactivated")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrTOTPNotEnabled     = errors.New("totp not enabled for user")
	ErrTOTPAlreadyOn      = errors.New("totp already enabled")
	ErrEmailTaken         = errors.New("email already registered")
	ErrSessionNotFound    = errors.New("session not found")
	ErrNotOwnSession      = errors.New("cannot revoke another user's session")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// Dispatcher fans a domain event out to webhooks and queued emails.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev notify.Event)
}

// Config holds auth service tunables.
type Config struct {
	RefreshTokenTTL  time.Duration
	PasswordResetTTL time.Duration
	PublicURL        string // base URL for reset/verification links
	TOTPIssuer       string
}

// Service orchestrates the authentication flow. It is agnostic of HTTP
// transport (chi) and carries no request state.
type Service struct {
	config   Config
	store    *store.Store
	hasher   crypto.PasswordHasher
	tokens   TokenProvider
	audit    *audit.Recorder
	dispatch Dispatcher
}

func NewService(
	config Config,
	st *store.Store,
	hasher crypto.PasswordHasher,
	tokens TokenProvider,
	rec *audit.Recorder,
	dispatch Dispatcher,
) *Service {
	if config.RefreshTokenTTL == 0 {
		config.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if config.PasswordResetTTL == 0 {
		config.PasswordResetTTL = time.Hour
	}
	if config.TOTPIssuer == "" {
		config.TOTPIssuer = "RelayOnPrem"
	}
	return &Service{
		config:   config,
		store:    st,
		hasher:   hasher,
		tokens:   tokens,
		audit:    rec,
		dispatch: dispatch,
	}
}

// RequestMeta carries per-request context recorded in sessions and audit rows.
type RequestMeta struct {
	IPAddress  string
	UserAgent  string
	DeviceName string
}

// ValidateNewPassword enforces the minimum password policy. It is shared
// with invite redemption, which also registers users.
func ValidateNewPassword(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	return nil
}
