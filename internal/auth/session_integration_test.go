package auth

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayonprem/control-plane/internal/audit"
	"github.com/relayonprem/control-plane/internal/crypto"
	"github.com/relayonprem/control-plane/internal/notify"
	"github.com/relayonprem/control-plane/internal/store"
)

// discardDispatcher drops events; integration tests exercise the session
// store, not the fanout.
type discardDispatcher struct{}

func (discardDispatcher) Dispatch(context.Context, notify.Event) {}

func setupAuthService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	st := store.New(pool)
	svc := NewService(
		Config{RefreshTokenTTL: time.Hour, PublicURL: "http://localhost:8080"},
		st,
		crypto.NewBcryptHasher(),
		NewJWTProvider("integration-secret", time.Hour),
		audit.NewRecorder(st),
		discardDispatcher{},
	)
	return svc, st
}

func createAuthTestUser(t *testing.T, svc *Service, st *store.Store, password string) *store.User {
	t.Helper()
	hash, err := svc.hasher.Hash(password)
	require.NoError(t, err)
	user, err := st.CreateUser(context.Background(), store.CreateUserParams{
		Email:         fmt.Sprintf("sessions-%s@example.com", uuid.NewString()),
		PasswordHash:  hash,
		EmailVerified: true,
	})
	require.NoError(t, err)
	return user
}

func TestRefreshRotationSingleUse(t *testing.T) {
	svc, st := setupAuthService(t)
	ctx := context.Background()

	user := createAuthTestUser(t, svc, st, "rotation-pass-1")
	login, err := svc.Login(ctx, user.Email, "rotation-pass-1", RequestMeta{IPAddress: "127.0.0.1"})
	require.NoError(t, err)

	rotated, err := svc.Refresh(ctx, login.RefreshToken, RequestMeta{IPAddress: "127.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, login.SessionID, rotated.SessionID, "rotation keeps the session id")
	assert.NotEqual(t, login.RefreshToken, rotated.RefreshToken)

	// Replaying the consumed token must fail.
	_, err = svc.Refresh(ctx, login.RefreshToken, RequestMeta{IPAddress: "127.0.0.1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// The rotated token stays valid.
	again, err := svc.Refresh(ctx, rotated.RefreshToken, RequestMeta{IPAddress: "127.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, login.SessionID, again.SessionID)
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	svc, st := setupAuthService(t)
	ctx := context.Background()

	user := createAuthTestUser(t, svc, st, "before-change-1")
	login, err := svc.Login(ctx, user.Email, "before-change-1", RequestMeta{})
	require.NoError(t, err)
	other, err := svc.Login(ctx, user.Email, "before-change-1", RequestMeta{DeviceName: "tablet"})
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, user, "before-change-1", "after-change-1", RequestMeta{})
	require.NoError(t, err)

	// Every pre-change refresh token is dead.
	_, err = svc.Refresh(ctx, login.RefreshToken, RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Refresh(ctx, other.RefreshToken, RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// The new password works and the old one does not.
	_, err = svc.Login(ctx, user.Email, "before-change-1", RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	fresh, err := svc.Login(ctx, user.Email, "after-change-1", RequestMeta{})
	require.NoError(t, err)
	assert.NotEmpty(t, fresh.RefreshToken)
}
