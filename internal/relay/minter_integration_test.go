package relay

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
	"github.com/relayonprem/control-plane/internal/auth"
	"github.com/relayonprem/control-plane/internal/crypto"
	"github.com/relayonprem/control-plane/internal/notify"
	"github.com/relayonprem/control-plane/internal/share"
	"github.com/relayonprem/control-plane/internal/store"
)

type discardDispatcher struct{}

func (discardDispatcher) Dispatch(context.Context, notify.Event) {}

func setupMinter(t *testing.T) (*Minter, *share.Service, *store.Store) {
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
	hasher := crypto.NewBcryptHasher()
	rec := audit.NewRecorder(st)
	shares := share.NewService(
		share.Config{PublicURL: "http://localhost:8080"},
		st,
		hasher, hasher,
		auth.NewJWTProvider("integration-secret", time.Hour),
		rec,
		discardDispatcher{},
	)

	keys, _, err := crypto.LoadRelayKeys("", "")
	require.NoError(t, err)
	m := NewMinter(Config{RelayURL: "wss://relay.example.com"}, keys, st, shares, rec)
	return m, shares, st
}

func TestIssueFilePathContainment(t *testing.T) {
	m, shares, st := setupMinter(t)
	ctx := context.Background()

	owner, err := st.CreateUser(ctx, store.CreateUserParams{
		Email:         fmt.Sprintf("minter-%s@example.com", uuid.NewString()),
		PasswordHash:  "unused",
		EmailVerified: true,
	})
	require.NoError(t, err)

	private, err := shares.CreateShare(ctx, owner, share.CreateShareInput{
		Kind:       store.ShareKindFolder,
		Path:       "team-" + uuid.NewString(),
		Visibility: store.VisibilityPrivate,
	}, auth.RequestMeta{})
	require.NoError(t, err)

	public, err := shares.CreateShare(ctx, owner, share.CreateShareInput{
		Kind:       store.ShareKindFolder,
		Path:       "pub-" + uuid.NewString(),
		Visibility: store.VisibilityPublic,
	}, auth.RequestMeta{})
	require.NoError(t, err)

	// A path under an unrelated share must not mint a token through the
	// named share, even when that other share would allow the access.
	_, err = m.Issue(ctx, nil, TokenRequest{
		ShareID:  private.ID,
		DocID:    "doc-1",
		Mode:     "read",
		FilePath: public.Path + "/note.md",
	})
	assert.ErrorIs(t, err, ErrDenied)

	// A path inside the named share resolves normally.
	tok, err := m.Issue(ctx, owner, TokenRequest{
		ShareID:  private.ID,
		DocID:    "doc-1",
		Mode:     "read",
		FilePath: private.Path + "/note.md",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, tok.Token)
	assert.Equal(t, "wss://relay.example.com", tok.RelayURL)
}
