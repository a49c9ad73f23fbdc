package share

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
	"github.com/relayonprem/control-plane/internal/store"
)

type discardDispatcher struct{}

func (discardDispatcher) Dispatch(context.Context, notify.Event) {}

func setupShareService(t *testing.T) (*Service, *store.Store) {
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
	svc := NewService(
		Config{PublicURL: "http://localhost:8080", SessionTTL: time.Hour},
		st,
		hasher, hasher,
		auth.NewJWTProvider("integration-secret", time.Hour),
		audit.NewRecorder(st),
		discardDispatcher{},
	)
	return svc, st
}

func createShareTestUser(t *testing.T, st *store.Store) *store.User {
	t.Helper()
	user, err := st.CreateUser(context.Background(), store.CreateUserParams{
		Email:         fmt.Sprintf("invites-%s@example.com", uuid.NewString()),
		PasswordHash:  "unused",
		EmailVerified: true,
	})
	require.NoError(t, err)
	return user
}

func TestRedeemInviteIdempotent(t *testing.T) {
	svc, st := setupShareService(t)
	ctx := context.Background()

	owner := createShareTestUser(t, st)
	member := createShareTestUser(t, st)

	sh, err := svc.CreateShare(ctx, owner, CreateShareInput{
		Kind:       store.ShareKindFolder,
		Path:       "team-" + uuid.NewString(),
		Visibility: store.VisibilityPrivate,
	}, auth.RequestMeta{})
	require.NoError(t, err)

	maxUses := int32(1)
	inv, err := svc.CreateInvite(ctx, owner, sh.ID, CreateInviteInput{
		Role:    store.RoleViewer,
		MaxUses: &maxUses,
	}, auth.RequestMeta{})
	require.NoError(t, err)

	first, err := svc.RedeemInvite(ctx, member, inv.Token, nil, auth.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, member.ID, first.UserID)
	assert.Equal(t, store.RoleViewer, first.Role)

	stored, err := st.GetInviteByToken(ctx, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, int32(1), stored.UseCount)

	// Clicking the link again must succeed for the same user without
	// consuming another use, even on an exhausted invite.
	second, err := svc.RedeemInvite(ctx, member, inv.Token, nil, auth.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, sh.ID, second.ShareID)

	stored, err = st.GetInviteByToken(ctx, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, int32(1), stored.UseCount)

	members, err := st.ListShareMembers(ctx, sh.ID)
	require.NoError(t, err)
	var memberships int
	for _, m := range members {
		if m.UserID == member.ID {
			memberships++
		}
	}
	assert.Equal(t, 1, memberships, "one membership row after repeated redemption")
}
