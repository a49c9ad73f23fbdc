package share

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayonprem/control-plane/internal/crypto"
	"github.com/relayonprem/control-plane/internal/store"
)

func TestDecide(t *testing.T) {
	hasher := crypto.NewBcryptHasher()
	passwordHash, err := hasher.Hash("hunter22")
	require.NoError(t, err)

	owner := &store.User{ID: uuid.New()}
	admin := &store.User{ID: uuid.New(), IsAdmin: true}
	stranger := &store.User{ID: uuid.New()}

	private := &store.Share{ID: uuid.New(), OwnerUserID: owner.ID, Visibility: store.VisibilityPrivate}
	public := &store.Share{ID: uuid.New(), OwnerUserID: owner.ID, Visibility: store.VisibilityPublic}
	protected := &store.Share{
		ID: uuid.New(), OwnerUserID: owner.ID,
		Visibility: store.VisibilityProtected, PasswordHash: passwordHash,
	}

	viewer := &store.ShareMember{Role: store.RoleViewer}
	editor := &store.ShareMember{Role: store.RoleEditor}

	tests := []struct {
		name      string
		principal *store.User
		share     *store.Share
		member    *store.ShareMember
		action    Action
		password  string
		want      bool
	}{
		{"admin writes anything", admin, private, nil, ActionWrite, "", true},
		{"owner writes own share", owner, private, nil, ActionWrite, "", true},
		{"editor writes", stranger, private, editor, ActionWrite, "", true},
		{"editor reads", stranger, private, editor, ActionRead, "", true},
		{"viewer reads", stranger, private, viewer, ActionRead, "", true},
		{"viewer cannot write", stranger, private, viewer, ActionWrite, "", false},
		{"stranger denied on private", stranger, private, nil, ActionRead, "", false},
		{"anonymous denied on private", nil, private, nil, ActionRead, "", false},
		{"anonymous reads public", nil, public, nil, ActionRead, "", true},
		{"anonymous cannot write public", nil, public, nil, ActionWrite, "", false},
		{"protected with password", nil, protected, nil, ActionRead, "hunter22", true},
		{"protected wrong password", nil, protected, nil, ActionRead, "wrong", false},
		{"protected no password", nil, protected, nil, ActionRead, "", false},
		{"protected write denied despite password", nil, protected, nil, ActionWrite, "hunter22", false},
		// Membership decides before visibility: a viewer on a public
		// share still cannot write.
		{"viewer on public cannot write", stranger, public, viewer, ActionWrite, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decide(AccessRequest{
				Principal:         tt.principal,
				Share:             tt.share,
				Action:            tt.action,
				PresentedPassword: tt.password,
			}, tt.member, hasher)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanManage(t *testing.T) {
	owner := &store.User{ID: uuid.New()}
	admin := &store.User{ID: uuid.New(), IsAdmin: true}
	other := &store.User{ID: uuid.New()}
	sh := &store.Share{OwnerUserID: owner.ID}

	assert.True(t, CanManage(owner, sh))
	assert.True(t, CanManage(admin, sh))
	assert.False(t, CanManage(other, sh))
	assert.False(t, CanManage(nil, sh))
}
