package oauth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/relayonprem/control-plane/internal/audit"
	"github.com/relayonprem/control-plane/internal/auth"
	"github.com/relayonprem/control-plane/internal/notify"
	"github.com/relayonprem/control-plane/internal/store"
)

var (
	ErrDisabled            = errors.New("oauth login is not enabled")
	ErrProviderUnreachable = errors.New("identity provider unreachable")
	ErrMissingSubject      = errors.New("userinfo response is missing the subject")
	ErrAccountLinked       = errors.New("this identity is already linked to another user")
	ErrRegistrationClosed  = errors.New("no account exists for this identity and auto-registration is off")
	ErrUserInactive        = errors.New("user is deactivated")
)

// Config describes the single env-configured OIDC provider.
type Config struct {
	Enabled      bool
	ProviderName string
	IssuerURL    string
	ClientID     string
	ClientSecret string
	Scopes       []string
	AutoRegister bool
	SyncUserInfo bool
	AdminGroups  []string
	// DefaultAdmin makes auto-registered users admins when no admin
	// groups are configured.
	DefaultAdmin bool
}

// Dispatcher fans a domain event out to webhooks and queued emails.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev notify.Event)
}

// Broker runs the authorization-code flow with PKCE against the configured
// provider and maps provider identities onto local users.
type Broker struct {
	config   Config
	store    *store.Store
	sessions *auth.Service
	audit    *audit.Recorder
	dispatch Dispatcher

	// Provider discovery happens lazily on first use so the control
	// plane starts even when the IdP is briefly down.
	mu          sync.Mutex
	provider    *oidc.Provider
	providerRow *store.OAuthProvider
}

func NewBroker(config Config, st *store.Store, sessions *auth.Service, rec *audit.Recorder, dispatch Dispatcher) *Broker {
	if config.ProviderName == "" {
		config.ProviderName = "oidc"
	}
	if len(config.Scopes) == 0 {
		config.Scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}
	return &Broker{config: config, store: st, sessions: sessions, audit: rec, dispatch: dispatch}
}

// Enabled reports whether the broker is configured.
func (b *Broker) Enabled() bool {
	return b.config.Enabled && b.config.IssuerURL != "" && b.config.ClientID != ""
}

// ensureProvider discovers the OIDC endpoints and materializes the provider
// row used as the foreign key for linked accounts.
func (b *Broker) ensureProvider(ctx context.Context) (*oidc.Provider, *store.OAuthProvider, error) {
	if !b.Enabled() {
		return nil, nil, ErrDisabled
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.provider == nil {
		p, err := oidc.NewProvider(ctx, b.config.IssuerURL)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
		}
		b.provider = p
	}

	if b.providerRow == nil {
		row, err := b.store.GetOAuthProviderByName(ctx, b.config.ProviderName)
		if errors.Is(err, store.ErrNotFound) {
			row, err = b.store.CreateOAuthProvider(ctx, store.CreateOAuthProviderParams{
				Name:         b.config.ProviderName,
				IssuerURL:    b.config.IssuerURL,
				ClientID:     b.config.ClientID,
				Enabled:      true,
				AutoRegister: b.config.AutoRegister,
			})
		}
		if err != nil {
			return nil, nil, fmt.Errorf("provider row lookup failed: %w", err)
		}
		b.providerRow = row
	}

	return b.provider, b.providerRow, nil
}

func (b *Broker) oauth2Config(provider *oidc.Provider, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     b.config.ClientID,
		ClientSecret: b.config.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  redirectURI,
		Scopes:       b.config.Scopes,
	}
}

// AuthorizeURL starts a login attempt: it generates the PKCE verifier,
// packages it into the state and builds the provider's authorize URL.
func (b *Broker) AuthorizeURL(ctx context.Context, redirectURI, returnURL string) (authorizeURL, state string, err error) {
	provider, _, err := b.ensureProvider(ctx)
	if err != nil {
		return "", "", err
	}

	st := NewState(redirectURI, returnURL)
	if state, err = st.Encode(); err != nil {
		return "", "", err
	}

	cfg := b.oauth2Config(provider, redirectURI)
	authorizeURL = cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(st.CodeVerifier))
	return authorizeURL, state, nil
}

// Identity is the profile extracted from the provider's userinfo response.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Picture string
	Groups  []string
}

// CallbackResult is a completed OAuth login.
type CallbackResult struct {
	Login     *auth.LoginResult
	ReturnURL string
	// LinkedNow is set when this callback linked the provider identity to
	// an existing local account for the first time.
	LinkedNow bool
}

// Callback finishes a login attempt: code exchange with PKCE, userinfo
// fetch, user resolution and session issuance.
func (b *Broker) Callback(ctx context.Context, code, stateParam string, meta auth.RequestMeta) (*CallbackResult, error) {
	provider, providerRow, err := b.ensureProvider(ctx)
	if err != nil {
		return nil, err
	}

	st, err := DecodeState(stateParam)
	if err != nil {
		return nil, err
	}

	cfg := b.oauth2Config(provider, st.RedirectURI)
	token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(st.CodeVerifier))
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange failed: %v", ErrProviderUnreachable, err)
	}

	identity, err := b.fetchIdentity(ctx, provider, token)
	if err != nil {
		return nil, err
	}

	user, linkedNow, err := b.resolveUser(ctx, providerRow, identity)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	if meta.DeviceName == "" {
		meta.DeviceName = fmt.Sprintf("OAuth (%s)", b.config.ProviderName)
	}
	login, err := b.sessions.IssueSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	b.audit.Log(ctx, audit.Entry{
		Action:      audit.ActionOAuthLogin,
		ActorUserID: &user.ID,
		Details:     map[string]any{"provider": b.config.ProviderName},
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
	})
	b.dispatch.Dispatch(ctx, notify.Event{
		Type:  notify.EventOAuthLogin,
		Actor: user,
		Data:  map[string]any{"provider": b.config.ProviderName},
		Meta:  notify.Meta{IPAddress: meta.IPAddress, UserAgent: meta.UserAgent},
	})

	return &CallbackResult{Login: login, ReturnURL: st.ReturnURL, LinkedNow: linkedNow}, nil
}

// fetchIdentity calls the userinfo endpoint and extracts the profile.
func (b *Broker) fetchIdentity(ctx context.Context, provider *oidc.Provider, token *oauth2.Token) (*Identity, error) {
	userInfo, err := provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo fetch failed: %v", ErrProviderUnreachable, err)
	}
	if userInfo.Subject == "" {
		return nil, ErrMissingSubject
	}

	var claims map[string]any
	if err := userInfo.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse userinfo claims: %w", err)
	}

	identity := &Identity{
		Subject: userInfo.Subject,
		Email:   userInfo.Email,
		Groups:  extractGroups(claims),
	}
	if name, ok := claims["name"].(string); ok {
		identity.Name = name
	}
	if pic, ok := claims["picture"].(string); ok {
		identity.Picture = pic
	}
	return identity, nil
}

// resolveUser maps a provider identity onto a local user: linked account
// first, then email linking, then auto-registration.
func (b *Broker) resolveUser(ctx context.Context, providerRow *store.OAuthProvider, identity *Identity) (*store.User, bool, error) {
	acct, err := b.store.GetOAuthAccount(ctx, providerRow.ID, identity.Subject)
	switch {
	case err == nil:
		user, err := b.store.GetUserByID(ctx, acct.UserID)
		if err != nil {
			return nil, false, fmt.Errorf("linked user lookup failed: %w", err)
		}
		if b.config.SyncUserInfo {
			if err := b.store.SyncOAuthAccount(ctx, acct.ID, identity.Email, identity.Name, identity.Picture); err != nil {
				return nil, false, fmt.Errorf("account sync failed: %w", err)
			}
			if user, err = b.syncAdminFlag(ctx, user, identity.Groups); err != nil {
				return nil, false, err
			}
		}
		return user, false, nil

	case !errors.Is(err, store.ErrNotFound):
		return nil, false, fmt.Errorf("oauth account lookup failed: %w", err)
	}

	// Not linked yet. Try to attach to an existing user by email.
	if identity.Email != "" {
		user, err := b.store.GetUserByEmail(ctx, identity.Email)
		switch {
		case err == nil:
			if err := b.link(ctx, user, providerRow, identity); err != nil {
				return nil, false, err
			}
			return user, true, nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, false, fmt.Errorf("user lookup failed: %w", err)
		}
	}

	if !b.config.AutoRegister {
		return nil, false, ErrRegistrationClosed
	}

	// Auto-register with an empty password hash; the linked account is
	// the user's only credential until they set a password via reset.
	isAdmin := b.config.DefaultAdmin
	if len(b.config.AdminGroups) > 0 {
		isAdmin = isAdminByGroups(identity.Groups, b.config.AdminGroups)
	}
	user, err := b.store.CreateUser(ctx, store.CreateUserParams{
		Email:         identity.Email,
		IsAdmin:       isAdmin,
		EmailVerified: true, // the IdP vouches for the address
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to register user: %w", err)
	}
	if err := b.link(ctx, user, providerRow, identity); err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func (b *Broker) link(ctx context.Context, user *store.User, providerRow *store.OAuthProvider, identity *Identity) error {
	_, err := b.store.LinkOAuthAccount(ctx, store.LinkOAuthAccountParams{
		UserID:         user.ID,
		ProviderID:     providerRow.ID,
		ProviderUserID: identity.Subject,
		Email:          identity.Email,
		Name:           identity.Name,
		PictureURL:     identity.Picture,
	})
	if err != nil {
		// A concurrent login linked this identity to someone else first.
		if errors.Is(err, store.ErrDuplicate) {
			return ErrAccountLinked
		}
		return fmt.Errorf("failed to link account: %w", err)
	}

	b.audit.Log(ctx, audit.Entry{
		Action:      audit.ActionOAuthLinked,
		ActorUserID: &user.ID,
		Details:     map[string]any{"provider": b.config.ProviderName},
	})
	b.dispatch.Dispatch(ctx, notify.Event{
		Type:  notify.EventOAuthLinked,
		Actor: user,
		Data:  map[string]any{"provider": b.config.ProviderName},
	})
	return nil
}

// syncAdminFlag updates is_admin from group membership when admin groups are
// configured.
func (b *Broker) syncAdminFlag(ctx context.Context, user *store.User, groups []string) (*store.User, error) {
	if len(b.config.AdminGroups) == 0 {
		return user, nil
	}
	isAdmin := isAdminByGroups(groups, b.config.AdminGroups)
	if isAdmin == user.IsAdmin {
		return user, nil
	}
	updated, err := b.store.UpdateUser(ctx, user.ID, store.UpdateUserParams{IsAdmin: &isAdmin})
	if err != nil {
		return nil, fmt.Errorf("failed to sync admin flag: %w", err)
	}
	return updated, nil
}
