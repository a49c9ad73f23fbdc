// Package relay mints short-lived CWT capabilities the downstream relay
// verifies with the control plane's Ed25519 public key.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relayonprem/control-plane/internal/audit"
	"github.com/relayonprem/control-plane/internal/crypto"
	"github.com/relayonprem/control-plane/internal/share"
	"github.com/relayonprem/control-plane/internal/store"
)

var (
	ErrShareNotFound = errors.New("share not found")
	ErrDenied        = errors.New("access denied")
	ErrBadMode       = errors.New("mode must be read or write")
)

// Config holds minting tunables.
type Config struct {
	// RelayURL is the fixed WebSocket endpoint of the downstream relay,
	// returned verbatim with every token.
	RelayURL string
	TokenTTL time.Duration
	Issuer   string
}

// Minter issues relay capabilities after passing the request through the
// share authorization engine.
type Minter struct {
	config Config
	keys   *crypto.RelayKeys
	store  *store.Store
	shares *share.Service
	audit  *audit.Recorder
}

func NewMinter(config Config, keys *crypto.RelayKeys, st *store.Store, shares *share.Service, rec *audit.Recorder) *Minter {
	if config.TokenTTL == 0 {
		config.TokenTTL = 30 * time.Minute
	}
	if config.Issuer == "" {
		config.Issuer = "relay-control-plane"
	}
	return &Minter{config: config, keys: keys, store: st, shares: shares, audit: rec}
}

// TokenRequest asks for a capability on one document. DocID is opaque to the
// control plane; authorization rides on the share, never on the doc id.
type TokenRequest struct {
	ShareID  uuid.UUID
	DocID    string
	Mode     string // "read" or "write"
	FilePath string // optional; folder shares resolve it to a more specific share
	Password string // for protected shares
}

// Token is the minted capability.
type Token struct {
	RelayURL  string    `json:"relay_url"`
	Token     string    `json:"token"`
	DocID     string    `json:"doc_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Issue authorizes and mints. Anonymous read on public shares is allowed;
// write always requires a principal.
func (m *Minter) Issue(ctx context.Context, principal *store.User, req TokenRequest) (*Token, error) {
	action, err := parseMode(req.Mode)
	if err != nil {
		return nil, err
	}
	if action == share.ActionWrite && principal == nil {
		return nil, ErrDenied
	}

	sh, err := m.store.GetShareByID(ctx, req.ShareID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrShareNotFound
		}
		return nil, fmt.Errorf("share lookup failed: %w", err)
	}

	// A file path within a folder share may resolve to a more specific
	// share, e.g. a nested doc share that pre-empts the folder. The path
	// must sit under the named share; the resolver never widens the
	// request to unrelated shares.
	if req.FilePath != "" && sh.Kind == store.ShareKindFolder {
		if !share.WithinFolder(sh.Path, req.FilePath) {
			return nil, ErrDenied
		}
		resolved, err := m.shares.FindShareForPath(ctx, principal, req.FilePath, req.Password)
		if err != nil {
			if errors.Is(err, share.ErrShareNotFound) {
				return nil, ErrDenied
			}
			return nil, err
		}
		sh = resolved
	}

	ok, err := m.shares.Authorize(ctx, share.AccessRequest{
		Principal:         principal,
		Share:             sh,
		Action:            action,
		PresentedPassword: req.Password,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDenied
	}

	now := time.Now()
	scope := crypto.DocScope(req.DocID, action == share.ActionWrite)
	signed, err := crypto.MintCWT(m.keys.Private, m.config.Issuer, scope, now)
	if err != nil {
		return nil, fmt.Errorf("failed to mint token: %w", err)
	}

	var actorID *uuid.UUID
	if principal != nil {
		actorID = &principal.ID
	}
	m.audit.Log(ctx, audit.Entry{
		Action:        audit.ActionRelayTokenMint,
		ActorUserID:   actorID,
		TargetShareID: &sh.ID,
		Details:       map[string]any{"doc_id": req.DocID, "mode": req.Mode},
	})

	return &Token{
		RelayURL:  m.config.RelayURL,
		Token:     signed,
		DocID:     req.DocID,
		ExpiresAt: now.Add(m.config.TokenTTL),
	}, nil
}

// PublicKeyInfo is served unauthenticated for the relay's verifier.
type PublicKeyInfo struct {
	KeyID     string `json:"key_id"`
	PublicKey string `json:"public_key"`
	Algorithm string `json:"algorithm"`
}

func (m *Minter) PublicKey() PublicKeyInfo {
	return PublicKeyInfo{
		KeyID:     m.keys.KeyID,
		PublicKey: m.keys.PublicKeyBase64(),
		Algorithm: "EdDSA",
	}
}

func parseMode(mode string) (share.Action, error) {
	switch mode {
	case "read":
		return share.ActionRead, nil
	case "write":
		return share.ActionWrite, nil
	}
	return "", ErrBadMode
}
