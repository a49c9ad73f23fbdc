// Package oauth brokers logins against an external OIDC provider using the
// authorization-code flow with PKCE. It never stores provider tokens; it
// only uses them once to fetch the user profile.
package oauth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

var ErrBadState = errors.New("invalid oauth state")

// State carries the PKCE verifier and redirect targets across the round trip
// to the provider. It is URL-safe base64 JSON, opaque to the provider.
type State struct {
	CodeVerifier string `json:"code_verifier"`
	RedirectURI  string `json:"redirect_uri"`
	ReturnURL    string `json:"return_url,omitempty"`
}

// NewState generates a PKCE verifier and packages it with the redirect
// targets.
func NewState(redirectURI, returnURL string) State {
	return State{
		CodeVerifier: oauth2.GenerateVerifier(),
		RedirectURI:  redirectURI,
		ReturnURL:    returnURL,
	}
}

// Encode serializes the state for the authorize URL.
func (s State) Encode() (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeState parses a state parameter. Any malformation is ErrBadState; the
// caller maps it to a 400.
func DecodeState(encoded string) (State, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return State{}, ErrBadState
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return State{}, ErrBadState
	}
	if s.CodeVerifier == "" || s.RedirectURI == "" {
		return State{}, ErrBadState
	}
	return s, nil
}
