// Package api is the HTTP boundary: chi routing, middleware and handlers
// that translate between the JSON surface and the service layer.
package api

import (
	"github.com/relayonprem/control-plane/internal/api/middleware"
	"github.com/relayonprem/control-plane/internal/auth"
	"github.com/relayonprem/control-plane/internal/config"
	"github.com/relayonprem/control-plane/internal/oauth"
	"github.com/relayonprem/control-plane/internal/relay"
	"github.com/relayonprem/control-plane/internal/share"
	"github.com/relayonprem/control-plane/internal/store"
	"github.com/relayonprem/control-plane/internal/webhook"
)

// Server bundles the services the handlers call into.
type Server struct {
	config   config.Config
	store    *store.Store
	auth     *auth.Service
	shares   *share.Service
	minter   *relay.Minter
	webhooks *webhook.Service
	oauth    *oauth.Broker
	authn    *middleware.Authenticator
	limits   *middleware.Limits
}

// Deps enumerates the server's constructor dependencies.
type Deps struct {
	Config   config.Config
	Store    *store.Store
	Auth     *auth.Service
	Tokens   auth.TokenProvider
	Shares   *share.Service
	Minter   *relay.Minter
	Webhooks *webhook.Service
	OAuth    *oauth.Broker
}

func NewServer(d Deps) *Server {
	return &Server{
		config:   d.Config,
		store:    d.Store,
		auth:     d.Auth,
		shares:   d.Shares,
		minter:   d.Minter,
		webhooks: d.Webhooks,
		oauth:    d.OAuth,
		authn:    middleware.NewAuthenticator(d.Tokens, d.Store),
		limits:   middleware.NewLimits(),
	}
}
