package api

import (
	"net/http"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/relayonprem/control-plane/internal/api/middleware"
)

// Router builds the full HTTP surface: every route is mounted under /v1 and
// mirrored at the root, where responses carry a Deprecation header.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.PanicRecovery)

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		s.mountRoutes(r)
	})

	// Compatibility mirror: pre-versioning clients still hit the root.
	r.Group(func(r chi.Router) {
		r.Use(deprecationHeader)
		s.mountRoutes(r)
	})

	return r
}

func deprecationHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Deprecation", "true")
		w.Header().Set("Link", `</v1>; rel="successor-version"`)
		next.ServeHTTP(w, r)
	})
}

// mountRoutes registers every endpoint on the given router. It is invoked
// twice, once for /v1 and once for the root mirror.
func (s *Server) mountRoutes(r chi.Router) {
	requireAuth := s.authn.Require
	optionalAuth := s.authn.Optional
	requireAdmin := s.authn.RequireAdmin

	r.Route("/auth", func(r chi.Router) {
		r.With(s.limits.Login.Middleware).Post("/login", s.handleLogin)
		r.With(s.limits.Login.Middleware).Post("/login/2fa", s.handleLogin2FA)
		r.With(s.limits.Refresh.Middleware).Post("/refresh", s.handleRefresh)
		r.With(requireAdmin).Post("/register", s.handleRegister)

		r.With(s.limits.PasswordReset.Middleware).
			Post("/password-reset/request", s.handlePasswordResetRequest)
		r.Post("/password-reset/complete", s.handlePasswordResetComplete)

		// Token-authenticated: the emailed link must work when logged out.
		r.Post("/email/verify/confirm", s.handleEmailVerifyConfirm)

		r.Get("/oauth/providers", s.handleListOAuthProviders)
		r.Get("/oauth/{provider}/authorize", s.handleOAuthAuthorize)
		r.Get("/oauth/{provider}/callback", s.handleOAuthCallback)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Post("/logout", s.handleLogout)
			r.Get("/me", s.handleMe)

			r.Get("/sessions", s.handleListSessions)
			r.Delete("/sessions", s.handleRevokeAllSessions)
			r.Delete("/sessions/{id}", s.handleRevokeSession)

			r.Get("/2fa/status", s.handleTOTPStatus)
			r.Post("/2fa/enable", s.handleTOTPEnable)
			r.Post("/2fa/verify", s.handleTOTPVerify)
			r.Post("/2fa/disable", s.handleTOTPDisable)

			r.Put("/password", s.handleChangePassword)
			r.Post("/email/verify/request", s.handleEmailVerifyRequest)

			r.Get("/email-preferences", s.handleGetEmailPreferences)
			r.Put("/email-preferences", s.handleUpdateEmailPreferences)
		})
	})

	r.Get("/keys/public", s.handlePublicKey)
	r.With(optionalAuth, s.limits.PasswordAttempt.Middleware).
		Post("/tokens/relay", s.handleMintRelayToken)

	r.Route("/shares", func(r chi.Router) {
		r.Use(requireAuth)

		r.Get("/", s.handleListShares)
		r.With(s.limits.ShareCreate.Middleware).Post("/", s.handleCreateShare)
		r.Get("/{id}", s.handleGetShare)
		r.Patch("/{id}", s.handleUpdateShare)
		r.Delete("/{id}", s.handleDeleteShare)

		r.Get("/{id}/members", s.handleListMembers)
		r.With(s.limits.MemberAdd.Middleware).Post("/{id}/members", s.handleAddMember)
		r.Patch("/{id}/members/{user_id}", s.handleUpdateMember)
		r.Delete("/{id}/members/{user_id}", s.handleRemoveMember)

		r.Get("/{id}/invites", s.handleListInvites)
		r.With(s.limits.InviteCreate.Middleware).Post("/{id}/invites", s.handleCreateInvite)
		r.Delete("/{id}/invites/{invite_id}", s.handleRevokeInvite)
	})

	r.Route("/invite", func(r chi.Router) {
		r.Get("/{token}", s.handleInvitePreview)
		r.With(optionalAuth, s.limits.InviteRedeem.Middleware).
			Post("/{token}/redeem", s.handleRedeemInvite)
	})

	r.Route("/webhooks", func(r chi.Router) {
		r.Use(requireAuth)

		r.Get("/", s.handleListWebhooks)
		r.With(s.limits.WebhookCreate.Middleware).Post("/", s.handleCreateWebhook)
		r.Get("/{id}", s.handleGetWebhook)
		r.Patch("/{id}", s.handleUpdateWebhook)
		r.Delete("/{id}", s.handleDeleteWebhook)
		r.Post("/{id}/rotate-secret", s.handleRotateWebhookSecret)
		r.Post("/{id}/test", s.handleTestWebhook)
		r.Get("/{id}/deliveries", s.handleListDeliveries)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(requireAdmin)

		r.Get("/users", s.handleAdminListUsers)
		r.Post("/users", s.handleRegister)
		r.Get("/users/{id}", s.handleAdminGetUser)
		r.Patch("/users/{id}", s.handleAdminUpdateUser)
		r.Delete("/users/{id}", s.handleAdminDeleteUser)

		r.Get("/audit-logs", s.handleAdminAuditLogs)

		r.Get("/settings", s.handleAdminListSettings)
		r.Put("/settings", s.handleAdminSetSetting)

		r.Get("/webhooks", s.handleListAdminWebhooks)
		r.With(s.limits.WebhookCreate.Middleware).Post("/webhooks", s.handleCreateAdminWebhook)
	})
}
