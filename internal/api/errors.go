package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/relayonprem/control-plane/internal/api/helpers"
	"github.com/relayonprem/control-plane/internal/auth"
	"github.com/relayonprem/control-plane/internal/oauth"
	"github.com/relayonprem/control-plane/internal/relay"
	"github.com/relayonprem/control-plane/internal/share"
	"github.com/relayonprem/control-plane/internal/store"
	"github.com/relayonprem/control-plane/internal/webhook"
)

// errStatus maps a service error to its HTTP status and client-safe message.
// Unknown errors get a generic 500; the underlying message is logged, never
// returned.
func errStatus(err error) (int, string) {
	switch {
	// Validation
	case errors.Is(err, share.ErrEmptyPath),
		errors.Is(err, share.ErrPathTraversal),
		errors.Is(err, share.ErrPathNullByte),
		errors.Is(err, share.ErrAbsolutePath),
		errors.Is(err, share.ErrPathTooLong),
		errors.Is(err, share.ErrBadDocExtension),
		errors.Is(err, share.ErrPasswordRequired),
		errors.Is(err, share.ErrOwnerMembership),
		errors.Is(err, share.ErrInviteOwnerRedeem),
		errors.Is(err, relay.ErrBadMode),
		errors.Is(err, webhook.ErrUnknownEvent),
		errors.Is(err, webhook.ErrNoEvents),
		errors.Is(err, webhook.ErrInsecureURL),
		errors.Is(err, webhook.ErrBlockedHost),
		errors.Is(err, webhook.ErrInvalidURL),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidActionToken),
		errors.Is(err, auth.ErrTOTPNotEnabled),
		errors.Is(err, oauth.ErrBadState),
		errors.Is(err, oauth.ErrMissingSubject):
		return http.StatusBadRequest, err.Error()

	// Authentication
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidCode),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "Invalid credentials"

	// Authorization
	case errors.Is(err, share.ErrForbidden),
		errors.Is(err, webhook.ErrForbidden),
		errors.Is(err, relay.ErrDenied),
		errors.Is(err, auth.ErrUserInactive),
		errors.Is(err, auth.ErrNotOwnSession),
		errors.Is(err, oauth.ErrUserInactive),
		errors.Is(err, oauth.ErrRegistrationClosed):
		return http.StatusForbidden, err.Error()

	// Not found
	case errors.Is(err, share.ErrShareNotFound),
		errors.Is(err, share.ErrMemberNotFound),
		errors.Is(err, share.ErrInviteNotFound),
		errors.Is(err, relay.ErrShareNotFound),
		errors.Is(err, webhook.ErrWebhookNotFound),
		errors.Is(err, auth.ErrSessionNotFound),
		errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, oauth.ErrDisabled),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "Not found"

	// Conflict
	case errors.Is(err, auth.ErrEmailTaken),
		errors.Is(err, auth.ErrTOTPAlreadyOn),
		errors.Is(err, share.ErrMemberExists),
		errors.Is(err, oauth.ErrAccountLinked),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict, err.Error()

	// Gone
	case errors.Is(err, share.ErrInviteExhausted):
		return http.StatusGone, err.Error()

	// Upstream
	case errors.Is(err, oauth.ErrProviderUnreachable):
		return http.StatusBadGateway, "Identity provider unreachable"
	}

	return http.StatusInternalServerError, "Internal server error"
}

// respondServiceError maps and writes a service-layer failure.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errStatus(err)
	if status >= 500 {
		slog.Error("request_failed", "path", r.URL.Path, "error", err)
	}
	helpers.RespondError(w, r, status, msg)
}
