package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/relayonprem/control-plane/internal/api/helpers"
)

func (s *Server) handleListOAuthProviders(w http.ResponseWriter, r *http.Request) {
	providers := []map[string]any{}
	if s.oauth.Enabled() {
		providers = append(providers, map[string]any{
			"name":       s.config.OAuthProviderName,
			"issuer_url": s.config.OAuthIssuerURL,
		})
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"providers": providers})
}

// requestBaseURL reconstructs the externally visible base URL of this
// request. Localhost stays http even behind a proxy that reports HTTPS;
// any other http origin is elevated to https when x-forwarded-proto says so.
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	host := r.Host
	hostname := host
	if h, _, err := splitHostMaybePort(host); err == nil {
		hostname = h
	}
	isLocal := hostname == "localhost" || hostname == "127.0.0.1" || hostname == "::1"

	if !isLocal && strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + host
}

func splitHostMaybePort(hostport string) (string, string, error) {
	if !strings.Contains(hostport, ":") {
		return hostport, "", nil
	}
	u := url.URL{Host: hostport}
	if h := u.Hostname(); h != "" {
		return h, u.Port(), nil
	}
	return hostport, "", nil
}

func (s *Server) checkProviderName(r *http.Request) bool {
	return chi.URLParam(r, "provider") == s.config.OAuthProviderName
}

// wantsHTML reports whether the client is a browser that expects a redirect
// rather than a JSON envelope.
func wantsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html")
}

func (s *Server) handleOAuthAuthorize(w http.ResponseWriter, r *http.Request) {
	if !s.checkProviderName(r) {
		helpers.RespondError(w, r, http.StatusNotFound, "Unknown provider")
		return
	}

	provider := chi.URLParam(r, "provider")
	redirectURI := requestBaseURL(r) + "/v1/auth/oauth/" + provider + "/callback"
	returnURL := r.URL.Query().Get("return_url")

	authorizeURL, state, err := s.oauth.AuthorizeURL(r.Context(), redirectURI, returnURL)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	if wantsHTML(r) {
		http.Redirect(w, r, authorizeURL, http.StatusFound)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]string{
		"authorize_url": authorizeURL,
		"state":         state,
	})
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if !s.checkProviderName(r) {
		helpers.RespondError(w, r, http.StatusNotFound, "Unknown provider")
		return
	}

	q := r.URL.Query()
	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		helpers.RespondError(w, r, http.StatusBadRequest, "code and state are required")
		return
	}

	result, err := s.oauth.Callback(r.Context(), code, state, requestMeta(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	// Flows started with a return_url finish with a redirect; the access
	// token rides in a cookie the landing page picks up.
	if result.ReturnURL != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     "invite_token",
			Value:    result.Login.AccessToken,
			Path:     "/",
			HttpOnly: false,
			Secure:   strings.HasPrefix(result.ReturnURL, "https://"),
			SameSite: http.SameSiteLaxMode,
			MaxAge:   int(s.config.AccessTokenTTL.Seconds()),
		})
		http.Redirect(w, r, result.ReturnURL, http.StatusFound)
		return
	}

	helpers.RespondJSON(w, http.StatusOK, loginResponse{
		AccessToken:  result.Login.AccessToken,
		RefreshToken: result.Login.RefreshToken,
		User:         viewUser(result.Login.User),
	})
}
