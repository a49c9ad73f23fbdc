package helpers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// ErrorBody is the uniform error envelope returned by every endpoint.
type ErrorBody struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// RespondError writes the error envelope. The request id comes from the chi
// RequestID middleware so clients can quote it in support requests.
func RespondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	RespondErrorDetails(w, r, status, message, nil)
}

// RespondErrorDetails is RespondError with an extra details payload.
func RespondErrorDetails(w http.ResponseWriter, r *http.Request, status int, message string, details any) {
	RespondJSON(w, status, map[string]ErrorBody{
		"error": {
			Code:      status,
			Message:   message,
			RequestID: middleware.GetReqID(r.Context()),
			Details:   details,
		},
	})
}
