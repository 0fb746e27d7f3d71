package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/logger"
)

// APIError is the body of every error response.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

// toHTTP maps domain errors to a status and a safe message. Causes are
// never echoed.
func toHTTP(err error) (int, ErrorResponse) {
	status, code, msg := http.StatusInternalServerError, "internal", "internal error"

	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		status, code, msg = http.StatusUnprocessableEntity, "invalid_request", "invalid request"
	case errors.Is(err, domain.ErrNotFound):
		status, code, msg = http.StatusNotFound, "not_found", "Link with the given Id does not exist or was deactivated"
	case errors.Is(err, domain.ErrDenied):
		status, code, msg = http.StatusUnauthorized, "unauthenticated", "unauthenticated"
	case errors.Is(err, domain.ErrInvalidCredentials):
		status, code, msg = http.StatusUnauthorized, "invalid_credentials", "invalid email or password"
	case errors.Is(err, domain.ErrEmailTaken):
		status, code, msg = http.StatusConflict, "email_taken", "email is already registered"
	case errors.Is(err, domain.ErrTokenExhaustion):
		status, code, msg = http.StatusInternalServerError, "token_exhaustion", "could not allocate a link id"
	case errors.Is(err, domain.ErrIssuance):
		status, code, msg = http.StatusInternalServerError, "issuance_failed", "could not issue credentials"
	}

	return status, ErrorResponse{Error: APIError{Code: code, Message: msg}}
}

// writeError writes the envelope and logs server-side failures.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := toHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}
	if status >= http.StatusInternalServerError && err != nil {
		logger.From(r.Context()).Error("request_failed",
			slog.String("path", r.URL.Path),
			slog.String("err", err.Error()),
		)
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
