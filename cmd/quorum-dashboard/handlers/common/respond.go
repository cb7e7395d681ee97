// Package common holds shared JSON response and error mapping helpers for
// the API handlers.
package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/techman44/the-quorum-dashboard-sub001/internal/authflow"
	"github.com/techman44/the-quorum-dashboard-sub001/internal/credentials"
	"github.com/techman44/the-quorum-dashboard-sub001/internal/oauth"
	"github.com/techman44/the-quorum-dashboard-sub001/internal/validation"
)

// ErrorResponse is the JSON error body returned by every API route.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// CredentialSummary is the caller-facing view of a credential record.
// Token material never leaves the server through flow responses.
type CredentialSummary struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SummarizeCredential strips token material from a record.
func SummarizeCredential(record *credentials.Record) *CredentialSummary {
	if record == nil {
		return nil
	}
	return &CredentialSummary{
		ID:        record.ID,
		Type:      record.Type,
		Name:      record.Name,
		ExpiresAt: record.ExpiresAt,
	}
}

// SetJSONHeaders sets the headers every JSON response carries. Token
// responses must not be cached.
func SetJSONHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
}

// WriteJSON encodes v with the standard headers and status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	SetJSONHeaders(w)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("failed to encode response")
	}
}

// WriteError sends a standardized error response.
func WriteError(w http.ResponseWriter, status int, code, description string) {
	WriteJSON(w, status, ErrorResponse{
		Error:            code,
		ErrorDescription: description,
	})
}

// WriteFlowError maps a flow or store failure onto the API error taxonomy.
// Vendor error detail is logged, never echoed to the caller.
func WriteFlowError(w http.ResponseWriter, err error) {
	var validationErr *validation.ValidationError
	var exchangeErr *oauth.ExchangeError

	switch {
	case errors.As(err, &validationErr):
		WriteError(w, http.StatusBadRequest, "invalid_request", validationErr.Error())

	case errors.Is(err, authflow.ErrStateNotFound):
		WriteError(w, http.StatusBadRequest, "invalid_state",
			"authorization state is invalid, expired, or already used; restart the flow")

	case errors.Is(err, authflow.ErrAttemptNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "unknown device authorization attempt")

	case errors.As(err, &exchangeErr):
		log.Warn().Str("code", exchangeErr.Code).Str("description", exchangeErr.Description).
			Msg("vendor rejected exchange")
		WriteError(w, http.StatusBadGateway, "exchange_failed",
			"authentication failed, please reconnect the provider")

	case errors.Is(err, oauth.ErrProviderUnavailable):
		log.Err(err).Msg("vendor unreachable")
		WriteError(w, http.StatusBadGateway, "provider_unavailable",
			"the provider could not be reached, try again")

	default:
		log.Err(err).Msg("request failed")
		WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

// DecodeBody parses a JSON request body into dst.
func DecodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &validation.ValidationError{Field: "body", Message: "must be valid JSON"}
	}
	return nil
}
