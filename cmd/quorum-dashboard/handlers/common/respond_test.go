package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/techman44/the-quorum-dashboard-sub001/internal/authflow"
	"github.com/techman44/the-quorum-dashboard-sub001/internal/credentials"
	"github.com/techman44/the-quorum-dashboard-sub001/internal/oauth"
	"github.com/techman44/the-quorum-dashboard-sub001/internal/validation"
)

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusBadRequest, "invalid_request", "missing parameter")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	for header, want := range map[string]string{
		"Cache-Control": "no-store",
		"Content-Type":  "application/json",
	} {
		if got := w.Header().Get(header); got != want {
			t.Errorf("header %s = %q, want %q", header, got, want)
		}
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.Error != "invalid_request" || resp.ErrorDescription != "missing parameter" {
		t.Errorf("unexpected body: %+v", resp)
	}
}

func TestWriteFlowError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "validation error",
			err:        &validation.ValidationError{Field: "code", Message: "must not be empty"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "state not found",
			err:        authflow.ErrStateNotFound,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_state",
		},
		{
			name:       "wrapped state not found",
			err:        fmt.Errorf("completing flow: %w", authflow.ErrStateNotFound),
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_state",
		},
		{
			name:       "attempt not found",
			err:        authflow.ErrAttemptNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
		},
		{
			name:       "exchange rejected",
			err:        &oauth.ExchangeError{Code: "invalid_grant", Description: "code already used"},
			wantStatus: http.StatusBadGateway,
			wantCode:   "exchange_failed",
		},
		{
			name:       "provider unavailable",
			err:        fmt.Errorf("refreshing token: %w", oauth.ErrProviderUnavailable),
			wantStatus: http.StatusBadGateway,
			wantCode:   "provider_unavailable",
		},
		{
			name:       "unexpected failure",
			err:        errors.New("disk full"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "server_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteFlowError(w, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if resp.Error != tt.wantCode {
				t.Errorf("error code = %q, want %q", resp.Error, tt.wantCode)
			}
		})
	}
}

// Vendor error descriptions are logged server-side, never echoed back.
func TestWriteFlowErrorHidesVendorDetail(t *testing.T) {
	w := httptest.NewRecorder()
	WriteFlowError(w, &oauth.ExchangeError{Code: "invalid_grant", Description: "refresh token xyz revoked"})

	if strings.Contains(w.Body.String(), "xyz") {
		t.Errorf("response leaked vendor detail: %s", w.Body.String())
	}
}

func TestSummarizeCredential(t *testing.T) {
	if got := SummarizeCredential(nil); got != nil {
		t.Errorf("SummarizeCredential(nil) = %+v, want nil", got)
	}

	record := &credentials.Record{
		ID:           "id-1",
		Type:         "anthropic",
		Name:         "dev@example.com",
		AccessToken:  "secret-access",
		RefreshToken: "secret-refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	summary := SummarizeCredential(record)

	body, err := json.Marshal(summary)
	if err != nil {
		t.Fatalf("failed to marshal summary: %v", err)
	}
	if strings.Contains(string(body), "secret") {
		t.Errorf("summary leaked token material: %s", body)
	}
	if summary.ID != record.ID || summary.Name != record.Name {
		t.Errorf("summary fields not copied: %+v", summary)
	}
}
