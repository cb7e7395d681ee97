package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type mockChecker struct {
	err error
}

func (m *mockChecker) CheckHealth(ctx context.Context) error {
	return m.err
}

func TestHealthHandler(t *testing.T) {
	version := "1.0.0"

	tests := []struct {
		name     string
		checks   map[string]error
		wantCode int
		wantBody Response
	}{
		{
			name: "healthy system",
			checks: map[string]error{
				"state_store": nil,
			},
			wantCode: http.StatusOK,
			wantBody: Response{
				Status:  "healthy",
				Version: version,
				Details: map[string]any{
					"state_store": map[string]any{"status": "healthy"},
				},
			},
		},
		{
			name: "one component down",
			checks: map[string]error{
				"state_store": errors.New("connection refused"),
			},
			wantCode: http.StatusServiceUnavailable,
			wantBody: Response{
				Status:  "unhealthy",
				Version: version,
				Details: map[string]any{
					"state_store": map[string]any{
						"status":  "unhealthy",
						"message": "connection refused",
					},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := New(version)
			for name, err := range tt.checks {
				handler.WithCheck(name, &mockChecker{err: err})
			}

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/health", nil)
			handler.ServeHTTP(w, r)

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}

			var got Response
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if diff := cmp.Diff(tt.wantBody, got); diff != "" {
				t.Errorf("response mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHealthHandlerMixedComponents(t *testing.T) {
	handler := New("").
		WithCheck("credential_store", &mockChecker{}).
		WithCheck("vendor", &mockChecker{err: errors.New("timeout")})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	var got Response
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	healthy, ok := got.Details["credential_store"].(map[string]any)
	if !ok || healthy["status"] != "healthy" {
		t.Errorf("healthy component misreported: %+v", got.Details)
	}
}
