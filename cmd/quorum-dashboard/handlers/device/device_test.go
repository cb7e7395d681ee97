package device

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/techman44/the-quorum-dashboard-sub001/internal/authflow"
	"github.com/techman44/the-quorum-dashboard-sub001/internal/credentials"
	"github.com/techman44/the-quorum-dashboard-sub001/internal/deviceauth"
)

type mockFlow struct {
	startFunc func(ctx context.Context, linkedProviderID string) (*deviceauth.Attempt, error)
	pollFunc  func(ctx context.Context, attemptID string) (*authflow.PollResult, error)
}

func (m *mockFlow) StartDevice(ctx context.Context, linkedProviderID string) (*deviceauth.Attempt, error) {
	return m.startFunc(ctx, linkedProviderID)
}

func (m *mockFlow) PollDevice(ctx context.Context, attemptID string) (*authflow.PollResult, error) {
	return m.pollFunc(ctx, attemptID)
}

const attemptID = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"

func testAttempt() *deviceauth.Attempt {
	return &deviceauth.Attempt{
		ID:                      attemptID,
		DeviceCode:              "dev-code-1",
		UserCode:                "ABCD-1234",
		VerificationURI:         "https://vendor.example/activate",
		VerificationURIComplete: "https://vendor.example/activate?user_code=ABCD-1234",
		Interval:                5,
		Status:                  deviceauth.StatusPending,
		CreatedAt:               time.Now(),
		ExpiresAt:               time.Now().Add(15 * time.Minute),
	}
}

func TestStart(t *testing.T) {
	t.Run("success hides device code", func(t *testing.T) {
		handler := New(&mockFlow{
			startFunc: func(ctx context.Context, linkedProviderID string) (*deviceauth.Attempt, error) {
				return testAttempt(), nil
			},
		})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/oauth/device/start", strings.NewReader(`{}`))
		handler.Start(w, r)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
		}

		var resp map[string]any
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if resp["user_code"] != "ABCD-1234" {
			t.Errorf("user_code = %v, want ABCD-1234", resp["user_code"])
		}
		if _, ok := resp["device_code"]; ok {
			t.Error("response must not expose the device code")
		}
	})

	t.Run("malformed linked provider id", func(t *testing.T) {
		handler := New(&mockFlow{
			startFunc: func(ctx context.Context, linkedProviderID string) (*deviceauth.Attempt, error) {
				t.Fatal("flow must not start on invalid input")
				return nil, nil
			},
		})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/oauth/device/start",
			strings.NewReader(`{"linked_provider_id":"nope"}`))
		handler.Start(w, r)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

func TestPoll(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		result     *authflow.PollResult
		err        error
		wantStatus int
		wantField  string
		wantValue  string
	}{
		{
			name:       "pending",
			body:       `{"attempt_id":"` + attemptID + `"}`,
			result:     &authflow.PollResult{Status: deviceauth.StatusPending, RetryAfter: 5},
			wantStatus: http.StatusOK,
			wantField:  "status",
			wantValue:  "pending",
		},
		{
			name: "complete carries credential summary",
			body: `{"attempt_id":"` + attemptID + `"}`,
			result: &authflow.PollResult{
				Status: deviceauth.StatusComplete,
				Credential: &credentials.Record{
					ID:          "cred-1",
					Type:        "anthropic",
					Name:        "dev@example.com",
					AccessToken: "secret",
				},
			},
			wantStatus: http.StatusOK,
			wantField:  "status",
			wantValue:  "complete",
		},
		{
			name:       "unknown attempt",
			body:       `{"attempt_id":"` + attemptID + `"}`,
			err:        authflow.ErrAttemptNotFound,
			wantStatus: http.StatusNotFound,
			wantField:  "error",
			wantValue:  "not_found",
		},
		{
			name:       "malformed attempt id",
			body:       `{"attempt_id":"nope"}`,
			wantStatus: http.StatusBadRequest,
			wantField:  "error",
			wantValue:  "invalid_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := New(&mockFlow{
				pollFunc: func(ctx context.Context, id string) (*authflow.PollResult, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					return tt.result, nil
				},
			})

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/api/oauth/device/poll", strings.NewReader(tt.body))
			handler.Poll(w, r)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body: %s", w.Code, tt.wantStatus, w.Body.String())
			}

			body := w.Body.String()
			var resp map[string]any
			if err := json.Unmarshal([]byte(body), &resp); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if resp[tt.wantField] != tt.wantValue {
				t.Errorf("%s = %v, want %q", tt.wantField, resp[tt.wantField], tt.wantValue)
			}
			if strings.Contains(body, "secret") {
				t.Errorf("response leaked token material: %s", body)
			}
		})
	}
}
