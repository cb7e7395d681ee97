package connect

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
)

type mockFlow struct {
	startFunc    func(ctx context.Context, redirectURI, linkedProviderID string) (*authflow.StartResult, error)
	completeFunc func(ctx context.Context, code, state string) (*credentials.Record, error)
}

func (m *mockFlow) StartAuthorization(ctx context.Context, redirectURI, linkedProviderID string) (*authflow.StartResult, error) {
	return m.startFunc(ctx, redirectURI, linkedProviderID)
}

func (m *mockFlow) CompleteAuthorization(ctx context.Context, code, state string) (*credentials.Record, error) {
	return m.completeFunc(ctx, code, state)
}

func testRecord() *credentials.Record {
	return &credentials.Record{
		ID:          "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		Type:        "anthropic",
		Name:        "dev@example.com",
		AccessToken: "A1",
		ExpiresAt:   time.Now().Add(time.Hour),
	}
}

func TestStart(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "valid request",
			body:       `{"redirect_uri":"https://app.example/cb"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing redirect uri",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_request",
		},
		{
			name:       "relative redirect uri",
			body:       `{"redirect_uri":"/cb"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_request",
		},
		{
			name:       "malformed linked provider id",
			body:       `{"redirect_uri":"https://app.example/cb","linked_provider_id":"nope"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_request",
		},
		{
			name:       "malformed body",
			body:       `{`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := New(&mockFlow{
				startFunc: func(ctx context.Context, redirectURI, linkedProviderID string) (*authflow.StartResult, error) {
					return &authflow.StartResult{
						AuthorizationURL: "https://vendor.example/authorize?state=abc123",
						State:            "abc123",
					}, nil
				},
			})

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/api/oauth/start", strings.NewReader(tt.body))
			handler.Start(w, r)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantError != "" {
				var resp map[string]string
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("failed to decode body: %v", err)
				}
				if resp["error"] != tt.wantError {
					t.Errorf("error = %q, want %q", resp["error"], tt.wantError)
				}
			}
		})
	}
}

func TestCallback(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var gotCode, gotState string
		handler := New(&mockFlow{
			completeFunc: func(ctx context.Context, code, state string) (*credentials.Record, error) {
				gotCode, gotState = code, state
				return testRecord(), nil
			},
		})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/oauth/callback?code=xyz&state=abc123", nil)
		handler.Callback(w, r)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
		}
		if gotCode != "xyz" || gotState != "abc123" {
			t.Errorf("completed with (%q, %q), want (xyz, abc123)", gotCode, gotState)
		}
		if strings.Contains(w.Body.String(), "A1") {
			t.Errorf("response leaked access token: %s", w.Body.String())
		}
	})

	t.Run("replayed state", func(t *testing.T) {
		handler := New(&mockFlow{
			completeFunc: func(ctx context.Context, code, state string) (*credentials.Record, error) {
				return nil, authflow.ErrStateNotFound
			},
		})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/oauth/callback?code=xyz&state=abc123", nil)
		handler.Callback(w, r)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
		if !strings.Contains(w.Body.String(), "invalid_state") {
			t.Errorf("expected invalid_state error, got: %s", w.Body.String())
		}
	})

	t.Run("vendor declined", func(t *testing.T) {
		handler := New(&mockFlow{
			completeFunc: func(ctx context.Context, code, state string) (*credentials.Record, error) {
				t.Fatal("complete must not be called when the vendor reports an error")
				return nil, nil
			},
		})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/oauth/callback?error=access_denied&state=abc123", nil)
		handler.Callback(w, r)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("missing code", func(t *testing.T) {
		handler := New(&mockFlow{
			completeFunc: func(ctx context.Context, code, state string) (*credentials.Record, error) {
				return testRecord(), nil
			},
		})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/oauth/callback?state=abc123", nil)
		handler.Callback(w, r)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

func TestCode(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCode  string
		wantState string
	}{
		{
			name:      "separate code and state",
			body:      `{"code":"xyz","state":"abc123"}`,
			wantCode:  "xyz",
			wantState: "abc123",
		},
		{
			name:      "combined paste format",
			body:      `{"code":"xyz#abc123"}`,
			wantCode:  "xyz",
			wantState: "abc123",
		},
		{
			name:      "whitespace around pasted code",
			body:      `{"code":"  xyz#abc123  "}`,
			wantCode:  "xyz",
			wantState: "abc123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotCode, gotState string
			handler := New(&mockFlow{
				completeFunc: func(ctx context.Context, code, state string) (*credentials.Record, error) {
					gotCode, gotState = code, state
					return testRecord(), nil
				},
			})

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/api/oauth/code", strings.NewReader(tt.body))
			handler.Code(w, r)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
			}
			if gotCode != tt.wantCode || gotState != tt.wantState {
				t.Errorf("completed with (%q, %q), want (%q, %q)", gotCode, gotState, tt.wantCode, tt.wantState)
			}
		})
	}

	t.Run("missing state", func(t *testing.T) {
		handler := New(&mockFlow{
			completeFunc: func(ctx context.Context, code, state string) (*credentials.Record, error) {
				return testRecord(), nil
			},
		})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/oauth/code", strings.NewReader(`{"code":"xyz"}`))
		handler.Code(w, r)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}
