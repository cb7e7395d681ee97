package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"
)

// EndpointEnv names the environment variable pointing at a running
// dashboard instance. Tests are skipped when it is unset.
const EndpointEnv = "QUORUM_ENDPOINT"

const (
	ServiceTimeout = 60 * time.Second
	RetryInterval  = 5 * time.Second
)

// TestSuite provides shared functionality for black-box API tests.
type TestSuite struct {
	T        *testing.T
	Client   *http.Client
	Ctx      context.Context
	Endpoint string
}

// NewSuite creates a test suite against the configured endpoint, skipping
// the test when no instance is available.
func NewSuite(t *testing.T) *TestSuite {
	t.Helper()

	endpoint := os.Getenv(EndpointEnv)
	if endpoint == "" {
		t.Skipf("set %s to run integration tests", EndpointEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), ServiceTimeout)
	t.Cleanup(cancel)

	return &TestSuite{
		T:        t,
		Client:   &http.Client{Timeout: 10 * time.Second},
		Ctx:      ctx,
		Endpoint: endpoint,
	}
}

// WaitForService waits until the dashboard reports healthy.
func (s *TestSuite) WaitForService() error {
	ticker := time.NewTicker(RetryInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(s.Ctx, http.MethodGet, s.Endpoint+"/health", nil)
		if err != nil {
			return fmt.Errorf("creating health request: %w", err)
		}

		resp, err := s.Client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
			err = fmt.Errorf("health returned status %d", resp.StatusCode)
		}

		select {
		case <-s.Ctx.Done():
			return fmt.Errorf("timeout waiting for service: %w", err)
		case <-ticker.C:
		}
	}
}

// PostJSON sends a JSON body to an API path and decodes the response.
func (s *TestSuite) PostJSON(path string, body any, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(s.Ctx, http.MethodPost, s.Endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// GetJSON fetches an API path and decodes the response.
func (s *TestSuite) GetJSON(path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(s.Ctx, http.MethodGet, s.Endpoint+path, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
