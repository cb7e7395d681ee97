package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// deviceGrantType is the device flow grant type per RFC 8628 section 3.4.
const deviceGrantType = "urn:ietf:params:oauth:grant-type:device_code"

// defaultDeviceExpiry is assumed when the vendor omits expires_in from a
// device authorization response.
const defaultDeviceExpiry = 15 * time.Minute

// RequestDeviceCode starts a device authorization grant with the vendor and
// returns the device/user code pair.
func (c *Client) RequestDeviceCode(ctx context.Context) (*DeviceGrant, error) {
	if c.cfg.DeviceAuthorizationURL == "" {
		return nil, fmt.Errorf("device authorization URL is not configured")
	}

	conf := c.oauthConfig("")
	resp, err := conf.DeviceAuth(c.httpContext(ctx))
	if err != nil {
		return nil, wrapTokenError("requesting device code", err)
	}

	grant := &DeviceGrant{
		DeviceCode:              resp.DeviceCode,
		UserCode:                resp.UserCode,
		VerificationURI:         resp.VerificationURI,
		VerificationURIComplete: resp.VerificationURIComplete,
		ExpiresAt:               resp.Expiry,
		Interval:                int(resp.Interval),
	}
	if grant.DeviceCode == "" {
		return nil, fmt.Errorf("device authorization response missing device_code")
	}
	if grant.ExpiresAt.IsZero() {
		grant.ExpiresAt = time.Now().Add(defaultDeviceExpiry)
	}
	if grant.Interval <= 0 {
		grant.Interval = 5
	}

	return grant, nil
}

// PollDeviceToken performs a single device token poll per RFC 8628 section
// 3.4 and maps the vendor's response to a DeviceStatus. It never loops; the
// caller owns the polling cadence and stops when the status is terminal.
func (c *Client) PollDeviceToken(ctx context.Context, deviceCode string) (*DevicePoll, error) {
	data := url.Values{
		"grant_type":  {deviceGrantType},
		"device_code": {deviceCode},
		"client_id":   {c.cfg.ClientID},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating device token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending device token request: %w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading device token response: %w", err)
	}

	if resp.StatusCode == http.StatusOK {
		var tokenResp struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
			IDToken      string `json:"id_token"`
			ExpiresIn    int    `json:"expires_in"`
		}
		if err := json.Unmarshal(body, &tokenResp); err != nil {
			return nil, fmt.Errorf("parsing device token response: %w", err)
		}
		return &DevicePoll{
			Status: DeviceStatusComplete,
			Tokens: &TokenSet{
				AccessToken:  tokenResp.AccessToken,
				RefreshToken: tokenResp.RefreshToken,
				IDToken:      tokenResp.IDToken,
				ExpiresAt:    ExpiryFromSeconds(tokenResp.ExpiresIn),
			},
		}, nil
	}

	var errResp struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return nil, fmt.Errorf("device token poll failed: status=%d", resp.StatusCode)
	}

	switch errResp.Error {
	case "authorization_pending":
		return &DevicePoll{Status: DeviceStatusPending}, nil
	case "slow_down":
		return &DevicePoll{Status: DeviceStatusSlowDown}, nil
	case "expired_token":
		return &DevicePoll{Status: DeviceStatusExpired}, nil
	default:
		// access_denied and any other code ends the attempt
		return &DevicePoll{
			Status:           DeviceStatusError,
			ErrorCode:        errResp.Error,
			ErrorDescription: errResp.ErrorDescription,
		}, nil
	}
}
