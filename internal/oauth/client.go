package oauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/techman44/the-quorum-dashboard-sub001/internal/pkce"
)

// defaultTimeout bounds every call to the vendor endpoints.
const defaultTimeout = 10 * time.Second

// Config holds vendor endpoint configuration.
type Config struct {
	ClientID               string
	AuthorizationURL       string
	TokenURL               string
	DeviceAuthorizationURL string
	Scopes                 []string
}

// Client talks to a single vendor's OAuth endpoints. It is safe for
// concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a new vendor OAuth client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if cfg.AuthorizationURL == "" {
		return nil, fmt.Errorf("authorization URL is required")
	}
	if cfg.TokenURL == "" {
		return nil, fmt.Errorf("token URL is required")
	}
	for _, endpoint := range []string{cfg.AuthorizationURL, cfg.TokenURL, cfg.DeviceAuthorizationURL} {
		if endpoint == "" {
			continue
		}
		if _, err := url.Parse(endpoint); err != nil {
			return nil, fmt.Errorf("invalid endpoint URL %q: %w", endpoint, err)
		}
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}, nil
}

// AuthorizationGrant is handed to the caller when a redirect flow starts.
// The caller must persist State, CodeVerifier, and the redirect URI before
// sending the user to URL.
type AuthorizationGrant struct {
	URL          string
	State        string
	CodeVerifier string
}

// AuthorizationRequest builds the vendor authorization URL for a new PKCE
// flow, embedding the S256 challenge, scopes, and a fresh state token.
func (c *Client) AuthorizationRequest(redirectURI string) (*AuthorizationGrant, error) {
	state, err := pkce.State()
	if err != nil {
		return nil, fmt.Errorf("generating state: %w", err)
	}
	pair := pkce.Generate()

	conf := c.oauthConfig(redirectURI)
	authURL := conf.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", pair.Challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)

	return &AuthorizationGrant{
		URL:          authURL,
		State:        state,
		CodeVerifier: pair.Verifier,
	}, nil
}

// ExchangeCode exchanges an authorization code for a token set. The verifier
// and redirect URI must be the ones recorded when the flow started; the
// vendor rejects the exchange otherwise.
func (c *Client) ExchangeCode(ctx context.Context, code, codeVerifier, redirectURI string) (*TokenSet, error) {
	conf := c.oauthConfig(redirectURI)
	tok, err := conf.Exchange(c.httpContext(ctx), code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, wrapTokenError("exchanging authorization code", err)
	}
	return tokenSetFrom(tok), nil
}

// Refresh exchanges a refresh token for a new token set. When the vendor
// does not rotate refresh tokens the response omits the field; the previous
// refresh token is carried forward so it is never lost.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenSet, error) {
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	conf := c.oauthConfig("")
	src := conf.TokenSource(c.httpContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, wrapTokenError("refreshing token", err)
	}

	set := tokenSetFrom(tok)
	if set.RefreshToken == "" {
		set.RefreshToken = refreshToken
	}
	return set, nil
}

// CheckHealth verifies the vendor token endpoint is reachable.
func (c *Client) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.cfg.TokenURL, nil)
	if err != nil {
		return fmt.Errorf("creating health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return ErrProviderUnavailable
	}
	return nil
}

func (c *Client) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    c.cfg.ClientID,
		RedirectURL: redirectURI,
		Scopes:      c.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:       c.cfg.AuthorizationURL,
			TokenURL:      c.cfg.TokenURL,
			DeviceAuthURL: c.cfg.DeviceAuthorizationURL,
		},
	}
}

// httpContext injects the bounded-timeout HTTP client into the oauth2
// transport.
func (c *Client) httpContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// tokenSetFrom converts an oauth2 token, pinning a conservative absolute
// expiry when the vendor omitted expires_in.
func tokenSetFrom(tok *oauth2.Token) *TokenSet {
	set := &TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if set.ExpiresAt.IsZero() {
		set.ExpiresAt = ExpiryFromSeconds(0)
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		set.IDToken = idToken
	}
	return set
}
