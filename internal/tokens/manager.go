// Package tokens keeps provider credentials usable: it hands out access
// tokens that are guaranteed not to expire mid-use, refreshing them through
// the vendor token endpoint when they get close to expiry.
package tokens

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/techman44/the-quorum-dashboard-sub001/internal/credentials"
	"github.com/techman44/the-quorum-dashboard-sub001/internal/oauth"
)

// DefaultExpiryMargin is how close to expiry a token may get before it is
// refreshed instead of handed out. The margin keeps a token from expiring
// in the middle of the caller's request.
const DefaultExpiryMargin = 5 * time.Minute

// Refresher exchanges a refresh token for a new token set.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth.TokenSet, error)
}

// Option configures the token manager.
type Option func(*Manager)

// WithExpiryMargin sets the refresh-before-expiry safety margin.
func WithExpiryMargin(margin time.Duration) Option {
	return func(m *Manager) {
		m.margin = margin
	}
}

// WithRefreshableTypes sets the provider types the bulk refresh sweep
// covers. Providers of other types (API keys) carry no OAuth tokens and
// are skipped.
func WithRefreshableTypes(types ...string) Option {
	return func(m *Manager) {
		m.refreshable = make(map[string]bool, len(types))
		for _, t := range types {
			m.refreshable[t] = true
		}
	}
}

// Manager is the refresh-decision core. It is safe for concurrent use;
// concurrent refreshes of the same provider are collapsed into one vendor
// call.
type Manager struct {
	store       credentials.Store
	refresher   Refresher
	margin      time.Duration
	refreshable map[string]bool
	group       singleflight.Group
}

// NewManager creates a new token manager.
func NewManager(store credentials.Store, refresher Refresher, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		refresher: refresher,
		margin:    DefaultExpiryMargin,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RefreshResult is the outcome of one credential in a bulk refresh sweep.
type RefreshResult struct {
	ProviderID string `json:"provider_id"`
	Name       string `json:"name"`
	Refreshed  bool   `json:"refreshed"`
	Error      string `json:"error,omitempty"`
}

// EnsureValid guarantees the stored access token for a provider is usable
// for at least the expiry margin. It refreshes and persists when needed and
// reports whether a valid token is now stored. A failed refresh leaves the
// stale credential untouched.
func (m *Manager) EnsureValid(ctx context.Context, providerID string) bool {
	record, err := m.store.Get(ctx, providerID)
	if err != nil {
		log.Err(err).Str("provider_id", providerID).Msg("Loading credential for token check")
		return false
	}
	if record == nil || record.AccessToken == "" {
		return false
	}

	if !m.needsRefresh(record) {
		return true
	}

	if record.RefreshToken == "" {
		log.Warn().Str("provider_id", providerID).Msg("Token expired with no refresh token; re-authorization required")
		return false
	}

	_, err, _ = m.group.Do(providerID, func() (any, error) {
		return nil, m.refresh(ctx, record)
	})
	return err == nil
}

// AccessToken returns a currently valid access token for the provider, or
// false when none can be produced. The record is re-read after EnsureValid
// so the caller always gets the post-refresh token, never a pre-refresh
// snapshot.
func (m *Manager) AccessToken(ctx context.Context, providerID string) (string, bool) {
	if !m.EnsureValid(ctx, providerID) {
		return "", false
	}

	record, err := m.store.Get(ctx, providerID)
	if err != nil {
		log.Err(err).Str("provider_id", providerID).Msg("Re-reading credential after refresh")
		return "", false
	}
	if record == nil || record.AccessToken == "" {
		return "", false
	}
	return record.AccessToken, true
}

// RefreshExpired sweeps all refreshable credentials and applies the expiry
// decision to each independently. One broken credential never blocks the
// rest; its error is captured in the result instead.
func (m *Manager) RefreshExpired(ctx context.Context) ([]RefreshResult, error) {
	records, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}

	var results []RefreshResult
	for _, record := range records {
		if len(m.refreshable) > 0 && !m.refreshable[record.Type] {
			continue
		}

		result := RefreshResult{ProviderID: record.ID, Name: record.Name}
		switch {
		case record.AccessToken == "":
			result.Error = "no access token stored"
		case !m.needsRefresh(record):
			// Still fresh, nothing to do.
		case record.RefreshToken == "":
			result.Error = "token expired and no refresh token stored"
		default:
			if err := m.refresh(ctx, record); err != nil {
				result.Error = err.Error()
			} else {
				result.Refreshed = true
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// needsRefresh reports whether the record's token is at or near expiry.
// A record without an expiry is treated as expired rather than immortal.
func (m *Manager) needsRefresh(record *credentials.Record) bool {
	if record.ExpiresAt.IsZero() {
		return true
	}
	return record.ExpiresAt.Before(time.Now().Add(m.margin))
}

func (m *Manager) refresh(ctx context.Context, record *credentials.Record) error {
	set, err := m.refresher.Refresh(ctx, record.RefreshToken)
	if err != nil {
		log.Warn().Err(err).Str("provider_id", record.ID).Msg("Token refresh failed")
		return err
	}

	update := credentials.TokenUpdate{
		AccessToken:  set.AccessToken,
		RefreshToken: set.RefreshToken,
		ExpiresAt:    set.ExpiresAt,
	}
	if err := m.store.UpdateTokens(ctx, record.ID, update); err != nil {
		log.Err(err).Str("provider_id", record.ID).Msg("Persisting refreshed tokens")
		return err
	}

	log.Debug().Str("provider_id", record.ID).Time("expires_at", set.ExpiresAt).Msg("Token refreshed")
	return nil
}
