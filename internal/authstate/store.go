// Package authstate tracks pending authorization flows between the moment a
// user is redirected to the vendor and the moment the callback returns. Each
// entry is keyed by its state token, lives for minutes, and is consumable
// exactly once.
package authstate

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL is how long a pending authorization stays consumable.
const DefaultTTL = 10 * time.Minute

// ErrStateExists indicates a state token collision on save. Collisions mean
// the token generator is broken, so callers treat this as fatal.
var ErrStateExists = errors.New("authorization state already exists")

// PendingAuthorization is the flow context stashed under a state token while
// the user authorizes out of band.
type PendingAuthorization struct {
	State            string    `json:"state"`
	CodeVerifier     string    `json:"code_verifier"`
	RedirectURI      string    `json:"redirect_uri"`
	LinkedProviderID string    `json:"linked_provider_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// Expired reports whether the entry is past its lifetime at the given time.
func (p *PendingAuthorization) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// Store persists pending authorizations keyed by state token.
//
// Consume is an atomic take: the first caller receives the entry and every
// later caller receives nil. Absent and expired entries are indistinguishable
// and are never an error; only storage unavailability is.
type Store interface {
	// Save inserts a pending authorization. An existing entry under the
	// same state token is never overwritten; that is ErrStateExists.
	Save(ctx context.Context, pending *PendingAuthorization) error

	// Consume atomically retrieves and removes the entry for a state token.
	// Returns nil for absent or expired entries.
	Consume(ctx context.Context, state string) (*PendingAuthorization, error)

	// Has reports whether a fresh entry exists without consuming it.
	Has(ctx context.Context, state string) (bool, error)

	// CheckHealth verifies the store is operational.
	CheckHealth(ctx context.Context) error
}
