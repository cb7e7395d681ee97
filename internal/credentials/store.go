// Package credentials persists one record per configured provider: the
// current access token, optional refresh token, absolute expiry, and the
// identity metadata captured when the provider was connected.
package credentials

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the credential record does not exist.
var ErrNotFound = errors.New("credential not found")

// Record is a provider credential row. Metadata is a free-form bag of
// vendor identity claims (account id, email) plus flow bookkeeping
// (oauth_type: authorization_code or device_code).
type Record struct {
	ID           string
	Type         string
	Name         string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Metadata     map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TokenUpdate is a partial token mutation applied to an existing record.
// An empty RefreshToken means "keep the stored refresh token": vendors that
// do not rotate refresh tokens omit the field on refresh, and dropping the
// stored one would strand the credential.
type TokenUpdate struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Store persists provider credentials. Implementations must keep each
// record's token fields consistent under concurrent updates; the token
// manager depends on never observing a half-written row.
type Store interface {
	// Get returns the record for a provider id, or nil when absent.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns all credential records.
	List(ctx context.Context) ([]*Record, error)

	// FindByAccount returns the record matching a provider type and
	// vendor account id, or nil. At most one such record exists.
	FindByAccount(ctx context.Context, providerType, accountID string) (*Record, error)

	// Create inserts a new record, assigning ID and timestamps.
	Create(ctx context.Context, record *Record) error

	// UpdateTokens applies a partial token update to an existing record.
	// Returns ErrNotFound when the record does not exist.
	UpdateTokens(ctx context.Context, id string, update TokenUpdate) error

	// CheckHealth verifies the store is operational.
	CheckHealth(ctx context.Context) error
}
