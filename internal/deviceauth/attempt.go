// Package deviceauth tracks device authorization attempts: the device/user
// code pair handed out when a device flow starts, and the attempt's status
// as the dashboard polls the vendor for completion.
package deviceauth

import (
	"context"
	"time"
)

// Status is the lifecycle state of a device authorization attempt.
type Status string

const (
	// StatusPending means the user has not completed approval yet.
	StatusPending Status = "pending"

	// StatusComplete means tokens were issued and a credential recorded.
	StatusComplete Status = "complete"

	// StatusError means the vendor rejected the attempt for good.
	StatusError Status = "error"

	// StatusExpired means the attempt lapsed before approval.
	StatusExpired Status = "expired"
)

// Terminal reports whether further polling is meaningful.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError || s == StatusExpired
}

// Attempt is one device authorization attempt. DeviceCode is sent to the
// vendor on every poll and never shown to the user; UserCode is what the
// user types at the verification URI.
type Attempt struct {
	ID                      string    `json:"id"`
	DeviceCode              string    `json:"device_code"`
	UserCode                string    `json:"user_code"`
	VerificationURI         string    `json:"verification_uri"`
	VerificationURIComplete string    `json:"verification_uri_complete,omitempty"`
	Interval                int       `json:"interval"`
	LinkedProviderID        string    `json:"linked_provider_id,omitempty"`
	ProviderID              string    `json:"provider_id,omitempty"`
	Status                  Status    `json:"status"`
	LastError               string    `json:"last_error,omitempty"`
	CreatedAt               time.Time `json:"created_at"`
	ExpiresAt               time.Time `json:"expires_at"`
}

// Expired reports whether the attempt is past its lifetime at the given
// time. This is checked locally on every poll, independent of what the
// vendor reports.
func (a *Attempt) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

// Store persists device authorization attempts keyed by attempt id.
// Terminal attempts must stay readable for a final poll after completion.
type Store interface {
	// Save stores or replaces an attempt.
	Save(ctx context.Context, attempt *Attempt) error

	// Get retrieves an attempt by id, or nil when absent.
	Get(ctx context.Context, id string) (*Attempt, error)

	// CheckHealth verifies the store is operational.
	CheckHealth(ctx context.Context) error
}
