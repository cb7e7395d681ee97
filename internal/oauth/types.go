// Package oauth talks to the vendor's authorization, token, and device
// authorization endpoints. It covers the PKCE authorization-code exchange,
// refresh-token exchange, and single-poll device flow the dashboard needs.
package oauth

import "time"

// TokenSet is the result of a code, refresh, or device exchange. The
// vendor's relative expires_in is converted to ExpiresAt at parse time and
// the relative form is never kept.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	ExpiresAt    time.Time
}

// DeviceGrant is the vendor's response to a device authorization request
// per RFC 8628 section 3.2.
type DeviceGrant struct {
	DeviceCode              string
	UserCode                string
	VerificationURI         string
	VerificationURIComplete string
	ExpiresAt               time.Time
	Interval                int
}

// DeviceStatus is the outcome of a single device token poll.
type DeviceStatus string

const (
	// DeviceStatusPending means the user has not approved yet.
	DeviceStatusPending DeviceStatus = "pending"

	// DeviceStatusSlowDown means pending, and the poller must back off.
	DeviceStatusSlowDown DeviceStatus = "slow_down"

	// DeviceStatusComplete means the user approved and tokens were issued.
	DeviceStatusComplete DeviceStatus = "complete"

	// DeviceStatusExpired means the device code lapsed before approval.
	DeviceStatusExpired DeviceStatus = "expired"

	// DeviceStatusError means the vendor rejected the attempt for good.
	DeviceStatusError DeviceStatus = "error"
)

// Terminal reports whether polling is meaningful after this status.
func (s DeviceStatus) Terminal() bool {
	return s == DeviceStatusComplete || s == DeviceStatusExpired || s == DeviceStatusError
}

// DevicePoll is the result of one device token poll. Tokens is set only for
// DeviceStatusComplete; ErrorCode/ErrorDescription only for
// DeviceStatusError.
type DevicePoll struct {
	Status           DeviceStatus
	Tokens           *TokenSet
	ErrorCode        string
	ErrorDescription string
}

// ExpiryFromSeconds converts a relative expires_in value to an absolute
// timestamp. Zero or negative lifetimes collapse to now, so downstream
// expiry checks classify the token as already stale instead of
// never-expiring.
func ExpiryFromSeconds(seconds int) time.Time {
	if seconds <= 0 {
		return time.Now()
	}
	return time.Now().Add(time.Duration(seconds) * time.Second)
}
