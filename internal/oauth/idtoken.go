package oauth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Identity is the subset of id-token claims kept with a credential. It is
// used for display and account deduplication only, never for authorization.
type Identity struct {
	AccountID string
	Email     string
}

// Empty reports whether no identity claims were extracted.
func (i Identity) Empty() bool {
	return i.AccountID == "" && i.Email == ""
}

// IdentityFromIDToken decodes identity claims from an id token without
// verifying its signature; the token arrives directly from the vendor token
// endpoint over TLS, not from an untrusted party. Extraction is best-effort:
// a malformed token yields an empty Identity, never an error.
func IdentityFromIDToken(idToken string) Identity {
	if idToken == "" {
		return Identity{}
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return Identity{}
	}

	var identity Identity
	if sub, ok := claims["sub"].(string); ok {
		identity.AccountID = sub
	}
	// Some vendors carry the stable account id in a dedicated claim that
	// outlives the subject.
	if accountID, ok := claims["account_id"].(string); ok && accountID != "" {
		identity.AccountID = accountID
	}
	if email, ok := claims["email"].(string); ok {
		identity.Email = email
	}
	return identity
}
