// Package pkce generates the per-flow secrets that bind an authorization
// code to the client that requested it: a PKCE verifier/challenge pair per
// RFC 7636 and an anti-CSRF state token.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/oauth2"
)

// stateLength is the number of random bytes behind a state token
const stateLength = 32

// Pair holds a PKCE code verifier and its S256 code challenge.
type Pair struct {
	Verifier  string
	Challenge string
}

// Generate returns a new verifier/challenge pair using the S256 method.
// The verifier is 43 characters of base64url-encoded random data.
func Generate() Pair {
	verifier := oauth2.GenerateVerifier()
	return Pair{
		Verifier:  verifier,
		Challenge: Challenge(verifier),
	}
}

// Challenge computes the S256 code challenge for a verifier: the base64url
// encoding, without padding, of the verifier's SHA-256 digest.
func Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// State returns a random state token used to bind an authorization callback
// to the flow that started it. It is independent of any PKCE pair.
func State() (string, error) {
	buf := make([]byte, stateLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
