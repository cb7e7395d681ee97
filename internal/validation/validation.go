// Package validation provides request input validation for the OAuth flows
package validation

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// ValidationError represents a rejected caller input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// RequireCode checks an authorization or pasted code is present
func RequireCode(code string) error {
	if strings.TrimSpace(code) == "" {
		return &ValidationError{Field: "code", Message: "must not be empty"}
	}
	return nil
}

// RequireState checks a state token is present
func RequireState(state string) error {
	if strings.TrimSpace(state) == "" {
		return &ValidationError{Field: "state", Message: "must not be empty"}
	}
	return nil
}

// ValidateRedirectURI checks the redirect target is an absolute http(s) URL
func ValidateRedirectURI(redirectURI string) error {
	if strings.TrimSpace(redirectURI) == "" {
		return &ValidationError{Field: "redirect_uri", Message: "must not be empty"}
	}
	u, err := url.Parse(redirectURI)
	if err != nil {
		return &ValidationError{Field: "redirect_uri", Message: "must be a valid URL"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Field: "redirect_uri", Message: "must use http or https"}
	}
	if u.Host == "" {
		return &ValidationError{Field: "redirect_uri", Message: "must be absolute"}
	}
	return nil
}

// ValidateProviderID checks a provider id is a well-formed UUID
func ValidateProviderID(id string) error {
	return validateUUID("provider_id", id)
}

// ValidateAttemptID checks a device attempt id is a well-formed UUID
func ValidateAttemptID(id string) error {
	return validateUUID("attempt_id", id)
}

// ValidateLinkedProviderID checks an optional linked provider reference.
// Empty means "create a new credential" and is always valid.
func ValidateLinkedProviderID(id string) error {
	if id == "" {
		return nil
	}
	return validateUUID("linked_provider_id", id)
}

func validateUUID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Field: field, Message: "must not be empty"}
	}
	if _, err := uuid.Parse(id); err != nil {
		return &ValidationError{Field: field, Message: "must be a valid UUID"}
	}
	return nil
}

// NormalizeCode trims whitespace from a pasted authorization code
func NormalizeCode(code string) string {
	return strings.TrimSpace(code)
}
