package oauth

import (
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

// Common errors returned by the client
var (
	// ErrInvalidGrant indicates the vendor rejected a code or refresh
	// token as invalid, expired, already used, or revoked. The credential
	// cannot be retried; the user must re-authorize.
	ErrInvalidGrant = errors.New("invalid grant")

	// ErrNoRefreshToken indicates a refresh was requested for a credential
	// that has no refresh token.
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrProviderUnavailable indicates the vendor endpoints could not be
	// reached. Safe to retry.
	ErrProviderUnavailable = errors.New("oauth provider unavailable")
)

// ExchangeError is a definitive rejection from the vendor token endpoint,
// carrying the vendor's error code and description. The description is for
// logs only and is never shown to end users.
type ExchangeError struct {
	Code        string
	Description string
}

func (e *ExchangeError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("token endpoint rejected request: %s", e.Code)
	}
	return fmt.Sprintf("token endpoint rejected request: %s: %s", e.Code, e.Description)
}

// Is lets errors.Is(err, ErrInvalidGrant) match invalid_grant rejections.
func (e *ExchangeError) Is(target error) bool {
	return target == ErrInvalidGrant && e.Code == "invalid_grant"
}

// wrapTokenError classifies an error from the token endpoint. A structured
// vendor rejection becomes an ExchangeError; everything else is a transport
// failure and stays retryable.
func wrapTokenError(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		code := re.ErrorCode
		if code == "" {
			code = "invalid_response"
		}
		return fmt.Errorf("%s: %w", op, &ExchangeError{Code: code, Description: re.ErrorDescription})
	}
	return fmt.Errorf("%s: %w: %v", op, ErrProviderUnavailable, err)
}
