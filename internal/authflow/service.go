// Package authflow orchestrates the authorization code and device code
// flows and converges both on a single credential record per account.
package authflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/techman44/the-quorum-dashboard-sub001/internal/authstate"
	"github.com/techman44/the-quorum-dashboard-sub001/internal/credentials"
	"github.com/techman44/the-quorum-dashboard-sub001/internal/deviceauth"
	"github.com/techman44/the-quorum-dashboard-sub001/internal/oauth"
)

var (
	// ErrStateNotFound means the state token is absent, expired, or was
	// already consumed. The caller must restart the flow.
	ErrStateNotFound = errors.New("authorization state not found")

	// ErrAttemptNotFound means no device authorization attempt exists for
	// the given id.
	ErrAttemptNotFound = errors.New("device authorization attempt not found")
)

// Grant type bookkeeping stored in credential metadata.
const (
	oauthTypeAuthorizationCode = "authorization_code"
	oauthTypeDeviceCode        = "device_code"
)

// slowDownStep is how much the poll interval grows on a slow_down response.
const slowDownStep = 5

// Client is the vendor operation surface the flows need.
type Client interface {
	AuthorizationRequest(redirectURI string) (*oauth.AuthorizationGrant, error)
	ExchangeCode(ctx context.Context, code, codeVerifier, redirectURI string) (*oauth.TokenSet, error)
	RequestDeviceCode(ctx context.Context) (*oauth.DeviceGrant, error)
	PollDeviceToken(ctx context.Context, deviceCode string) (*oauth.DevicePoll, error)
}

// Service drives both OAuth flows against one vendor.
type Service struct {
	client       Client
	states       authstate.Store
	attempts     deviceauth.Store
	credentials  credentials.Store
	providerType string
	stateTTL     time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithProviderType sets the credential record type created by the flows.
func WithProviderType(providerType string) Option {
	return func(s *Service) {
		s.providerType = providerType
	}
}

// WithStateTTL bounds how long a pending authorization stays consumable.
func WithStateTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.stateTTL = ttl
	}
}

// NewService creates a flow service over the given client and stores.
func NewService(client Client, states authstate.Store, attempts deviceauth.Store, creds credentials.Store, opts ...Option) *Service {
	s := &Service{
		client:       client,
		states:       states,
		attempts:     attempts,
		credentials:  creds,
		providerType: "anthropic",
		stateTTL:     authstate.DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartResult is returned when an authorization code flow begins.
type StartResult struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}

// StartAuthorization begins an authorization code flow. The pending
// authorization is persisted before the URL is handed out, so the state
// exists by the time the callback can arrive.
func (s *Service) StartAuthorization(ctx context.Context, redirectURI, linkedProviderID string) (*StartResult, error) {
	grant, err := s.client.AuthorizationRequest(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("failed to build authorization request: %w", err)
	}

	now := time.Now()
	pending := &authstate.PendingAuthorization{
		State:            grant.State,
		CodeVerifier:     grant.CodeVerifier,
		RedirectURI:      redirectURI,
		LinkedProviderID: linkedProviderID,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.stateTTL),
	}
	if err := s.states.Save(ctx, pending); err != nil {
		return nil, fmt.Errorf("failed to save pending authorization: %w", err)
	}

	log.Debug().Str("state", grant.State).Msg("authorization flow started")

	return &StartResult{
		AuthorizationURL: grant.URL,
		State:            grant.State,
	}, nil
}

// CompleteAuthorization finishes an authorization code flow. The state is
// consumed exactly once; a replayed callback gets ErrStateNotFound.
func (s *Service) CompleteAuthorization(ctx context.Context, code, state string) (*credentials.Record, error) {
	pending, err := s.states.Consume(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("failed to consume authorization state: %w", err)
	}
	if pending == nil {
		return nil, ErrStateNotFound
	}

	tokens, err := s.client.ExchangeCode(ctx, code, pending.CodeVerifier, pending.RedirectURI)
	if err != nil {
		return nil, err
	}

	record, err := s.applyTokenSet(ctx, pending.LinkedProviderID, tokens, oauthTypeAuthorizationCode)
	if err != nil {
		return nil, err
	}

	log.Info().Str("provider_id", record.ID).Msg("authorization flow completed")
	return record, nil
}

// StartDevice begins a device code flow and persists the attempt.
func (s *Service) StartDevice(ctx context.Context, linkedProviderID string) (*deviceauth.Attempt, error) {
	grant, err := s.client.RequestDeviceCode(ctx)
	if err != nil {
		return nil, err
	}

	attempt := &deviceauth.Attempt{
		ID:                      uuid.NewString(),
		DeviceCode:              grant.DeviceCode,
		UserCode:                grant.UserCode,
		VerificationURI:         grant.VerificationURI,
		VerificationURIComplete: grant.VerificationURIComplete,
		Interval:                grant.Interval,
		LinkedProviderID:        linkedProviderID,
		Status:                  deviceauth.StatusPending,
		CreatedAt:               time.Now(),
		ExpiresAt:               grant.ExpiresAt,
	}
	if err := s.attempts.Save(ctx, attempt); err != nil {
		return nil, fmt.Errorf("failed to save device authorization attempt: %w", err)
	}

	log.Debug().Str("attempt_id", attempt.ID).Str("user_code", attempt.UserCode).Msg("device flow started")
	return attempt, nil
}

// PollResult reports one device flow poll.
type PollResult struct {
	Status     deviceauth.Status   `json:"status"`
	RetryAfter int                 `json:"retry_after,omitempty"`
	Credential *credentials.Record `json:"credential,omitempty"`
}

// PollDevice performs a single poll of a device authorization attempt. The
// attempt's own expiry is enforced here regardless of what the vendor
// reports. Terminal attempts are never polled again.
func (s *Service) PollDevice(ctx context.Context, attemptID string) (*PollResult, error) {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to load device authorization attempt: %w", err)
	}
	if attempt == nil {
		return nil, ErrAttemptNotFound
	}

	if attempt.Status.Terminal() {
		return s.terminalResult(ctx, attempt)
	}

	if attempt.Expired(time.Now()) {
		attempt.Status = deviceauth.StatusExpired
		if err := s.attempts.Save(ctx, attempt); err != nil {
			return nil, fmt.Errorf("failed to expire device authorization attempt: %w", err)
		}
		return &PollResult{Status: deviceauth.StatusExpired}, nil
	}

	poll, err := s.client.PollDeviceToken(ctx, attempt.DeviceCode)
	if err != nil {
		return nil, err
	}

	switch poll.Status {
	case oauth.DeviceStatusPending:
		return &PollResult{Status: deviceauth.StatusPending, RetryAfter: attempt.Interval}, nil

	case oauth.DeviceStatusSlowDown:
		attempt.Interval += slowDownStep
		if err := s.attempts.Save(ctx, attempt); err != nil {
			return nil, fmt.Errorf("failed to save device authorization attempt: %w", err)
		}
		return &PollResult{Status: deviceauth.StatusPending, RetryAfter: attempt.Interval}, nil

	case oauth.DeviceStatusComplete:
		record, err := s.applyTokenSet(ctx, attempt.LinkedProviderID, poll.Tokens, oauthTypeDeviceCode)
		if err != nil {
			return nil, err
		}
		attempt.Status = deviceauth.StatusComplete
		attempt.ProviderID = record.ID
		if err := s.attempts.Save(ctx, attempt); err != nil {
			return nil, fmt.Errorf("failed to save device authorization attempt: %w", err)
		}
		log.Info().Str("attempt_id", attempt.ID).Str("provider_id", record.ID).Msg("device flow completed")
		return &PollResult{Status: deviceauth.StatusComplete, Credential: record}, nil

	case oauth.DeviceStatusExpired:
		attempt.Status = deviceauth.StatusExpired
		if err := s.attempts.Save(ctx, attempt); err != nil {
			return nil, fmt.Errorf("failed to save device authorization attempt: %w", err)
		}
		return &PollResult{Status: deviceauth.StatusExpired}, nil

	default:
		attempt.Status = deviceauth.StatusError
		attempt.LastError = pollError(poll)
		if err := s.attempts.Save(ctx, attempt); err != nil {
			return nil, fmt.Errorf("failed to save device authorization attempt: %w", err)
		}
		log.Warn().Str("attempt_id", attempt.ID).Str("error", attempt.LastError).Msg("device flow failed")
		return &PollResult{Status: deviceauth.StatusError}, nil
	}
}

// terminalResult reports an already-finished attempt without touching the
// vendor or creating anything.
func (s *Service) terminalResult(ctx context.Context, attempt *deviceauth.Attempt) (*PollResult, error) {
	result := &PollResult{Status: attempt.Status}
	if attempt.Status == deviceauth.StatusComplete && attempt.ProviderID != "" {
		record, err := s.credentials.Get(ctx, attempt.ProviderID)
		if err != nil {
			return nil, fmt.Errorf("failed to load credential: %w", err)
		}
		result.Credential = record
	}
	return result, nil
}

// applyTokenSet converges a successful exchange onto a credential record:
// an explicitly linked record is updated, otherwise a record matching the
// id token's account identity is updated, otherwise a new record is
// created. At most one record exists per (type, account) pair.
func (s *Service) applyTokenSet(ctx context.Context, linkedProviderID string, tokens *oauth.TokenSet, oauthType string) (*credentials.Record, error) {
	update := credentials.TokenUpdate{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
	}

	if linkedProviderID != "" {
		err := s.credentials.UpdateTokens(ctx, linkedProviderID, update)
		switch {
		case err == nil:
			return s.credentials.Get(ctx, linkedProviderID)
		case errors.Is(err, credentials.ErrNotFound):
			// Linked record was deleted out from under the flow, fall
			// through to identity matching.
			log.Warn().Str("provider_id", linkedProviderID).Msg("linked credential no longer exists")
		default:
			return nil, fmt.Errorf("failed to update credential tokens: %w", err)
		}
	}

	identity := oauth.IdentityFromIDToken(tokens.IDToken)

	if identity.AccountID != "" {
		existing, err := s.credentials.FindByAccount(ctx, s.providerType, identity.AccountID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up credential by account: %w", err)
		}
		if existing != nil {
			if err := s.credentials.UpdateTokens(ctx, existing.ID, update); err != nil {
				return nil, fmt.Errorf("failed to update credential tokens: %w", err)
			}
			return s.credentials.Get(ctx, existing.ID)
		}
	}

	name := identity.Email
	if name == "" {
		name = s.providerType
	}
	metadata := map[string]any{"oauth_type": oauthType}
	if identity.AccountID != "" {
		metadata["account_id"] = identity.AccountID
	}
	if identity.Email != "" {
		metadata["email"] = identity.Email
	}

	record := &credentials.Record{
		Type:         s.providerType,
		Name:         name,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
		Metadata:     metadata,
	}
	if err := s.credentials.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create credential: %w", err)
	}
	return record, nil
}

func pollError(poll *oauth.DevicePoll) string {
	if poll.ErrorDescription != "" {
		return fmt.Sprintf("%s: %s", poll.ErrorCode, poll.ErrorDescription)
	}
	return poll.ErrorCode
}
