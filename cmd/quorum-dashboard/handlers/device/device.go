// Package device serves the device code flow endpoints.
package device

import (
	"context"
	"net/http"
	"time"

	"github.com/techman44/the-quorum-dashboard-sub001/cmd/quorum-dashboard/handlers/common"
	"github.com/techman44/the-quorum-dashboard-sub001/internal/authflow"
	"github.com/techman44/the-quorum-dashboard-sub001/internal/deviceauth"
	"github.com/techman44/the-quorum-dashboard-sub001/internal/validation"
)

// Flow is the device flow surface the handler needs.
type Flow interface {
	StartDevice(ctx context.Context, linkedProviderID string) (*deviceauth.Attempt, error)
	PollDevice(ctx context.Context, attemptID string) (*authflow.PollResult, error)
}

// Handler processes device flow requests.
type Handler struct {
	flows Flow
}

// New creates a device flow handler over the flow service.
func New(flows Flow) *Handler {
	return &Handler{flows: flows}
}

type startRequest struct {
	LinkedProviderID string `json:"linked_provider_id,omitempty"`
}

type startResponse struct {
	AttemptID               string    `json:"attempt_id"`
	UserCode                string    `json:"user_code"`
	VerificationURI         string    `json:"verification_uri"`
	VerificationURIComplete string    `json:"verification_uri_complete,omitempty"`
	ExpiresAt               time.Time `json:"expires_at"`
	Interval                int       `json:"interval"`
}

// Start requests a device/user code pair and records the attempt. The
// device code stays server-side; the caller only sees the user code.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := common.DecodeBody(r, &req); err != nil {
		common.WriteFlowError(w, err)
		return
	}
	if err := validation.ValidateLinkedProviderID(req.LinkedProviderID); err != nil {
		common.WriteFlowError(w, err)
		return
	}

	attempt, err := h.flows.StartDevice(r.Context(), req.LinkedProviderID)
	if err != nil {
		common.WriteFlowError(w, err)
		return
	}

	common.WriteJSON(w, http.StatusOK, startResponse{
		AttemptID:               attempt.ID,
		UserCode:                attempt.UserCode,
		VerificationURI:         attempt.VerificationURI,
		VerificationURIComplete: attempt.VerificationURIComplete,
		ExpiresAt:               attempt.ExpiresAt,
		Interval:                attempt.Interval,
	})
}

type pollRequest struct {
	AttemptID string `json:"attempt_id"`
}

type pollResponse struct {
	Status     deviceauth.Status         `json:"status"`
	RetryAfter int                       `json:"retry_after,omitempty"`
	Credential *common.CredentialSummary `json:"credential,omitempty"`
}

// Poll performs one poll of a pending attempt.
func (h *Handler) Poll(w http.ResponseWriter, r *http.Request) {
	var req pollRequest
	if err := common.DecodeBody(r, &req); err != nil {
		common.WriteFlowError(w, err)
		return
	}
	if err := validation.ValidateAttemptID(req.AttemptID); err != nil {
		common.WriteFlowError(w, err)
		return
	}

	result, err := h.flows.PollDevice(r.Context(), req.AttemptID)
	if err != nil {
		common.WriteFlowError(w, err)
		return
	}

	common.WriteJSON(w, http.StatusOK, pollResponse{
		Status:     result.Status,
		RetryAfter: result.RetryAfter,
		Credential: common.SummarizeCredential(result.Credential),
	})
}
