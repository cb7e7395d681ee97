// Package connect serves the authorization code flow endpoints: flow
// start, redirect callback, and manual code paste.
package connect

import (
	"context"
	"net/http"
	"strings"

	"github.com/techman44/the-quorum-dashboard-sub001/cmd/quorum-dashboard/handlers/common"
	"github.com/techman44/the-quorum-dashboard-sub001/internal/authflow"
	"github.com/techman44/the-quorum-dashboard-sub001/internal/credentials"
	"github.com/techman44/the-quorum-dashboard-sub001/internal/validation"
)

// Flow is the authorization code flow surface the handler needs.
type Flow interface {
	StartAuthorization(ctx context.Context, redirectURI, linkedProviderID string) (*authflow.StartResult, error)
	CompleteAuthorization(ctx context.Context, code, state string) (*credentials.Record, error)
}

// Handler processes authorization code flow requests.
type Handler struct {
	flows Flow
}

// New creates a connect handler over the flow service.
func New(flows Flow) *Handler {
	return &Handler{flows: flows}
}

type startRequest struct {
	RedirectURI      string `json:"redirect_uri"`
	LinkedProviderID string `json:"linked_provider_id,omitempty"`
}

// Start begins an authorization code flow and returns the vendor URL to
// send the user to.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := common.DecodeBody(r, &req); err != nil {
		common.WriteFlowError(w, err)
		return
	}
	if err := validation.ValidateRedirectURI(req.RedirectURI); err != nil {
		common.WriteFlowError(w, err)
		return
	}
	if err := validation.ValidateLinkedProviderID(req.LinkedProviderID); err != nil {
		common.WriteFlowError(w, err)
		return
	}

	result, err := h.flows.StartAuthorization(r.Context(), req.RedirectURI, req.LinkedProviderID)
	if err != nil {
		common.WriteFlowError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, result)
}

// Callback completes the flow from the vendor redirect. The vendor may
// deliver an error instead of a code when the user declines.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if vendorErr := query.Get("error"); vendorErr != "" {
		common.WriteError(w, http.StatusBadRequest, "authorization_declined",
			"the authorization request was not approved")
		return
	}

	h.complete(w, r, query.Get("code"), query.Get("state"))
}

type codeRequest struct {
	Code  string `json:"code"`
	State string `json:"state,omitempty"`
}

// Code completes the flow from a manually pasted code. Some vendor
// consoles hand the user a combined "code#state" string, so a missing
// state is recovered from the code itself.
func (h *Handler) Code(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := common.DecodeBody(r, &req); err != nil {
		common.WriteFlowError(w, err)
		return
	}

	code := validation.NormalizeCode(req.Code)
	state := req.State
	if state == "" {
		if parts := strings.SplitN(code, "#", 2); len(parts) == 2 {
			code, state = parts[0], parts[1]
		}
	}

	h.complete(w, r, code, state)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request, code, state string) {
	if err := validation.RequireCode(code); err != nil {
		common.WriteFlowError(w, err)
		return
	}
	if err := validation.RequireState(state); err != nil {
		common.WriteFlowError(w, err)
		return
	}

	record, err := h.flows.CompleteAuthorization(r.Context(), code, state)
	if err != nil {
		common.WriteFlowError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, common.SummarizeCredential(record))
}
