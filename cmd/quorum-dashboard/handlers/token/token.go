// Package token serves access token retrieval and the bulk refresh sweep.
package token

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/techman44/the-quorum-dashboard-sub001/cmd/quorum-dashboard/handlers/common"
	"github.com/techman44/the-quorum-dashboard-sub001/internal/tokens"
	"github.com/techman44/the-quorum-dashboard-sub001/internal/validation"
)

// Manager is the token manager surface the handler needs.
type Manager interface {
	AccessToken(ctx context.Context, providerID string) (string, bool)
	RefreshExpired(ctx context.Context) ([]tokens.RefreshResult, error)
}

// Handler processes token requests.
type Handler struct {
	manager Manager
}

// New creates a token handler over the manager.
func New(manager Manager) *Handler {
	return &Handler{manager: manager}
}

type accessTokenResponse struct {
	AccessToken string `json:"access_token"`
}

// AccessToken returns a currently valid access token for the provider,
// refreshing it first if needed. A provider that cannot produce one needs
// user re-authorization.
func (h *Handler) AccessToken(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "id")
	if err := validation.ValidateProviderID(providerID); err != nil {
		common.WriteFlowError(w, err)
		return
	}

	accessToken, ok := h.manager.AccessToken(r.Context(), providerID)
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "reauthorization_required",
			"no valid token is available for this provider, reconnect it")
		return
	}

	common.WriteJSON(w, http.StatusOK, accessTokenResponse{AccessToken: accessToken})
}

type refreshResponse struct {
	Results []tokens.RefreshResult `json:"results"`
}

// Refresh sweeps all refreshable credentials and reports each outcome.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	results, err := h.manager.RefreshExpired(r.Context())
	if err != nil {
		common.WriteFlowError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, refreshResponse{Results: results})
}
