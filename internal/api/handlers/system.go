package handlers

import (
	"context"
	"net/http"

	"github.com/ramonehamilton/deckforge/internal/api/response"
	"github.com/ramonehamilton/deckforge/internal/prices"
	"github.com/ramonehamilton/deckforge/internal/service"
)

// SystemService is the maintenance part of the service facade.
type SystemService interface {
	Status(ctx context.Context) (*service.Status, error)
	RefreshPrices(ctx context.Context) (*prices.RefreshResult, error)
	RecomputeInclusionRates(ctx context.Context) (int, error)
}

// SystemHandler handles status and maintenance API requests.
type SystemHandler struct {
	svc SystemService
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(svc SystemService) *SystemHandler {
	return &SystemHandler{svc: svc}
}

// GetStatus returns catalog, collection and cache sizes.
func (h *SystemHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, st)
}

// RefreshPrices refreshes every owned printing now.
func (h *SystemHandler) RefreshPrices(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.RefreshPrices(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, result)
}

// RecomputeInclusion rebuilds card inclusion rates from the saved decks.
func (h *SystemHandler) RecomputeInclusion(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.RecomputeInclusionRates(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, map[string]int{"cards": n})
}
