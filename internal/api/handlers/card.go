package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ramonehamilton/deckforge/internal/api/response"
	"github.com/ramonehamilton/deckforge/internal/mtga/cards"
	"github.com/ramonehamilton/deckforge/internal/prices"
)

// CardService is the catalog and price part of the service facade.
type CardService interface {
	SuggestCards(query string, limit int) []string
	GetPrice(ctx context.Context, cardName, setCode string) (prices.Observation, error)
	Formats() []cards.Format
}

// CardHandler handles card-related API requests.
type CardHandler struct {
	svc CardService
}

// NewCardHandler creates a new CardHandler.
func NewCardHandler(svc CardService) *CardHandler {
	return &CardHandler{svc: svc}
}

// SearchCards returns catalog names matching q, best match first.
func (h *CardHandler) SearchCards(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		response.BadRequest(w, errors.New("query parameter q is required"))
		return
	}

	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			response.BadRequest(w, errors.New("limit must be a positive integer"))
			return
		}
		limit = min(n, 50)
	}

	names := h.svc.SuggestCards(q, limit)
	if names == nil {
		names = []string{}
	}
	response.Success(w, names)
}

// GetPrice returns today's price of a printing.
func (h *CardHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	obs, err := h.svc.GetPrice(r.Context(), q.Get("name"), q.Get("set"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, obs)
}

// GetFormats lists the supported formats.
func (h *CardHandler) GetFormats(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.svc.Formats())
}
