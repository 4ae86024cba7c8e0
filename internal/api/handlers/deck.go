package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/deckforge/internal/api/response"
	"github.com/ramonehamilton/deckforge/internal/mtga/deckbuilder"
	"github.com/ramonehamilton/deckforge/internal/service"
	"github.com/ramonehamilton/deckforge/internal/stats"
	"github.com/ramonehamilton/deckforge/internal/storage/repository"
)

// DeckService is the deck part of the service facade.
type DeckService interface {
	AssembleDeck(ctx context.Context, req service.AssembleRequest) (*deckbuilder.Result, error)
	GetDeck(ctx context.Context, id string) (*deckbuilder.Deck, error)
	ListDecks(ctx context.Context) ([]*repository.DeckSummary, error)
	DeleteDeck(ctx context.Context, id string) error
	RecordGame(ctx context.Context, game stats.Game) error
}

// DeckHandler handles deck-related API requests.
type DeckHandler struct {
	svc DeckService
}

// NewDeckHandler creates a new DeckHandler.
func NewDeckHandler(svc DeckService) *DeckHandler {
	return &DeckHandler{svc: svc}
}

// Assemble builds a deck from the stored collection. A FAILED build is
// reported with its reason, exclusions and trace in the error details.
func (h *DeckHandler) Assemble(w http.ResponseWriter, r *http.Request) {
	var req service.AssembleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, errors.New("invalid request body"))
		return
	}

	result, err := h.svc.AssembleDeck(r.Context(), req)
	if err != nil {
		if result != nil {
			response.FromErrorWithDetails(w, err, result)
			return
		}
		response.FromError(w, err)
		return
	}

	if req.Save && result.Deck != nil {
		response.Created(w, result)
		return
	}
	response.Success(w, result)
}

// GetDecks lists saved decks. page and page_size paginate the listing.
func (h *DeckHandler) GetDecks(w http.ResponseWriter, r *http.Request) {
	decks, err := h.svc.ListDecks(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}

	page, pageSize, ok := pagination(r)
	if !ok {
		response.Success(w, decks)
		return
	}

	start := min((page-1)*pageSize, len(decks))
	end := min(start+pageSize, len(decks))
	response.Paginated(w, decks[start:end], page, pageSize, len(decks))
}

// pagination reads page and page_size. ok is false when neither is given.
func pagination(r *http.Request) (page, pageSize int, ok bool) {
	q := r.URL.Query()
	if q.Get("page") == "" && q.Get("page_size") == "" {
		return 0, 0, false
	}
	page, pageSize = 1, 20
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(q.Get("page_size")); err == nil && v > 0 {
		pageSize = min(v, 200)
	}
	return page, pageSize, true
}

// GetDeck returns a saved deck.
func (h *DeckHandler) GetDeck(w http.ResponseWriter, r *http.Request) {
	deck, err := h.svc.GetDeck(r.Context(), chi.URLParam(r, "deckID"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, deck)
}

// DeleteDeck removes a saved deck.
func (h *DeckHandler) DeleteDeck(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteDeck(r.Context(), chi.URLParam(r, "deckID")); err != nil {
		response.FromError(w, err)
		return
	}
	response.NoContent(w)
}

// RecordGameRequest represents a game result for a saved deck.
type RecordGameRequest struct {
	Outcome  string     `json:"outcome"`
	PlayedAt *time.Time `json:"playedAt,omitempty"`
}

// RecordGame stores a game result.
func (h *DeckHandler) RecordGame(w http.ResponseWriter, r *http.Request) {
	var req RecordGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, errors.New("invalid request body"))
		return
	}

	game := stats.Game{DeckID: chi.URLParam(r, "deckID"), Outcome: stats.Outcome(req.Outcome)}
	if req.PlayedAt != nil {
		game.PlayedAt = *req.PlayedAt
	}
	if err := h.svc.RecordGame(r.Context(), game); err != nil {
		response.FromError(w, err)
		return
	}
	response.Created(w, game)
}
