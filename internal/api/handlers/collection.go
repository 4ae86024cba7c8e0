package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ramonehamilton/deckforge/internal/api/response"
	"github.com/ramonehamilton/deckforge/internal/collection"
)

// CollectionService is the collection part of the service facade.
type CollectionService interface {
	ImportCollection(ctx context.Context, records []collection.Record, replace bool) (*collection.Collection, error)
	Collection(ctx context.Context) (*collection.Collection, error)
}

// CollectionHandler handles collection-related API requests.
type CollectionHandler struct {
	svc CollectionService
}

// NewCollectionHandler creates a new CollectionHandler.
func NewCollectionHandler(svc CollectionService) *CollectionHandler {
	return &CollectionHandler{svc: svc}
}

// CollectionResponse is the stored collection.
type CollectionResponse struct {
	Printings     int                    `json:"printings"`
	TotalQuantity int                    `json:"totalQuantity"`
	Cards         []collection.OwnedCard `json:"cards"`
}

func newCollectionResponse(c *collection.Collection) CollectionResponse {
	return CollectionResponse{
		Printings:     c.Len(),
		TotalQuantity: c.TotalQuantity(),
		Cards:         c.Items(),
	}
}

// GetCollection returns the stored collection.
func (h *CollectionHandler) GetCollection(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Collection(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, newCollectionResponse(c))
}

// ImportRequest carries import records, either as JSON records or as the
// text of a CSV export.
type ImportRequest struct {
	Records []collection.Record `json:"records,omitempty"`
	CSV     string              `json:"csv,omitempty"`
	Replace bool                `json:"replace,omitempty"`
}

// Import stores imported cards, merging them into the collection unless
// replace is set.
func (h *CollectionHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, errors.New("invalid request body"))
		return
	}

	records := req.Records
	if strings.TrimSpace(req.CSV) != "" {
		parsed, err := collection.ParseCSV(strings.NewReader(req.CSV))
		if err != nil {
			response.FromError(w, err)
			return
		}
		records = append(records, parsed...)
	}
	if len(records) == 0 && !req.Replace {
		response.BadRequest(w, errors.New("no records to import"))
		return
	}

	c, err := h.svc.ImportCollection(r.Context(), records, req.Replace)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, newCollectionResponse(c))
}
