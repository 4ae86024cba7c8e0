package scryfall

import (
	"fmt"
	"time"
)

// Card is the subset of the Scryfall card object read by the price source.
type Card struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	SetCode  string `json:"set"`
	SetName  string `json:"set_name"`
	Rarity   string `json:"rarity"`
	TypeLine string `json:"type_line"`
	Prices   Prices `json:"prices"`
}

// Prices holds market prices as decimal strings. Scryfall reports null for
// printings without a market.
type Prices struct {
	USD       *string `json:"usd,omitempty"`
	USDFoil   *string `json:"usd_foil,omitempty"`
	USDEtched *string `json:"usd_etched,omitempty"`
	EUR       *string `json:"eur,omitempty"`
	EURFoil   *string `json:"eur_foil,omitempty"`
	TIX       *string `json:"tix,omitempty"`
}

// BulkDataList represents the list of bulk data files.
type BulkDataList struct {
	Object  string     `json:"object"`
	HasMore bool       `json:"has_more"`
	Data    []BulkData `json:"data"`
}

// BulkData describes one downloadable bulk file.
type BulkData struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	UpdatedAt       time.Time `json:"updated_at"`
	Name            string    `json:"name"`
	Size            int64     `json:"size"`
	DownloadURI     string    `json:"download_uri"`
	ContentType     string    `json:"content_type"`
	ContentEncoding string    `json:"content_encoding"`
}

// APIError represents an error response from the Scryfall API.
type APIError struct {
	Object   string   `json:"object"`
	Code     string   `json:"code"`
	Status   int      `json:"status"`
	Details  string   `json:"details"`
	Warnings []string `json:"warnings,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("Scryfall API error (HTTP %d): %s", e.Status, e.Details)
	}
	return fmt.Sprintf("Scryfall API error (HTTP %d): %s", e.Status, e.Code)
}

// NotFoundError represents a 404 from the API.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource not found: %s", e.URL)
}
