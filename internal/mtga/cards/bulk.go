package cards

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// ScryfallCard is the subset of the Scryfall card object the catalog reads.
// Fields not listed here are dropped at decode time.
type ScryfallCard struct {
	Name          string             `json:"name"`
	Set           string             `json:"set"`
	Layout        string             `json:"layout"`
	ManaCost      string             `json:"mana_cost"`
	CMC           float64            `json:"cmc"`
	TypeLine      string             `json:"type_line"`
	OracleText    string             `json:"oracle_text,omitempty"`
	Colors        []string           `json:"colors"`
	ColorIdentity []string           `json:"color_identity"`
	Keywords      []string           `json:"keywords,omitempty"`
	Rarity        string             `json:"rarity"`
	Legalities    map[string]string  `json:"legalities"`
	CardFaces     []ScryfallCardFace `json:"card_faces,omitempty"`
	Tags          []string           `json:"tags,omitempty"` // curated extras, not a Scryfall field
}

// ScryfallCardFace represents a face of a multi-faced card in Scryfall format.
type ScryfallCardFace struct {
	Name       string   `json:"name"`
	TypeLine   string   `json:"type_line"`
	ManaCost   string   `json:"mana_cost"`
	OracleText string   `json:"oracle_text"`
	Colors     []string `json:"colors"`
}

// ToCard converts a ScryfallCard to the catalog Card representation.
func (sc *ScryfallCard) ToCard() *Card {
	manaCost := sc.ManaCost
	oracleText := sc.OracleText
	colors := sc.Colors

	// Multi-faced cards carry cost and text on their faces.
	if len(sc.CardFaces) > 0 {
		front := sc.CardFaces[0]
		if manaCost == "" {
			manaCost = front.ManaCost
		}
		if len(colors) == 0 {
			colors = front.Colors
		}
		texts := make([]string, 0, len(sc.CardFaces))
		for _, f := range sc.CardFaces {
			texts = append(texts, f.OracleText)
		}
		if oracleText == "" {
			oracleText = strings.Join(texts, "\n")
		}
	}

	legalities := make(map[Format]Legality, len(sc.Legalities))
	for f, l := range sc.Legalities {
		legalities[Format(strings.ToLower(f))] = Legality(strings.ToLower(l))
	}

	mv := sc.CMC
	if mv < 0 {
		mv = 0
	}

	return &Card{
		Name:          sc.Name,
		SetCode:       strings.ToLower(sc.Set),
		Colors:        ParseColorSet(colors),
		ColorIdentity: ParseColorSet(sc.ColorIdentity),
		ManaCost:      manaCost,
		ManaValue:     mv,
		TypeLine:      sc.TypeLine,
		Rarity:        strings.ToLower(sc.Rarity),
		Legalities:    legalities,
		Tags:          DeriveTags(sc.Keywords, oracleText, sc.TypeLine, sc.Tags...),
	}
}

// LoadBulk decodes a Scryfall bulk data file (a JSON array of card objects)
// into a Catalog. Records are streamed so large files are not held twice.
func LoadBulk(r io.Reader) (*Catalog, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read bulk data: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, fmt.Errorf("bulk data must be a JSON array")
	}

	records := make([]*Card, 0, 1024)
	for dec.More() {
		var sc ScryfallCard
		if err := dec.Decode(&sc); err != nil {
			return nil, fmt.Errorf("failed to decode card %d: %w", len(records), err)
		}
		if sc.Name == "" {
			continue
		}
		records = append(records, sc.ToCard())
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to read end of bulk data: %w", err)
	}

	return NewCatalog(records), nil
}

// LoadBulkFile opens path and loads it with LoadBulk.
func LoadBulkFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bulk data file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return LoadBulk(f)
}
