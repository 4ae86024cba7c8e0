package cards

import (
	"encoding/json"
	"fmt"
	"math/bits"
	"slices"
	"strings"
)

// Color is one of the five Magic colors.
type Color string

const (
	White Color = "W"
	Blue  Color = "U"
	Black Color = "B"
	Red   Color = "R"
	Green Color = "G"
)

// AllColors lists the colors in WUBRG order.
var AllColors = []Color{White, Blue, Black, Red, Green}

func (c Color) bit() ColorSet {
	switch c {
	case White:
		return 1 << 0
	case Blue:
		return 1 << 1
	case Black:
		return 1 << 2
	case Red:
		return 1 << 3
	case Green:
		return 1 << 4
	}
	return 0
}

// ColorSet is a set of colors stored as a bitmask. The zero value is colorless.
type ColorSet uint8

// NewColorSet builds a set from color symbols. Unknown symbols are ignored.
func NewColorSet(colors ...Color) ColorSet {
	var s ColorSet
	for _, c := range colors {
		s |= Color(strings.ToUpper(string(c))).bit()
	}
	return s
}

// ParseColorSet builds a set from Scryfall-style strings such as ["W","U"].
func ParseColorSet(symbols []string) ColorSet {
	var s ColorSet
	for _, sym := range symbols {
		s |= Color(strings.ToUpper(strings.TrimSpace(sym))).bit()
	}
	return s
}

// Has reports whether c is in the set.
func (s ColorSet) Has(c Color) bool { return s&c.bit() != 0 }

// Union returns s ∪ o.
func (s ColorSet) Union(o ColorSet) ColorSet { return s | o }

// SubsetOf reports whether every color of s is in o.
func (s ColorSet) SubsetOf(o ColorSet) bool { return s&^o == 0 }

// Len returns the number of colors in the set.
func (s ColorSet) Len() int { return bits.OnesCount8(uint8(s)) }

// Colors returns the colors in WUBRG order.
func (s ColorSet) Colors() []Color {
	out := make([]Color, 0, s.Len())
	for _, c := range AllColors {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s ColorSet) String() string {
	if s == 0 {
		return "C"
	}
	var b strings.Builder
	for _, c := range s.Colors() {
		b.WriteString(string(c))
	}
	return b.String()
}

// MarshalJSON encodes the set as an array of color symbols.
func (s ColorSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Colors())
}

// UnmarshalJSON decodes an array of color symbols.
func (s *ColorSet) UnmarshalJSON(data []byte) error {
	var symbols []string
	if err := json.Unmarshal(data, &symbols); err != nil {
		return fmt.Errorf("invalid color set: %w", err)
	}
	*s = ParseColorSet(symbols)
	return nil
}

// BasicLandNames maps each color to the basic land producing it.
var BasicLandNames = map[Color]string{
	White: "Plains",
	Blue:  "Island",
	Black: "Swamp",
	Red:   "Mountain",
	Green: "Forest",
}

// Wastes is the colorless basic land.
const Wastes = "Wastes"

// Format identifies a constructed format.
type Format string

const (
	FormatCommander       Format = "commander"
	FormatBrawl           Format = "brawl"
	FormatPauperCommander Format = "paupercommander"
	FormatStandard        Format = "standard"
	FormatModern          Format = "modern"
	FormatLegacy          Format = "legacy"
	FormatVintage         Format = "vintage"
	FormatPauper          Format = "pauper"
)

// Legality is a card's status in a format.
type Legality string

const (
	Legal      Legality = "legal"
	NotLegal   Legality = "not_legal"
	Banned     Legality = "banned"
	Restricted Legality = "restricted"
)

// Tags with engine-level meaning. Everything else is a synergy marker.
const (
	TagAnyNumber      = "any-number"       // exempt from the singleton rule
	TagCanBeCommander = "can-be-commander" // may occupy the commander slot
	TagStaple         = "staple"
	TagGameChanger    = "game-changer"
)

// Card is an immutable catalog record.
type Card struct {
	Name          string              `json:"name"`
	SetCode       string              `json:"set,omitempty"`
	Colors        ColorSet            `json:"colors"`
	ColorIdentity ColorSet            `json:"color_identity"`
	ManaCost      string              `json:"mana_cost,omitempty"`
	ManaValue     float64             `json:"mana_value"`
	TypeLine      string              `json:"type_line"`
	Rarity        string              `json:"rarity"` // "common", "uncommon", "rare", "mythic"
	Legalities    map[Format]Legality `json:"legalities"`
	Tags          []string            `json:"tags,omitempty"` // sorted, unique
}

// Key returns the catalog identity of the card: name|set when the set is
// known, otherwise the name. Names are compared case-insensitively.
func (c *Card) Key() string {
	return Key(c.Name, c.SetCode)
}

// Key builds a catalog key from a name and optional set code.
func Key(name, setCode string) string {
	k := strings.ToLower(strings.TrimSpace(name))
	if setCode != "" {
		k += "|" + strings.ToLower(strings.TrimSpace(setCode))
	}
	return k
}

// LegalityIn returns the card's legality in f, defaulting to NotLegal.
func (c *Card) LegalityIn(f Format) Legality {
	if l, ok := c.Legalities[f]; ok {
		return l
	}
	return NotLegal
}

// HasTag reports whether the card carries tag.
func (c *Card) HasTag(tag string) bool {
	_, found := slices.BinarySearch(c.Tags, tag)
	return found
}

// IsLand reports whether the card is a land.
func (c *Card) IsLand() bool {
	return containsType(c.TypeLine, "Land")
}

// IsBasicLand reports whether the card is a basic land.
func (c *Card) IsBasicLand() bool {
	return containsType(c.TypeLine, "Basic") && c.IsLand()
}

// IsCreature reports whether the card is a creature.
func (c *Card) IsCreature() bool {
	return containsType(c.TypeLine, "Creature")
}

// IsLegendaryCreature reports whether the card is a legendary creature.
func (c *Card) IsLegendaryCreature() bool {
	return containsType(c.TypeLine, "Legendary") && containsType(c.TypeLine, "Creature")
}

// CanBeCommander reports whether the card may occupy a commander slot.
func (c *Card) CanBeCommander() bool {
	return c.IsLegendaryCreature() || c.HasTag(TagCanBeCommander)
}

// SingletonExempt reports whether any number of copies may be played.
func (c *Card) SingletonExempt() bool {
	return c.IsBasicLand() || c.HasTag(TagAnyNumber)
}

// ManaCostColors returns the colors appearing in the card's mana cost.
func (c *Card) ManaCostColors() ColorSet {
	var s ColorSet
	for color := range ColorPips(c.ManaCost) {
		s |= color.bit()
	}
	return s
}

// ColorPips counts colored mana symbols in a cost such as "{2}{W}{W/U}".
// Hybrid symbols count once for each of their colors; phyrexian symbols
// count for their color.
func ColorPips(manaCost string) map[Color]int {
	pips := make(map[Color]int)
	for _, sym := range strings.Split(manaCost, "{") {
		sym = strings.TrimSuffix(strings.TrimSpace(sym), "}")
		if sym == "" {
			continue
		}
		for _, part := range strings.Split(sym, "/") {
			c := Color(strings.ToUpper(part))
			if c.bit() != 0 {
				pips[c]++
			}
		}
	}
	return pips
}

// containsType checks if a type line contains a specific type before the dash.
func containsType(typeLine, targetType string) bool {
	head := typeLine
	if i := strings.Index(typeLine, "—"); i >= 0 {
		head = typeLine[:i]
	}
	for _, f := range strings.Fields(head) {
		if strings.EqualFold(f, targetType) {
			return true
		}
	}
	return false
}

// Subtypes returns the subtypes from a type line.
// For example: "Legendary Creature — Elf Druid" -> ["Elf", "Druid"]
func Subtypes(typeLine string) []string {
	parts := strings.SplitN(typeLine, "—", 2)
	if len(parts) < 2 {
		parts = strings.SplitN(typeLine, " - ", 2)
	}
	if len(parts) < 2 {
		return nil
	}
	return strings.Fields(parts[1])
}
