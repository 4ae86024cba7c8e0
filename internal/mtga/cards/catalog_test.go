package cards

import (
	"strings"
	"testing"
)

const bulkFixture = `[
  {"name":"Sol Ring","set":"c21","mana_cost":"{1}","cmc":1,"type_line":"Artifact","oracle_text":"{T}: Add {C}{C}.","colors":[],"color_identity":[],"rarity":"uncommon","legalities":{"commander":"legal","vintage":"restricted"},"tags":["staple"],"prices":{"usd":"1.50"}},
  {"name":"Sol Ring","set":"cmr","mana_cost":"{1}","cmc":1,"type_line":"Artifact","colors":[],"color_identity":[],"rarity":"uncommon","legalities":{"commander":"legal"}},
  {"name":"Delver of Secrets // Insectile Aberration","set":"isd","cmc":1,"type_line":"Creature — Human Wizard // Creature — Human Insect","color_identity":["U"],"rarity":"common","legalities":{"commander":"legal"},
   "card_faces":[{"name":"Delver of Secrets","mana_cost":"{U}","type_line":"Creature — Human Wizard","oracle_text":"At the beginning of your upkeep, look at the top card of your library.","colors":["U"]},
                 {"name":"Insectile Aberration","mana_cost":"","type_line":"Creature — Human Insect","oracle_text":"Flying","colors":["U"]}]},
  {"name":"","set":"xxx"}
]`

func TestLoadBulk(t *testing.T) {
	catalog, err := LoadBulk(strings.NewReader(bulkFixture))
	if err != nil {
		t.Fatalf("LoadBulk: %v", err)
	}

	if catalog.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", catalog.Len())
	}

	ring, ok := catalog.Lookup("sol ring", "")
	if !ok {
		t.Fatal("Sol Ring not found")
	}
	if ring.SetCode != "c21" {
		t.Errorf("name lookup should resolve to lowest set code, got %q", ring.SetCode)
	}
	if ring.LegalityIn(FormatVintage) != Restricted {
		t.Errorf("vintage legality = %s", ring.LegalityIn(FormatVintage))
	}
	if !ring.HasTag(TagStaple) {
		t.Errorf("curated tag lost: %v", ring.Tags)
	}

	cmr, ok := catalog.Lookup("Sol Ring", "CMR")
	if !ok || cmr.SetCode != "cmr" {
		t.Errorf("set lookup = %+v, %v", cmr, ok)
	}

	delver, ok := catalog.Lookup("Delver of Secrets // Insectile Aberration", "")
	if !ok {
		t.Fatal("Delver not found")
	}
	if delver.ManaCost != "{U}" {
		t.Errorf("front face mana cost not used: %q", delver.ManaCost)
	}
	if !delver.Colors.Has(Blue) {
		t.Error("front face colors not used")
	}
	if !delver.HasTag("flying") {
		t.Errorf("back face text not tagged: %v", delver.Tags)
	}
}

func TestLoadBulk_NotArray(t *testing.T) {
	if _, err := LoadBulk(strings.NewReader(`{"object":"card"}`)); err == nil {
		t.Error("expected error for non-array bulk data")
	}
}

func TestCatalog_LookupFallback(t *testing.T) {
	catalog := NewCatalog([]*Card{{Name: "Forest", TypeLine: "Basic Land — Forest"}})

	if _, ok := catalog.Lookup("Forest", "neo"); !ok {
		t.Error("unknown printing should fall back to the name record")
	}
	if _, ok := catalog.Lookup("Island", ""); ok {
		t.Error("unexpected hit for unknown card")
	}

	var nilCatalog *Catalog
	if _, ok := nilCatalog.Lookup("Forest", ""); ok {
		t.Error("nil catalog should never match")
	}
}

func TestCatalog_Suggest(t *testing.T) {
	catalog := NewCatalog([]*Card{
		{Name: "Sol Ring"},
		{Name: "Soul Ring"},
		{Name: "Arcane Signet"},
	})

	got := catalog.Suggest("sol rnig", 0)
	if len(got) == 0 || got[0] != "Sol Ring" {
		t.Fatalf("Suggest() = %v, want Sol Ring first", got)
	}
	for _, name := range got {
		if name == "Arcane Signet" {
			t.Errorf("Suggest() returned unrelated %q", name)
		}
	}

	if got := catalog.Suggest("sol", 1); len(got) != 1 {
		t.Errorf("Suggest() with limit 1 returned %v", got)
	}
	if got := (*Catalog)(nil).Suggest("sol", 3); got != nil {
		t.Errorf("nil catalog returned %v", got)
	}
}
