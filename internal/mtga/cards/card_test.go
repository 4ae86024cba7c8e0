package cards

import (
	"encoding/json"
	"testing"
)

func TestColorSet(t *testing.T) {
	wu := NewColorSet(White, Blue)
	wub := NewColorSet(White, Blue, Black)

	if !wu.SubsetOf(wub) {
		t.Error("WU should be a subset of WUB")
	}
	if wub.SubsetOf(wu) {
		t.Error("WUB should not be a subset of WU")
	}
	if !ColorSet(0).SubsetOf(wu) {
		t.Error("colorless should be a subset of every identity")
	}
	if wub.Len() != 3 {
		t.Errorf("Len() = %d, want 3", wub.Len())
	}
	if got := wub.String(); got != "WUB" {
		t.Errorf("String() = %q, want WUB", got)
	}
	if got := ColorSet(0).String(); got != "C" {
		t.Errorf("colorless String() = %q, want C", got)
	}
}

func TestColorSet_JSON(t *testing.T) {
	in := NewColorSet(Green, White)
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `["W","G"]` {
		t.Errorf("Marshal = %s, want [\"W\",\"G\"]", data)
	}

	var out ColorSet
	if err := json.Unmarshal([]byte(`["g","W","X"]`), &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out != in {
		t.Errorf("Unmarshal = %s, want %s", out, in)
	}
}

func TestColorPips(t *testing.T) {
	tests := []struct {
		cost string
		want map[Color]int
	}{
		{"", map[Color]int{}},
		{"{2}{W}{W}", map[Color]int{White: 2}},
		{"{1}{W/U}{B}", map[Color]int{White: 1, Blue: 1, Black: 1}},
		{"{G/P}{X}", map[Color]int{Green: 1}},
	}

	for _, tt := range tests {
		got := ColorPips(tt.cost)
		if len(got) != len(tt.want) {
			t.Errorf("ColorPips(%q) = %v, want %v", tt.cost, got, tt.want)
			continue
		}
		for c, n := range tt.want {
			if got[c] != n {
				t.Errorf("ColorPips(%q)[%s] = %d, want %d", tt.cost, c, got[c], n)
			}
		}
	}
}

func TestCard_TypeChecks(t *testing.T) {
	forest := &Card{Name: "Forest", TypeLine: "Basic Land — Forest"}
	tower := &Card{Name: "Command Tower", TypeLine: "Land"}
	commander := &Card{Name: "Atraxa", TypeLine: "Legendary Creature — Phyrexian Angel Horror"}
	walker := &Card{Name: "Teferi", TypeLine: "Legendary Planeswalker — Teferi", Tags: []string{TagCanBeCommander}}
	rats := &Card{Name: "Relentless Rats", TypeLine: "Creature — Rat", Tags: []string{TagAnyNumber}}

	if !forest.IsBasicLand() || !forest.SingletonExempt() {
		t.Error("Forest should be a singleton-exempt basic land")
	}
	if tower.IsBasicLand() || !tower.IsLand() {
		t.Error("Command Tower is a nonbasic land")
	}
	if !commander.CanBeCommander() {
		t.Error("legendary creature should be able to be a commander")
	}
	if !walker.CanBeCommander() {
		t.Error("tagged planeswalker should be able to be a commander")
	}
	if !rats.SingletonExempt() {
		t.Error("any-number card should be singleton exempt")
	}
	if tower.SingletonExempt() {
		t.Error("nonbasic land must obey the singleton rule")
	}
}

func TestKey(t *testing.T) {
	if got := Key(" Sol Ring ", ""); got != "sol ring" {
		t.Errorf("Key = %q", got)
	}
	if got := Key("Sol Ring", "C21"); got != "sol ring|c21" {
		t.Errorf("Key with set = %q", got)
	}
}

func TestCard_LegalityIn(t *testing.T) {
	c := &Card{Legalities: map[Format]Legality{FormatCommander: Banned}}
	if c.LegalityIn(FormatCommander) != Banned {
		t.Error("expected banned")
	}
	if c.LegalityIn(FormatBrawl) != NotLegal {
		t.Error("missing format should default to not_legal")
	}
}
