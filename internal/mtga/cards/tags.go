package cards

import (
	"regexp"
	"sort"
	"strings"
)

// evergreenKeywords are the keyword abilities recognized as synergy tags.
var evergreenKeywords = []string{
	"Flying", "First strike", "Double strike", "Deathtouch", "Haste",
	"Hexproof", "Indestructible", "Lifelink", "Menace", "Reach",
	"Trample", "Vigilance", "Ward", "Flash", "Defender",
}

// themePatterns map oracle text patterns to theme tags.
var themePatterns = map[string][]*regexp.Regexp{
	"tokens":      compileAll(`create[s]? (a|an|one|two|three|x|that many) .*token`),
	"sacrifice":   compileAll(`sacrifice (a|another) (creature|permanent|artifact)`),
	"graveyard":   compileAll(`from (your|a) graveyard`, `mill`, `surveil`),
	"counters":    compileAll(`\+1/\+1 counter`, `proliferate`),
	"draw":        compileAll(`draw (a|two|three|x) cards?`),
	"ramp":        compileAll(`add \{[wubrgc]\}`, `search your library for .*land`, `add one mana`),
	"removal":     compileAll(`destroy target`, `exile target`, `deals? \d+ damage to (any target|target creature)`),
	"wipe":        compileAll(`destroy all`, `exile all`, `each creature`),
	"lifegain":    compileAll(`you gain \d+ life`, `gain life`),
	"artifacts":   compileAll(`artifact you control`, `artifact spell`),
	"enchantment": compileAll(`enchantment you control`, `enchantment spell`),
	"spells":      compileAll(`instant or sorcery`, `noncreature spell`, `magecraft`, `prowess`),
	"tutor":       compileAll(`search your library for a card`),
	"etb":         compileAll(`enters the battlefield`, `when .* enters`),
}

var (
	anyNumberPattern = regexp.MustCompile(`(?i)a deck can have any number of cards named`)
	commanderPattern = regexp.MustCompile(`(?i)can be your commander`)
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// DeriveTags extracts synergy tags from a card's keywords, oracle text and
// type line. Extra tags (from curated lists such as staples) are merged in.
// The result is lowercase, sorted and unique.
func DeriveTags(keywords []string, oracleText, typeLine string, extra ...string) []string {
	set := make(map[string]struct{})
	add := func(t string) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			set[t] = struct{}{}
		}
	}

	for _, kw := range keywords {
		add(kw)
	}

	lowerText := strings.ToLower(oracleText)
	for _, kw := range evergreenKeywords {
		if strings.Contains(lowerText, strings.ToLower(kw)) {
			add(kw)
		}
	}

	for theme, patterns := range themePatterns {
		for _, p := range patterns {
			if p.MatchString(oracleText) {
				add(theme)
				break
			}
		}
	}

	if anyNumberPattern.MatchString(oracleText) {
		add(TagAnyNumber)
	}
	if commanderPattern.MatchString(oracleText) {
		add(TagCanBeCommander)
	}

	// Creature types act as tribal tags.
	if containsType(typeLine, "Creature") {
		for _, st := range Subtypes(typeLine) {
			add("tribe:" + st)
		}
	}

	for _, t := range extra {
		add(t)
	}

	return sortedKeys(set)
}

// NormalizeTags lowercases, deduplicates and sorts tags.
func NormalizeTags(tags []string) []string {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			set[t] = struct{}{}
		}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
