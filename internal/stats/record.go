package stats

import (
	"fmt"
	"time"
)

// Outcome is the result of one game.
type Outcome string

const (
	Win  Outcome = "win"
	Loss Outcome = "loss"
	Draw Outcome = "draw"
)

// Game is one recorded game of a deck.
type Game struct {
	DeckID   string    `json:"deckId"`
	Outcome  Outcome   `json:"outcome"`
	PlayedAt time.Time `json:"playedAt"`
}

// Record summarizes the games of a deck.
type Record struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Draws  int `json:"draws"`

	// CurrentStreak is positive for consecutive wins and negative for
	// consecutive losses at the end of the record.
	CurrentStreak     int `json:"currentStreak"`
	LongestWinStreak  int `json:"longestWinStreak"`
	LongestLossStreak int `json:"longestLossStreak"`
}

// Games returns the number of recorded games.
func (r Record) Games() int { return r.Wins + r.Losses + r.Draws }

// WinRate returns wins/games, or 0 when no games were played.
func (r Record) WinRate() float64 {
	if r.Games() == 0 {
		return 0
	}
	return float64(r.Wins) / float64(r.Games())
}

// Summarize builds a Record from games ordered oldest first. Draws and
// unknown outcomes break a streak.
func Summarize(games []Game) Record {
	var r Record
	wins, losses := 0, 0

	for _, g := range games {
		switch g.Outcome {
		case Win:
			r.Wins++
			wins++
			losses = 0
			r.LongestWinStreak = max(r.LongestWinStreak, wins)
		case Loss:
			r.Losses++
			losses++
			wins = 0
			r.LongestLossStreak = max(r.LongestLossStreak, losses)
		default:
			r.Draws++
			wins, losses = 0, 0
		}
	}

	switch {
	case wins > 0:
		r.CurrentStreak = wins
	case losses > 0:
		r.CurrentStreak = -losses
	}
	return r
}

// ParseOutcome validates an outcome string.
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(s); o {
	case Win, Loss, Draw:
		return o, nil
	}
	return "", fmt.Errorf("unknown game outcome %q", s)
}

// FormatStreak returns a human-readable string for a streak.
func FormatStreak(streak int) string {
	switch {
	case streak == 0:
		return "No active streak"
	case streak == 1:
		return "1 win streak"
	case streak > 1:
		return fmt.Sprintf("%d win streak", streak)
	case streak == -1:
		return "1 loss streak"
	}
	return fmt.Sprintf("%d loss streak", -streak)
}
