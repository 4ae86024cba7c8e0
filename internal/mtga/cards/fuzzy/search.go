// Package fuzzy ranks strings by similarity to a query. It backs the
// "did you mean" suggestions for misspelled card names.
package fuzzy

import (
	"sort"
	"strings"
)

// Match is one ranked result.
type Match[T any] struct {
	Item  T
	Score int // 0-100
	Index int
}

// Options configures a search.
type Options struct {
	// MaxResults limits the number of results (0 = unlimited).
	MaxResults int
	// MinScore is the lowest accepted similarity (0-100).
	MinScore int
}

// DefaultOptions returns the options used for card name suggestions.
func DefaultOptions() Options {
	return Options{
		MaxResults: 5,
		MinScore:   60,
	}
}

// Search scores every item's key against query and returns the matches sorted by score, then by input order.
func Search[T any](query string, items []T, key func(T) string, options Options) []Match[T] {
	results := make([]Match[T], 0)
	for i, item := range items {
		score := Score(query, key(item))
		if score >= options.MinScore {
			results = append(results, Match[T]{Item: item, Score: score, Index: i})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Index < results[j].Index
	})

	if options.MaxResults > 0 && len(results) > options.MaxResults {
		results = results[:options.MaxResults]
	}
	return results
}

// punctuation is dropped or turned into spaces before scoring, so
// "omnath locus" matches "Omnath, Locus of Mana".
var punctuation = strings.NewReplacer(",", "", "'", "", "’", "", "-", " ")

// Normalize lowercases s, drops name punctuation and collapses whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(punctuation.Replace(strings.ToLower(s))), " ")
}

// Score returns the similarity of query to target from 0 to 100 after
// normalizing both. Prefix matches outrank other substring matches;
// everything else is scored by edit distance.
func Score(query, target string) int {
	query, target = Normalize(query), Normalize(target)
	if query == target {
		return 100
	}
	if query == "" || target == "" {
		return 0
	}

	q, t := []rune(query), []rune(target)
	switch {
	case strings.HasPrefix(target, query):
		return 85 + len(q)*14/len(t)
	case strings.Contains(target, query):
		return 70 + len(q)*14/len(t)
	}

	longest := max(len(q), len(t))
	return 100 - Distance(q, t)*100/longest
}

// Distance is the Levenshtein distance between a and b, computed with two
// rows.
func Distance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
