// Package resolver matches free-text network names against the networks an
// operator account can see.
package resolver

import (
	"errors"
	"fmt"
	"sort"

	"github.com/HerbHall/leasetrace/pkg/models"
)

// DefaultTopK is the number of rows offered when listing best matches.
const DefaultTopK = 10

var (
	// ErrEmptyCandidateSet is returned when there are no networks to match against.
	ErrEmptyCandidateSet = errors.New("no candidate networks")

	// ErrInvalidSelection is returned when a row index is outside a match list.
	ErrInvalidSelection = errors.New("invalid selection")
)

// Match is a scored candidate network.
type Match struct {
	Network models.Network `json:"network"`
	Score   int            `json:"score"`
	// Index is the candidate's position in the input slice.
	Index int `json:"-"`
}

// BestMatch returns the candidate whose name scores highest against query.
// Ties go to the candidate that appears first.
func BestMatch(query string, candidates []models.Network) (Match, error) {
	if len(candidates) == 0 {
		return Match{}, ErrEmptyCandidateSet
	}

	best := Match{Network: candidates[0], Score: Score(query, candidates[0].Name)}
	for i := 1; i < len(candidates); i++ {
		s := Score(query, candidates[i].Name)
		if s > best.Score {
			best = Match{Network: candidates[i], Score: s, Index: i}
		}
	}
	return best, nil
}

// TopMatches returns the k highest scoring candidates in descending score
// order. Equal scores keep input order. The result has min(k, len(candidates))
// entries.
func TopMatches(query string, candidates []models.Network, k int) ([]Match, error) {
	if len(candidates) == 0 {
		return nil, ErrEmptyCandidateSet
	}
	if k <= 0 {
		return []Match{}, nil
	}

	matches := make([]Match, len(candidates))
	for i, c := range candidates {
		matches[i] = Match{Network: c, Score: Score(query, c.Name), Index: i}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// Select returns row of a TopMatches result.
func Select(matches []Match, row int) (Match, error) {
	if row < 0 || row >= len(matches) {
		return Match{}, fmt.Errorf("%w: row %d not in 0..%d", ErrInvalidSelection, row, len(matches)-1)
	}
	return matches[row], nil
}
