// Package score aggregates rank sets into competitor comparison scores.
package score

import (
	"sort"

	"github.com/rankscope/rankscope/internal/seo"
)

// Comparison counts queries where the own site outranks the competitor and
// vice versa. Total counts queries where at least one side appears.
type Comparison struct {
	Better int `json:"better"`
	Worse  int `json:"worse"`
	Total  int `json:"total"`
}

// Net is the comparison's aggregate: better minus worse.
func (c Comparison) Net() int {
	return c.Better - c.Worse
}

// Compare walks the union of query keys in both position maps. Every key
// present in either map counts toward Total; queries in neither map never
// enter the union. Better/Worse compare ranked positions only: nil or
// non-positive positions mean "not ranked", presence of a ranked position on
// one side alone counts for that side, lower numeric position wins, and equal
// positions count for neither.
func Compare(own, competitor map[string]*int) Comparison {
	keys := make(map[string]struct{}, len(own)+len(competitor))
	for q := range own {
		keys[q] = struct{}{}
	}
	for q := range competitor {
		keys[q] = struct{}{}
	}

	var c Comparison
	for q := range keys {
		ownPos := ranked(own[q])
		compPos := ranked(competitor[q])
		switch {
		case ownPos == nil && compPos == nil:
			// counts toward the total only
		case compPos == nil:
			c.Better++
		case ownPos == nil:
			c.Worse++
		case *ownPos < *compPos:
			c.Better++
		case *compPos < *ownPos:
			c.Worse++
		}
		c.Total++
	}
	return c
}

// Rank orders competitor scores by descending net score, ties broken by
// competitor name ascending.
func Rank(scores []seo.CompetitorScore) []seo.CompetitorScore {
	out := make([]seo.CompetitorScore, len(scores))
	copy(out, scores)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Net != out[j].Net {
			return out[i].Net > out[j].Net
		}
		return out[i].Competitor.Name < out[j].Competitor.Name
	})
	return out
}

func ranked(p *int) *int {
	if p == nil || *p <= 0 {
		return nil
	}
	return p
}
