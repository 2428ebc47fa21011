package keywords

import (
	"sort"
	"strings"

	"github.com/rankscope/rankscope/internal/seo"
)

// Weighting multipliers applied on top of raw frequency. They compound
// multiplicatively: a keyword present in title, description and headings
// receives the product of all applicable factors.
const (
	titleMultiplier       = 5.0
	descriptionMultiplier = 3.0
	headingIncrement      = 0.5
)

// Weight scores keywords against page placement signals. The score starts at
// the keyword's frequency, is multiplied by 5 on a title substring match, by
// 3 on a meta-description match, and by 1 + 0.5 per distinct matching
// heading. Scores are rounded to 2 decimals and sorted descending, ties
// broken by keyword ascending.
func Weight(kws []seo.WeightedKeyword, title, metaDescription string, headings []string) []seo.WeightedKeyword {
	loweredTitle := strings.ToLower(title)
	loweredDesc := strings.ToLower(metaDescription)
	loweredHeadings := make([]string, len(headings))
	for i, h := range headings {
		loweredHeadings[i] = strings.ToLower(h)
	}

	out := make([]seo.WeightedKeyword, len(kws))
	for i, kw := range kws {
		needle := strings.ToLower(kw.Keyword)
		score := float64(kw.Frequency)
		if needle != "" && strings.Contains(loweredTitle, needle) {
			score *= titleMultiplier
		}
		if needle != "" && strings.Contains(loweredDesc, needle) {
			score *= descriptionMultiplier
		}
		matches := 0
		for _, h := range loweredHeadings {
			if needle != "" && strings.Contains(h, needle) {
				matches++
			}
		}
		score *= 1 + headingIncrement*float64(matches)

		out[i] = kw
		out[i].Score = round2(score)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Keyword < out[j].Keyword
	})
	return out
}
