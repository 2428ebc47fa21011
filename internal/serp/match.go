// Package serp locates a site's rank in a result set and surfaces
// competitor candidates.
package serp

import (
	"sort"

	"github.com/rankscope/rankscope/internal/domain"
	"github.com/rankscope/rankscope/internal/seo"
)

// MaxCandidates caps how many new competitor domains a single SERP may
// surface, bounding competitor sprawl.
const MaxCandidates = 3

// Match is the own-site hit within a result set, if any.
type Match struct {
	Position int
	URL      string
	Title    string
	Snippet  string
}

// FindPosition returns the first result belonging to site, by domain
// identity. A nil return means the site was not found in the fetched window.
func FindPosition(results []seo.SearchResult, site string) *Match {
	for _, r := range results {
		if domain.SameDomain(resultDomain(r), site) {
			return &Match{
				Position: r.Position,
				URL:      r.URL,
				Title:    r.Title,
				Snippet:  r.Snippet,
			}
		}
	}
	return nil
}

// Candidate is a non-self domain observed in a SERP.
type Candidate struct {
	Domain   string
	URL      string
	Title    string
	Position int
}

// Candidates returns up to MaxCandidates distinct non-self domains ordered by
// ascending SERP position. The own site's results are excluded from the pool
// and subdomains of an already-seen base domain do not count again.
func Candidates(results []seo.SearchResult, ownSite string) []Candidate {
	sorted := make([]seo.SearchResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Position < sorted[j].Position
	})

	var out []Candidate
	for _, r := range sorted {
		d := domain.Normalize(resultDomain(r))
		if d == "" || domain.SameDomain(d, ownSite) || hasDomain(out, d) {
			continue
		}
		out = append(out, Candidate{
			Domain:   d,
			URL:      r.URL,
			Title:    r.Title,
			Position: r.Position,
		})
		if len(out) == MaxCandidates {
			break
		}
	}
	return out
}

// hasDomain reports whether d shares a base domain with an accepted
// candidate, so subdomains of one site collapse to a single entry.
func hasDomain(out []Candidate, d string) bool {
	for _, c := range out {
		if domain.SameDomain(d, c.Domain) || domain.SameDomain(c.Domain, d) {
			return true
		}
	}
	return false
}

func resultDomain(r seo.SearchResult) string {
	if r.Domain != "" {
		return r.Domain
	}
	return r.URL
}
