package serp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rankscope/rankscope/internal/seo"
)

func results() []seo.SearchResult {
	return []seo.SearchResult{
		{Position: 1, URL: "https://www.rival-a.com/page", Domain: "www.rival-a.com"},
		{Position: 2, URL: "https://example.com/features", Domain: "example.com"},
		{Position: 3, URL: "https://rival-b.org/post", Domain: "rival-b.org"},
		{Position: 4, URL: "https://blog.rival-a.com/other", Domain: "blog.rival-a.com"},
		{Position: 5, URL: "https://rival-c.net/", Domain: "rival-c.net"},
		{Position: 6, URL: "https://rival-d.io/", Domain: "rival-d.io"},
	}
}

func TestFindPosition_MatchesOwnDomain(t *testing.T) {
	t.Parallel()

	m := FindPosition(results(), "https://example.com")
	require.NotNil(t, m)
	require.Equal(t, 2, m.Position)
	require.Equal(t, "https://example.com/features", m.URL)
}

func TestFindPosition_MatchesSubdomainAndWWW(t *testing.T) {
	t.Parallel()

	m := FindPosition(results(), "rival-a.com")
	require.NotNil(t, m)
	require.Equal(t, 1, m.Position)
}

func TestFindPosition_AbsentReturnsNil(t *testing.T) {
	t.Parallel()

	require.Nil(t, FindPosition(results(), "missing.example"))
	require.Nil(t, FindPosition(nil, "example.com"))
}

func TestFindPosition_FallsBackToURLDomain(t *testing.T) {
	t.Parallel()

	rs := []seo.SearchResult{{Position: 7, URL: "https://www.example.com/x"}}
	m := FindPosition(rs, "example.com")
	require.NotNil(t, m)
	require.Equal(t, 7, m.Position)
}

func TestCandidates_ExcludesSelfAndDeduplicates(t *testing.T) {
	t.Parallel()

	got := Candidates(results(), "example.com")
	require.Len(t, got, 3)
	// rival-a appears twice (www + blog subdomain) but only counts once;
	// ordering follows ascending position.
	require.Equal(t, "rival-a.com", got[0].Domain)
	require.Equal(t, 1, got[0].Position)
	require.Equal(t, "rival-b.org", got[1].Domain)
	require.Equal(t, "rival-c.net", got[2].Domain)
}

func TestCandidates_CapAtThree(t *testing.T) {
	t.Parallel()

	got := Candidates(results(), "nowhere.example")
	require.Len(t, got, MaxCandidates)
}

func TestCandidates_UnsortedInput(t *testing.T) {
	t.Parallel()

	rs := []seo.SearchResult{
		{Position: 9, Domain: "late.com"},
		{Position: 1, Domain: "early.com"},
	}
	got := Candidates(rs, "example.com")
	require.Equal(t, "early.com", got[0].Domain)
	require.Equal(t, "late.com", got[1].Domain)
}

func TestCandidates_SubdomainSeenBeforeApexCollapses(t *testing.T) {
	t.Parallel()

	rs := []seo.SearchResult{
		{Position: 1, Domain: "blog.rival-a.com"},
		{Position: 2, Domain: "rival-a.com"},
		{Position: 3, Domain: "rival-b.org"},
	}
	got := Candidates(rs, "example.com")
	require.Len(t, got, 2)
	require.Equal(t, "blog.rival-a.com", got[0].Domain)
	require.Equal(t, "rival-b.org", got[1].Domain)
}

func TestCandidates_SubdomainOfSelfExcluded(t *testing.T) {
	t.Parallel()

	rs := []seo.SearchResult{
		{Position: 1, Domain: "docs.example.com"},
		{Position: 2, Domain: "rival.com"},
	}
	got := Candidates(rs, "example.com")
	require.Len(t, got, 1)
	require.Equal(t, "rival.com", got[0].Domain)
}
