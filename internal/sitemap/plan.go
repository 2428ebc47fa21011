package sitemap

import (
	"time"

	"github.com/rankscope/rankscope/internal/seo"
)

// FreshnessWindow is how long a completed extraction stays fresh before it is
// eligible for re-extraction.
const FreshnessWindow = 24 * time.Hour

// LookupChunkSize bounds the number of URLs per existing-row lookup. Chunking
// is purely a query-size concern and never changes the partition outcome.
const LookupChunkSize = 100

// PlanResult is the three-way partition of sitemap URLs.
type PlanResult struct {
	// Create lists URLs with no existing extraction row.
	Create []string
	// Update lists existing rows that must be reset to pending and
	// rescheduled.
	Update []seo.PageExtraction
	// Skipped counts fresh URLs needing no work.
	Skipped int
}

// Total returns the number of distinct URLs partitioned.
func (p PlanResult) Total() int {
	return len(p.Create) + len(p.Update) + p.Skipped
}

// PlanExtractions partitions sitemap URLs against existing extraction rows.
// A URL with no row is created; a row that failed, whose completed extraction
// is older than the freshness window, or whose type differs from the
// requested one is updated; everything else is skipped. Duplicate input URLs
// are collapsed so no URL lands in more than one bucket.
func PlanExtractions(
	urls []string,
	existing map[string]seo.PageExtraction,
	extractionType seo.ExtractionType,
	now time.Time,
) PlanResult {
	var result PlanResult
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true

		row, ok := existing[u]
		if !ok {
			result.Create = append(result.Create, u)
			continue
		}
		if needsRefresh(row, extractionType, now) {
			result.Update = append(result.Update, row)
			continue
		}
		result.Skipped++
	}
	return result
}

func needsRefresh(row seo.PageExtraction, extractionType seo.ExtractionType, now time.Time) bool {
	if row.Status == seo.ExtractionStatusFailed {
		return true
	}
	if row.Type != extractionType {
		return true
	}
	if row.ExtractedAt != nil && now.Sub(*row.ExtractedAt) > FreshnessWindow {
		return true
	}
	return false
}

// Chunk splits urls into batches of at most size entries, preserving order.
func Chunk(urls []string, size int) [][]string {
	if size <= 0 {
		size = LookupChunkSize
	}
	var out [][]string
	for start := 0; start < len(urls); start += size {
		end := start + size
		if end > len(urls) {
			end = len(urls)
		}
		out = append(out, urls[start:end])
	}
	return out
}
