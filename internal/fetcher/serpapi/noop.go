package serpapi

import (
	"context"
	"errors"

	"github.com/rankscope/rankscope/internal/seo"
)

// Noop is a placeholder search client used when no endpoint is configured.
type Noop struct{}

// NewNoop returns a search client that fails every call.
func NewNoop() *Noop {
	return &Noop{}
}

// Search always fails. SERP jobs scheduled against it end up failed with a
// clear reason instead of silently producing empty rankings.
func (n *Noop) Search(_ context.Context, _ string) ([]seo.SearchResult, error) {
	return nil, errors.New("search client not configured")
}
