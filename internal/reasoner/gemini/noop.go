package gemini

import (
	"context"
	"errors"

	"github.com/rankscope/rankscope/internal/seo"
)

// Noop is a placeholder reasoner used when no API key is configured.
type Noop struct{}

// NewNoop returns a reasoner that fails every call.
func NewNoop() *Noop {
	return &Noop{}
}

func (n *Noop) SuggestQueries(_ context.Context, _ seo.PageSignals) ([]seo.QuerySuggestion, error) {
	return nil, errors.New("reasoner not configured")
}

func (n *Noop) GenerateReport(_ context.Context, _ seo.ReportInput) (seo.Report, error) {
	return seo.Report{}, errors.New("reasoner not configured")
}
