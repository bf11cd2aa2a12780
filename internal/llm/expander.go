package llm

import (
	"context"
	"log/slog"
	"strings"
)

const expanderSystemPrompt = `You optimize search queries for finding healthcare professionals on LinkedIn.
Rewrite the recruiter's requirement into one search string:
- add specialty and role synonyms (e.g. ICU -> intensive care, critical care)
- add license and certification synonyms (e.g. RN -> registered nurse)
- add location variants (e.g. LA -> Los Angeles)
Keep it under 200 characters. Return ONLY the rewritten search string, nothing else.`

const (
	minExpandedLen = 5
	maxExpandedLen = 300
)

// QueryExpander rewrites a recruiter's free-text requirement into a
// domain-optimized search string. It degrades to the raw query on any
// failure; expansion must never block or fail a search.
type QueryExpander struct {
	client ChatClient
}

func NewQueryExpander(client ChatClient) *QueryExpander {
	return &QueryExpander{client: client}
}

func (e *QueryExpander) Expand(ctx context.Context, rawQuery string) string {
	if e == nil || e.client == nil {
		return rawQuery
	}

	expanded, err := e.client.Complete(ctx, expanderSystemPrompt, rawQuery)
	if err != nil {
		slog.Error("Query expansion failed, using raw query", "error", err)
		return rawQuery
	}

	expanded = strings.TrimSpace(strings.Trim(strings.TrimSpace(expanded), `"`))
	if len(expanded) < minExpandedLen || len(expanded) > maxExpandedLen {
		slog.Warn("Query expansion returned unusable output, using raw query", "length", len(expanded))
		return rawQuery
	}
	return expanded
}
