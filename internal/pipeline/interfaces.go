package pipeline

import (
	"context"

	"collegecontent/internal/content"
	"collegecontent/internal/core"
	"collegecontent/internal/outline"
)

// FilterExtractor turns a free-text request into query filters
type FilterExtractor interface {
	// Extract is pure: the same text always yields the same filters
	Extract(raw string) core.FilterSet
}

// DataFetcher reads college records for a filter set
type DataFetcher interface {
	// Fetch issues one read query. An empty match returns the empty result
	// together with a NoResults error.
	Fetch(ctx context.Context, f core.FilterSet) (core.FetchResult, error)

	// FromRecords wraps records that did not come from the store (CSV)
	FromRecords(records []core.CollegeRecord, source string) (core.FetchResult, error)

	// Enrich swaps records for the store's version where the store knows them
	Enrich(ctx context.Context, result core.FetchResult) (core.FetchResult, error)
}

// CollegeSearcher looks colleges up by name, city or state
type CollegeSearcher interface {
	SearchColleges(ctx context.Context, term string, limit int) ([]core.CollegeRecord, error)
}

// TopicGenerator proposes and refines topics and prompt variations
type TopicGenerator interface {
	// GenerateTopics always returns exactly count candidates
	GenerateTopics(ctx context.Context, dataSummary string, ct core.ContentType, count int) ([]core.TopicCandidate, error)

	// GeneratePrompts always returns exactly count variations
	GeneratePrompts(ctx context.Context, request, dataSummary string, ct core.ContentType, count int) ([]core.PromptVariation, error)

	RefineTopic(ctx context.Context, t core.TopicCandidate, instruction string) (core.TopicCandidate, error)
	RefinePrompt(ctx context.Context, p core.PromptVariation, instruction string) (core.PromptVariation, error)
}

// OutlineBuilder drafts and refines content outlines
type OutlineBuilder interface {
	Build(ctx context.Context, req outline.Request) (core.ContentOutline, error)
	Refine(ctx context.Context, o core.ContentOutline, feedback string) (core.ContentOutline, error)
}

// ContentWriter renders and revises the final article
type ContentWriter interface {
	// Render writes the full article from an approved outline
	Render(ctx context.Context, req content.Request) (core.FinalContent, error)

	// Regenerate re-renders the whole article with extra instructions
	Regenerate(ctx context.Context, req content.Request, instructions string) (core.FinalContent, error)

	// RegenerateSection rewrites one section; every other byte is kept
	RegenerateSection(ctx context.Context, fc core.FinalContent, req content.Request, heading, instruction string) (core.FinalContent, error)

	// EnhanceSEO rewrites headings and fills the SEO metadata
	EnhanceSEO(ctx context.Context, fc core.FinalContent, keywords []string) (core.FinalContent, error)
}
