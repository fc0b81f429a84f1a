package agent

import "context"

// Classifier labels a query given formatted recent conversation history.
// Implementations may return free text; the pipeline normalizes anything
// unrecognized to off_topic.
type Classifier interface {
	Classify(ctx context.Context, query, history string) (string, error)
}

// SearchResult is one document returned by the search service.
type SearchResult struct {
	Title         string
	URL           string
	Content       string
	PublishedDate string
}

// Searcher runs a web search restricted to the given domain. Failures are
// recoverable: the pipeline degrades to a fallback text instead of aborting.
type Searcher interface {
	Search(ctx context.Context, query, domain string, maxResults int) ([]SearchResult, error)
}

// Generator produces the final answer text from a composed prompt. A failure
// here is fatal for the request.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
