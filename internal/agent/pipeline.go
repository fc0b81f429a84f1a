package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/irfanhaider/mulbot/internal/conversation"
)

const (
	// routerHistoryWindow bounds how many prior turns the classifier sees.
	routerHistoryWindow = 6
	// routerAssistantTruncate caps assistant turns shown to the classifier.
	routerAssistantTruncate = 150
	// generatorHistoryWindow bounds the history included in the final prompt.
	generatorHistoryWindow = 10

	noHistoryMarker = "No previous conversation."
	// noSearchMarker replaces search results on conversational routes.
	noSearchMarker = "No external search performed. Answer based on Conversation History."
	// searchFallback is the degraded output when search fails or finds nothing.
	searchFallback = "Search temporarily unavailable. Please visit https://mul.edu.pk directly for the latest information."

	institutionName = "Minhaj University Lahore"
	// programsSection is the site section holding static program and fee pages.
	programsSection = "en/program/"
)

// programKeywords mark queries about structured facts that live on static
// program pages, where year bias would only hurt.
var programKeywords = []string{
	"fee", "tuition", "program", "course", "degree",
	"bs", "ms", "mphil", "phd", "admission", "details", "structure",
}

// Pipeline holds the service handles and domain settings for one deployment.
// It is safe for concurrent use; each request gets its own State.
type Pipeline struct {
	classifier Classifier
	searcher   Searcher
	generator  Generator

	domain     string
	maxResults int
	now        func() time.Time
}

// NewPipeline wires the three service handles. domain restricts web search
// (default mul.edu.pk); maxResults caps returned documents (default 7).
func NewPipeline(classifier Classifier, searcher Searcher, generator Generator, domain string, maxResults int) *Pipeline {
	if domain == "" {
		domain = "mul.edu.pk"
	}
	if maxResults <= 0 {
		maxResults = 7
	}
	return &Pipeline{
		classifier: classifier,
		searcher:   searcher,
		generator:  generator,
		domain:     domain,
		maxResults: maxResults,
		now:        time.Now,
	}
}

// Run walks the state machine from ROUTE to the terminal state, invoking
// onEnter as each state is entered. Classification and generation errors
// abort the run; search errors degrade to a fallback inside the search state.
func (p *Pipeline) Run(ctx context.Context, st *State, onEnter func(Node)) error {
	for node := NodeRoute; node != nodeEnd; node = next(node, st.Route) {
		if onEnter != nil {
			onEnter(node)
		}
		var err error
		switch node {
		case NodeRoute:
			err = p.routeQuery(ctx, st)
		case NodeSearch:
			p.webSearch(ctx, st)
		case NodeGenerate:
			err = p.generate(ctx, st)
		case NodeGuardrail:
			st.Response = GuardrailResponse
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// routeQuery extracts the newest user turn and classifies it with bounded
// conversation context. No user turn at all routes straight to the guardrail.
func (p *Pipeline) routeQuery(ctx context.Context, st *State) error {
	query := ""
	for i := len(st.Turns) - 1; i >= 0; i-- {
		if st.Turns[i].Role == conversation.RoleUser {
			query = st.Turns[i].Text
			break
		}
	}
	if query == "" {
		st.Query = ""
		st.Route = RouteOffTopic
		return nil
	}
	st.Query = query

	history := formatRouterHistory(st.Turns[:len(st.Turns)-1])

	label, err := p.classifier.Classify(ctx, query, history)
	if err != nil {
		return fmt.Errorf("classifying query: %w", err)
	}
	st.Route = normalizeRoute(label)
	return nil
}

// normalizeRoute maps free-text classifier output onto a route, failing safe
// toward refusal rather than unrestricted search.
func normalizeRoute(label string) Route {
	l := strings.ToLower(strings.TrimSpace(label))
	switch {
	case strings.Contains(l, string(RouteMULRelated)):
		return RouteMULRelated
	case strings.Contains(l, string(RouteConversational)):
		return RouteConversational
	default:
		return RouteOffTopic
	}
}

// formatRouterHistory renders the turns preceding the current query for the
// classifier: at most routerHistoryWindow turns, long assistant answers
// truncated.
func formatRouterHistory(prior []conversation.Turn) string {
	if len(prior) > routerHistoryWindow {
		prior = prior[len(prior)-routerHistoryWindow:]
	}
	var parts []string
	for _, turn := range prior {
		switch turn.Role {
		case conversation.RoleUser:
			parts = append(parts, "User: "+turn.Text)
		case conversation.RoleAssistant:
			text := turn.Text
			if runes := []rune(text); len(runes) > routerAssistantTruncate {
				text = string(runes[:routerAssistantTruncate]) + "..."
			}
			parts = append(parts, "Assistant: "+text)
		}
	}
	if len(parts) == 0 {
		return noHistoryMarker
	}
	return strings.Join(parts, "\n")
}

// webSearch queries the university domain and formats results into labeled
// source blocks. Any failure degrades to searchFallback; it never aborts the
// pipeline.
func (p *Pipeline) webSearch(ctx context.Context, st *State) {
	searchQuery := p.buildSearchQuery(st.Query)

	results, err := p.searcher.Search(ctx, searchQuery, p.domain, p.maxResults)
	if err != nil {
		slog.Warn("web search failed, degrading to fallback", "error", err)
		st.SearchResults = searchFallback
		return
	}
	if len(results) == 0 {
		st.SearchResults = searchFallback
		return
	}

	blocks := make([]string, 0, len(results))
	for i, r := range results {
		var sb strings.Builder
		fmt.Fprintf(&sb, "**Source %d: %s**\n", i+1, r.Title)
		fmt.Fprintf(&sb, "URL: %s\n", r.URL)
		if r.PublishedDate != "" {
			fmt.Fprintf(&sb, "Published: %s\n", r.PublishedDate)
		}
		fmt.Fprintf(&sb, "Content: %s\n", r.Content)
		blocks = append(blocks, sb.String())
	}
	st.SearchResults = strings.Join(blocks, "\n---\n")
}

// buildSearchQuery scopes the query to the program pages for structured-fact
// questions (no year bias, those pages are static), and to the general site
// with the current year otherwise.
func (p *Pipeline) buildSearchQuery(query string) string {
	lower := strings.ToLower(query)
	for _, kw := range programKeywords {
		if strings.Contains(lower, kw) {
			return fmt.Sprintf("site:%s/%s %s", p.domain, programsSection, query)
		}
	}
	return fmt.Sprintf("%s %s %d", institutionName, query, p.now().Year())
}

// generate composes the final-answer prompt and calls the generation service.
func (p *Pipeline) generate(ctx context.Context, st *State) error {
	searchResults := st.SearchResults
	if st.Route == RouteConversational {
		searchResults = noSearchMarker
	}

	history := formatGeneratorHistory(st.Turns)
	prompt := fmt.Sprintf(generatorPromptFmt, searchResults, history, st.Query)

	response, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return fmt.Errorf("generating response: %w", err)
	}
	st.Response = response
	return nil
}

// formatGeneratorHistory renders the most recent turns, current query
// included, for the final prompt.
func formatGeneratorHistory(turns []conversation.Turn) string {
	if len(turns) > generatorHistoryWindow {
		turns = turns[len(turns)-generatorHistoryWindow:]
	}
	var parts []string
	for _, turn := range turns {
		switch turn.Role {
		case conversation.RoleUser:
			parts = append(parts, "User: "+turn.Text)
		case conversation.RoleAssistant:
			parts = append(parts, "Assistant: "+turn.Text)
		}
	}
	if len(parts) == 0 {
		return noHistoryMarker
	}
	return strings.Join(parts, "\n")
}
