// Package websearch talks to the Tavily search API, restricted to the
// university's domain. Search failures are recoverable by design: the agent
// pipeline degrades to a fallback text instead of aborting.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/irfanhaider/mulbot/internal/agent"
)

const (
	defaultBaseURL = "https://api.tavily.com"
	defaultTimeout = 30 * time.Second
	// advanced depth extracts page content, not just snippets.
	searchDepth = "advanced"
)

// Compile-time check that Client implements agent.Searcher.
var _ agent.Searcher = (*Client)(nil)

// Client communicates with the Tavily API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Tavily client with the given API key.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type searchRequest struct {
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth"`
	IncludeDomains []string `json:"include_domains,omitempty"`
	MaxResults     int      `json:"max_results"`
}

type searchResponse struct {
	Results []struct {
		Title         string `json:"title"`
		URL           string `json:"url"`
		Content       string `json:"content"`
		PublishedDate string `json:"published_date"`
	} `json:"results"`
}

// Search runs a domain-restricted query and returns up to maxResults
// documents.
func (c *Client) Search(ctx context.Context, query, domain string, maxResults int) ([]agent.SearchResult, error) {
	req := searchRequest{
		Query:       query,
		SearchDepth: searchDepth,
		MaxResults:  maxResults,
	}
	if domain != "" {
		req.IncludeDomains = []string{domain}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("tavily API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	results := make([]agent.SearchResult, 0, len(sr.Results))
	for _, r := range sr.Results {
		results = append(results, agent.SearchResult{
			Title:         r.Title,
			URL:           r.URL,
			Content:       r.Content,
			PublishedDate: r.PublishedDate,
		})
	}
	return results, nil
}

// Ping verifies the API is reachable and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := c.Search(ctx, "ping", "", 1)
	return err
}
