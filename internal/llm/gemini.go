// Package llm talks to the Google Generative Language API. The one client
// serves both pipeline roles: query classification and answer generation.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.5-flash"
	defaultTimeout = 60 * time.Second
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond

	// classifyTemperature keeps routing decisions stable across retries.
	classifyTemperature = 0.0
	generateTemperature = 0.3
)

// Client communicates with the Gemini API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient creates a Gemini client with the given API key and model name.
// An empty model falls back to gemini-2.5-flash.
func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = defaultModel
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewClientWithBaseURL(apiKey, model, baseURL string) *Client {
	c := NewClient(apiKey, model)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// generateContent request/response wire types.
type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Classify labels a query against the recent conversation history, returning
// one of mul_related, conversational, or off_topic as free text. Callers
// normalize unexpected output.
func (c *Client) Classify(ctx context.Context, query, history string) (string, error) {
	if history == "" {
		history = "No previous conversation."
	}
	prompt := fmt.Sprintf(routerPromptFmt, history, query)
	return c.complete(ctx, prompt, classifyTemperature)
}

// Generate produces the final answer text from a fully composed prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, prompt, generateTemperature)
}

// complete sends one generateContent call, retrying on 429 with exponential
// backoff.
func (c *Client) complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents:         []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{Temperature: temperature},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := range maxRetries {
		text, err := c.doGenerate(ctx, body)
		if err == nil {
			return text, nil
		}

		if !isRateLimit(err) {
			return "", err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return "", fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}

// rateLimitError is returned on HTTP 429.
type rateLimitError struct {
	status int
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited (HTTP %d)", e.status)
}

func isRateLimit(err error) bool {
	_, ok := err.(*rateLimitError)
	return ok
}

func (c *Client) doGenerate(ctx context.Context, body []byte) (string, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return "", &rateLimitError{status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("gemini API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if gr.Error != nil {
		return "", fmt.Errorf("gemini API error %d (%s): %s", gr.Error.Code, gr.Error.Status, gr.Error.Message)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini API returned no candidates")
	}

	var sb strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

// Ping verifies the API is reachable and the key is accepted by issuing a
// minimal generation call.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := c.complete(ctx, "Reply with the single word: ok", 0)
	return err
}

// routerPromptFmt takes the formatted recent history and the current query.
const routerPromptFmt = `You are a query classifier for the Minhaj University Lahore (MUL) assistant.

Your ONLY job is to classify the user's question. Consider the conversation
history: a follow-up about a previous MUL topic ("What's the fee for that?",
"Tell me more") is "mul_related" even if the message alone does not mention MUL.

RESPOND WITH EXACTLY ONE OF:
1. "mul_related"
2. "conversational"
3. "off_topic"

"mul_related" — the query needs NEW information about MUL from the web:
programs, courses, departments, admissions, fees, campus facilities, contact
info, faculty, events, facts about MUL history, or follow-ups needing details
not present in the history.

"conversational" — answerable from the chat history or a social exchange:
greetings, closings, questions about the user or this conversation
("What is my name?", "What did we just talk about?"), acknowledgments.

"off_topic" — unrelated to MUL and not conversational: other universities,
general knowledge, coding, math, politics.

## Recent Conversation History:
%s

## Current User Query:
%s`
