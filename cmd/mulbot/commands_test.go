package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestAskCommand_NonStreaming(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /api/chat": `{"response":"MUL offers over 100 programs.","thread_id":"t-1","cached":false}`,
	})

	client := ts.client()

	resp, err := client.post(ctx, "/api/chat", map[string]any{"message": "What programs does MUL offer?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Response string `json:"response"`
		ThreadID string `json:"thread_id"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if result.Response != "MUL offers over 100 programs." {
		t.Errorf("response = %q", result.Response)
	}
	if result.ThreadID != "t-1" {
		t.Errorf("thread_id = %q, want t-1", result.ThreadID)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["message"] != "What programs does MUL offer?" {
		t.Errorf("body.message = %v", body["message"])
	}
}

func TestAskCommand_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"ask"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing question")
	}
}

func TestRenderStream(t *testing.T) {
	stream := strings.Join([]string{
		`data: {"type":"status","icon":"🧠","text":"Understanding your question...","node":"route_query"}`,
		``,
		`data: {"type":"status","icon":"✍️","text":"Generating response...","node":"generate"}`,
		``,
		`data: {"type":"response","response":"Hello from MUL!","thread_id":"t-9"}`,
		``,
		`data: {"type":"done"}`,
		``,
	}, "\n")

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(stream))
	}))
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if err := renderStream(resp); err != nil {
		t.Fatalf("renderStream error: %v", err)
	}
}

func TestRenderStream_ErrorEvent(t *testing.T) {
	stream := `data: {"type":"error","response":"I'm sorry, something went wrong. Please try again."}` + "\n"

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(stream))
	}))
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	err = renderStream(resp)
	if err == nil {
		t.Fatal("expected error from error event")
	}
	if !strings.Contains(err.Error(), "something went wrong") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestRenderStream_Truncated(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`data: {"type":"status","icon":"🧠","text":"thinking"}` + "\n"))
	}))
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	err = renderStream(resp)
	if err == nil || !strings.Contains(err.Error(), "without a done event") {
		t.Errorf("error = %v, want truncated-stream error", err)
	}
}

func TestCacheStatsCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /api/cache/stats": `{"size":3,"max_size":500,"ttl_seconds":900,"hits":10,"misses":5,"hit_rate":"66.7%"}`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/api/cache/stats")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var stats struct {
		Size    int    `json:"size"`
		HitRate string `json:"hit_rate"`
	}
	if err := decodeJSON(resp, &stats); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if stats.Size != 3 {
		t.Errorf("size = %d, want 3", stats.Size)
	}
	if stats.HitRate != "66.7%" {
		t.Errorf("hit_rate = %q", stats.HitRate)
	}
	if ts.requests[0].Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", ts.requests[0].Auth)
	}
}

func TestCacheClearCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /api/cache/clear": `{"status":"cleared","message":"Cache cleared. Next requests will fetch fresh data."}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/api/cache/clear", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result["status"] != "cleared" {
		t.Errorf("status = %q, want cleared", result["status"])
	}
}

func TestRequireAdminClient_NoToken(t *testing.T) {
	old := newAPIClient
	defer func() { newAPIClient = old }()

	newAPIClient = func() (*apiClient, error) {
		return &apiClient{baseURL: "http://127.0.0.1:1", token: "", httpClient: http.DefaultClient}, nil
	}

	_, err := requireAdminClient()
	if err == nil {
		t.Fatal("expected error when no admin token is configured")
	}
	if !strings.Contains(err.Error(), "MULBOT_ADMIN_TOKEN") {
		t.Errorf("error = %q, want it to mention MULBOT_ADMIN_TOKEN", err.Error())
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	client := ts.client()
	_, err := client.get(ctx, "/api/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"error":{"message":"unauthorized","type":"auth_error"}}`))
	}))
	defer ts.Close()

	client := &apiClient{
		baseURL:    ts.URL,
		token:      "bad-token",
		httpClient: ts.Client(),
	}

	resp, err := client.get(ctx, "/api/cache/stats")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %q, want it to contain '401'", err.Error())
	}
}

func TestPIDFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := pidFilePath(dir)

	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile error: %v", err)
	}
	pid, err := readPIDFile(path)
	if err != nil {
		t.Fatalf("readPIDFile error: %v", err)
	}
	if pid <= 0 {
		t.Errorf("pid = %d, want a positive PID", pid)
	}

	removePIDFile(path)
	if _, err := readPIDFile(path); err == nil {
		t.Error("expected error reading removed PID file")
	}
}

func TestNewAdminToken(t *testing.T) {
	a, err := newAdminToken()
	if err != nil {
		t.Fatal(err)
	}
	b, err := newAdminToken()
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 48 {
		t.Errorf("token length = %d, want 48 hex chars", len(a))
	}
	if a == b {
		t.Error("two generated tokens should differ")
	}
}
