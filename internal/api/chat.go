// Package api exposes the chatbot over HTTP: chat endpoints (plain and SSE
// streaming), a health check, and an operator surface for the response cache.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/irfanhaider/mulbot/internal/agent"
	"github.com/irfanhaider/mulbot/internal/cache"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
	// maxMessageChars rejects oversized questions before they reach the
	// cache or the pipeline.
	maxMessageChars = 1000
)

// Deps holds the handler's explicit dependencies; nothing is reached through
// globals.
type Deps struct {
	Executor *agent.Executor
	Cache    *cache.ResponseCache
	// AdminToken guards the cache management endpoints.
	AdminToken string
}

// NewHandler returns the HTTP handler for the chatbot API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/api/health", handleHealth)
	r.Post("/api/chat", handleChat(deps))
	r.Post("/api/chat/stream", handleChatStream(deps))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.AdminToken))
		r.Get("/api/cache/stats", handleCacheStats(deps))
		r.Post("/api/cache/clear", handleCacheClear(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// ChatRequest is the request body for both chat endpoints.
type ChatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id,omitempty"`
}

// ChatResponse is the non-streaming chat reply.
type ChatResponse struct {
	Response string `json:"response"`
	ThreadID string `json:"thread_id"`
	Cached   bool   `json:"cached"`
}

// decodeChatRequest parses and validates the request body. It returns a
// cleaned message and a defaulted thread id, or writes the error response
// itself and reports false.
func decodeChatRequest(w http.ResponseWriter, r *http.Request) (message, threadID string, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return "", "", false
	}

	message = strings.TrimSpace(req.Message)
	if message == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "message cannot be empty")
		return "", "", false
	}
	if len([]rune(message)) > maxMessageChars {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "message too long (max %d characters)", maxMessageChars)
		return "", "", false
	}

	threadID = req.ThreadID
	if threadID == "" {
		threadID = uuid.New().String()
	}
	return message, threadID, true
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		message, threadID, ok := decodeChatRequest(w, r)
		if !ok {
			return
		}

		// The streamer is drained by nobody here; the buffer holds the
		// handful of events a run emits.
		s := agent.NewStreamer()
		resp, cached, err := deps.Executor.Run(r.Context(), threadID, message, s)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "%s", agent.SanitizedErrorMessage)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ChatResponse{
			Response: resp,
			ThreadID: threadID,
			Cached:   cached,
		})
	}
}

func handleChatStream(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		message, threadID, ok := decodeChatRequest(w, r)
		if !ok {
			return
		}

		flusher, okFlush := w.(http.Flusher)
		if !okFlush {
			httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		// The run must outlive a client disconnect so its cache and
		// ledger writes still land for future requests.
		runCtx := context.WithoutCancel(r.Context())
		s := agent.NewStreamer()
		go deps.Executor.Run(runCtx, threadID, message, s)

		for {
			select {
			case ev, open := <-s.Events():
				if !open {
					return
				}
				data, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "data: %s\n\n", data)
				flusher.Flush()
			case <-r.Context().Done():
				s.Abandon()
				return
			}
		}
	}
}

func handleCacheStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(deps.Cache.Stats())
	}
}

func handleCacheClear(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Cache.Clear()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "cleared",
			"message": "Cache cleared. Next requests will fetch fresh data.",
		})
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
