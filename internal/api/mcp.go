package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/irfanhaider/mulbot/internal/agent"
	"github.com/irfanhaider/mulbot/internal/cache"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Executor *agent.Executor
	Cache    *cache.ResponseCache
}

// NewMCPServer creates an MCP server exposing the chatbot as tools, so MCP
// clients can ask university questions and manage the response cache.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"mulbot",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("mulbot — Q&A assistant for Minhaj University Lahore (programs, admissions, fees, campus)."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Ask a question about Minhaj University Lahore and get an answer grounded in the university website."),
			mcp.WithString("question", mcp.Description("The question to ask"), mcp.Required()),
			mcp.WithString("thread_id", mcp.Description("Conversation thread id for follow-up questions (optional)")),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("cache_stats",
			mcp.WithDescription("Return response cache statistics (size, hits, misses, hit rate)."),
		),
		mcpCacheStats(deps),
	)

	s.AddTool(
		mcp.NewTool("cache_clear",
			mcp.WithDescription("Clear all cached responses. Use after the university website data changes."),
		),
		mcpCacheClear(deps),
	)

	return s
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}
		question = strings.TrimSpace(question)
		if question == "" {
			return mcpError("question cannot be empty"), nil
		}
		if len([]rune(question)) > maxMessageChars {
			return mcpError(fmt.Sprintf("question too long (max %d characters)", maxMessageChars)), nil
		}

		threadID := req.GetString("thread_id", "")
		if threadID == "" {
			threadID = uuid.New().String()
		}

		s := agent.NewStreamer()
		resp, _, err := deps.Executor.Run(ctx, threadID, question, s)
		if err != nil {
			return mcpError(agent.SanitizedErrorMessage), nil
		}

		return mcpText(fmt.Sprintf("%s\n\n(thread_id: %s)", resp, threadID)), nil
	}
}

func mcpCacheStats(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := json.MarshalIndent(deps.Cache.Stats(), "", "  ")
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal stats: %v", err)), nil
		}
		return mcpText(string(data)), nil
	}
}

func mcpCacheClear(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		deps.Cache.Clear()
		return mcpText("Cache cleared. Next requests will fetch fresh data."), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
