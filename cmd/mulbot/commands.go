package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/irfanhaider/mulbot/internal/agent"
	"github.com/irfanhaider/mulbot/internal/config"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the chatbot a question",
	Long: `Ask the chatbot a question about Minhaj University Lahore.

Examples:
  mulbot ask "What BS programs does MUL offer?"
  mulbot ask --thread admissions "What are the fees for that program?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		threadID, _ := cmd.Flags().GetString("thread")
		noStream, _ := cmd.Flags().GetBool("no-stream")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]any{"message": question}
		if threadID != "" {
			body["thread_id"] = threadID
		}

		if noStream {
			resp, err := client.post(cmd.Context(), "/api/chat", body)
			if err != nil {
				return err
			}
			var result struct {
				Response string `json:"response"`
				ThreadID string `json:"thread_id"`
				Cached   bool   `json:"cached"`
			}
			if err := decodeJSON(resp, &result); err != nil {
				return err
			}
			if result.Cached {
				printProgress("⚡", "Cached response")
			}
			fmt.Println(result.Response)
			printStatus("Thread", "%s", result.ThreadID)
			return nil
		}

		resp, err := client.post(cmd.Context(), "/api/chat/stream", body)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return decodeJSON(resp, &struct{}{})
		}
		return renderStream(resp)
	},
}

// renderStream prints pipeline progress to stderr and the final answer to
// stdout as stream events arrive.
func renderStream(resp *http.Response) error {
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var ev agent.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			return fmt.Errorf("malformed stream event: %w", err)
		}

		switch ev.Type {
		case agent.EventStatus:
			printProgress(ev.Icon, ev.Text)
		case agent.EventResponse:
			fmt.Println(ev.Response)
			if ev.ThreadID != "" {
				printStatus("Thread", "%s", ev.ThreadID)
			}
		case agent.EventError:
			return fmt.Errorf("%s", ev.Response)
		case agent.EventDone:
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	return fmt.Errorf("stream ended without a done event")
}

func init() {
	askCmd.Flags().String("thread", "", "conversation thread to continue")
	askCmd.Flags().Bool("no-stream", false, "wait for the full answer instead of streaming progress")
}

// --- cache ---

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the response cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show response cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := requireAdminClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/cache/stats")
		if err != nil {
			return err
		}

		var stats struct {
			Size       int    `json:"size"`
			MaxSize    int    `json:"max_size"`
			TTLSeconds int    `json:"ttl_seconds"`
			Hits       uint64 `json:"hits"`
			Misses     uint64 `json:"misses"`
			HitRate    string `json:"hit_rate"`
		}
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}

		printStatus("Entries", "%d / %d", stats.Size, stats.MaxSize)
		printStatus("TTL", "%ds", stats.TTLSeconds)
		printStatus("Hits", "%d", stats.Hits)
		printStatus("Misses", "%d", stats.Misses)
		printStatus("Hit rate", "%s", stats.HitRate)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the response cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := requireAdminClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/cache/clear", nil)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("%s", result["message"])
		return nil
	},
}

// requireAdminClient builds an API client and rejects early when no admin
// token is configured, since the cache endpoints would return 401 anyway.
func requireAdminClient() (*apiClient, error) {
	client, err := newAPIClient()
	if err != nil {
		return nil, err
	}
	if client.token == "" {
		return nil, fmt.Errorf("admin token not configured: set MULBOT_ADMIN_TOKEN")
	}
	return client, nil
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Show must work on a fresh install, before any API keys are set.
		cfg, err := config.LoadUnvalidated()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 2 {
			return fmt.Errorf("usage: mulbot config set <key> <value> (valid keys: %s)", strings.Join(config.ValidKeys(), ", "))
		}
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
