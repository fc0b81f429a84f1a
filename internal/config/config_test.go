package config

import (
	"strconv"
	"testing"
)

// memBackend is an in-memory Backend for tests.
type memBackend struct {
	data map[string]any
}

func (m *memBackend) GetString(key string) (string, bool, error) {
	v, ok := m.data[key]
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (m *memBackend) GetInt(key string) (int, bool, error) {
	v, ok := m.data[key]
	if !ok {
		return 0, false, nil
	}
	switch val := v.(type) {
	case int:
		return val, true, nil
	case string:
		i, err := strconv.Atoi(val)
		return i, true, err
	default:
		return 0, true, nil
	}
}

func (m *memBackend) SetString(key, val string) error { m.data[key] = val; return nil }
func (m *memBackend) SetInt(key string, val int) error { m.data[key] = val; return nil }

func setRequiredKeys(t *testing.T) {
	t.Helper()
	t.Setenv("MULBOT_GEMINI_API_KEY", "test-gemini-key")
	t.Setenv("MULBOT_TAVILY_API_KEY", "test-tavily-key")
}

func TestDefaults(t *testing.T) {
	setRequiredKeys(t)

	cfg, err := loadWith(&memBackend{data: map[string]any{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.LLM.Model != "gemini-2.5-flash" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.Search.Domain != "mul.edu.pk" {
		t.Errorf("Search.Domain = %q", cfg.Search.Domain)
	}
	if cfg.Search.MaxResults != 7 {
		t.Errorf("Search.MaxResults = %d, want 7", cfg.Search.MaxResults)
	}
	if cfg.Cache.MaxEntries != 500 {
		t.Errorf("Cache.MaxEntries = %d, want 500", cfg.Cache.MaxEntries)
	}
	if got := cfg.CacheTTL().Seconds(); got != 900 {
		t.Errorf("CacheTTL = %vs, want 900s", got)
	}
}

func TestBackendValues(t *testing.T) {
	setRequiredKeys(t)

	cfg, err := loadWith(&memBackend{data: map[string]any{
		"server.port":        9000,
		"search.max_results": 3,
		"cache.ttl":          "1h",
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Search.MaxResults != 3 {
		t.Errorf("Search.MaxResults = %d, want 3", cfg.Search.MaxResults)
	}
	if cfg.CacheTTL().Minutes() != 60 {
		t.Errorf("CacheTTL = %v, want 1h", cfg.CacheTTL())
	}
}

func TestEnvOverridesBackend(t *testing.T) {
	setRequiredKeys(t)
	t.Setenv("MULBOT_SERVER_PORT", "7777")

	cfg, err := loadWith(&memBackend{data: map[string]any{"server.port": 9000}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port = %d, want env override 7777", cfg.Server.Port)
	}
}

func TestMissingRequiredKeys(t *testing.T) {
	t.Setenv("MULBOT_GEMINI_API_KEY", "")
	t.Setenv("MULBOT_TAVILY_API_KEY", "tvly")

	if _, err := loadWith(&memBackend{data: map[string]any{}}); err == nil {
		t.Fatal("expected error for missing Gemini API key")
	}

	t.Setenv("MULBOT_GEMINI_API_KEY", "gk")
	t.Setenv("MULBOT_TAVILY_API_KEY", "")

	if _, err := loadWith(&memBackend{data: map[string]any{}}); err == nil {
		t.Fatal("expected error for missing Tavily API key")
	}
}

func TestLoadUnvalidated_NoSecretsRequired(t *testing.T) {
	t.Setenv("MULBOT_GEMINI_API_KEY", "")
	t.Setenv("MULBOT_TAVILY_API_KEY", "")

	// A fresh install has no API keys; display and editing must still work.
	cfg, err := loadUnvalidatedWith(&memBackend{data: map[string]any{"server.port": 9000}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.LLM.Model != "gemini-2.5-flash" {
		t.Errorf("LLM.Model = %q, want default model", cfg.LLM.Model)
	}

	if _, err := loadWith(&memBackend{data: map[string]any{}}); err == nil {
		t.Fatal("strict load should still reject missing API keys")
	}
}

func TestInvalidTTLRejected(t *testing.T) {
	setRequiredKeys(t)

	_, err := loadWith(&memBackend{data: map[string]any{"cache.ttl": "banana"}})
	if err == nil {
		t.Fatal("expected error for unparseable cache.ttl")
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	setRequiredKeys(t)
	cfg, err := loadWith(&memBackend{data: map[string]any{}})
	if err != nil {
		t.Fatal(err)
	}

	for _, k := range ShowAll(cfg) {
		if k.Key == "llm.api_key" || k.Key == "search.api_key" || k.Key == "server.admin_token" {
			t.Errorf("secret key %q exposed by ShowAll", k.Key)
		}
		if k.Value == "test-gemini-key" || k.Value == "test-tavily-key" {
			t.Errorf("secret value leaked for key %q", k.Key)
		}
	}
}
