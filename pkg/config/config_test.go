package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleConfig = `
llms:
  chat:
    type: openai
    model: gpt-4o-mini
    api_key: ${TEST_OPENAI_KEY:-sk-test}
  analysis:
    type: anthropic
    model: claude-sonnet-4-20250514
    api_key: sk-ant-test
routing:
  default: chat
  rules:
    - provider: analysis
      keywords: [analyze, report]
database:
  driver: sqlite
  database: ":memory:"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Routing.Default != "chat" {
		t.Errorf("Routing.Default = %q, want chat", cfg.Routing.Default)
	}
	if got := cfg.LLMs["chat"].APIKey; got != "sk-test" {
		t.Errorf("env fallback not applied, api_key = %q", got)
	}
	if cfg.Agent.MaxIterations != 10 {
		t.Errorf("MaxIterations default = %d, want 10", cfg.Agent.MaxIterations)
	}
	if cfg.Agent.ConfirmationTTL.Std() != 5*time.Minute {
		t.Errorf("ConfirmationTTL default = %v, want 5m", cfg.Agent.ConfirmationTTL.Std())
	}
	if cfg.LLMs["chat"].Host != "https://api.openai.com/v1" {
		t.Errorf("openai host default = %q", cfg.LLMs["chat"].Host)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-from-env")

	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.LLMs["chat"].APIKey; got != "sk-from-env" {
		t.Errorf("api_key = %q, want sk-from-env", got)
	}
}

func TestLoad_RejectsUnknownDefaultProvider(t *testing.T) {
	bad := `
llms:
  chat:
    type: openai
    model: gpt-4o-mini
    api_key: sk-test
routing:
  default: missing
database:
  driver: sqlite
  database: ":memory:"
`
	if _, err := Load(writeConfig(t, bad)); err == nil {
		t.Fatal("expected error for unknown routing.default")
	}
}

func TestLoad_RequiresLLM(t *testing.T) {
	bad := `
routing:
  default: chat
database:
  driver: sqlite
  database: ":memory:"
`
	if _, err := Load(writeConfig(t, bad)); err == nil {
		t.Fatal("expected error when no llms configured")
	}
}

func TestLoad_RejectsUnscopableDatabaseDriver(t *testing.T) {
	// mysql has no per-transaction schema scoping; accepting it would let
	// every tenant read the connection's default database.
	bad := `
llms:
  chat:
    type: openai
    model: gpt-4o-mini
    api_key: sk-test
routing:
  default: chat
database:
  driver: mysql
  host: localhost
  database: assistant
  username: app
`
	if _, err := Load(writeConfig(t, bad)); err == nil {
		t.Fatal("expected error for driver without schema scoping")
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Driver:   "postgres",
		Host:     "localhost",
		Username: "app",
		Password: "secret",
		Database: "assistant",
	}
	cfg.SetDefaults()

	want := "host=localhost port=5432 user=app password=secret dbname=assistant sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("CFG_SET", "value")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set variable", "${CFG_SET}", "value"},
		{"unset variable", "${CFG_UNSET_XYZ}", ""},
		{"unset with default", "${CFG_UNSET_XYZ:-fallback}", "fallback"},
		{"set wins over default", "${CFG_SET:-fallback}", "value"},
		{"surrounding text", "a-${CFG_SET}-b", "a-value-b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandEnv(tt.input); got != tt.want {
				t.Errorf("ExpandEnv(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
