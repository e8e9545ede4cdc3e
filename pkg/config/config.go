// Package config defines the YAML configuration surface and its loading,
// defaulting, and validation rules.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig                  `yaml:"server" json:"server"`
	Logging  LoggingConfig                 `yaml:"logging" json:"logging"`
	LLMs     map[string]*LLMProviderConfig `yaml:"llms" json:"llms" jsonschema:"title=LLM Providers,description=Named LLM provider configurations"`
	Routing  RoutingConfig                 `yaml:"routing" json:"routing"`
	Database DatabaseConfig                `yaml:"database" json:"database"`
	Tools    ToolsConfig                   `yaml:"tools" json:"tools"`
	Agent    AgentConfig                   `yaml:"agent" json:"agent"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"default=0.0.0.0"`
	Port int    `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"default=8080"`
}

// LoggingConfig holds slog settings.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,default=info"`
	Format string `yaml:"format,omitempty" json:"format,omitempty" jsonschema:"enum=text,enum=json,default=text"`
	File   string `yaml:"file,omitempty" json:"file,omitempty" jsonschema:"description=Log file path (empty = stderr)"`
}

// RoutingConfig selects a provider by keywords in the user message. The
// first rule whose keywords match wins; Default applies otherwise.
type RoutingConfig struct {
	Default string      `yaml:"default" json:"default" jsonschema:"description=Provider name used when no rule matches"`
	Rules   []RouteRule `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// RouteRule maps message keywords to a named provider.
type RouteRule struct {
	Provider string   `yaml:"provider" json:"provider"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// Duration wraps time.Duration so YAML configs can say "5m" or "30s".
type Duration time.Duration

// UnmarshalYAML parses Go duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// AgentConfig bounds the orchestration loop.
type AgentConfig struct {
	// MaxIterations caps tool-call iterations per request. The confirmation
	// protocol needs several chained calls within one turn, so the default
	// is deliberately higher than a single-tool budget.
	MaxIterations int `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty" jsonschema:"minimum=1,default=10"`

	// ConfirmationTTL is how long a prepared action stays confirmable.
	ConfirmationTTL Duration `yaml:"confirmation_ttl,omitempty" json:"confirmation_ttl,omitempty" jsonschema:"default=5m"`

	// TenantCacheTTL is how long tenant bindings and schema structures are
	// cached.
	TenantCacheTTL Duration `yaml:"tenant_cache_ttl,omitempty" json:"tenant_cache_ttl,omitempty" jsonschema:"default=5m"`

	// SystemPrompt is prepended to every transcript.
	SystemPrompt string `yaml:"system_prompt,omitempty" json:"system_prompt,omitempty"`
}

// SetDefaults applies defaults across the whole tree.
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Agent.MaxIterations == 0 {
		c.Agent.MaxIterations = 10
	}
	if c.Agent.ConfirmationTTL == 0 {
		c.Agent.ConfirmationTTL = Duration(5 * time.Minute)
	}
	if c.Agent.TenantCacheTTL == 0 {
		c.Agent.TenantCacheTTL = Duration(5 * time.Minute)
	}
	for _, llm := range c.LLMs {
		if llm != nil {
			llm.SetDefaults()
		}
	}
	c.Database.SetDefaults()
	c.Tools.SetDefaults()
}

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	if len(c.LLMs) == 0 {
		return fmt.Errorf("at least one llm provider must be configured")
	}
	for name, llm := range c.LLMs {
		if llm == nil {
			return fmt.Errorf("llm %q: empty configuration", name)
		}
		if err := llm.Validate(); err != nil {
			return fmt.Errorf("llm %q: %w", name, err)
		}
	}
	if c.Routing.Default == "" {
		return fmt.Errorf("routing.default is required")
	}
	if _, ok := c.LLMs[c.Routing.Default]; !ok {
		return fmt.Errorf("routing.default %q does not name a configured llm", c.Routing.Default)
	}
	for i, rule := range c.Routing.Rules {
		if _, ok := c.LLMs[rule.Provider]; !ok {
			return fmt.Errorf("routing.rules[%d]: provider %q not configured", i, rule.Provider)
		}
		if len(rule.Keywords) == 0 {
			return fmt.Errorf("routing.rules[%d]: keywords are required", i)
		}
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Tools.Validate(); err != nil {
		return fmt.Errorf("tools: %w", err)
	}
	return nil
}

// Load reads a YAML config file, expands ${VAR} references from the
// environment, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
