package config

import "fmt"

// ToolsConfig configures the concrete tool implementations and external
// tool sources.
type ToolsConfig struct {
	Query  QueryToolConfig   `yaml:"query" json:"query"`
	Maps   MapsToolConfig    `yaml:"maps" json:"maps"`
	Search SearchToolConfig  `yaml:"search" json:"search"`
	Google GoogleToolConfig  `yaml:"google" json:"google"`
	MCP    []MCPServerConfig `yaml:"mcp,omitempty" json:"mcp,omitempty" jsonschema:"title=MCP Servers,description=External MCP servers contributing tools"`
}

// QueryToolConfig bounds tenant data queries.
type QueryToolConfig struct {
	// MaxRows is appended as a LIMIT to every query lacking one.
	MaxRows int `yaml:"max_rows,omitempty" json:"max_rows,omitempty" jsonschema:"minimum=1,default=1000"`

	// TimeoutSeconds bounds a single query execution.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty" jsonschema:"minimum=1,default=30"`
}

// MapsToolConfig configures the directions/geocoding tool.
type MapsToolConfig struct {
	Enabled bool   `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	APIKey  string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	Host    string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"default=https://maps.googleapis.com"`
}

// SearchToolConfig configures the web search tool.
type SearchToolConfig struct {
	Enabled bool   `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	APIKey  string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	Host    string `yaml:"host,omitempty" json:"host,omitempty"`
}

// GoogleToolConfig configures the OAuth-backed calendar and email tools.
type GoogleToolConfig struct {
	Enabled      bool   `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	ClientID     string `yaml:"client_id,omitempty" json:"client_id,omitempty"`
	ClientSecret string `yaml:"client_secret,omitempty" json:"client_secret,omitempty"`
	RedirectURL  string `yaml:"redirect_url,omitempty" json:"redirect_url,omitempty"`
}

// MCPServerConfig describes one external MCP server.
type MCPServerConfig struct {
	Name      string `yaml:"name" json:"name"`
	ServerURL string `yaml:"server_url" json:"server_url"`
	// TimeoutSeconds bounds a single remote tool call.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty" jsonschema:"minimum=1,default=30"`
}

// SetDefaults applies tool defaults.
func (c *ToolsConfig) SetDefaults() {
	if c.Query.MaxRows == 0 {
		c.Query.MaxRows = 1000
	}
	if c.Query.TimeoutSeconds == 0 {
		c.Query.TimeoutSeconds = 30
	}
	if c.Maps.Host == "" {
		c.Maps.Host = "https://maps.googleapis.com"
	}
	for i := range c.MCP {
		if c.MCP[i].TimeoutSeconds == 0 {
			c.MCP[i].TimeoutSeconds = 30
		}
	}
}

// Validate checks tool configuration consistency.
func (c *ToolsConfig) Validate() error {
	if c.Maps.Enabled && c.Maps.APIKey == "" {
		return fmt.Errorf("maps: api_key is required when enabled")
	}
	if c.Search.Enabled && c.Search.Host == "" {
		return fmt.Errorf("search: host is required when enabled")
	}
	for i, server := range c.MCP {
		if server.Name == "" {
			return fmt.Errorf("mcp[%d]: name is required", i)
		}
		if server.ServerURL == "" {
			return fmt.Errorf("mcp[%d]: server_url is required", i)
		}
	}
	return nil
}
