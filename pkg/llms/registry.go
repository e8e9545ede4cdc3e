package llms

import (
	"fmt"

	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/config"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/registry"
)

// NewProvider builds the adapter selected by the config's type.
func NewProvider(cfg *config.LLMProviderConfig) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("provider config is required")
	}
	switch cfg.Type {
	case "openai":
		return NewOpenAIProvider(cfg)
	case "anthropic":
		return NewAnthropicProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider type %q", cfg.Type)
	}
}

// ProviderRegistry holds the configured providers keyed by their config
// name, the names the routing rules refer to.
type ProviderRegistry struct {
	*registry.BaseRegistry[Provider]
}

// NewProviderRegistry instantiates every configured provider. Construction
// fails on the first bad provider config; a half-wired registry is worse
// than a failed startup.
func NewProviderRegistry(configs map[string]*config.LLMProviderConfig) (*ProviderRegistry, error) {
	reg := &ProviderRegistry{BaseRegistry: registry.NewBaseRegistry[Provider]()}
	for name, cfg := range configs {
		provider, err := NewProvider(cfg)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		if err := reg.Register(name, provider); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Close closes every provider.
func (r *ProviderRegistry) Close() error {
	var firstErr error
	for _, provider := range r.List() {
		if err := provider.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
