package agent

import (
	"fmt"
	"strings"

	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/config"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/llms"
)

// RouteModel picks the provider name for a request. An explicit override
// wins; otherwise the first routing rule with a keyword present in the
// message; otherwise the default. Pure keyword matching, case-insensitive.
func RouteModel(message, override string, routing config.RoutingConfig) string {
	if override != "" {
		return override
	}

	lowered := strings.ToLower(message)
	for _, rule := range routing.Rules {
		for _, keyword := range rule.Keywords {
			if keyword != "" && strings.Contains(lowered, strings.ToLower(keyword)) {
				return rule.Provider
			}
		}
	}
	return routing.Default
}

// resolveProvider binds the routed name to a configured provider. The
// binding happens once per request, before the loop starts; every iteration
// of one request talks to the same model.
func resolveProvider(reg *llms.ProviderRegistry, name string) (llms.Provider, error) {
	provider, ok := reg.Get(name)
	if !ok {
		return nil, fmt.Errorf("no provider configured under %q", name)
	}
	return provider, nil
}
