package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/config"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/confirm"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/google"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/query"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/tenant"
)

// BuildDeps carries everything the default catalog needs.
type BuildDeps struct {
	Resolver *tenant.Resolver
	Runner   *query.Runner
	Gate     *confirm.Gate
	Calendar *google.CalendarService
	Gmail    *google.GmailService
}

// BuildRegistry assembles the tool catalog from config: the built-in tools
// that have their dependencies available, then every configured MCP server.
// An unreachable MCP server logs a warning and is skipped so one flaky
// dependency cannot block startup.
func BuildRegistry(ctx context.Context, cfg config.ToolsConfig, deps BuildDeps) (*ToolRegistry, error) {
	reg := NewToolRegistry()
	local := NewLocalToolSource()

	if deps.Resolver != nil && deps.Runner != nil {
		local.Add(NewQueryDataTool(deps.Resolver, deps.Runner))
		local.Add(NewSchemaInfoTool(deps.Resolver))
	}
	if deps.Gate != nil {
		local.Add(NewConfirmActionTool(deps.Gate))
		if deps.Gmail != nil {
			local.Add(NewSendEmailTool(deps.Gate))
		}
		if deps.Calendar != nil {
			local.Add(NewCreateCalendarEventTool(deps.Gate))
		}
	}
	if deps.Calendar != nil {
		local.Add(NewListCalendarEventsTool(deps.Calendar))
	}
	if cfg.Maps.Enabled {
		local.Add(NewDirectionsTool(cfg.Maps))
	}
	if cfg.Search.Enabled {
		local.Add(NewWebSearchTool(cfg.Search))
	}

	if err := reg.RegisterSource(ctx, local); err != nil {
		return nil, fmt.Errorf("failed to register built-in tools: %w", err)
	}

	for _, server := range cfg.MCP {
		source := NewMCPToolSource(server)
		if err := reg.RegisterSource(ctx, source); err != nil {
			slog.Warn("skipping mcp server", "source", server.Name, "error", err)
		}
	}

	return reg, nil
}
