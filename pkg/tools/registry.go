package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/registry"
)

// ToolEntry is one catalog row: the tool plus where it came from.
type ToolEntry struct {
	Tool       Tool
	Source     ToolSource
	SourceType string
	Name       string
}

// ToolRegistry is the immutable-after-startup catalog the executor and the
// orchestration loop read from.
type ToolRegistry struct {
	*registry.BaseRegistry[ToolEntry]
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{BaseRegistry: registry.NewBaseRegistry[ToolEntry]()}
}

// RegisterSource discovers a source's tools and adds each to the catalog.
// A name already present wins; the conflicting tool is skipped with a
// warning rather than failing startup.
func (r *ToolRegistry) RegisterSource(ctx context.Context, source ToolSource) error {
	name := source.GetName()
	if name == "" {
		return fmt.Errorf("tool source name cannot be empty")
	}

	if err := source.DiscoverTools(ctx); err != nil {
		return fmt.Errorf("failed to discover tools from source %s: %w", name, err)
	}

	for _, info := range source.ListTools() {
		tool, exists := source.GetTool(info.Name)
		if !exists {
			slog.Warn("tool listed but not available", "tool", info.Name, "source", name)
			continue
		}
		if _, taken := r.Get(info.Name); taken {
			slog.Warn("tool name conflict, skipping", "tool", info.Name, "source", name)
			continue
		}
		entry := ToolEntry{
			Tool:       tool,
			Source:     source,
			SourceType: source.GetType(),
			Name:       info.Name,
		}
		if err := r.Register(info.Name, entry); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", info.Name, err)
		}
	}
	return nil
}

// GetTool looks a tool up by name.
func (r *ToolRegistry) GetTool(name string) (Tool, error) {
	entry, exists := r.Get(name)
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return entry.Tool, nil
}

// ListTools returns every catalog entry's info, sorted by name. This is the
// set advertised to the model on each orchestration turn.
func (r *ToolRegistry) ListTools() []ToolInfo {
	entries := r.List()
	infos := make([]ToolInfo, 0, len(entries))
	for _, entry := range entries {
		info := entry.Tool.GetInfo()
		info.Source = entry.Source.GetName()
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}
