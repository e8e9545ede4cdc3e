package tools

import (
	"context"
	"sync"
)

// LocalToolSource holds the built-in tools registered at startup.
type LocalToolSource struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewLocalToolSource() *LocalToolSource {
	return &LocalToolSource{tools: make(map[string]Tool)}
}

func (s *LocalToolSource) GetName() string { return "local" }
func (s *LocalToolSource) GetType() string { return "local" }

// Add registers a built-in tool with the source.
func (s *LocalToolSource) Add(tool Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools[tool.GetName()] = tool
}

// DiscoverTools is a no-op for built-ins; they are registered explicitly.
func (s *LocalToolSource) DiscoverTools(ctx context.Context) error {
	return nil
}

func (s *LocalToolSource) ListTools() []ToolInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]ToolInfo, 0, len(s.tools))
	for _, tool := range s.tools {
		info := tool.GetInfo()
		info.Source = s.GetName()
		infos = append(infos, info)
	}
	return infos
}

func (s *LocalToolSource) GetTool(name string) (Tool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tool, exists := s.tools[name]
	return tool, exists
}
