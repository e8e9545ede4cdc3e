package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/config"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/httpclient"
)

// MCPToolSource exposes the tools of one remote MCP server. Discovery runs
// at startup; calls go over JSON-RPC on the server's streamable HTTP
// endpoint.
type MCPToolSource struct {
	name       string
	serverURL  string
	httpClient *httpclient.Client

	mu    sync.RWMutex
	tools map[string]Tool
}

func NewMCPToolSource(cfg config.MCPServerConfig) *MCPToolSource {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &MCPToolSource{
		name:      cfg.Name,
		serverURL: cfg.ServerURL,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
			httpclient.WithMaxRetries(3),
		),
		tools: make(map[string]Tool),
	}
}

func (s *MCPToolSource) GetName() string { return s.name }
func (s *MCPToolSource) GetType() string { return "mcp" }

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// DiscoverTools fetches the server's tool list and rebuilds the local view.
func (s *MCPToolSource) DiscoverTools(ctx context.Context) error {
	if s.serverURL == "" {
		return fmt.Errorf("mcp source %s has no server url", s.name)
	}

	result, err := s.call(ctx, "tools/list", map[string]any{})
	if err != nil {
		return fmt.Errorf("mcp discovery failed for %s: %w", s.name, err)
	}

	var listed struct {
		Tools []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			InputSchema struct {
				Properties map[string]struct {
					Type        string   `json:"type"`
					Description string   `json:"description"`
					Enum        []string `json:"enum,omitempty"`
					Default     any      `json:"default,omitempty"`
				} `json:"properties"`
				Required []string `json:"required"`
			} `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(result, &listed); err != nil {
		return fmt.Errorf("mcp discovery failed for %s: bad tool list: %w", s.name, err)
	}

	required := func(names []string, name string) bool {
		for _, n := range names {
			if n == name {
				return true
			}
		}
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools = make(map[string]Tool, len(listed.Tools))
	for _, remote := range listed.Tools {
		info := ToolInfo{
			Name:        remote.Name,
			Description: remote.Description,
			Source:      s.name,
		}
		for paramName, prop := range remote.InputSchema.Properties {
			info.Parameters = append(info.Parameters, ToolParameter{
				Name:        paramName,
				Type:        prop.Type,
				Description: prop.Description,
				Required:    required(remote.InputSchema.Required, paramName),
				Enum:        prop.Enum,
				Default:     prop.Default,
			})
		}
		s.tools[remote.Name] = &mcpTool{info: info, source: s}
	}

	slog.Info("discovered mcp tools", "source", s.name, "count", len(s.tools))
	return nil
}

func (s *MCPToolSource) ListTools() []ToolInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]ToolInfo, 0, len(s.tools))
	for _, tool := range s.tools {
		infos = append(infos, tool.GetInfo())
	}
	return infos
}

func (s *MCPToolSource) GetTool(name string) (Tool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tool, exists := s.tools[name]
	return tool, exists
}

// call performs one JSON-RPC round trip. Servers may answer with plain JSON
// or a single-event SSE frame; both are accepted.
func (s *MCPToolSource) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.serverURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	rpcResp, err := decodeRPCResponse(raw)
	if err != nil {
		return nil, err
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}

func decodeRPCResponse(raw []byte) (*rpcResponse, error) {
	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err == nil {
		return &rpcResp, nil
	}

	for _, line := range strings.Split(string(raw), "\n") {
		if data, found := strings.CutPrefix(line, "data: "); found {
			if err := json.Unmarshal([]byte(data), &rpcResp); err == nil {
				return &rpcResp, nil
			}
		}
	}
	return nil, fmt.Errorf("response is neither JSON nor SSE")
}

// mcpTool proxies a single remote tool.
type mcpTool struct {
	info   ToolInfo
	source *MCPToolSource
}

func (t *mcpTool) GetInfo() ToolInfo { return t.info }
func (t *mcpTool) GetName() string   { return t.info.Name }

func (t *mcpTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	start := time.Now()

	result, err := t.source.call(ctx, "tools/call", map[string]any{
		"name":      t.info.Name,
		"arguments": args,
	})
	if err != nil {
		return errorResult(t.info.Name, err.Error(), time.Since(start)), nil
	}

	var payload struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		return errorResult(t.info.Name, "bad response from mcp server: "+err.Error(), time.Since(start)), nil
	}

	var content strings.Builder
	for _, item := range payload.Content {
		if item.Text != "" {
			content.WriteString(item.Text)
			content.WriteString("\n")
		}
	}
	text := strings.TrimSpace(content.String())

	if payload.IsError {
		return errorResult(t.info.Name, text, time.Since(start)), nil
	}

	res := successResult(t.info.Name, text, nil, time.Since(start))
	res.Metadata = map[string]any{"source": t.source.name, "server_url": t.source.serverURL}
	return res, nil
}
