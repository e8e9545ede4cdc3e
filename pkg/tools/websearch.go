package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/config"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/httpclient"
)

// WebSearchTool queries a Brave-compatible search API for facts outside the
// tenant's data.
type WebSearchTool struct {
	cfg    config.SearchToolConfig
	client *httpclient.Client
}

func NewWebSearchTool(cfg config.SearchToolConfig) *WebSearchTool {
	return &WebSearchTool{
		cfg: cfg,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: 15 * time.Second}),
			httpclient.WithMaxRetries(2),
		),
	}
}

func (t *WebSearchTool) GetName() string { return "search_web" }

func (t *WebSearchTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: "Search the web for current information.",
		Parameters: []ToolParameter{
			{Name: "query", Type: "string", Description: "Search query", Required: true},
			{Name: "count", Type: "integer", Description: "Number of results, default 5", Required: false},
		},
		ReadOnly: true,
	}
}

type searchHit struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	start := time.Now()

	searchQuery, _ := args["query"].(string)
	if searchQuery == "" {
		return errorResult(t.GetName(), "missing required parameter: query", time.Since(start)), nil
	}
	count := intArg(args, "count", 5)
	if count > 10 {
		count = 10
	}

	params := url.Values{}
	params.Set("q", searchQuery)
	params.Set("count", fmt.Sprintf("%d", count))

	endpoint := strings.TrimRight(t.cfg.Host, "/") + "/res/v1/web/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ToolResult{}, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", t.cfg.APIKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return ToolResult{}, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errorResult(t.GetName(),
			fmt.Sprintf("search API returned status %d", resp.StatusCode), time.Since(start)), nil
	}

	var payload struct {
		Web struct {
			Results []searchHit `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return ToolResult{}, fmt.Errorf("failed to decode search response: %w", err)
	}

	hits := payload.Web.Results
	if len(hits) > count {
		hits = hits[:count]
	}
	if len(hits) == 0 {
		return successResult(t.GetName(), "No results found.", hits, time.Since(start)), nil
	}

	var b strings.Builder
	for i, hit := range hits {
		fmt.Fprintf(&b, "%d. %s\n%s\n%s\n", i+1, hit.Title, hit.URL, hit.Description)
	}
	return successResult(t.GetName(), b.String(), hits, time.Since(start)), nil
}
