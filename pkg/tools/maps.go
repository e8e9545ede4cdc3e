package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/config"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/httpclient"
)

// DirectionsTool answers travel questions through the Google Maps
// Directions API. When the model omits an origin, the user's injected
// location fills it in.
type DirectionsTool struct {
	cfg    config.MapsToolConfig
	client *httpclient.Client
}

func NewDirectionsTool(cfg config.MapsToolConfig) *DirectionsTool {
	return &DirectionsTool{
		cfg: cfg,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: 15 * time.Second}),
			httpclient.WithMaxRetries(2),
		),
	}
}

func (t *DirectionsTool) GetName() string { return "get_directions" }

func (t *DirectionsTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: "Get driving directions and travel time between two places.",
		Parameters: []ToolParameter{
			{Name: "origin", Type: "string", Description: "Starting point; defaults to the user's current location", Required: false},
			{Name: "destination", Type: "string", Description: "Destination address or place name", Required: true},
			{Name: "mode", Type: "string", Description: "Travel mode", Required: false,
				Enum: []string{"driving", "walking", "bicycling", "transit"}},
		},
		RequiresLocation: true,
		ReadOnly:         true,
	}
}

type directionsLeg struct {
	Distance struct {
		Text string `json:"text"`
	} `json:"distance"`
	Duration struct {
		Text string `json:"text"`
	} `json:"duration"`
	StartAddress string `json:"start_address"`
	EndAddress   string `json:"end_address"`
}

func (t *DirectionsTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	start := time.Now()

	destination, _ := args["destination"].(string)
	if destination == "" {
		return errorResult(t.GetName(), "missing required parameter: destination", time.Since(start)), nil
	}
	origin, _ := args["origin"].(string)
	if origin == "" {
		origin, _ = args[ArgUserLocation].(string)
	}
	if origin == "" {
		return errorResult(t.GetName(),
			"no origin given and user location is unavailable; ask the user where they are starting from",
			time.Since(start)), nil
	}
	mode, _ := args["mode"].(string)
	if mode == "" {
		mode = "driving"
	}

	params := url.Values{}
	params.Set("origin", origin)
	params.Set("destination", destination)
	params.Set("mode", mode)
	params.Set("key", t.cfg.APIKey)

	endpoint := t.cfg.Host + "/maps/api/directions/json?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ToolResult{}, fmt.Errorf("failed to build directions request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return ToolResult{}, fmt.Errorf("directions request failed: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Status string `json:"status"`
		Routes []struct {
			Summary string          `json:"summary"`
			Legs    []directionsLeg `json:"legs"`
		} `json:"routes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return ToolResult{}, fmt.Errorf("failed to decode directions response: %w", err)
	}

	if payload.Status != "OK" || len(payload.Routes) == 0 {
		return errorResult(t.GetName(),
			fmt.Sprintf("no route found (%s)", payload.Status), time.Since(start)), nil
	}

	route := payload.Routes[0]
	leg := route.Legs[0]
	content := fmt.Sprintf("%s to %s via %s: %s, about %s",
		leg.StartAddress, leg.EndAddress, route.Summary, leg.Distance.Text, leg.Duration.Text)
	return successResult(t.GetName(), content, route, time.Since(start)), nil
}
