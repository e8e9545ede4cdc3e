package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/agent"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/config"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/confirm"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/kvstore"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/llms"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/protocol"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/registry"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/tools"
)

type fixedProvider struct{ text string }

func (p *fixedProvider) Name() string { return "fixed" }
func (p *fixedProvider) Close() error { return nil }
func (p *fixedProvider) Complete(ctx context.Context, messages []protocol.Message, defs []llms.ToolDefinition) (*llms.Completion, error) {
	return &llms.Completion{Text: p.text}, nil
}

func newTestServer(t *testing.T) (*Server, *confirm.Gate) {
	t.Helper()

	providers := &llms.ProviderRegistry{BaseRegistry: registry.NewBaseRegistry[llms.Provider]()}
	if err := providers.Register("default", &fixedProvider{text: "hello"}); err != nil {
		t.Fatal(err)
	}

	reg := tools.NewToolRegistry()
	orchestrator := agent.New(providers, reg, tools.NewExecutor(reg),
		config.RoutingConfig{Default: "default"}, config.AgentConfig{MaxIterations: 5})

	gate := confirm.NewGate(kvstore.NewMemoryStore(),
		func(ctx context.Context, action *confirm.PendingAction) (any, error) { return "done", nil },
		5*time.Minute)

	return New(config.ServerConfig{Host: "127.0.0.1", Port: 0}, orchestrator, gate), gate
}

func TestServer_ChatRequiresIdentity(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"message":"hi"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestServer_Chat(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set(HeaderUserID, "user-1")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var outcome agent.Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatal(err)
	}
	if outcome.FinalText != "hello" {
		t.Errorf("FinalText = %q", outcome.FinalText)
	}
	if outcome.StopReason != agent.StopFinished {
		t.Errorf("StopReason = %s", outcome.StopReason)
	}
}

func TestServer_ChatRejectsEmptyMessage(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{}`))
	req.Header.Set(HeaderUserID, "user-1")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestServer_ConfirmRoundTrip(t *testing.T) {
	srv, gate := newTestServer(t)

	receipt, err := gate.Prepare(context.Background(), "user-1", "send_email",
		map[string]any{"to": "a@b.com"})
	if err != nil {
		t.Fatal(err)
	}

	body := `{"confirmation_id":"` + receipt.ConfirmationID + `","confirmed":true}`
	req := httptest.NewRequest(http.MethodPost, "/v1/confirm", strings.NewReader(body))
	req.Header.Set(HeaderUserID, "user-1")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var decision confirm.Decision
	if err := json.Unmarshal(rec.Body.Bytes(), &decision); err != nil {
		t.Fatal(err)
	}
	if decision.Outcome != confirm.OutcomeConfirmed {
		t.Errorf("Outcome = %s", decision.Outcome)
	}
}

func TestServer_ConfirmWrongUser(t *testing.T) {
	srv, gate := newTestServer(t)

	receipt, err := gate.Prepare(context.Background(), "user-1", "send_email", nil)
	if err != nil {
		t.Fatal(err)
	}

	body := `{"confirmation_id":"` + receipt.ConfirmationID + `","confirmed":true}`
	req := httptest.NewRequest(http.MethodPost, "/v1/confirm", strings.NewReader(body))
	req.Header.Set(HeaderUserID, "user-2")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var decision confirm.Decision
	if err := json.Unmarshal(rec.Body.Bytes(), &decision); err != nil {
		t.Fatal(err)
	}
	if decision.Outcome != confirm.OutcomeUnauthorized {
		t.Errorf("Outcome = %s, want unauthorized", decision.Outcome)
	}
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
