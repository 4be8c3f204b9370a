package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/trailofbits/slither-mcp/internal/analyzer"
	"github.com/trailofbits/slither-mcp/internal/config"
	"github.com/trailofbits/slither-mcp/internal/engine"
	"github.com/trailofbits/slither-mcp/internal/facts"
	"github.com/trailofbits/slither-mcp/internal/logging"
	"github.com/trailofbits/slither-mcp/internal/testutil"
)

type stubAnalyzer struct{ t *testing.T }

var _ analyzer.Analyzer = (*stubAnalyzer)(nil)

func (a *stubAnalyzer) Analyze(ctx context.Context, projectRoot string) (*facts.Store, error) {
	return testutil.SampleStore(a.t), nil
}

func (a *stubAnalyzer) ListDetectors(ctx context.Context) ([]facts.DetectorMetadata, error) {
	return nil, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Cache.Enabled = false
	eng := engine.New(cfg, &stubAnalyzer{t: t}, nil, logging.Discard())
	return NewServer("test", eng, logging.Discard())
}

// runSession feeds newline-delimited requests through the server and returns
// one parsed response per request.
func runSession(t *testing.T, requests ...string) []Message {
	t.Helper()
	s := newTestServer(t)

	var out bytes.Buffer
	s.SetStdin(strings.NewReader(strings.Join(requests, "\n") + "\n"))
	s.SetStdout(&out)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	var responses []Message
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var msg Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			t.Fatalf("unparseable response %q: %v", line, err)
		}
		responses = append(responses, msg)
	}
	return responses
}

// toolText extracts the JSON text payload of a tools/call response
func toolText(t *testing.T, msg Message) (string, bool) {
	t.Helper()
	result, ok := msg.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result is not an object: %+v", msg)
	}
	content := result["content"].([]interface{})
	text := content[0].(map[string]interface{})["text"].(string)
	isError, _ := result["isError"].(bool)
	return text, isError
}

func TestInitialize(t *testing.T) {
	responses := runSession(t,
		`{"jsonrpc": "2.0", "id": 1, "method": "initialize", "params": {}}`)

	if len(responses) != 1 || responses[0].Error != nil {
		t.Fatalf("responses = %+v", responses)
	}
	result := responses[0].Result.(map[string]interface{})
	info := result["serverInfo"].(map[string]interface{})
	if info["name"] != "slither-mcp" {
		t.Errorf("serverInfo = %v", info)
	}
}

func TestListTools(t *testing.T) {
	responses := runSession(t,
		`{"jsonrpc": "2.0", "id": 1, "method": "tools/list"}`)

	result := responses[0].Result.(map[string]interface{})
	tools := result["tools"].([]interface{})
	names := map[string]bool{}
	for _, tool := range tools {
		names[tool.(map[string]interface{})["name"].(string)] = true
	}
	for _, want := range []string{
		"analyze_project", "list_contracts", "get_contract",
		"get_contract_source", "get_function_source",
		"get_inheritance_hierarchy", "list_function_callees",
		"list_function_callers", "list_function_implementations",
		"list_detectors",
	} {
		if !names[want] {
			t.Errorf("tools/list missing %q", want)
		}
	}
}

func TestCallListContracts(t *testing.T) {
	responses := runSession(t,
		`{"jsonrpc": "2.0", "id": 1, "method": "tools/call", "params": {"name": "list_contracts", "arguments": {"path": "/work/p"}}}`)

	text, isError := toolText(t, responses[0])
	if isError {
		t.Fatalf("unexpected tool error: %s", text)
	}
	var payload struct {
		Contracts []json.RawMessage `json:"contracts"`
		Page      struct {
			Total int `json:"total_count"`
		} `json:"page"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Page.Total != 6 {
		t.Errorf("total = %d, want 6", payload.Page.Total)
	}
}

func TestCallGetContractByBareName(t *testing.T) {
	responses := runSession(t,
		`{"jsonrpc": "2.0", "id": 1, "method": "tools/call", "params": {"name": "get_contract", "arguments": {"path": "/work/p", "contract_name": "Vault"}}}`)

	text, isError := toolText(t, responses[0])
	if isError {
		t.Fatalf("unexpected tool error: %s", text)
	}
	var contract facts.ContractFact
	if err := json.Unmarshal([]byte(text), &contract); err != nil {
		t.Fatal(err)
	}
	if contract.Key != testutil.Vault {
		t.Errorf("key = %v, want Vault", contract.Key)
	}
}

func TestCallGetContractSource(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "src", "Vault.sol"),
		[]byte("contract Vault {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	responses := runSession(t, fmt.Sprintf(
		`{"jsonrpc": "2.0", "id": 1, "method": "tools/call", "params": {"name": "get_contract_source", "arguments": {"path": %q, "contract_name": "Vault"}}}`,
		root))

	text, isError := toolText(t, responses[0])
	if isError {
		t.Fatalf("unexpected tool error: %s", text)
	}
	var payload struct {
		File   string `json:"file"`
		Source string `json:"source"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.File != "src/Vault.sol" || !strings.Contains(payload.Source, "contract Vault") {
		t.Errorf("payload = %+v", payload)
	}
}

func TestCallErrorsCarryStableCodes(t *testing.T) {
	responses := runSession(t,
		`{"jsonrpc": "2.0", "id": 1, "method": "tools/call", "params": {"name": "get_contract", "arguments": {"path": "/work/p", "contract_name": "Ghost"}}}`,
		`{"jsonrpc": "2.0", "id": 2, "method": "tools/call", "params": {"name": "get_contract", "arguments": {"path": "/work/p"}}}`)

	text, isError := toolText(t, responses[0])
	if !isError || !strings.Contains(text, "CONTRACT_NOT_FOUND") {
		t.Errorf("unknown contract: isError=%v text=%s", isError, text)
	}

	text, isError = toolText(t, responses[1])
	if !isError || !strings.Contains(text, "INVALID_ARGUMENT") {
		t.Errorf("missing contract_name: isError=%v text=%s", isError, text)
	}
}

func TestCallFunctionTools(t *testing.T) {
	responses := runSession(t,
		`{"jsonrpc": "2.0", "id": 1, "method": "tools/call", "params": {"name": "list_function_callees", "arguments": {"path": "/work/p", "contract_name": "Vault", "signature": "withdraw(uint256)"}}}`)

	text, isError := toolText(t, responses[0])
	if isError {
		t.Fatalf("unexpected tool error: %s", text)
	}
	var payload struct {
		HasLowLevelCalls bool `json:"has_low_level_calls"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		t.Fatal(err)
	}
	if !payload.HasLowLevelCalls {
		t.Error("Vault.withdraw should report low-level calls")
	}
}

func TestUnknownToolAndMethod(t *testing.T) {
	responses := runSession(t,
		`{"jsonrpc": "2.0", "id": 1, "method": "tools/call", "params": {"name": "no_such_tool", "arguments": {}}}`,
		`{"jsonrpc": "2.0", "id": 2, "method": "bogus/method"}`)

	if responses[0].Error == nil || responses[0].Error.Code != MethodNotFound {
		t.Errorf("unknown tool: %+v", responses[0])
	}
	if responses[1].Error == nil || responses[1].Error.Code != MethodNotFound {
		t.Errorf("unknown method: %+v", responses[1])
	}
}

// A line that fails to parse is dropped; the session keeps serving.
func TestMalformedLineIsSkipped(t *testing.T) {
	responses := runSession(t,
		`{this is not json`,
		`{"jsonrpc": "2.0", "id": 1, "method": "tools/list"}`)

	if len(responses) != 1 || responses[0].Error != nil {
		t.Fatalf("responses = %+v, want one tools/list result", responses)
	}
}

// A line past the scanner buffer leaves the stream unreadable; the server
// must end the session rather than spin on the sticky scanner error.
func TestOversizedLineEndsSession(t *testing.T) {
	s := newTestServer(t)
	var out bytes.Buffer
	s.SetStdin(strings.NewReader(strings.Repeat("a", MaxMessageSize+1) + "\n"))
	s.SetStdout(&out)

	if err := s.Run(context.Background()); err == nil {
		t.Fatal("expected Run to fail on an oversized line")
	}
}

func TestNotificationsProduceNoResponse(t *testing.T) {
	responses := runSession(t,
		`{"jsonrpc": "2.0", "method": "notifications/initialized"}`,
		`{"jsonrpc": "2.0", "id": 1, "method": "initialize", "params": {}}`)

	if len(responses) != 1 {
		t.Errorf("got %d responses, want 1 (notifications are silent)", len(responses))
	}
}
