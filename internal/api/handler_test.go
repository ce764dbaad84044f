package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/termfix/termfix/internal/buffer"
	"github.com/termfix/termfix/internal/domain"
	"github.com/termfix/termfix/internal/llm"
	"github.com/termfix/termfix/internal/present"
	"github.com/termfix/termfix/internal/quickfix"
	"github.com/termfix/termfix/internal/realtime"
	"github.com/termfix/termfix/internal/storage"
	apiTypes "github.com/termfix/termfix/pkg/api"
)

type stubBackend struct {
	response string
	err      error
}

func (s *stubBackend) Complete(ctx context.Context, prompt string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

type stubFiles struct{}

func (stubFiles) Exists(ctx context.Context, path string) (bool, error) {
	return true, nil
}

// recordingInput captures dispatched commands for assertions and then
// forwards them to the real dispatcher, if one is chained.
type recordingInput struct {
	next    present.TerminalInput
	handle  domain.Handle
	command string
	execute bool
}

func (r *recordingInput) Send(ctx context.Context, handle domain.Handle, command string, execute bool) error {
	r.handle = handle
	r.command = command
	r.execute = execute
	if r.next != nil {
		return r.next.Send(ctx, handle, command, execute)
	}
	return nil
}

type testEnv struct {
	server  *httptest.Server
	buffers *buffer.Store
	input   *recordingInput
	history storage.FixHistory
}

func newTestEnv(t *testing.T, extractor, suggester llm.Backend) *testEnv {
	t.Helper()

	buffers := buffer.NewStore(buffer.DefaultWindowSize)
	t.Cleanup(buffers.Close)

	matcher, err := quickfix.NewMatcher(quickfix.DefaultRuleConfig())
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	tracker := quickfix.NewTracker()
	engine := quickfix.NewEngine(extractor, suggester, stubFiles{}, buffers)

	history, err := storage.NewJSONFixHistory(t.TempDir())
	if err != nil {
		t.Fatalf("NewJSONFixHistory: %v", err)
	}

	hub := realtime.NewHub()
	input := &recordingInput{next: realtime.NewInputDispatcher(hub)}
	presenter := present.NewPresenter(input, history, buffers.Events())

	rulesPath := filepath.Join(t.TempDir(), "quickfix-rules.v1.json")
	handler := NewHandler(buffers, matcher, tracker, engine, presenter, history, rulesPath, hub)

	router := chi.NewRouter()
	handler.Mount(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{server: server, buffers: buffers, input: input, history: history}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestOutputRoundTrip(t *testing.T) {
	env := newTestEnv(t, &stubBackend{response: "NONE"}, &stubBackend{response: "[]"})

	resp := env.do(t, http.MethodPost, "/api/v1/terminals/term-1/output", apiTypes.OutputWrittenRequest{
		Data: "\x1b[31mbuild failed\x1b[0m\n",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("post output status = %d, want 202", resp.StatusCode)
	}

	got := decodeBody[apiTypes.JoinedOutputResponse](t, env.do(t, http.MethodGet, "/api/v1/terminals/term-1/output", nil))
	if got.Output != "build failed\n" {
		t.Errorf("joined output = %q, want ANSI stripped text", got.Output)
	}
}

func TestJoinedOutputMaxChars(t *testing.T) {
	env := newTestEnv(t, &stubBackend{response: "NONE"}, &stubBackend{response: "[]"})

	env.do(t, http.MethodPost, "/api/v1/terminals/term-1/output", apiTypes.OutputWrittenRequest{Data: "abcdefgh"}).Body.Close()

	got := decodeBody[apiTypes.JoinedOutputResponse](t, env.do(t, http.MethodGet, "/api/v1/terminals/term-1/output?max_chars=3", nil))
	if got.Output != "fgh" {
		t.Errorf("truncated output = %q, want %q", got.Output, "fgh")
	}

	resp := env.do(t, http.MethodGet, "/api/v1/terminals/term-1/output?max_chars=nope", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid max_chars status = %d, want 400", resp.StatusCode)
	}
}

func TestUnknownTerminalReadsAsEmpty(t *testing.T) {
	env := newTestEnv(t, &stubBackend{response: "NONE"}, &stubBackend{response: "[]"})

	got := decodeBody[apiTypes.JoinedOutputResponse](t, env.do(t, http.MethodGet, "/api/v1/terminals/ghost/output", nil))
	if got.Output != "" {
		t.Errorf("unknown terminal output = %q, want empty", got.Output)
	}

	resp := env.do(t, http.MethodGet, "/api/v1/terminals/ghost/last-command", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown terminal last-command status = %d, want 404", resp.StatusCode)
	}
}

func TestTerminalClosedDropsBuffer(t *testing.T) {
	env := newTestEnv(t, &stubBackend{response: "NONE"}, &stubBackend{response: "[]"})

	env.do(t, http.MethodPost, "/api/v1/terminals/term-1/output", apiTypes.OutputWrittenRequest{Data: "hello"}).Body.Close()

	resp := env.do(t, http.MethodDelete, "/api/v1/terminals/term-1", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}

	got := decodeBody[apiTypes.JoinedOutputResponse](t, env.do(t, http.MethodGet, "/api/v1/terminals/term-1/output", nil))
	if got.Output != "" {
		t.Errorf("output after close = %q, want empty", got.Output)
	}

	terminals := decodeBody[apiTypes.TerminalListResponse](t, env.do(t, http.MethodGet, "/api/v1/terminals", nil))
	if len(terminals.Terminals) != 0 {
		t.Errorf("terminal list after close = %v, want empty", terminals.Terminals)
	}
}

func TestLastCommandRoundTrip(t *testing.T) {
	env := newTestEnv(t, &stubBackend{response: "NONE"}, &stubBackend{response: "[]"})

	exitCode := 0
	env.do(t, http.MethodPost, "/api/v1/terminals/term-1/commands", apiTypes.CommandCompletedRequest{
		CommandLine:      "go test ./...",
		WorkingDirectory: "/src/app",
		ExitCode:         &exitCode,
		Output:           "ok\n",
	}).Body.Close()

	got := decodeBody[apiTypes.LastCommandResponse](t, env.do(t, http.MethodGet, "/api/v1/terminals/term-1/last-command", nil))
	if got.CommandLine != "go test ./..." || got.WorkingDirectory != "/src/app" {
		t.Errorf("last command = %+v", got)
	}
	if got.ExitCode == nil || *got.ExitCode != 0 {
		t.Errorf("exit code = %v, want 0", got.ExitCode)
	}
}

func TestQuickfixFlow(t *testing.T) {
	suggester := &stubBackend{
		response: "```json\n[{\"command\": \"sudo apt update\", \"description\": \"Refresh package index\", \"relevance\": \"high\"}]\n```",
	}
	env := newTestEnv(t, &stubBackend{response: "NONE"}, suggester)

	exitCode := 127
	env.do(t, http.MethodPost, "/api/v1/terminals/term-1/commands", apiTypes.CommandCompletedRequest{
		CommandLine: "apt update",
		ExitCode:    &exitCode,
		Output:      "bash: apt: command not found\n",
	}).Body.Close()

	resp := env.do(t, http.MethodPost, "/api/v1/terminals/term-1/quickfix", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("quickfix status = %d, want 200", resp.StatusCode)
	}
	got := decodeBody[apiTypes.SuggestResponse](t, resp)
	if got.RequestID == "" {
		t.Error("expected a request id")
	}
	if len(got.Suggestions) != 1 {
		t.Fatalf("suggestions = %+v, want one", got.Suggestions)
	}
	if got.Suggestions[0].Command != "sudo apt update" || got.Suggestions[0].Relevance != "high" {
		t.Errorf("suggestion = %+v", got.Suggestions[0])
	}
}

func TestQuickfixWithoutMatch(t *testing.T) {
	env := newTestEnv(t, &stubBackend{response: "NONE"}, &stubBackend{response: "[]"})

	resp := env.do(t, http.MethodPost, "/api/v1/terminals/term-1/quickfix", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("quickfix without match status = %d, want 404", resp.StatusCode)
	}
}

func TestQuickfixBackendUnavailable(t *testing.T) {
	env := newTestEnv(t, &stubBackend{response: "NONE"}, &stubBackend{err: llm.ErrUnavailable})

	exitCode := 1
	env.do(t, http.MethodPost, "/api/v1/terminals/term-1/commands", apiTypes.CommandCompletedRequest{
		CommandLine: "make",
		ExitCode:    &exitCode,
		Output:      "make: *** [all] Error 1\n",
	}).Body.Close()

	resp := env.do(t, http.MethodPost, "/api/v1/terminals/term-1/quickfix", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("quickfix status = %d, want 503", resp.StatusCode)
	}
	got := decodeBody[apiTypes.SuggestFailureResponse](t, resp)
	if got.Kind != string(quickfix.FailureBackendUnavailable) {
		t.Errorf("failure kind = %q, want %q", got.Kind, quickfix.FailureBackendUnavailable)
	}
}

func TestApplyFix(t *testing.T) {
	env := newTestEnv(t, &stubBackend{response: "NONE"}, &stubBackend{response: "[]"})

	resp := env.do(t, http.MethodPost, "/api/v1/terminals/term-1/quickfix/apply", apiTypes.ApplyRequest{
		RequestID: "req-1",
		Suggestion: apiTypes.Suggestion{
			Command:   "go mod tidy",
			Relevance: "medium",
		},
	})
	got := decodeBody[apiTypes.ApplyResponse](t, resp)
	if got.Action != "execute" || got.Command != "go mod tidy" {
		t.Errorf("apply response = %+v", got)
	}
	if env.input.command != "go mod tidy" || !env.input.execute {
		t.Errorf("dispatched input = %+v", env.input)
	}

	history := decodeBody[apiTypes.FixHistoryResponse](t, env.do(t, http.MethodGet, "/api/v1/quickfix/history", nil))
	if len(history.Fixes) != 1 || history.Fixes[0].Command != "go mod tidy" {
		t.Errorf("fix history = %+v", history.Fixes)
	}
}

func TestApplyFixWithPlaceholder(t *testing.T) {
	env := newTestEnv(t, &stubBackend{response: "NONE"}, &stubBackend{response: "[]"})

	resp := env.do(t, http.MethodPost, "/api/v1/terminals/term-1/quickfix/apply", apiTypes.ApplyRequest{
		Suggestion: apiTypes.Suggestion{
			Command:   "kill -9 {pid}",
			Relevance: "high",
		},
	})
	got := decodeBody[apiTypes.ApplyResponse](t, resp)
	if got.Action != "insert" {
		t.Errorf("placeholder action = %q, want insert", got.Action)
	}
	if env.input.execute {
		t.Error("placeholder suggestion must not auto-run")
	}
}

func TestRulesRoundTrip(t *testing.T) {
	env := newTestEnv(t, &stubBackend{response: "NONE"}, &stubBackend{response: "[]"})

	got := decodeBody[apiTypes.RulesConfig](t, env.do(t, http.MethodGet, "/api/v1/quickfix/rules", nil))
	if got.Version != 1 || len(got.Rules) == 0 {
		t.Fatalf("default rules = %+v", got)
	}

	updated := apiTypes.RulesConfig{
		Version: 1,
		Rules: []apiTypes.Rule{
			{ID: "npm-only", Enabled: true, CommandPattern: `^npm\b`},
		},
	}
	resp := env.do(t, http.MethodPut, "/api/v1/quickfix/rules", updated)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put rules status = %d, want 200", resp.StatusCode)
	}

	reread := decodeBody[apiTypes.RulesConfig](t, env.do(t, http.MethodGet, "/api/v1/quickfix/rules", nil))
	if len(reread.Rules) != 1 || reread.Rules[0].ID != "npm-only" {
		t.Errorf("reread rules = %+v", reread.Rules)
	}
}

func TestPutRulesRejectsBadPattern(t *testing.T) {
	env := newTestEnv(t, &stubBackend{response: "NONE"}, &stubBackend{response: "[]"})

	resp := env.do(t, http.MethodPut, "/api/v1/quickfix/rules", apiTypes.RulesConfig{
		Version: 1,
		Rules:   []apiTypes.Rule{{ID: "bad", Enabled: true, CommandPattern: "("}},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad pattern status = %d, want 400", resp.StatusCode)
	}
}
