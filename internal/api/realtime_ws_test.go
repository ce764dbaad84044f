package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	apiTypes "github.com/termfix/termfix/pkg/api"
	realtimeTypes "github.com/termfix/termfix/pkg/realtime"
)

type serverMessage struct {
	Type    realtimeTypes.ServerMessageType `json:"type"`
	Topic   string                          `json:"topic"`
	Payload json.RawMessage                 `json:"payload"`
	Message string                          `json:"message"`
}

func dialRealtime(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/realtime"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial realtime: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readServerMessage(t *testing.T, conn *websocket.Conn) serverMessage {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg serverMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read server message: %v", err)
	}
	return msg
}

func TestRealtimeSubscribeSnapshotThenEvent(t *testing.T) {
	env := newTestEnv(t, &stubBackend{response: "NONE"}, &stubBackend{response: "[]"})

	env.do(t, http.MethodPost, "/api/v1/terminals/term-1/output", apiTypes.OutputWrittenRequest{Data: "hello\n"}).Body.Close()

	conn := dialRealtime(t, env)
	if err := conn.WriteJSON(realtimeTypes.ClientEnvelope{
		Type:   realtimeTypes.ClientMessageTypeSubscribe,
		Topics: []string{"terminal.activity"},
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	msg := readServerMessage(t, conn)
	if msg.Type != realtimeTypes.ServerMessageTypeSnapshot || msg.Topic != "terminal.activity" {
		t.Fatalf("first message = %+v, want terminal.activity snapshot", msg)
	}
	var snapshot realtimeTypes.TerminalActivitySnapshot
	if err := json.Unmarshal(msg.Payload, &snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snapshot.Terminals) != 1 || snapshot.Terminals[0].Handle != "term-1" {
		t.Errorf("snapshot terminals = %+v", snapshot.Terminals)
	}

	env.do(t, http.MethodPost, "/api/v1/terminals/term-1/output", apiTypes.OutputWrittenRequest{Data: "more\n"}).Body.Close()

	event := readServerMessage(t, conn)
	if event.Type != realtimeTypes.ServerMessageTypeEvent || event.Topic != "terminal.activity" {
		t.Fatalf("second message = %+v, want terminal.activity event", event)
	}
	var activity realtimeTypes.TerminalActivityEvent
	if err := json.Unmarshal(event.Payload, &activity); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if activity.Handle != "term-1" || activity.Kind != "chunk_appended" {
		t.Errorf("activity event = %+v", activity)
	}
}

func TestRealtimePingPong(t *testing.T) {
	env := newTestEnv(t, &stubBackend{response: "NONE"}, &stubBackend{response: "[]"})

	conn := dialRealtime(t, env)
	if err := conn.WriteJSON(realtimeTypes.ClientEnvelope{Type: realtimeTypes.ClientMessageTypePing}); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if msg := readServerMessage(t, conn); msg.Type != realtimeTypes.ServerMessageTypePong {
		t.Errorf("reply = %+v, want pong", msg)
	}
}

func TestRealtimeUnsupportedTopic(t *testing.T) {
	env := newTestEnv(t, &stubBackend{response: "NONE"}, &stubBackend{response: "[]"})

	conn := dialRealtime(t, env)
	if err := conn.WriteJSON(realtimeTypes.ClientEnvelope{
		Type:   realtimeTypes.ClientMessageTypeSubscribe,
		Topics: []string{"bogus.topic"},
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	msg := readServerMessage(t, conn)
	if msg.Type != realtimeTypes.ServerMessageTypeError {
		t.Fatalf("reply = %+v, want error", msg)
	}
	if !strings.Contains(msg.Message, "bogus.topic") {
		t.Errorf("error message = %q, want the offending topic named", msg.Message)
	}
}

func TestRealtimeDispatchEventOnApply(t *testing.T) {
	env := newTestEnv(t, &stubBackend{response: "NONE"}, &stubBackend{response: "[]"})

	conn := dialRealtime(t, env)
	if err := conn.WriteJSON(realtimeTypes.ClientEnvelope{
		Type:   realtimeTypes.ClientMessageTypeSubscribe,
		Topics: []string{"quickfix.dispatch"},
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	// Event-only topic: the subscription acknowledges with an empty
	// snapshot.
	if msg := readServerMessage(t, conn); msg.Type != realtimeTypes.ServerMessageTypeSnapshot {
		t.Fatalf("first message = %+v, want snapshot", msg)
	}

	env.do(t, http.MethodPost, "/api/v1/terminals/term-1/quickfix/apply", apiTypes.ApplyRequest{
		Suggestion: apiTypes.Suggestion{Command: "go vet ./...", Relevance: "medium"},
	}).Body.Close()

	msg := readServerMessage(t, conn)
	if msg.Type != realtimeTypes.ServerMessageTypeEvent || msg.Topic != "quickfix.dispatch" {
		t.Fatalf("dispatch message = %+v", msg)
	}
	var event realtimeTypes.DispatchEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		t.Fatalf("decode dispatch event: %v", err)
	}
	if event.Handle != "term-1" || event.Command != "go vet ./..." || !event.Execute {
		t.Errorf("dispatch event = %+v", event)
	}
}
