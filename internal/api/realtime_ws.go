package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/termfix/termfix/internal/realtime"
	realtimeTypes "github.com/termfix/termfix/pkg/realtime"
)

var realtimeUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// realtimeWebSocket upgrades the connection and serves the subscribe /
// unsubscribe / ping protocol until the client disconnects.
func (h *Handler) realtimeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := realtimeUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := realtime.NewClient(uuid.NewString(), conn)
	h.realtimeHub.Register(client)
	defer h.realtimeHub.Unregister(client.ID())

	go client.WriteLoop()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg realtimeTypes.ClientEnvelope
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.sendRealtimeError(client, "invalid message")
			continue
		}
		if !h.handleRealtimeMessage(client, msg) {
			return
		}
	}
}

// handleRealtimeMessage processes one client envelope. Reports false
// when the client should be torn down.
func (h *Handler) handleRealtimeMessage(client *realtime.Client, msg realtimeTypes.ClientEnvelope) bool {
	switch msg.Type {
	case realtimeTypes.ClientMessageTypeSubscribe:
		return h.handleRealtimeSubscribe(client, msg.Topics)
	case realtimeTypes.ClientMessageTypeUnsubscribe:
		h.realtimeHub.Unsubscribe(client.ID(), supportedTopics(msg.Topics))
		return true
	case realtimeTypes.ClientMessageTypePing:
		return client.Queue(realtimeTypes.ServerEnvelope{Type: realtimeTypes.ServerMessageTypePong})
	default:
		h.sendRealtimeError(client, "unsupported message type")
		return true
	}
}

// handleRealtimeSubscribe registers the valid topics and answers each
// with an initial snapshot so clients never start from a blind state.
func (h *Handler) handleRealtimeSubscribe(client *realtime.Client, topics []string) bool {
	valid := make([]string, 0, len(topics))
	for _, topic := range topics {
		if !realtime.IsSupportedTopic(topic) {
			h.sendRealtimeError(client, "unsupported topic: "+topic)
			continue
		}
		valid = append(valid, topic)
	}
	if len(valid) == 0 {
		return true
	}

	h.realtimeHub.Subscribe(client.ID(), valid)
	for _, topic := range valid {
		snapshot, err := h.snapshotter.Snapshot(topic)
		if err != nil {
			h.sendRealtimeError(client, "failed to build snapshot")
			continue
		}
		if !client.Queue(realtimeTypes.ServerEnvelope{
			Type:    realtimeTypes.ServerMessageTypeSnapshot,
			Topic:   topic,
			Payload: snapshot,
		}) {
			return false
		}
	}
	return true
}

func supportedTopics(topics []string) []string {
	valid := make([]string, 0, len(topics))
	for _, topic := range topics {
		if realtime.IsSupportedTopic(topic) {
			valid = append(valid, topic)
		}
	}
	return valid
}

func (h *Handler) sendRealtimeError(client *realtime.Client, message string) {
	if !client.Queue(realtimeTypes.ServerEnvelope{
		Type:    realtimeTypes.ServerMessageTypeError,
		Message: message,
	}) {
		h.realtimeHub.Unregister(client.ID())
	}
}
