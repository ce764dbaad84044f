// Package realtime defines the websocket wire protocol between the
// termfix daemon and host-editor clients.
package realtime

import "time"

type ClientMessageType string

const (
	ClientMessageTypeSubscribe   ClientMessageType = "subscribe"
	ClientMessageTypeUnsubscribe ClientMessageType = "unsubscribe"
	ClientMessageTypePing        ClientMessageType = "ping"
)

type ServerMessageType string

const (
	ServerMessageTypeSnapshot ServerMessageType = "snapshot"
	ServerMessageTypeEvent    ServerMessageType = "event"
	ServerMessageTypeError    ServerMessageType = "error"
	ServerMessageTypePong     ServerMessageType = "pong"
)

type ClientEnvelope struct {
	Type   ClientMessageType `json:"type"`
	Topics []string          `json:"topics,omitempty"`
}

type ServerEnvelope struct {
	Type    ServerMessageType `json:"type"`
	Topic   string            `json:"topic,omitempty"`
	Payload any               `json:"payload,omitempty"`
	Message string            `json:"message,omitempty"`
}

// TerminalActivitySnapshot answers a fresh subscription to the terminal
// activity topic.
type TerminalActivitySnapshot struct {
	Terminals []TerminalActivityState `json:"terminals"`
}

type TerminalActivityState struct {
	Handle      string `json:"handle"`
	ChunkCount  int    `json:"chunk_count"`
	LastCommand string `json:"last_command,omitempty"`
}

// TerminalActivityEvent reports one buffer store mutation.
type TerminalActivityEvent struct {
	Handle    string    `json:"handle"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// SuggestionsEvent reports a completed fix request.
type SuggestionsEvent struct {
	Handle      string       `json:"handle"`
	RequestID   string       `json:"request_id"`
	Timestamp   time.Time    `json:"timestamp"`
	Suggestions []Suggestion `json:"suggestions"`
}

type Suggestion struct {
	Command     string `json:"command"`
	Description string `json:"description"`
	Relevance   string `json:"relevance"`
}

// DispatchEvent tells the host editor to insert or run a command in the
// terminal identified by Handle.
type DispatchEvent struct {
	Handle    string    `json:"handle"`
	Command   string    `json:"command"`
	Execute   bool      `json:"execute"`
	Timestamp time.Time `json:"timestamp"`
}
