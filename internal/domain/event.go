package domain

import "time"

type EventType int

const (
	EventTypeChunkAppended EventType = iota
	EventTypeCommandRecorded
	EventTypeTerminalClosed
	EventTypeSuggestionsReady
	EventTypeFixDispatched
)

func (t EventType) String() string {
	switch t {
	case EventTypeChunkAppended:
		return "chunk_appended"
	case EventTypeCommandRecorded:
		return "command_recorded"
	case EventTypeTerminalClosed:
		return "terminal_closed"
	case EventTypeSuggestionsReady:
		return "suggestions_ready"
	case EventTypeFixDispatched:
		return "fix_dispatched"
	default:
		return "unknown"
	}
}

type Event struct {
	Type      EventType
	Timestamp time.Time
	Handle    Handle
	Data      any
}

type ChunkData struct {
	Text string
}

type CommandData struct {
	Record CommandRecord
}

type SuggestionsData struct {
	RequestID   string
	Suggestions []CommandSuggestion
}

type FixData struct {
	RequestID string
	Command   string
	Executed  bool
}

func NewChunkEvent(handle Handle, text string) Event {
	return Event{
		Type:      EventTypeChunkAppended,
		Timestamp: time.Now(),
		Handle:    handle,
		Data:      ChunkData{Text: text},
	}
}

func NewCommandEvent(handle Handle, record CommandRecord) Event {
	return Event{
		Type:      EventTypeCommandRecorded,
		Timestamp: time.Now(),
		Handle:    handle,
		Data:      CommandData{Record: record},
	}
}

func NewTerminalClosedEvent(handle Handle) Event {
	return Event{
		Type:      EventTypeTerminalClosed,
		Timestamp: time.Now(),
		Handle:    handle,
	}
}

func NewSuggestionsEvent(handle Handle, requestID string, suggestions []CommandSuggestion) Event {
	return Event{
		Type:      EventTypeSuggestionsReady,
		Timestamp: time.Now(),
		Handle:    handle,
		Data:      SuggestionsData{RequestID: requestID, Suggestions: suggestions},
	}
}

func NewFixDispatchedEvent(handle Handle, requestID, command string, executed bool) Event {
	return Event{
		Type:      EventTypeFixDispatched,
		Timestamp: time.Now(),
		Handle:    handle,
		Data:      FixData{RequestID: requestID, Command: command, Executed: executed},
	}
}
