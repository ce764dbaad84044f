// Package api defines the REST wire types for the termfix daemon.
package api

import "time"

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// OutputWrittenRequest delivers one chunk of raw terminal output.
type OutputWrittenRequest struct {
	Data string `json:"data"`
}

// CommandCompletedRequest delivers one completed command from the host's
// shell integration. A null exit_code means the status is unknown.
type CommandCompletedRequest struct {
	CommandLine      string `json:"command_line,omitempty"`
	WorkingDirectory string `json:"working_directory,omitempty"`
	ExitCode         *int   `json:"exit_code,omitempty"`
	Output           string `json:"output,omitempty"`
}

type TerminalListResponse struct {
	Terminals []TerminalSummary `json:"terminals"`
}

type TerminalSummary struct {
	Handle      string `json:"handle"`
	ChunkCount  int    `json:"chunk_count"`
	LastCommand string `json:"last_command,omitempty"`
}

type JoinedOutputResponse struct {
	Output string `json:"output"`
}

type LastCommandResponse struct {
	CommandLine      string `json:"command_line,omitempty"`
	WorkingDirectory string `json:"working_directory,omitempty"`
	ExitCode         *int   `json:"exit_code,omitempty"`
	Output           string `json:"output,omitempty"`
}

// SuggestResponse is a successful fix request. Suggestions are ordered
// by relevance, ties in discovery order.
type SuggestResponse struct {
	RequestID   string       `json:"request_id"`
	Suggestions []Suggestion `json:"suggestions"`
	Existing    []string     `json:"existing_files,omitempty"`
	Missing     []string     `json:"missing_files,omitempty"`
}

type Suggestion struct {
	Command     string `json:"command"`
	Description string `json:"description"`
	Relevance   string `json:"relevance"`
}

// SuggestFailureResponse classifies a failed fix request.
type SuggestFailureResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ApplyRequest carries the user's chosen suggestion.
type ApplyRequest struct {
	RequestID  string     `json:"request_id"`
	Suggestion Suggestion `json:"suggestion"`
}

type ApplyResponse struct {
	Action  string `json:"action"`
	Command string `json:"command"`
}

type RulesConfig struct {
	Version int    `json:"version"`
	Rules   []Rule `json:"rules"`
}

type Rule struct {
	ID             string `json:"id"`
	Enabled        bool   `json:"enabled"`
	CommandPattern string `json:"command_pattern"`
	OutputPattern  string `json:"output_pattern,omitempty"`
}

type FixHistoryResponse struct {
	Fixes []FixRecord `json:"fixes"`
}

type FixRecord struct {
	ID        string    `json:"id"`
	RequestID string    `json:"request_id"`
	Handle    string    `json:"handle"`
	Command   string    `json:"command"`
	Executed  bool      `json:"executed"`
	Relevance string    `json:"relevance"`
	AppliedAt time.Time `json:"applied_at"`
}
