// Package present orders fix suggestions for display and applies the
// user's choice to the terminal.
package present

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/termfix/termfix/internal/buffer"
	"github.com/termfix/termfix/internal/domain"
	"github.com/termfix/termfix/internal/storage"
)

// Action says how a chosen suggestion reaches the terminal.
type Action int

const (
	// ActionExecute runs the command immediately.
	ActionExecute Action = iota
	// ActionInsert places the text for the user to complete first.
	ActionInsert
)

func (a Action) String() string {
	if a == ActionInsert {
		return "insert"
	}
	return "execute"
}

// Decision is the resolved handling for one chosen suggestion.
type Decision struct {
	Action  Action
	Command string
}

// Placeholder tokens like {branch} mark parameters the user must fill in.
var placeholderPattern = regexp.MustCompile(`\{[^{}]*\}`)

// Rank orders suggestions by descending relevance. The sort is stable:
// equal-relevance suggestions keep their discovery order. The input is
// not modified.
func Rank(suggestions []domain.CommandSuggestion) []domain.CommandSuggestion {
	ranked := make([]domain.CommandSuggestion, len(suggestions))
	copy(ranked, suggestions)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Relevance > ranked[j].Relevance
	})
	return ranked
}

// Choose resolves a suggestion to a Decision. Commands containing a
// {...} placeholder are never auto-run: they need user-supplied values.
func Choose(suggestion domain.CommandSuggestion) Decision {
	if placeholderPattern.MatchString(suggestion.Command) {
		return Decision{Action: ActionInsert, Command: suggestion.Command}
	}
	return Decision{Action: ActionExecute, Command: suggestion.Command}
}

// TerminalInput forwards a chosen command to the host terminal.
type TerminalInput interface {
	Send(ctx context.Context, handle domain.Handle, command string, execute bool) error
}

// Presenter applies chosen suggestions: it resolves the action, forwards
// the command, records the applied fix, and announces it on the event
// feed.
type Presenter struct {
	input   TerminalInput
	history storage.FixHistory
	events  *buffer.Broadcaster
}

func NewPresenter(input TerminalInput, history storage.FixHistory, events *buffer.Broadcaster) *Presenter {
	return &Presenter{
		input:   input,
		history: history,
		events:  events,
	}
}

// Apply carries out the user's selection for one suggestion.
func (p *Presenter) Apply(ctx context.Context, handle domain.Handle, requestID string, suggestion domain.CommandSuggestion) (Decision, error) {
	decision := Choose(suggestion)

	if p.input != nil {
		executed := decision.Action == ActionExecute
		if err := p.input.Send(ctx, handle, decision.Command, executed); err != nil {
			return Decision{}, fmt.Errorf("terminal input: %w", err)
		}
	}

	if p.history != nil {
		record := storage.FixRecord{
			ID:        uuid.NewString(),
			RequestID: requestID,
			Handle:    string(handle),
			Command:   decision.Command,
			Executed:  decision.Action == ActionExecute,
			Relevance: suggestion.Relevance,
			AppliedAt: time.Now().UTC(),
		}
		// History is an audit trail; a write failure must not undo the
		// dispatch that already happened.
		_ = p.history.Save(record)
	}

	if p.events != nil {
		p.events.Broadcast(domain.NewFixDispatchedEvent(handle, requestID, decision.Command, decision.Action == ActionExecute))
	}

	return decision, nil
}
