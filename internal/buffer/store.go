// Package buffer keeps bounded per-terminal output and command history.
// Terminal entries appear on the first event for a handle and disappear on
// the close notification, so no state survives a terminal's lifetime.
package buffer

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/termfix/termfix/internal/ansi"
	"github.com/termfix/termfix/internal/domain"
	"github.com/termfix/termfix/internal/window"
)

const (
	// DefaultWindowSize bounds both the chunk and command windows.
	DefaultWindowSize = 40
	// DefaultJoinedMaxChars bounds JoinedOutput when no limit is given.
	DefaultJoinedMaxChars = 16000
)

type entry struct {
	mu       sync.Mutex
	chunks   *window.Window[string]
	commands *window.Window[domain.CommandRecord]
}

// Store maps terminal handles to their bounded output and command windows.
// Writes for one handle serialize on that handle's entry; different handles
// do not contend beyond the registry lookup.
type Store struct {
	mu         sync.RWMutex
	entries    map[domain.Handle]*entry
	windowSize int
	events     *Broadcaster
}

func NewStore(windowSize int) *Store {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Store{
		entries:    make(map[domain.Handle]*entry),
		windowSize: windowSize,
		events:     NewBroadcaster(),
	}
}

// Events exposes the store's event feed for observers such as the realtime
// bridge.
func (s *Store) Events() *Broadcaster {
	return s.events
}

func (s *Store) entryFor(handle domain.Handle) *entry {
	s.mu.RLock()
	e, ok := s.entries[handle]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[handle]; ok {
		return e
	}
	e = &entry{
		chunks:   window.New[string](s.windowSize),
		commands: window.New[domain.CommandRecord](s.windowSize),
	}
	s.entries[handle] = e
	return e
}

// OutputWritten records one raw output chunk for handle, stripped of ANSI
// escape sequences.
func (s *Store) OutputWritten(handle domain.Handle, raw string) {
	text := ansi.Strip(raw)

	e := s.entryFor(handle)
	e.mu.Lock()
	e.chunks.Push(text)
	e.mu.Unlock()

	s.events.Broadcast(domain.NewChunkEvent(handle, text))
}

// CommandCompleted records one completed command for handle.
func (s *Store) CommandCompleted(handle domain.Handle, record domain.CommandRecord) {
	e := s.entryFor(handle)
	e.mu.Lock()
	e.commands.Push(record)
	e.mu.Unlock()

	s.events.Broadcast(domain.NewCommandEvent(handle, record))
}

// TerminalClosed drops everything recorded for handle. No-op when the
// handle is unknown.
func (s *Store) TerminalClosed(handle domain.Handle) {
	s.mu.Lock()
	_, ok := s.entries[handle]
	delete(s.entries, handle)
	s.mu.Unlock()

	if ok {
		s.events.Broadcast(domain.NewTerminalClosedEvent(handle))
	}
}

// JoinedOutput concatenates the handle's chunks in arrival order and
// returns at most the last maxChars bytes. Truncation keeps the suffix:
// recent output is what matters for fix context. Unknown handles yield "",
// indistinguishable from a known handle with no output; read paths here
// are deliberately best-effort.
func (s *Store) JoinedOutput(handle domain.Handle, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultJoinedMaxChars
	}

	s.mu.RLock()
	e, ok := s.entries[handle]
	s.mu.RUnlock()
	if !ok {
		return ""
	}

	e.mu.Lock()
	chunks := e.chunks.Items()
	e.mu.Unlock()

	var b strings.Builder
	for _, chunk := range chunks {
		b.WriteString(chunk)
	}
	joined := b.String()
	if len(joined) > maxChars {
		cut := len(joined) - maxChars
		// Never split a multibyte rune; advancing keeps the result
		// within maxChars.
		for cut < len(joined) && !utf8.RuneStart(joined[cut]) {
			cut++
		}
		return joined[cut:]
	}
	return joined
}

// LastCommand returns the most recent command record for handle.
func (s *Store) LastCommand(handle domain.Handle) (domain.CommandRecord, bool) {
	s.mu.RLock()
	e, ok := s.entries[handle]
	s.mu.RUnlock()
	if !ok {
		return domain.CommandRecord{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commands.Last()
}

// Commands returns the handle's command window in arrival order.
func (s *Store) Commands(handle domain.Handle) []domain.CommandRecord {
	s.mu.RLock()
	e, ok := s.entries[handle]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commands.Items()
}

// Handles lists the handles with at least one recorded event.
func (s *Store) Handles() []domain.Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	handles := make([]domain.Handle, 0, len(s.entries))
	for handle := range s.entries {
		handles = append(handles, handle)
	}
	return handles
}

// ChunkCount reports how many chunks are buffered for handle.
func (s *Store) ChunkCount(handle domain.Handle) int {
	s.mu.RLock()
	e, ok := s.entries[handle]
	s.mu.RUnlock()
	if !ok {
		return 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chunks.Len()
}

// Close shuts down the event feed.
func (s *Store) Close() {
	s.events.Close()
}
