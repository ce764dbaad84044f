package realtime

import (
	"fmt"
	"sort"

	"github.com/termfix/termfix/internal/buffer"
	realtimeTypes "github.com/termfix/termfix/pkg/realtime"
)

// SnapshotProvider builds the initial payload a client receives when it
// subscribes to a topic. Event-only topics snapshot as nil.
type SnapshotProvider struct {
	buffers *buffer.Store
}

func NewSnapshotProvider(buffers *buffer.Store) *SnapshotProvider {
	return &SnapshotProvider{buffers: buffers}
}

func (p *SnapshotProvider) Snapshot(topic string) (any, error) {
	switch topic {
	case TopicTerminalActivity:
		return p.terminalActivity(), nil
	case TopicSuggestions, TopicDispatch:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported topic: %s", topic)
	}
}

func (p *SnapshotProvider) terminalActivity() realtimeTypes.TerminalActivitySnapshot {
	handles := p.buffers.Handles()
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })

	terminals := make([]realtimeTypes.TerminalActivityState, 0, len(handles))
	for _, handle := range handles {
		state := realtimeTypes.TerminalActivityState{
			Handle:     string(handle),
			ChunkCount: p.buffers.ChunkCount(handle),
		}
		if rec, ok := p.buffers.LastCommand(handle); ok {
			state.LastCommand = rec.CommandLine
		}
		terminals = append(terminals, state)
	}
	return realtimeTypes.TerminalActivitySnapshot{Terminals: terminals}
}
