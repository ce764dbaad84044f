package realtime

import (
	"context"
	"time"

	"github.com/termfix/termfix/internal/domain"
	realtimeTypes "github.com/termfix/termfix/pkg/realtime"
)

// InputDispatcher forwards chosen fixes to the host editor over the
// realtime feed. The host owns the terminal; it performs the actual
// insert or run.
type InputDispatcher struct {
	hub *Hub
}

func NewInputDispatcher(hub *Hub) *InputDispatcher {
	return &InputDispatcher{hub: hub}
}

func (d *InputDispatcher) Send(ctx context.Context, handle domain.Handle, command string, execute bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.hub.Publish(TopicDispatch, realtimeTypes.ServerEnvelope{
		Type:  realtimeTypes.ServerMessageTypeEvent,
		Topic: TopicDispatch,
		Payload: realtimeTypes.DispatchEvent{
			Handle:    string(handle),
			Command:   command,
			Execute:   execute,
			Timestamp: time.Now().UTC(),
		},
	})
	return nil
}
