// Package realtime fans buffer, suggestion, and dispatch events out to
// websocket subscribers, keyed by topic.
package realtime

import (
	"sync"

	realtimeTypes "github.com/termfix/termfix/pkg/realtime"
)

// Hub routes server messages to subscribers by topic. Subscriptions live
// on the hub rather than the client, so publishing a terminal-activity
// burst touches only that topic's subscriber set.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	topics  map[string]map[string]*Client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		topics:  make(map[string]map[string]*Client),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID()] = client
	h.mu.Unlock()
}

// Unregister removes the client from every topic and closes it. No-op
// for unknown IDs.
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	client, ok := h.clients[clientID]
	if ok {
		delete(h.clients, clientID)
		for topic, subs := range h.topics {
			delete(subs, clientID)
			if len(subs) == 0 {
				delete(h.topics, topic)
			}
		}
	}
	h.mu.Unlock()

	if ok {
		client.Close()
	}
}

// Publish queues msg for every subscriber of topic. A subscriber whose
// queue will not take the message is unregistered: it is either gone or
// too far behind to ever catch up.
func (h *Hub) Publish(topic string, msg realtimeTypes.ServerEnvelope) {
	h.mu.RLock()
	subs := make([]*Client, 0, len(h.topics[topic]))
	for _, client := range h.topics[topic] {
		subs = append(subs, client)
	}
	h.mu.RUnlock()

	for _, client := range subs {
		if client.Queue(msg) {
			continue
		}
		h.Unregister(client.ID())
	}
}

// Subscribe adds the client to each topic's subscriber set. Reports
// false when the client is not registered.
func (h *Hub) Subscribe(clientID string, topics []string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	client, ok := h.clients[clientID]
	if !ok {
		return false
	}
	for _, topic := range topics {
		subs := h.topics[topic]
		if subs == nil {
			subs = make(map[string]*Client)
			h.topics[topic] = subs
		}
		subs[clientID] = client
	}
	return true
}

func (h *Hub) Unsubscribe(clientID string, topics []string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[clientID]; !ok {
		return false
	}
	for _, topic := range topics {
		if subs := h.topics[topic]; subs != nil {
			delete(subs, clientID)
			if len(subs) == 0 {
				delete(h.topics, topic)
			}
		}
	}
	return true
}
