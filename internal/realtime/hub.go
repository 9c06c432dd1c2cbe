// Package realtime fans workspace events out to connected WebSocket
// clients. Subscriptions are topic-scoped; the workflow engine and the API
// layer publish to drive topics.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// Logger is the logging interface the hub depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// subscriber is one connected client on one topic. The send channel is
// buffered; a subscriber that cannot keep up loses messages rather than
// blocking the publisher.
type subscriber struct {
	send chan []byte
}

// Hub routes published payloads to topic subscribers.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*subscriber]struct{}
	logger Logger
}

func NewHub(logger Logger) *Hub {
	return &Hub{
		topics: make(map[string]map[*subscriber]struct{}),
		logger: logger,
	}
}

// Publish marshals payload and delivers it to every subscriber of topic.
// Slow subscribers are skipped.
func (h *Hub) Publish(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("dropping unmarshalable event", "topic", topic, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.topics[topic] {
		select {
		case sub.send <- data:
		default:
			h.logger.Debug("subscriber lagging, message dropped", "topic", topic)
		}
	}
}

func (h *Hub) subscribe(topic string) *subscriber {
	sub := &subscriber{send: make(chan []byte, 32)}
	h.mu.Lock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*subscriber]struct{})
	}
	h.topics[topic][sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(topic string, sub *subscriber) {
	h.mu.Lock()
	if subs := h.topics[topic]; subs != nil {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
	h.mu.Unlock()
}

// SubscriberCount reports the live subscribers of a topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Serve upgrades the connection and streams topic messages until the client
// disconnects or ctx is cancelled. Reads are drained and discarded; the
// socket is server-push only.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, topic string) error {
	sub := h.subscribe(topic)
	defer h.unsubscribe(topic, sub)

	// CloseRead surfaces client disconnects through ctx cancellation.
	ctx = conn.CloseRead(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-sub.send:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
