// Package livefeed fans newly logged violations out to connected admin
// dashboards.
package livefeed

import (
	"context"
	"encoding/json"
	"log"
	"proctorportal/backend/internal/models"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Hub owns the set of connected clients. All mutations happen on the Run
// goroutine.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]Client

	RegisterCh   chan Client
	UnregisterCh chan Client
	IncomingCh   chan models.ViolationEvent

	done chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:      make(map[string]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		IncomingCh:   make(chan models.ViolationEvent, 16),
		done:         make(chan struct{}),
	}
}

// Run dispatches registrations and announcements until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, c := range h.clients {
				c.Close()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case c := <-h.RegisterCh:
			h.mu.Lock()
			h.clients[c.GetID()] = c
			h.mu.Unlock()
			log.Printf("INFO: Live feed client %s connected", c.GetID())

		case c := <-h.UnregisterCh:
			h.remove(c.GetID())

		case ev := <-h.IncomingCh:
			h.broadcast(ev)
		}
	}
}

func (h *Hub) broadcast(ev models.ViolationEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		select {
		case c.GetSendChannel() <- ev:
		default:
			// Slow client: drop it rather than stall the feed.
			log.Printf("WARNING: Live feed client %s is too slow, disconnecting", id)
			c.Close()
			delete(h.clients, id)
		}
	}
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		c.Close()
		delete(h.clients, id)
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Announce feeds a violation to this instance's clients only.
func (h *Hub) Announce(ctx context.Context, ev models.ViolationEvent) error {
	select {
	case h.IncomingCh <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ListenRedis forwards every message of sub into the hub until ctx is
// cancelled or the subscription is closed.
func (h *Hub) ListenRedis(ctx context.Context, sub *redis.PubSub) {
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev models.ViolationEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("Error unmarshalling live feed message: %v", err)
				continue
			}
			if err := h.Announce(ctx, ev); err != nil {
				return
			}
		}
	}
}

// Publisher publishes a violation to every instance.
type Publisher interface {
	PublishViolation(ctx context.Context, event models.ViolationEvent) error
}

// RedisAnnouncer announces through Redis so that every instance's hub,
// including this one via ListenRedis, receives the violation.
type RedisAnnouncer struct {
	Publisher Publisher
}

func (a RedisAnnouncer) Announce(ctx context.Context, ev models.ViolationEvent) error {
	return a.Publisher.PublishViolation(ctx, ev)
}
