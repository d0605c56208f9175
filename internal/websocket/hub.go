package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"schoolpulse/internal/infrastructure"
	"schoolpulse/pkg/contracts"
	"schoolpulse/pkg/contracts/events"
)

const broadcastBuffer = 64

// ErrHubStopped is returned when publishing to a hub that is no longer running
var ErrHubStopped = errors.New("websocket hub stopped")

// Hub tracks connected dashboard clients and fans catalog events out to them
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	// mu guards clients for ClientCount; only Run mutates the map
	mu sync.RWMutex

	done     chan struct{}
	stopOnce sync.Once

	metrics *Metrics
	logger  *slog.Logger
}

// NewHub creates a hub. Call Run to start delivering messages.
func NewHub(logger *slog.Logger, metrics *Metrics) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, broadcastBuffer),
		done:       make(chan struct{}),
		metrics:    metrics,
		logger:     infrastructure.WithComponent(logger, "websocket.hub"),
	}
}

// Run delivers messages until ctx is cancelled or Stop is called.
// On return every client's send channel is closed.
func (h *Hub) Run(ctx context.Context) {
	defer h.closeAll(ctx)

	for {
		select {
		case <-ctx.Done():
			h.Stop()
			return
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.connectionDelta(ctx, 1)

			h.logger.InfoContext(ctx, "client registered",
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr),
				slog.Int("total_clients", count))

			if msg, err := encode(ctx, events.MessageTypeConnect, events.Connected{
				ClientID: client.id,
				Version:  contracts.Version,
			}); err == nil {
				select {
				case client.send <- msg:
				default:
				}
			}

		case client := <-h.unregister:
			if h.remove(client) {
				h.logger.InfoContext(ctx, "client unregistered",
					slog.String("client_id", client.id),
					slog.Duration("connection_duration", time.Since(client.connectedAt)))
			}

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for c := range h.clients {
				clients = append(clients, c)
			}
			h.mu.RUnlock()

			for _, c := range clients {
				select {
				case c.send <- message:
				default:
					if h.remove(c) {
						h.metrics.clientDropped(ctx)
						h.logger.WarnContext(ctx, "client send buffer full, disconnecting",
							slog.String("client_id", c.id))
					}
				}
			}
		}
	}
}

// remove deletes c and closes its send channel; false when c was already gone
func (h *Hub) remove(c *Client) bool {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return false
	}
	delete(h.clients, c)
	close(c.send)
	h.mu.Unlock()
	h.metrics.connectionDelta(context.Background(), -1)
	return true
}

func (h *Hub) closeAll(ctx context.Context) {
	h.mu.Lock()
	n := len(h.clients)
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()
	h.metrics.connectionDelta(ctx, -int64(n))
	h.logger.InfoContext(ctx, "hub stopped", slog.Int("disconnected", n))
}

// Stop ends Run. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register adds a client. It returns false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish queues an event for every connected client.
// It never blocks: when the queue is full the event is dropped and logged.
func (h *Hub) Publish(ctx context.Context, msgType events.MessageType, data interface{}) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}

	msg, err := encode(ctx, msgType, data)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- msg:
		h.metrics.messagePublished(ctx, string(msgType))
		return nil
	default:
		h.logger.WarnContext(ctx, "broadcast queue full, dropping message",
			slog.String("type", string(msgType)))
		return fmt.Errorf("broadcast queue full: %s dropped", msgType)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func encode(ctx context.Context, msgType events.MessageType, data interface{}) ([]byte, error) {
	msg := events.Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		TraceID:   infrastructure.GetTraceID(ctx),
		Data:      data,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", msgType, err)
	}
	return b, nil
}
