// Package chat relays live chat lines between connected WebSocket clients.
package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/townboard/backend/internal/models"
)

// EventChatMessage is the only event clients send and receive.
const EventChatMessage = "chatMessage"

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 64
)

// Envelope is a chat line crossing instances. Origin names the publishing
// instance; Sender is the client id that wrote the line there.
type Envelope struct {
	Origin  string             `json:"origin"`
	Sender  string             `json:"sender"`
	Message models.ChatMessage `json:"message"`
}

// Bus fans chat lines out to other instances.
type Bus interface {
	Publish(ctx context.Context, env Envelope) error
	// Subscribe calls handler for every envelope until cancel is called.
	Subscribe(handler func(Envelope)) (cancel func(), err error)
}

// Hub tracks the connected clients of one instance. There is a single room.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]*Client
	bus        Bus
	instanceID string
	cancel     func()
	logger     *zap.Logger
}

// NewHub creates a hub. With a nil bus, delivery is local to this process.
func NewHub(bus Bus, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		bus:        bus,
		instanceID: uuid.NewString(),
		logger:     logger,
	}
}

// Start subscribes to the bus.
func (h *Hub) Start() error {
	if h.bus == nil {
		return nil
	}
	cancel, err := h.bus.Subscribe(h.receive)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()
	return nil
}

// Stop ends the bus subscription and closes every client's send queue.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
}

// Register adds c to the room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("chat client joined", zap.String("client_id", c.ID), zap.Int("clients", n))
}

// Unregister removes c and closes its send queue. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; ok {
		delete(h.clients, c.ID)
		close(c.send)
	}
	h.mu.Unlock()
	h.logger.Debug("chat client left", zap.String("client_id", c.ID))
}

// Count returns the number of local clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast delivers msg to every local client except sender and publishes it for other instances.
func (h *Hub) Broadcast(ctx context.Context, sender string, msg models.ChatMessage) {
	h.deliver(sender, msg)
	if h.bus == nil {
		return
	}
	if err := h.bus.Publish(ctx, Envelope{Origin: h.instanceID, Sender: sender, Message: msg}); err != nil {
		h.logger.Warn("chat publish", zap.Error(err))
	}
}

func (h *Hub) receive(env Envelope) {
	if env.Origin == h.instanceID {
		return
	}
	h.deliver(env.Sender, env.Message)
}

func (h *Hub) deliver(sender string, msg models.ChatMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("chat marshal", zap.Error(err))
		return
	}
	frame := Frame{Event: EventChatMessage, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		if id == sender {
			continue
		}
		select {
		case c.send <- frame:
		default:
			h.logger.Debug("chat buffer full, dropping", zap.String("client_id", id))
		}
	}
}
