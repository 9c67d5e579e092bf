package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/townboard/backend/internal/models"
)

const maxFrameSize = 8 << 10

// Frame is the WebSocket message envelope.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client is one WebSocket connection.
type Client struct {
	ID     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan Frame
	now    func() time.Time
	logger *zap.Logger
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:     uuid.NewString(),
		hub:    hub,
		conn:   conn,
		send:   make(chan Frame, sendBuffer),
		now:    time.Now,
		logger: hub.logger,
	}
}

// ServeWs upgrades the request and runs the client until it disconnects.
// allowOrigin decides the upgrade's origin check; nil accepts every origin.
func ServeWs(hub *Hub, allowOrigin func(origin string) bool) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return allowOrigin == nil || allowOrigin(r.Header.Get("Origin"))
		},
	}
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		client := newClient(hub, conn)
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("chat read", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if f.Event != EventChatMessage {
			continue
		}
		msg, ok := c.normalize(f.Data)
		if !ok {
			continue
		}
		c.hub.Broadcast(context.Background(), c.ID, msg)
	}
}

// normalize trims the text and stamps missing timestamps. Empty lines are rejected.
func (c *Client) normalize(data json.RawMessage) (models.ChatMessage, bool) {
	var msg models.ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, false
	}
	msg.Text = strings.TrimSpace(msg.Text)
	if msg.Text == "" {
		return msg, false
	}
	msg.Author = strings.TrimSpace(msg.Author)
	if msg.Timestamp.IsZero() {
		msg.Timestamp = c.now().UTC()
	}
	return msg, true
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case f, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(f); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
