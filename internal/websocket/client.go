package websocket

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"schoolpulse/internal/config"
)

const (
	// Dashboards only send heartbeats
	maxMessageSize = 512

	sendBuffer = 16
)

// Client is a middleman between one WebSocket connection and the hub
type Client struct {
	hub  *Hub
	conn Connection
	send chan []byte

	id          string
	remoteAddr  string
	connectedAt time.Time

	pongWait   time.Duration
	pingPeriod time.Duration
	writeWait  time.Duration

	logger *slog.Logger
}

// NewClient creates a client for conn using the timings in cfg
func NewClient(hub *Hub, conn Connection, cfg config.WebSocketConfig, logger *slog.Logger) *Client {
	id := uuid.New().String()
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		id:          id,
		remoteAddr:  conn.RemoteAddr(),
		connectedAt: time.Now(),
		pongWait:    cfg.PongWait,
		pingPeriod:  cfg.PingPeriod,
		writeWait:   cfg.WriteWait,
		logger: logger.With(
			slog.String("component", "websocket.client"),
			slog.String("client_id", id),
		),
	}

	if c.pongWait <= 0 {
		c.pongWait = 60 * time.Second
	}
	// Pings must go out before the peer's read deadline passes
	if c.pingPeriod <= 0 || c.pingPeriod >= c.pongWait {
		c.pingPeriod = c.pongWait * 9 / 10
	}
	if c.writeWait <= 0 {
		c.writeWait = 10 * time.Second
	}
	return c
}

// ID returns the client id
func (c *Client) ID() string {
	return c.id
}

// ReadPump drains inbound frames until the connection fails, then unregisters the client
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("unexpected websocket close", slog.String("error", err.Error()))
			}
			return
		}
		// Any frame proves liveness
		_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	}
}

// WritePump writes queued messages and keepalive pings until the hub closes send
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("write failed", slog.String("error", err.Error()))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("ping failed", slog.String("error", err.Error()))
				return
			}
		}
	}
}
