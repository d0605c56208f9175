package websocket

import (
	"github.com/gorilla/websocket"
)

// connectionWrapper adapts *websocket.Conn to Connection
type connectionWrapper struct {
	*websocket.Conn
}

// NewConnectionWrapper wraps a gorilla connection
func NewConnectionWrapper(conn *websocket.Conn) Connection {
	return connectionWrapper{Conn: conn}
}

// RemoteAddr returns the peer address as a string
func (c connectionWrapper) RemoteAddr() string {
	if addr := c.Conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
