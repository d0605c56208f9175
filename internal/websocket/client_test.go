package websocket

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"

	"schoolpulse/internal/config"
	"schoolpulse/internal/shared/testutil"
)

func TestNewClient_TimingDefaults(t *testing.T) {
	hub := NewHub(testutil.DiscardLogger(), nil)

	c := NewClient(hub, newFakeConn(), config.WebSocketConfig{}, nil)
	assert.Equal(t, 60*time.Second, c.pongWait)
	assert.Equal(t, 54*time.Second, c.pingPeriod)
	assert.Equal(t, 10*time.Second, c.writeWait)
	assert.Equal(t, "192.0.2.1:5000", c.remoteAddr)
	assert.NotEmpty(t, c.ID())

	c = NewClient(hub, newFakeConn(), config.WebSocketConfig{PongWait: 10 * time.Second, PingPeriod: 30 * time.Second}, nil)
	assert.Equal(t, 9*time.Second, c.pingPeriod, "ping period is clamped below pong wait")
}

func TestClient_WritePump(t *testing.T) {
	hub := NewHub(testutil.DiscardLogger(), nil)
	conn := newFakeConn()
	c := NewClient(hub, conn, testWSConfig(), nil)

	done := make(chan struct{})
	go func() {
		c.WritePump()
		close(done)
	}()

	c.send <- []byte(`{"type":"catalog:updated"}`)
	close(c.send)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("write pump did not stop")
	}

	assert.Equal(t, []int{websocket.TextMessage, websocket.CloseMessage}, conn.messageTypes())
	select {
	case <-conn.closed:
	default:
		t.Fatal("connection not closed")
	}
}

func TestClient_ReadPumpUnregistersOnError(t *testing.T) {
	hub := NewHub(testutil.DiscardLogger(), nil)
	hub.Stop()

	conn := newFakeConn()
	c := NewClient(hub, conn, testWSConfig(), nil)

	done := make(chan struct{})
	go func() {
		c.ReadPump()
		close(done)
	}()

	_ = conn.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("read pump did not stop")
	}
}
