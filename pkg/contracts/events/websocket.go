// Package events defines the messages pushed to dashboards over the WebSocket stream.
package events

import (
	"time"

	"schoolpulse/pkg/contracts/domain"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// MessageTypeCatalogUpdated announces a newly published catalog
	MessageTypeCatalogUpdated MessageType = "catalog:updated"

	// MessageTypeIngestionFailed announces an ingestion that left the catalog unchanged
	MessageTypeIngestionFailed MessageType = "catalog:ingestion_failed"

	MessageTypeConnect MessageType = "connect"
	MessageTypeError   MessageType = "error"
)

// Message is the envelope of every WebSocket frame
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// CatalogUpdated is the payload of catalog:updated. Clients refetch what they display.
type CatalogUpdated struct {
	Sequence uint64                 `json:"sequence"`
	Report   domain.IngestionReport `json:"report"`
}

// IngestionFailed is the payload of catalog:ingestion_failed
type IngestionFailed struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// Connected is sent to a client right after it registers
type Connected struct {
	ClientID string `json:"client_id"`
	Version  string `json:"version"`
}
