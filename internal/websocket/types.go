package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeDetection represents a PHI detection event
	EventTypeDetection EventType = "phi_detection"
	// EventTypeBatchSummary represents a completed batch scan
	EventTypeBatchSummary EventType = "batch_summary"
	// EventTypeSystemStatus represents a system status event
	EventTypeSystemStatus EventType = "system_status"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// DetectionEvent describes one scan that found PHI. It carries counts and
// entity types only; matched text never goes over the wire.
type DetectionEvent struct {
	RequestID     string   `json:"request_id"`
	Path          string   `json:"path"`
	Tier          string   `json:"tier"`
	TotalFindings int      `json:"total_findings"`
	EntityTypes   []string `json:"entity_types"`
	Truncated     bool     `json:"truncated"`
	ProcessingMS  float64  `json:"processing_ms"`
}

// BatchSummaryEvent describes a completed batch scan.
type BatchSummaryEvent struct {
	RequestID       string `json:"request_id"`
	TotalSnippets   int    `json:"total_snippets"`
	SnippetsWithPhi int    `json:"snippets_with_phi"`
	TotalFindings   int    `json:"total_findings"`
	OverallRisk     string `json:"overall_risk"`
	DurationMS      int64  `json:"duration_ms"`
}

// SystemStatusEvent represents system status information
type SystemStatusEvent struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime"`
	TotalScans       int64  `json:"total_scans"`
	TotalDetections  int64  `json:"total_detections"`
	ActivePatterns   int    `json:"active_patterns"`
	LibraryVersion   string `json:"library_version"`
	ConnectedClients int    `json:"connected_clients"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action   string `json:"action"` // "connected", "disconnected"
	ClientID string `json:"client_id"`
	ClientIP string `json:"client_ip"`
	Message  string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SubscriptionRequest represents a client subscription request
type SubscriptionRequest struct {
	Events []EventType `json:"events"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID           string
	Conn         *websocket.Conn
	Send         chan Event
	Subscription *SubscriptionRequest
	ConnectedAt  time.Time
	LastPing     time.Time
	IP           string
}
