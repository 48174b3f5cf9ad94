package websocket

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestShouldBroadcastEvent(t *testing.T) {
	hub := NewHub(&HubConfig{
		BroadcastDetections: true,
		BroadcastBatches:    false,
		BroadcastSystem:     true,
	}, zap.NewNop())

	tests := []struct {
		eventType EventType
		want      bool
	}{
		{EventTypeDetection, true},
		{EventTypeBatchSummary, false},
		{EventTypeSystemStatus, true},
		{EventTypeConnection, false},
		{EventType("bogus"), false},
	}
	for _, tt := range tests {
		if got := hub.shouldBroadcastEvent(tt.eventType); got != tt.want {
			t.Errorf("shouldBroadcastEvent(%q) = %v, want %v", tt.eventType, got, tt.want)
		}
	}

	t.Run("NilConfig", func(t *testing.T) {
		hub := NewHub(nil, zap.NewNop())
		if hub.shouldBroadcastEvent(EventTypeDetection) {
			t.Error("Nil config should broadcast nothing")
		}
	})
}

func TestBroadcastEventNeverBlocks(t *testing.T) {
	// No Run loop draining the channel: the buffered channel fills up and
	// further events must be dropped, not block the scan path.
	hub := NewHub(&HubConfig{BroadcastDetections: true}, zap.NewNop())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.BroadcastEvent(Event{Type: EventTypeDetection, Timestamp: time.Now()})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("BroadcastEvent blocked the caller")
	}
}

func TestClientSubscriptionFiltering(t *testing.T) {
	all := &Client{}
	if !all.wants(EventTypeDetection) {
		t.Error("Client without subscription should receive every event")
	}

	filtered := &Client{Subscription: &SubscriptionRequest{
		Events: []EventType{EventTypeBatchSummary},
	}}
	if filtered.wants(EventTypeDetection) {
		t.Error("Client receives event outside its subscription")
	}
	if !filtered.wants(EventTypeBatchSummary) {
		t.Error("Client misses subscribed event")
	}
}

func TestHubRegisterAndBroadcast(t *testing.T) {
	hub := NewHub(&HubConfig{BroadcastDetections: true}, zap.NewNop())
	go hub.Run()

	client := &Client{
		ID:   "test-client",
		Send: make(chan Event, 16),
	}
	hub.register <- client

	hub.BroadcastEvent(Event{
		Type:      EventTypeDetection,
		Timestamp: time.Now(),
		Data:      DetectionEvent{TotalFindings: 2},
	})

	select {
	case event := <-client.Send:
		if event.Type != EventTypeDetection {
			t.Errorf("Event type = %q", event.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("Registered client did not receive broadcast")
	}
}
