// Package realtime provides real-time communication adapters.
package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"pricing_server/core/domain"
	"pricing_server/core/port/out"

	"github.com/rs/zerolog"
)

// =============================================================================
// SSE Adapter - Notifier implementation
// =============================================================================

// SSEAdapter implements out.Notifier using Server-Sent Events. Task progress
// is broadcast to every connected observer; delivery is best-effort, a slow
// observer loses events and a reconnecting observer gets a fresh task
// snapshot on subscribe instead of a replay.
type SSEAdapter struct {
	clients map[chan *domain.TaskEvent]struct{}
	mu      sync.RWMutex
	log     zerolog.Logger

	// Metrics. Counted atomically: Publish runs concurrently under the
	// read lock.
	messagesSent    atomic.Int64
	messagesDropped atomic.Int64
}

// NewSSEAdapter creates a new SSE adapter.
func NewSSEAdapter(log zerolog.Logger) *SSEAdapter {
	return &SSEAdapter{
		clients: make(map[chan *domain.TaskEvent]struct{}),
		log:     log.With().Str("component", "sse_adapter").Logger(),
	}
}

// Subscribe creates a new subscription channel.
func (a *SSEAdapter) Subscribe() <-chan *domain.TaskEvent {
	a.mu.Lock()
	defer a.mu.Unlock()

	ch := make(chan *domain.TaskEvent, 256) // Buffer for backpressure
	a.clients[ch] = struct{}{}

	a.log.Debug().
		Int("total_connections", len(a.clients)).
		Msg("client subscribed")

	return ch
}

// Unsubscribe removes a subscription channel.
func (a *SSEAdapter) Unsubscribe(ch <-chan *domain.TaskEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for c := range a.clients {
		if c == ch {
			delete(a.clients, c)
			close(c)
			break
		}
	}

	a.log.Debug().
		Int("total_connections", len(a.clients)).
		Msg("client unsubscribed")
}

// Publish broadcasts a task event to all connected observers.
func (a *SSEAdapter) Publish(ctx context.Context, event *domain.TaskEvent) error {
	a.mu.RLock()
	chList := make([]chan *domain.TaskEvent, 0, len(a.clients))
	for ch := range a.clients {
		chList = append(chList, ch)
	}
	a.mu.RUnlock()

	for _, ch := range chList {
		select {
		case ch <- event:
			a.messagesSent.Add(1)
		default:
			// Channel full, drop message (backpressure)
			a.messagesDropped.Add(1)
			a.log.Warn().
				Str("event_type", string(event.Type)).
				Int64("seq", event.Seq).
				Msg("dropped event due to full buffer")
		}
	}

	return nil
}

// ConnectedCount returns the number of active connections.
func (a *SSEAdapter) ConnectedCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.clients)
}

// GetMetrics returns adapter metrics.
func (a *SSEAdapter) GetMetrics() SSEMetrics {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return SSEMetrics{
		Connections:     len(a.clients),
		MessagesSent:    a.messagesSent.Load(),
		MessagesDropped: a.messagesDropped.Load(),
	}
}

// SSEMetrics holds SSE adapter metrics.
type SSEMetrics struct {
	Connections     int   `json:"connections"`
	MessagesSent    int64 `json:"messages_sent"`
	MessagesDropped int64 `json:"messages_dropped"`
}

// =============================================================================
// SSE Hub - HTTP handler plumbing
// =============================================================================

// SSEHub manages SSE connections for HTTP handlers.
type SSEHub struct {
	adapter *SSEAdapter
	log     zerolog.Logger

	// Heartbeat
	heartbeatInterval time.Duration
}

// NewSSEHub creates a new SSE hub.
func NewSSEHub(adapter *SSEAdapter, log zerolog.Logger) *SSEHub {
	return &SSEHub{
		adapter:           adapter,
		log:               log.With().Str("component", "sse_hub").Logger(),
		heartbeatInterval: 30 * time.Second,
	}
}

// CreateClient creates a new SSE client.
func (h *SSEHub) CreateClient() *SSEClient {
	return &SSEClient{
		Events: h.adapter.Subscribe(),
		Done:   make(chan struct{}),
		hub:    h,
	}
}

// RemoveClient removes an SSE client.
func (h *SSEHub) RemoveClient(client *SSEClient) {
	h.adapter.Unsubscribe(client.Events)
}

// SSEClient represents an SSE client connection.
type SSEClient struct {
	Events <-chan *domain.TaskEvent
	Done   chan struct{}
	hub    *SSEHub
}

// Close closes the client connection.
func (c *SSEClient) Close() {
	close(c.Done)
	c.hub.RemoveClient(c)
}

// HeartbeatInterval returns the heartbeat interval.
func (c *SSEClient) HeartbeatInterval() time.Duration {
	return c.hub.heartbeatInterval
}

// =============================================================================
// Event Serialization
// =============================================================================

// SerializeEvent converts a TaskEvent to SSE payload bytes.
func SerializeEvent(event *domain.TaskEvent) ([]byte, error) {
	payload := map[string]interface{}{
		"type":      event.Type,
		"task":      event.Task,
		"domain":    event.Domain,
		"seq":       event.Seq,
		"timestamp": event.Timestamp.Format(time.RFC3339),
	}
	return json.Marshal(payload)
}

// =============================================================================
// Interface Compliance
// =============================================================================

var _ out.Notifier = (*SSEAdapter)(nil)
