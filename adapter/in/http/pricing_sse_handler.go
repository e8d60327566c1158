package http

import (
	"bufio"
	"time"

	"pricing_server/adapter/out/realtime"
	"pricing_server/core/domain"
	"pricing_server/core/port/in"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// =============================================================================
// SSE Handler - task progress stream
// =============================================================================

// SSEHandler handles Server-Sent Events connections. Events are best-effort:
// a client that falls behind loses events; a fresh connection starts with a
// full task snapshot, not a replay.
type SSEHandler struct {
	hub   *realtime.SSEHub
	tasks in.TaskService
	log   zerolog.Logger
}

// NewSSEHandler creates a new SSE handler.
func NewSSEHandler(hub *realtime.SSEHub, tasks in.TaskService, log zerolog.Logger) *SSEHandler {
	return &SSEHandler{
		hub:   hub,
		tasks: tasks,
		log:   log.With().Str("handler", "sse").Logger(),
	}
}

// Register registers SSE routes.
func (h *SSEHandler) Register(router fiber.Router) {
	router.Get("/events", h.Stream)
}

// Stream handles SSE connections.
func (h *SSEHandler) Stream(c *fiber.Ctx) error {
	client := h.hub.CreateClient()

	// Subscribe first, snapshot second: an update racing the snapshot shows
	// up twice, but never falls in a gap.
	snapshot, err := h.tasks.ListTasks(c.Context(), nil)
	if err != nil {
		client.Close()
		return AppErrorResponse(c, err)
	}

	h.log.Info().Msg("SSE client connected")

	// Set SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")
	c.Set("X-Accel-Buffering", "no") // disable nginx buffering

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(client.HeartbeatInterval())
		defer ticker.Stop()
		defer func() {
			client.Close()
			h.log.Info().Msg("SSE client disconnected")
		}()

		// Send initial connection event
		w.WriteString("event: connected\n")
		w.WriteString("data: {\"status\":\"connected\"}\n\n")
		w.Flush()

		// Full-state snapshot, one event per task
		now := time.Now().UTC()
		for _, t := range snapshot {
			ev := &domain.TaskEvent{
				Type:      domain.EventTaskSnapshot,
				Task:      t,
				Timestamp: now,
			}
			data, err := realtime.SerializeEvent(ev)
			if err != nil {
				h.log.Error().Err(err).Msg("failed to serialize snapshot event")
				continue
			}
			w.WriteString("event: ")
			w.WriteString(string(ev.Type))
			w.WriteString("\n")
			w.WriteString("data: ")
			w.Write(data)
			w.WriteString("\n\n")
		}
		if err := w.Flush(); err != nil {
			h.log.Debug().Err(err).Msg("client disconnected during snapshot")
			return
		}

		for {
			select {
			case event, ok := <-client.Events:
				if !ok {
					return
				}

				data, err := realtime.SerializeEvent(event)
				if err != nil {
					h.log.Error().Err(err).Msg("failed to serialize event")
					continue
				}

				// Write SSE format
				w.WriteString("event: ")
				w.WriteString(string(event.Type))
				w.WriteString("\n")
				w.WriteString("data: ")
				w.Write(data)
				w.WriteString("\n\n")

				if err := w.Flush(); err != nil {
					h.log.Debug().Err(err).Msg("client disconnected during write")
					return
				}

			case <-ticker.C:
				// Heartbeat
				w.WriteString(": heartbeat\n\n")
				if err := w.Flush(); err != nil {
					h.log.Debug().Err(err).Msg("client disconnected during heartbeat")
					return
				}

			case <-client.Done:
				return
			}
		}
	})

	return nil
}
