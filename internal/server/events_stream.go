package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/plturrell/scb-sapphire-finsight-sub010/internal/events"
)

// DefaultHeartbeatInterval is how often an idle stream sends a heartbeat.
const DefaultHeartbeatInterval = 30 * time.Second

// EventsStreamHandler streams simulation run events as Server-Sent Events.
type EventsStreamHandler struct {
	broadcaster *events.Broadcaster
	heartbeat   time.Duration
	log         zerolog.Logger
}

// NewEventsStreamHandler creates a new run events stream handler.
func NewEventsStreamHandler(broadcaster *events.Broadcaster, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		broadcaster: broadcaster,
		heartbeat:   DefaultHeartbeatInterval,
		log:         log.With().Str("component", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/events/stream requests (SSE).
//
// Query parameters: run_id limits the stream to one run, types is a comma
// separated list of event types to forward.
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// The server write timeout would otherwise end long streams
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.log.Warn().Err(err).Msg("Could not clear write deadline, stream will end at the server write timeout")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	runID := r.URL.Query().Get("run_id")
	allowedTypes := parseTypes(r.URL.Query().Get("types"))

	h.log.Info().
		Str("run_id", runID).
		Str("types_filter", r.URL.Query().Get("types")).
		Msg("Client connected to event stream")

	eventChan := h.broadcaster.Subscribe(runID)
	defer h.broadcaster.Unsubscribe(eventChan)

	h.send(w, "connected", map[string]interface{}{
		"message": "Connected to simulation event stream",
	})
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	done := r.Context().Done()
	for {
		select {
		case <-done:
			h.log.Info().Str("run_id", runID).Msg("Client disconnected from event stream")
			return

		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if allowedTypes != nil && !allowedTypes[event.Type] {
				continue
			}
			h.send(w, string(event.Type), event)
			flusher.Flush()

		case <-heartbeat.C:
			h.send(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now().Format(time.RFC3339),
			})
			flusher.Flush()
		}
	}
}

// send writes one SSE frame.
func (h *EventsStreamHandler) send(w http.ResponseWriter, name string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", name).Msg("Failed to marshal event")
		data = []byte(`{"error":"failed to encode event"}`)
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}

// parseTypes returns nil when filter is empty.
func parseTypes(filter string) map[events.EventType]bool {
	if strings.TrimSpace(filter) == "" {
		return nil
	}
	allowed := make(map[events.EventType]bool)
	for _, t := range strings.Split(filter, ",") {
		if t = strings.TrimSpace(t); t != "" {
			allowed[events.EventType(t)] = true
		}
	}
	return allowed
}
