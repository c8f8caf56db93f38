package server

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plturrell/scb-sapphire-finsight-sub010/internal/events"
)

type sseFrame struct {
	event string
	data  string
}

// readFrame reads the next "event:/data:" frame from an SSE stream.
func readFrame(t *testing.T, r *bufio.Reader) sseFrame {
	t.Helper()
	var frame sseFrame
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if frame.event != "" {
				return frame
			}
		case strings.HasPrefix(line, "event: "):
			frame.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			frame.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func openStream(t *testing.T, ctx context.Context, url string) *bufio.Reader {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	assert.Equal(t, "connected", readFrame(t, r).event)
	return r
}

func TestEventsStream_ForwardsSimulationEvents(t *testing.T) {
	s := newTestServer(testConfig())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream := openStream(t, ctx, srv.URL+"/api/events/stream?types=simulation_completed")

	resp, err := http.Post(srv.URL+"/api/v1/simulations", "application/json", strings.NewReader(simulationBody))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// simulation_started is filtered out
	completed := readFrame(t, stream)
	assert.Equal(t, string(events.SimulationCompleted), completed.event)
	assert.Contains(t, completed.data, `"run_id"`)
	assert.Contains(t, completed.data, `"iterations":100`)
}

func TestEventsStream_FiltersByRun(t *testing.T) {
	broadcaster := events.NewBroadcaster(zerolog.Nop())
	srv := httptest.NewServer(NewEventsStreamHandler(broadcaster, zerolog.Nop()))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream := openStream(t, ctx, srv.URL+"?run_id=wanted")

	broadcaster.Publish(events.New("other", &events.SimulationFailedData{Error: "ignored"}))
	broadcaster.Publish(events.New("wanted", &events.SimulationFailedData{Error: "boom"}))

	frame := readFrame(t, stream)
	assert.Equal(t, string(events.SimulationFailed), frame.event)
	assert.Contains(t, frame.data, `"run_id":"wanted"`)
	assert.Contains(t, frame.data, `"error":"boom"`)
}

func TestEventsStream_Heartbeat(t *testing.T) {
	broadcaster := events.NewBroadcaster(zerolog.Nop())
	handler := NewEventsStreamHandler(broadcaster, zerolog.Nop())
	handler.heartbeat = 10 * time.Millisecond
	srv := httptest.NewServer(handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream := openStream(t, ctx, srv.URL)
	assert.Equal(t, "heartbeat", readFrame(t, stream).event)
}

func TestEventsStream_RejectsNonGet(t *testing.T) {
	handler := NewEventsStreamHandler(events.NewBroadcaster(zerolog.Nop()), zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/events/stream", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestParseTypes(t *testing.T) {
	assert.Nil(t, parseTypes(""))
	assert.Nil(t, parseTypes("  "))
	assert.Equal(t, map[events.EventType]bool{
		events.SimulationStarted: true,
		events.SimulationFailed:  true,
	}, parseTypes("simulation_started, simulation_failed,"))
}
