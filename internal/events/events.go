// Package events broadcasts simulation run lifecycle notifications to stream
// subscribers. Runs report when they start and when they finish.
package events

import (
	"time"
)

// EventType identifies a run lifecycle event.
type EventType string

const (
	SimulationStarted   EventType = "simulation_started"
	SimulationCompleted EventType = "simulation_completed"
	SimulationFailed    EventType = "simulation_failed"
)

// EventData is the interface that all event payloads implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// Event is one run event as sent to subscribers.
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data,omitempty"`
}

// New creates an event for runID carrying data.
func New(runID string, data EventData) Event {
	return Event{
		Type:      data.EventType(),
		RunID:     runID,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// SimulationStartedData contains data for SimulationStarted events
type SimulationStartedData struct {
	Assets     int `json:"assets"`
	Iterations int `json:"iterations"`
	Workers    int `json:"workers"`
}

// EventType returns the event type for SimulationStartedData
func (d *SimulationStartedData) EventType() EventType {
	return SimulationStarted
}

// SimulationCompletedData contains data for SimulationCompleted events
type SimulationCompletedData struct {
	Iterations     uint64  `json:"iterations"`
	ExpectedReturn float64 `json:"expected_return"`
	RiskAssessment float64 `json:"risk_assessment"`
	Truncated      bool    `json:"truncated"`
	ElapsedMs      int64   `json:"elapsed_ms"`
}

// EventType returns the event type for SimulationCompletedData
func (d *SimulationCompletedData) EventType() EventType {
	return SimulationCompleted
}

// SimulationFailedData contains data for SimulationFailed events
type SimulationFailedData struct {
	Error string `json:"error"`
}

// EventType returns the event type for SimulationFailedData
func (d *SimulationFailedData) EventType() EventType {
	return SimulationFailed
}
