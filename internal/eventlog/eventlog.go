package eventlog

import (
	"errors"
	"time"
)

// Retention is the maximum number of entries the log keeps. Appending
// beyond this evicts the oldest entries by insertion order.
const Retention = 100

// EventType classifies a log entry.
type EventType string

// Event types recorded by the system.
const (
	TypeDeviceState       EventType = "DEVICE_STATE"
	TypeScenarioTriggered EventType = "SCENARIO_TRIGGERED"
	TypeSystem            EventType = "SYSTEM"
	TypeError             EventType = "ERROR"
)

// ErrInvalidType is returned when an entry carries an unknown event type.
var ErrInvalidType = errors.New("eventlog: invalid event type")

// Entry is a single event log record.
//
// DeviceID is set only for entries tied to a specific device. Data holds
// optional structured context such as the applied state delta.
type Entry struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Message   string         `json:"message"`
	DeviceID  string         `json:"deviceId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

var validTypes = map[EventType]struct{}{
	TypeDeviceState:       {},
	TypeScenarioTriggered: {},
	TypeSystem:            {},
	TypeError:             {},
}

// ValidType reports whether t is a recognised event type.
func ValidType(t EventType) bool {
	_, ok := validTypes[t]
	return ok
}
