package models

import "time"

// EntityKind identifies which entity a change event is about.
type EntityKind string

const (
	KindDisaster EntityKind = "disaster"
	KindResource EntityKind = "resource"
	KindReport   EntityKind = "report"
)

// EventAction identifies the mutation that happened.
type EventAction string

const (
	ActionCreated EventAction = "created"
	ActionUpdated EventAction = "updated"
	ActionDeleted EventAction = "deleted"
)

// EntityEvent is a domain change event emitted by the orchestrator after a
// successful mutation. DisasterID scopes delivery to a room when non-empty;
// the payload is the entity's JSON representation.
type EntityEvent struct {
	Kind       EntityKind  `json:"kind"`
	Action     EventAction `json:"action"`
	DisasterID string      `json:"disaster_id,omitempty"`
	Payload    any         `json:"payload"`
}

// EventName returns the wire event name, e.g. "disaster_created".
func (e EntityEvent) EventName() string {
	return string(e.Kind) + "_" + string(e.Action)
}

// BroadcastMessage is the envelope sent to WebSocket clients.
type BroadcastMessage struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is a control message received from a WebSocket client.
type ClientMessage struct {
	Action     string `json:"action"`
	DisasterID string `json:"disaster_id"`
}

// HealthResponse is returned by the WebSocket health endpoint.
type HealthResponse struct {
	Status           string `json:"status"`
	Service          string `json:"service"`
	Timestamp        string `json:"timestamp"`
	ConnectedClients int    `json:"connected_clients"`
}
