// Package v1 defines the task feed websocket protocol.
//
// It has no dependencies outside the standard library so clients can import it directly.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is embedded into every envelope.
const Version = "v1"

// Subprotocol must be offered by clients during the websocket handshake.
const Subprotocol = "tasktrack.taskfeed.v1"

// Type constants (wire-stable).
const (
	// TypeHello authenticates the connection (client -> server).
	TypeHello = "hello"
	// TypeHelloAck confirms the authenticated user (server -> client).
	TypeHelloAck = "hello_ack"

	// TypePing is an application-level keepalive (client -> server), answered by TypePong.
	TypePing = "ping"
	TypePong = "pong"

	// Task events (server -> owner's connections).
	TypeTaskCreated = "task_created"
	TypeTaskUpdated = "task_updated"
	TypeTaskDeleted = "task_deleted"

	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	switch e.Type {
	case TypeHello,
		TypeHelloAck,
		TypePing,
		TypePong,
		TypeTaskCreated,
		TypeTaskUpdated,
		TypeTaskDeleted,
		TypeError:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// ClientInbound reports whether clients may send this type.
func ClientInbound(typ string) bool {
	return typ == TypeHello || typ == TypePing
}

// ---- Payloads ----

// HelloPayload carries the bearer token when the upgrade request had no Authorization header.
type HelloPayload struct {
	Token string `json:"token,omitempty"`
}

// HelloAckPayload identifies the session and the authenticated user.
type HelloAckPayload struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// TaskPayload mirrors the REST task representation.
type TaskPayload struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	User        string    `json:"user"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TaskDeletedPayload names the removed task.
type TaskDeletedPayload struct {
	ID string `json:"_id"`
}

// ErrorPayload is a generic error response payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
