// Package protocol defines the messages exchanged over the suggestion push
// WebSocket. All messages are JSON objects with a "type" discriminator.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Client -> Server message types.
const (
	TypePing = "ping"
)

// Server -> Client message types.
const (
	TypeSubscribed     = "subscribed"
	TypeMatchSuggested = "match_suggested"
	TypeError          = "error"
	TypePong           = "pong"
)

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON captures the raw bytes and extracts only the "type" field.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// SubscribedMsg confirms that the connection receives suggestions for a
// student.
type SubscribedMsg struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connection_id"`
	StudentID    int64  `json:"student_id"`
}

// MatchSuggestedMsg announces a new mentor suggestion for the student.
type MatchSuggestedMsg struct {
	Type       string  `json:"type"`
	MatchID    string  `json:"match_id"`
	MentorID   int64   `json:"mentor_id"`
	MatchScore float64 `json:"match_score"`
}

// ErrorMsg is sent by the server to communicate an error condition.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ParseClientMessage parses raw WebSocket bytes into a typed client message.
// Unknown and server-only types are errors.
func ParseClientMessage(data []byte) (string, any, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	switch env.Type {
	case TypePing:
		var m PingMsg
		if err := json.Unmarshal(env.Raw, &m); err != nil {
			return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
		}
		return env.Type, m, nil
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}
}

// NewServerMessage encodes payload with its "type" field forced to msgType.
func NewServerMessage(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
