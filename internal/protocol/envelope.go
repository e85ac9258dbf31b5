// Package protocol defines the JSON envelopes exchanged between the hub,
// agents and observers.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Message types. Inbound types are sent to the hub, outbound ones by it;
// a few (human-input-request, agent-update, the content events) travel both ways.
const (
	TypeRegisterObserver   = "register-gui"
	TypeRegisterAgent      = "register-agent"
	TypeRegistrationAck    = "registration-ack"
	TypeHumanInputRequest  = "human-input-request"
	TypeHumanInputResponse = "human-input-response"
	TypeAgentUpdate        = "agent-update"
	TypeAgentMessage       = "agent-message"
	TypeAgentConnected     = "agent-connected"
	TypeAgentDisconnected  = "agent-disconnected"
	TypeContentEmission    = "content-emission"
	TypeMarkdownContent    = "markdown-content"
	TypeCodeContent        = "code-content"
	TypeImageContent       = "image-content"
	TypeClearRequests      = "clear-requests"
	TypeRequestsCleared    = "requests-cleared"
)

// Role names used in registration acknowledgements.
const (
	RoleAgent    = "agent"
	RoleObserver = "observer"
)

var (
	// ErrMalformed is returned for frames that are not valid envelopes.
	ErrMalformed = errors.New("protocol: malformed envelope")
	// ErrUnknownType is returned for envelopes whose type the hub does not handle.
	ErrUnknownType = errors.New("protocol: unknown message type")
)

// Event is an outbound frame of the form {type, data, timestamp}. It is
// what the hub broadcasts to observers.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type eventFrame struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Encode renders the event as a frame stamped with now.
func (e Event) Encode(now time.Time) ([]byte, error) {
	b, err := json.Marshal(eventFrame{Type: e.Type, Data: e.Data, Timestamp: now.UTC()})
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", e.Type, err)
	}
	return b, nil
}

// RegistrationAck confirms a role registration to the registering connection.
type RegistrationAck struct {
	Type       string    `json:"type"`
	Success    bool      `json:"success"`
	Role       string    `json:"role"`
	AgentID    string    `json:"agentId,omitempty"`
	ServerTime time.Time `json:"serverTime"`
}

// NewRegistrationAck builds a successful acknowledgement for role.
func NewRegistrationAck(role, agentID string, now time.Time) RegistrationAck {
	return RegistrationAck{
		Type:       TypeRegistrationAck,
		Success:    true,
		Role:       role,
		AgentID:    agentID,
		ServerTime: now.UTC(),
	}
}

// HumanInputResponse is delivered point-to-point to the agent that asked.
type HumanInputResponse struct {
	Type              string    `json:"type"`
	RequestID         string    `json:"requestId"`
	ClientRequestID   string    `json:"clientRequestId,omitempty"`
	Response          string    `json:"response"`
	AdditionalContext string    `json:"additionalContext,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// Frame is the loosely typed view of any envelope, used by clients to peek
// at the type before decoding the rest.
type Frame struct {
	Type              string          `json:"type"`
	Data              json.RawMessage `json:"data,omitempty"`
	RequestID         string          `json:"requestId,omitempty"`
	ClientRequestID   string          `json:"clientRequestId,omitempty"`
	Response          *string         `json:"response,omitempty"`
	AdditionalContext string          `json:"additionalContext,omitempty"`
	Success           bool            `json:"success,omitempty"`
	Role              string          `json:"role,omitempty"`
	AgentID           string          `json:"agentId,omitempty"`
	Timestamp         string          `json:"timestamp,omitempty"`
}

// ParseFrame decodes the envelope header of an outbound frame.
func ParseFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return f, nil
}

// Marshal encodes any outbound value, wrapping errors with the package prefix.
func Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal: %w", err)
	}
	return b, nil
}
