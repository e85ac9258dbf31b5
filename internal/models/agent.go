package models

import (
	"encoding/json"
	"strings"
	"time"
)

// AgentStatus is the presence state of a registered agent.
type AgentStatus string

const (
	AgentConnected    AgentStatus = "Connected"
	AgentActive       AgentStatus = "Active"
	AgentDisconnected AgentStatus = "Disconnected"
	// AgentStatusOther marks a status the hub does not recognize. The raw
	// text is kept in Agent.StatusText.
	AgentStatusOther AgentStatus = "Other"
)

// ParseAgentStatus maps a wire value onto a known status, case-insensitively.
// Anything else becomes AgentStatusOther.
func ParseAgentStatus(s string) AgentStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "connected":
		return AgentConnected
	case "active":
		return AgentActive
	case "disconnected":
		return AgentDisconnected
	default:
		return AgentStatusOther
	}
}

// UnmarshalJSON accepts any string and normalizes it through ParseAgentStatus.
func (s *AgentStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseAgentStatus(raw)
	return nil
}

// Agent is a producing client registered with the hub. The ID is assigned by
// the hub and never chosen by the agent.
type Agent struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Status       AgentStatus    `json:"status"`
	StatusText   string         `json:"status_text,omitempty"`
	ConnectedAt  time.Time      `json:"connected_at"`
	LastActivity time.Time      `json:"last_activity"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// SetStatus records a free-form status, keeping the raw text when it is not
// one of the known states.
func (a *Agent) SetStatus(raw string) {
	a.Status = ParseAgentStatus(raw)
	if a.Status == AgentStatusOther {
		a.StatusText = raw
	} else {
		a.StatusText = ""
	}
}

// Clone returns a copy whose metadata map is not shared with a.
func (a Agent) Clone() Agent {
	if a.Metadata != nil {
		md := make(map[string]any, len(a.Metadata))
		for k, v := range a.Metadata {
			md[k] = v
		}
		a.Metadata = md
	}
	return a
}
