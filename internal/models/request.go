package models

import (
	"encoding/json"
	"strings"
	"time"
)

// RequestType labels what kind of answer a human input request expects.
type RequestType string

const (
	RequestInput        RequestType = "input"
	RequestApproval     RequestType = "approval"
	RequestChoice       RequestType = "choice"
	RequestConfirmation RequestType = "confirmation"
	RequestText         RequestType = "text"
	RequestTypeOther    RequestType = "other"
)

// ParseRequestType maps a wire label onto a known request type. An empty
// label means RequestInput.
func ParseRequestType(s string) RequestType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "input":
		return RequestInput
	case "approval":
		return RequestApproval
	case "choice":
		return RequestChoice
	case "confirmation":
		return RequestConfirmation
	case "text":
		return RequestText
	default:
		return RequestTypeOther
	}
}

func (t *RequestType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = ParseRequestType(raw)
	return nil
}

// Priority is the severity label attached to a request.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
	PriorityOther    Priority = "Other"
)

// ParsePriority maps a wire label onto a known priority. Unknown labels
// become PriorityOther; an empty label is returned as "" so callers can
// derive one.
func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ""
	case "low":
		return PriorityLow
	case "medium", "normal":
		return PriorityMedium
	case "high":
		return PriorityHigh
	case "critical", "urgent":
		return PriorityCritical
	default:
		return PriorityOther
	}
}

func (p *Priority) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = ParsePriority(raw)
	return nil
}

// Rank orders priorities for threshold comparisons. Other ranks with Medium.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	default:
		return 2
	}
}

// DerivePriority picks a priority for a request that arrived without one.
// Approvals and confirmations are always high; otherwise keywords in the
// message decide.
func DerivePriority(t RequestType, message string) Priority {
	switch t {
	case RequestApproval, RequestConfirmation:
		return PriorityHigh
	}
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "critical"), strings.Contains(lower, "urgent"):
		return PriorityCritical
	case strings.Contains(lower, "optional"), strings.Contains(lower, "suggestion"):
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// RequestStatus is the lifecycle state of a human input request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "Pending"
	RequestCompleted RequestStatus = "Completed"
)

// HumanInputRequest is a question an agent put to the human observer.
// Response is set if and only if Status is RequestCompleted.
type HumanInputRequest struct {
	ID             string          `json:"id"`
	AgentID        string          `json:"agent_id"`
	AgentName      string          `json:"agent_name"`
	RequestType    RequestType     `json:"request_type"`
	Message        string          `json:"message"`
	Priority       Priority        `json:"priority"`
	Status         RequestStatus   `json:"status"`
	Options        []string        `json:"options"`
	Context        json.RawMessage `json:"context,omitempty"`
	TimeoutSeconds int             `json:"timeout_seconds,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	Response       *string         `json:"response,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// Pending reports whether the request still awaits a response.
func (r HumanInputRequest) Pending() bool {
	return r.Status == RequestPending
}

// Complete stores the response and moves the request to Completed.
func (r *HumanInputRequest) Complete(response string, at time.Time) {
	r.Status = RequestCompleted
	r.Response = &response
	r.CompletedAt = &at
}

// Clone returns a copy that shares no slices or pointers with r.
func (r HumanInputRequest) Clone() HumanInputRequest {
	if r.Options != nil {
		r.Options = append([]string{}, r.Options...)
	}
	if r.Context != nil {
		r.Context = append(json.RawMessage(nil), r.Context...)
	}
	if r.Response != nil {
		resp := *r.Response
		r.Response = &resp
	}
	if r.CompletedAt != nil {
		at := *r.CompletedAt
		r.CompletedAt = &at
	}
	return r
}
