package telegraph

import (
	"fmt"
	"strings"

	"github.com/zulandar/agenthud/internal/models"
)

// Color constants for event severity.
const (
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// maxBodyLen caps the message body shown in chat.
const maxBodyLen = 1000

func severityColor(severity string) string {
	switch severity {
	case "warning":
		return ColorWarning
	case "error":
		return ColorError
	default:
		return ColorInfo
	}
}

// prioritySeverity maps request priority onto chat severity.
func prioritySeverity(p models.Priority) string {
	switch p {
	case models.PriorityCritical:
		return "error"
	case models.PriorityHigh:
		return "warning"
	default:
		return "info"
	}
}

// requestVerb names what the agent is asking for.
func requestVerb(t models.RequestType) string {
	switch t {
	case models.RequestApproval:
		return "needs approval"
	case models.RequestChoice:
		return "needs a choice"
	case models.RequestText:
		return "needs an answer"
	case models.RequestConfirmation:
		return "needs confirmation"
	default:
		return "needs input"
	}
}

// FormatRequest formats a pending request for chat.
func FormatRequest(r models.HumanInputRequest) FormattedEvent {
	agent := r.AgentName
	if agent == "" {
		agent = r.AgentID
	}
	severity := prioritySeverity(r.Priority)

	body := r.Message
	if len(body) > maxBodyLen {
		body = body[:maxBodyLen] + "..."
	}
	if len(r.Options) > 0 {
		body += "\nOptions: " + strings.Join(r.Options, " / ")
	}

	fields := []Field{
		{Name: "Agent", Value: agent, Short: true},
		{Name: "Priority", Value: string(r.Priority), Short: true},
		{Name: "Type", Value: string(r.RequestType), Short: true},
		{Name: "Request", Value: r.ID, Short: true},
	}
	if r.TimeoutSeconds > 0 {
		fields = append(fields, Field{Name: "Timeout", Value: fmt.Sprintf("%ds", r.TimeoutSeconds), Short: true})
	}

	return FormattedEvent{
		Title:    fmt.Sprintf("%s %s", agent, requestVerb(r.RequestType)),
		Body:     body,
		Severity: severity,
		Color:    severityColor(severity),
		Fields:   fields,
	}
}

// RequestMessage wraps FormatRequest in an OutboundMessage with a text fallback.
func RequestMessage(r models.HumanInputRequest) OutboundMessage {
	evt := FormatRequest(r)
	return OutboundMessage{
		Text:   fmt.Sprintf("[%s] %s: %s", r.Priority, evt.Title, r.Message),
		Events: []FormattedEvent{evt},
	}
}
