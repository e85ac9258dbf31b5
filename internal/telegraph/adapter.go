// Package telegraph pushes pending human input requests out to places a
// person will see them: a local command, Slack, or Discord.
package telegraph

import "context"

// Sender is the interface that platform-specific implementations must satisfy.
type Sender interface {
	// Name identifies the sender in logs, e.g. "slack".
	Name() string

	// Send delivers an outbound message. Implementations retry rate limits
	// themselves and honour ctx cancellation.
	Send(ctx context.Context, msg OutboundMessage) error
}

// OutboundMessage represents a message to be sent to the chat platform.
type OutboundMessage struct {
	ChannelID string           // target channel; empty uses the sender default
	Text      string           // plain fallback text
	Events    []FormattedEvent // structured attachments
}

// FormattedEvent is a request formatted for display in chat.
type FormattedEvent struct {
	Title    string
	Body     string
	Severity string  // "info", "warning", "error"
	Color    string  // sidebar color hint, e.g. "#ff9800"
	Fields   []Field // key-value metadata pairs
}

// Field is a key-value pair displayed in an event attachment.
type Field struct {
	Name  string
	Value string
	Short bool // hint: render side-by-side with another field
}
