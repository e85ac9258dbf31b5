package models

import (
	"encoding/json"
	"strings"
	"time"
)

// ContentType is the kind of rich content an agent emitted. The hub never
// looks inside the payload.
type ContentType string

const (
	ContentMarkdown ContentType = "markdown"
	ContentCode     ContentType = "code"
	ContentImage    ContentType = "image"
	ContentOther    ContentType = "other"
)

// ParseContentType maps a wire label onto a known content type.
func ParseContentType(s string) ContentType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "markdown", "md":
		return ContentMarkdown
	case "code":
		return ContentCode
	case "image", "img":
		return ContentImage
	default:
		return ContentOther
	}
}

func (t *ContentType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = ParseContentType(raw)
	return nil
}

// DefaultTitle is the title used when an emitter did not supply one.
func (t ContentType) DefaultTitle(language string) string {
	switch t {
	case ContentMarkdown:
		return "Markdown Content"
	case ContentCode:
		if language == "" {
			return "Code"
		}
		return strings.ToUpper(language[:1]) + language[1:] + " Code"
	case ContentImage:
		return "Image"
	default:
		return "Content"
	}
}

// ContentItem is one emission in the content history.
type ContentItem struct {
	ID          string          `json:"id"`
	Type        ContentType     `json:"type"`
	Content     string          `json:"content"`
	Language    string          `json:"language,omitempty"`
	Caption     string          `json:"caption,omitempty"`
	Description string          `json:"description,omitempty"`
	Title       string          `json:"title"`
	AgentID     string          `json:"agent_id,omitempty"`
	AgentName   string          `json:"agent_name,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}
