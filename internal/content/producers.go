package content

import (
	"time"

	"github.com/zulandar/agenthud/internal/models"
)

// Source identifies the agent an item is attributed to.
type Source struct {
	AgentID   string
	AgentName string
}

// Markdown builds a markdown item with default title and timestamp.
func Markdown(src Source, body, title string) models.ContentItem {
	return build(src, models.ContentMarkdown, body, title, "")
}

// Code builds a code item. The title defaults to "<Language> Code".
func Code(src Source, code, language, title, description string) models.ContentItem {
	it := build(src, models.ContentCode, code, title, language)
	it.Description = description
	return it
}

// Image builds an image item; url may be a remote URL or a data: URL.
func Image(src Source, url, title, caption string) models.ContentItem {
	it := build(src, models.ContentImage, url, title, "")
	it.Caption = caption
	return it
}

func build(src Source, typ models.ContentType, body, title, language string) models.ContentItem {
	if title == "" {
		title = typ.DefaultTitle(language)
	}
	return models.ContentItem{
		Type:      typ,
		Content:   body,
		Language:  language,
		Title:     title,
		AgentID:   src.AgentID,
		AgentName: src.AgentName,
		Timestamp: time.Now().UTC(),
	}
}
