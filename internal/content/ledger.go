// Package content keeps the append-only history of content emissions.
package content

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/agenthud/internal/models"
)

// Ledger is an append-only, id-deduplicated list of content items. It is
// not safe for concurrent use; the hub only touches it from its event loop.
type Ledger struct {
	items []models.ContentItem
	index map[string]int
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{index: make(map[string]int)}
}

// Append adds item unless an item with the same id is already present.
// A missing id is generated and a missing title or timestamp is filled in.
// It returns the stored item and whether it was newly added.
func (l *Ledger) Append(item models.ContentItem) (models.ContentItem, bool) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if i, ok := l.index[item.ID]; ok {
		return l.items[i], false
	}
	if item.Title == "" {
		item.Title = item.Type.DefaultTitle(item.Language)
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now().UTC()
	}
	l.index[item.ID] = len(l.items)
	l.items = append(l.items, item)
	return item, true
}

// Latest returns the most recently appended item.
func (l *Ledger) Latest() (models.ContentItem, bool) {
	if len(l.items) == 0 {
		return models.ContentItem{}, false
	}
	return l.items[len(l.items)-1], true
}

// Get looks an item up by id.
func (l *Ledger) Get(id string) (models.ContentItem, bool) {
	i, ok := l.index[id]
	if !ok {
		return models.ContentItem{}, false
	}
	return l.items[i], true
}

// Len returns the number of items.
func (l *Ledger) Len() int {
	return len(l.items)
}

// Items returns a copy of the history in insertion order.
func (l *Ledger) Items() []models.ContentItem {
	return append([]models.ContentItem(nil), l.items...)
}

// History returns a copy of the history ordered newest first by timestamp.
// Items with equal timestamps keep reverse insertion order.
func (l *Ledger) History() []models.ContentItem {
	out := make([]models.ContentItem, len(l.items))
	for i, it := range l.items {
		out[len(l.items)-1-i] = it
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// Reset empties the ledger.
func (l *Ledger) Reset() {
	l.items = nil
	l.index = make(map[string]int)
}
