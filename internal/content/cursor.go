package content

import "github.com/zulandar/agenthud/internal/models"

// Direction moves a Cursor through the history.
type Direction int

const (
	Previous Direction = -1
	Next     Direction = 1
)

// Cursor is a viewer position over a ledger's insertion-ordered history.
// Moving past either end wraps around. A cursor never mutates the ledger.
type Cursor struct {
	pos   int
	valid bool
}

// Navigate moves the cursor one step in dir and returns the item now under
// it. With an empty ledger it returns false. An unset cursor starts from
// the latest item.
func (c *Cursor) Navigate(l *Ledger, dir Direction) (models.ContentItem, bool) {
	n := l.Len()
	if n == 0 {
		c.valid = false
		return models.ContentItem{}, false
	}
	if !c.valid || c.pos >= n {
		c.pos = n - 1
		c.valid = true
	}
	c.pos = ((c.pos+int(dir))%n + n) % n
	return l.items[c.pos], true
}

// Current returns the item under the cursor, defaulting to the latest item.
func (c *Cursor) Current(l *Ledger) (models.ContentItem, bool) {
	n := l.Len()
	if n == 0 {
		return models.ContentItem{}, false
	}
	if !c.valid || c.pos >= n {
		return l.Latest()
	}
	return l.items[c.pos], true
}

// Follow snaps the cursor back to the latest item.
func (c *Cursor) Follow() {
	c.valid = false
}

// Position returns the zero-based index under the cursor, or -1 if unset.
func (c *Cursor) Position() int {
	if !c.valid {
		return -1
	}
	return c.pos
}
