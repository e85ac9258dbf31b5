package hub

import "github.com/zulandar/agenthud/internal/models"

// pendingEntry is a ledger slot. origin is the connection the request came
// from and is used only to route the response.
type pendingEntry struct {
	req       models.HumanInputRequest
	origin    *Conn
	clientRef string
}

// requestLedger holds every request of this hub lifetime in submission order.
type requestLedger struct {
	byID  map[string]*pendingEntry
	order []string
}

func newRequestLedger() *requestLedger {
	return &requestLedger{byID: make(map[string]*pendingEntry)}
}

func (l *requestLedger) add(e *pendingEntry) {
	if _, ok := l.byID[e.req.ID]; !ok {
		l.order = append(l.order, e.req.ID)
	}
	l.byID[e.req.ID] = e
}

func (l *requestLedger) get(id string) (*pendingEntry, bool) {
	e, ok := l.byID[id]
	return e, ok
}

// list returns copies of all requests in submission order.
func (l *requestLedger) list() []models.HumanInputRequest {
	out := make([]models.HumanInputRequest, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.byID[id].req.Clone())
	}
	return out
}

func (l *requestLedger) pending() int {
	n := 0
	for _, e := range l.byID {
		if e.req.Pending() {
			n++
		}
	}
	return n
}

func (l *requestLedger) clear() {
	l.byID = make(map[string]*pendingEntry)
	l.order = nil
}
