package hub

import "log/slog"

// fanout is the ordered set of observer connections.
type fanout struct {
	conns []*Conn
}

func (f *fanout) add(c *Conn) {
	for _, o := range f.conns {
		if o == c {
			return
		}
	}
	f.conns = append(f.conns, c)
}

func (f *fanout) remove(c *Conn) {
	for i, o := range f.conns {
		if o == c {
			f.conns = append(f.conns[:i], f.conns[i+1:]...)
			return
		}
	}
}

func (f *fanout) len() int { return len(f.conns) }

// broadcast sends frame to every observer. A failed delivery is logged and
// skipped; the observer stays registered. It returns the number delivered.
func (f *fanout) broadcast(log *slog.Logger, frame []byte) int {
	delivered := 0
	for _, c := range f.conns {
		if err := c.send(frame); err != nil {
			log.Debug("observer delivery failed", "conn_id", c.id, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}
