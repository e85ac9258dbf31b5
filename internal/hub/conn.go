package hub

import (
	"errors"
	"sync"
)

var (
	// ErrQueueFull is returned by a Queue whose buffer has no room.
	ErrQueueFull = errors.New("hub: send queue full")
	// ErrConnClosed is returned when sending to a released connection.
	ErrConnClosed = errors.New("hub: connection closed")
)

// Role is what a connection declared itself to be.
type Role int

const (
	RoleUnclassified Role = iota
	RoleAgent
	RoleObserver
)

func (r Role) String() string {
	switch r {
	case RoleAgent:
		return "agent"
	case RoleObserver:
		return "observer"
	default:
		return "unclassified"
	}
}

// Sender delivers one encoded frame to a peer. Send must not block; a
// transport that cannot accept the frame right now returns an error.
type Sender interface {
	Send(frame []byte) error
}

// Conn is the hub's view of one attached transport. Its fields are only
// mutated on the hub's event loop.
type Conn struct {
	id       string
	sender   Sender
	role     Role
	agentID  string
	released bool
}

// ID returns the hub-assigned connection id.
func (c *Conn) ID() string { return c.id }

// Role returns the classified role.
func (c *Conn) Role() Role { return c.role }

// AgentID returns the agent id for agent connections.
func (c *Conn) AgentID() string { return c.agentID }

func (c *Conn) send(frame []byte) error {
	if c.released {
		return ErrConnClosed
	}
	return c.sender.Send(frame)
}

// burstSender accepts a batch of frames that must arrive whole, such as an
// observer's registration replay.
type burstSender interface {
	SendBurst(frames [][]byte) error
}

// sendBurst delivers frames in order. Senders without burst support get
// them one at a time and the first failure stops the batch.
func (c *Conn) sendBurst(frames [][]byte) error {
	if c.released {
		return ErrConnClosed
	}
	if b, ok := c.sender.(burstSender); ok {
		return b.SendBurst(frames)
	}
	for _, f := range frames {
		if err := c.sender.Send(f); err != nil {
			return err
		}
	}
	return nil
}

// Queue is a non-blocking Sender drained by a transport's writer goroutine.
// Send is bounded by the queue limit; SendBurst is not, so a replay is
// never truncated however many frames it holds.
type Queue struct {
	mu     sync.Mutex
	frames [][]byte
	limit  int
	closed bool
	ready  chan struct{}
}

// NewQueue returns a queue holding up to size frames from Send.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{limit: size, ready: make(chan struct{}, 1)}
}

// Send enqueues frame, failing when the queue is full or closed.
func (q *Queue) Send(frame []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrConnClosed
	}
	if len(q.frames) >= q.limit {
		return ErrQueueFull
	}
	q.frames = append(q.frames, frame)
	q.signal()
	return nil
}

// SendBurst enqueues all frames regardless of the limit.
func (q *Queue) SendBurst(frames [][]byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrConnClosed
	}
	q.frames = append(q.frames, frames...)
	q.signal()
	return nil
}

// signal wakes the writer. Callers hold q.mu.
func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Ready fires when frames are waiting or the queue was closed. Call Drain
// after each receive.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// Drain removes and returns every buffered frame in order. open is false
// once the queue is closed; frames buffered before Close are still returned.
func (q *Queue) Drain() (frames [][]byte, open bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	frames, q.frames = q.frames, nil
	return frames, !q.closed
}

// Close stops accepting frames. Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		q.signal()
	}
}
