// Package discovery locates a hub by probing a port range in order.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNotFound is returned when every port in the range failed.
var ErrNotFound = errors.New("discovery: no hub found in port range")

// DefaultAttemptTimeout bounds one dial plus registration acknowledgement.
const DefaultAttemptTimeout = 500 * time.Millisecond

// Session is an established, registered connection to a hub.
type Session interface {
	// Done is closed when the connection drops.
	Done() <-chan struct{}
	Close() error
}

// Dialer connects to the hub on port and completes registration. The
// context deadline covers both; it does not govern the returned session.
type Dialer interface {
	Dial(ctx context.Context, port int) (Session, error)
}

// DialFunc adapts a function to Dialer.
type DialFunc func(ctx context.Context, port int) (Session, error)

func (f DialFunc) Dial(ctx context.Context, port int) (Session, error) { return f(ctx, port) }

// State is the scanner's position in Idle -> Probing -> Connected | Exhausted.
type State int

const (
	Idle State = iota
	Probing
	Connected
	Exhausted
)

func (s State) String() string {
	switch s {
	case Probing:
		return "probing"
	case Connected:
		return "connected"
	case Exhausted:
		return "exhausted"
	default:
		return "idle"
	}
}

// Scanner probes ports MinPort..MaxPort one at a time.
type Scanner struct {
	Dialer         Dialer
	MinPort        int
	MaxPort        int
	AttemptTimeout time.Duration
	// OnTransition, if set, is called on every state change.
	OnTransition func(state State, port int)

	mu    sync.Mutex
	state State
	port  int
}

// State returns the current state and the port it refers to (the port
// being probed, or the connected one).
func (s *Scanner) State() (State, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.port
}

func (s *Scanner) set(state State, port int) {
	s.mu.Lock()
	s.state, s.port = state, port
	s.mu.Unlock()
	if s.OnTransition != nil {
		s.OnTransition(state, port)
	}
}

// Scan probes the range in ascending order and returns the first session
// that registers successfully. It returns ErrNotFound when the range is
// exhausted, or ctx.Err() if ctx ends first.
func (s *Scanner) Scan(ctx context.Context) (Session, int, error) {
	if s.Dialer == nil {
		return nil, 0, fmt.Errorf("discovery: dialer is required")
	}
	if s.MaxPort < s.MinPort {
		return nil, 0, fmt.Errorf("discovery: invalid port range %d..%d", s.MinPort, s.MaxPort)
	}
	timeout := s.AttemptTimeout
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}

	for port := s.MinPort; port <= s.MaxPort; port++ {
		if err := ctx.Err(); err != nil {
			s.set(Idle, 0)
			return nil, 0, err
		}
		s.set(Probing, port)
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		sess, err := s.Dialer.Dial(attemptCtx, port)
		cancel()
		if err == nil {
			s.set(Connected, port)
			return sess, port, nil
		}
	}
	if err := ctx.Err(); err != nil {
		s.set(Idle, 0)
		return nil, 0, err
	}
	s.set(Exhausted, 0)
	return nil, 0, ErrNotFound
}
