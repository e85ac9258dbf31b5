// Package client connects agents and observers to a hub over WebSocket.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zulandar/agenthud/internal/discovery"
	"github.com/zulandar/agenthud/internal/protocol"
)

var (
	// ErrNotConnected is returned when sending without a live session.
	ErrNotConnected = errors.New("client: not connected")
	// ErrTimeout is returned when a human did not answer in time.
	ErrTimeout = errors.New("client: timed out waiting for response")
	// ErrRejected is returned when the hub refuses a registration.
	ErrRejected = errors.New("client: registration rejected")
)

const writeWait = 10 * time.Second

// WSDialer dials the hub's WebSocket endpoint and registers. It implements
// discovery.Dialer.
type WSDialer struct {
	Host string // default 127.0.0.1
	Path string // default /ws
	// Register is the frame sent right after the handshake.
	Register any
	// OnFrame receives every frame after the registration ack, on the
	// session's read goroutine.
	OnFrame func(raw []byte)
}

// Dial connects to port, sends the registration frame and waits for the
// hub's ack. ctx bounds the whole exchange.
func (d *WSDialer) Dial(ctx context.Context, port int) (discovery.Session, error) {
	return d.DialSession(ctx, port)
}

// DialSession is Dial returning the concrete session.
func (d *WSDialer) DialSession(ctx context.Context, port int) (*Session, error) {
	host := d.Host
	if host == "" {
		host = "127.0.0.1"
	}
	path := d.Path
	if path == "" {
		path = "/ws"
	}
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(host, strconv.Itoa(port)), Path: path}

	dialer := websocket.Dialer{HandshakeTimeout: discovery.DefaultAttemptTimeout}
	if dl, ok := ctx.Deadline(); ok {
		dialer.HandshakeTimeout = time.Until(dl)
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", u.String(), err)
	}

	s := &Session{conn: conn, port: port, onFrame: d.OnFrame, done: make(chan struct{})}
	ack, err := s.register(ctx, d.Register)
	if err != nil {
		conn.Close()
		return nil, err
	}
	s.ack = ack
	go s.readLoop()
	return s, nil
}

// Session is a registered WebSocket connection to a hub.
type Session struct {
	conn    *websocket.Conn
	port    int
	ack     protocol.Frame
	onFrame func(raw []byte)

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
	err       error
}

func (s *Session) register(ctx context.Context, frame any) (protocol.Frame, error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = s.conn.SetReadDeadline(dl)
		defer s.conn.SetReadDeadline(time.Time{})
	}
	if err := s.Send(frame); err != nil {
		return protocol.Frame{}, err
	}
	_, raw, err := s.conn.ReadMessage()
	if err != nil {
		return protocol.Frame{}, fmt.Errorf("client: await registration ack: %w", err)
	}
	ack, err := protocol.ParseFrame(raw)
	if err != nil {
		return protocol.Frame{}, fmt.Errorf("client: registration ack: %w", err)
	}
	if ack.Type != protocol.TypeRegistrationAck {
		return protocol.Frame{}, fmt.Errorf("client: expected %s, got %s", protocol.TypeRegistrationAck, ack.Type)
	}
	if !ack.Success {
		return protocol.Frame{}, ErrRejected
	}
	return ack, nil
}

func (s *Session) readLoop() {
	defer s.shutdown(nil)
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.shutdown(err)
			return
		}
		if s.onFrame != nil {
			s.onFrame(raw)
		}
	}
}

func (s *Session) shutdown(err error) {
	s.closeOnce.Do(func() {
		s.err = err
		s.conn.Close()
		close(s.done)
	})
}

// Send writes one JSON frame.
func (s *Session) Send(v any) error {
	select {
	case <-s.done:
		return ErrNotConnected
	default:
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("client: write: %w", err)
	}
	return nil
}

// Ack returns the registration acknowledgement.
func (s *Session) Ack() protocol.Frame { return s.ack }

// Port is the hub port this session is connected to.
func (s *Session) Port() int { return s.port }

// Done is closed when the connection drops or is closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the read error that ended the session, if any.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Close sends a close frame and tears the connection down.
func (s *Session) Close() error {
	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	s.writeMu.Unlock()
	s.shutdown(nil)
	return nil
}
