package discovery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"
)

// Defaults for Supervisor.
const (
	DefaultReconnectDelay = 2 * time.Second
	DefaultBackoff        = 5 * time.Second
)

// Supervisor keeps a session alive. The first scan is one-shot: if it finds
// nothing Run returns ErrNotFound. Once a session has been established,
// every drop triggers a rescan after ReconnectDelay, and failed rescans are
// retried every Backoff until ctx ends.
type Supervisor struct {
	Scanner        *Scanner
	ReconnectDelay time.Duration
	Backoff        time.Duration
	// OnConnect is called with every new session. It must not block.
	OnConnect func(sess Session, port int)
	// OnDisconnect is called when an established session drops.
	OnDisconnect func(port int)
	Logger       *slog.Logger
}

// Run supervises until ctx is cancelled, returning nil in that case.
func (s *Supervisor) Run(ctx context.Context) error {
	log := s.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	delay := s.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	backoff := s.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}

	sess, port, err := s.Scanner.Scan(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	for {
		log.Info("hub connected", "port", port)
		if s.OnConnect != nil {
			s.OnConnect(sess, port)
		}
		select {
		case <-ctx.Done():
			_ = sess.Close()
			return nil
		case <-sess.Done():
		}
		log.Warn("hub connection lost", "port", port)
		if s.OnDisconnect != nil {
			s.OnDisconnect(port)
		}

		if !sleep(ctx, delay) {
			return nil
		}
		for {
			sess, port, err = s.Scanner.Scan(ctx)
			if err == nil {
				break
			}
			if ctx.Err() != nil {
				return nil
			}
			if !errors.Is(err, ErrNotFound) {
				return err
			}
			log.Info("hub not found, retrying", "backoff", backoff)
			if !sleep(ctx, backoff) {
				return nil
			}
		}
	}
}

// sleep waits d, reporting false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
