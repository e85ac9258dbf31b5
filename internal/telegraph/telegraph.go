package telegraph

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/zulandar/agenthud/internal/models"
)

const (
	defaultQueueSize   = 64
	defaultSendTimeout = 30 * time.Second
)

// Dispatcher fans pending requests out to every configured Sender. It
// implements hub.Notifier: RequestPending never blocks, and requests below
// the minimum priority are ignored.
type Dispatcher struct {
	senders     []Sender
	minPriority models.Priority
	sendTimeout time.Duration
	log         *slog.Logger
	queue       chan models.HumanInputRequest
}

// DispatcherOpts holds parameters for creating a Dispatcher.
type DispatcherOpts struct {
	Senders     []Sender
	MinPriority models.Priority // defaults to High
	SendTimeout time.Duration   // per sender, per request
	QueueSize   int
	Logger      *slog.Logger
}

// NewDispatcher creates a Dispatcher. With no senders it accepts and drops
// everything.
func NewDispatcher(opts DispatcherOpts) *Dispatcher {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	minP := opts.MinPriority
	if minP == "" {
		minP = models.PriorityHigh
	}
	timeout := opts.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Dispatcher{
		senders:     opts.Senders,
		minPriority: minP,
		sendTimeout: timeout,
		log:         log.With("component", "telegraph"),
		queue:       make(chan models.HumanInputRequest, size),
	}
}

// Wants reports whether a request with priority p passes the threshold.
func (d *Dispatcher) Wants(p models.Priority) bool {
	return len(d.senders) > 0 && p.Rank() >= d.minPriority.Rank()
}

// RequestPending queues r for delivery.
func (d *Dispatcher) RequestPending(r models.HumanInputRequest) {
	if !d.Wants(r.Priority) {
		return
	}
	select {
	case d.queue <- r:
	default:
		d.log.Warn("notification queue full, dropping", "request_id", r.ID)
	}
}

// Run delivers queued requests until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-d.queue:
			d.deliver(ctx, r)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, r models.HumanInputRequest) {
	msg := RequestMessage(r)
	for _, s := range d.senders {
		sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		err := s.Send(sendCtx, msg)
		cancel()
		if err != nil {
			d.log.Warn("notification failed", "sender", s.Name(), "request_id", r.ID, "error", err)
			continue
		}
		d.log.Debug("notification sent", "sender", s.Name(), "request_id", r.ID)
	}
}
