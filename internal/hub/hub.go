// Package hub is the relay core: it classifies connections, keeps the agent
// registry and the request and content ledgers, and fans events out to
// observers. All state is owned by a single event loop goroutine.
package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/agenthud/internal/content"
	"github.com/zulandar/agenthud/internal/models"
	"github.com/zulandar/agenthud/internal/protocol"
)

var (
	// ErrUnknownRequest is returned when resolving a request id the hub never issued.
	ErrUnknownRequest = errors.New("hub: unknown request")
	// ErrStopped is returned by calls made after Run has returned.
	ErrStopped = errors.New("hub: stopped")
)

const defaultInboxSize = 256

// Opts configures a Hub. Zero values select sensible defaults.
type Opts struct {
	Logger    *slog.Logger
	Recorder  Recorder
	Notifier  Notifier
	Now       func() time.Time
	NewID     func() string
	InboxSize int
}

// Hub is one relay instance. Create it with New and drive it with Run.
type Hub struct {
	log    *slog.Logger
	rec    Recorder
	notify Notifier
	now    func() time.Time
	newID  func() string

	inbox chan func()
	done  chan struct{}

	conns     map[string]*Conn
	agents    *registry
	requests  *requestLedger
	content   *content.Ledger
	observers fanout
}

// New builds a hub. It does nothing until Run is called.
func New(opts Opts) *Hub {
	h := &Hub{
		log:      opts.Logger,
		rec:      opts.Recorder,
		notify:   opts.Notifier,
		now:      opts.Now,
		newID:    opts.NewID,
		conns:    make(map[string]*Conn),
		agents:   newRegistry(),
		requests: newRequestLedger(),
		content:  content.NewLedger(),
		done:     make(chan struct{}),
	}
	if h.log == nil {
		h.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h.log = h.log.With("component", "hub")
	if h.rec == nil {
		h.rec = nopRecorder{}
	}
	if h.notify == nil {
		h.notify = nopNotifier{}
	}
	if h.now == nil {
		h.now = func() time.Time { return time.Now().UTC() }
	}
	if h.newID == nil {
		h.newID = uuid.NewString
	}
	size := opts.InboxSize
	if size <= 0 {
		size = defaultInboxSize
	}
	h.inbox = make(chan func(), size)
	return h
}

// Run processes hub events until ctx is cancelled. It must be called once.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	h.log.Info("hub started")
	for {
		select {
		case <-ctx.Done():
			h.log.Info("hub stopped")
			return nil
		case fn := <-h.inbox:
			fn()
		}
	}
}

// post queues fn on the event loop without waiting for it to run.
func (h *Hub) post(fn func()) {
	select {
	case h.inbox <- fn:
	case <-h.done:
	}
}

// exec runs fn on the event loop and waits for it.
func (h *Hub) exec(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		fn()
		close(finished)
	}
	select {
	case h.inbox <- task:
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrStopped
	}
}

// Attach registers a new unclassified connection backed by s.
func (h *Hub) Attach(ctx context.Context, s Sender) (*Conn, error) {
	var c *Conn
	if err := h.exec(ctx, func() { c = h.attach(s) }); err != nil {
		// The attach may still run after the wait gave up; undo it on the
		// loop, which sees c once the queued attach has executed.
		h.post(func() {
			if c != nil {
				h.release(c)
			}
		})
		return nil, err
	}
	return c, nil
}

// Deliver hands one raw inbound frame from c to the event loop.
func (h *Hub) Deliver(c *Conn, raw []byte) {
	h.post(func() { h.handle(c, raw) })
}

// Release detaches c. It is idempotent.
func (h *Hub) Release(c *Conn) {
	h.post(func() { h.release(c) })
}

// Resolve answers a request on behalf of an observer outside the socket
// protocol, e.g. the REST API.
func (h *Hub) Resolve(ctx context.Context, requestID, response, additionalContext string) error {
	var err error
	if xerr := h.exec(ctx, func() { err = h.resolve(requestID, response, additionalContext) }); xerr != nil {
		return xerr
	}
	return err
}

// ClearRequests empties the request ledger.
func (h *Hub) ClearRequests(ctx context.Context) error {
	return h.exec(ctx, h.clearRequests)
}

// Snapshot is a point-in-time copy of hub state.
type Snapshot struct {
	Agents    []models.Agent             `json:"agents"`
	Requests  []models.HumanInputRequest `json:"requests"`
	Content   []models.ContentItem       `json:"content"`
	Latest    *models.ContentItem        `json:"latest,omitempty"`
	Pending   int                        `json:"pending"`
	Observers int                        `json:"observers"`
}

// Snapshot copies the current state on the event loop.
func (h *Hub) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := h.exec(ctx, func() { snap = h.snapshot() })
	return snap, err
}

func (h *Hub) snapshot() Snapshot {
	snap := Snapshot{
		Agents:    h.agents.list(),
		Requests:  h.requests.list(),
		Content:   h.content.History(),
		Pending:   h.requests.pending(),
		Observers: h.observers.len(),
	}
	if latest, ok := h.content.Latest(); ok {
		snap.Latest = &latest
	}
	return snap
}

func (h *Hub) attach(s Sender) *Conn {
	c := &Conn{id: h.newID(), sender: s}
	h.conns[c.id] = c
	h.log.Debug("connection attached", "conn_id", c.id)
	return c
}

func (h *Hub) handle(c *Conn, raw []byte) {
	if c.released {
		return
	}
	msg, err := protocol.Decode(raw)
	if err != nil {
		h.log.Warn("dropping inbound frame", "conn_id", c.id, "error", err)
		return
	}
	h.dispatch(c, msg)
}

// dispatch applies one decoded message from c.
func (h *Hub) dispatch(c *Conn, msg protocol.Inbound) {
	switch m := msg.(type) {
	case protocol.RegisterObserver:
		h.registerObserver(c)
	case protocol.RegisterAgent:
		h.registerAgent(c, m)
	case protocol.SubmitRequest:
		h.submit(c, m)
	case protocol.ResolveRequest:
		if !h.requireRole(c, RoleObserver, msg) {
			return
		}
		_ = h.resolve(m.RequestID, m.Response, m.AdditionalContext)
	case protocol.UpdateAgent:
		h.updateAgent(c, m)
	case protocol.AgentActivity:
		h.activity(c, m)
	case protocol.EmitContent:
		h.emitContent(c, m)
	case protocol.ClearRequests:
		if !h.requireRole(c, RoleObserver, msg) {
			return
		}
		h.clearRequests()
	default:
		h.log.Warn("unhandled message", "conn_id", c.id, "type", msg.Kind())
	}
}

func (h *Hub) requireRole(c *Conn, want Role, msg protocol.Inbound) bool {
	if c.role == want {
		return true
	}
	h.log.Warn("message not allowed for role",
		"conn_id", c.id, "type", msg.Kind(), "role", c.role.String(), "want", want.String())
	return false
}

func (h *Hub) release(c *Conn) {
	if c.released {
		return
	}
	c.released = true
	delete(h.conns, c.id)

	switch c.role {
	case RoleObserver:
		h.observers.remove(c)
		h.log.Info("observer disconnected", "conn_id", c.id)
	case RoleAgent:
		a, ok := h.agents.remove(c.agentID)
		if !ok {
			return
		}
		h.log.Info("agent disconnected", "agent_id", a.ID, "name", a.Name)
		h.broadcast(protocol.TypeAgentDisconnected, map[string]string{"agentId": a.ID, "name": a.Name})
		h.rec.AgentDisconnected(a.Clone(), h.now())
	}
}

func (h *Hub) registerObserver(c *Conn) {
	if c.role != RoleUnclassified {
		h.log.Warn("duplicate registration", "conn_id", c.id, "role", c.role.String())
		return
	}
	c.role = RoleObserver
	h.observers.add(c)
	h.log.Info("observer registered", "conn_id", c.id)

	now := h.now()
	ack, err := protocol.Marshal(protocol.NewRegistrationAck(protocol.RoleObserver, "", now))
	if err != nil {
		h.log.Error("encode frame", "conn_id", c.id, "error", err)
		return
	}
	frames := [][]byte{ack}
	for _, a := range h.agents.list() {
		frames = h.appendEvent(frames, protocol.TypeAgentConnected, a, now)
	}
	for _, r := range h.requests.list() {
		frames = h.appendEvent(frames, protocol.TypeHumanInputRequest, r, now)
	}
	if err := c.sendBurst(frames); err != nil {
		h.log.Warn("replay delivery failed", "conn_id", c.id, "frames", len(frames), "error", err)
	}
}

func (h *Hub) appendEvent(frames [][]byte, typ string, data any, now time.Time) [][]byte {
	frame, err := protocol.Event{Type: typ, Data: data}.Encode(now)
	if err != nil {
		h.log.Error("encode event", "type", typ, "error", err)
		return frames
	}
	return append(frames, frame)
}

func (h *Hub) registerAgent(c *Conn, m protocol.RegisterAgent) {
	if c.role != RoleUnclassified {
		h.log.Warn("duplicate registration", "conn_id", c.id, "role", c.role.String())
		return
	}
	now := h.now()
	a := &models.Agent{
		ID:           h.newID(),
		Name:         m.Name,
		Status:       models.AgentConnected,
		ConnectedAt:  now,
		LastActivity: now,
		Metadata:     m.Metadata,
	}
	h.agents.add(a)
	c.role = RoleAgent
	c.agentID = a.ID
	h.log.Info("agent registered", "agent_id", a.ID, "name", a.Name, "conn_id", c.id)

	h.sendTo(c, protocol.NewRegistrationAck(protocol.RoleAgent, a.ID, now))
	h.broadcast(protocol.TypeAgentConnected, a.Clone())
	h.rec.AgentConnected(a.Clone())
}

// agentFor returns the live agent behind c, logging why when there is none.
func (h *Hub) agentFor(c *Conn, msg protocol.Inbound) (*models.Agent, bool) {
	if !h.requireRole(c, RoleAgent, msg) {
		return nil, false
	}
	a, ok := h.agents.get(c.agentID)
	if !ok {
		h.log.Warn("no agent for connection", "conn_id", c.id, "type", msg.Kind())
	}
	return a, ok
}

func (h *Hub) submit(c *Conn, m protocol.SubmitRequest) {
	a, ok := h.agentFor(c, m)
	if !ok {
		return
	}
	now := h.now()
	priority := m.Priority
	if priority == "" {
		priority = models.DerivePriority(m.RequestType, m.Message)
	}
	options := m.Options
	if options == nil {
		options = []string{}
	}
	e := &pendingEntry{
		req: models.HumanInputRequest{
			ID:             h.newID(),
			AgentID:        a.ID,
			AgentName:      a.Name,
			RequestType:    m.RequestType,
			Message:        m.Message,
			Priority:       priority,
			Status:         models.RequestPending,
			Options:        options,
			Context:        m.Context,
			TimeoutSeconds: m.TimeoutSeconds,
			CreatedAt:      now,
		},
		origin:    c,
		clientRef: m.ClientRef,
	}
	h.requests.add(e)
	a.LastActivity = now
	h.log.Info("request submitted",
		"request_id", e.req.ID, "agent_id", a.ID, "type", string(e.req.RequestType), "priority", string(priority))

	req := e.req.Clone()
	h.broadcast(protocol.TypeHumanInputRequest, req)
	h.rec.RequestSubmitted(req)
	h.notify.RequestPending(req)
}

func (h *Hub) resolve(requestID, response, additionalContext string) error {
	e, ok := h.requests.get(requestID)
	if !ok {
		h.log.Warn("resolve for unknown request", "request_id", requestID)
		return fmt.Errorf("%w: %s", ErrUnknownRequest, requestID)
	}
	if !e.req.Pending() {
		h.log.Warn("overwriting response of completed request", "request_id", requestID)
	}
	now := h.now()
	e.req.Complete(response, now)

	if !e.origin.released {
		if err := h.sendTo(e.origin, protocol.HumanInputResponse{
			Type:              protocol.TypeHumanInputResponse,
			RequestID:         e.req.ID,
			ClientRequestID:   e.clientRef,
			Response:          response,
			AdditionalContext: additionalContext,
			Timestamp:         now,
		}); err != nil {
			h.log.Warn("response delivery failed", "request_id", requestID, "error", err)
		}
	} else {
		h.log.Info("requesting agent gone, response not routed", "request_id", requestID)
	}

	req := e.req.Clone()
	h.broadcast(protocol.TypeHumanInputRequest, req)
	h.rec.RequestResolved(req, additionalContext)
	return nil
}

func (h *Hub) clearRequests() {
	n := len(h.requests.order)
	h.requests.clear()
	h.log.Info("requests cleared", "count", n)
	h.broadcast(protocol.TypeRequestsCleared, map[string]int{"count": n})
}

func (h *Hub) updateAgent(c *Conn, m protocol.UpdateAgent) {
	a, ok := h.agentFor(c, m)
	if !ok {
		return
	}
	p := m.Patch
	if p.Name != nil && *p.Name != "" {
		a.Name = *p.Name
	}
	if p.Status != nil {
		a.SetStatus(*p.Status)
	}
	if len(p.Metadata) > 0 {
		if a.Metadata == nil {
			a.Metadata = make(map[string]any, len(p.Metadata))
		}
		for k, v := range p.Metadata {
			a.Metadata[k] = v
		}
	}
	a.LastActivity = h.now()
	h.broadcast(protocol.TypeAgentUpdate, a.Clone())
	h.rec.AgentUpdated(a.Clone())
}

func (h *Hub) activity(c *Conn, m protocol.AgentActivity) {
	a, ok := h.agentFor(c, m)
	if !ok {
		return
	}
	now := h.now()
	a.Status = models.AgentActive
	a.StatusText = ""
	a.LastActivity = now
	h.broadcast(protocol.TypeAgentUpdate, a.Clone())
	h.broadcast(protocol.TypeAgentMessage, map[string]any{
		"id":        m.ID,
		"agentId":   a.ID,
		"agentName": a.Name,
		"kind":      m.Activity,
		"payload":   m.Payload,
	})
	h.rec.AgentMessage(a.ID, m.Activity, m.Payload, now)
}

func (h *Hub) emitContent(c *Conn, m protocol.EmitContent) {
	a, ok := h.agentFor(c, m)
	if !ok {
		return
	}
	item := m.Item
	if item.AgentID == "" {
		item.AgentID = a.ID
	}
	if item.AgentName == "" {
		item.AgentName = a.Name
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = h.now()
	}
	stored, added := h.content.Append(item)
	if !added {
		h.log.Debug("duplicate content ignored", "content_id", stored.ID)
		return
	}
	a.LastActivity = h.now()
	h.broadcast(m.EventType, stored)
	h.rec.ContentAppended(stored)
}

// broadcast encodes an event and fans it out to every observer.
func (h *Hub) broadcast(typ string, data any) {
	frame, err := protocol.Event{Type: typ, Data: data}.Encode(h.now())
	if err != nil {
		h.log.Error("encode broadcast", "type", typ, "error", err)
		return
	}
	h.observers.broadcast(h.log, frame)
}

func (h *Hub) sendTo(c *Conn, v any) error {
	frame, err := protocol.Marshal(v)
	if err != nil {
		h.log.Error("encode frame", "conn_id", c.id, "error", err)
		return err
	}
	return c.send(frame)
}
