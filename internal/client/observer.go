package client

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/zulandar/agenthud/internal/content"
	"github.com/zulandar/agenthud/internal/discovery"
	"github.com/zulandar/agenthud/internal/models"
	"github.com/zulandar/agenthud/internal/protocol"
)

// ObserverOpts configures an Observer.
type ObserverOpts struct {
	Host           string
	MinPort        int
	MaxPort        int
	AttemptTimeout time.Duration
	ReconnectDelay time.Duration
	Backoff        time.Duration
	Logger         *slog.Logger
	// OnEvent is called for every hub event after the local mirror has
	// applied it. It runs on the read goroutine.
	OnEvent func(f protocol.Frame)
	// OnConnect is called each time a session is established.
	OnConnect func(port int)
}

// Observer is a dashboard-side client. It mirrors the hub's agents,
// requests and content locally and survives hub restarts by rediscovering.
type Observer struct {
	opts ObserverOpts
	log  *slog.Logger

	mu         sync.Mutex
	sess       *Session
	agents     map[string]models.Agent
	agentOrder []string
	requests   map[string]models.HumanInputRequest
	reqOrder   []string
	content    *content.Ledger
	cursor     content.Cursor
}

// NewObserver builds an observer; call Run to connect.
func NewObserver(opts ObserverOpts) *Observer {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	o := &Observer{
		opts:    opts,
		log:     log.With("component", "observer"),
		content: content.NewLedger(),
	}
	o.resetLocked()
	return o
}

// Run discovers the hub and keeps the connection alive until ctx ends.
// It returns discovery.ErrNotFound if no hub is found on the first scan.
func (o *Observer) Run(ctx context.Context) error {
	dialer := &WSDialer{
		Host:     o.opts.Host,
		Register: map[string]string{"type": protocol.TypeRegisterObserver},
		OnFrame:  o.handleFrame,
	}
	sup := &discovery.Supervisor{
		Scanner: &discovery.Scanner{
			Dialer: discovery.DialFunc(func(ctx context.Context, port int) (discovery.Session, error) {
				// The hub replays agents and requests right after the ack.
				o.mu.Lock()
				o.resetLocked()
				o.mu.Unlock()
				return dialer.DialSession(ctx, port)
			}),
			MinPort:        o.opts.MinPort,
			MaxPort:        o.opts.MaxPort,
			AttemptTimeout: o.opts.AttemptTimeout,
		},
		ReconnectDelay: o.opts.ReconnectDelay,
		Backoff:        o.opts.Backoff,
		Logger:         o.log,
		OnConnect: func(sess discovery.Session, port int) {
			o.mu.Lock()
			o.sess = sess.(*Session)
			o.mu.Unlock()
			if o.opts.OnConnect != nil {
				o.opts.OnConnect(port)
			}
		},
		OnDisconnect: func(int) {
			o.mu.Lock()
			o.sess = nil
			o.mu.Unlock()
		},
	}
	return sup.Run(ctx)
}

func (o *Observer) resetLocked() {
	o.agents = make(map[string]models.Agent)
	o.agentOrder = nil
	o.requests = make(map[string]models.HumanInputRequest)
	o.reqOrder = nil
}

func (o *Observer) handleFrame(raw []byte) {
	f, err := protocol.ParseFrame(raw)
	if err != nil {
		o.log.Warn("bad frame from hub", "error", err)
		return
	}
	if err := o.apply(f); err != nil {
		o.log.Warn("could not apply event", "type", f.Type, "error", err)
		return
	}
	if o.opts.OnEvent != nil {
		o.opts.OnEvent(f)
	}
}

// apply folds one hub event into the mirror.
func (o *Observer) apply(f protocol.Frame) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch f.Type {
	case protocol.TypeAgentConnected, protocol.TypeAgentUpdate:
		var a models.Agent
		if err := json.Unmarshal(f.Data, &a); err != nil {
			return err
		}
		if _, ok := o.agents[a.ID]; !ok {
			o.agentOrder = append(o.agentOrder, a.ID)
		}
		o.agents[a.ID] = a
	case protocol.TypeAgentDisconnected:
		var gone struct {
			AgentID string `json:"agentId"`
		}
		if err := json.Unmarshal(f.Data, &gone); err != nil {
			return err
		}
		delete(o.agents, gone.AgentID)
		o.agentOrder = removeID(o.agentOrder, gone.AgentID)
	case protocol.TypeHumanInputRequest:
		var r models.HumanInputRequest
		if err := json.Unmarshal(f.Data, &r); err != nil {
			return err
		}
		if _, ok := o.requests[r.ID]; !ok {
			o.reqOrder = append(o.reqOrder, r.ID)
		}
		o.requests[r.ID] = r
	case protocol.TypeRequestsCleared:
		o.requests = make(map[string]models.HumanInputRequest)
		o.reqOrder = nil
	case protocol.TypeContentEmission, protocol.TypeMarkdownContent, protocol.TypeCodeContent, protocol.TypeImageContent:
		var item models.ContentItem
		if err := json.Unmarshal(f.Data, &item); err != nil {
			return err
		}
		o.content.Append(item)
	}
	return nil
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func (o *Observer) session() (*Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sess == nil {
		return nil, ErrNotConnected
	}
	return o.sess, nil
}

// Respond answers a pending request.
func (o *Observer) Respond(requestID, response, additionalContext string) error {
	s, err := o.session()
	if err != nil {
		return err
	}
	frame := map[string]string{
		"type":      protocol.TypeHumanInputResponse,
		"requestId": requestID,
		"response":  response,
	}
	if additionalContext != "" {
		frame["additionalContext"] = additionalContext
	}
	return s.Send(frame)
}

// ClearRequests asks the hub to empty its request ledger.
func (o *Observer) ClearRequests() error {
	s, err := o.session()
	if err != nil {
		return err
	}
	return s.Send(map[string]string{"type": protocol.TypeClearRequests})
}

// Connected reports whether a session is live.
func (o *Observer) Connected() bool {
	_, err := o.session()
	return err == nil
}

// Agents returns the mirrored agents in connection order.
func (o *Observer) Agents() []models.Agent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]models.Agent, 0, len(o.agentOrder))
	for _, id := range o.agentOrder {
		out = append(out, o.agents[id].Clone())
	}
	return out
}

// Requests returns the mirrored requests in submission order.
func (o *Observer) Requests() []models.HumanInputRequest {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]models.HumanInputRequest, 0, len(o.reqOrder))
	for _, id := range o.reqOrder {
		out = append(out, o.requests[id].Clone())
	}
	return out
}

// Pending returns only requests still awaiting a response.
func (o *Observer) Pending() []models.HumanInputRequest {
	var out []models.HumanInputRequest
	for _, r := range o.Requests() {
		if r.Pending() {
			out = append(out, r)
		}
	}
	return out
}

// History returns received content newest first.
func (o *Observer) History() []models.ContentItem {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.content.History()
}

// Current returns the content item under the viewer cursor.
func (o *Observer) Current() (models.ContentItem, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cursor.Current(o.content)
}

// Navigate moves the viewer cursor with wrap-around.
func (o *Observer) Navigate(dir content.Direction) (models.ContentItem, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cursor.Navigate(o.content, dir)
}
