package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/agenthud/internal/content"
	"github.com/zulandar/agenthud/internal/discovery"
	"github.com/zulandar/agenthud/internal/models"
	"github.com/zulandar/agenthud/internal/protocol"
)

// DefaultRequestTimeout is how long a human has to answer by default.
const DefaultRequestTimeout = 300 * time.Second

// responseGrace is how long past the advertised timeout the agent keeps
// waiting for an answer.
const responseGrace = 5 * time.Second

// AgentOpts configures Connect.
type AgentOpts struct {
	Name           string
	Metadata       map[string]any
	Host           string
	MinPort        int
	MaxPort        int
	AttemptTimeout time.Duration
	Logger         *slog.Logger
}

// Agent is a connected agent. Its methods are safe for concurrent use.
type Agent struct {
	name string
	log  *slog.Logger
	sess *Session

	mu      sync.Mutex
	waiters map[string]chan Answer
}

// Answer is a human's reply to a request.
type Answer struct {
	RequestID         string
	Response          string
	AdditionalContext string
}

// Question is one human input request.
type Question struct {
	Type     models.RequestType
	Message  string
	Priority models.Priority
	Options  []string
	Context  any
	// Timeout is sent to the hub and bounds the wait. Zero means
	// DefaultRequestTimeout.
	Timeout time.Duration
}

// Connect discovers the hub and registers as an agent.
func Connect(ctx context.Context, opts AgentOpts) (*Agent, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return nil, fmt.Errorf("client: agent name is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	a := &Agent{
		name:    opts.Name,
		log:     log.With("component", "agent", "name", opts.Name),
		waiters: make(map[string]chan Answer),
	}
	dialer := &WSDialer{
		Host: opts.Host,
		Register: map[string]any{
			"type":     protocol.TypeRegisterAgent,
			"name":     opts.Name,
			"metadata": opts.Metadata,
		},
		OnFrame: a.handleFrame,
	}
	scanner := &discovery.Scanner{
		Dialer:         discovery.DialFunc(func(ctx context.Context, port int) (discovery.Session, error) { return dialer.DialSession(ctx, port) }),
		MinPort:        opts.MinPort,
		MaxPort:        opts.MaxPort,
		AttemptTimeout: opts.AttemptTimeout,
	}
	sess, port, err := scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}
	a.sess = sess.(*Session)
	a.log.Info("registered with hub", "port", port, "agent_id", a.ID())
	return a, nil
}

// ID is the hub-assigned agent id.
func (a *Agent) ID() string { return a.sess.Ack().AgentID }

// Name is the registered name.
func (a *Agent) Name() string { return a.name }

// Port is the hub port.
func (a *Agent) Port() int { return a.sess.Port() }

// Done is closed when the hub connection drops.
func (a *Agent) Done() <-chan struct{} { return a.sess.Done() }

// Close disconnects from the hub.
func (a *Agent) Close() error { return a.sess.Close() }

func (a *Agent) handleFrame(raw []byte) {
	f, err := protocol.ParseFrame(raw)
	if err != nil {
		a.log.Warn("bad frame from hub", "error", err)
		return
	}
	if f.Type != protocol.TypeHumanInputResponse {
		return
	}
	ref := f.ClientRequestID
	if ref == "" {
		ref = f.RequestID
	}
	a.mu.Lock()
	ch, ok := a.waiters[ref]
	delete(a.waiters, ref)
	a.mu.Unlock()
	if !ok {
		a.log.Debug("response for unknown request", "request_id", f.RequestID)
		return
	}
	ans := Answer{RequestID: f.RequestID, AdditionalContext: f.AdditionalContext}
	if f.Response != nil {
		ans.Response = *f.Response
	}
	ch <- ans
}

// RequestHumanInput sends q and blocks until a human answers, the timeout
// (plus a short grace period) passes, or ctx ends.
func (a *Agent) RequestHumanInput(ctx context.Context, q Question) (Answer, error) {
	timeout := q.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	ref := fmt.Sprintf("req_%d_%s", time.Now().Unix(), uuid.NewString()[:8])
	ch := make(chan Answer, 1)
	a.mu.Lock()
	a.waiters[ref] = ch
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.waiters, ref)
		a.mu.Unlock()
	}()

	options := q.Options
	if options == nil {
		options = []string{}
	}
	data := map[string]any{
		"request_type": string(q.Type),
		"message":      q.Message,
		"options":      options,
		"timeout":      int(timeout / time.Second),
	}
	if q.Priority != "" {
		data["priority"] = string(q.Priority)
	}
	if q.Context != nil {
		data["context"] = q.Context
	}
	frame := map[string]any{
		"type":      protocol.TypeHumanInputRequest,
		"requestId": ref,
		"data":      data,
	}
	if err := a.sess.Send(frame); err != nil {
		return Answer{}, err
	}
	a.log.Info("sent human input request", "ref", ref, "type", string(q.Type))

	timer := time.NewTimer(timeout + responseGrace)
	defer timer.Stop()
	select {
	case ans := <-ch:
		return ans, nil
	case <-timer.C:
		return Answer{}, ErrTimeout
	case <-a.sess.Done():
		return Answer{}, ErrNotConnected
	case <-ctx.Done():
		return Answer{}, ctx.Err()
	}
}

// RequestApproval asks to approve action and reports whether it was approved.
func (a *Agent) RequestApproval(ctx context.Context, action string, details any, timeout time.Duration) (bool, error) {
	ans, err := a.RequestHumanInput(ctx, Question{
		Type:    models.RequestApproval,
		Message: "Approval needed: " + action,
		Options: []string{"Approve", "Reject"},
		Context: details,
		Timeout: timeout,
	})
	if err != nil {
		return false, err
	}
	return isAffirmative(ans.Response, "approve", "approved", "yes", "y"), nil
}

// RequestChoice asks the human to pick one of choices.
func (a *Agent) RequestChoice(ctx context.Context, question string, choices []string, details any, timeout time.Duration) (string, error) {
	ans, err := a.RequestHumanInput(ctx, Question{
		Type:    models.RequestChoice,
		Message: question,
		Options: choices,
		Context: details,
		Timeout: timeout,
	})
	return ans.Response, err
}

// RequestContext asks for free-text clarification.
func (a *Agent) RequestContext(ctx context.Context, query string, timeout time.Duration) (string, error) {
	ans, err := a.RequestHumanInput(ctx, Question{
		Type:    models.RequestText,
		Message: "Need clarification: " + query,
		Timeout: timeout,
	})
	return ans.Response, err
}

// ConfirmAction asks the human to confirm a critical action.
func (a *Agent) ConfirmAction(ctx context.Context, description string, details any, timeout time.Duration) (bool, error) {
	var c any
	if details != nil {
		c = map[string]any{"action_details": details}
	}
	ans, err := a.RequestHumanInput(ctx, Question{
		Type:    models.RequestConfirmation,
		Message: "Confirm action: " + description,
		Options: []string{"Confirm", "Cancel"},
		Context: c,
		Timeout: timeout,
	})
	if err != nil {
		return false, err
	}
	return isAffirmative(ans.Response, "confirm", "confirmed", "yes", "ok"), nil
}

func isAffirmative(resp string, accepted ...string) bool {
	resp = strings.ToLower(strings.TrimSpace(resp))
	for _, a := range accepted {
		if resp == a {
			return true
		}
	}
	return false
}

func (a *Agent) source() content.Source {
	return content.Source{AgentID: a.ID(), AgentName: a.name}
}

func (a *Agent) emit(eventType string, item models.ContentItem) (string, error) {
	item.ID = uuid.NewString()
	if err := a.sess.Send(map[string]any{"type": eventType, "data": item}); err != nil {
		return "", err
	}
	return item.ID, nil
}

// EmitMarkdown publishes a markdown document and returns its content id.
func (a *Agent) EmitMarkdown(body, title string) (string, error) {
	return a.emit(protocol.TypeMarkdownContent, content.Markdown(a.source(), body, title))
}

// EmitCode publishes a code snippet.
func (a *Agent) EmitCode(code, language, title, description string) (string, error) {
	return a.emit(protocol.TypeCodeContent, content.Code(a.source(), code, language, title, description))
}

// EmitImage publishes an image URL or data: URL.
func (a *Agent) EmitImage(url, title, caption string) (string, error) {
	return a.emit(protocol.TypeImageContent, content.Image(a.source(), url, title, caption))
}

func (a *Agent) activity(payload map[string]any) (string, error) {
	id := uuid.NewString()
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("client: encode activity: %w", err)
	}
	if err := a.sess.Send(map[string]any{
		"id":      id,
		"type":    protocol.TypeAgentMessage,
		"payload": json.RawMessage(raw),
	}); err != nil {
		return "", err
	}
	return id, nil
}

// EmitLog sends a log line at level (debug, info, warning, error, success).
func (a *Agent) EmitLog(message, level string) (string, error) {
	if level == "" {
		level = "info"
	}
	return a.activity(map[string]any{"type": "emit_log", "message": message, "level": level, "source": a.name})
}

// EmitNotification sends a titled notification.
func (a *Agent) EmitNotification(title, message, kind string, priority models.Priority) (string, error) {
	if kind == "" {
		kind = "info"
	}
	if priority == "" {
		priority = models.PriorityMedium
	}
	return a.activity(map[string]any{
		"type": "emit_notification", "title": title, "message": message,
		"level": kind, "priority": string(priority),
	})
}

// ShowProgress reports current out of total for operation.
func (a *Agent) ShowProgress(current, total int, message, operation string) (string, error) {
	return a.activity(map[string]any{
		"type": "show_progress", "current": current, "total": total,
		"message": message, "operation": operation,
	})
}

// UpdateStatus patches the agent's status and merges metadata.
func (a *Agent) UpdateStatus(status string, metadata map[string]any) error {
	data := map[string]any{"status": status}
	if len(metadata) > 0 {
		data["metadata"] = metadata
	}
	return a.sess.Send(map[string]any{"type": protocol.TypeAgentUpdate, "data": data})
}
