package client

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/agenthud/internal/content"
	"github.com/zulandar/agenthud/internal/discovery"
	"github.com/zulandar/agenthud/internal/hub"
	"github.com/zulandar/agenthud/internal/models"
	"github.com/zulandar/agenthud/internal/protocol"
	"github.com/zulandar/agenthud/internal/server"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// startHub runs a hub behind an httptest server and returns its port.
func startHub(t *testing.T) (*hub.Hub, int) {
	t.Helper()
	h := hub.New(hub.Opts{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	srv := httptest.NewServer(server.NewRouter(server.RouterOpts{Hub: h}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	_, portStr, _ := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	port, _ := strconv.Atoi(portStr)
	return h, port
}

// freePort returns a port nothing is listening on.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestWSDialer_RegistersAndAcks(t *testing.T) {
	_, port := startHub(t)
	d := &WSDialer{Register: map[string]string{"type": protocol.TypeRegisterObserver}}
	sess, err := d.DialSession(context.Background(), port)
	if err != nil {
		t.Fatalf("DialSession: %v", err)
	}
	defer sess.Close()
	if ack := sess.Ack(); ack.Role != protocol.RoleObserver || !ack.Success {
		t.Errorf("ack = %+v", ack)
	}
	if sess.Port() != port {
		t.Errorf("Port() = %d", sess.Port())
	}

	sess.Close()
	select {
	case <-sess.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Close")
	}
	if err := sess.Send(map[string]string{"type": "x"}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send after Close = %v", err)
	}
}

func TestWSDialer_NoHub(t *testing.T) {
	d := &WSDialer{Register: map[string]string{"type": protocol.TypeRegisterObserver}}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, err := d.Dial(ctx, freePort(t)); err == nil {
		t.Error("dial to closed port should fail")
	}
}

func TestConnect_DiscoversHubAfterDeadPorts(t *testing.T) {
	_, port := startHub(t)
	// The range starts one below the hub; that port is most likely closed
	// and is skipped either way.
	a, err := Connect(context.Background(), AgentOpts{
		Name: "Scanner", MinPort: port - 1, MaxPort: port, AttemptTimeout: 300 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer a.Close()
	if a.ID() == "" {
		t.Error("no agent id")
	}
	if a.Port() != port && a.Port() != port-1 {
		t.Errorf("Port() = %d", a.Port())
	}
}

func TestConnect_NotFound(t *testing.T) {
	p := freePort(t)
	_, err := Connect(context.Background(), AgentOpts{Name: "Lonely", MinPort: p, MaxPort: p, AttemptTimeout: 100 * time.Millisecond})
	if !errors.Is(err, discovery.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestConnect_RequiresName(t *testing.T) {
	if _, err := Connect(context.Background(), AgentOpts{}); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestAgentObserverRoundTrip(t *testing.T) {
	h, port := startHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen []string
	obs := NewObserver(ObserverOpts{
		MinPort: port, MaxPort: port, AttemptTimeout: time.Second,
		OnEvent: func(f protocol.Frame) {
			mu.Lock()
			seen = append(seen, f.Type)
			mu.Unlock()
		},
	})
	obsErr := make(chan error, 1)
	go func() { obsErr <- obs.Run(ctx) }()
	eventually(t, "observer connect", obs.Connected)

	agent, err := Connect(ctx, AgentOpts{Name: "Analyst", MinPort: port, MaxPort: port, AttemptTimeout: time.Second})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer agent.Close()
	eventually(t, "agent mirrored", func() bool { return len(obs.Agents()) == 1 })

	if err := agent.UpdateStatus("working", map[string]any{"step": 1}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	eventually(t, "status mirrored", func() bool {
		as := obs.Agents()
		return len(as) == 1 && as[0].Status == models.AgentStatusOther && as[0].StatusText == "working"
	})

	type result struct {
		ok  bool
		err error
	}
	resc := make(chan result, 1)
	go func() {
		ok, err := agent.RequestApproval(ctx, "deploy", map[string]string{"env": "prod"}, 10*time.Second)
		resc <- result{ok, err}
	}()

	eventually(t, "pending request mirrored", func() bool { return len(obs.Pending()) == 1 })
	req := obs.Pending()[0]
	if req.AgentName != "Analyst" || req.RequestType != models.RequestApproval {
		t.Errorf("mirrored request = %+v", req)
	}
	if req.Message != "Approval needed: deploy" || len(req.Options) != 2 {
		t.Errorf("message/options = %q %v", req.Message, req.Options)
	}
	if err := obs.Respond(req.ID, "Approve", ""); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	select {
	case r := <-resc:
		if r.err != nil || !r.ok {
			t.Errorf("RequestApproval = %v, %v", r.ok, r.err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("agent never got the answer")
	}
	eventually(t, "completion mirrored", func() bool { return len(obs.Pending()) == 0 && len(obs.Requests()) == 1 })

	if _, err := agent.EmitMarkdown("# report", ""); err != nil {
		t.Fatalf("EmitMarkdown: %v", err)
	}
	if _, err := agent.EmitCode("x = 1", "python", "", ""); err != nil {
		t.Fatalf("EmitCode: %v", err)
	}
	eventually(t, "content mirrored", func() bool { return len(obs.History()) == 2 })
	if cur, _ := obs.Current(); cur.Title != "Python Code" {
		t.Errorf("Current() = %+v", cur)
	}
	if prev, _ := obs.Navigate(content.Previous); prev.Title != "Markdown Content" {
		t.Errorf("Navigate(Previous) = %+v", prev)
	}

	if _, err := agent.EmitLog("hello", ""); err != nil {
		t.Fatalf("EmitLog: %v", err)
	}
	eventually(t, "agent active", func() bool {
		as := obs.Agents()
		return len(as) == 1 && as[0].Status == models.AgentActive
	})

	if err := obs.ClearRequests(); err != nil {
		t.Fatalf("ClearRequests: %v", err)
	}
	eventually(t, "requests cleared", func() bool { return len(obs.Requests()) == 0 })
	snap, _ := h.Snapshot(ctx)
	if len(snap.Requests) != 0 {
		t.Errorf("hub still has %d requests", len(snap.Requests))
	}

	agent.Close()
	eventually(t, "agent removed", func() bool { return len(obs.Agents()) == 0 })

	mu.Lock()
	types := strings.Join(seen, ",")
	mu.Unlock()
	for _, want := range []string{protocol.TypeAgentConnected, protocol.TypeAgentMessage, protocol.TypeRequestsCleared, protocol.TypeAgentDisconnected} {
		if !strings.Contains(types, want) {
			t.Errorf("observer never saw %s (saw %s)", want, types)
		}
	}

	cancel()
	if err := <-obsErr; err != nil {
		t.Errorf("observer Run = %v", err)
	}
}

func TestRequestHumanInput_Timeout(t *testing.T) {
	_, port := startHub(t)
	agent, err := Connect(context.Background(), AgentOpts{Name: "Impatient", MinPort: port, MaxPort: port})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer agent.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = agent.RequestHumanInput(ctx, Question{Type: models.RequestText, Message: "anyone?"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context deadline", err)
	}
	agent.mu.Lock()
	n := len(agent.waiters)
	agent.mu.Unlock()
	if n != 0 {
		t.Errorf("%d waiters left behind", n)
	}
}

func TestObserver_NotConnected(t *testing.T) {
	o := NewObserver(ObserverOpts{})
	if err := o.Respond("r", "x", ""); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Respond = %v", err)
	}
	if err := o.ClearRequests(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("ClearRequests = %v", err)
	}
}

func TestObserver_ApplyDisconnectAndClear(t *testing.T) {
	o := NewObserver(ObserverOpts{})
	frames := []string{
		`{"type":"agent-connected","data":{"id":"a1","name":"A","status":"Connected"}}`,
		`{"type":"agent-connected","data":{"id":"a2","name":"B","status":"Connected"}}`,
		`{"type":"human-input-request","data":{"id":"r1","agent_id":"a1","status":"Pending","options":[]}}`,
		`{"type":"agent-disconnected","data":{"agentId":"a1","name":"A"}}`,
	}
	for _, raw := range frames {
		o.handleFrame([]byte(raw))
	}
	agents := o.Agents()
	if len(agents) != 1 || agents[0].ID != "a2" {
		t.Errorf("agents = %+v", agents)
	}
	if len(o.Requests()) != 1 {
		t.Error("request should outlive its agent")
	}
	o.handleFrame([]byte(`{"type":"requests-cleared","data":{"count":1}}`))
	if len(o.Requests()) != 0 {
		t.Error("requests not cleared")
	}
}

func TestIsAffirmative(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Approve", true},
		{" yes ", true},
		{"Reject", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isAffirmative(tt.in, "approve", "approved", "yes", "y"); got != tt.want {
			t.Errorf("isAffirmative(%q) = %v", tt.in, got)
		}
	}
}
