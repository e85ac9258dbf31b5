package journal

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/agenthud/internal/config"
	"github.com/zulandar/agenthud/internal/hub"
	"github.com/zulandar/agenthud/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Journal must satisfy the hub's recorder hook.
var _ hub.Recorder = (*Journal)(nil)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func runJournal(t *testing.T) (*Journal, *gorm.DB) {
	t.Helper()
	db := testDB(t)
	j := New(db, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go j.Run(ctx)
	return j, db
}

func flush(t *testing.T, j *Journal) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := j.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

var base = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLDSN(config.MySQLConfig{Host: "db.internal", Port: 3307, User: "hud", Password: "pw", Database: "audit"})
	for _, want := range []string{"hud:pw@tcp(db.internal:3307)/audit", "parseTime=true"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN %q missing %q", dsn, want)
		}
	}
}

func TestOpen_Sqlite(t *testing.T) {
	db, err := Open(config.JournalConfig{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, m := range AllModels() {
		if !db.Migrator().HasTable(m) {
			t.Errorf("table for %T not created", m)
		}
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(config.JournalConfig{Driver: "oracle"}); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestAgentLifecycle(t *testing.T) {
	j, db := runJournal(t)
	a := models.Agent{ID: "a1", Name: "Analyst", Status: models.AgentConnected, ConnectedAt: base, LastActivity: base}
	j.AgentConnected(a)
	a.SetStatus("compiling")
	a.Metadata = map[string]any{"step": 3}
	j.AgentUpdated(a)
	j.AgentDisconnected(a, base.Add(time.Minute))
	flush(t, j)

	var rec models.AgentRecord
	if err := db.First(&rec, "id = ?", "a1").Error; err != nil {
		t.Fatalf("agent row: %v", err)
	}
	if rec.Status != string(models.AgentDisconnected) {
		t.Errorf("Status = %q", rec.Status)
	}
	if rec.StatusText != "compiling" {
		t.Errorf("StatusText = %q", rec.StatusText)
	}
	if rec.DisconnectedAt == nil {
		t.Error("DisconnectedAt not set")
	}
	var md map[string]any
	json.Unmarshal([]byte(rec.Metadata), &md)
	if md["step"] != float64(3) {
		t.Errorf("Metadata = %q", rec.Metadata)
	}
}

func TestRequestAndResponses(t *testing.T) {
	j, _ := runJournal(t)
	r := models.HumanInputRequest{
		ID: "r1", AgentID: "a1", AgentName: "Analyst", RequestType: models.RequestApproval,
		Message: "proceed?", Priority: models.PriorityHigh, Status: models.RequestPending,
		Options: []string{"Yes", "No"}, CreatedAt: base,
	}
	j.RequestSubmitted(r)
	r.Complete("Yes", base.Add(time.Second))
	j.RequestResolved(r, "looks fine")
	r.Complete("No", base.Add(2*time.Second))
	j.RequestResolved(r, "")
	flush(t, j)

	ctx := context.Background()
	recs, err := j.RecentRequests(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRequests: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("requests = %d", len(recs))
	}
	if recs[0].Status != string(models.RequestCompleted) || recs[0].CompletedAt == nil {
		t.Errorf("request row = %+v", recs[0])
	}
	if recs[0].Options != `["Yes","No"]` {
		t.Errorf("Options = %q", recs[0].Options)
	}

	resps, err := j.Responses(ctx, "r1")
	if err != nil {
		t.Fatalf("Responses: %v", err)
	}
	if len(resps) != 2 || resps[0].Response != "Yes" || resps[1].Response != "No" {
		t.Fatalf("responses = %+v", resps)
	}
	if resps[0].AdditionalContext != "looks fine" || resps[0].RespondedBy != "human" {
		t.Errorf("first response = %+v", resps[0])
	}
}

func TestRecentRequests_NewestFirstAndLimit(t *testing.T) {
	j, _ := runJournal(t)
	for i, id := range []string{"old", "mid", "new"} {
		j.RequestSubmitted(models.HumanInputRequest{
			ID: id, Status: models.RequestPending, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	flush(t, j)
	recs, err := j.RecentRequests(context.Background(), 2)
	if err != nil {
		t.Fatalf("RecentRequests: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != "new" || recs[1].ID != "mid" {
		t.Errorf("recs = %+v", recs)
	}
}

func TestMessagesAndContent(t *testing.T) {
	j, db := runJournal(t)
	j.AgentMessage("a1", "emit_log", []byte(`{"message":"hi"}`), base)
	j.ContentAppended(models.ContentItem{ID: "c1", Type: models.ContentCode, Title: "Go Code", Content: "x := 1", Timestamp: base})
	j.ContentAppended(models.ContentItem{ID: "c1", Type: models.ContentCode, Title: "Go Code", Content: "x := 1", Timestamp: base})
	flush(t, j)

	msgs, err := j.RecentMessages(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Kind != "emit_log" || !strings.Contains(msgs[0].Payload, "hi") {
		t.Errorf("messages = %+v", msgs)
	}
	var n int64
	db.Model(&models.ContentRecord{}).Count(&n)
	if n != 1 {
		t.Errorf("content rows = %d, want 1", n)
	}
}

func TestPrune(t *testing.T) {
	j, db := runJournal(t)
	old := base.Add(-30 * 24 * time.Hour)

	j.AgentMessage("a1", "emit_log", nil, old)
	j.AgentMessage("a1", "emit_log", nil, base)
	j.RequestSubmitted(models.HumanInputRequest{ID: "stale-pending", Status: models.RequestPending, CreatedAt: old})
	done := models.HumanInputRequest{ID: "stale-done", Status: models.RequestPending, CreatedAt: old}
	j.RequestSubmitted(done)
	done.Complete("ok", old.Add(time.Minute))
	j.RequestResolved(done, "")
	j.ContentAppended(models.ContentItem{ID: "c-old", Type: models.ContentMarkdown, Timestamp: old})
	gone := models.Agent{ID: "a-old", Name: "Gone", ConnectedAt: old, LastActivity: old}
	j.AgentConnected(gone)
	j.AgentDisconnected(gone, old.Add(time.Hour))
	flush(t, j)

	n, err := j.Prune(context.Background(), base.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	// one message, one response, one completed request, one content, one agent
	if n != 5 {
		t.Errorf("pruned %d rows, want 5", n)
	}

	var reqs []models.RequestRecord
	db.Find(&reqs)
	if len(reqs) != 1 || reqs[0].ID != "stale-pending" {
		t.Errorf("remaining requests = %+v, want only the pending one", reqs)
	}
	var msgs int64
	db.Model(&models.MessageRecord{}).Count(&msgs)
	if msgs != 1 {
		t.Errorf("messages left = %d", msgs)
	}
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	j := New(testDB(t), nil)
	for i := 0; i < defaultQueueSize+10; i++ {
		j.AgentMessage("a", "k", nil, base)
	}
	if len(j.ops) != defaultQueueSize {
		t.Errorf("queue len = %d, want %d", len(j.ops), defaultQueueSize)
	}
}

func TestNextRun(t *testing.T) {
	d := NextRun("0 3 * * *")
	if d <= 0 || d > 24*time.Hour {
		t.Errorf("NextRun(daily) = %v", d)
	}
	if d := NextRun("* * * * *"); d <= 0 || d > 61*time.Second {
		t.Errorf("NextRun(every minute) = %v", d)
	}
	if d := NextRun("not a cron expr"); d != 0 {
		t.Errorf("NextRun(invalid) = %v, want 0", d)
	}
}

func TestStartRetention(t *testing.T) {
	j := New(testDB(t), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := j.StartRetention(ctx, "bogus", time.Hour); err == nil {
		t.Error("expected error for bad schedule")
	}
	if err := j.StartRetention(ctx, "bogus", 0); err != nil {
		t.Errorf("disabled retention should ignore schedule, got %v", err)
	}
	if err := j.StartRetention(ctx, "0 3 * * *", 24*time.Hour); err != nil {
		t.Errorf("StartRetention: %v", err)
	}
}
