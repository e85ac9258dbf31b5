package journal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/zulandar/agenthud/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultQueueSize = 1024

type op func(db *gorm.DB) error

// Journal records hub events asynchronously. Its recorder methods never
// block: when the queue is full the event is dropped and logged.
type Journal struct {
	db  *gorm.DB
	log *slog.Logger
	ops chan op
}

// New wraps an open, migrated database.
func New(db *gorm.DB, log *slog.Logger) *Journal {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Journal{db: db, log: log.With("component", "journal"), ops: make(chan op, defaultQueueSize)}
}

// Run applies queued writes until ctx is cancelled.
func (j *Journal) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-j.ops:
			if err := fn(j.db.WithContext(ctx)); err != nil {
				j.log.Warn("journal write failed", "error", err)
			}
		}
	}
}

// Sync blocks until every write queued before it has been applied.
func (j *Journal) Sync(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case j.ops <- func(*gorm.DB) error { close(done); return nil }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Journal) enqueue(kind string, fn op) {
	select {
	case j.ops <- fn:
	default:
		j.log.Warn("journal queue full, dropping event", "kind", kind)
	}
}

func upsert(db *gorm.DB, v interface{}) error {
	return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(v).Error
}

func agentRecord(a models.Agent) *models.AgentRecord {
	return &models.AgentRecord{
		ID:           a.ID,
		Name:         a.Name,
		Status:       string(a.Status),
		StatusText:   a.StatusText,
		Metadata:     marshalJSON(a.Metadata),
		ConnectedAt:  a.ConnectedAt,
		LastActivity: a.LastActivity,
	}
}

func (j *Journal) AgentConnected(a models.Agent) {
	rec := agentRecord(a)
	j.enqueue("agent-connected", func(db *gorm.DB) error { return upsert(db, rec) })
}

func (j *Journal) AgentUpdated(a models.Agent) {
	rec := agentRecord(a)
	j.enqueue("agent-update", func(db *gorm.DB) error { return upsert(db, rec) })
}

func (j *Journal) AgentDisconnected(a models.Agent, at time.Time) {
	j.enqueue("agent-disconnected", func(db *gorm.DB) error {
		return db.Model(&models.AgentRecord{ID: a.ID}).Updates(map[string]interface{}{
			"status":          string(models.AgentDisconnected),
			"disconnected_at": at,
		}).Error
	})
}

func (j *Journal) AgentMessage(agentID, kind string, payload []byte, at time.Time) {
	rec := &models.MessageRecord{AgentID: agentID, Kind: kind, Payload: string(payload), CreatedAt: at}
	j.enqueue("agent-message", func(db *gorm.DB) error { return db.Create(rec).Error })
}

func (j *Journal) RequestSubmitted(r models.HumanInputRequest) {
	rec := &models.RequestRecord{
		ID:             r.ID,
		AgentID:        r.AgentID,
		AgentName:      r.AgentName,
		RequestType:    string(r.RequestType),
		Message:        r.Message,
		Options:        marshalJSON(r.Options),
		Context:        string(r.Context),
		TimeoutSeconds: r.TimeoutSeconds,
		Priority:       string(r.Priority),
		Status:         string(r.Status),
		CreatedAt:      r.CreatedAt,
	}
	j.enqueue("request", func(db *gorm.DB) error { return upsert(db, rec) })
}

func (j *Journal) RequestResolved(r models.HumanInputRequest, additionalContext string) {
	resp := &models.ResponseRecord{RequestID: r.ID, AdditionalContext: additionalContext}
	if r.Response != nil {
		resp.Response = *r.Response
	}
	if r.CompletedAt != nil {
		resp.CreatedAt = *r.CompletedAt
	}
	j.enqueue("response", func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.RequestRecord{ID: r.ID}).Updates(map[string]interface{}{
				"status":       string(r.Status),
				"completed_at": r.CompletedAt,
			}).Error; err != nil {
				return err
			}
			return tx.Create(resp).Error
		})
	})
}

func (j *Journal) ContentAppended(item models.ContentItem) {
	rec := &models.ContentRecord{
		ID:        item.ID,
		Type:      string(item.Type),
		Title:     item.Title,
		Language:  item.Language,
		Caption:   item.Caption,
		AgentID:   item.AgentID,
		AgentName: item.AgentName,
		Content:   item.Content,
		CreatedAt: item.Timestamp,
	}
	j.enqueue("content", func(db *gorm.DB) error { return upsert(db, rec) })
}

// RecentRequests returns up to limit requests, newest first.
func (j *Journal) RecentRequests(ctx context.Context, limit int) ([]models.RequestRecord, error) {
	var recs []models.RequestRecord
	if err := j.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("journal: recent requests: %w", err)
	}
	return recs, nil
}

// Responses returns every response recorded for requestID, oldest first.
func (j *Journal) Responses(ctx context.Context, requestID string) ([]models.ResponseRecord, error) {
	var recs []models.ResponseRecord
	if err := j.db.WithContext(ctx).Where("request_id = ?", requestID).Order("id ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("journal: responses for %s: %w", requestID, err)
	}
	return recs, nil
}

// RecentMessages returns up to limit activity messages, newest first.
func (j *Journal) RecentMessages(ctx context.Context, limit int) ([]models.MessageRecord, error) {
	var recs []models.MessageRecord
	if err := j.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("journal: recent messages: %w", err)
	}
	return recs, nil
}

// Prune deletes journal rows older than cutoff and returns how many went.
// Pending requests are kept regardless of age.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	err := j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		steps := []struct {
			name  string
			model interface{}
			where string
			args  []interface{}
		}{
			{"messages", &models.MessageRecord{}, "created_at < ?", []interface{}{cutoff}},
			{"responses", &models.ResponseRecord{}, "created_at < ?", []interface{}{cutoff}},
			{"requests", &models.RequestRecord{}, "created_at < ? AND status <> ?", []interface{}{cutoff, string(models.RequestPending)}},
			{"content", &models.ContentRecord{}, "created_at < ?", []interface{}{cutoff}},
			{"agents", &models.AgentRecord{}, "disconnected_at IS NOT NULL AND disconnected_at < ?", []interface{}{cutoff}},
		}
		for _, s := range steps {
			res := tx.Where(s.where, s.args...).Delete(s.model)
			if res.Error != nil {
				return fmt.Errorf("prune %s: %w", s.name, res.Error)
			}
			total += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("journal: %w", err)
	}
	return total, nil
}
