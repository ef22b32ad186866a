package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Log is one recorded platform-admin action. Details is a JSON blob
// with action-specific context (request payload fragments, ids).
type Log struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	ActorID   string    `json:"actorId" gorm:"type:uuid;not null;index"`
	Action    string    `json:"action" gorm:"size:100;not null;index"`
	Resource  string    `json:"resource" gorm:"size:255;not null"`
	Details   string    `json:"details,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime;index"`
}

// TableName keeps the historical table name.
func (Log) TableName() string { return "audit_logs" }

// Entry describes an action to record.
type Entry struct {
	ActorID  string
	Action   string
	Resource string
	Details  any
}

// Recorder writes the audit trail. Recording never fails the calling
// request: write errors are logged and swallowed.
type Recorder struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewRecorder creates the recorder.
func NewRecorder(db *gorm.DB, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{db: db, log: log}
}

// Record persists one entry.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil || entry.ActorID == "" || entry.Action == "" {
		return
	}

	details := ""
	if entry.Details != nil {
		if b, err := json.Marshal(entry.Details); err == nil {
			details = string(b)
		}
	}

	row := Log{
		ID:       uuid.NewString(),
		ActorID:  entry.ActorID,
		Action:   entry.Action,
		Resource: entry.Resource,
		Details:  details,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		r.log.Warn("audit write failed",
			zap.String("action", entry.Action),
			zap.String("resource", entry.Resource),
			zap.Error(err))
	}
}

// Filter narrows a List query. Zero values mean no constraint.
type Filter struct {
	ActorID string
	Action  string
	From    *time.Time
	To      *time.Time
}

// List returns matching entries newest first, plus the unfiltered-page
// total for pagination.
func (r *Recorder) List(ctx context.Context, f Filter, limit, offset int) ([]*Log, int64, error) {
	q := r.db.WithContext(ctx).Model(&Log{})
	if f.ActorID != "" {
		q = q.Where("actor_id = ?", f.ActorID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []*Log
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&logs).Error
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
