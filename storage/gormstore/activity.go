package gormstore

import (
	"context"
	"time"

	rsvp "github.com/cactusmakesperfect/rsvp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var activityKinds = map[string]struct{}{
	"invite_sent":    {},
	"auth_success":   {},
	"rsvp_submitted": {},
}

// ActivitySink is an rsvp.AuditSink that records successful invite,
// login and RSVP events into user_activity. Other events are ignored.
type ActivitySink struct {
	db      *gorm.DB
	logger  *zap.Logger
	timeout time.Duration
}

// NewActivitySink returns a sink that gives each insert five seconds.
func NewActivitySink(db *gorm.DB, logger *zap.Logger) *ActivitySink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivitySink{db: db, logger: logger, timeout: 5 * time.Second}
}

// Emit inserts one row. Failures are logged, never returned.
func (a *ActivitySink) Emit(ctx context.Context, event rsvp.AuditEvent) {
	if a == nil || a.db == nil || !event.Success {
		return
	}
	if _, ok := activityKinds[event.EventType]; !ok {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	row := activityRow{
		Email:     event.Subject,
		Kind:      event.EventType,
		IP:        event.IP,
		Meta:      event.Metadata,
		CreatedAt: event.Timestamp,
	}
	if err := a.db.WithContext(ctx).Create(&row).Error; err != nil {
		a.logger.Warn("activity insert failed", zap.String("kind", event.EventType), zap.Error(err))
	}
}

// Activity is one user_activity row.
type Activity struct {
	Email     string
	Kind      string
	Meta      map[string]string
	CreatedAt time.Time
}

// RecentActivity returns the newest limit rows for email, newest first.
func (s *Store) RecentActivity(ctx context.Context, email string, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []activityRow
	if err := s.db.WithContext(ctx).
		Where("email = ?", email).
		Order("id desc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]Activity, 0, len(rows))
	for _, r := range rows {
		out = append(out, Activity{Email: r.Email, Kind: r.Kind, Meta: r.Meta, CreatedAt: r.CreatedAt})
	}
	return out, nil
}
