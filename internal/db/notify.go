package db

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"discharge-assistant/internal/audit"
)

// AuditStore appends audit events to the audit_events table and announces
// each one on a Postgres NOTIFY channel so dashboards can follow along.
type AuditStore struct {
	DB      *sql.DB
	Channel string
	Logger  *zap.Logger
}

// NewAuditStore constructs a new AuditStore.  An empty channel disables
// notifications.
func NewAuditStore(db *sql.DB, channel string, logger *zap.Logger) *AuditStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditStore{DB: db, Channel: channel, Logger: logger}
}

// Record inserts the event and notifies listeners with its kind.  Failures
// are logged and swallowed.
func (s *AuditStore) Record(ctx context.Context, ev audit.Event) {
	ev = audit.Stamp(ev)
	if _, err := s.DB.ExecContext(ctx,
		`INSERT INTO audit_events (kind, subject, detail, created_at)
         VALUES ($1, $2, $3, $4)`,
		string(ev.Kind), ev.Subject, ev.Detail, ev.At,
	); err != nil {
		s.Logger.Warn("failed to store audit event", zap.String("kind", string(ev.Kind)), zap.Error(err))
		return
	}
	if s.Channel == "" {
		return
	}
	// NOTIFY takes no bind parameters; pg_notify does.
	if _, err := s.DB.ExecContext(ctx, `SELECT pg_notify($1, $2)`, s.Channel, string(ev.Kind)); err != nil {
		s.Logger.Warn("failed to notify audit channel", zap.String("channel", s.Channel), zap.Error(err))
	}
}
