// Package audit records patient lookups and web fallback use.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Kind names an audited action.
type Kind string

const (
	PatientLookup Kind = "patient_lookup"
	WebFallback   Kind = "web_fallback"
)

// Event is one append-only audit entry.
type Event struct {
	Kind    Kind
	Subject string // patient name or query text
	Detail  string
	At      time.Time
}

// Recorder persists audit events.  Implementations must not fail the
// caller's turn; errors are reported to their own logs.
type Recorder interface {
	Record(ctx context.Context, ev Event)
}

// LogRecorder writes audit events as structured log lines.
type LogRecorder struct {
	Logger *zap.Logger
}

// NewLogRecorder constructs a LogRecorder.
func NewLogRecorder(logger *zap.Logger) *LogRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogRecorder{Logger: logger.Named("audit")}
}

// Record writes one info line per event.
func (r *LogRecorder) Record(_ context.Context, ev Event) {
	switch ev.Kind {
	case PatientLookup:
		r.Logger.Info("receptionist retrieved report", zap.String("patient", ev.Subject), zap.Time("at", ev.At))
	case WebFallback:
		r.Logger.Info("clinical used web search fallback", zap.String("query", ev.Subject), zap.String("detail", ev.Detail), zap.Time("at", ev.At))
	default:
		r.Logger.Info("audit event", zap.String("kind", string(ev.Kind)), zap.String("subject", ev.Subject), zap.Time("at", ev.At))
	}
}

// Multi fans an event out to several recorders in order.
type Multi []Recorder

// Record forwards ev to every non-nil recorder.
func (m Multi) Record(ctx context.Context, ev Event) {
	for _, r := range m {
		if r != nil {
			r.Record(ctx, ev)
		}
	}
}

// Stamp fills At when it is unset.
func Stamp(ev Event) Event {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	return ev
}
