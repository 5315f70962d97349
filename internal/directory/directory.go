// Package directory answers patient lookups by name over a record source.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"discharge-assistant/internal/audit"
	"discharge-assistant/pkg"
)

// ErrNotFound is matched by every NotFoundError.
var ErrNotFound = errors.New("patient not found")

// NotFoundError carries the user-facing message for a missed lookup.
type NotFoundError struct {
	Query string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("No discharge summary found for patient '%s'.", e.Query)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// Source loads the full set of patient records.
type Source interface {
	Load(ctx context.Context) ([]pkg.PatientRecord, error)
}

// Directory caches records from a Source.  A source that cannot be read is
// treated as an empty directory.
type Directory struct {
	source Source
	audit  audit.Recorder
	logger *zap.Logger

	mu      sync.RWMutex
	records []pkg.PatientRecord
	loaded  bool
}

// New constructs a Directory.  audit may be nil.
func New(source Source, recorder audit.Recorder, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{source: source, audit: recorder, logger: logger}
}

// Lookup returns the first record whose name matches nameQuery ignoring case
// and surrounding whitespace.
func (d *Directory) Lookup(ctx context.Context, nameQuery string) (pkg.PatientRecord, error) {
	query := strings.TrimSpace(nameQuery)
	want := strings.ToLower(query)
	for _, p := range d.snapshot(ctx) {
		if strings.ToLower(strings.TrimSpace(p.Name)) == want {
			if d.audit != nil {
				d.audit.Record(ctx, audit.Stamp(audit.Event{Kind: audit.PatientLookup, Subject: p.Name}))
			}
			return p, nil
		}
	}
	return pkg.PatientRecord{}, &NotFoundError{Query: query}
}

// ListAll returns a copy of every known record.
func (d *Directory) ListAll(ctx context.Context) []pkg.PatientRecord {
	records := d.snapshot(ctx)
	out := make([]pkg.PatientRecord, len(records))
	copy(out, records)
	return out
}

// Invalidate drops the cache so the next call reloads from the source.
func (d *Directory) Invalidate() {
	d.mu.Lock()
	d.loaded = false
	d.records = nil
	d.mu.Unlock()
}

func (d *Directory) snapshot(ctx context.Context) []pkg.PatientRecord {
	d.mu.RLock()
	if d.loaded {
		records := d.records
		d.mu.RUnlock()
		return records
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loaded {
		return d.records
	}
	records, err := d.source.Load(ctx)
	if err != nil {
		d.logger.Warn("patient directory unavailable, using empty directory", zap.Error(err))
		// Not cached: the source may come back on the next turn.
		return nil
	}
	d.records = records
	d.loaded = true
	return records
}

// FormatReport renders a record the way the receptionist reads it out.
func FormatReport(p pkg.PatientRecord) string {
	return fmt.Sprintf("Patient: %s\nMRN: %s\nDischarge Summary:\n%s", p.DisplayName(), p.DisplayMRN(), p.Summary())
}

// FormatList renders a bullet list of known patients.
func FormatList(records []pkg.PatientRecord) string {
	if len(records) == 0 {
		return "No patients found in the system."
	}
	lines := make([]string, 0, len(records))
	for _, p := range records {
		lines = append(lines, fmt.Sprintf("- %s (MRN: %s)", p.DisplayName(), p.DisplayMRN()))
	}
	return "Known patients:\n" + strings.Join(lines, "\n")
}
