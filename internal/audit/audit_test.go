package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type captureRecorder struct{ events []Event }

func (c *captureRecorder) Record(_ context.Context, ev Event) { c.events = append(c.events, ev) }

func TestLogRecorderPatientLookup(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := NewLogRecorder(zap.New(core))

	r.Record(context.Background(), Stamp(Event{Kind: PatientLookup, Subject: "John Doe"}))

	entries := logs.FilterMessage("receptionist retrieved report").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "John Doe", entries[0].ContextMap()["patient"])
	assert.Equal(t, "audit", entries[0].LoggerName)
}

func TestLogRecorderWebFallback(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := NewLogRecorder(zap.New(core))

	r.Record(context.Background(), Event{Kind: WebFallback, Subject: "dialysis diet", Detail: "3 results"})

	entries := logs.FilterMessage("clinical used web search fallback").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "dialysis diet", entries[0].ContextMap()["query"])
}

func TestMultiSkipsNil(t *testing.T) {
	a, b := &captureRecorder{}, &captureRecorder{}
	m := Multi{a, nil, b}

	m.Record(context.Background(), Event{Kind: PatientLookup, Subject: "x"})

	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

func TestStampKeepsExistingTime(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, at, Stamp(Event{At: at}).At)
	assert.False(t, Stamp(Event{}).At.IsZero())
}
