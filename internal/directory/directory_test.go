package directory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"discharge-assistant/internal/audit"
	"discharge-assistant/pkg"
)

type staticSource struct {
	records []pkg.PatientRecord
	err     error
	calls   int
}

func (s *staticSource) Load(context.Context) ([]pkg.PatientRecord, error) {
	s.calls++
	return s.records, s.err
}

func writePatients(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "patients.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLookupCaseInsensitiveAndTrimmed(t *testing.T) {
	src := &staticSource{records: []pkg.PatientRecord{{Name: "John Doe", MRN: "123", PrimaryDiagnosis: "CKD", DischargeDate: "2024-01-01"}}}
	d := New(src, nil, nil)

	for _, q := range []string{"John Doe", "  john doe ", "JOHN DOE"} {
		rec, err := d.Lookup(context.Background(), q)
		require.NoError(t, err, q)
		assert.Equal(t, "123", rec.MRN)
	}
	assert.Equal(t, 1, src.calls, "records are cached after the first load")
}

func TestLookupFirstMatchWins(t *testing.T) {
	src := &staticSource{records: []pkg.PatientRecord{{Name: "Jane Smith", MRN: "1"}, {Name: "jane smith", MRN: "2"}}}
	d := New(src, nil, nil)

	rec, err := d.Lookup(context.Background(), "Jane Smith")
	require.NoError(t, err)
	assert.Equal(t, "1", rec.MRN)
}

func TestLookupIsIdempotent(t *testing.T) {
	src := &staticSource{records: []pkg.PatientRecord{{Name: "John Doe", MRN: "123"}}}
	d := New(src, nil, nil)

	first, err := d.Lookup(context.Background(), "john doe")
	require.NoError(t, err)
	second, err := d.Lookup(context.Background(), "john doe")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLookupNotFound(t *testing.T) {
	d := New(&staticSource{}, nil, nil)

	_, err := d.Lookup(context.Background(), " name ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "No discharge summary found for patient 'name'.", err.Error())
}

func TestLookupSourceFailureIsEmptyDirectory(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	src := &staticSource{err: errors.New("corrupt")}
	d := New(src, nil, zap.New(core))

	_, err := d.Lookup(context.Background(), "John Doe")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, d.ListAll(context.Background()))
	assert.Equal(t, 2, src.calls, "failed loads are retried")
	assert.NotZero(t, logs.Len())
}

func TestLookupRecordsAudit(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	src := &staticSource{records: []pkg.PatientRecord{{Name: "John Doe"}}}
	d := New(src, audit.NewLogRecorder(zap.New(core)), nil)

	_, err := d.Lookup(context.Background(), "john doe")
	require.NoError(t, err)
	_, _ = d.Lookup(context.Background(), "nobody")

	entries := logs.FilterMessage("receptionist retrieved report").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "John Doe", entries[0].ContextMap()["patient"])
}

func TestFileSourceMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()

	_, err := FileSource{Path: filepath.Join(dir, "missing.json")}.Load(context.Background())
	assert.Error(t, err)

	path := writePatients(t, dir, `{"name": "not a list"}`)
	_, err = FileSource{Path: path}.Load(context.Background())
	assert.Error(t, err)

	d := New(FileSource{Path: path}, nil, nil)
	_, err = d.Lookup(context.Background(), "not a list")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileSourceAcceptsSummaryAlias(t *testing.T) {
	path := writePatients(t, t.TempDir(), `[
		{"name": "John Doe", "mrn": 123, "primary_diagnosis": "CKD", "discharge_date": "2024-01-01", "summary": "legacy text"},
		{"name": "Jane Smith"}
	]`)

	records, err := FileSource{Path: path}.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "123", records[0].MRN)
	assert.Equal(t, "legacy text", records[0].Summary())
	assert.Equal(t, pkg.NoSummary, records[1].Summary())
}

func TestFormatReportAndList(t *testing.T) {
	p := pkg.PatientRecord{Name: "John Doe", DischargeSummary: "Stable."}
	assert.Equal(t, "Patient: John Doe\nMRN: N/A\nDischarge Summary:\nStable.", FormatReport(p))

	assert.Equal(t, "No patients found in the system.", FormatList(nil))
	assert.Equal(t, "Known patients:\n- John Doe (MRN: N/A)\n- Unknown (MRN: 7)",
		FormatList([]pkg.PatientRecord{p, {MRN: "7"}}))
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writePatients(t, dir, `[]`)
	d := New(FileSource{Path: path}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, Watch(ctx, d, path))

	_, err := d.Lookup(ctx, "John Doe")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, os.WriteFile(path, []byte(`[{"name": "John Doe", "mrn": "123"}]`), 0o644))

	assert.Eventually(t, func() bool {
		rec, err := d.Lookup(ctx, "John Doe")
		return err == nil && rec.MRN == "123"
	}, 2*time.Second, 20*time.Millisecond)
}
