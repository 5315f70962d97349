package db

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discharge-assistant/internal/audit"
	"discharge-assistant/pkg"
)

func TestListPatients(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	rows := sqlmock.NewRows([]string{"name", "mrn", "primary_diagnosis", "discharge_date", "discharge_summary"}).
		AddRow("John Doe", "123", "CKD", "2024-01-01", "Stable on discharge").
		AddRow("Jane Smith", nil, nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM patients")).WillReturnRows(rows)

	repo := NewRepository(conn)
	got, err := repo.ListPatients(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, pkg.PatientRecord{Name: "John Doe", MRN: "123", PrimaryDiagnosis: "CKD", DischargeDate: "2024-01-01", DischargeSummary: "Stable on discharge"}, got[0])
	assert.Equal(t, "N/A", got[1].DisplayMRN())
	assert.Equal(t, pkg.NoSummary, got[1].Summary())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPatientsQueryError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM patients")).WillReturnError(errors.New("connection refused"))

	_, err = NewRepository(conn).Load(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestInsertPatientFoldsLegacySummary(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO patients")).
		WithArgs("John Doe", "123", nil, nil, "old summary").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = NewRepository(conn).InsertPatient(context.Background(), pkg.PatientRecord{Name: "John Doe", MRN: "123", LegacySummary: "old summary"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditStoreRecordsAndNotifies(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_events")).
		WithArgs("patient_lookup", "John Doe", "", at).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_notify($1, $2)")).
		WithArgs("audit_events", "patient_lookup").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewAuditStore(conn, "audit_events", nil)
	store.Record(context.Background(), audit.Event{Kind: audit.PatientLookup, Subject: "John Doe", At: at})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditStoreSkipsNotifyOnInsertFailure(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_events")).WillReturnError(errors.New("disk full"))

	store := NewAuditStore(conn, "audit_events", nil)
	store.Record(context.Background(), audit.Event{Kind: audit.WebFallback, Subject: "q"})

	assert.NoError(t, mock.ExpectationsWereMet())
}
