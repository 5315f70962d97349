package db

import (
	"context"
	"database/sql"
	"fmt"

	"discharge-assistant/pkg"
)

// Repository wraps database operations for the patient directory.
// The caller is responsible for managing the DB connection lifecycle.
type Repository struct {
	DB *sql.DB
}

// NewRepository constructs a new Repository from an existing sql.DB.
func NewRepository(db *sql.DB) *Repository { return &Repository{DB: db} }

// ListPatients returns every patient record in insertion order, so the
// earliest row wins when two records share a name.
func (r *Repository) ListPatients(ctx context.Context) ([]pkg.PatientRecord, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT name, mrn, primary_diagnosis, discharge_date, discharge_summary
         FROM patients
         ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query patients: %w", err)
	}
	defer rows.Close()
	var out []pkg.PatientRecord
	for rows.Next() {
		var (
			p                               pkg.PatientRecord
			mrn, diagnosis, date, dischSumm sql.NullString
		)
		if err := rows.Scan(&p.Name, &mrn, &diagnosis, &date, &dischSumm); err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		p.MRN = mrn.String
		p.PrimaryDiagnosis = diagnosis.String
		p.DischargeDate = date.String
		p.DischargeSummary = dischSumm.String
		out = append(out, p)
	}
	return out, rows.Err()
}

// Load satisfies directory.Source.
func (r *Repository) Load(ctx context.Context) ([]pkg.PatientRecord, error) {
	return r.ListPatients(ctx)
}

// InsertPatient stores a record.  The legacy summary field is folded into
// discharge_summary so the table only carries one summary column.
func (r *Repository) InsertPatient(ctx context.Context, p pkg.PatientRecord) error {
	summary := p.DischargeSummary
	if summary == "" {
		summary = p.LegacySummary
	}
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO patients (name, mrn, primary_diagnosis, discharge_date, discharge_summary)
         VALUES ($1, $2, $3, $4, $5)`,
		p.Name, nullable(p.MRN), nullable(p.PrimaryDiagnosis), nullable(p.DischargeDate), nullable(summary),
	)
	if err != nil {
		return fmt.Errorf("insert patient %q: %w", p.Name, err)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
