package pkg

import (
	"encoding/json"
	"strings"
)

// Role describes who authored a turn.  A conversation only ever has two
// participants: the assistant and the user.
type Role string

const (
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Turn is one message in a session transcript.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// PatientRecord is a discharge record from the patient directory.  Records
// are immutable once loaded.
type PatientRecord struct {
	Name             string `json:"name"`
	MRN              string `json:"mrn,omitempty"`
	PrimaryDiagnosis string `json:"primary_diagnosis,omitempty"`
	DischargeDate    string `json:"discharge_date,omitempty"`
	DischargeSummary string `json:"discharge_summary,omitempty"`

	// LegacySummary holds the older "summary" key some directory files use
	// instead of discharge_summary.
	LegacySummary string `json:"summary,omitempty"`
}

// NoSummary is shown when a record carries neither summary field.
const NoSummary = "No summary field available."

// Summary returns the discharge summary, falling back from
// discharge_summary to summary to NoSummary.
func (p PatientRecord) Summary() string {
	if s := strings.TrimSpace(p.DischargeSummary); s != "" {
		return p.DischargeSummary
	}
	if s := strings.TrimSpace(p.LegacySummary); s != "" {
		return p.LegacySummary
	}
	return NoSummary
}

// DisplayMRN returns the MRN or "N/A" when it is missing.
func (p PatientRecord) DisplayMRN() string {
	if p.MRN == "" {
		return "N/A"
	}
	return p.MRN
}

// DisplayName returns the name or "Unknown" when it is missing.
func (p PatientRecord) DisplayName() string {
	if p.Name == "" {
		return "Unknown"
	}
	return p.Name
}

// UnmarshalJSON accepts records where mrn or discharge_date were written as
// JSON numbers rather than strings.
func (p *PatientRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name             string          `json:"name"`
		MRN              json.RawMessage `json:"mrn"`
		PrimaryDiagnosis string          `json:"primary_diagnosis"`
		DischargeDate    json.RawMessage `json:"discharge_date"`
		DischargeSummary string          `json:"discharge_summary"`
		Summary          string          `json:"summary"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = PatientRecord{
		Name:             raw.Name,
		MRN:              scalarString(raw.MRN),
		PrimaryDiagnosis: raw.PrimaryDiagnosis,
		DischargeDate:    scalarString(raw.DischargeDate),
		DischargeSummary: raw.DischargeSummary,
		LegacySummary:    raw.Summary,
	}
	return nil
}

func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// EvidenceItem is one passage returned by the document retriever, in
// relevance order.
type EvidenceItem struct {
	SourceID string `json:"source_id"`
	Text     string `json:"text"`
}

// SearchResult is one hit from the web search provider.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// RoutingDecision labels how a turn is handled.
type RoutingDecision string

const (
	NameLookup    RoutingDecision = "name_lookup"
	ClinicalQuery RoutingDecision = "clinical_query"
)

// ComposedReply is the assistant's answer for one turn.  Citations lists
// the source identifiers the answer was grounded on.  Fallback is set when
// the answer came from the web search path.
type ComposedReply struct {
	Text      string   `json:"reply"`
	Citations []string `json:"citations"`
	Fallback  bool     `json:"fallback"`
}
