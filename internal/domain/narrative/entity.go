package narrative

import "time"

// NarrativeID identifier type
type NarrativeID string

// Narrative is an AI-written plain-language summary of a stored scan
// report, kept for auditing and retrieval.
type Narrative struct {
	ID        NarrativeID `json:"id"`
	RecordID  string      `json:"record_id"`
	ReportURL string      `json:"report_url"`
	Result    string      `json:"result"` // JSON string from the model
	CreatedAt time.Time   `json:"created_at"`
}
