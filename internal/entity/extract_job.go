package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/statement-extractor/constants"
)

// ExtractJob is one row of the extraction ledger.
type ExtractJob struct {
	ID           uuid.UUID           `json:"id"`
	Source       string              `json:"source"`
	ContentHash  string              `json:"content_hash,omitempty"`
	SizeBytes    int64               `json:"size_bytes"`
	Status       constants.JobStatus `json:"status"`
	Backend      constants.Backend   `json:"backend,omitempty"`
	Language     string              `json:"language,omitempty"`
	RecordCount  int                 `json:"record_count"`
	Records      json.RawMessage     `json:"records,omitempty"`
	ErrorMessage *string             `json:"error_message,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	StartedAt    *time.Time          `json:"started_at,omitempty"`
	FinishedAt   *time.Time          `json:"finished_at,omitempty"`
}
