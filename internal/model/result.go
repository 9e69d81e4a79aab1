package model

import (
	"time"

	"github.com/google/uuid"
)

// Result is one artifact produced for a run, or the record of a failed item.
// Exactly one of ResultURL and Error is set.
type Result struct {
	ID              uuid.UUID  `json:"id"`
	RunID           uuid.UUID  `json:"run_id"`
	Owner           string     `json:"-"`
	PromptID        uuid.UUID  `json:"prompt_id"`
	OutputType      OutputType `json:"output_type"`
	ResultURL       *string    `json:"result_url"`
	ReferenceImages []string   `json:"reference_images"`
	Error           *string    `json:"error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Failed reports whether the result records a failure.
func (r Result) Failed() bool {
	return r.Error != nil
}

// ResultRecorded is published after a successful result has been persisted.
type ResultRecorded struct {
	ResultID   uuid.UUID  `json:"result_id"`
	RunID      uuid.UUID  `json:"run_id"`
	Owner      string     `json:"owner"`
	PromptID   uuid.UUID  `json:"prompt_id"`
	OutputType OutputType `json:"output_type"`
	ResultURL  string     `json:"result_url"`
}

// Archive points at the stored copies of a result artifact.
type Archive struct {
	ResultID      uuid.UUID `json:"result_id"`
	Owner         string    `json:"-"`
	OriginalPath  string    `json:"original_path"`
	ThumbnailPath *string   `json:"thumbnail_path"`
	CreatedAt     time.Time `json:"created_at"`
}
