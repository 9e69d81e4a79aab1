package model

import (
	"time"

	"github.com/google/uuid"
)

// Run groups the generation items of one batch submission.
type Run struct {
	ID        uuid.UUID `json:"id"`
	Owner     string    `json:"-"`
	Name      *string   `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// RunWithResults is a run together with every result recorded against it.
type RunWithResults struct {
	Run
	Results []Result `json:"results"`
}

// Attachment links a run to one prompt and one of its reference images.
type Attachment struct {
	RunID    uuid.UUID `json:"run_id"`
	PromptID uuid.UUID `json:"prompt_id"`
	ImageID  uuid.UUID `json:"image_id"`
}
