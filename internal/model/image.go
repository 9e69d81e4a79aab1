package model

import (
	"time"

	"github.com/google/uuid"
)

// Image is a reference image record. It is never mutated after creation.
type Image struct {
	ID        uuid.UUID `json:"id"`
	Owner     string    `json:"user_id"`
	URL       string    `json:"image_url"`
	Source    string    `json:"source"`     // where the image came from, e.g. "mimeeq" or "upload"
	SourceRef *string   `json:"source_ref"` // optional id inside the source system
	CreatedAt time.Time `json:"created_at"`
}

// Catalog holds the prompts and images resolved for one actor, keyed by id.
type Catalog struct {
	Prompts map[uuid.UUID]Prompt
	Images  map[uuid.UUID]Image
}

// NewCatalog returns an empty catalog ready to be filled.
func NewCatalog() Catalog {
	return Catalog{
		Prompts: make(map[uuid.UUID]Prompt),
		Images:  make(map[uuid.UUID]Image),
	}
}
