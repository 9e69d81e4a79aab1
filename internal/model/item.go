package model

import "github.com/google/uuid"

// Assignments maps a prompt id to the reference image ids chosen for it.
type Assignments map[uuid.UUID][]uuid.UUID

// GenerationItem is one prompt with all its reference images, the unit sent to the provider.
type GenerationItem struct {
	PromptID        uuid.UUID   `json:"prompt_id"`
	Prompt          string      `json:"prompt"`
	AspectRatio     string      `json:"aspect_ratio"`
	OutputType      OutputType  `json:"output_type"`
	ReferenceImages []string    `json:"reference_images"`
	ImageIDs        []uuid.UUID `json:"-"` // resolved image ids, used for attachments
}

// GenerationRequest is the payload sent to the external provider.
type GenerationRequest struct {
	Prompt          string     `json:"prompt"`
	AspectRatio     string     `json:"aspect_ratio"`
	OutputType      OutputType `json:"output_type"`
	ReferenceImages []string   `json:"reference_images"`
}

// Artifact is one output reported by the provider.
type Artifact struct {
	ResultURL string `json:"result_url"`
}

// Request builds the provider request for the item.
func (i GenerationItem) Request() GenerationRequest {
	return GenerationRequest{
		Prompt:          i.Prompt,
		AspectRatio:     i.AspectRatio,
		OutputType:      i.OutputType,
		ReferenceImages: i.ReferenceImages,
	}
}
