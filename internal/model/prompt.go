package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// OutputType is the kind of artifact a prompt asks the provider for.
type OutputType string

const (
	OutputImage OutputType = "image"
	OutputVideo OutputType = "video"
)

// AspectRatios lists the aspect ratios accepted by the generation provider.
var AspectRatios = []string{"1:1", "16:9", "9:16", "4:3", "3:4", "21:9", "9:21"}

// Valid reports whether t is a known output type.
func (t OutputType) Valid() bool {
	return t == OutputImage || t == OutputVideo
}

// ValidAspectRatio reports whether ratio is listed in AspectRatios.
func ValidAspectRatio(ratio string) bool {
	return slices.Contains(AspectRatios, ratio)
}

// Prompt is a stored text prompt owned by an actor.
type Prompt struct {
	ID          uuid.UUID  `json:"id"`
	Owner       string     `json:"user_id"`
	Text        string     `json:"prompt"`
	AspectRatio string     `json:"aspect_ratio"`
	OutputType  OutputType `json:"output_type"` // image / video
	CreatedAt   time.Time  `json:"created_at"`
}
