package assignment

import (
	"github.com/google/uuid"

	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/model"
)

// Build turns the active prompts and their assigned reference images into generation items.
//
// Items follow the order of active. A prompt missing from the catalog, or whose
// assigned images resolve to no URL, produces no item. The text sent is the edited
// copy from edits when one exists, otherwise the stored prompt text.
func Build(
	active []uuid.UUID,
	assignments model.Assignments,
	edits map[uuid.UUID]string,
	catalog model.Catalog,
) []model.GenerationItem {
	items := make([]model.GenerationItem, 0, len(active))
	seen := make(map[uuid.UUID]struct{}, len(active))

	for _, promptID := range active {
		if _, dup := seen[promptID]; dup {
			continue
		}
		seen[promptID] = struct{}{}

		p, ok := catalog.Prompts[promptID]
		if !ok {
			continue
		}

		refs, imageIDs := resolveImages(assignments[promptID], catalog)
		if len(refs) == 0 {
			continue
		}

		text := p.Text
		if edited, ok := edits[promptID]; ok {
			text = edited
		}

		items = append(items, model.GenerationItem{
			PromptID:        p.ID,
			Prompt:          text,
			AspectRatio:     p.AspectRatio,
			OutputType:      p.OutputType,
			ReferenceImages: refs,
			ImageIDs:        imageIDs,
		})
	}

	return items
}

// Attachments lists one attachment per (prompt, image) pair of the items.
func Attachments(runID uuid.UUID, items []model.GenerationItem) []model.Attachment {
	var out []model.Attachment
	for _, item := range items {
		for _, imageID := range item.ImageIDs {
			out = append(out, model.Attachment{
				RunID:    runID,
				PromptID: item.PromptID,
				ImageID:  imageID,
			})
		}
	}
	return out
}

func resolveImages(ids []uuid.UUID, catalog model.Catalog) ([]string, []uuid.UUID) {
	var (
		urls     []string
		imageIDs []uuid.UUID
	)
	seen := make(map[uuid.UUID]struct{}, len(ids))

	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		img, ok := catalog.Images[id]
		if !ok || img.URL == "" {
			continue
		}
		urls = append(urls, img.URL)
		imageIDs = append(imageIDs, id)
	}

	return urls, imageIDs
}
