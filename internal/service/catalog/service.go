package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/model"
)

const defaultImageSource = "mimeeq"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")
)

// repository defines the interface for prompt and image persistence.
type repository interface {
	CreatePrompt(ctx context.Context, p model.Prompt) (model.Prompt, error)
	ListPrompts(ctx context.Context, owner string) ([]model.Prompt, error)
	GetPrompts(ctx context.Context, owner string, ids []uuid.UUID) ([]model.Prompt, error)
	DeletePrompt(ctx context.Context, owner string, id uuid.UUID) error

	SaveImage(ctx context.Context, img model.Image) (model.Image, error)
	ListImages(ctx context.Context, owner string) ([]model.Image, error)
	GetImages(ctx context.Context, owner string, ids []uuid.UUID) ([]model.Image, error)
	DeleteImage(ctx context.Context, owner string, id uuid.UUID) error
}

// Service manages an actor's prompts and reference images.
type Service struct {
	repo repository
}

// NewService creates a new Service with the given repository.
func NewService(r repository) *Service {
	return &Service{repo: r}
}

// Resolve loads the owner's prompts and images with the given ids.
// Unknown ids and ids owned by someone else are left out of the catalog.
func (s *Service) Resolve(ctx context.Context, owner string, promptIDs, imageIDs []uuid.UUID) (model.Catalog, error) {
	catalog := model.NewCatalog()
	if owner == "" {
		return catalog, nil
	}

	prompts, err := s.repo.GetPrompts(ctx, owner, promptIDs)
	if err != nil {
		return model.Catalog{}, fmt.Errorf("resolve: %w", err)
	}
	for _, p := range prompts {
		catalog.Prompts[p.ID] = p
	}

	images, err := s.repo.GetImages(ctx, owner, imageIDs)
	if err != nil {
		return model.Catalog{}, fmt.Errorf("resolve: %w", err)
	}
	for _, img := range images {
		catalog.Images[img.ID] = img
	}

	return catalog, nil
}

// CreatePrompt validates and stores a new prompt. An empty output type means image.
func (s *Service) CreatePrompt(ctx context.Context, owner, text, aspectRatio string, outputType model.OutputType) (model.Prompt, error) {
	if owner == "" {
		return model.Prompt{}, ErrUnauthorized
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return model.Prompt{}, fmt.Errorf("%w: prompt is empty", ErrInvalidInput)
	}
	if !model.ValidAspectRatio(aspectRatio) {
		return model.Prompt{}, fmt.Errorf("%w: unsupported aspect ratio %q", ErrInvalidInput, aspectRatio)
	}

	if outputType == "" {
		outputType = model.OutputImage
	}
	if !outputType.Valid() {
		return model.Prompt{}, fmt.Errorf("%w: unsupported output type %q", ErrInvalidInput, outputType)
	}

	return s.repo.CreatePrompt(ctx, model.Prompt{
		Owner:       owner,
		Text:        text,
		AspectRatio: aspectRatio,
		OutputType:  outputType,
	})
}

// ListPrompts returns the owner's prompts, newest first. No owner means no prompts.
func (s *Service) ListPrompts(ctx context.Context, owner string) ([]model.Prompt, error) {
	if owner == "" {
		return []model.Prompt{}, nil
	}

	return s.repo.ListPrompts(ctx, owner)
}

func (s *Service) DeletePrompt(ctx context.Context, owner string, id uuid.UUID) error {
	if owner == "" {
		return ErrUnauthorized
	}

	return s.repo.DeletePrompt(ctx, owner, id)
}

// SaveImage stores a reference image. Source defaults to "mimeeq".
func (s *Service) SaveImage(ctx context.Context, owner, url, source string, sourceRef *string) (model.Image, error) {
	if owner == "" {
		return model.Image{}, ErrUnauthorized
	}

	url = strings.TrimSpace(url)
	if url == "" {
		return model.Image{}, fmt.Errorf("%w: invalid image_url", ErrInvalidInput)
	}
	if source == "" {
		source = defaultImageSource
	}

	return s.repo.SaveImage(ctx, model.Image{
		Owner:     owner,
		URL:       url,
		Source:    source,
		SourceRef: sourceRef,
	})
}

// ListImages returns the owner's reference images, newest first. No owner means no images.
func (s *Service) ListImages(ctx context.Context, owner string) ([]model.Image, error) {
	if owner == "" {
		return []model.Image{}, nil
	}

	return s.repo.ListImages(ctx, owner)
}

func (s *Service) DeleteImage(ctx context.Context, owner string, id uuid.UUID) error {
	if owner == "" {
		return ErrUnauthorized
	}

	return s.repo.DeleteImage(ctx, owner, id)
}
