package run

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/model"
	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/service/assignment"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")
	ErrNoItems      = fmt.Errorf("%w: no generation items", ErrInvalidInput)
)

// repository defines the interface for run and provenance persistence.
type repository interface {
	CreateRun(ctx context.Context, owner string, name *string) (model.Run, error)
	RenameRun(ctx context.Context, owner string, id uuid.UUID, name *string) error
	GetRun(ctx context.Context, owner string, id uuid.UUID) (model.Run, error)
	ListRuns(ctx context.Context, owner string) ([]model.RunWithResults, error)
	SaveAttachment(ctx context.Context, owner string, a model.Attachment) error
}

// catalog resolves prompt and image ids into the owner's records.
type catalog interface {
	Resolve(ctx context.Context, owner string, promptIDs, imageIDs []uuid.UUID) (model.Catalog, error)
}

// dispatcher executes generation items and returns their results.
type dispatcher interface {
	Dispatch(ctx context.Context, runID uuid.UUID, owner string, items []model.GenerationItem) []model.Result
}

// SubmitRequest is a whole batch: the prompts to run, the images chosen per
// prompt and optional edited prompt texts.
type SubmitRequest struct {
	Name            *string              `json:"name"`
	ActivePromptIDs []uuid.UUID          `json:"active_prompt_ids"`
	Assignments     model.Assignments    `json:"assignments"`
	PromptOverrides map[uuid.UUID]string `json:"prompt_overrides"`
}

// Service provides business logic for generation runs.
type Service struct {
	repo       repository
	catalog    catalog
	dispatcher dispatcher
}

// NewService creates a new Service with the given repository, catalog and dispatcher.
func NewService(r repository, c catalog, d dispatcher) *Service {
	return &Service{repo: r, catalog: c, dispatcher: d}
}

// CreateRun creates an empty run. A blank name is stored as null.
func (s *Service) CreateRun(ctx context.Context, owner string, name *string) (model.Run, error) {
	if owner == "" {
		return model.Run{}, ErrUnauthorized
	}

	return s.repo.CreateRun(ctx, owner, normalizeName(name))
}

// RenameRun labels a run. It returns the repository's not-found error when the
// run does not exist for owner.
func (s *Service) RenameRun(ctx context.Context, owner string, id uuid.UUID, name *string) error {
	if owner == "" {
		return ErrUnauthorized
	}

	return s.repo.RenameRun(ctx, owner, id, normalizeName(name))
}

// ListRuns returns the owner's runs, newest first, with their results.
// No owner means no runs.
func (s *Service) ListRuns(ctx context.Context, owner string) ([]model.RunWithResults, error) {
	if owner == "" {
		return []model.RunWithResults{}, nil
	}

	return s.repo.ListRuns(ctx, owner)
}

// Attach records that an image was used with a prompt in a run.
func (s *Service) Attach(ctx context.Context, owner string, a model.Attachment) error {
	if owner == "" {
		return ErrUnauthorized
	}

	return s.repo.SaveAttachment(ctx, owner, a)
}

// Dispatch runs client-built items against an existing run of owner.
func (s *Service) Dispatch(ctx context.Context, owner string, runID uuid.UUID, items []model.GenerationItem) ([]model.Result, error) {
	if owner == "" {
		return nil, ErrUnauthorized
	}
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	for i, item := range items {
		if !item.OutputType.Valid() {
			return nil, fmt.Errorf("%w: item %d: unsupported output type %q", ErrInvalidInput, i, item.OutputType)
		}
		if !model.ValidAspectRatio(item.AspectRatio) {
			return nil, fmt.Errorf("%w: item %d: unsupported aspect ratio %q", ErrInvalidInput, i, item.AspectRatio)
		}
	}

	if _, err := s.repo.GetRun(ctx, owner, runID); err != nil {
		return nil, err
	}

	return s.dispatcher.Dispatch(ctx, runID, owner, items), nil
}

// Submit turns a whole batch into a run: it builds the items from the owner's
// catalog, creates the run, records the attachments and dispatches the items.
// Nothing is created when the batch yields no items.
func (s *Service) Submit(ctx context.Context, owner string, req SubmitRequest) (model.RunWithResults, error) {
	if owner == "" {
		return model.RunWithResults{}, ErrUnauthorized
	}

	cat, err := s.catalog.Resolve(ctx, owner, req.ActivePromptIDs, assignedImages(req.ActivePromptIDs, req.Assignments))
	if err != nil {
		return model.RunWithResults{}, fmt.Errorf("submit: %w", err)
	}

	items := assignment.Build(req.ActivePromptIDs, req.Assignments, req.PromptOverrides, cat)
	if len(items) == 0 {
		return model.RunWithResults{}, ErrNoItems
	}

	run, err := s.repo.CreateRun(ctx, owner, normalizeName(req.Name))
	if err != nil {
		return model.RunWithResults{}, fmt.Errorf("submit: %w", err)
	}

	for _, a := range assignment.Attachments(run.ID, items) {
		if err := s.repo.SaveAttachment(ctx, owner, a); err != nil {
			zlog.Logger.Err(err).
				Str("run_id", run.ID.String()).
				Str("prompt_id", a.PromptID.String()).
				Str("image_id", a.ImageID.String()).
				Msg("failed to save attachment")
		}
	}

	results := s.dispatcher.Dispatch(ctx, run.ID, owner, items)

	zlog.Logger.Info().
		Str("run_id", run.ID.String()).
		Int("items", len(items)).
		Int("results", len(results)).
		Msg("run submitted")

	return model.RunWithResults{Run: run, Results: results}, nil
}

func assignedImages(active []uuid.UUID, assignments model.Assignments) []uuid.UUID {
	var ids []uuid.UUID
	for _, promptID := range active {
		ids = append(ids, assignments[promptID]...)
	}
	return ids
}

func normalizeName(name *string) *string {
	if name == nil {
		return nil
	}

	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		return nil
	}

	return &trimmed
}
