package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/wb-go/wbf/dbpg"

	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/model"
)

var (
	ErrPromptNotFound = errors.New("prompt not found")
	ErrImageNotFound  = errors.New("image not found")
)

// Repository provides access to the prompts and reference images of an owner.
// Every query is filtered by owner.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new Repository with the given DB connection.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// CreatePrompt inserts a prompt and returns it with its generated id and timestamp.
func (r *Repository) CreatePrompt(ctx context.Context, p model.Prompt) (model.Prompt, error) {
	query := `
		INSERT INTO prompts (user_id, prompt, aspect_ratio, output_type)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
    `

	err := r.db.Master.QueryRowContext(
		ctx, query, p.Owner, p.Text, p.AspectRatio, p.OutputType,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return model.Prompt{}, fmt.Errorf("create prompt: %w", err)
	}

	return p, nil
}

// ListPrompts returns the owner's prompts, newest first.
func (r *Repository) ListPrompts(ctx context.Context, owner string) ([]model.Prompt, error) {
	query := `
		SELECT id, user_id, prompt, aspect_ratio, output_type, created_at
		FROM prompts
		WHERE user_id = $1
		ORDER BY created_at DESC
    `

	return r.queryPrompts(ctx, query, owner)
}

// GetPrompts returns the owner's prompts whose id is in ids.
// Ids that do not exist or belong to someone else are not returned.
func (r *Repository) GetPrompts(ctx context.Context, owner string, ids []uuid.UUID) ([]model.Prompt, error) {
	if len(ids) == 0 {
		return []model.Prompt{}, nil
	}

	query := `
		SELECT id, user_id, prompt, aspect_ratio, output_type, created_at
		FROM prompts
		WHERE user_id = $1 AND id = ANY($2)
    `

	return r.queryPrompts(ctx, query, owner, pq.Array(uuidStrings(ids)))
}

// DeletePrompt deletes one of the owner's prompts.
func (r *Repository) DeletePrompt(ctx context.Context, owner string, id uuid.UUID) error {
	query := `
		DELETE FROM prompts WHERE id = $1 AND user_id = $2
    `

	res, err := r.db.Master.ExecContext(ctx, query, id, owner)
	if err != nil {
		return fmt.Errorf("delete prompt: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete prompt: failed to get number of rows affected: %w", err)
	}

	if n == 0 {
		return ErrPromptNotFound
	}

	return nil
}

// SaveImage inserts a reference image record.
func (r *Repository) SaveImage(ctx context.Context, img model.Image) (model.Image, error) {
	query := `
		INSERT INTO user_images (user_id, image_url, source, source_ref)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
    `

	err := r.db.Master.QueryRowContext(
		ctx, query, img.Owner, img.URL, img.Source, img.SourceRef,
	).Scan(&img.ID, &img.CreatedAt)
	if err != nil {
		return model.Image{}, fmt.Errorf("save image: %w", err)
	}

	return img, nil
}

// ListImages returns the owner's reference images, newest first.
func (r *Repository) ListImages(ctx context.Context, owner string) ([]model.Image, error) {
	query := `
		SELECT id, user_id, image_url, source, source_ref, created_at
		FROM user_images
		WHERE user_id = $1
		ORDER BY created_at DESC
    `

	return r.queryImages(ctx, query, owner)
}

// GetImages returns the owner's images whose id is in ids.
func (r *Repository) GetImages(ctx context.Context, owner string, ids []uuid.UUID) ([]model.Image, error) {
	if len(ids) == 0 {
		return []model.Image{}, nil
	}

	query := `
		SELECT id, user_id, image_url, source, source_ref, created_at
		FROM user_images
		WHERE user_id = $1 AND id = ANY($2)
    `

	return r.queryImages(ctx, query, owner, pq.Array(uuidStrings(ids)))
}

// DeleteImage deletes one of the owner's reference images.
func (r *Repository) DeleteImage(ctx context.Context, owner string, id uuid.UUID) error {
	query := `
		DELETE FROM user_images WHERE id = $1 AND user_id = $2
    `

	res, err := r.db.Master.ExecContext(ctx, query, id, owner)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete image: failed to get number of rows affected: %w", err)
	}

	if n == 0 {
		return ErrImageNotFound
	}

	return nil
}

func (r *Repository) queryPrompts(ctx context.Context, query string, args ...any) ([]model.Prompt, error) {
	rows, err := r.db.Master.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query prompts: %w", err)
	}
	defer rows.Close()

	prompts := make([]model.Prompt, 0)
	for rows.Next() {
		var p model.Prompt
		if err := rows.Scan(&p.ID, &p.Owner, &p.Text, &p.AspectRatio, &p.OutputType, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan prompt: %w", err)
		}
		prompts = append(prompts, p)
	}

	return prompts, rows.Err()
}

func (r *Repository) queryImages(ctx context.Context, query string, args ...any) ([]model.Image, error) {
	rows, err := r.db.Master.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query images: %w", err)
	}
	defer rows.Close()

	images := make([]model.Image, 0)
	for rows.Next() {
		var img model.Image
		if err := rows.Scan(&img.ID, &img.Owner, &img.URL, &img.Source, &img.SourceRef, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		images = append(images, img)
	}

	return images, rows.Err()
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
