package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/model"
)

var ErrArchiveNotFound = errors.New("archive not found")

// Repository stores where archived result artifacts live in the bucket.
type Repository struct {
	db *dbpg.DB
}

func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// SaveArchive records the stored copies of a result. Re-archiving a result
// replaces the previous paths.
func (r *Repository) SaveArchive(ctx context.Context, a model.Archive) error {
	query := `
		INSERT INTO result_archives (result_id, user_id, original_path, thumbnail_path)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (result_id) DO UPDATE
		SET original_path = EXCLUDED.original_path, thumbnail_path = EXCLUDED.thumbnail_path
    `

	if _, err := r.db.Master.ExecContext(ctx, query, a.ResultID, a.Owner, a.OriginalPath, a.ThumbnailPath); err != nil {
		return fmt.Errorf("save archive: %w", err)
	}

	return nil
}

// GetArchive returns the archive of the owner's result.
func (r *Repository) GetArchive(ctx context.Context, owner string, resultID uuid.UUID) (model.Archive, error) {
	query := `
		SELECT result_id, user_id, original_path, thumbnail_path, created_at
		FROM result_archives
		WHERE result_id = $1 AND user_id = $2
    `

	var a model.Archive
	err := r.db.Master.QueryRowContext(ctx, query, resultID, owner).
		Scan(&a.ResultID, &a.Owner, &a.OriginalPath, &a.ThumbnailPath, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Archive{}, ErrArchiveNotFound
		}

		return model.Archive{}, fmt.Errorf("get archive: %w", err)
	}

	return a, nil
}
