package run

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/wb-go/wbf/dbpg"

	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/model"
)

var ErrRunNotFound = errors.New("run not found")

// Repository stores runs, their attachments and their results.
// Mutations are always filtered by the owning actor.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new Repository with the given DB connection.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// CreateRun inserts a run owned by owner. A nil name is stored as NULL.
func (r *Repository) CreateRun(ctx context.Context, owner string, name *string) (model.Run, error) {
	query := `
		INSERT INTO generation_runs (user_id, name)
		VALUES ($1, $2)
		RETURNING id, created_at
    `

	run := model.Run{Owner: owner, Name: name}
	if err := r.db.Master.QueryRowContext(ctx, query, owner, name).Scan(&run.ID, &run.CreatedAt); err != nil {
		return model.Run{}, fmt.Errorf("create run: %w", err)
	}

	return run, nil
}

// RenameRun sets the name of the run identified by (id, owner).
// It returns ErrRunNotFound when no row matches.
func (r *Repository) RenameRun(ctx context.Context, owner string, id uuid.UUID, name *string) error {
	query := `
		UPDATE generation_runs
		SET name = $1
		WHERE id = $2 AND user_id = $3
    `

	res, err := r.db.Master.ExecContext(ctx, query, name, id, owner)
	if err != nil {
		return fmt.Errorf("rename run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rename run: failed to get number of rows affected: %w", err)
	}

	if n == 0 {
		return ErrRunNotFound
	}

	return nil
}

// GetRun returns the run identified by (id, owner).
func (r *Repository) GetRun(ctx context.Context, owner string, id uuid.UUID) (model.Run, error) {
	query := `
		SELECT id, user_id, name, created_at
		FROM generation_runs
		WHERE id = $1 AND user_id = $2
    `

	var run model.Run
	err := r.db.Master.QueryRowContext(ctx, query, id, owner).Scan(&run.ID, &run.Owner, &run.Name, &run.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Run{}, ErrRunNotFound
		}

		return model.Run{}, fmt.Errorf("get run: %w", err)
	}

	return run, nil
}

// ListRuns returns the owner's runs, newest first, each with its results in creation order.
func (r *Repository) ListRuns(ctx context.Context, owner string) ([]model.RunWithResults, error) {
	runsQuery := `
		SELECT id, user_id, name, created_at
		FROM generation_runs
		WHERE user_id = $1
		ORDER BY created_at DESC
    `

	rows, err := r.db.Master.QueryContext(ctx, runsQuery, owner)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]model.RunWithResults, 0)
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var run model.RunWithResults
		if err := rows.Scan(&run.ID, &run.Owner, &run.Name, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("list runs: scan run: %w", err)
		}
		run.Results = make([]model.Result, 0)
		index[run.ID] = len(runs)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	if len(runs) == 0 {
		return runs, nil
	}

	resultsQuery := `
		SELECT id, run_id, user_id, prompt_id, output_type, result_url, reference_images, error, created_at
		FROM run_results
		WHERE user_id = $1
		ORDER BY created_at ASC
    `

	resRows, err := r.db.Master.QueryContext(ctx, resultsQuery, owner)
	if err != nil {
		return nil, fmt.Errorf("list runs: query results: %w", err)
	}
	defer resRows.Close()

	for resRows.Next() {
		res, err := scanResult(resRows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}

		i, ok := index[res.RunID]
		if !ok {
			continue
		}
		runs[i].Results = append(runs[i].Results, res)
	}

	return runs, resRows.Err()
}

// SaveAttachment records that image imageID was used with prompt promptID in run runID.
// The row is only written when the run, the prompt and the image all belong to owner.
func (r *Repository) SaveAttachment(ctx context.Context, owner string, a model.Attachment) error {
	query := `
		INSERT INTO generation_inputs (run_id, prompt_id, image_id)
		SELECT r.id, p.id, i.id
		FROM generation_runs r, prompts p, user_images i
		WHERE r.id = $1 AND r.user_id = $4
		  AND p.id = $2 AND p.user_id = $4
		  AND i.id = $3 AND i.user_id = $4
    `

	res, err := r.db.Master.ExecContext(ctx, query, a.RunID, a.PromptID, a.ImageID, owner)
	if err != nil {
		return fmt.Errorf("save attachment: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save attachment: failed to get number of rows affected: %w", err)
	}

	if n == 0 {
		return ErrRunNotFound
	}

	return nil
}

// SaveResult appends a result to its run. The write only happens when the run
// belongs to the result's owner. Calling it twice stores two rows.
func (r *Repository) SaveResult(ctx context.Context, res model.Result) (model.Result, error) {
	query := `
		INSERT INTO run_results (id, run_id, user_id, prompt_id, output_type, result_url, reference_images, error)
		SELECT $1, r.id, r.user_id, $4, $5, $6, $7, $8
		FROM generation_runs r
		WHERE r.id = $2 AND r.user_id = $3
		RETURNING created_at
    `

	refs := res.ReferenceImages
	if refs == nil {
		refs = []string{}
	}

	err := r.db.Master.QueryRowContext(
		ctx, query,
		res.ID, res.RunID, res.Owner, res.PromptID, res.OutputType, res.ResultURL, pq.Array(refs), res.Error,
	).Scan(&res.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Result{}, ErrRunNotFound
		}

		return model.Result{}, fmt.Errorf("save result: %w", err)
	}

	return res, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(s scanner) (model.Result, error) {
	var (
		res  model.Result
		refs pq.StringArray
	)

	err := s.Scan(&res.ID, &res.RunID, &res.Owner, &res.PromptID, &res.OutputType, &res.ResultURL, &refs, &res.Error, &res.CreatedAt)
	if err != nil {
		return model.Result{}, fmt.Errorf("scan result: %w", err)
	}

	res.ReferenceImages = []string(refs)
	if res.ReferenceImages == nil {
		res.ReferenceImages = []string{}
	}

	return res, nil
}
