package run

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/model"
)

func newTestRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sql expectations: %v", err)
		}
		_ = db.Close()
	})

	return NewRepository(&dbpg.DB{Master: db}), mock
}

func strPtr(s string) *string { return &s }

func TestRenameRun_FiltersByOwner(t *testing.T) {
	repo, mock := newTestRepo(t)
	runID := uuid.New()

	mock.ExpectExec("UPDATE generation_runs").
		WithArgs("batch", runID, "actor-b").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RenameRun(context.Background(), "actor-b", runID, strPtr("batch"))
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound for another owner's run, got %v", err)
	}
}

func TestRenameRun_Success(t *testing.T) {
	repo, mock := newTestRepo(t)
	runID := uuid.New()

	mock.ExpectExec("UPDATE generation_runs").
		WithArgs("spring collection", runID, "actor-a").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.RenameRun(context.Background(), "actor-a", runID, strPtr("spring collection")); err != nil {
		t.Fatalf("RenameRun error: %v", err)
	}
}

func TestCreateRun_NullName(t *testing.T) {
	repo, mock := newTestRepo(t)
	runID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("INSERT INTO generation_runs").
		WithArgs("actor-a", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(runID.String(), now))

	run, err := repo.CreateRun(context.Background(), "actor-a", nil)
	if err != nil {
		t.Fatalf("CreateRun error: %v", err)
	}
	if run.ID != runID {
		t.Errorf("expected id %s, got %s", runID, run.ID)
	}
	if run.Name != nil {
		t.Errorf("expected nil name, got %q", *run.Name)
	}
	if run.Owner != "actor-a" {
		t.Errorf("expected owner actor-a, got %q", run.Owner)
	}
}

func TestListRuns_Empty(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("FROM generation_runs").
		WithArgs("actor-a").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "created_at"}))

	runs, err := repo.ListRuns(context.Background(), "actor-a")
	if err != nil {
		t.Fatalf("ListRuns error: %v", err)
	}
	if runs == nil || len(runs) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", runs)
	}
}

func TestListRuns_EmbedsResults(t *testing.T) {
	repo, mock := newTestRepo(t)
	newer, older := uuid.New(), uuid.New()
	promptID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("FROM generation_runs").
		WithArgs("actor-a").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "created_at"}).
			AddRow(newer.String(), "actor-a", "second", now).
			AddRow(older.String(), "actor-a", nil, now.Add(-time.Hour)))

	mock.ExpectQuery("FROM run_results").
		WithArgs("actor-a").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "run_id", "user_id", "prompt_id", "output_type", "result_url", "reference_images", "error", "created_at",
		}).
			AddRow(uuid.NewString(), older.String(), "actor-a", promptID.String(), "image", "https://cdn/a.png", "{https://ref/1.png}", nil, now).
			AddRow(uuid.NewString(), older.String(), "actor-a", promptID.String(), "image", nil, "{https://ref/1.png}", "provider returned no results", now))

	runs, err := repo.ListRuns(context.Background(), "actor-a")
	if err != nil {
		t.Fatalf("ListRuns error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != newer || len(runs[0].Results) != 0 {
		t.Errorf("expected newest run first without results, got %s with %d results", runs[0].ID, len(runs[0].Results))
	}
	if len(runs[1].Results) != 2 {
		t.Fatalf("expected 2 results on older run, got %d", len(runs[1].Results))
	}

	ok, failed := runs[1].Results[0], runs[1].Results[1]
	if ok.ResultURL == nil || *ok.ResultURL != "https://cdn/a.png" || ok.Error != nil {
		t.Errorf("unexpected successful result: %+v", ok)
	}
	if failed.ResultURL != nil || failed.Error == nil {
		t.Errorf("unexpected failed result: %+v", failed)
	}
	if len(ok.ReferenceImages) != 1 || ok.ReferenceImages[0] != "https://ref/1.png" {
		t.Errorf("unexpected reference images: %v", ok.ReferenceImages)
	}
}

func TestSaveResult_ForeignRun(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("INSERT INTO run_results").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}))

	url := "https://cdn/a.png"
	_, err := repo.SaveResult(context.Background(), model.Result{
		ID:         uuid.New(),
		RunID:      uuid.New(),
		Owner:      "actor-b",
		PromptID:   uuid.New(),
		OutputType: model.OutputImage,
		ResultURL:  &url,
	})
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestSaveResult_Success(t *testing.T) {
	repo, mock := newTestRepo(t)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO run_results").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	url := "https://cdn/a.png"
	res, err := repo.SaveResult(context.Background(), model.Result{
		ID:              uuid.New(),
		RunID:           uuid.New(),
		Owner:           "actor-a",
		PromptID:        uuid.New(),
		OutputType:      model.OutputImage,
		ResultURL:       &url,
		ReferenceImages: []string{"https://ref/1.png"},
	})
	if err != nil {
		t.Fatalf("SaveResult error: %v", err)
	}
	if !res.CreatedAt.Equal(now) {
		t.Errorf("expected created_at %v, got %v", now, res.CreatedAt)
	}
}

func TestSaveAttachment_RejectsForeignRows(t *testing.T) {
	repo, mock := newTestRepo(t)
	a := model.Attachment{RunID: uuid.New(), PromptID: uuid.New(), ImageID: uuid.New()}

	mock.ExpectExec("INSERT INTO generation_inputs").
		WithArgs(a.RunID, a.PromptID, a.ImageID, "actor-a").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.SaveAttachment(context.Background(), "actor-a", a); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}
