package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/model"
)

// memRepo keeps prompts and images in memory and filters by owner like the SQL repository.
type memRepo struct {
	prompts []model.Prompt
	images  []model.Image
}

func (m *memRepo) CreatePrompt(_ context.Context, p model.Prompt) (model.Prompt, error) {
	p.ID = uuid.New()
	m.prompts = append(m.prompts, p)
	return p, nil
}

func (m *memRepo) ListPrompts(_ context.Context, owner string) ([]model.Prompt, error) {
	out := []model.Prompt{}
	for _, p := range m.prompts {
		if p.Owner == owner {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memRepo) GetPrompts(_ context.Context, owner string, ids []uuid.UUID) ([]model.Prompt, error) {
	out := []model.Prompt{}
	for _, p := range m.prompts {
		for _, id := range ids {
			if p.ID == id && p.Owner == owner {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (m *memRepo) DeletePrompt(context.Context, string, uuid.UUID) error { return nil }

func (m *memRepo) SaveImage(_ context.Context, img model.Image) (model.Image, error) {
	img.ID = uuid.New()
	m.images = append(m.images, img)
	return img, nil
}

func (m *memRepo) ListImages(_ context.Context, owner string) ([]model.Image, error) {
	out := []model.Image{}
	for _, img := range m.images {
		if img.Owner == owner {
			out = append(out, img)
		}
	}
	return out, nil
}

func (m *memRepo) GetImages(_ context.Context, owner string, ids []uuid.UUID) ([]model.Image, error) {
	out := []model.Image{}
	for _, img := range m.images {
		for _, id := range ids {
			if img.ID == id && img.Owner == owner {
				out = append(out, img)
			}
		}
	}
	return out, nil
}

func (m *memRepo) DeleteImage(context.Context, string, uuid.UUID) error { return nil }

func TestResolve_DropsForeignAndUnknownIDs(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo)
	ctx := context.Background()

	own, err := svc.CreatePrompt(ctx, "alice", "a chair", "1:1", model.OutputImage)
	if err != nil {
		t.Fatalf("CreatePrompt failed: %v", err)
	}
	foreign, err := svc.CreatePrompt(ctx, "bob", "a table", "1:1", model.OutputImage)
	if err != nil {
		t.Fatalf("CreatePrompt failed: %v", err)
	}
	img, err := svc.SaveImage(ctx, "alice", "https://img/1.png", "", nil)
	if err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}

	catalog, err := svc.Resolve(ctx, "alice",
		[]uuid.UUID{own.ID, foreign.ID, uuid.New()},
		[]uuid.UUID{img.ID, uuid.New()},
	)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if len(catalog.Prompts) != 1 {
		t.Errorf("expected 1 prompt, got %d", len(catalog.Prompts))
	}
	if _, ok := catalog.Prompts[own.ID]; !ok {
		t.Error("expected own prompt to be resolved")
	}
	if len(catalog.Images) != 1 || catalog.Images[img.ID].URL != "https://img/1.png" {
		t.Errorf("unexpected images: %+v", catalog.Images)
	}
}

func TestResolve_NoOwner(t *testing.T) {
	svc := NewService(&memRepo{})

	catalog, err := svc.Resolve(context.Background(), "", []uuid.UUID{uuid.New()}, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(catalog.Prompts) != 0 || len(catalog.Images) != 0 {
		t.Errorf("expected empty catalog, got %+v", catalog)
	}
}

func TestCreatePrompt_Validation(t *testing.T) {
	tests := []struct {
		name       string
		owner      string
		text       string
		ratio      string
		outputType model.OutputType
		wantErr    error
	}{
		{"no owner", "", "a chair", "1:1", model.OutputImage, ErrUnauthorized},
		{"empty text", "alice", "   ", "1:1", model.OutputImage, ErrInvalidInput},
		{"bad ratio", "alice", "a chair", "2:1", model.OutputImage, ErrInvalidInput},
		{"bad output type", "alice", "a chair", "1:1", "audio", ErrInvalidInput},
		{"video", "alice", "a chair", "16:9", model.OutputVideo, nil},
		{"default output type", "alice", "a chair", "9:21", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&memRepo{})

			p, err := svc.CreatePrompt(context.Background(), tt.owner, tt.text, tt.ratio, tt.outputType)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if err == nil && p.OutputType == "" {
				t.Error("expected output type to be set")
			}
		})
	}
}

func TestSaveImage_DefaultSource(t *testing.T) {
	svc := NewService(&memRepo{})

	img, err := svc.SaveImage(context.Background(), "alice", "https://img/1.png", "", nil)
	if err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}
	if img.Source != "mimeeq" {
		t.Errorf("expected source mimeeq, got %q", img.Source)
	}

	if _, err := svc.SaveImage(context.Background(), "alice", "", "upload", nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty url, got %v", err)
	}
}

func TestList_NoOwnerIsEmpty(t *testing.T) {
	svc := NewService(&memRepo{})

	prompts, err := svc.ListPrompts(context.Background(), "")
	if err != nil || prompts == nil || len(prompts) != 0 {
		t.Errorf("expected empty prompt list, got %v, %v", prompts, err)
	}
	images, err := svc.ListImages(context.Background(), "")
	if err != nil || images == nil || len(images) != 0 {
		t.Errorf("expected empty image list, got %v, %v", images, err)
	}
}
