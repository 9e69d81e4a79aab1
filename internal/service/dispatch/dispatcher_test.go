package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/model"
	providerpkg "github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/provider"
)

type providerFunc func(ctx context.Context, req model.GenerationRequest) ([]model.Artifact, error)

func (f providerFunc) Generate(ctx context.Context, req model.GenerationRequest) ([]model.Artifact, error) {
	return f(ctx, req)
}

type fakeStore struct {
	mu    sync.Mutex
	saved []model.Result
	fail  func(model.Result) error
}

func (s *fakeStore) SaveResult(_ context.Context, res model.Result) (model.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail != nil {
		if err := s.fail(res); err != nil {
			return model.Result{}, err
		}
	}

	res.CreatedAt = time.Now()
	s.saved = append(s.saved, res)
	return res, nil
}

func (s *fakeStore) results() []model.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Result(nil), s.saved...)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []model.ResultRecorded
	err    error
}

func (n *fakeNotifier) ResultRecorded(_ context.Context, ev model.ResultRecorded) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

// inlinePool runs tasks on the caller's goroutine.
type inlinePool struct{}

func (inlinePool) Submit(task func()) error {
	task()
	return nil
}

func newItem(prompt string, refs ...string) model.GenerationItem {
	return model.GenerationItem{
		PromptID:        uuid.New(),
		Prompt:          prompt,
		AspectRatio:     "1:1",
		OutputType:      model.OutputImage,
		ReferenceImages: refs,
	}
}

func newAntsPool(t *testing.T, size int) *ants.Pool {
	t.Helper()

	pool, err := ants.NewPool(size)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	t.Cleanup(pool.Release)
	return pool
}

func TestDispatch_EmptyResultsYieldsOneFailure(t *testing.T) {
	store := &fakeStore{}
	p := providerFunc(func(context.Context, model.GenerationRequest) ([]model.Artifact, error) {
		return nil, providerpkg.ErrNoResults
	})
	d := New(p, store, nil, inlinePool{}, Timeouts{})

	item := newItem("a red chair", "https://img/1.png")
	results := d.Dispatch(context.Background(), uuid.New(), "user-1", []model.GenerationItem{item})

	if len(results) != 1 {
		t.Fatalf("expected exactly 1 result, got %d", len(results))
	}

	res := results[0]
	if res.ResultURL != nil {
		t.Errorf("expected nil result_url, got %q", *res.ResultURL)
	}
	if res.Error == nil || *res.Error != "provider returned no results" {
		t.Errorf("unexpected error message: %v", res.Error)
	}
	if res.ID == uuid.Nil {
		t.Error("expected failed result to carry a fresh id")
	}
	if res.PromptID != item.PromptID {
		t.Errorf("expected prompt id %s, got %s", item.PromptID, res.PromptID)
	}
	if got := store.results(); len(got) != 1 || !got[0].Failed() {
		t.Errorf("expected failed result to be persisted, got %+v", got)
	}
}

func TestDispatch_OneResultPerArtifactInOrder(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	p := providerFunc(func(context.Context, model.GenerationRequest) ([]model.Artifact, error) {
		return []model.Artifact{{ResultURL: "https://out/1.png"}, {ResultURL: "https://out/2.png"}}, nil
	})
	d := New(p, store, notifier, inlinePool{}, Timeouts{})

	runID := uuid.New()
	item := newItem("a lamp", "https://img/1.png", "https://img/2.png")
	results := d.Dispatch(context.Background(), runID, "user-1", []model.GenerationItem{item})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i, want := range []string{"https://out/1.png", "https://out/2.png"} {
		res := results[i]
		if res.Failed() {
			t.Fatalf("result %d unexpectedly failed: %s", i, *res.Error)
		}
		if *res.ResultURL != want {
			t.Errorf("result %d: expected %s, got %s", i, want, *res.ResultURL)
		}
		if res.RunID != runID || res.Owner != "user-1" {
			t.Errorf("result %d: wrong run or owner: %+v", i, res)
		}
		if len(res.ReferenceImages) != 2 {
			t.Errorf("result %d: expected 2 reference images, got %v", i, res.ReferenceImages)
		}
	}
	if results[0].ID == results[1].ID {
		t.Error("expected distinct result ids")
	}
	if len(store.results()) != 2 {
		t.Errorf("expected 2 persisted results, got %d", len(store.results()))
	}
	if len(notifier.events) != 2 {
		t.Errorf("expected 2 recorded events, got %d", len(notifier.events))
	}
}

func TestDispatch_SendsAllReferencesInOneCall(t *testing.T) {
	var calls [][]string
	p := providerFunc(func(_ context.Context, req model.GenerationRequest) ([]model.Artifact, error) {
		calls = append(calls, req.ReferenceImages)
		return []model.Artifact{{ResultURL: "https://out/1.png"}}, nil
	})
	d := New(p, &fakeStore{}, nil, inlinePool{}, Timeouts{})

	d.Dispatch(context.Background(), uuid.New(), "user-1", []model.GenerationItem{
		newItem("a sofa", "https://img/1.png", "", "https://img/2.png"),
	})

	if len(calls) != 1 {
		t.Fatalf("expected 1 provider call, got %d", len(calls))
	}
	if len(calls[0]) != 2 {
		t.Errorf("expected empty references to be dropped, got %v", calls[0])
	}
}

func TestDispatch_SkipsIncompleteItems(t *testing.T) {
	called := 0
	p := providerFunc(func(context.Context, model.GenerationRequest) ([]model.Artifact, error) {
		called++
		return []model.Artifact{{ResultURL: "https://out/1.png"}}, nil
	})
	store := &fakeStore{}
	d := New(p, store, nil, inlinePool{}, Timeouts{})

	results := d.Dispatch(context.Background(), uuid.New(), "user-1", []model.GenerationItem{
		newItem("  ", "https://img/1.png"),
		newItem("no refs"),
		newItem("empty refs", ""),
	})

	if called != 0 {
		t.Errorf("expected provider not to be called, got %d calls", called)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
	if len(store.results()) != 0 {
		t.Errorf("expected nothing persisted, got %d", len(store.results()))
	}
}

func TestDispatch_TimeoutDoesNotStopNextItem(t *testing.T) {
	p := providerFunc(func(ctx context.Context, req model.GenerationRequest) ([]model.Artifact, error) {
		if req.Prompt == "slow" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []model.Artifact{{ResultURL: "https://out/fast.png"}}, nil
	})
	d := New(p, &fakeStore{}, nil, inlinePool{}, Timeouts{Provider: 20 * time.Millisecond})

	results := d.Dispatch(context.Background(), uuid.New(), "user-1", []model.GenerationItem{
		newItem("slow", "https://img/1.png"),
		newItem("fast", "https://img/2.png"),
	})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Failed() {
		t.Error("expected slow item to fail")
	}
	if results[1].Failed() {
		t.Errorf("expected fast item to succeed, got %s", *results[1].Error)
	}
}

func TestDispatch_PersistenceFailureIsPerArtifact(t *testing.T) {
	store := &fakeStore{
		fail: func(res model.Result) error {
			if res.ResultURL != nil && *res.ResultURL == "https://out/bad.png" {
				return errors.New("connection reset")
			}
			return nil
		},
	}
	notifier := &fakeNotifier{}
	p := providerFunc(func(context.Context, model.GenerationRequest) ([]model.Artifact, error) {
		return []model.Artifact{{ResultURL: "https://out/good.png"}, {ResultURL: "https://out/bad.png"}}, nil
	})
	d := New(p, store, notifier, inlinePool{}, Timeouts{})

	results := d.Dispatch(context.Background(), uuid.New(), "user-1", []model.GenerationItem{
		newItem("a table", "https://img/1.png"),
	})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Failed() {
		t.Errorf("expected first artifact to succeed, got %s", *results[0].Error)
	}
	if !results[1].Failed() || results[1].ResultURL != nil {
		t.Fatalf("expected second artifact to become a failure, got %+v", results[1])
	}
	if !strings.Contains(*results[1].Error, "https://out/bad.png") {
		t.Errorf("expected error to name the artifact, got %q", *results[1].Error)
	}
	if len(notifier.events) != 1 {
		t.Errorf("expected 1 recorded event, got %d", len(notifier.events))
	}
}

func TestDispatch_FailedResultReturnedWhenStoreDown(t *testing.T) {
	store := &fakeStore{fail: func(model.Result) error { return errors.New("db down") }}
	p := providerFunc(func(context.Context, model.GenerationRequest) ([]model.Artifact, error) {
		return nil, &providerpkg.StatusError{Code: 500, Message: "boom"}
	})
	d := New(p, store, nil, inlinePool{}, Timeouts{})

	results := d.Dispatch(context.Background(), uuid.New(), "user-1", []model.GenerationItem{
		newItem("a vase", "https://img/1.png"),
	})

	if len(results) != 1 || !results[0].Failed() {
		t.Fatalf("expected one failed result, got %+v", results)
	}
	if *results[0].Error != "provider error: 500 - boom" {
		t.Errorf("unexpected error: %q", *results[0].Error)
	}
}

func TestDispatch_NotifierFailureKeepsResult(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("kafka down")}
	p := providerFunc(func(context.Context, model.GenerationRequest) ([]model.Artifact, error) {
		return []model.Artifact{{ResultURL: "https://out/1.png"}}, nil
	})
	d := New(p, &fakeStore{}, notifier, inlinePool{}, Timeouts{})

	results := d.Dispatch(context.Background(), uuid.New(), "user-1", []model.GenerationItem{
		newItem("a bed", "https://img/1.png"),
	})

	if len(results) != 1 || results[0].Failed() {
		t.Fatalf("expected one successful result, got %+v", results)
	}
}

func TestDispatch_ConcurrentItemsKeepOrder(t *testing.T) {
	p := providerFunc(func(_ context.Context, req model.GenerationRequest) ([]model.Artifact, error) {
		switch req.Prompt {
		case "first":
			time.Sleep(40 * time.Millisecond)
		case "second":
			time.Sleep(20 * time.Millisecond)
		case "broken":
			return nil, errors.New("unavailable")
		}
		return []model.Artifact{{ResultURL: "https://out/" + req.Prompt + ".png"}}, nil
	})
	d := New(p, &fakeStore{}, nil, newAntsPool(t, 4), Timeouts{Provider: time.Second})

	results := d.Dispatch(context.Background(), uuid.New(), "user-1", []model.GenerationItem{
		newItem("first", "https://img/1.png"),
		newItem("second", "https://img/2.png"),
		newItem("broken", "https://img/3.png"),
		newItem("third", "https://img/4.png"),
	})

	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}

	want := []string{"https://out/first.png", "https://out/second.png", "", "https://out/third.png"}
	for i, url := range want {
		if url == "" {
			if !results[i].Failed() {
				t.Errorf("result %d: expected failure", i)
			}
			continue
		}
		if results[i].Failed() || *results[i].ResultURL != url {
			t.Errorf("result %d: expected %s, got %+v", i, url, results[i])
		}
	}
}

func TestDispatch_CanceledContextStartsNothing(t *testing.T) {
	called := 0
	p := providerFunc(func(context.Context, model.GenerationRequest) ([]model.Artifact, error) {
		called++
		return []model.Artifact{{ResultURL: "https://out/1.png"}}, nil
	})
	d := New(p, &fakeStore{}, nil, inlinePool{}, Timeouts{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := d.Dispatch(ctx, uuid.New(), "user-1", []model.GenerationItem{
		newItem("a chair", "https://img/1.png"),
	})

	if called != 0 || len(results) != 0 {
		t.Errorf("expected no work after cancellation, got %d calls and %d results", called, len(results))
	}
}

func TestDispatch_InFlightItemSurvivesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &fakeStore{}
	p := providerFunc(func(callCtx context.Context, _ model.GenerationRequest) ([]model.Artifact, error) {
		cancel()
		if callCtx.Err() != nil {
			return nil, callCtx.Err()
		}
		return []model.Artifact{{ResultURL: "https://out/1.png"}}, nil
	})
	d := New(p, store, nil, inlinePool{}, Timeouts{})

	results := d.Dispatch(ctx, uuid.New(), "user-1", []model.GenerationItem{
		newItem("a chair", "https://img/1.png"),
		newItem("a desk", "https://img/2.png"),
	})

	if len(results) != 1 || results[0].Failed() {
		t.Fatalf("expected the started item to finish successfully, got %+v", results)
	}
	if len(store.results()) != 1 {
		t.Errorf("expected the started item to be persisted, got %d", len(store.results()))
	}
}
