package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/model"
)

// provider submits one generation request to the external provider.
type provider interface {
	Generate(ctx context.Context, req model.GenerationRequest) ([]model.Artifact, error)
}

// resultStore persists results.
type resultStore interface {
	SaveResult(ctx context.Context, res model.Result) (model.Result, error)
}

// notifier announces persisted results (e.g. a Kafka producer).
type notifier interface {
	ResultRecorded(ctx context.Context, ev model.ResultRecorded) error
}

// taskDispatcher runs tasks on a worker pool (e.g. *ants.Pool).
type taskDispatcher interface {
	Submit(task func()) error
}

// Timeouts bound the blocking operations of one item.
type Timeouts struct {
	Provider time.Duration // one provider call
	Persist  time.Duration // one result write
}

// Dispatcher executes generation items against the provider and records every outcome.
type Dispatcher struct {
	provider provider
	store    resultStore
	notifier notifier
	pool     taskDispatcher
	timeouts Timeouts
}

// New creates a Dispatcher. n may be nil when no one listens for recorded results.
func New(p provider, s resultStore, n notifier, pool taskDispatcher, timeouts Timeouts) *Dispatcher {
	return &Dispatcher{
		provider: p,
		store:    s,
		notifier: n,
		pool:     pool,
		timeouts: timeouts,
	}
}

// Dispatch runs every valid item of the run and returns the results in item order.
//
// Items without prompt text or reference images are skipped without a result.
// A failing item yields exactly one failed result; a successful one yields one
// result per artifact, in the provider's order. One item's failure never stops
// the others. Once ctx is done no new item is started, but items already started
// finish and persist their results.
func (d *Dispatcher) Dispatch(ctx context.Context, runID uuid.UUID, owner string, items []model.GenerationItem) []model.Result {
	slots := make([][]model.Result, len(items))
	detached := context.WithoutCancel(ctx)

	var wg sync.WaitGroup

	for i, item := range items {
		refs := nonEmpty(item.ReferenceImages)
		if strings.TrimSpace(item.Prompt) == "" || len(refs) == 0 {
			zlog.Logger.Warn().
				Str("run_id", runID.String()).
				Str("prompt_id", item.PromptID.String()).
				Msg("skipping incomplete generation item")
			continue
		}
		item.ReferenceImages = refs

		if ctx.Err() != nil {
			zlog.Logger.Warn().
				Str("run_id", runID.String()).
				Int("remaining", len(items)-i).
				Msg("dispatch canceled, remaining items not started")
			break
		}

		wg.Add(1)
		task := func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					slots[i] = []model.Result{d.fail(detached, runID, owner, item, fmt.Sprintf("internal error: %v", r))}
				}
			}()

			slots[i] = d.process(detached, runID, owner, item)
		}

		if err := d.pool.Submit(task); err != nil {
			zlog.Logger.Err(err).
				Str("run_id", runID.String()).
				Msg("worker pool rejected item, running inline")
			task()
		}
	}

	wg.Wait()

	results := make([]model.Result, 0, len(items))
	for _, slot := range slots {
		results = append(results, slot...)
	}

	return results
}

// process calls the provider for one item and records its outcome.
func (d *Dispatcher) process(ctx context.Context, runID uuid.UUID, owner string, item model.GenerationItem) []model.Result {
	callCtx, cancel := withTimeout(ctx, d.timeouts.Provider)
	artifacts, err := d.provider.Generate(callCtx, item.Request())
	cancel()

	if err != nil {
		zlog.Logger.Err(err).
			Str("run_id", runID.String()).
			Str("prompt_id", item.PromptID.String()).
			Msg("generation item failed")
		return []model.Result{d.fail(ctx, runID, owner, item, err.Error())}
	}

	results := make([]model.Result, 0, len(artifacts))
	for _, a := range artifacts {
		results = append(results, d.record(ctx, runID, owner, item, a))
	}

	return results
}

// record persists the result for one artifact. An artifact that cannot be
// persisted becomes a failed result of its own.
func (d *Dispatcher) record(ctx context.Context, runID uuid.UUID, owner string, item model.GenerationItem, a model.Artifact) model.Result {
	if a.ResultURL == "" {
		return d.fail(ctx, runID, owner, item, "provider returned an artifact without result_url")
	}

	url := a.ResultURL
	res := newResult(runID, owner, item)
	res.ResultURL = &url

	saved, err := d.save(ctx, res)
	if err != nil {
		zlog.Logger.Err(err).
			Str("run_id", runID.String()).
			Str("prompt_id", item.PromptID.String()).
			Str("result_url", url).
			Msg("failed to save result")
		return d.fail(ctx, runID, owner, item, fmt.Sprintf("failed to save result %s: %v", url, err))
	}

	d.notify(ctx, saved)

	return saved
}

// fail builds a failed result and persists it on a best-effort basis.
// The result is returned whether or not the write succeeds.
func (d *Dispatcher) fail(ctx context.Context, runID uuid.UUID, owner string, item model.GenerationItem, msg string) model.Result {
	if msg == "" {
		msg = "generation failed"
	}

	res := newResult(runID, owner, item)
	res.Error = &msg
	res.CreatedAt = time.Now()

	saved, err := d.save(ctx, res)
	if err != nil {
		zlog.Logger.Err(err).
			Str("run_id", runID.String()).
			Str("prompt_id", item.PromptID.String()).
			Msg("failed to save failed result")
		return res
	}

	return saved
}

func (d *Dispatcher) save(ctx context.Context, res model.Result) (model.Result, error) {
	saveCtx, cancel := withTimeout(ctx, d.timeouts.Persist)
	defer cancel()

	return d.store.SaveResult(saveCtx, res)
}

func (d *Dispatcher) notify(ctx context.Context, res model.Result) {
	if d.notifier == nil || res.ResultURL == nil {
		return
	}

	ev := model.ResultRecorded{
		ResultID:   res.ID,
		RunID:      res.RunID,
		Owner:      res.Owner,
		PromptID:   res.PromptID,
		OutputType: res.OutputType,
		ResultURL:  *res.ResultURL,
	}

	if err := d.notifier.ResultRecorded(ctx, ev); err != nil {
		zlog.Logger.Err(err).
			Str("result_id", res.ID.String()).
			Msg("failed to publish recorded result")
	}
}

func newResult(runID uuid.UUID, owner string, item model.GenerationItem) model.Result {
	return model.Result{
		ID:              uuid.New(),
		RunID:           runID,
		Owner:           owner,
		PromptID:        item.PromptID,
		OutputType:      item.OutputType,
		ReferenceImages: append([]string(nil), item.ReferenceImages...),
	}
}

func nonEmpty(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if strings.TrimSpace(u) != "" {
			out = append(out, u)
		}
	}
	return out
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
