// Package stageworker implements the seven-step skeleton shared by
// every AI-backed stage (spec.md §4.2), generalizing the duplicated
// per-stage logic that original_source/ repeats stage-by-stage behind
// one generic driver — the re-architecture spec.md §9 asks for.
package stageworker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/navigo-fleet/pipeline/pkg/bus"
	"github.com/navigo-fleet/pipeline/pkg/llmclient"
	"github.com/navigo-fleet/pipeline/pkg/metrics"
	"github.com/navigo-fleet/pipeline/pkg/store"
)

// Worker drives one Descriptor's seven steps for every inbound
// envelope on its input topic.
type Worker[TIn any, TResult any] struct {
	desc   Descriptor[TIn, TResult]
	store  *store.Store
	llm    llmclient.Client
	pub    *bus.Publisher
	window time.Duration

	// jitter returns the pre-model-call sleep duration (step 5). Real
	// workers use a uniform random 0-10s; tests override it to avoid
	// ten-second unit tests.
	jitter func() time.Duration

	// metrics is nil-safe; a zero Worker (as built in tests) records
	// nothing.
	metrics *metrics.Registry
}

// WithMetrics attaches a metrics.Registry so every Handle invocation
// records its outcome and latency.
func WithMetrics[TIn any, TResult any](m *metrics.Registry) Option[TIn, TResult] {
	return func(w *Worker[TIn, TResult]) { w.metrics = m }
}

// Option configures a Worker beyond its required constructor arguments.
type Option[TIn any, TResult any] func(*Worker[TIn, TResult])

// WithDuplicateWindow overrides the default 30s duplicate-suppression
// window (config.DuplicateWindow in production).
func WithDuplicateWindow[TIn any, TResult any](d time.Duration) Option[TIn, TResult] {
	return func(w *Worker[TIn, TResult]) { w.window = d }
}

// WithJitter overrides the step-5 pre-call sleep function. Intended for
// tests; production workers should leave this at its default uniform
// 0-10s jitter.
func WithJitter[TIn any, TResult any](fn func() time.Duration) Option[TIn, TResult] {
	return func(w *Worker[TIn, TResult]) { w.jitter = fn }
}

// New creates a Worker for desc.
func New[TIn any, TResult any](desc Descriptor[TIn, TResult], st *store.Store, llm llmclient.Client, pub *bus.Publisher, opts ...Option[TIn, TResult]) *Worker[TIn, TResult] {
	w := &Worker[TIn, TResult]{
		desc:   desc,
		store:  st,
		llm:    llm,
		pub:    pub,
		window: defaultDuplicateWindow,
		jitter: func() time.Duration { return time.Duration(rand.Int64N(int64(10 * time.Second))) },
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Handle implements bus.Handler. It runs the full seven-step skeleton
// for one envelope.
func (w *Worker[TIn, TResult]) Handle(ctx context.Context, env bus.Envelope) error {
	if w.metrics == nil {
		return w.handle(ctx, env)
	}
	start := time.Now()
	err := w.handle(ctx, env)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	w.metrics.ObserveStage(w.desc.Name, outcome, time.Since(start))
	return err
}

func (w *Worker[TIn, TResult]) handle(ctx context.Context, env bus.Envelope) error {
	log := slog.With("stage", w.desc.Name, "case_id", env.CaseID())

	// Step 2: early duplicate check (Gate A).
	if skip, err := w.checkDuplicate(ctx, env); err != nil {
		return fmt.Errorf("%s: gate a: %w", w.desc.Name, err)
	} else if skip {
		log.Debug("skipped: gate a duplicate")
		return nil
	}

	// Step 3 + 4: fetch prerequisites and assemble model input.
	in, err := w.desc.FetchPrerequisites(ctx, w.store, env)
	if err != nil {
		if errors.Is(err, ErrSkipped) {
			log.Debug("skipped: prerequisite missing or already advanced")
			return nil
		}
		return fmt.Errorf("%s: fetch prerequisites: %w", w.desc.Name, err)
	}

	prompt, err := w.desc.AssemblePrompt(in)
	if err != nil {
		if errors.Is(err, ErrSkipped) {
			log.Debug("skipped: no model call required")
			return w.commit(ctx, log, in, *new(TResult), false)
		}
		return fmt.Errorf("%s: assemble prompt: %w", w.desc.Name, err)
	}

	// Step 5: jittered model call with dup re-check (Gate B) and
	// exponential backoff on rate-limit errors.
	select {
	case <-time.After(w.jitter()):
	case <-ctx.Done():
		return ctx.Err()
	}

	if skip, err := w.checkDuplicate(ctx, env); err != nil {
		return fmt.Errorf("%s: gate b: %w", w.desc.Name, err)
	} else if skip {
		log.Debug("skipped: gate b duplicate")
		return nil
	}

	raw, err := w.callModel(ctx, log, prompt)
	if err != nil {
		return fmt.Errorf("%s: model call: %w", w.desc.Name, err)
	}

	// Step 6: parse, validate, normalize.
	result, err := w.desc.ParseAndNormalize(ExtractJSON(raw), in)
	if err != nil {
		return fmt.Errorf("%s: parse model output: %w", w.desc.Name, err)
	}

	// Step 7: final duplicate check (Gate C) + commit + publish.
	if skip, err := w.checkDuplicate(ctx, env); err != nil {
		return fmt.Errorf("%s: gate c: %w", w.desc.Name, err)
	} else if skip {
		log.Debug("skipped: gate c duplicate")
		return nil
	}

	return w.commit(ctx, log, in, result, true)
}

// commit writes the new case, advances upstream status, and publishes
// the completion event if desired.
func (w *Worker[TIn, TResult]) commit(ctx context.Context, log *slog.Logger, in TIn, result TResult, wantPublish bool) error {
	completion, publish, err := w.desc.Commit(ctx, w.store, in, result)
	if err != nil {
		return fmt.Errorf("%s: commit: %w", w.desc.Name, err)
	}
	if !wantPublish || !publish {
		log.Debug("committed without publish")
		return nil
	}
	if completion == nil {
		completion = map[string]any{}
	}
	completion["agent_stage"] = w.desc.Name

	if err := w.pub.Publish(ctx, w.desc.OutputTopic, completion); err != nil {
		return fmt.Errorf("%s: publish %s: %w", w.desc.Name, w.desc.OutputTopic, err)
	}
	log.Info("stage complete", "topic", w.desc.OutputTopic)

	if w.desc.ExtraPublish != nil {
		if topic, payload, ok := w.desc.ExtraPublish(in, result); ok {
			if err := w.pub.Publish(ctx, topic, payload); err != nil {
				return fmt.Errorf("%s: publish %s: %w", w.desc.Name, topic, err)
			}
			log.Info("stage complete: extra publish", "topic", topic)
		}
	}
	return nil
}

// checkDuplicate runs one gate query, returning true if this delivery
// should be suppressed. A Descriptor with no DuplicateTable configured
// (none in practice — every stage is keyed) always proceeds.
func (w *Worker[TIn, TResult]) checkDuplicate(ctx context.Context, env bus.Envelope) (bool, error) {
	if w.desc.DuplicateTable == "" || w.desc.ExtractDuplicateKey == nil {
		return false, nil
	}
	key, err := w.desc.ExtractDuplicateKey(env)
	if err != nil {
		if errors.Is(err, ErrSkipped) {
			return false, nil
		}
		return false, err
	}
	if key == "" {
		return false, nil
	}
	result, _, err := w.store.CheckDuplicate(ctx, w.desc.DuplicateTable, w.desc.DuplicateKeyColumn, key, w.desc.IsAdvanced, w.window)
	if err != nil {
		return false, err
	}
	return result.IsDuplicate(), nil
}

// callModel invokes the model backend with exponential backoff on
// rate-limit errors, up to llmclient.MaxAttempts.
func (w *Worker[TIn, TResult]) callModel(ctx context.Context, log *slog.Logger, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < llmclient.MaxAttempts; attempt++ {
		text, err := w.llm.Complete(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if llmclient.Classify(err) != llmclient.RetryRateLimited {
			return "", err
		}

		log.Warn("model rate-limited, backing off", "attempt", attempt+1, "error", err)
		select {
		case <-time.After(llmclient.Backoff(attempt)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("exhausted %d attempts: %w", llmclient.MaxAttempts, lastErr)
}
