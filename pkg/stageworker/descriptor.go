package stageworker

import (
	"context"
	"time"

	"github.com/navigo-fleet/pipeline/pkg/bus"
	"github.com/navigo-fleet/pipeline/pkg/store"
)

// Descriptor parameterizes the seven-step skeleton (spec.md §4.2) for
// one AI-backed stage. TIn is whatever FetchPrerequisites assembles
// (upstream record plus foreign-keyed context); TResult is the parsed,
// validated, normalized model output ready to commit.
type Descriptor[TIn any, TResult any] struct {
	// Name identifies the stage in logs ("data_analysis", "diagnosis", ...)
	// and becomes the agent_stage tag stamped on the completion event.
	Name string

	// OutputTopic is the bus topic the completion event publishes on.
	OutputTopic string

	// DuplicateTable/DuplicateKeyColumn identify the downstream table
	// and correlator column Gates A/B/C query (spec.md §4.3).
	DuplicateTable     string
	DuplicateKeyColumn string

	// ExtractDuplicateKey pulls the correlator value (e.g. case_id,
	// diagnosis_id) out of the inbound envelope.
	ExtractDuplicateKey func(env bus.Envelope) (string, error)

	// IsAdvanced reports whether a downstream record's status means
	// this stage has already run for that subject.
	IsAdvanced func(status string) bool

	// FetchPrerequisites reads the upstream record(s) and assembles
	// whatever foreign-keyed context the prompt needs. Return
	// ErrSkipped if the prerequisite is missing or has already
	// advanced past this stage.
	FetchPrerequisites func(ctx context.Context, st *store.Store, env bus.Envelope) (TIn, error)

	// AssemblePrompt builds the model prompt from the fetched input.
	// Return ErrSkipped to skip the model call entirely — used by the
	// anomaly stage's "no anomaly detected" no-publish path. Commit then
	// receives the zero TResult, so TIn carries everything needed to
	// commit. Any other error fails the delivery.
	AssemblePrompt func(in TIn) (string, error)

	// ParseAndNormalize turns the model's raw text into a validated,
	// invariant-clamped TResult (step 6).
	ParseAndNormalize func(raw string, in TIn) (TResult, error)

	// Commit persists the new case, advances the upstream status, and
	// returns the completion envelope fields to publish. publish=false
	// lets a stage (anomaly, when no anomaly fired) commit without
	// emitting a downstream event.
	Commit func(ctx context.Context, st *store.Store, in TIn, result TResult) (completion map[string]any, publish bool, err error)

	// ExtraPublish optionally fans a second message out to a different
	// topic after a successful Commit — used by the engagement stage's
	// communication-trigger (spec.md §4.8). ok=false skips it.
	ExtraPublish func(in TIn, result TResult) (topic string, payload map[string]any, ok bool)
}

// defaultDuplicateWindow is the duplicate-suppression window a Worker
// uses unless WithDuplicateWindow overrides it.
const defaultDuplicateWindow = 30 * time.Second
