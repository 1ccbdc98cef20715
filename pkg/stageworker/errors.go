package stageworker

import "errors"

// ErrSkipped signals a step-3/step-2 outcome that is not an error at
// all: an upstream prerequisite was missing or had already advanced
// past this stage. The bus.Handler treats it as a successful ack —
// spec.md §7 classifies this as "Missing prerequisite: log, return
// skipped; safe, this is how duplicates and out-of-order redelivery
// are absorbed."
var ErrSkipped = errors.New("stageworker: skipped")

// ErrMalformedInput is returned by FetchPrerequisites/AssemblePrompt
// when the envelope lacks a field the stage cannot proceed without.
// Unlike ErrSkipped, this is a genuine non-retryable error (spec.md §7
// "Malformed envelope").
var ErrMalformedInput = errors.New("stageworker: malformed input")
