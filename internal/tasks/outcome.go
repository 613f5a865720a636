package tasks

import (
	"context"
	"encoding/json"

	"github.com/tundeajayi/storefront-backend/pkg/enums"
)

// OutcomeKind classifies how a task attempt ended.
type OutcomeKind int

const (
	// OutcomeSuccess covers both real success and expected, already-handled
	// conditions such as "email already sent".
	OutcomeSuccess OutcomeKind = iota
	// OutcomeRetryable marks transient failures worth another attempt.
	OutcomeRetryable
	// OutcomePermanent marks failures no retry can fix.
	OutcomePermanent
)

// Outcome is the explicit result returned by a task body. The runner
// inspects it instead of catching special error types.
type Outcome struct {
	Kind OutcomeKind
	Err  error
}

// Success reports the attempt as done.
func Success() Outcome {
	return Outcome{Kind: OutcomeSuccess}
}

// Retry reports a transient failure the runner should back off and retry.
func Retry(err error) Outcome {
	return Outcome{Kind: OutcomeRetryable, Err: err}
}

// Fail reports a failure that retrying cannot fix.
func Fail(err error) Outcome {
	return Outcome{Kind: OutcomePermanent, Err: err}
}

// Handler executes one task type. Args carry the envelope payload exactly as
// it was enqueued.
type Handler interface {
	Name() enums.TaskName
	Execute(ctx context.Context, args json.RawMessage) Outcome
}
