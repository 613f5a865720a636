package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/tundeajayi/storefront-backend/pkg/config"
	"github.com/tundeajayi/storefront-backend/pkg/enums"
	"github.com/tundeajayi/storefront-backend/pkg/logger"
	"github.com/tundeajayi/storefront-backend/pkg/metrics"
	"github.com/tundeajayi/storefront-backend/pkg/redis"
)

// Failure carries everything needed to replay a dead-lettered task.
type Failure struct {
	TaskID   uuid.UUID
	TaskName enums.TaskName
	Args     json.RawMessage
	Err      error
	Trace    string
	FailedAt time.Time
}

// FailureRecorder is the terminal hook invoked once retries are exhausted.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, failure Failure) error
}

// ExecuteFunc runs one task attempt.
type ExecuteFunc func(ctx context.Context, envelope Envelope) Outcome

// Middleware wraps task execution with a cross-cutting stage.
type Middleware func(next ExecuteFunc) ExecuteFunc

// RunnerParams collects the runner dependencies.
type RunnerParams struct {
	Queue    redis.Queue
	Handlers []Handler
	Recorder FailureRecorder
	Config   config.TaskConfig
	Logger   *logger.Logger
	Metrics  *metrics.TaskMetrics
}

// Runner pulls envelopes from the shared queue and executes them on a worker
// pool with bounded retry and exponential backoff. Exhausted tasks land in
// the dead-letter store instead of being dropped.
type Runner struct {
	queue    redis.Queue
	queueKey string
	handlers map[enums.TaskName]Handler
	recorder FailureRecorder
	cfg      config.TaskConfig
	logger   *logger.Logger
	metrics  *metrics.TaskMetrics
	execute  ExecuteFunc
}

// NewRunner constructs the runner with its handler registry built up front;
// nothing is looked up from ambient global state.
func NewRunner(params RunnerParams) (*Runner, error) {
	if params.Queue == nil {
		return nil, fmt.Errorf("queue required")
	}
	if len(params.Handlers) == 0 {
		return nil, fmt.Errorf("at least one handler required")
	}
	if params.Recorder == nil {
		return nil, fmt.Errorf("failure recorder required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Config.Workers <= 0 {
		params.Config.Workers = 1
	}
	if params.Config.MaxRetries < 0 {
		params.Config.MaxRetries = 0
	}
	if params.Config.BackoffBase <= 0 {
		params.Config.BackoffBase = time.Second
	}
	if params.Config.PopTimeout <= 0 {
		params.Config.PopTimeout = 5 * time.Second
	}
	if params.Config.QueueKey == "" {
		return nil, fmt.Errorf("queue key required")
	}

	handlers := make(map[enums.TaskName]Handler, len(params.Handlers))
	for _, handler := range params.Handlers {
		if _, exists := handlers[handler.Name()]; exists {
			return nil, fmt.Errorf("duplicate handler for task %s", handler.Name())
		}
		handlers[handler.Name()] = handler
	}

	r := &Runner{
		queue:    params.Queue,
		queueKey: params.Queue.QueueKey(params.Config.QueueKey),
		handlers: handlers,
		recorder: params.Recorder,
		cfg:      params.Config,
		logger:   params.Logger,
		metrics:  params.Metrics,
	}
	r.execute = chain(r.dispatch, r.observe)
	return r, nil
}

// Run blocks consuming the queue until the context is cancelled.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.consume(ctx)
		}()
	}
	wg.Wait()
}

func (r *Runner) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		values, err := r.queue.BRPop(ctx, r.cfg.PopTimeout, r.queueKey)
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			r.logger.Error(ctx, "pop task from queue", err)
			continue
		}
		// BRPop returns [key, value]
		if len(values) < 2 {
			continue
		}
		var envelope Envelope
		if err := json.Unmarshal([]byte(values[1]), &envelope); err != nil {
			r.logger.Error(ctx, "decode task envelope", err)
			continue
		}
		r.Process(ctx, envelope)
	}
}

// Process runs one envelope through the retry policy and, on exhaustion,
// the terminal failure hook. Exposed so the web intake path and tests can
// execute envelopes without a live queue.
func (r *Runner) Process(ctx context.Context, envelope Envelope) {
	ctx = r.logger.WithTaskID(ctx, envelope.TaskID.String())

	var lastErr error
	var lastTrace string
	backoff := retry.WithMaxRetries(uint64(r.cfg.MaxRetries), retry.NewExponential(r.cfg.BackoffBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		outcome := r.execute(ctx, envelope)
		switch outcome.Kind {
		case OutcomeSuccess:
			return nil
		case OutcomeRetryable:
			lastErr = outcome.Err
			lastTrace = string(debug.Stack())
			return retry.RetryableError(outcome.Err)
		default:
			lastErr = outcome.Err
			lastTrace = string(debug.Stack())
			return outcome.Err
		}
	})
	if err == nil {
		return
	}
	if lastErr == nil {
		lastErr = err
	}

	r.logger.Error(ctx, fmt.Sprintf("task %s exhausted retries", envelope.TaskName), lastErr)
	failure := Failure{
		TaskID:   envelope.TaskID,
		TaskName: envelope.TaskName,
		Args:     envelope.Args,
		Err:      lastErr,
		Trace:    lastTrace,
		FailedAt: time.Now().UTC(),
	}
	if recordErr := r.recorder.RecordFailure(ctx, failure); recordErr != nil {
		// the dead-letter write is the last stop; losing it means the task
		// vanishes, so it must be loud
		r.logger.Error(ctx, "record dead-lettered task", recordErr)
	}
}

func (r *Runner) dispatch(ctx context.Context, envelope Envelope) (outcome Outcome) {
	defer func() {
		if recovered := recover(); recovered != nil {
			outcome = Retry(fmt.Errorf("task panic: %v", recovered))
		}
	}()
	handler, ok := r.handlers[envelope.TaskName]
	if !ok {
		return Fail(fmt.Errorf("no handler registered for task %s", envelope.TaskName))
	}
	return handler.Execute(ctx, envelope.Args)
}

// observe wraps execution with timing, logging, and counters.
func (r *Runner) observe(next ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, envelope Envelope) Outcome {
		started := time.Now()
		outcome := next(ctx, envelope)
		elapsed := time.Since(started)

		name := envelope.TaskName.String()
		r.metrics.ObserveDuration(name, elapsed)
		switch outcome.Kind {
		case OutcomeSuccess:
			r.metrics.IncExecution(name, "success")
			r.logger.Info(ctx, fmt.Sprintf("task %s completed in %s", name, elapsed))
		case OutcomeRetryable:
			r.metrics.IncExecution(name, "retry")
			r.logger.Warn(ctx, fmt.Sprintf("task %s failed transiently after %s: %v", name, elapsed, outcome.Err))
		default:
			r.metrics.IncExecution(name, "failure")
			r.logger.Error(ctx, fmt.Sprintf("task %s failed permanently after %s", name, elapsed), outcome.Err)
		}
		return outcome
	}
}

func chain(base ExecuteFunc, middlewares ...Middleware) ExecuteFunc {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}
