package cron

import (
	"context"
	"fmt"
)

type deadLetterChecker interface {
	Check(ctx context.Context) error
}

// DeadLetterMonitorJob runs the dead-letter threshold check each cycle.
type DeadLetterMonitorJob struct {
	monitor deadLetterChecker
}

// NewDeadLetterMonitorJob builds the job.
func NewDeadLetterMonitorJob(monitor deadLetterChecker) (*DeadLetterMonitorJob, error) {
	if monitor == nil {
		return nil, fmt.Errorf("deadletter monitor required")
	}
	return &DeadLetterMonitorJob{monitor: monitor}, nil
}

// Name implements Job.
func (j *DeadLetterMonitorJob) Name() string { return "deadletter_monitor" }

// Run implements Job.
func (j *DeadLetterMonitorJob) Run(ctx context.Context) error {
	return j.monitor.Check(ctx)
}
