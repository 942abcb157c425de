// Package monitor provides blocking helpers for following a background
// task to completion, either over pub/sub notifications or by polling the
// persisted record when pub/sub is unavailable.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jalexanderII/test-websocket/core"
	"github.com/jalexanderII/test-websocket/processor"
)

// DefaultPollInterval is the record poll cadence used when no interval is
// given.
const DefaultPollInterval = 250 * time.Millisecond

// TaskMonitor waits for background tasks to finish
type TaskMonitor struct {
	processor *processor.BackgroundTaskProcessor
	logger    core.Logger
}

// Option configures a TaskMonitor
type Option func(*TaskMonitor)

// WithLogger sets the monitor logger
func WithLogger(logger core.Logger) Option {
	return func(m *TaskMonitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates a monitor over the given processor
func New(p *processor.BackgroundTaskProcessor, opts ...Option) *TaskMonitor {
	m := &TaskMonitor{
		processor: p,
		logger:    &core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WaitForCompletion blocks until the task reaches a terminal state and
// returns its final record. The subscription is established before the
// record is checked, so a task finishing in between cannot be missed.
func (m *TaskMonitor) WaitForCompletion(ctx context.Context, id string, timeout time.Duration) (*processor.TaskRecord, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sub, err := m.processor.SubscribeToTaskUpdates(ctx, id)
	if err != nil {
		m.logger.Warn("Subscription unavailable, falling back to polling", map[string]interface{}{
			"task_id": id,
			"error":   err,
		})
		return m.pollUntilDone(ctx, id, DefaultPollInterval)
	}
	defer sub.Close()

	record, err := m.processor.GetTaskResult(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("task %q: %w", id, core.ErrTaskNotFound)
	}
	if record.Status.IsTerminal() {
		return record, nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil, m.deadline(ctx, id)
		case update, ok := <-sub.Updates():
			if !ok {
				// Subscription dropped; the record is still authoritative
				return m.pollUntilDone(ctx, id, DefaultPollInterval)
			}
			if !update.Status.IsTerminal() {
				continue
			}
			record, err := m.processor.GetTaskResult(ctx, id)
			if err != nil {
				return nil, err
			}
			if record == nil {
				return nil, fmt.Errorf("task %q: %w", id, core.ErrTaskNotFound)
			}
			return record, nil
		}
	}
}

// PollForCompletion blocks until the task reaches a terminal state,
// checking the persisted record every interval. Use this when pub/sub is
// not available on the deployment.
func (m *TaskMonitor) PollForCompletion(ctx context.Context, id string, interval, timeout time.Duration) (*processor.TaskRecord, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return m.pollUntilDone(ctx, id, interval)
}

func (m *TaskMonitor) pollUntilDone(ctx context.Context, id string, interval time.Duration) (*processor.TaskRecord, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		record, err := m.processor.GetTaskResult(ctx, id)
		if err != nil {
			return nil, err
		}
		if record == nil {
			return nil, fmt.Errorf("task %q: %w", id, core.ErrTaskNotFound)
		}
		if record.Status.IsTerminal() {
			return record, nil
		}
		select {
		case <-ctx.Done():
			return nil, m.deadline(ctx, id)
		case <-ticker.C:
		}
	}
}

func (m *TaskMonitor) deadline(ctx context.Context, id string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("waiting for task %q: %w", id, core.ErrTimeout)
	}
	return ctx.Err()
}
