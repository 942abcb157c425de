// Package processor runs background tasks with bounded concurrency,
// persisting task state in Redis and publishing state changes over pub/sub
// so observers can follow a task without polling.
package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/jalexanderII/test-websocket/connection"
	"github.com/jalexanderII/test-websocket/core"
	"github.com/jalexanderII/test-websocket/serialization"
)

const (
	// DefaultMaxWorkers bounds concurrent task execution
	DefaultMaxWorkers = 10
	// DefaultResultTTL is how long task records survive after their last update
	DefaultResultTTL = time.Hour
	// DefaultKeyPrefix namespaces task records and update channels
	DefaultKeyPrefix = "background_tasks"
)

// BackgroundTaskProcessor schedules and executes background tasks. At most
// maxWorkers tasks run concurrently; excess submissions queue in pending
// state until a slot frees. All state transitions are persisted and
// published before the next transition begins.
type BackgroundTaskProcessor struct {
	manager    *connection.Manager
	serializer *serialization.Serializer
	logger     core.Logger

	maxWorkers int
	sem        *semaphore.Weighted
	resultTTL  time.Duration
	keyPrefix  string

	mu      sync.Mutex
	handles map[string]*taskHandle
	closed  bool

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup
}

// taskHandle is the in-process cancellation index entry for a live task
type taskHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// ProcessorOption configures the processor
type ProcessorOption func(*BackgroundTaskProcessor)

// WithMaxWorkers bounds concurrent task execution
func WithMaxWorkers(n int) ProcessorOption {
	return func(p *BackgroundTaskProcessor) {
		if n > 0 {
			p.maxWorkers = n
		}
	}
}

// WithResultTTL sets how long task records survive after their last update
func WithResultTTL(ttl time.Duration) ProcessorOption {
	return func(p *BackgroundTaskProcessor) {
		if ttl > 0 {
			p.resultTTL = ttl
		}
	}
}

// WithKeyPrefix overrides the record and channel namespace
func WithKeyPrefix(prefix string) ProcessorOption {
	return func(p *BackgroundTaskProcessor) {
		if prefix != "" {
			p.keyPrefix = prefix
		}
	}
}

// WithLogger sets the processor logger
func WithLogger(logger core.Logger) ProcessorOption {
	return func(p *BackgroundTaskProcessor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithSerializer sets the serializer used to normalize task results
func WithSerializer(s *serialization.Serializer) ProcessorOption {
	return func(p *BackgroundTaskProcessor) {
		if s != nil {
			p.serializer = s
		}
	}
}

// New creates a processor backed by the given connection manager
func New(manager *connection.Manager, opts ...ProcessorOption) *BackgroundTaskProcessor {
	p := &BackgroundTaskProcessor{
		manager:    manager,
		logger:     &core.NoOpLogger{},
		maxWorkers: DefaultMaxWorkers,
		resultTTL:  DefaultResultTTL,
		keyPrefix:  DefaultKeyPrefix,
		handles:    make(map[string]*taskHandle),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.serializer == nil {
		p.serializer = serialization.NewSerializer()
	}
	p.sem = semaphore.NewWeighted(int64(p.maxWorkers))
	p.baseCtx, p.baseCancel = context.WithCancel(context.Background())
	return p
}

// NewFromConfig creates a processor configured from cfg
func NewFromConfig(cfg *core.Config, manager *connection.Manager, logger core.Logger) *BackgroundTaskProcessor {
	return New(manager,
		WithMaxWorkers(cfg.MaxWorkers),
		WithResultTTL(cfg.ResultTTL),
		WithKeyPrefix(cfg.TaskKeyPrefix),
		WithLogger(logger),
	)
}

// TaskOption configures a single task submission
type TaskOption func(*taskOptions)

type taskOptions struct {
	id string
}

// WithTaskID supplies a caller-chosen task ID instead of a generated one
func WithTaskID(id string) TaskOption {
	return func(o *taskOptions) { o.id = id }
}

func (p *BackgroundTaskProcessor) resultKey(id string) string {
	return p.keyPrefix + ":result:" + id
}

func (p *BackgroundTaskProcessor) updatesChannel(id string) string {
	return p.keyPrefix + ":updates:" + id
}

// AddTask submits a task for background execution and returns its ID. The
// task is persisted as pending before AddTask returns; execution begins as
// soon as a worker slot is free.
func (p *BackgroundTaskProcessor) AddTask(ctx context.Context, fn TaskFunc, opts ...TaskOption) (string, error) {
	o := &taskOptions{}
	for _, opt := range opts {
		opt(o)
	}
	id := o.id
	if id == "" {
		id = uuid.NewString()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return "", core.ErrProcessorClosed
	}
	if _, exists := p.handles[id]; exists {
		p.mu.Unlock()
		return "", fmt.Errorf("task %q already running: %w", id, core.ErrInvalidArgument)
	}
	taskCtx, cancel := context.WithCancel(p.baseCtx)
	handle := &taskHandle{cancel: cancel, done: make(chan struct{})}
	p.handles[id] = handle
	p.wg.Add(1)
	p.mu.Unlock()

	now := time.Now().UTC()
	record := &TaskRecord{Status: StatusPending, CreatedAt: now, UpdatedAt: now}
	if err := p.writeRecord(ctx, id, record); err != nil {
		p.release(id, handle)
		cancel()
		return "", err
	}

	p.logger.Debug("Task submitted", map[string]interface{}{
		"task_id": id,
	})

	go p.execute(taskCtx, id, handle, fn)
	return id, nil
}

// AddBlockingTask submits work that cannot observe a context. The function
// runs on its own goroutine; on cancellation the task finishes as cancelled
// and the function's eventual result is discarded.
func (p *BackgroundTaskProcessor) AddBlockingTask(ctx context.Context, fn BlockingFunc, opts ...TaskOption) (string, error) {
	return p.AddTask(ctx, func(taskCtx context.Context) (interface{}, error) {
		type outcome struct {
			result interface{}
			err    error
		}
		ch := make(chan outcome, 1)
		go func() {
			result, err := fn()
			ch <- outcome{result, err}
		}()
		select {
		case out := <-ch:
			return out.result, out.err
		case <-taskCtx.Done():
			return nil, taskCtx.Err()
		}
	}, opts...)
}

// execute drives a task through its lifecycle on a worker goroutine
func (p *BackgroundTaskProcessor) execute(taskCtx context.Context, id string, handle *taskHandle, fn TaskFunc) {
	defer p.release(id, handle)

	// Persistence is detached from the task context so a cancelled task
	// can still record its final state.
	storeCtx := context.Background()

	if err := p.sem.Acquire(taskCtx, 1); err != nil {
		p.finish(storeCtx, id, StatusCancelled, nil, nil)
		return
	}
	defer p.sem.Release(1)

	if !p.transition(storeCtx, id, StatusRunning, nil) {
		return
	}

	result, err := fn(taskCtx)
	switch {
	case taskCtx.Err() != nil:
		p.finish(storeCtx, id, StatusCancelled, nil, nil)
	case err != nil:
		msg := err.Error()
		p.finish(storeCtx, id, StatusFailed, nil, &msg)
	default:
		normalized, nerr := p.serializer.Normalize(result)
		if nerr != nil {
			msg := fmt.Sprintf("result not serializable: %v", nerr)
			p.finish(storeCtx, id, StatusFailed, nil, &msg)
			return
		}
		p.finish(storeCtx, id, StatusCompleted, normalized, nil)
	}
}

func (p *BackgroundTaskProcessor) release(id string, handle *taskHandle) {
	p.mu.Lock()
	if p.handles[id] == handle {
		delete(p.handles, id)
	}
	p.mu.Unlock()
	close(handle.done)
	p.wg.Done()
}

// transition moves a non-terminal task to status and publishes the change.
// Returns false when the record is already terminal or unreadable.
func (p *BackgroundTaskProcessor) transition(ctx context.Context, id string, status TaskStatus, data map[string]interface{}) bool {
	record, err := p.GetTaskResult(ctx, id)
	if err != nil {
		p.logger.Error("Failed to read task record", map[string]interface{}{
			"task_id": id,
			"error":   err,
		})
		return false
	}
	if record == nil || record.Status.IsTerminal() {
		return false
	}
	record.Status = status
	record.UpdatedAt = time.Now().UTC()
	if err := p.writeRecord(ctx, id, record); err != nil {
		p.logger.Error("Failed to persist task state", map[string]interface{}{
			"task_id": id,
			"status":  string(status),
			"error":   err,
		})
		return false
	}
	p.publishUpdate(ctx, id, status, data)
	return true
}

// finish moves a non-terminal task to a terminal status, recording the
// result or error and publishing the final update.
func (p *BackgroundTaskProcessor) finish(ctx context.Context, id string, status TaskStatus, result interface{}, errMsg *string) {
	record, err := p.GetTaskResult(ctx, id)
	if err != nil {
		p.logger.Error("Failed to read task record", map[string]interface{}{
			"task_id": id,
			"error":   err,
		})
		return
	}
	if record == nil || record.Status.IsTerminal() {
		return
	}
	now := time.Now().UTC()
	record.Status = status
	record.UpdatedAt = now
	record.CompletedAt = &now
	record.Result = result
	record.Error = errMsg
	if err := p.writeRecord(ctx, id, record); err != nil {
		p.logger.Error("Failed to persist task state", map[string]interface{}{
			"task_id": id,
			"status":  string(status),
			"error":   err,
		})
		return
	}

	var data map[string]interface{}
	switch status {
	case StatusCompleted:
		data = map[string]interface{}{"result": result}
	case StatusFailed:
		if errMsg != nil {
			data = map[string]interface{}{"error": *errMsg}
		}
	}
	p.publishUpdate(ctx, id, status, data)

	p.logger.Info("Task finished", map[string]interface{}{
		"task_id": id,
		"status":  string(status),
	})
}

func (p *BackgroundTaskProcessor) writeRecord(ctx context.Context, id string, record *TaskRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal task record: %w", err)
	}
	_, err = p.manager.Execute(ctx, "set", p.resultKey(id), data, p.resultTTL)
	return err
}

// publishUpdate best-effort publishes a state change. Publish failures are
// logged, never fatal: the record is the source of truth.
func (p *BackgroundTaskProcessor) publishUpdate(ctx context.Context, id string, status TaskStatus, data map[string]interface{}) {
	update := TaskUpdate{
		TaskID:    id,
		Status:    status,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(update)
	if err != nil {
		p.logger.Error("Failed to marshal task update", map[string]interface{}{
			"task_id": id,
			"error":   err,
		})
		return
	}
	if _, err := p.manager.Execute(ctx, "publish", p.updatesChannel(id), payload); err != nil {
		p.logger.Warn("Failed to publish task update", map[string]interface{}{
			"task_id": id,
			"status":  string(status),
			"error":   err,
		})
	}
}

// GetTaskResult returns the persisted record for a task, or nil when the
// task is unknown or its record has expired.
func (p *BackgroundTaskProcessor) GetTaskResult(ctx context.Context, id string) (*TaskRecord, error) {
	res, err := p.manager.Execute(ctx, "get", p.resultKey(id))
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	raw, ok := res.(string)
	if !ok {
		return nil, fmt.Errorf("task %q: unexpected record payload %T: %w", id, res, core.ErrSerialization)
	}
	var record TaskRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("unmarshal task record %q: %w", id, err)
	}
	return &record, nil
}

// GetTaskStatus returns the task's current status
func (p *BackgroundTaskProcessor) GetTaskStatus(ctx context.Context, id string) (TaskStatus, error) {
	record, err := p.GetTaskResult(ctx, id)
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", fmt.Errorf("task %q: %w", id, core.ErrTaskNotFound)
	}
	return record.Status, nil
}

// CancelTask cancels a pending or running task. It returns true when the
// task ends cancelled, false when it is unknown or already terminal. A
// task with no live handle in this process (for example one owned by
// another process) is marked cancelled directly.
func (p *BackgroundTaskProcessor) CancelTask(ctx context.Context, id string) (bool, error) {
	record, err := p.GetTaskResult(ctx, id)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}
	if record.Status.IsTerminal() {
		return false, nil
	}

	p.mu.Lock()
	handle := p.handles[id]
	p.mu.Unlock()

	if handle != nil {
		handle.cancel()
		select {
		case <-handle.done:
		case <-ctx.Done():
			return false, ctx.Err()
		}
		record, err = p.GetTaskResult(ctx, id)
		if err != nil {
			return false, err
		}
		if record != nil && record.Status == StatusCancelled {
			return true, nil
		}
		// The task raced to completion before the cancel took effect
		return false, nil
	}

	// No in-process handle; mark the record directly
	now := time.Now().UTC()
	record.Status = StatusCancelled
	record.UpdatedAt = now
	record.CompletedAt = &now
	if err := p.writeRecord(ctx, id, record); err != nil {
		return false, err
	}
	p.publishUpdate(ctx, id, StatusCancelled, nil)
	return true, nil
}

// SubscribeToTaskUpdates subscribes to a task's state change channel.
// Updates published before the subscription is established are not
// replayed; check the record after subscribing to avoid missing a
// terminal state.
func (p *BackgroundTaskProcessor) SubscribeToTaskUpdates(ctx context.Context, id string) (*Subscription, error) {
	return newSubscription(ctx, p.manager, p.updatesChannel(id), p.logger)
}

// CleanupOldTasks deletes terminal task records whose completion time is
// older than maxAge, falling back to the last update for records missing a
// completion timestamp. Non-terminal records survive regardless of age.
// Returns the number of records deleted.
func (p *BackgroundTaskProcessor) CleanupOldTasks(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	pattern := p.keyPrefix + ":result:*"

	deleted := 0
	var cursor uint64
	for {
		keys, next, err := p.manager.Scan(ctx, cursor, pattern, 100)
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			args := make([]interface{}, len(keys))
			for i, k := range keys {
				args[i] = k
			}
			res, err := p.manager.Execute(ctx, "mget", args...)
			if err != nil {
				return deleted, err
			}
			payloads, _ := res.([]interface{})

			var stale []interface{}
			for i, payload := range payloads {
				raw, ok := payload.(string)
				if !ok {
					continue
				}
				var record TaskRecord
				if err := json.Unmarshal([]byte(raw), &record); err != nil {
					p.logger.Warn("Skipping unreadable task record", map[string]interface{}{
						"key":   keys[i],
						"error": err,
					})
					continue
				}
				if !record.Status.IsTerminal() {
					continue
				}
				finished := record.UpdatedAt
				if record.CompletedAt != nil {
					finished = *record.CompletedAt
				}
				if finished.Before(cutoff) {
					stale = append(stale, keys[i])
				}
			}
			if len(stale) > 0 {
				res, err := p.manager.Execute(ctx, "del", stale...)
				if err != nil {
					return deleted, err
				}
				if n, ok := res.(int64); ok {
					deleted += int(n)
				}
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	if deleted > 0 {
		p.logger.Info("Cleaned up old task records", map[string]interface{}{
			"deleted": deleted,
			"max_age": maxAge.String(),
		})
	}
	return deleted, nil
}

// ActiveTasks returns the number of tasks this process currently tracks
func (p *BackgroundTaskProcessor) ActiveTasks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}

// Close stops accepting tasks, cancels all live tasks and waits for them
// to record their final state, bounded by ctx.
func (p *BackgroundTaskProcessor) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	p.baseCancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for tasks to stop: %w", ctx.Err())
	}
}
