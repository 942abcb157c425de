// Command example wires the engine end to end: it connects to Redis, runs
// a few background tasks, follows them over pub/sub, and exercises the
// persistent containers.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jalexanderII/test-websocket/connection"
	"github.com/jalexanderII/test-websocket/core"
	"github.com/jalexanderII/test-websocket/monitor"
	"github.com/jalexanderII/test-websocket/processor"
	"github.com/jalexanderII/test-websocket/serialization"
	"github.com/jalexanderII/test-websocket/structures"
)

type report struct {
	Name  string `json:"name"`
	Total int    `json:"total"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "example: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := core.NewConfig()
	if err != nil {
		return err
	}
	logger := core.NewSimpleLogger(core.ParseLogLevel(cfg.LogLevel))

	manager, err := connection.NewManagerFromConfig(cfg, logger)
	if err != nil {
		return err
	}
	defer manager.Close()

	serializer := serialization.NewSerializer(
		serialization.WithCompressionThreshold(cfg.CompressionThreshold),
	)
	if err := serializer.Register("report", report{}); err != nil {
		return err
	}

	proc := processor.New(manager,
		processor.WithMaxWorkers(cfg.MaxWorkers),
		processor.WithResultTTL(cfg.ResultTTL),
		processor.WithKeyPrefix(cfg.TaskKeyPrefix),
		processor.WithLogger(logger),
		processor.WithSerializer(serializer),
	)
	defer proc.Close(ctx)

	mon := monitor.New(proc, monitor.WithLogger(logger))

	// A task followed over pub/sub
	id, err := proc.AddTask(ctx, func(ctx context.Context) (interface{}, error) {
		select {
		case <-time.After(200 * time.Millisecond):
			return report{Name: "nightly", Total: 42}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	if err != nil {
		return err
	}
	record, err := mon.WaitForCompletion(ctx, id, 5*time.Second)
	if err != nil {
		return err
	}
	logger.Info("Task completed", map[string]interface{}{
		"task_id": id,
		"status":  string(record.Status),
		"result":  record.Result,
	})

	// A task cancelled mid-flight
	slowID, err := proc.AddTask(ctx, func(ctx context.Context) (interface{}, error) {
		select {
		case <-time.After(time.Minute):
			return "never", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	if err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	cancelled, err := proc.CancelTask(ctx, slowID)
	if err != nil {
		return err
	}
	logger.Info("Task cancelled", map[string]interface{}{
		"task_id":   slowID,
		"cancelled": cancelled,
	})

	// Persistent containers sharing the same connection
	dict := structures.NewDict[report]("reports", manager, structures.WithSerializer(serializer))
	if err := dict.Set(ctx, "nightly", report{Name: "nightly", Total: 42}); err != nil {
		return err
	}
	queue := structures.NewQueue[string]("work", manager)
	if err := queue.Push(ctx, "item-1"); err != nil {
		return err
	}
	cache, err := structures.NewLRUCache[report]("hot", 128, manager)
	if err != nil {
		return err
	}
	if err := cache.Put(ctx, "nightly", report{Name: "nightly", Total: 42}); err != nil {
		return err
	}

	health := manager.HealthCheck(ctx)
	logger.Info("Connection health", map[string]interface{}{
		"healthy": health.Healthy,
		"latency": health.Latency.String(),
	})

	removed, err := proc.CleanupOldTasks(ctx, 24*time.Hour)
	if err != nil {
		return err
	}
	logger.Info("Cleanup finished", map[string]interface{}{
		"deleted": removed,
	})
	return nil
}
