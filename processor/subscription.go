package processor

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jalexanderII/test-websocket/connection"
	"github.com/jalexanderII/test-websocket/core"
)

// Subscription delivers a task's state change notifications as they are
// published. Updates is closed when the subscription ends, whether by
// Close, context cancellation, or a dropped connection; the underlying
// pub/sub connection is released in all three cases.
type Subscription struct {
	updates chan TaskUpdate
	cancel  context.CancelFunc

	closeOnce sync.Once
	closeErr  error
	closer    func() error
}

func newSubscription(ctx context.Context, manager *connection.Manager, channel string, logger core.Logger) (*Subscription, error) {
	pubsub, err := manager.Subscribe(ctx, channel)
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		updates: make(chan TaskUpdate, 16),
		cancel:  cancel,
		closer:  pubsub.Close,
	}

	go func() {
		defer close(sub.updates)
		defer sub.release()
		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var update TaskUpdate
				if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
					logger.Warn("Dropping malformed task update", map[string]interface{}{
						"channel": msg.Channel,
						"error":   err,
					})
					continue
				}
				select {
				case sub.updates <- update:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return sub, nil
}

// Updates returns the channel of state change notifications
func (s *Subscription) Updates() <-chan TaskUpdate {
	return s.updates
}

// release closes the pub/sub connection exactly once
func (s *Subscription) release() {
	s.closeOnce.Do(func() { s.closeErr = s.closer() })
}

// Close ends the subscription and releases its connection. Safe to call
// after the subscription already ended.
func (s *Subscription) Close() error {
	s.cancel()
	s.release()
	return s.closeErr
}
