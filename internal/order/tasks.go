package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-checkout/internal/obs"
	"github.com/noah-isme/backend-checkout/internal/queue"
)

// TaskExpire is the queue kind for unpaid order expiry.
const TaskExpire = "order.expire"

const expireMaxAttempts = 8

// ExpirePayload is the body of an expiry task.
type ExpirePayload struct {
	OrderID string `json:"order_id"`
}

// TaskEnqueuer is satisfied by queue.Enqueuer.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, t queue.Task) error
}

// ExpiryScheduler enqueues an expiry task for each new order.
type ExpiryScheduler struct {
	Queue TaskEnqueuer
	TTL   time.Duration
}

// Schedule enqueues the expiry of orderID once its payment window has elapsed.
func (s ExpiryScheduler) Schedule(ctx context.Context, orderID string) error {
	if s.Queue == nil {
		return errors.New("order: expiry queue not configured")
	}
	payload, err := json.Marshal(ExpirePayload{OrderID: orderID})
	if err != nil {
		return err
	}
	return s.Queue.Enqueue(ctx, queue.Task{
		Kind:           TaskExpire,
		Payload:        payload,
		IdempotencyKey: orderID,
		MaxAttempts:    expireMaxAttempts,
		Delay:          s.TTL,
	})
}

// Expirer closes unpaid orders.
type Expirer interface {
	Expire(ctx context.Context, orderID string) (bool, error)
	DuePending(ctx context.Context, limit int) ([]string, error)
}

// ExpiryWorker handles expiry tasks and periodically sweeps for overdue orders
// whose task was lost.
type ExpiryWorker struct {
	Orders Expirer
	Logger zerolog.Logger
}

// Handle processes one expiry task.
func (w ExpiryWorker) Handle(ctx context.Context, task queue.Task) error {
	var payload ExpirePayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil || payload.OrderID == "" {
		// A malformed payload will never succeed; drop it.
		w.Logger.Error().Err(err).Bytes("payload", task.Payload).Msg("invalid expiry task")
		return nil
	}
	return w.expire(ctx, payload.OrderID)
}

// Sweep expires up to limit overdue orders and returns how many were closed.
func (w ExpiryWorker) Sweep(ctx context.Context, limit int) (int, error) {
	ids, err := w.Orders.DuePending(ctx, limit)
	if err != nil {
		return 0, err
	}
	closed := 0
	for _, id := range ids {
		if err := w.expire(ctx, id); err != nil {
			return closed, err
		}
		closed++
	}
	return closed, nil
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (w ExpiryWorker) RunSweeper(ctx context.Context, interval time.Duration, limit int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := w.Sweep(ctx, limit); err != nil {
				w.Logger.Error().Err(err).Msg("expiry sweep failed")
			} else if n > 0 {
				w.Logger.Info().Int("expired", n).Msg("expiry sweep closed overdue orders")
			}
		}
	}
}

func (w ExpiryWorker) expire(ctx context.Context, orderID string) error {
	expired, err := w.Orders.Expire(ctx, orderID)
	if errors.Is(err, ErrNotFound) {
		w.Logger.Warn().Str("order_id", orderID).Msg("expiry for unknown order")
		return nil
	}
	if err != nil {
		return fmt.Errorf("expire order %s: %w", orderID, err)
	}
	if expired {
		obs.ObserveOrderExpired()
		w.Logger.Info().Str("order_id", orderID).Msg("order expired")
	}
	return nil
}
