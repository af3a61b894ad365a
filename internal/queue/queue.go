package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-checkout/internal/resilience"
)

const defaultMaxAttempts = 10

// Task represents a job to be processed asynchronously.
type Task struct {
	Kind           string
	Payload        []byte
	IdempotencyKey string
	MaxAttempts    int
	Delay          time.Duration
	Attempt        int
}

// Enqueuer publishes tasks to Redis sorted sets scored by their due time.
type Enqueuer struct {
	R        *redis.Client
	Prefix   string
	DedupTTL time.Duration
}

// Enqueue schedules the task to run after t.Delay. If an idempotency key is
// supplied the task is only enqueued once within the deduplication window.
func (e Enqueuer) Enqueue(ctx context.Context, t Task) error {
	if e.R == nil {
		return errors.New("queue: redis client not configured")
	}
	kind := sanitizeKind(t.Kind)
	if kind == "" {
		return errors.New("queue: task kind is required")
	}
	msg := taskMessage{
		Kind:        kind,
		Key:         t.IdempotencyKey,
		Payload:     t.Payload,
		Attempt:     max(t.Attempt, 0),
		MaxAttempts: t.MaxAttempts,
		AvailableAt: time.Now().Add(t.Delay).UnixNano(),
	}
	if msg.MaxAttempts <= 0 {
		msg.MaxAttempts = defaultMaxAttempts
	}

	if msg.Key != "" {
		ttl := e.DedupTTL
		if ttl <= 0 || ttl < t.Delay {
			ttl = t.Delay + 24*time.Hour
		}
		ok, err := e.R.SetNX(ctx, keys{e.Prefix}.dedup(kind, msg.Key), "1", ttl).Result()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return e.R.ZAdd(ctx, keys{e.Prefix}.ready(kind), redis.Z{Score: float64(msg.AvailableAt), Member: raw}).Err()
}

// Worker consumes tasks for a specific kind.
type Worker struct {
	R                 *redis.Client
	Prefix            string
	Kind              string
	Concurrency       int
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	Handler           func(context.Context, Task) error
	RetryBase         time.Duration
	RetryJitter       float64
	// DLQ receives tasks that exhausted their attempts. When nil they are kept
	// in a Redis list instead.
	DLQ    Store
	Logger *zerolog.Logger
}

// Run processes due tasks until the context is cancelled. Claimed tasks are
// tracked in a processing set so they are redelivered if a worker dies.
func (w Worker) Run(ctx context.Context) error {
	if w.R == nil {
		return errors.New("queue: worker redis client not configured")
	}
	if w.Handler == nil {
		return errors.New("queue: worker handler not configured")
	}
	kind := sanitizeKind(w.Kind)
	if kind == "" {
		return errors.New("queue: worker kind is required")
	}
	concurrency := max(w.Concurrency, 1)
	visibility := w.VisibilityTimeout
	if visibility <= 0 {
		visibility = 30 * time.Second
	}
	poll := w.PollInterval
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	k := keys{w.Prefix}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()

	requeueTicker := time.NewTicker(time.Second)
	defer requeueTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-requeueTicker.C:
			if err := w.requeueExpired(ctx, k.processing(kind), k.ready(kind)); err != nil && ctx.Err() == nil {
				return err
			}
		default:
		}

		raw, msg, ok, err := w.claim(ctx, k.ready(kind))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(poll):
			}
			continue
		}

		msg.Attempt++
		encoded, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		inflight := string(encoded)
		deadline := time.Now().Add(visibility).UnixNano()
		if err := w.R.ZAdd(ctx, k.processing(kind), redis.Z{Score: float64(deadline), Member: inflight}).Err(); err != nil {
			// Put the claimed task back before giving up.
			_ = w.R.ZAdd(context.WithoutCancel(ctx), k.ready(kind), redis.Z{Score: float64(msg.AvailableAt), Member: raw}).Err()
			return err
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return nil
		}
		wg.Add(1)
		go func(inflight string, m taskMessage) {
			defer func() { <-sem }()
			defer wg.Done()
			jobCtx, cancel := context.WithTimeout(ctx, visibility)
			defer cancel()
			started := time.Now()
			err := w.Handler(jobCtx, Task{Kind: kind, Payload: m.Payload, IdempotencyKey: m.Key, MaxAttempts: m.MaxAttempts, Attempt: m.Attempt})
			QueueTaskDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
			// Bookkeeping must survive shutdown of the parent context.
			bookCtx := context.WithoutCancel(ctx)
			if err != nil {
				w.handleFailure(bookCtx, k, inflight, m, err)
				return
			}
			w.ack(bookCtx, k, inflight, m)
		}(inflight, msg)
	}
}

// claim removes the oldest due task from the ready set. Only the worker whose
// ZREM succeeds owns the task.
func (w Worker) claim(ctx context.Context, readyKey string) (string, taskMessage, bool, error) {
	now := strconv.FormatInt(time.Now().UnixNano(), 10)
	due, err := w.R.ZRangeByScore(ctx, readyKey, &redis.ZRangeBy{Min: "-inf", Max: now, Count: 1}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", taskMessage{}, false, err
	}
	if len(due) == 0 {
		return "", taskMessage{}, false, nil
	}
	removed, err := w.R.ZRem(ctx, readyKey, due[0]).Result()
	if err != nil {
		return "", taskMessage{}, false, err
	}
	if removed == 0 {
		return "", taskMessage{}, false, nil
	}
	msg, err := decodeMessage(due[0])
	if err != nil {
		w.logger(ctx).Warn().Err(err).Str("kind", w.Kind).Msg("dropping undecodable task")
		return "", taskMessage{}, false, nil
	}
	return due[0], msg, true, nil
}

func (w Worker) handleFailure(ctx context.Context, k keys, inflight string, msg taskMessage, cause error) {
	removed, err := w.R.ZRem(ctx, k.processing(msg.Kind), inflight).Result()
	if err == nil && removed == 0 {
		// The visibility sweep already redelivered this task.
		return
	}
	log := w.logger(ctx).With().Str("kind", msg.Kind).Int("attempt", msg.Attempt).Logger()
	if msg.MaxAttempts > 0 && msg.Attempt >= msg.MaxAttempts {
		QueueProcessedTotal.WithLabelValues(msg.Kind, "dead").Inc()
		log.Error().Err(cause).Msg("task exhausted retries")
		w.bury(ctx, k, msg, cause)
		if msg.Key != "" {
			_ = w.R.Del(ctx, k.dedup(msg.Kind, msg.Key)).Err()
		}
		return
	}
	QueueProcessedTotal.WithLabelValues(msg.Kind, "retry").Inc()
	log.Warn().Err(cause).Msg("task failed, retrying")
	msg.AvailableAt = time.Now().Add(resilience.Backoff(w.retryBase(), msg.Attempt, w.RetryJitter)).UnixNano()
	encoded, err := json.Marshal(msg)
	if err != nil {
		return
	}
	_ = w.R.ZAdd(ctx, k.ready(msg.Kind), redis.Z{Score: float64(msg.AvailableAt), Member: string(encoded)}).Err()
}

func (w Worker) bury(ctx context.Context, k keys, msg taskMessage, cause error) {
	encoded, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if w.DLQ != nil {
		lastErr := cause.Error()
		_, err := w.DLQ.Add(ctx, DLQEntry{
			Kind:           msg.Kind,
			IdempotencyKey: msg.Key,
			Payload:        encoded,
			Attempts:       msg.Attempt,
			LastError:      &lastErr,
		})
		if err == nil {
			return
		}
		w.logger(ctx).Error().Err(err).Str("kind", msg.Kind).Msg("dlq insert failed, keeping task in redis")
	}
	_ = w.R.LPush(ctx, k.dlq(msg.Kind), encoded).Err()
}

func (w Worker) ack(ctx context.Context, k keys, inflight string, msg taskMessage) {
	QueueProcessedTotal.WithLabelValues(msg.Kind, "ok").Inc()
	_ = w.R.ZRem(ctx, k.processing(msg.Kind), inflight).Err()
	if msg.Key != "" {
		_ = w.R.Del(ctx, k.dedup(msg.Kind, msg.Key)).Err()
	}
}

func (w Worker) requeueExpired(ctx context.Context, processingKey, readyKey string) error {
	now := strconv.FormatInt(time.Now().UnixNano(), 10)
	due, err := w.R.ZRangeByScore(ctx, processingKey, &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	for _, raw := range due {
		removed, err := w.R.ZRem(ctx, processingKey, raw).Result()
		if err != nil || removed == 0 {
			continue
		}
		msg, err := decodeMessage(raw)
		if err != nil {
			continue
		}
		msg.AvailableAt = time.Now().UnixNano()
		encoded, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		_ = w.R.ZAdd(ctx, readyKey, redis.Z{Score: float64(msg.AvailableAt), Member: string(encoded)}).Err()
	}
	return nil
}

func (w Worker) retryBase() time.Duration {
	if w.RetryBase <= 0 {
		return 200 * time.Millisecond
	}
	return w.RetryBase
}

func (w Worker) logger(ctx context.Context) *zerolog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return zerolog.Ctx(ctx)
}

// keys builds the Redis key layout shared by the enqueuer, worker and admin handler.
type keys struct{ prefix string }

func (k keys) join(parts ...string) string {
	out := "queue"
	if k.prefix != "" {
		out = k.prefix + ":queue"
	}
	for _, p := range parts {
		out += ":" + p
	}
	return out
}

func (k keys) ready(kind string) string      { return k.join(kind) }
func (k keys) processing(kind string) string { return k.join(kind, "processing") }
func (k keys) dlq(kind string) string        { return k.join(kind, "dlq") }
func (k keys) dedup(kind, key string) string { return k.join("dedup", kind, key) }

func sanitizeKind(kind string) string {
	kind = strings.TrimSpace(kind)
	for i := 0; i < len(kind); i++ {
		c := kind[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == ':' || c == '.':
		default:
			return ""
		}
	}
	return kind
}

func decodeMessage(raw string) (taskMessage, error) {
	var msg taskMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return taskMessage{}, fmt.Errorf("decode task: %w", err)
	}
	return msg, nil
}

type taskMessage struct {
	Kind        string `json:"kind"`
	Key         string `json:"key,omitempty"`
	Payload     []byte `json:"payload"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
	AvailableAt int64  `json:"available_at"`
}
