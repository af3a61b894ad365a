package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-checkout/internal/queue"
)

func TestMoveToDLQAfterMaxAttempts(t *testing.T) {
	client := newRedis(t)
	store := newMemoryDLQ()
	ctx := context.Background()

	stop := startWorker(ctx, t, &queue.Worker{
		R:            client,
		Prefix:       "dlq",
		Kind:         "order.expire",
		PollInterval: 10 * time.Millisecond,
		RetryBase:    20 * time.Millisecond,
		DLQ:          store,
		Handler: func(context.Context, queue.Task) error {
			return errors.New("database down")
		},
	})

	enq := queue.Enqueuer{R: client, Prefix: "dlq"}
	require.NoError(t, enq.Enqueue(ctx, queue.Task{Kind: "order.expire", Payload: []byte("body"), IdempotencyKey: "dlq1", MaxAttempts: 2}))

	require.Eventually(t, func() bool {
		count, err := store.Count(ctx, "order.expire")
		return err == nil && count == 1
	}, 2*time.Second, 20*time.Millisecond)
	stop()

	entries := store.snapshot()
	require.Len(t, entries, 1)
	dead := entries[0]
	require.Equal(t, "order.expire", dead.Kind)
	require.Equal(t, "dlq1", dead.IdempotencyKey)
	require.Equal(t, 2, dead.Attempts)
	require.NotNil(t, dead.LastError)
	require.Equal(t, "database down", *dead.LastError)

	exists, err := client.Exists(ctx, "dlq:queue:dedup:order.expire:dlq1").Result()
	require.NoError(t, err)
	require.Zero(t, exists, "dedup key released so the task can be replayed")
}
