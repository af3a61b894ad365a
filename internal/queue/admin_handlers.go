package queue

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-checkout/internal/common"
)

const maxReplayBatch = 500

// AdminHandler serves the operator endpoints for dead-lettered tasks.
type AdminHandler struct {
	Store    Store
	Queue    Enqueuer
	Validate *validator.Validate
	PageSize int
}

type deadTask struct {
	ID             uuid.UUID   `json:"id"`
	Kind           string      `json:"kind"`
	IdempotencyKey string      `json:"idempotency_key,omitempty"`
	Attempts       int         `json:"attempts"`
	LastError      *string     `json:"last_error,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	Message        taskMessage `json:"message"`
}

type replayRequest struct {
	IDs   []string `json:"ids" validate:"max=500"`
	Kind  string   `json:"kind" validate:"omitempty,max=64"`
	Limit int      `json:"limit" validate:"gte=0,lte=500"`
}

// ListDLQ handles GET /admin/queue/dlq?kind=&page=&limit=.
func (h *AdminHandler) ListDLQ(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kind := sanitizeKind(r.URL.Query().Get("kind"))
	page, limit := common.ParsePagination(r, h.pageSize())
	limit = min(limit, maxReplayBatch)

	entries, err := h.Store.List(ctx, kind, limit, (page-1)*limit)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	total, err := h.Store.Count(ctx, kind)
	if err != nil {
		common.WriteError(w, err)
		return
	}

	out := make([]deadTask, 0, len(entries))
	for _, e := range entries {
		msg, err := decodeMessage(string(e.Payload))
		if err != nil {
			continue
		}
		out = append(out, deadTask{
			ID:             e.ID,
			Kind:           e.Kind,
			IdempotencyKey: e.IdempotencyKey,
			Attempts:       e.Attempts,
			LastError:      e.LastError,
			CreatedAt:      e.CreatedAt,
			Message:        msg,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       out,
		"total":      total,
		"pagination": common.Pagination{Page: page, PerPage: limit, TotalItems: int(total)},
	})
}

// ReplayDLQ handles POST /admin/queue/dlq/replay. The body selects entries by
// id list or, when no ids are given, the oldest-first batch of a kind.
func (h *AdminHandler) ReplayDLQ(w http.ResponseWriter, r *http.Request) {
	var req replayRequest
	if err := common.DecodeJSON(r, h.Validate, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	ctx := r.Context()
	failed := make(map[string]string)

	entries, err := h.selectEntries(ctx, req, failed)
	if err != nil {
		common.WriteError(w, err)
		return
	}

	replayed := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		if err := h.replay(ctx, e); err != nil {
			failed[e.ID.String()] = err.Error()
			continue
		}
		replayed = append(replayed, e.ID)
	}
	body := map[string]any{"replayed": replayed}
	if len(failed) > 0 {
		body["failed"] = failed
	}
	common.JSON(w, http.StatusOK, body)
}

func (h *AdminHandler) selectEntries(ctx context.Context, req replayRequest, failed map[string]string) ([]DLQEntry, error) {
	seen := make(map[string]bool, len(req.IDs))
	var entries []DLQEntry
	for _, raw := range req.IDs {
		raw = strings.TrimSpace(raw)
		if raw == "" || seen[raw] {
			continue
		}
		seen[raw] = true
		id, err := uuid.Parse(raw)
		if err != nil {
			failed[raw] = "invalid uuid"
			continue
		}
		e, err := h.Store.Get(ctx, id)
		if err != nil {
			failed[raw] = err.Error()
			continue
		}
		entries = append(entries, e)
	}
	if len(seen) > 0 {
		return entries, nil
	}

	kind := sanitizeKind(req.Kind)
	if kind == "" {
		return nil, common.InvalidInput("ids or kind required")
	}
	limit := req.Limit
	if limit == 0 {
		limit = h.pageSize()
	}
	return h.Store.List(ctx, kind, limit, 0)
}

// Stats handles GET /admin/queue/stats?kind=; it also refreshes the depth gauges.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	kind := sanitizeKind(r.URL.Query().Get("kind"))
	if kind == "" {
		common.WriteError(w, common.InvalidInput("kind is required"))
		return
	}
	ctx := r.Context()
	k := keys{h.Queue.Prefix}

	var scheduled, due, processing *redis.IntCmd
	_, err := h.Queue.R.Pipelined(ctx, func(p redis.Pipeliner) error {
		scheduled = p.ZCard(ctx, k.ready(kind))
		due = p.ZCount(ctx, k.ready(kind), "-inf", strconv.FormatInt(time.Now().UnixNano(), 10))
		processing = p.ZCard(ctx, k.processing(kind))
		return nil
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	dead, err := h.Store.Count(ctx, kind)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	QueueDepth.WithLabelValues(kind).Set(float64(scheduled.Val()))
	QueueDLQSize.WithLabelValues(kind).Set(float64(dead))

	common.JSON(w, http.StatusOK, map[string]any{
		"kind":       kind,
		"scheduled":  scheduled.Val(),
		"due":        due.Val(),
		"processing": processing.Val(),
		"dlq":        dead,
	})
}

// replay puts the task back on its ready set with one attempt credited back,
// then drops the dead-letter row.
func (h *AdminHandler) replay(ctx context.Context, e DLQEntry) error {
	msg, err := decodeMessage(string(e.Payload))
	if err != nil {
		return err
	}
	err = h.Queue.Enqueue(ctx, Task{
		Kind:           msg.Kind,
		Payload:        msg.Payload,
		IdempotencyKey: msg.Key,
		MaxAttempts:    msg.MaxAttempts,
		Attempt:        max(msg.Attempt-1, 0),
	})
	if err != nil {
		return err
	}
	return h.Store.Remove(ctx, e.ID)
}

func (h *AdminHandler) pageSize() int {
	if h.PageSize <= 0 {
		return 50
	}
	return h.PageSize
}
