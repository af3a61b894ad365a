package common

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	idemPending       = "pending"
	maxStoredResponse = 64 << 10
)

// Idem makes write endpoints safe to retry under an Idempotency-Key header. The
// first request with a key runs; later ones receive its stored response, or 409
// while it is still running. Keys are scoped to the caller, method and path.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

type storedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body,omitempty"`
}

func idemKey(r *http.Request, key string) string {
	userID, _ := UserID(r.Context())
	return "idem:" + HashKey(userID, r.Method, r.URL.Path, key)
}

// Middleware applies the idempotency protocol. Responses with a 5xx status and
// handler panics release the key so the client may retry.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		key := idemKey(r, header)

		claimed, err := i.R.SetNX(ctx, key, idemPending, i.ttl()).Result()
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("idempotency store unavailable")
			JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", nil)
			return
		}
		if !claimed {
			i.replay(ctx, w, key)
			return
		}

		defer func() {
			if p := recover(); p != nil {
				_ = i.R.Del(context.WithoutCancel(ctx), key).Err()
				panic(p)
			}
		}()
		rec := &capturingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		i.finish(context.WithoutCancel(ctx), key, rec)
	})
}

func (i Idem) replay(ctx context.Context, w http.ResponseWriter, key string) {
	raw, err := i.R.Get(ctx, key).Bytes()
	var stored storedResponse
	if err != nil || string(raw) == idemPending || json.Unmarshal(raw, &stored) != nil || stored.Status == 0 {
		JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "a request with this idempotency key is in progress", nil)
		return
	}
	w.Header().Set("Idempotent-Replayed", "true")
	if len(stored.Body) > 0 {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

func (i Idem) finish(ctx context.Context, key string, rec *capturingWriter) {
	if rec.status >= http.StatusInternalServerError {
		_ = i.R.Del(ctx, key).Err()
		return
	}
	stored := storedResponse{Status: rec.status}
	if !rec.overflow && json.Valid(rec.body.Bytes()) {
		stored.Body = json.RawMessage(rec.body.Bytes())
	}
	payload, err := json.Marshal(stored)
	if err != nil {
		return
	}
	if err := i.R.Set(ctx, key, payload, i.ttl()).Err(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("store idempotent response")
	}
}

func (i Idem) ttl() time.Duration {
	if i.TTL <= 0 {
		return 24 * time.Hour
	}
	return i.TTL
}

// capturingWriter records the status and a bounded copy of the body.
type capturingWriter struct {
	http.ResponseWriter
	status   int
	body     bytes.Buffer
	overflow bool
}

func (c *capturingWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *capturingWriter) Write(p []byte) (int, error) {
	if !c.overflow {
		if c.body.Len()+len(p) > maxStoredResponse {
			c.overflow = true
			c.body.Reset()
		} else {
			c.body.Write(p)
		}
	}
	return c.ResponseWriter.Write(p)
}
