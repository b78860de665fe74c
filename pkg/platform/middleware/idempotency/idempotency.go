// Package idempotency replays the stored response of a mutating request when a
// client retries it with the same Idempotency-Key.
package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	dErrors "compliancehub/pkg/domain-errors"
	"compliancehub/pkg/platform/httputil"
	request "compliancehub/pkg/platform/middleware/request"
	"compliancehub/pkg/requestcontext"
)

// HeaderKey is the client-chosen key identifying one logical operation.
const HeaderKey = "Idempotency-Key"

const (
	// How long a key stays "in progress" before a crashed handler releases it.
	provisionalLockTTL = 60 * time.Second
	storeTimeout       = 2 * time.Second
	maxKeyLength       = 128
	maxBodyBytes       = 1 << 20
)

type entry struct {
	InProgress bool      `json:"in_progress"`
	Code       int       `json:"code"`
	Body       []byte    `json:"body"`
	BodySHA256 string    `json:"body_sha256"`
	CreatedAt  time.Time `json:"created_at"`
}

type respRecorder struct {
	w    http.ResponseWriter
	buf  *bytes.Buffer
	code int
}

func (r *respRecorder) Header() http.Header { return r.w.Header() }
func (r *respRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.w.Write(b)
}
func (r *respRecorder) WriteHeader(statusCode int) { r.code = statusCode; r.w.WriteHeader(statusCode) }

// Middleware enforces idempotency on mutating requests that carry an
// Idempotency-Key header. Requests without the header pass through. The key is
// scoped by method, path and authenticated user, so it must run after auth.
// Only 2xx responses are stored; anything else releases the key for a retry.
func Middleware(rdb redis.UniversalClient, ttl time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			idemKey := strings.TrimSpace(r.Header.Get(HeaderKey))
			if idemKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(idemKey) > maxKeyLength {
				httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Idempotency-Key is too long"))
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
			if err != nil {
				httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			hash := bodyHash(body)

			reqCtx := r.Context()
			key := buildKey(r.Method, r.URL.Path, requestcontext.UserID(reqCtx).String(), idemKey)
			ctx, cancel := context.WithTimeout(reqCtx, storeTimeout)
			defer cancel()

			ok, err := provisionalSet(ctx, rdb, key, entry{InProgress: true, BodySHA256: hash, CreatedAt: time.Now().UTC()})
			if err != nil {
				logger.ErrorContext(reqCtx, "idempotency store unavailable",
					"error", err,
					"request_id", request.GetRequestID(reqCtx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "idempotency store unavailable"))
				return
			}
			if !ok {
				cur, err := loadEntry(ctx, rdb, key)
				if err != nil && !errors.Is(err, redis.Nil) {
					logger.WarnContext(reqCtx, "failed to load idempotency entry",
						"error", err,
						"request_id", request.GetRequestID(reqCtx),
					)
				}
				if cur.BodySHA256 != "" && cur.BodySHA256 != hash {
					httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "Idempotency-Key reused with different body"))
					return
				}
				if !cur.InProgress && cur.Code != 0 {
					w.Header().Set("Content-Type", "application/json")
					w.Header().Set("Idempotent-Replayed", "true")
					w.WriteHeader(cur.Code)
					_, _ = w.Write(cur.Body)
					return
				}
				httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "request is already in progress"))
				return
			}

			rec := &respRecorder{w: w, buf: &bytes.Buffer{}, code: http.StatusOK}
			next.ServeHTTP(rec, r)

			// The request context may already be cancelled once the handler returns.
			saveCtx, saveCancel := context.WithTimeout(context.WithoutCancel(reqCtx), storeTimeout)
			defer saveCancel()
			if rec.code < 200 || rec.code >= 300 {
				if err := rdb.Del(saveCtx, key).Err(); err != nil {
					logger.WarnContext(reqCtx, "failed to release idempotency key", "error", err, "request_id", request.GetRequestID(reqCtx))
				}
				return
			}
			final := entry{Code: rec.code, Body: rec.buf.Bytes(), BodySHA256: hash, CreatedAt: time.Now().UTC()}
			if err := saveFinal(saveCtx, rdb, key, final, ttl); err != nil {
				logger.WarnContext(reqCtx, "failed to store idempotent response", "error", err, "request_id", request.GetRequestID(reqCtx))
			}
		})
	}
}

func bodyHash(b []byte) string { s := sha256.Sum256(b); return hex.EncodeToString(s[:]) }

func buildKey(method, path, userID, key string) string {
	return "idemp:" + strings.ToLower(method) + ":" + path + ":" + userID + ":" + key
}

func provisionalSet(ctx context.Context, rdb redis.UniversalClient, key string, e entry) (bool, error) {
	payload, _ := json.Marshal(e)
	return rdb.SetNX(ctx, key, payload, provisionalLockTTL).Result()
}

func loadEntry(ctx context.Context, rdb redis.UniversalClient, key string) (entry, error) {
	var e entry
	v, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		return e, err
	}
	_ = json.Unmarshal(v, &e)
	return e, nil
}

func saveFinal(ctx context.Context, rdb redis.UniversalClient, key string, e entry, ttl time.Duration) error {
	payload, _ := json.Marshal(e)
	return rdb.Set(ctx, key, payload, ttl).Err()
}
