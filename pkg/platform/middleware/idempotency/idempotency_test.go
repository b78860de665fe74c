package idempotency

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func newHandler(t *testing.T, rdb redis.UniversalClient, status int, calls *atomic.Int32) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return Middleware(rdb, time.Hour, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"call":` + string(rune('0'+n)) + `}`))
	}))
}

func post(h http.Handler, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/evidence", strings.NewReader(body))
	if key != "" {
		req.Header.Set(HeaderKey, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestReplaysStoredResponse(t *testing.T) {
	_, rdb := newMiniRedis(t)
	var calls atomic.Int32
	h := newHandler(t, rdb, http.StatusCreated, &calls)

	first := post(h, "k1", `{"name":"ISO 9001"}`)
	second := post(h, "k1", `{"name":"ISO 9001"}`)

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestDifferentBodyConflicts(t *testing.T) {
	_, rdb := newMiniRedis(t)
	var calls atomic.Int32
	h := newHandler(t, rdb, http.StatusCreated, &calls)

	post(h, "k1", `{"name":"a"}`)
	rec := post(h, "k1", `{"name":"b"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestInProgressConflicts(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	var calls atomic.Int32
	h := newHandler(t, rdb, http.StatusCreated, &calls)

	body := `{"name":"a"}`
	key := buildKey(http.MethodPost, "/evidence", "00000000-0000-0000-0000-000000000000", "k1")
	require.NoError(t, mr.Set(key, `{"in_progress":true,"body_sha256":"`+bodyHash([]byte(body))+`"}`))

	rec := post(h, "k1", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, int32(0), calls.Load())
}

func TestFailedResponseReleasesKey(t *testing.T) {
	_, rdb := newMiniRedis(t)
	var calls atomic.Int32
	h := newHandler(t, rdb, http.StatusForbidden, &calls)

	post(h, "k1", `{}`)
	post(h, "k1", `{}`)

	assert.Equal(t, int32(2), calls.Load())
}

func TestWithoutKeyPassesThrough(t *testing.T) {
	_, rdb := newMiniRedis(t)
	var calls atomic.Int32
	h := newHandler(t, rdb, http.StatusCreated, &calls)

	post(h, "", `{}`)
	post(h, "", `{}`)
	assert.Equal(t, int32(2), calls.Load())
}

func TestStoreUnavailable(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	var calls atomic.Int32
	h := newHandler(t, rdb, http.StatusCreated, &calls)
	mr.Close()

	rec := post(h, "k1", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, int32(0), calls.Load())
}

func TestGetIsNotIntercepted(t *testing.T) {
	_, rdb := newMiniRedis(t)
	var calls atomic.Int32
	h := newHandler(t, rdb, http.StatusOK, &calls)

	req := httptest.NewRequest(http.MethodGet, "/evidence", bytes.NewReader(nil))
	req.Header.Set(HeaderKey, "k1")
	h.ServeHTTP(httptest.NewRecorder(), req)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, int32(2), calls.Load())
}
