package middleware

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	apperrors "minidoodle/pkg/errors"
	"minidoodle/pkg/logger"
)

const IdempotencyHeader = "Idempotency-Key"

// IdempotencyStore caches successful responses by key. Reserve marks a key as
// in flight so that a concurrent retry is turned away instead of executing twice.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*CachedResponse, bool, error)
	Reserve(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string, response *CachedResponse) error
	Release(ctx context.Context, key string) error
	Stop()
}

type CachedResponse struct {
	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`
	Body       []byte      `json:"body"`
	CreatedAt  time.Time   `json:"created_at"`
}

type InMemoryIdempotencyStore struct {
	mu       sync.Mutex
	store    map[string]*CachedResponse
	pending  map[string]time.Time
	ttl      time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewInMemoryIdempotencyStore(ttl time.Duration) *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		store:   make(map[string]*CachedResponse),
		pending: make(map[string]time.Time),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	go store.cleanup()

	return store
}

func (s *InMemoryIdempotencyStore) Get(_ context.Context, key string) (*CachedResponse, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	response, exists := s.store[key]
	if !exists {
		return nil, false, nil
	}

	if time.Since(response.CreatedAt) > s.ttl {
		delete(s.store, key)
		return nil, false, nil
	}

	return response, true, nil
}

func (s *InMemoryIdempotencyStore) Reserve(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if at, held := s.pending[key]; held && time.Since(at) < pendingTTL {
		return false, nil
	}
	s.pending[key] = time.Now()
	return true, nil
}

func (s *InMemoryIdempotencyStore) Set(_ context.Context, key string, response *CachedResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	response.CreatedAt = time.Now()
	s.store[key] = response
	delete(s.pending, key)
	return nil
}

func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, key)
	return nil
}

func (s *InMemoryIdempotencyStore) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			for key, response := range s.store {
				if time.Since(response.CreatedAt) > s.ttl {
					delete(s.store, key)
				}
			}
			for key, at := range s.pending {
				if time.Since(at) > pendingTTL {
					delete(s.pending, key)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func (s *InMemoryIdempotencyStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// pendingTTL bounds how long a crashed request can keep its key reserved.
const pendingTTL = 2 * time.Minute

type responseCapture struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (rc *responseCapture) WriteHeader(statusCode int) {
	rc.statusCode = statusCode
	rc.ResponseWriter.WriteHeader(statusCode)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	rc.body.Write(b)
	return rc.ResponseWriter.Write(b)
}

// Idempotency replays the first successful response for a repeated
// Idempotency-Key on mutating requests. Keys are scoped by client, method
// and path. Store failures degrade to executing the request normally.
func Idempotency(store IdempotencyStore, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idempotencyKey := r.Header.Get(IdempotencyHeader)
			if idempotencyKey == "" || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := scopedKey(r, idempotencyKey)

			cached, found, err := store.Get(ctx, key)
			if err != nil {
				log.Error("idempotency lookup failed", "request_id", GetRequestID(ctx), "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if found {
				replayCachedResponse(w, cached)
				return
			}

			reserved, err := store.Reserve(ctx, key)
			if err != nil {
				log.Error("idempotency reserve failed", "request_id", GetRequestID(ctx), "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !reserved {
				appErr := apperrors.Conflict("A request with this Idempotency-Key is already in progress")
				appErr.Retryable = true
				writeError(w, appErr)
				return
			}

			capture := &responseCapture{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
			}
			next.ServeHTTP(capture, r)

			// The request context may already be cancelled here.
			storeCtx := context.WithoutCancel(ctx)
			if shouldCacheResponse(capture.statusCode) {
				err = store.Set(storeCtx, key, &CachedResponse{
					StatusCode: capture.statusCode,
					Headers:    w.Header().Clone(),
					Body:       capture.body.Bytes(),
				})
			} else {
				err = store.Release(storeCtx, key)
			}
			if err != nil {
				log.Error("idempotency store update failed", "request_id", GetRequestID(ctx), "error", err)
			}
		})
	}
}

func scopedKey(r *http.Request, key string) string {
	return DefaultClientExtractor(r) + "|" + r.Method + "|" + r.URL.Path + "|" + key
}

func replayCachedResponse(w http.ResponseWriter, cached *CachedResponse) {
	for key, values := range cached.Headers {
		if key == RequestIDHeader {
			continue
		}
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}

func shouldCacheResponse(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
