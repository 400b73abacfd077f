package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	apperrors "parksphere/pkg/errors"
)

// ErrKeyInFlight is returned by Reserve while another request holds the key.
var ErrKeyInFlight = errors.New("idempotency key is already being processed")

// IdempotencyStore tracks Idempotency-Key values through a reserve,
// complete or release cycle. Reserve returns the cached response for a
// completed key, ErrKeyInFlight for a held one, and (nil, nil) once the
// caller owns the key.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string) (*CachedResponse, error)
	Complete(ctx context.Context, key string, response *CachedResponse) error
	Release(ctx context.Context, key string) error
	Stop()
}

type CachedResponse struct {
	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`
	Body       []byte      `json:"body"`
	CreatedAt  time.Time   `json:"created_at"`
}

type memoryEntry struct {
	response  *CachedResponse
	expiresAt time.Time
}

type InMemoryIdempotencyStore struct {
	mu     sync.Mutex
	store  map[string]*memoryEntry
	ttl    time.Duration
	stopCh chan struct{}
	once   sync.Once
}

func NewInMemoryIdempotencyStore(ttl time.Duration) *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		store:  make(map[string]*memoryEntry),
		ttl:    ttl,
		stopCh: make(chan struct{}),
	}

	go store.cleanup()

	return store
}

func (s *InMemoryIdempotencyStore) Reserve(_ context.Context, key string) (*CachedResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.store[key]
	if exists && time.Now().Before(entry.expiresAt) {
		if entry.response == nil {
			return nil, ErrKeyInFlight
		}
		return entry.response, nil
	}

	s.store[key] = &memoryEntry{expiresAt: time.Now().Add(s.ttl)}
	return nil, nil
}

func (s *InMemoryIdempotencyStore) Complete(_ context.Context, key string, response *CachedResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	response.CreatedAt = time.Now()
	s.store[key] = &memoryEntry{response: response, expiresAt: response.CreatedAt.Add(s.ttl)}
	return nil
}

func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.store, key)
	return nil
}

func (s *InMemoryIdempotencyStore) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for key, entry := range s.store {
				if now.After(entry.expiresAt) {
					delete(s.store, key)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func (s *InMemoryIdempotencyStore) Stop() {
	s.once.Do(func() { close(s.stopCh) })
}

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
// Idempotency-Key on POST and PATCH requests. Keys are scoped by method and
// path; failed responses release the key so the client can retry.
func Idempotency(store IdempotencyStore, headerName string) func(http.Handler) http.Handler {
	if headerName == "" {
		headerName = "Idempotency-Key"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(headerName)
			if header == "" || (r.Method != http.MethodPost && r.Method != http.MethodPatch) {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Method + " " + r.URL.Path + " " + header
			cached, err := store.Reserve(r.Context(), key)
			switch {
			case errors.Is(err, ErrKeyInFlight):
				writeError(w, http.StatusConflict, "CONFLICT", "A request with this Idempotency-Key is already being processed")
				return
			case err != nil:
				writeError(w, http.StatusServiceUnavailable, apperrors.CodeUnavailable, "Idempotency store is temporarily unavailable")
				return
			case cached != nil:
				replayCachedResponse(w, cached)
				return
			}

			// The request ctx may already be cancelled by the timeout middleware.
			ctx := context.WithoutCancel(r.Context())
			defer func() {
				if p := recover(); p != nil {
					_ = store.Release(ctx, key)
					panic(p)
				}
			}()

			capture := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK, body: &bytes.Buffer{}}
			next.ServeHTTP(capture, r)

			if capture.statusCode >= 200 && capture.statusCode < 300 {
				_ = store.Complete(ctx, key, &CachedResponse{
					StatusCode: capture.statusCode,
					Headers:    w.Header().Clone(),
					Body:       capture.body.Bytes(),
				})
				return
			}
			_ = store.Release(ctx, key)
		})
	}
}

func replayCachedResponse(w http.ResponseWriter, cached *CachedResponse) {
	for key, values := range cached.Headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}
