package middleware

import (
	"net/http"
	"sync"
	"time"

	"parksphere/pkg/logger"

	"golang.org/x/time/rate"
)

const RequesterIDHeader = "X-Requester-ID"

type RequesterExtractor func(r *http.Request) string

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RequesterRateLimiter keeps one token bucket per requester id. A bucket
// refills limit tokens per window and allows bursts up to limit.
type RequesterRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	limit     int
	window    time.Duration
	extractor RequesterExtractor
	log       *logger.Logger
	stopCh    chan struct{}
	once      sync.Once
}

func NewRequesterRateLimiter(limit int, window time.Duration, extractor RequesterExtractor, log *logger.Logger) *RequesterRateLimiter {
	if extractor == nil {
		extractor = DefaultRequesterExtractor
	}
	limiter := &RequesterRateLimiter{
		limiters:  make(map[string]*limiterEntry),
		limit:     limit,
		window:    window,
		extractor: extractor,
		log:       log,
		stopCh:    make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

func (rl *RequesterRateLimiter) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for id, entry := range rl.limiters {
				if time.Since(entry.lastSeen) > rl.window {
					delete(rl.limiters, id)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RequesterRateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

func (rl *RequesterRateLimiter) Allow(requesterID string) bool {
	if requesterID == "" {
		return true
	}

	rl.mu.Lock()
	entry, ok := rl.limiters[requesterID]
	if !ok {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Every(rl.window/time.Duration(rl.limit)), rl.limit),
		}
		rl.limiters[requesterID] = entry
	}
	entry.lastSeen = time.Now()
	rl.mu.Unlock()

	return entry.limiter.Allow()
}

func RequesterRateLimit(limiter *RequesterRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requesterID := limiter.extractor(r)

			if !limiter.Allow(requesterID) {
				limiter.log.Warn("Rate limit exceeded",
					"request_id", RequestIDFromContext(r.Context()),
					"requester_id", requesterID,
					"path", r.URL.Path,
				)
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func DefaultRequesterExtractor(r *http.Request) string {
	return r.Header.Get(RequesterIDHeader)
}
