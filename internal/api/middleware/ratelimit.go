package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/metrics"
)

// RateLimit defines limits for an endpoint pattern.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// RateLimiter implements fixed-window per-IP rate limiting on Redis.
// With a nil client the limiter is a pass-through.
type RateLimiter struct {
	client *redis.Client
	limits map[string]RateLimit
	logger zerolog.Logger
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(client *redis.Client, logger zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		client: client,
		logger: logger,
		limits: map[string]RateLimit{
			"GET /api/messages":    {120, time.Minute},
			"DELETE /api/messages": {10, time.Minute},
			"GET /api/stats":       {60, time.Minute},
			"GET /api/users":       {60, time.Minute},
		},
	}
}

// Middleware enforces the configured limits.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.client == nil {
			next.ServeHTTP(w, r)
			return
		}

		limit, pattern, ok := rl.match(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		// RealIP middleware has already resolved the client address.
		ip := r.RemoteAddr
		if host := strings.LastIndex(ip, ":"); host > 0 {
			ip = ip[:host]
		}
		window := time.Now().Unix() / int64(limit.Window.Seconds())
		key := fmt.Sprintf("ratelimit:%s:%s:%d", pattern, ip, window)

		count, err := rl.client.Incr(r.Context(), key).Result()
		if err != nil {
			// Redis down: fail open, the limiter is not load-bearing.
			rl.logger.Warn().Err(err).Msg("rate limit check failed")
			next.ServeHTTP(w, r)
			return
		}
		if count == 1 {
			rl.client.Expire(r.Context(), key, limit.Window)
		}

		remaining := int64(limit.Requests) - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(limit.Requests) {
			metrics.RateLimitHits.WithLabelValues(pattern).Inc()
			rl.logger.Warn().
				Str("ip", ip).
				Str("endpoint", pattern).
				Str("request_id", chimw.GetReqID(r.Context())).
				Msg("rate limit exceeded")
			w.Header().Set("Retry-After", strconv.Itoa(int(limit.Window.Seconds())))
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// match finds the limit for a request, longest pattern first.
func (rl *RateLimiter) match(r *http.Request) (RateLimit, string, bool) {
	var (
		best    string
		bestLim RateLimit
	)
	for pattern, lim := range rl.limits {
		parts := strings.SplitN(pattern, " ", 2)
		if r.Method != parts[0] {
			continue
		}
		if strings.HasPrefix(r.URL.Path, parts[1]) && len(parts[1]) > len(best) {
			best = parts[1]
			bestLim = lim
		}
	}
	return bestLim, best, best != ""
}
