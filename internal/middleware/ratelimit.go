package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// LoginRateLimiter limits login attempts per client within a sliding window
type LoginRateLimiter struct {
	mu          sync.Mutex
	attempts    map[string][]time.Time
	maxAttempts int
	window      time.Duration
	now         func() time.Time
}

// NewLoginRateLimiter creates a new login rate limiter
func NewLoginRateLimiter(maxAttempts int, window time.Duration) *LoginRateLimiter {
	return &LoginRateLimiter{
		attempts:    make(map[string][]time.Time),
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
	}
}

// Allow records an attempt for key and reports whether it is within the
// limit. When refused it also returns how long until the next slot frees.
func (rl *LoginRateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	valid := rl.prune(key, now)
	if len(valid) >= rl.maxAttempts {
		return false, valid[0].Add(rl.window).Sub(now)
	}

	rl.attempts[key] = append(valid, now)
	return true, 0
}

// prune drops attempts older than the window and forgets idle keys
func (rl *LoginRateLimiter) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-rl.window)
	attempts := rl.attempts[key]

	valid := attempts[:0]
	for _, attempt := range attempts {
		if attempt.After(cutoff) {
			valid = append(valid, attempt)
		}
	}

	if len(valid) == 0 {
		delete(rl.attempts, key)
	}
	return valid
}

// LoginRateLimit applies the limiter to POST requests
func LoginRateLimit(rl *LoginRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ok, wait := rl.Allow(getClientIP(r))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				JSONError(w, http.StatusTooManyRequests, "rate_limited",
					fmt.Sprintf("too many login attempts, try again in %s", wait.Round(time.Second)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
