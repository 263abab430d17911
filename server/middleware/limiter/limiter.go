// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package limiter

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"codeberg.org/newbee/autofill/i18n"
	"codeberg.org/newbee/autofill/server/utils"
)

// Rate limiting header names.
//
// ref: https://www.ietf.org/archive/id/draft-polli-ratelimit-headers-02.html
const (
	HeaderRateLimitLimit     string = "RateLimit-Limit"
	HeaderRateLimitRemaining string = "RateLimit-Remaining"
)

// limitedPathPrefix selects the requests that are rate limited.
const limitedPathPrefix = "/api/"

var timeNow = time.Now // Wrapper for time.Now, which allows us to mock it in tests.

// Config configures a [Limiter].
type Config struct {
	Rate       float64
	Burst      int
	IPv4Prefix int
	IPv6Prefix int

	// Expiry is how long an idle network's bucket is kept.
	Expiry time.Duration
}

// limiterWrapper is the token bucket of one network.
type limiterWrapper struct {
	mu         sync.Mutex
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Limiter holds the token buckets of all client networks.
type Limiter struct {
	cfg Config

	limiters sync.Map // network string -> *limiterWrapper

	cleanupMu     sync.Mutex
	lastCleanupAt time.Time
}

// New returns a Limiter for cfg.
func New(cfg Config) *Limiter {
	return &Limiter{cfg: cfg, lastCleanupAt: timeNow()}
}

// Evaluate is the limiter middleware.
func (l *Limiter) Evaluate(w http.ResponseWriter, r *http.Request, next http.Handler) {
	defer l.doCleanup()

	if !strings.HasPrefix(r.URL.Path, limitedPathPrefix) {
		next.ServeHTTP(w, r)

		return
	}

	addr, ok := clientAddr(r)
	if !ok || addr.IsLoopback() {
		next.ServeHTTP(w, r)

		return
	}

	network := networkOf(addr, l.cfg.IPv4Prefix, l.cfg.IPv6Prefix).String()

	allowed, remaining, retryAfter := l.take(network)

	w.Header().Set(HeaderRateLimitLimit, strconv.Itoa(l.cfg.Burst))
	w.Header().Set(HeaderRateLimitRemaining, strconv.Itoa(remaining))

	if allowed {
		next.ServeHTTP(w, r)

		return
	}

	log.Warn().
		Str("ip", addr.String()).
		Str("network", network).
		Msg("Rate limit exceeded")

	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))

	if err := utils.WriteJSONError(w, http.StatusTooManyRequests, i18n.Tr(r.Context(), "Too many requests, please slow down")); err != nil {
		log.Err(err).Msg("Failed to write rate limit response")
	}
}

// take consumes one token from network's bucket. It returns whether the
// request is allowed, the tokens left and, for a refused request, how long
// until a token is available.
func (l *Limiter) take(network string) (bool, int, time.Duration) {
	limWrapper := l.getOrCreateLimiter(network)

	limWrapper.mu.Lock()
	defer limWrapper.mu.Unlock()

	now := timeNow()
	limWrapper.lastAccess = now

	if limWrapper.limiter.AllowN(now, 1) {
		return true, int(math.Max(0, limWrapper.limiter.TokensAt(now))), 0
	}

	// Reserve to learn the wait, then hand the token back.
	reservation := limWrapper.limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	reservation.CancelAt(now)

	return false, 0, delay
}

// getOrCreateLimiter returns the limiterWrapper of network, creating it if needed.
func (l *Limiter) getOrCreateLimiter(network string) *limiterWrapper {
	if value, ok := l.limiters.Load(network); ok {
		return value.(*limiterWrapper)
	}

	value, _ := l.limiters.LoadOrStore(network, &limiterWrapper{
		limiter:    rate.NewLimiter(rate.Limit(l.cfg.Rate), l.cfg.Burst),
		lastAccess: timeNow(),
	})

	return value.(*limiterWrapper)
}

// doCleanup removes expired limiters at most once per expiry period.
func (l *Limiter) doCleanup() {
	now := timeNow()

	l.cleanupMu.Lock()
	if now.Sub(l.lastCleanupAt) < l.cfg.Expiry {
		l.cleanupMu.Unlock()

		return
	}

	l.lastCleanupAt = now
	l.cleanupMu.Unlock()

	l.cleanupExpiredLimiters(now)
}

// cleanupExpiredLimiters removes limiters that haven't been accessed for the expiry duration.
func (l *Limiter) cleanupExpiredLimiters(now time.Time) {
	expiredCount := 0

	l.limiters.Range(func(key, value any) bool {
		limWrapper := value.(*limiterWrapper)

		limWrapper.mu.Lock()
		lastAccess := limWrapper.lastAccess
		limWrapper.mu.Unlock()

		if now.Sub(lastAccess) > l.cfg.Expiry {
			l.limiters.Delete(key)

			expiredCount++
		}

		return true
	})

	if expiredCount > 0 {
		log.Info().Int("count", expiredCount).
			Msg("Cleaned up expired limiters")
	}
}

// Len returns the number of tracked networks. A nil Limiter tracks none.
func (l *Limiter) Len() int {
	if l == nil {
		return 0
	}

	n := 0

	l.limiters.Range(func(_, _ any) bool {
		n++

		return true
	})

	return n
}
