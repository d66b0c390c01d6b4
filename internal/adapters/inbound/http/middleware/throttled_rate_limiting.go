package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/architeacher/u2f-registrations/internal/config"
	"github.com/architeacher/u2f-registrations/pkg/logger"
	"github.com/throttled/throttled/v2"
)

const (
	RateLimitLimitHeader     = "RateLimit-Limit"
	RateLimitRemainingHeader = "RateLimit-Remaining"
	RateLimitResetHeader     = "RateLimit-Reset"
	RetryAfterHeader         = "Retry-After"

	globalRateLimitKey = "global"
)

// ThrottledRateLimiting applies a GCRA quota per client address, or one
// global quota when per-address limiting is off.
func ThrottledRateLimiting(
	cfg config.ThrottledRateLimiting,
	store throttled.GCRAStoreCtx,
	log logger.Logger,
) (func(http.Handler) http.Handler, error) {
	quota := throttled.RateQuota{
		MaxRate:  throttled.PerSec(int(cfg.RequestsPerSecond)),
		MaxBurst: int(cfg.BurstSize),
	}

	rateLimiter, err := throttled.NewGCRARateLimiterCtx(store, quota)
	if err != nil {
		return nil, fmt.Errorf("creating rate limiter: %w", err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || shouldSkipRateLimit(r.URL.Path, cfg.SkipPaths) {
				next.ServeHTTP(w, r)

				return
			}

			limited, result, err := rateLimiter.RateLimitCtx(r.Context(), rateLimitKey(r, cfg), 1)
			if err != nil {
				log.Warn().Err(err).Msg("rate limiter store error")

				if cfg.GracefulDegraded {
					next.ServeHTTP(w, r)

					return
				}

				WriteError(w, http.StatusServiceUnavailable, "RATE_LIMITER_UNAVAILABLE",
					"rate limiting service temporarily unavailable")

				return
			}

			setRateLimitHeaders(w, result)

			if limited {
				w.Header().Set(RetryAfterHeader, strconv.Itoa(int(result.RetryAfter.Seconds())))
				WriteError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
					"too many requests, please try again later")

				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

func shouldSkipRateLimit(path string, skipPaths []string) bool {
	for _, skipPath := range skipPaths {
		if path == skipPath || strings.HasPrefix(path, skipPath+"/") {
			return true
		}
	}

	return false
}

func rateLimitKey(r *http.Request, cfg config.ThrottledRateLimiting) string {
	if !cfg.EnableIPLimiting {
		return globalRateLimitKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	return "ip:" + host
}

func setRateLimitHeaders(w http.ResponseWriter, result throttled.RateLimitResult) {
	w.Header().Set(RateLimitLimitHeader, strconv.Itoa(result.Limit))
	w.Header().Set(RateLimitRemainingHeader, strconv.Itoa(result.Remaining))
	w.Header().Set(RateLimitResetHeader, strconv.FormatInt(time.Now().Add(result.ResetAfter).Unix(), 10))
}
