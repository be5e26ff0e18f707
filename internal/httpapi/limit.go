package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/netip"
	"strings"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limitermemory "github.com/ulule/limiter/v3/drivers/store/memory"
)

func newRateLimiter(formatted string, fallback string) *limiter.Limiter {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		rate, _ = limiter.NewRateFromFormatted(fallback)
	}
	return limiter.New(limitermemory.NewStore(), rate)
}

// attemptLimiter counts attempts per key, such as logins per client address.
type attemptLimiter struct {
	limiter *limiter.Limiter
}

func newAttemptLimiter(formatted string) *attemptLimiter {
	return &attemptLimiter{limiter: newRateLimiter(formatted, "5-M")}
}

// Allow records an attempt for key and reports whether it is within the rate.
func (l *attemptLimiter) Allow(ctx context.Context, key string) bool {
	if l == nil {
		return true
	}
	res, err := l.limiter.Get(ctx, key)
	if err != nil {
		return false
	}
	return !res.Reached
}

func (a *API) rateLimit() func(http.Handler) http.Handler {
	mw := stdlib.NewMiddleware(a.requestLimit,
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, _ *http.Request) {
			a.writeError(w, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
			a.writeError(w, http.StatusInternalServerError, err)
		}),
	)
	return mw.Handler
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}
