// internal/api/middleware/ratelimit.go
package middleware

import (
	"fmt"
	"net/http"

	"github.com/nullptr0807/runhub/internal/api/response"
	"github.com/nullptr0807/runhub/internal/core"
	"golang.org/x/time/rate"
)

// RateLimit returns middleware enforcing a global token-bucket limit on the
// API. A non-positive rps disables limiting.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	if burst < 1 {
		burst = 1
	}
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter != nil && !limiter.Allow() {
				response.Error(w, http.StatusTooManyRequests,
					core.WrapError(core.ErrConflict, fmt.Errorf("rate limit exceeded")))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
