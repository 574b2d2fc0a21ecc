// internal/api/middleware/auth.go
package middleware

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/nullptr0807/runhub/internal/api/response"
	"github.com/nullptr0807/runhub/internal/core"
)

// APIKeyAuth returns middleware that validates the X-API-Key header.
// If apiKey is empty, authentication is disabled.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth if no key configured
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			providedKey := r.Header.Get("X-API-Key")
			if providedKey == "" {
				response.Error(w, http.StatusUnauthorized,
					core.WrapError(core.ErrValidation, fmt.Errorf("missing X-API-Key header")))
				return
			}

			// Constant-time comparison to prevent timing attacks
			if subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiKey)) != 1 {
				response.Error(w, http.StatusUnauthorized,
					core.WrapError(core.ErrValidation, fmt.Errorf("invalid API key")))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
