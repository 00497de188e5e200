package middleware

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"diary-backend/pkg/auth"
	"diary-backend/pkg/common"
	pkgerrors "diary-backend/pkg/errors"
)

// RateLimit rejects requests from users over their quota with 429 and a
// Retry-After header. It must run after authentication.
func RateLimit(limiter *auth.UserRateLimiter, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := common.GetUserID(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := limiter.Allow(r.Context(), userID)
			if err != nil {
				// a broken limiter must not take the endpoint down
				logger.Warn("Rate limiter failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				appErr := pkgerrors.NewRateLimitedError(limiter.RetryAfter(userID))
				w.Header().Set("Retry-After", strconv.Itoa(appErr.Details["retry_after_seconds"].(int)))
				errorHandler.Handle(w, r, appErr)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
