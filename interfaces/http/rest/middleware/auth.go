package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"diary-backend/pkg/auth"
	"diary-backend/pkg/common"
	pkgerrors "diary-backend/pkg/errors"
)

// Authenticate validates the bearer token and stores the user in context
func Authenticate(validator *auth.JWTValidator, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				errorHandler.Handle(w, r, pkgerrors.NewUnauthorizedError("Missing authorization header"))
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				errorHandler.Handle(w, r, pkgerrors.NewUnauthorizedError("Invalid authorization header format"))
				return
			}

			userID, err := validator.ValidateToken(parts[1])
			if err != nil {
				logger.Debug("Token rejected", zap.Error(err))
				switch {
				case errors.Is(err, auth.ErrExpiredToken):
					errorHandler.Handle(w, r, pkgerrors.NewUnauthorizedError("Token has expired"))
				case errors.Is(err, auth.ErrInvalidSignature):
					errorHandler.Handle(w, r, pkgerrors.NewUnauthorizedError("Invalid token signature"))
				default:
					errorHandler.Handle(w, r, pkgerrors.NewUnauthorizedError("Invalid token"))
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(withUser(r, userID)))
		})
	}
}

// AuthenticateForLambda trusts the user id that the API Gateway authorizer
// has already verified and forwarded in X-User-ID
func AuthenticateForLambda(errorHandler *pkgerrors.ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("X-User-ID")
			if raw == "" {
				errorHandler.Handle(w, r, pkgerrors.NewUnauthorizedError("Missing user context from API Gateway"))
				return
			}
			userID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || userID <= 0 {
				errorHandler.Handle(w, r, pkgerrors.NewUnauthorizedError("Invalid user context from API Gateway"))
				return
			}

			next.ServeHTTP(w, r.WithContext(withUser(r, userID)))
		})
	}
}

func withUser(r *http.Request, userID int64) context.Context {
	ctx := auth.SetUserInContext(r.Context(), &auth.UserContext{UserID: userID})
	return common.WithUserID(ctx, userID)
}
