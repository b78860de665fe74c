package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "compliancehub/pkg/domain"
	request "compliancehub/pkg/platform/middleware/request"
	"compliancehub/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	UserID    string
	Email     string
	Role      string
	FactoryID string
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAuth resolves a Bearer token into the caller identity on the request
// context. Role eligibility is not checked here; services ask the access policy.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			authCtx, err := withClaims(ctx, claims)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed claims",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(authCtx))
		})
	}
}

func withClaims(ctx context.Context, claims *JWTClaims) (context.Context, error) {
	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return nil, err
	}
	role, err := id.ParseRole(claims.Role)
	if err != nil {
		return nil, err
	}
	// An unbound factory account is still authenticated; the access policy
	// denies it on the first factory-scoped action.
	var factoryID id.FactoryID
	if claims.FactoryID != "" {
		factoryID, err = id.ParseFactoryID(claims.FactoryID)
		if err != nil {
			return nil, err
		}
	}
	ctx = requestcontext.WithIdentity(ctx, userID, role, factoryID)
	if claims.Email != "" {
		ctx = requestcontext.WithEmail(ctx, claims.Email)
	}
	return ctx, nil
}
