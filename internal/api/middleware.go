package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/chatgate/domain"
	"github.com/satriahrh/chatgate/internal/auth"
)

const (
	contextKeyUserID = "user_id"
	contextKeyClaims = "claims"
)

// RequireUser rejects requests without a valid bearer token and stores the caller's id in the context.
// Websocket handshakes may pass the token as the "token" query parameter instead.
func RequireUser(validator *auth.Validator, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := auth.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if token == "" && c.IsWebSocket() {
				token = c.QueryParam("token")
			}

			if token == "" {
				logger.Debug("Request rejected", zap.String("path", c.Path()), zap.Error(auth.ErrMissingToken))
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "missing_token",
					Message: "Bearer token is required in Authorization header",
				})
			}

			userID, claims, err := validator.UserID(token)
			if errors.Is(err, auth.ErrNoUserID) {
				return respondError(c, logger, &domain.UnresolvedIdentityError{})
			}
			if err != nil {
				logger.Warn("Request rejected: invalid token", zap.String("path", c.Path()), zap.Error(err))
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "invalid_token",
					Message: "Invalid or expired token",
				})
			}

			c.Set(contextKeyUserID, userID)
			c.Set(contextKeyClaims, claims)
			return next(c)
		}
	}
}

func userIDFrom(c echo.Context) string {
	userID, _ := c.Get(contextKeyUserID).(string)
	return userID
}

func claimsFrom(c echo.Context) *auth.Claims {
	claims, _ := c.Get(contextKeyClaims).(*auth.Claims)
	return claims
}
