package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/chatgate/domain"
)

// StatusFor maps a chat error onto an HTTP status
func StatusFor(err error) int {
	switch domain.ErrorCode(err) {
	case domain.CodeValidation, domain.CodeUnsupportedProvider, domain.CodeSessionNotConfigured:
		return http.StatusBadRequest
	case domain.CodeSessionNotFound:
		return http.StatusNotFound
	case domain.CodeUnauthorized:
		return http.StatusUnauthorized
	case domain.CodeProvider:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondError(c echo.Context, logger *zap.Logger, err error) error {
	status := StatusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.String("path", c.Path()), zap.Error(err))
		message = "Internal server error"
	}
	return c.JSON(status, ErrorResponse{
		Error:   domain.ErrorCode(err),
		Message: message,
	})
}

func invalidRequest(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: "Invalid request format",
	})
}
