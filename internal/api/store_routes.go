package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/chatgate/domain/entities"
	"github.com/satriahrh/chatgate/domain/repositories"
)

const errForbiddenSession = "Session not found or unauthorized"

func (h *Handler) initStoreRoutes(db *echo.Group) {
	db.GET("/settings", h.getSettings)
	db.PUT("/settings", h.updateSettings)

	db.GET("/api-keys", h.listAPIKeys)
	db.POST("/api-keys", h.saveAPIKey)
	db.DELETE("/api-keys/:id", h.deleteAPIKey)

	db.POST("/sessions", h.createSession)
	db.GET("/sessions", h.listStoredSessions)
	db.GET("/sessions/:id", h.getStoredSession)
	db.PUT("/sessions/:id", h.updateStoredSession)
	db.DELETE("/sessions/:id", h.deleteStoredSession)
	db.POST("/sessions/:id/archive", h.archiveStoredSession)
	db.GET("/sessions/:id/messages", h.listStoredMessages)
	db.POST("/sessions/:id/clear", h.clearStoredSession)

	db.POST("/messages", h.saveStoredMessage)
	db.DELETE("/messages/:id", h.deleteStoredMessage)
}

// storeError answers a repository failure; ErrNotFound becomes 404 with notFound as message
func (h *Handler) storeError(c echo.Context, err error, notFound string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: notFound})
	}
	h.logger.Error("Store operation failed", zap.String("path", c.Path()), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "Internal server error",
	})
}

func forbiddenSession(c echo.Context) error {
	return c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden", Message: errForbiddenSession})
}

// ownSession checks that the caller owns sessionID; ok is false once a response has been written
func (h *Handler) ownSession(c echo.Context, sessionID string) (ok bool, err error) {
	_, err = h.store.Sessions.GetByID(c.Request().Context(), userIDFrom(c), sessionID)
	if errors.Is(err, repositories.ErrNotFound) {
		return false, forbiddenSession(c)
	}
	if err != nil {
		return false, h.storeError(c, err, "")
	}
	return true, nil
}

func (h *Handler) getSettings(c echo.Context) error {
	settings, err := h.store.Settings.Get(c.Request().Context(), userIDFrom(c))
	if err != nil {
		return h.storeError(c, err, "Settings not found")
	}
	return c.JSON(http.StatusOK, settings)
}

func (h *Handler) updateSettings(c echo.Context) error {
	var patch entities.SettingsPatch
	if err := c.Bind(&patch); err != nil {
		return invalidRequest(c)
	}
	if err := settingsFromQuery(c, &patch); err != nil {
		return invalidRequest(c)
	}

	settings, err := h.store.Settings.Update(c.Request().Context(), userIDFrom(c), patch)
	if err != nil {
		return h.storeError(c, err, "Settings not found")
	}
	return c.JSON(http.StatusOK, DataResponse{Message: "Settings updated", Data: settings})
}

// settingsFromQuery fills fields the body left unset from query parameters
func settingsFromQuery(c echo.Context, patch *entities.SettingsPatch) error {
	if v := c.QueryParam("default_temperature"); v != "" && patch.DefaultTemperature == nil {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		patch.DefaultTemperature = &f
	}
	if v := c.QueryParam("default_max_tokens"); v != "" && patch.DefaultMaxTokens == nil {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		patch.DefaultMaxTokens = &n
	}
	if v := c.QueryParam("sidebar_collapsed"); v != "" && patch.SidebarCollapsed == nil {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		patch.SidebarCollapsed = &b
	}
	return nil
}

func (h *Handler) listAPIKeys(c echo.Context) error {
	keys, err := h.store.APIKeys.ListByUser(c.Request().Context(), userIDFrom(c))
	if err != nil {
		return h.storeError(c, err, "")
	}
	return c.JSON(http.StatusOK, keys)
}

func (h *Handler) saveAPIKey(c echo.Context) error {
	var req SaveAPIKeyRequest
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c)
	}
	if req.Provider == "" {
		req.Provider = c.QueryParam("provider")
	}
	if req.APIKey == "" {
		req.APIKey = c.QueryParam("api_key")
	}
	if strings.TrimSpace(req.Provider) == "" || strings.TrimSpace(req.APIKey) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "provider and api_key are required",
		})
	}

	kind, ok := entities.ParseProviderKind(req.Provider)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "unsupported_provider",
			Message: "Unsupported provider: " + req.Provider,
		})
	}

	key, err := h.store.APIKeys.Save(c.Request().Context(), userIDFrom(c), kind, strings.TrimSpace(req.APIKey))
	if err != nil {
		return h.storeError(c, err, "")
	}
	return c.JSON(http.StatusOK, DataResponse{Message: "API key saved successfully", Data: key})
}

func (h *Handler) deleteAPIKey(c echo.Context) error {
	if err := h.store.APIKeys.Delete(c.Request().Context(), userIDFrom(c), c.Param("id")); err != nil {
		return h.storeError(c, err, "API key not found")
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "API key deleted"})
}

func (h *Handler) createSession(c echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c)
	}

	record, err := h.store.Sessions.Create(c.Request().Context(), userIDFrom(c), req.Title, req.ModelUsed)
	if err != nil {
		return h.storeError(c, err, "")
	}
	return c.JSON(http.StatusOK, record)
}

func (h *Handler) listStoredSessions(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	records, err := h.store.Sessions.ListByUser(c.Request().Context(), userIDFrom(c), limit)
	if err != nil {
		return h.storeError(c, err, "")
	}
	return c.JSON(http.StatusOK, records)
}

func (h *Handler) getStoredSession(c echo.Context) error {
	record, err := h.store.Sessions.GetByID(c.Request().Context(), userIDFrom(c), c.Param("id"))
	if err != nil {
		return h.storeError(c, err, "Session not found")
	}
	return c.JSON(http.StatusOK, record)
}

func (h *Handler) updateStoredSession(c echo.Context) error {
	var patch entities.SessionPatch
	if err := c.Bind(&patch); err != nil {
		return invalidRequest(c)
	}

	record, err := h.store.Sessions.Update(c.Request().Context(), userIDFrom(c), c.Param("id"), patch)
	if err != nil {
		return h.storeError(c, err, "Session not found")
	}
	return c.JSON(http.StatusOK, DataResponse{Message: "Session updated", Data: record})
}

func (h *Handler) deleteStoredSession(c echo.Context) error {
	if err := h.store.Sessions.Delete(c.Request().Context(), userIDFrom(c), c.Param("id")); err != nil {
		return h.storeError(c, err, "Session not found")
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Session deleted"})
}

func (h *Handler) archiveStoredSession(c echo.Context) error {
	if err := h.store.Sessions.Archive(c.Request().Context(), userIDFrom(c), c.Param("id")); err != nil {
		return h.storeError(c, err, "Session not found")
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Session archived"})
}

func (h *Handler) listStoredMessages(c echo.Context) error {
	sessionID := c.Param("id")
	if ok, err := h.ownSession(c, sessionID); !ok {
		return err
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	messages, err := h.store.Messages.ListBySession(c.Request().Context(), sessionID, limit)
	if err != nil {
		return h.storeError(c, err, "")
	}
	return c.JSON(http.StatusOK, messages)
}

func (h *Handler) clearStoredSession(c echo.Context) error {
	sessionID := c.Param("id")
	if ok, err := h.ownSession(c, sessionID); !ok {
		return err
	}

	if err := h.store.Messages.Clear(c.Request().Context(), sessionID); err != nil {
		return h.storeError(c, err, "")
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Session cleared", SessionID: sessionID})
}

func (h *Handler) saveStoredMessage(c echo.Context) error {
	var req SaveMessageRequest
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c)
	}
	if ok, err := h.ownSession(c, req.SessionID); !ok {
		return err
	}

	msg := entities.NewMessage(req.Role, req.Content)
	msg.Model = req.Model
	msg.Tokens = req.TokensUsed
	record := entities.NewMessageRecord(req.SessionID, msg)
	if err := record.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
	}

	if err := h.store.Messages.Save(c.Request().Context(), record); err != nil {
		return h.storeError(c, err, "")
	}
	return c.JSON(http.StatusOK, record)
}

func (h *Handler) deleteStoredMessage(c echo.Context) error {
	ctx := c.Request().Context()

	message, err := h.store.Messages.GetByID(ctx, c.Param("id"))
	if err != nil {
		return h.storeError(c, err, "Message not found")
	}
	if ok, err := h.ownSession(c, message.SessionID); !ok {
		return err
	}

	if err := h.store.Messages.Delete(ctx, message.ID); err != nil {
		return h.storeError(c, err, "Message not found")
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Message deleted"})
}
