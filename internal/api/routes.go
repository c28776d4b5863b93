package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/chatgate/domain"
	"github.com/satriahrh/chatgate/domain/entities"
	"github.com/satriahrh/chatgate/domain/repositories"
	"github.com/satriahrh/chatgate/internal/auth"
	"github.com/satriahrh/chatgate/internal/session"
	"github.com/satriahrh/chatgate/internal/websocket"
	"github.com/satriahrh/chatgate/usecase"
)

// Handler serves the HTTP surface of the gateway
type Handler struct {
	chat       *usecase.ChatService
	store      *repositories.Store
	hub        *websocket.Hub
	chunkDelay time.Duration
	logger     *zap.Logger
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithStore exposes the durable store under /api/db
func WithStore(store *repositories.Store) HandlerOption {
	return func(h *Handler) {
		h.store = store
	}
}

// WithHub serves websocket chat on /ws/chat
func WithHub(hub *websocket.Hub) HandlerOption {
	return func(h *Handler) {
		h.hub = hub
	}
}

// WithChunkDelay paces streamed chunks
func WithChunkDelay(d time.Duration) HandlerOption {
	return func(h *Handler) {
		h.chunkDelay = d
	}
}

// NewHandler creates the HTTP handlers
func NewHandler(chat *usecase.ChatService, logger *zap.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{chat: chat, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, h *Handler, validator *auth.Validator) {
	requireUser := RequireUser(validator, h.logger)

	e.GET("/", h.index)
	e.GET("/health", h.health)

	api := e.Group("/api", requireUser)
	api.GET("/config", h.config)
	api.GET("/auth/me", h.me)
	api.POST("/configure", h.configure)
	api.POST("/chat", h.sendChat)
	api.POST("/chat/stream", h.streamChat)
	api.GET("/history", h.history)
	api.POST("/clear", h.clear)
	api.GET("/sessions", h.sessions)

	if h.store != nil {
		h.initStoreRoutes(api.Group("/db"))
	}

	if h.hub != nil {
		e.GET("/ws/chat", h.websocketChat, requireUser)
	}
}

func (h *Handler) index(c echo.Context) error {
	endpoints := map[string]string{
		"GET /api/auth/me":      "Return authenticated user",
		"GET /api/config":       "Default provider configuration",
		"POST /api/configure":   "Configure LLM provider",
		"POST /api/chat":        "Send chat message",
		"POST /api/chat/stream": "Stream chat message",
		"GET /api/history":      "Get chat history",
		"POST /api/clear":       "Clear chat history",
		"GET /api/sessions":     "List active sessions",
		"GET /health":           "Health check",
	}
	if h.hub != nil {
		endpoints["GET /ws/chat"] = "Stream chat over websocket"
	}
	if h.store != nil {
		endpoints["/api/db/*"] = "Stored sessions, messages, API keys and settings"
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":   "Chatbot API is running!",
		"auth":      "All /api endpoints require a valid Bearer token",
		"endpoints": endpoints,
	})
}

func (h *Handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) config(c echo.Context) error {
	return c.JSON(http.StatusOK, h.chat.Defaults())
}

func (h *Handler) me(c echo.Context) error {
	resp := UserResponse{ID: userIDFrom(c)}
	if claims := claimsFrom(c); claims != nil && claims.Email != "" {
		email := claims.Email
		resp.Email = &email
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) configure(c echo.Context) error {
	var req ConfigureRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Warn("Failed to bind configure request", zap.Error(err))
		return invalidRequest(c)
	}

	result, err := h.chat.Configure(c.Request().Context(), userIDFrom(c), usecase.ConfigureInput{
		Provider:  req.Provider,
		APIKey:    req.APIKey,
		Model:     req.Model,
		SessionID: req.SessionID,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, ConfigureResponse{
		Message:   "Configuration successful",
		Provider:  string(result.Provider),
		Model:     result.Model,
		SessionID: result.SessionID,
		RecordID:  result.RecordID,
	})
}

func (h *Handler) bindChat(c echo.Context) (usecase.ChatInput, error) {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return usecase.ChatInput{}, err
	}
	for _, m := range req.History {
		if err := m.Validate(); err != nil {
			return usecase.ChatInput{}, domain.NewValidationError("history", err.Error())
		}
	}
	return usecase.ChatInput{
		Message:   req.Message,
		SessionID: req.SessionID,
		History:   req.History,
	}, nil
}

func (h *Handler) sendChat(c echo.Context) error {
	in, err := h.bindChat(c)
	if err != nil {
		if domain.IsClientError(err) {
			return respondError(c, h.logger, err)
		}
		return invalidRequest(c)
	}

	userID := userIDFrom(c)
	reply, err := h.chat.Send(c.Request().Context(), userID, in)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, ChatResponse{
		Response:  reply,
		SessionID: session.NewKey(userID, in.SessionID).SessionID,
	})
}

// streamChat writes the reply as newline-delimited JSON events.
// Failures after the response has started are reported in-band as an error event.
func (h *Handler) streamChat(c echo.Context) error {
	in, err := h.bindChat(c)
	if err != nil {
		if domain.IsClientError(err) {
			return respondError(c, h.logger, err)
		}
		return invalidRequest(c)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "application/x-ndjson")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	ctx := c.Request().Context()
	enc := json.NewEncoder(res)
	for event := range h.chat.Stream(ctx, userIDFrom(c), in) {
		if err := enc.Encode(event); err != nil {
			h.logger.Warn("Stream client went away", zap.Error(err))
			return nil
		}
		res.Flush()

		if event.IsTerminal() {
			continue
		}
		if !pause(ctx, h.chunkDelay) {
			return nil
		}
	}
	return nil
}

func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (h *Handler) history(c echo.Context) error {
	sessionID := c.QueryParam("session_id")
	history, err := h.chat.History(userIDFrom(c), sessionID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if history == nil {
		history = []entities.Message{}
	}
	return c.JSON(http.StatusOK, HistoryResponse{
		SessionID: session.NewKey(userIDFrom(c), sessionID).SessionID,
		History:   history,
	})
}

func (h *Handler) clear(c echo.Context) error {
	var req ClearRequest
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c)
	}

	sessionID, err := h.chat.Clear(userIDFrom(c), req.SessionID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, MessageResponse{
		Message:   "History cleared",
		SessionID: sessionID,
	})
}

func (h *Handler) sessions(c echo.Context) error {
	sessions, err := h.chat.ListSessions(userIDFrom(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, SessionsResponse{Sessions: sessions})
}

// websocketChat handles WebSocket connections for an authenticated user
func (h *Handler) websocketChat(c echo.Context) error {
	userID := userIDFrom(c)
	h.logger.Info("WebSocket connection authenticated", zap.String("userID", userID))
	return websocket.HandleWebSocketWithAuth(h.hub, c, userID, h.logger)
}
