package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/chatgate/domain"
	"github.com/satriahrh/chatgate/internal/session"
	"github.com/satriahrh/chatgate/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 256 * 1024

	// Chat messages queued per connection while one is being answered.
	inboxSize = 8
)

const codeBusy = "busy"

var errHubStopped = errors.New("websocket hub stopped")

// ChatStreamer runs one chat exchange as a stream of events
type ChatStreamer interface {
	Stream(ctx context.Context, userID string, in usecase.ChatInput) iter.Seq[domain.StreamEvent]
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithChunkDelay paces reply chunks
func WithChunkDelay(d time.Duration) HubOption {
	return func(h *Hub) {
		h.chunkDelay = d
	}
}

// WithAllowedOrigins restricts which browser origins may connect.
// An empty list or "*" allows every origin.
func WithAllowedOrigins(origins []string) HubOption {
	return func(h *Hub) {
		h.allowedOrigins = origins
	}
}

// Hub maintains the set of active clients.
type Hub struct {
	// Registered clients keyed by connection id.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed once Run returns.
	done chan struct{}

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	chat      ChatStreamer
	validator *MessageValidator
	upgrader  websocket.Upgrader

	chunkDelay     time.Duration
	allowedOrigins []string

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(chat ChatStreamer, logger *zap.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		chat:       chat,
		validator:  NewMessageValidator(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:     h.checkOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// Run starts the hub's main loop; cancelling ctx disconnects every client
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("Client registered",
				zap.String("clientID", client.id),
				zap.String("userID", client.userID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.cancel()
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered",
				zap.String("clientID", client.id),
				zap.String("userID", client.userID))

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				client.cancel()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket hub stopped")
			return
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Chat turns waiting to be answered, in arrival order.
	inbox chan *ChatMessage

	id     string
	userID string

	// Cancelled when the connection goes away; stops the in-flight stream.
	ctx    context.Context
	cancel context.CancelFunc

	logger *zap.Logger
}

// HandleWebSocketWithAuth handles websocket requests for an authenticated user
func HandleWebSocketWithAuth(hub *Hub, c echo.Context, userID string, logger *zap.Logger) error {
	conn, err := hub.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	// the request context ends as soon as this handler returns
	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan WriteData, 256),
		inbox:  make(chan *ChatMessage, inboxSize),
		id:     uuid.NewString(),
		userID: userID,
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		cancel()
		conn.Close()
		return errHubStopped
	}

	go client.writePump()
	go client.readPump()
	go client.chatLoop()

	return nil
}

// readPump pumps messages from the websocket connection to the client's handlers.
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Error("WebSocket error", zap.String("clientID", c.id), zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		default:
			c.sendJSON(CreateErrorMessage("", domain.CodeValidation, "only text messages are supported", ""))
		}
	}
}

// writePump pumps messages from the client to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.String("clientID", c.id), zap.Error(err))
				c.cancel()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}

		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// processMessage processes incoming messages from the peer
func (c *Client) processMessage(raw []byte) {
	msg, err := c.hub.validator.ValidateMessage(raw)
	if err != nil {
		c.logger.Warn("Rejected websocket message", zap.String("clientID", c.id), zap.Error(err))
		c.sendJSON(CreateErrorMessage("", domain.CodeValidation, err.Error(), ""))
		return
	}

	switch m := msg.(type) {
	case *PingMessage:
		c.sendJSON(CreatePongMessage(m.MessageID, m.Data))
	case *ChatMessage:
		select {
		case c.inbox <- m:
		default:
			c.sendJSON(CreateErrorMessage(m.MessageID, codeBusy, "too many pending chat messages", ""))
		}
	}
}

// chatLoop answers queued chat turns one at a time
func (c *Client) chatLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.inbox:
			c.handleChat(msg)
		}
	}
}

func (c *Client) handleChat(msg *ChatMessage) {
	sessionID := session.NewKey(c.userID, msg.SessionID).SessionID
	in := usecase.ChatInput{
		Message:   msg.Message,
		SessionID: msg.SessionID,
		History:   msg.History,
	}

	start := time.Now()
	chunks := 0
	for event := range c.hub.chat.Stream(c.ctx, c.userID, in) {
		switch {
		case event.Err != nil || event.Error != "":
			code := domain.CodeInternal
			if event.Err != nil {
				code = domain.ErrorCode(event.Err)
			}
			c.logger.Warn("Chat failed",
				zap.String("userID", c.userID),
				zap.String("sessionID", sessionID),
				zap.String("code", code),
				zap.String("error", event.Error))
			c.sendJSON(CreateErrorMessage(msg.MessageID, code, event.Error, ""))

		case event.Done:
			c.sendJSON(CreateDoneMessage(msg.MessageID, sessionID))
			c.logger.Debug("Chat streamed",
				zap.String("userID", c.userID),
				zap.String("sessionID", sessionID),
				zap.Int("chunks", chunks),
				zap.Duration("elapsed", time.Since(start)))

		default:
			if !c.sendJSON(CreateChunkMessage(msg.MessageID, sessionID, event.Chunk)) {
				return
			}
			chunks++
			if !c.pause() {
				return
			}
		}
	}
}

// pause waits the configured chunk delay; false means the connection went away
func (c *Client) pause() bool {
	if c.hub.chunkDelay <= 0 {
		return c.ctx.Err() == nil
	}
	timer := time.NewTimer(c.hub.chunkDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// sendJSON queues v for the write pump; false means the connection went away
func (c *Client) sendJSON(v interface{}) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to encode message", zap.Error(err))
		return false
	}
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
		return true
	case <-c.ctx.Done():
		return false
	}
}
