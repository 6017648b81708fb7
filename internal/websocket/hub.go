package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/realtyvoice/backend/domain/entities"
	"github.com/realtyvoice/backend/domain/repositories"
	"github.com/realtyvoice/backend/internal/auth"
	"github.com/realtyvoice/backend/internal/metrics"
	"github.com/realtyvoice/backend/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	// Requests waiting behind the one being spoken.
	maxPendingRequests = 8
)

// Synthesizer starts text-to-speech jobs
type Synthesizer interface {
	Synthesize(ctx context.Context, req *entities.SynthesisRequest) (*usecase.Synthesis, error)
}

// Hub maintains the set of active clients and closes them on shutdown.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed when the hub stops.
	done      chan struct{}
	closeOnce sync.Once

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	speech   Synthesizer
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewHub creates a new WebSocket hub. Browser origins are checked against
// allowedOrigins; "*" allows any origin. m may be nil.
func NewHub(speech Synthesizer, allowedOrigins []string, m *metrics.Metrics, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		speech:     speech,
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		metrics: m,
		logger:  logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// Run starts the hub's main loop. It returns once Close is called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.WebsocketOpened()
			}
			h.logger.Info("Client registered",
				zap.String("clientID", client.id),
				zap.String("subject", client.subject))

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client.id]
			delete(h.clients, client.id)
			h.mu.Unlock()
			if ok {
				client.close()
				if h.metrics != nil {
					h.metrics.WebsocketClosed()
				}
			}
			h.logger.Info("Client unregistered", zap.String("clientID", client.id))

		case <-h.done:
			h.mu.Lock()
			for id, client := range h.clients {
				client.close()
				delete(h.clients, id)
				if h.metrics != nil {
					h.metrics.WebsocketClosed()
				}
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket hub stopped")
			return
		}
	}
}

// Close stops the hub and closes every open connection
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}

// Count returns the number of registered clients
func (h *Hub) Count() int {
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

	// Text frames waiting to be handled, in arrival order.
	requests chan []byte

	id      string
	subject string

	// Canceled when the connection goes away.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool

	logger *zap.Logger
}

// HandleSynthesis upgrades the request and streams synthesized speech for
// every text frame the peer sends.
func HandleSynthesis(hub *Hub, c echo.Context) error {
	conn, err := hub.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		hub.logger.Error("WebSocket upgrade failed", zap.Error(err))
		// the upgrader already wrote the error response
		return nil
	}

	id := uuid.NewString()
	var subject string
	if claims := auth.ClaimsFrom(c); claims != nil {
		subject = claims.Subject
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan WriteData, 256),
		requests: make(chan []byte, maxPendingRequests),
		id:       id,
		subject:  subject,
		ctx:      ctx,
		cancel:   cancel,
		logger:   hub.logger.With(zap.String("clientID", id)),
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		cancel()
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()
	go client.speakLoop()

	return nil
}

// close cancels in-flight work and lets the write pump send a close frame
func (c *Client) close() {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// enqueue hands a frame to the write pump. It reports false once the
// connection is closing.
func (c *Client) enqueue(data WriteData) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Client) sendJSON(v interface{}) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to encode message", zap.Error(err))
		return false
	}
	return c.enqueue(WriteData{Type: websocket.TextMessage, Payload: payload})
}

// readPump pumps messages from the websocket connection to the speak loop.
func (c *Client) readPump() {
	defer func() {
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
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		if messageType != websocket.TextMessage {
			c.logger.Warn("Received unsupported message type", zap.Int("type", messageType))
			c.sendJSON(NewErrorMessage("", "Only text frames are accepted"))
			continue
		}

		select {
		case c.requests <- message:
		default:
			c.sendJSON(NewErrorMessage("", "Too many pending requests"))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"))
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// speakLoop handles text frames one at a time so audio of consecutive
// requests never interleaves
func (c *Client) speakLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case message := <-c.requests:
			c.processMessage(message)
		}
	}
}

// processMessage processes incoming messages from the client
func (c *Client) processMessage(message []byte) {
	decoded, err := DecodeClientMessage(message)
	if err != nil {
		c.sendJSON(NewErrorMessage("", err.Error()))
		return
	}

	switch msg := decoded.(type) {
	case *BaseMessage:
		c.sendJSON(NewPongMessage(msg.RequestID))
	case *SpeakMessage:
		requestID := msg.RequestID
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.speak(requestID, &msg.SynthesisRequest)
	}
}

// speak streams one synthesis as speaking_start, binary audio frames and speaking_end
func (c *Client) speak(requestID string, req *entities.SynthesisRequest) {
	synthesis, err := c.hub.speech.Synthesize(c.ctx, req)
	if err != nil {
		c.logger.Warn("Synthesis rejected",
			zap.String("requestID", requestID),
			zap.Error(err))
		c.sendJSON(NewErrorMessage(requestID, errorDetail(err)))
		return
	}

	c.sendJSON(NewSpeakingStartMessage(requestID, synthesis.Params, synthesis.ContentType))

	total := 0
	var streamErr error
	for chunk := range synthesis.Chunks {
		if chunk.Err != nil {
			streamErr = chunk.Err
			continue
		}
		// keep draining after a failed enqueue so the producer can exit
		if c.enqueue(WriteData{Type: websocket.BinaryMessage, Payload: chunk.Data}) {
			total += len(chunk.Data)
		}
	}

	if c.hub.metrics != nil {
		c.hub.metrics.RecordAudioBytes(string(synthesis.Params.OutputFormat), total)
	}

	if streamErr != nil {
		c.logger.Error("Audio stream interrupted",
			zap.String("requestID", requestID),
			zap.Int("bytesSent", total),
			zap.Error(streamErr))
		c.sendJSON(NewErrorMessage(requestID, synthesis.StreamError(streamErr).Error()))
	}

	c.sendJSON(NewSpeakingEndMessage(requestID, total, streamErr != nil))

	c.logger.Info("Synthesis streamed",
		zap.String("requestID", requestID),
		zap.String("outputFormat", string(synthesis.Params.OutputFormat)),
		zap.Int("bytes", total))
}

// errorDetail mirrors the detail the HTTP surface returns for err
func errorDetail(err error) string {
	var cfgErr *repositories.ConfigError
	var upstream *usecase.UpstreamError
	switch {
	case errors.Is(err, entities.ErrInvalidRequest):
		return err.Error()
	case errors.As(err, &cfgErr):
		return cfgErr.Message
	case errors.As(err, &upstream):
		return upstream.Error()
	default:
		return "Internal server error"
	}
}
