package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/damon-houk/exchange-rate-chart/internal/application/service"
	"github.com/damon-houk/exchange-rate-chart/internal/infrastructure/logger"
	"github.com/damon-houk/exchange-rate-chart/internal/infrastructure/middleware"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
)

// WebSocketHandler runs one charting session per WebSocket connection
type WebSocketHandler struct {
	service  *service.ChartService
	upgrader websocket.Upgrader
	logger   logger.Logger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(service *service.ChartService, log logger.Logger) *WebSocketHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &WebSocketHandler{
		service: service,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: log,
	}
}

// wsClient pairs a connection with its session. Only the newest pending message is kept,
// so a slow client skips straight to the latest result.
type wsClient struct {
	conn    *websocket.Conn
	session *service.Session
	service *service.ChartService
	logger  logger.Logger

	mu      sync.Mutex
	pending []byte
	notify  chan struct{}
	done    chan struct{}
}

// ServeWS upgrades the connection and serves the session until the client disconnects
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := h.logger.WithField("request_id", requestID)
	session := service.NewSession(ctx, h.service, log)

	client := &wsClient{
		conn:    conn,
		session: session,
		service: h.service,
		logger:  log.WithField("session_id", session.ID()),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	session.Subscribe(client.onUpdate)

	client.logger.Info("WebSocket session opened", nil)

	go client.writePump()
	client.readPump(ctx)

	session.Close()
	close(client.done)

	client.logger.Info("WebSocket session closed", nil)
}

// onUpdate is called by the session for every published result
func (c *wsClient) onUpdate(u service.Update) {
	msg := SessionUpdate{Seq: u.Seq}
	if u.Err != nil {
		msg.Error = u.Err.Error()
	} else {
		msg.Series = NewSeriesResponse(u.Series)
	}
	c.push(msg)
}

func (c *wsClient) push(msg SessionUpdate) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to encode session update", map[string]interface{}{
			"seq":   msg.Seq,
			"error": err.Error(),
		})
		return
	}

	c.mu.Lock()
	c.pending = data
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *wsClient) takePending() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	data := c.pending
	c.pending = nil
	return data
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.notify:
			data := c.takePending()
			if data == nil {
				continue
			}

			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write failed", map[string]interface{}{
					"error": err.Error(),
				})
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *wsClient) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket read failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
			return
		}

		var req SessionRequest
		if err := json.Unmarshal(message, &req); err != nil {
			c.push(SessionUpdate{Error: "invalid message: " + err.Error()})
			continue
		}

		c.handleRequest(ctx, req)
	}
}

// handleRequest resolves the requested parameters and starts a fetch for them
func (c *wsClient) handleRequest(ctx context.Context, req SessionRequest) {
	loc := c.service.Location()

	start, err := parseDate(req.Start, loc)
	if err != nil {
		c.push(SessionUpdate{Error: "start must be in YYYY-MM-DD format"})
		return
	}
	end, err := parseDate(req.End, loc)
	if err != nil {
		c.push(SessionUpdate{Error: "end must be in YYYY-MM-DD format"})
		return
	}

	params, err := c.service.ResolveParams(ctx, req.Currency, start, end)
	if err != nil {
		c.push(SessionUpdate{Error: err.Error()})
		return
	}

	c.session.Request(params)
}

// RegisterRoutes registers the WebSocket route
func (h *WebSocketHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws", h.ServeWS).Methods("GET")

	h.logger.Info("WebSocket routes registered", map[string]interface{}{
		"routes": []string{
			"GET /ws",
		},
	})
}
