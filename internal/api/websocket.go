package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/SimplyPrint/nfc-wedge/internal/logging"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	maxMessageSize = 4 * 1024
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local use only
	},
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string          `json:"type"`              // Message type
	ID      string          `json:"id,omitempty"`      // Request ID for request/response matching
	Payload json.RawMessage `json:"payload,omitempty"` // Message payload
	Error   string          `json:"error,omitempty"`   // Error message if any
}

// StatusEvent is pushed for every accepted status line.
type StatusEvent struct {
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}

// UIDEvent is pushed for every emitted UID.
type UIDEvent struct {
	UID  string    `json:"uid"`
	Time time.Time `json:"time"`
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *WSHub

	mu     sync.Mutex // guards send against use after close
	closed bool
}

// WSHub manages all WebSocket connections. It is also a status surface and a
// UID emitter, pushing both to every client.
type WSHub struct {
	clients    map[*WSClient]bool
	broadcast  chan []byte
	register   chan *WSClient
	unregister chan *WSClient
	mu         sync.RWMutex
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan []byte, sendBuffer),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
}

// Run starts the hub's main loop
func (h *WSHub) Run() {
	// A dead hub would silently stop all pushes.
	defer logging.RecoverAndLog("WebSocket hub", true)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.enqueue(message) {
					client.closeSend()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// publish queues an event for all clients without blocking the caller.
func (h *WSHub) publish(msgType string, payload interface{}) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg, err := json.Marshal(WSMessage{Type: msgType, Payload: payloadBytes})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		logging.Warn(logging.CatWebSocket, "Broadcast queue full, dropping event", map[string]any{
			"type": msgType,
		})
	}
}

// Append pushes a status line to all clients.
func (h *WSHub) Append(text string) {
	h.publish("status", StatusEvent{Text: text, Time: time.Now()})
}

// Emit pushes a UID to all clients.
func (h *WSHub) Emit(uid string) error {
	h.publish("uid", UIDEvent{UID: uid, Time: time.Now()})
	return nil
}

// InitWebSocket creates the hub and starts its loop.
func InitWebSocket() *WSHub {
	hub := NewWSHub()
	go hub.Run()
	return hub
}

// Handler upgrades requests and attaches the connection to the hub.
func (h *WSHub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Error(logging.CatWebSocket, "WebSocket upgrade failed", map[string]any{
				"error":      err.Error(),
				"remoteAddr": r.RemoteAddr,
			})
			return
		}

		client := &WSClient{
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan []byte, sendBuffer),
			hub:  h,
		}
		h.register <- client

		logging.Info(logging.CatWebSocket, "Client connected", map[string]any{
			"clientId":   client.id,
			"remoteAddr": r.RemoteAddr,
		})

		go client.writePump()
		go client.readPump()
	}
}

func (c *WSClient) readPump() {
	defer logging.RecoverAndLog("WebSocket readPump", false)
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn(logging.CatWebSocket, "WebSocket unexpected close", map[string]any{
					"clientId": c.id,
					"error":    err.Error(),
				})
			} else {
				logging.Debug(logging.CatWebSocket, "Client disconnected", map[string]any{
					"clientId": c.id,
				})
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.sendError("", "invalid message format")
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer logging.RecoverAndLog("WebSocket writePump", false)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

func (c *WSClient) handleMessage(msg WSMessage) {
	logging.Debug(logging.CatWebSocket, "Received message", map[string]any{
		"clientId": c.id,
		"type":     msg.Type,
		"id":       msg.ID,
	})

	switch msg.Type {
	case "toggle":
		c.handleToggle(msg.ID, msg.Payload)
	case "status":
		c.sendResponse(msg.ID, "status", currentStatus(50))
	case "list_readers":
		c.sendResponse(msg.ID, "readers", listReaders())
	case "version":
		c.sendResponse(msg.ID, "version", versionInfo())
	case "health":
		c.sendResponse(msg.ID, "health", healthInfo())
	default:
		logging.Warn(logging.CatWebSocket, "Unknown message type", map[string]any{
			"type": msg.Type,
		})
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

func (c *WSClient) handleToggle(id string, payload json.RawMessage) {
	ctrl := getController()
	if ctrl == nil {
		c.sendError(id, "read loop not running")
		return
	}

	var req toggleRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			c.sendError(id, "invalid payload")
			return
		}
	}

	active := applyToggle(ctrl, req)
	logging.Info(logging.CatWebSocket, "Read loop toggled via WebSocket", map[string]any{
		"active": active,
	})
	c.sendResponse(id, "toggled", map[string]bool{"active": active})
}

// enqueue hands a message to the write pump. It returns false when the
// queue is full or the client is already closed; the message is dropped.
func (c *WSClient) enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// closeSend closes the send queue once, which stops the write pump.
func (c *WSClient) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *WSClient) sendResponse(id string, msgType string, payload interface{}) {
	payloadBytes, _ := json.Marshal(payload)
	responseBytes, _ := json.Marshal(WSMessage{
		Type:    msgType,
		ID:      id,
		Payload: payloadBytes,
	})
	c.enqueue(responseBytes)
}

func (c *WSClient) sendError(id string, errMsg string) {
	responseBytes, _ := json.Marshal(WSMessage{
		Type:  "error",
		ID:    id,
		Error: errMsg,
	})
	c.enqueue(responseBytes)
}
