package handlers

import (
	"log"
	"net/http"
	"time"

	"relayer-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocketHandler upgrades order-status subscriptions to websocket
// connections and pumps push messages to the client
type WebSocketHandler struct {
	pushService *services.WebSocketPushService
	upgrader    websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(pushService *services.WebSocketPushService) *WebSocketHandler {
	return &WebSocketHandler{
		pushService: pushService,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// HandleOrderStatus subscribes the client to one order's status stream
// GET /api/ws/order-status/:id
func (h *WebSocketHandler) HandleOrderStatus(c *gin.Context) {
	orderID := c.Param("id")
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order id required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("❌ WebSocket upgrade failed: %v", err)
		return
	}

	clientID := uuid.New().String()
	connection := &services.Connection{
		ID:      clientID,
		OrderID: orderID,
		Conn:    conn,
		Send:    make(chan []byte, 256),
	}

	h.pushService.RegisterConnection(connection)
	log.Printf("📡 WebSocket client connected: %s (order: %s)", clientID, orderID)

	conn.WriteJSON(map[string]interface{}{
		"type":      "connected",
		"client_id": clientID,
		"order_id":  orderID,
		"timestamp": time.Now(),
	})

	go h.writePump(connection)
	go h.readPump(connection)
}

// writePump drains the push channel into the socket and keeps the
// connection alive with pings
func (h *WebSocketHandler) writePump(connection *services.Connection) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-connection.Send:
			if !ok {
				connection.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			connection.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := connection.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("⚠️ [WebSocket] Write failed for client %s: %v", connection.ID, err)
				return
			}

		case <-ticker.C:
			connection.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := connection.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes client frames until the connection closes, then
// unregisters it
func (h *WebSocketHandler) readPump(connection *services.Connection) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ [WebSocket] PANIC recovered in read goroutine for client %s: %v", connection.ID, r)
		}
		h.pushService.UnregisterConnection(connection)
	}()

	connection.Conn.SetReadLimit(1024)
	connection.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	connection.Conn.SetPongHandler(func(string) error {
		connection.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := connection.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("⚠️ [WebSocket] Unexpected close for client %s: %v", connection.ID, err)
			}
			return
		}
		connection.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	}
}
