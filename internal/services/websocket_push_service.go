package services

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"relayer-backend/internal/metrics"
	"relayer-backend/internal/models"

	"github.com/gorilla/websocket"
)

// Connection information
type Connection struct {
	ID      string          `json:"id"`
	OrderID string          `json:"order_id"`
	Conn    *websocket.Conn `json:"-"`
	Send    chan []byte     `json:"-"`
}

// Push message base structure
type PushMessage struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id"`
	OrderID   string      `json:"order_id"`
	Data      interface{} `json:"data"`
}

// OrderStatusUpdateData is pushed whenever a subscribed order changes state
type OrderStatusUpdateData struct {
	OrderID     string `json:"order_id"`
	OldStatus   string `json:"old_status"`
	NewStatus   string `json:"new_status"`
	UserMessage string `json:"user_message"`
	Resolver    string `json:"resolver,omitempty"`
}

// User-friendly status message mapping
var orderStatusMessages = map[models.OrderStatus]string{
	models.OrderStatusPending:         "📣 Order broadcast, waiting for a resolver...",
	models.OrderStatusCommitted:       "🤝 Resolver committed, deploying escrows...",
	models.OrderStatusEscrowsDeployed: "🏗️ Escrows deployed, waiting for funding...",
	models.OrderStatusFundsLocked:     "🔒 Funds locked on both chains, completing swap...",
	models.OrderStatusCompleted:       "🎉 Swap completed, funds delivered",
	models.OrderStatusRescueAvailable: "🛟 Resolver timed out, order reopened for rescue",
	models.OrderStatusFailed:          "❌ Order failed, funds recoverable via escrow timelocks",
}

// WebSocketPushService fans order status changes out to subscribed
// websocket clients, keyed by order id
type WebSocketPushService struct {
	connections map[string]*Connection   // key: connectionID
	orderConns  map[string][]*Connection // key: orderID
	hub         chan PushMessage
	register    chan *Connection
	unregister  chan *Connection
	mutex       sync.RWMutex
}

// NewWebSocketPushService creates the push service and starts its hub loop
func NewWebSocketPushService() *WebSocketPushService {
	service := &WebSocketPushService{
		connections: make(map[string]*Connection),
		orderConns:  make(map[string][]*Connection),
		hub:         make(chan PushMessage, 256),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
	}

	go service.run()
	return service
}

func (s *WebSocketPushService) run() {
	for {
		select {
		case conn := <-s.register:
			s.handleRegister(conn)

		case conn := <-s.unregister:
			s.handleUnregister(conn)

		case message := <-s.hub:
			s.handleBroadcast(message)
		}
	}
}

// RegisterConnection registers a connection with the push service
func (s *WebSocketPushService) RegisterConnection(conn *Connection) {
	s.register <- conn
}

// UnregisterConnection unregisters a connection from the push service
func (s *WebSocketPushService) UnregisterConnection(conn *Connection) {
	s.unregister <- conn
}

// NotifyStatusChange queues a status update push for an order's subscribers
func (s *WebSocketPushService) NotifyStatusChange(orderID string, oldStatus, newStatus models.OrderStatus, resolver string) {
	message := PushMessage{
		Type:      "order_status_update",
		Timestamp: time.Now().Format(time.RFC3339),
		MessageID: generateMessageID(),
		OrderID:   orderID,
		Data: OrderStatusUpdateData{
			OrderID:     orderID,
			OldStatus:   string(oldStatus),
			NewStatus:   string(newStatus),
			UserMessage: orderStatusMessages[newStatus],
			Resolver:    resolver,
		},
	}

	select {
	case s.hub <- message:
	default:
		log.Printf("⚠️ [WebSocket] Push queue full, dropping update for order %s", orderID)
	}
}

func (s *WebSocketPushService) handleRegister(conn *Connection) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.connections[conn.ID] = conn
	s.orderConns[conn.OrderID] = append(s.orderConns[conn.OrderID], conn)
	metrics.WebSocketClients.Set(float64(len(s.connections)))

	log.Printf("📱 WebSocket connection registered: order=%s, connID=%s", conn.OrderID, conn.ID)
}

func (s *WebSocketPushService) handleUnregister(conn *Connection) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.connections[conn.ID]; !exists {
		return
	}
	delete(s.connections, conn.ID)

	if orderConns, exists := s.orderConns[conn.OrderID]; exists {
		for i, c := range orderConns {
			if c.ID == conn.ID {
				s.orderConns[conn.OrderID] = append(orderConns[:i], orderConns[i+1:]...)
				break
			}
		}
		if len(s.orderConns[conn.OrderID]) == 0 {
			delete(s.orderConns, conn.OrderID)
		}
	}

	if conn.Send != nil {
		close(conn.Send)
	}
	if conn.Conn != nil {
		conn.Conn.Close()
	}
	metrics.WebSocketClients.Set(float64(len(s.connections)))

	log.Printf("📱 WebSocket connection unregistered: order=%s, connID=%s", conn.OrderID, conn.ID)
}

func (s *WebSocketPushService) handleBroadcast(message PushMessage) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	orderConns, exists := s.orderConns[message.OrderID]
	if !exists {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("❌ [WebSocket] Failed to marshal push message: %v", err)
		return
	}

	for _, conn := range orderConns {
		select {
		case conn.Send <- data:
		default:
			log.Printf("⚠️ [WebSocket] Send buffer full for conn %s, dropping message", conn.ID)
		}
	}
}

func generateMessageID() string {
	return fmt.Sprintf("msg_%d", time.Now().UnixNano())
}

// notifyStatus is a nil-safe push helper for services that may run without
// the websocket hub attached (tests, one-shot tools)
func notifyStatus(push *WebSocketPushService, orderID string, oldStatus, newStatus models.OrderStatus, resolver string) {
	if push == nil {
		return
	}
	push.NotifyStatusChange(orderID, oldStatus, newStatus, resolver)
}
