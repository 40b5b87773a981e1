package clients

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"relayer-backend/internal/config"
	"relayer-backend/internal/dto"
	"relayer-backend/internal/metrics"

	"github.com/nats-io/nats.go"
)

// OrderBroker publishes order announcements to resolvers
type OrderBroker interface {
	PublishNewOrder(announcement *dto.OrderAnnouncement) error
	Close()
}

// NATSClient NATS client
type NATSClient struct {
	conn          *nats.Conn
	subjectPrefix string
}

// NewNATSClient connects to the NATS server with automatic reconnects
func NewNATSClient(cfg *config.NATSConfig) (*NATSClient, error) {
	connectTimeout := 10 * time.Second
	if cfg.Timeout > 0 {
		connectTimeout = time.Duration(cfg.Timeout) * time.Second
		log.Printf("🔌 Using configured NATS timeout: %v", connectTimeout)
	} else {
		log.Printf("🔌 Using default NATS timeout: %v", connectTimeout)
	}

	reconnectWait := 5 * time.Second
	if cfg.ReconnectWait > 0 {
		reconnectWait = time.Duration(cfg.ReconnectWait) * time.Second
	}
	maxReconnects := -1
	if cfg.MaxReconnects != 0 {
		maxReconnects = cfg.MaxReconnects
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("⚠️ [NATS] Disconnected: %v", err)
			metrics.NATSConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("✅ [NATS] Reconnected to %s", nc.ConnectedUrl())
			metrics.NATSConnectionStatus.Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	metrics.NATSConnectionStatus.Set(1)
	log.Printf("✅ [NATS] Connected to %s", conn.ConnectedUrl())

	return &NATSClient{
		conn:          conn,
		subjectPrefix: cfg.SubjectPrefix,
	}, nil
}

// PublishNewOrder announces an open order on
// <prefix>.new.<srcChainId>.<dstChainId> so resolvers can filter by the
// chain pair they serve
func (c *NATSClient) PublishNewOrder(announcement *dto.OrderAnnouncement) error {
	data, err := json.Marshal(announcement)
	if err != nil {
		return fmt.Errorf("failed to marshal order announcement: %w", err)
	}

	subject := fmt.Sprintf("%s.new.%d.%d", c.subjectPrefix, announcement.SrcChainID, announcement.DstChainID)

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set("srcChainId", strconv.Itoa(announcement.SrcChainID))
	msg.Header.Set("dstChainId", strconv.Itoa(announcement.DstChainID))
	msg.Header.Set("orderType", announcement.OrderType)
	if announcement.Rescue {
		msg.Header.Set("rescue", "true")
	}

	if err := c.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish order announcement: %w", err)
	}

	log.Printf("📨 [NATS] Published NEW_ORDER: subject=%s, orderId=%s, rescue=%v",
		subject, announcement.OrderID, announcement.Rescue)
	return nil
}

// Close connection
func (c *NATSClient) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// GetConnection returns the underlying connection
func (c *NATSClient) GetConnection() *nats.Conn {
	return c.conn
}
