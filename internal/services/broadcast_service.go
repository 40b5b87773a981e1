package services

import (
	"log"
	"time"

	"relayer-backend/internal/clients"
	"relayer-backend/internal/dto"
	"relayer-backend/internal/metrics"
	"relayer-backend/internal/models"
)

// BroadcastService publishes order announcements to resolvers. Publishing
// is fire-and-forget with retries in the background; a broker outage must
// never fail order creation.
type BroadcastService struct {
	broker     clients.OrderBroker
	maxRetries int
	retryWait  time.Duration
}

// NewBroadcastService creates a new BroadcastService
func NewBroadcastService(broker clients.OrderBroker) *BroadcastService {
	return &BroadcastService{
		broker:     broker,
		maxRetries: 3,
		retryWait:  2 * time.Second,
	}
}

// Announce publishes a NEW_ORDER message for the order. Runs async; errors
// are logged and counted, never returned to the caller.
func (s *BroadcastService) Announce(order *models.Order, rescue bool) {
	announcement := &dto.OrderAnnouncement{
		OrderID:      order.ID,
		OrderType:    dto.OrderTypeDutchAuction,
		Requester:    order.Requester,
		SrcChainID:   order.SrcChainID,
		DstChainID:   order.DstChainID,
		SrcToken:     order.SrcToken,
		DstToken:     order.DstToken,
		SrcAmount:    order.SrcAmount,
		ExactInput:   order.ExactInput,
		SecretHash:   order.SecretHash,
		InitialPrice: order.InitialPrice,
		FinalPrice:   order.FinalPrice,
		AuctionStart: order.AuctionStart,
		AuctionEnd:   order.AuctionEnd,
		FillDeadline: order.FillDeadline,
		Rescue:       rescue,
	}

	go s.publishWithRetry(announcement)
}

func (s *BroadcastService) publishWithRetry(announcement *dto.OrderAnnouncement) {
	var err error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		if err = s.broker.PublishNewOrder(announcement); err == nil {
			metrics.OrdersBroadcast.WithLabelValues("success").Inc()
			return
		}
		log.Printf("⚠️ [Broadcast] Publish attempt %d/%d failed for order %s: %v",
			attempt, s.maxRetries, announcement.OrderID, err)
		if attempt < s.maxRetries {
			time.Sleep(s.retryWait * time.Duration(attempt))
		}
	}

	metrics.OrdersBroadcast.WithLabelValues("failure").Inc()
	log.Printf("❌ [Broadcast] Giving up on order %s after %d attempts: %v",
		announcement.OrderID, s.maxRetries, err)
}
