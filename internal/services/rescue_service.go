package services

import (
	"context"
	"errors"
	"log"
	"time"

	"relayer-backend/internal/config"
	"relayer-backend/internal/metrics"
	"relayer-backend/internal/models"
	"relayer-backend/internal/repository"

	"github.com/google/uuid"
)

// RescueMonitorService sweeps for resolvers that committed but did not
// finish within the commitment window. Expired commitments forfeit their
// safety deposit and the order reopens for rescue at the final auction
// price.
type RescueMonitorService struct {
	orderRepo      repository.OrderRepository
	commitmentRepo repository.CommitmentRepository
	penaltyRepo    repository.PenaltyRepository
	broadcast      *BroadcastService
	push           *WebSocketPushService

	running       bool
	stopCh        chan struct{}
	checkInterval time.Duration
}

// NewRescueMonitorService creates a new RescueMonitorService
func NewRescueMonitorService(
	orderRepo repository.OrderRepository,
	commitmentRepo repository.CommitmentRepository,
	penaltyRepo repository.PenaltyRepository,
	broadcast *BroadcastService,
) *RescueMonitorService {
	interval := 30 * time.Second
	if config.AppConfig != nil && config.AppConfig.Auction.SweepIntervalSeconds > 0 {
		interval = time.Duration(config.AppConfig.Auction.SweepIntervalSeconds) * time.Second
	}
	return &RescueMonitorService{
		orderRepo:      orderRepo,
		commitmentRepo: commitmentRepo,
		penaltyRepo:    penaltyRepo,
		broadcast:      broadcast,
		stopCh:         make(chan struct{}),
		checkInterval:  interval,
	}
}

// AttachPush wires the websocket hub for status change notifications
func (s *RescueMonitorService) AttachPush(push *WebSocketPushService) {
	s.push = push
}

// Start begins the sweep loop
func (s *RescueMonitorService) Start() {
	if s.running {
		return
	}
	s.running = true

	log.Printf("🚀 Starting RescueMonitorService (check interval: %v)", s.checkInterval)

	go s.sweepLoop()

	log.Printf("✅ RescueMonitorService started")
}

// Stop gracefully stops the sweep loop
func (s *RescueMonitorService) Stop() {
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	log.Printf("🛑 RescueMonitorService stopped")
}

func (s *RescueMonitorService) sweepLoop() {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	// Run initial sweep on startup
	s.Sweep()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stopCh:
			return
		}
	}
}

// Sweep runs one pass: expire stale commitments and fail orders past
// their fill deadline. Exported so tests can drive it directly.
func (s *RescueMonitorService) Sweep() {
	ctx := context.Background()
	now := time.Now()

	s.expireCommitments(ctx, now)
	s.failExpiredOrders(ctx, now)
	s.updateStatusGauges(ctx)
}

// updateStatusGauges refreshes the per-status order gauge once per sweep
func (s *RescueMonitorService) updateStatusGauges(ctx context.Context) {
	statuses := []models.OrderStatus{
		models.OrderStatusPending,
		models.OrderStatusCommitted,
		models.OrderStatusEscrowsDeployed,
		models.OrderStatusFundsLocked,
		models.OrderStatusRescueAvailable,
	}
	for _, status := range statuses {
		orders, err := s.orderRepo.FindByStatus(ctx, status)
		if err != nil {
			return
		}
		metrics.OrdersByStatus.WithLabelValues(string(status)).Set(float64(len(orders)))
	}
}

func (s *RescueMonitorService) expireCommitments(ctx context.Context, now time.Time) {
	expired, err := s.commitmentRepo.FindExpiredActive(ctx, now)
	if err != nil {
		log.Printf("❌ [Rescue] Failed to query expired commitments: %v", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	log.Printf("⚠️ [Rescue] Found %d expired commitments", len(expired))

	for _, commitment := range expired {
		order, err := s.orderRepo.GetByID(ctx, commitment.OrderID)
		if err != nil {
			log.Printf("❌ [Rescue] Order %s not found for commitment %s: %v", commitment.OrderID, commitment.ID, err)
			continue
		}

		switch order.Status {
		case models.OrderStatusCommitted, models.OrderStatusEscrowsDeployed, models.OrderStatusFundsLocked:
		default:
			// Order finished, failed, or was reopened by an earlier pass
			// that died before retiring the commitment; retire it now and
			// backfill the penalty for the reopened case
			if err := s.commitmentRepo.UpdateStatus(ctx, commitment.ID, models.CommitmentStatusExpired); err != nil {
				log.Printf("❌ [Rescue] Failed to expire commitment %s: %v", commitment.ID, err)
				continue
			}
			if order.Status == models.OrderStatusRescueAvailable {
				s.ensurePenalty(ctx, order, commitment)
			}
			continue
		}

		// Reopen the order before retiring the commitment: if the process
		// dies in between, the commitment is still active and the next
		// sweep picks it up again
		if err := s.orderRepo.TransitionState(ctx, order.ID, order.Status, models.OrderStatusRescueAvailable); err != nil {
			if !errors.Is(err, repository.ErrStateConflict) {
				log.Printf("❌ [Rescue] Failed to reopen order %s: %v", order.ID, err)
			}
			continue
		}
		if err := s.commitmentRepo.UpdateStatus(ctx, commitment.ID, models.CommitmentStatusExpired); err != nil {
			log.Printf("❌ [Rescue] Failed to expire commitment %s: %v", commitment.ID, err)
		}

		s.ensurePenalty(ctx, order, commitment)

		metrics.RescuesOpened.Inc()
		notifyStatus(s.push, order.ID, order.Status, models.OrderStatusRescueAvailable, "")
		log.Printf("🛟 [Rescue] Order %s reopened for rescue, resolver %s forfeits deposit %s",
			order.ID, commitment.Resolver, commitment.SafetyDeposit)

		// Re-announce so other resolvers can pick it up
		s.broadcast.Announce(order, true)
	}
}

// ensurePenalty records the forfeited deposit once per reopened order
func (s *RescueMonitorService) ensurePenalty(ctx context.Context, order *models.Order, commitment *models.Commitment) {
	if _, err := s.penaltyRepo.GetPendingByOrder(ctx, order.ID); err == nil {
		return
	}
	if err := s.penaltyRepo.Create(ctx, &models.PenaltyRecord{
		ID:             uuid.New().String(),
		OrderID:        order.ID,
		FailedResolver: commitment.Resolver,
		DepositAmount:  commitment.SafetyDeposit,
		Status:         models.PenaltyStatusPending,
	}); err != nil {
		log.Printf("❌ [Rescue] Failed to record penalty for order %s: %v", order.ID, err)
	}
}

// failExpiredOrders moves orders past their fill deadline with no active
// resolver to failed; funds already locked stay recoverable via the
// escrow timelocks
func (s *RescueMonitorService) failExpiredOrders(ctx context.Context, now time.Time) {
	expired, err := s.orderRepo.FindActiveBefore(ctx, now,
		models.OrderStatusPending, models.OrderStatusRescueAvailable)
	if err != nil {
		log.Printf("❌ [Rescue] Failed to query expired orders: %v", err)
		return
	}

	for _, order := range expired {
		if err := s.orderRepo.TransitionState(ctx, order.ID, order.Status, models.OrderStatusFailed); err != nil {
			if !errors.Is(err, repository.ErrStateConflict) {
				log.Printf("❌ [Rescue] Failed to fail order %s: %v", order.ID, err)
			}
			continue
		}
		notifyStatus(s.push, order.ID, order.Status, models.OrderStatusFailed, "")
		log.Printf("⏰ [Rescue] Order %s failed: fill deadline passed with no resolver", order.ID)
	}
}
