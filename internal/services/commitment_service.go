package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"relayer-backend/internal/config"
	"relayer-backend/internal/dto"
	"relayer-backend/internal/metrics"
	"relayer-backend/internal/models"
	"relayer-backend/internal/pricing"
	"relayer-backend/internal/repository"
	"relayer-backend/internal/utils"

	"github.com/google/uuid"
)

var (
	// ErrOrderNotOpen the order is not accepting commitments
	ErrOrderNotOpen = errors.New("order is not open for commitment")
	// ErrAlreadyCommitted another resolver won the race for this order
	ErrAlreadyCommitted = errors.New("order already committed to another resolver")
)

// CommitmentService handles resolver commitment with single-winner
// semantics. The order-status CAS is the arbiter: of N concurrent commits
// exactly one transition succeeds, the rest observe a state conflict.
type CommitmentService struct {
	orderRepo      repository.OrderRepository
	commitmentRepo repository.CommitmentRepository
	penaltyRepo    repository.PenaltyRepository
	push           *WebSocketPushService
}

// AttachPush wires the websocket hub for status change notifications
func (s *CommitmentService) AttachPush(push *WebSocketPushService) {
	s.push = push
}

// NewCommitmentService creates a new CommitmentService
func NewCommitmentService(
	orderRepo repository.OrderRepository,
	commitmentRepo repository.CommitmentRepository,
	penaltyRepo repository.PenaltyRepository,
) *CommitmentService {
	return &CommitmentService{
		orderRepo:      orderRepo,
		commitmentRepo: commitmentRepo,
		penaltyRepo:    penaltyRepo,
	}
}

// Commit attempts to bind the order exclusively to the resolver at the
// offered price
func (s *CommitmentService) Commit(ctx context.Context, req *dto.CommitResolverRequest) (*models.Commitment, error) {
	if !utils.IsEvmAddress(req.Resolver) {
		return nil, fmt.Errorf("%w: invalid resolver address", ErrInvalidRequest)
	}
	offeredPrice, err := pricing.ParsePrice(req.CommittedPrice)
	if err != nil {
		return nil, fmt.Errorf("%w: committedPrice: %v", ErrInvalidRequest, err)
	}

	order, err := s.orderRepo.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	fromStatus := order.Status
	rescue := fromStatus == models.OrderStatusRescueAvailable
	if fromStatus != models.OrderStatusPending && !rescue {
		metrics.CommitAttempts.WithLabelValues("not_open").Inc()
		switch fromStatus {
		case models.OrderStatusCommitted, models.OrderStatusEscrowsDeployed, models.OrderStatusFundsLocked:
			// another resolver holds the order; late arrivals get the same
			// error as losers of the commit race
			return nil, fmt.Errorf("%w: status is %s", ErrAlreadyCommitted, fromStatus)
		}
		return nil, fmt.Errorf("%w: status is %s", ErrOrderNotOpen, fromStatus)
	}

	auction, err := auctionFromOrder(order)
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	if err := auction.AcceptOffer(offeredPrice, now); err != nil {
		metrics.CommitAttempts.WithLabelValues("rejected_price").Inc()
		return nil, err
	}

	// Single-winner arbitration: the guarded status update decides the race
	if err := s.orderRepo.TransitionState(ctx, order.ID, fromStatus, models.OrderStatusCommitted); err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			metrics.CommitAttempts.WithLabelValues("lost_race").Inc()
			log.Printf("🔒 [Commit] Resolver %s lost the race for order %s", req.Resolver, order.ID)
			return nil, ErrAlreadyCommitted
		}
		return nil, err
	}

	srcAmount, _ := pricing.ParseAmount(order.SrcAmount)
	expectedDst := pricing.DestinationAmount(srcAmount, offeredPrice,
		config.GetTokenDecimals(order.SrcChainID, order.SrcToken),
		config.GetTokenDecimals(order.DstChainID, order.DstToken))

	safetyDeposit := req.SafetyDeposit
	if safetyDeposit == "" {
		safetyDeposit = s.minSafetyDeposit(order.SrcChainID)
	}

	commitment := &models.Commitment{
		ID:             uuid.New().String(),
		OrderID:        order.ID,
		Resolver:       utils.NormalizeAddress(req.Resolver),
		CommittedPrice: offeredPrice.String(),
		ExpectedDstAmt: expectedDst.String(),
		SafetyDeposit:  safetyDeposit,
		Rescue:         rescue,
		CommittedAt:    time.Now(),
		Deadline:       time.Now().Add(config.CommitWindow()),
		Status:         models.CommitmentStatusActive,
	}
	if err := s.commitmentRepo.Create(ctx, commitment); err != nil {
		// Roll the order back so it is not stuck committed without a
		// commitment row
		if rbErr := s.orderRepo.TransitionState(ctx, order.ID, models.OrderStatusCommitted, fromStatus); rbErr != nil {
			log.Printf("❌ [Commit] Rollback failed for order %s: %v", order.ID, rbErr)
		}
		return nil, fmt.Errorf("failed to persist commitment: %w", err)
	}

	// A rescue commitment earns the forfeited safety deposit of the failed
	// resolver
	if rescue {
		if penalty, err := s.penaltyRepo.GetPendingByOrder(ctx, order.ID); err == nil {
			if err := s.penaltyRepo.SetRescuer(ctx, penalty.ID, commitment.Resolver); err != nil {
				log.Printf("⚠️ [Commit] Failed to assign rescuer on penalty %s: %v", penalty.ID, err)
			} else {
				log.Printf("🛟 [Commit] Resolver %s rescuing order %s, penalty %s assigned",
					commitment.Resolver, order.ID, penalty.ID)
			}
		}
	}

	metrics.CommitAttempts.WithLabelValues("success").Inc()
	notifyStatus(s.push, order.ID, fromStatus, models.OrderStatusCommitted, commitment.Resolver)
	log.Printf("✅ [Commit] Order %s committed to %s at price %s (deadline %s)",
		order.ID, commitment.Resolver, pricing.FormatPrice(offeredPrice),
		commitment.Deadline.Format(time.RFC3339))

	return commitment, nil
}

func (s *CommitmentService) minSafetyDeposit(chainID int) string {
	if networkConfig, err := config.GetNetworkConfigByChainID(chainID); err == nil && networkConfig.MinSafetyDeposit != "" {
		return networkConfig.MinSafetyDeposit
	}
	return "0"
}

// expectedDstAmount parses the destination amount locked in at commit time
func expectedDstAmount(commitment *models.Commitment) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(commitment.ExpectedDstAmt, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt expected amount on commitment %s", commitment.ID)
	}
	return amount, nil
}
