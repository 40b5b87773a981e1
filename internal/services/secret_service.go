package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"relayer-backend/internal/chain"
	"relayer-backend/internal/dto"
	"relayer-backend/internal/metrics"
	"relayer-backend/internal/models"
	"relayer-backend/internal/repository"
	"relayer-backend/internal/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrSecretNotReleasable the order has not reached funds_locked, or the
// secret was already revealed
var ErrSecretNotReleasable = errors.New("secret is not releasable")

// SecretService releases the HTLC preimage to the committed resolver once
// both escrows are confirmed funded. Release happens exactly once; the
// guarded revealed flag arbitrates concurrent requests.
type SecretService struct {
	orderRepo      repository.OrderRepository
	commitmentRepo repository.CommitmentRepository
	escrowRepo     repository.EscrowRepository
	secretRepo     repository.SecretRepository
	penaltyRepo    repository.PenaltyRepository
	vault          *SecretVault
	chains         *chain.Registry
	push           *WebSocketPushService
}

// AttachPush wires the websocket hub for status change notifications
func (s *SecretService) AttachPush(push *WebSocketPushService) {
	s.push = push
}

// NewSecretService creates a new SecretService
func NewSecretService(
	orderRepo repository.OrderRepository,
	commitmentRepo repository.CommitmentRepository,
	escrowRepo repository.EscrowRepository,
	secretRepo repository.SecretRepository,
	penaltyRepo repository.PenaltyRepository,
	vault *SecretVault,
	chains *chain.Registry,
) *SecretService {
	return &SecretService{
		orderRepo:      orderRepo,
		commitmentRepo: commitmentRepo,
		escrowRepo:     escrowRepo,
		secretRepo:     secretRepo,
		penaltyRepo:    penaltyRepo,
		vault:          vault,
		chains:         chains,
	}
}

// Reveal releases the secret for a funds_locked order to its committed
// resolver and finalizes the order. Once revealed, repeat calls by the
// same resolver are no-ops returning the recorded reveal.
func (s *SecretService) Reveal(ctx context.Context, orderID, resolver string) (*dto.OrderSecretResponse, error) {
	if !utils.IsEvmAddress(resolver) {
		return nil, fmt.Errorf("%w: invalid resolver address", ErrInvalidRequest)
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	record, err := s.secretRepo.GetByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if record.Revealed {
		return s.recordedReveal(ctx, order, record, resolver)
	}

	if order.Status != models.OrderStatusFundsLocked {
		return nil, fmt.Errorf("%w: order status is %s", ErrSecretNotReleasable, order.Status)
	}

	commitment, err := s.commitmentRepo.GetActiveByOrder(ctx, orderID)
	if err != nil {
		// A concurrent reveal may have closed the commitment between our
		// reads; serve the recorded reveal in that case
		if errors.Is(err, repository.ErrNotFound) {
			if record, rerr := s.secretRepo.GetByOrder(ctx, orderID); rerr == nil && record.Revealed {
				return s.recordedReveal(ctx, order, record, resolver)
			}
		}
		return nil, err
	}
	if !utils.SameAddress(commitment.Resolver, resolver) {
		return nil, ErrNotCommittedResolver
	}

	// Flip the revealed flag first; the loser of a concurrent race falls
	// back to serving the reveal the winner recorded
	if err := s.secretRepo.MarkRevealed(ctx, orderID, ""); err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			record, err = s.secretRepo.GetByOrder(ctx, orderID)
			if err != nil {
				return nil, err
			}
			return s.recordedReveal(ctx, order, record, resolver)
		}
		return nil, err
	}

	secret, err := s.vault.Unseal(record.SealedSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal secret for order %s: %w", orderID, err)
	}

	metrics.SecretsRevealed.Inc()
	log.Printf("🔓 [Secret] Order %s secret released to resolver %s", orderID, commitment.Resolver)

	// Best-effort: push the user's destination withdrawal ourselves so the
	// swap completes even if the resolver stalls after learning the secret
	txHash := s.withdrawDestination(ctx, order, secret)
	if txHash != "" {
		if err := s.secretRepo.SetRevealTxHash(ctx, orderID, txHash); err != nil {
			log.Printf("⚠️ [Secret] Failed to record reveal tx for order %s: %v", orderID, err)
		}
	}

	if err := s.orderRepo.TransitionState(ctx, orderID, models.OrderStatusFundsLocked, models.OrderStatusCompleted); err != nil {
		if !errors.Is(err, repository.ErrStateConflict) {
			return nil, err
		}
	} else {
		notifyStatus(s.push, orderID, models.OrderStatusFundsLocked, models.OrderStatusCompleted, commitment.Resolver)
		log.Printf("🏁 [Secret] Order %s completed", orderID)
	}

	if err := s.commitmentRepo.UpdateStatus(ctx, commitment.ID, models.CommitmentStatusCompleted); err != nil {
		log.Printf("⚠️ [Secret] Failed to complete commitment %s: %v", commitment.ID, err)
	}

	// Completing a rescue fill pays out the forfeited deposit
	if commitment.Rescue {
		if penalty, err := s.penaltyRepo.GetPendingByOrder(ctx, orderID); err == nil {
			if err := s.penaltyRepo.MarkClaimed(ctx, penalty.ID); err != nil {
				log.Printf("⚠️ [Secret] Failed to claim penalty %s: %v", penalty.ID, err)
			} else {
				log.Printf("🛟 [Secret] Penalty %s claimed by rescuer %s", penalty.ID, commitment.Resolver)
			}
		}
	}

	return &dto.OrderSecretResponse{
		OrderID:      orderID,
		Secret:       hexutil.Encode(secret),
		SecretHash:   order.SecretHash,
		RevealTxHash: txHash,
	}, nil
}

// recordedReveal serves a repeat request for an already-revealed secret.
// Only the resolver that held the order may read it back.
func (s *SecretService) recordedReveal(ctx context.Context, order *models.Order, record *models.SecretRecord, resolver string) (*dto.OrderSecretResponse, error) {
	commitment, err := s.commitmentRepo.GetLatestByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if !utils.SameAddress(commitment.Resolver, resolver) {
		return nil, ErrNotCommittedResolver
	}

	secret, err := s.vault.Unseal(record.SealedSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal secret for order %s: %w", order.ID, err)
	}
	return &dto.OrderSecretResponse{
		OrderID:      order.ID,
		Secret:       hexutil.Encode(secret),
		SecretHash:   order.SecretHash,
		RevealTxHash: record.RevealTxHash,
	}, nil
}

// withdrawDestination submits the withdraw on the destination escrow with
// the revealed secret, returning the transaction hash. Failures are logged
// only; the resolver holds the secret and can always withdraw itself.
func (s *SecretService) withdrawDestination(ctx context.Context, order *models.Order, secret []byte) string {
	record, err := s.escrowRepo.GetByOrderAndSide(ctx, order.ID, models.EscrowSideDestination)
	if err != nil {
		log.Printf("⚠️ [Secret] No destination escrow record for order %s: %v", order.ID, err)
		return ""
	}
	adapter, err := s.chains.Get(record.ChainID)
	if err != nil {
		log.Printf("⚠️ [Secret] No adapter for chain %d: %v", record.ChainID, err)
		return ""
	}

	txHash, err := adapter.Withdraw(ctx, common.HexToAddress(record.EscrowAddress), secret, nil)
	if err != nil {
		log.Printf("⚠️ [Secret] Destination withdraw failed for order %s: %v", order.ID, err)
		return ""
	}
	log.Printf("✅ [Secret] Destination withdraw submitted for order %s: %s", order.ID, txHash)
	return txHash
}
