package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"relayer-backend/internal/chain"
	"relayer-backend/internal/dto"
	"relayer-backend/internal/models"
	"relayer-backend/internal/pricing"
	"relayer-backend/internal/repository"
	"relayer-backend/internal/utils"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrNotCommittedResolver the caller is not the resolver bound to the order
	ErrNotCommittedResolver = errors.New("caller is not the committed resolver")
	// ErrEscrowMismatch a reported escrow address does not match the
	// deterministic derivation
	ErrEscrowMismatch = errors.New("reported escrow address does not match derivation")
	// ErrEscrowNotFunded an escrow balance is below the required amount
	ErrEscrowNotFunded = errors.New("escrow is not sufficiently funded")
)

// fundingMaxAttempts bounds the background balance re-polls per order
const fundingMaxAttempts = 10

// SecretRevealer triggers the secret release that follows funding
// confirmation
type SecretRevealer interface {
	Reveal(ctx context.Context, orderID, resolver string) (*dto.OrderSecretResponse, error)
}

// EscrowService verifies resolver-reported escrows against their
// deterministic addresses and confirms funding on chain
type EscrowService struct {
	orderRepo      repository.OrderRepository
	commitmentRepo repository.CommitmentRepository
	escrowRepo     repository.EscrowRepository
	chains         *chain.Registry
	push           *WebSocketPushService
	revealer       SecretRevealer
	pollInterval   time.Duration
}

// AttachPush wires the websocket hub for status change notifications
func (s *EscrowService) AttachPush(push *WebSocketPushService) {
	s.push = push
}

// AttachRevealer wires the secret release step run after funding confirms
func (s *EscrowService) AttachRevealer(revealer SecretRevealer) {
	s.revealer = revealer
}

// NewEscrowService creates a new EscrowService
func NewEscrowService(
	orderRepo repository.OrderRepository,
	commitmentRepo repository.CommitmentRepository,
	escrowRepo repository.EscrowRepository,
	chains *chain.Registry,
) *EscrowService {
	return &EscrowService{
		orderRepo:      orderRepo,
		commitmentRepo: commitmentRepo,
		escrowRepo:     escrowRepo,
		chains:         chains,
		pollInterval:   5 * time.Second,
	}
}

// ReportEscrows records the escrow addresses a resolver deployed. Each
// address is checked against its CREATE2 derivation before it is stored;
// once both sides are on record the order advances to escrows_deployed.
func (s *EscrowService) ReportEscrows(ctx context.Context, req *dto.ResolverUpdateRequest) error {
	order, commitment, err := s.loadCommittedOrder(ctx, req.OrderID, req.Resolver, models.OrderStatusCommitted)
	if err != nil {
		return err
	}

	if req.SrcEscrow == "" && req.DstEscrow == "" {
		return fmt.Errorf("%w: no escrow addresses in update", ErrInvalidRequest)
	}

	if req.SrcEscrow != "" {
		if err := s.recordEscrow(ctx, order, commitment, models.EscrowSideSource, req.SrcEscrow); err != nil {
			return err
		}
	}
	if req.DstEscrow != "" {
		if err := s.recordEscrow(ctx, order, commitment, models.EscrowSideDestination, req.DstEscrow); err != nil {
			return err
		}
	}

	escrows, err := s.escrowRepo.FindByOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	if len(escrows) < 2 {
		return nil // waiting for the other side
	}

	if err := s.orderRepo.TransitionState(ctx, order.ID, models.OrderStatusCommitted, models.OrderStatusEscrowsDeployed); err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			return nil // concurrent update already advanced it
		}
		return err
	}
	notifyStatus(s.push, order.ID, models.OrderStatusCommitted, models.OrderStatusEscrowsDeployed, commitment.Resolver)
	log.Printf("✅ [Escrow] Order %s: both escrows recorded, advanced to escrows_deployed", order.ID)
	return nil
}

// ConfirmFunding validates the resolver's claim and kicks off balance
// verification in the background. Chain RPC never runs on the request
// path; the resolver polls order status for the outcome.
func (s *EscrowService) ConfirmFunding(ctx context.Context, req *dto.TradeCompleteRequest) error {
	order, commitment, err := s.loadCommittedOrder(ctx, req.OrderID, req.Resolver, models.OrderStatusEscrowsDeployed)
	if err != nil {
		return err
	}
	if !req.SrcEscrowFunded || !req.DstEscrowFunded {
		return fmt.Errorf("%w: both escrows must be declared funded", ErrInvalidRequest)
	}

	go s.verifyFundingLoop(order.ID, commitment.Resolver)
	return nil
}

// verifyFundingLoop re-polls the chain until both escrows cover their
// required amounts, then releases the secret. Gives up after a bounded
// number of checks; the rescue sweep reclaims the order from there.
func (s *EscrowService) verifyFundingLoop(orderID, resolver string) {
	ctx := context.Background()
	for attempt := 0; attempt < fundingMaxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(s.pollInterval)
		}
		err := s.verifyFunding(ctx, orderID, resolver)
		if err == nil {
			s.releaseSecret(ctx, orderID, resolver)
			return
		}
		if !errors.Is(err, ErrEscrowNotFunded) {
			log.Printf("❌ [Escrow] Order %s funding verification aborted: %v", orderID, err)
			return
		}
	}
	log.Printf("⏳ [Escrow] Order %s still underfunded after %d checks, leaving it to the rescue sweep", orderID, fundingMaxAttempts)
}

// verifyFunding runs one verification pass: re-checks both escrow balances
// on chain and, when both cover their required amounts, advances the order
// to funds_locked. The resolver's claim alone is never trusted.
func (s *EscrowService) verifyFunding(ctx context.Context, orderID, resolver string) error {
	order, commitment, err := s.loadCommittedOrder(ctx, orderID, resolver, models.OrderStatusEscrowsDeployed)
	if err != nil {
		return err
	}

	for _, side := range []models.EscrowSide{models.EscrowSideSource, models.EscrowSideDestination} {
		record, err := s.escrowRepo.GetByOrderAndSide(ctx, order.ID, side)
		if err != nil {
			return err
		}
		if record.Funded {
			continue
		}

		balance, err := s.observeBalance(ctx, order, record)
		if err != nil {
			return err
		}
		required, _ := new(big.Int).SetString(record.RequiredAmount, 10)
		if required == nil || balance.Cmp(required) < 0 {
			log.Printf("⚠️ [Escrow] Order %s %s escrow underfunded: balance=%s required=%s",
				order.ID, side, balance, record.RequiredAmount)
			return fmt.Errorf("%w: %s escrow has %s, needs %s", ErrEscrowNotFunded, side, balance, record.RequiredAmount)
		}

		if err := s.escrowRepo.MarkFunded(ctx, order.ID, side, balance.String()); err != nil {
			return err
		}
		log.Printf("💰 [Escrow] Order %s %s escrow funded: %s", order.ID, side, balance)
	}

	if err := s.orderRepo.TransitionState(ctx, order.ID, models.OrderStatusEscrowsDeployed, models.OrderStatusFundsLocked); err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			return nil
		}
		return err
	}
	notifyStatus(s.push, order.ID, models.OrderStatusEscrowsDeployed, models.OrderStatusFundsLocked, commitment.Resolver)
	log.Printf("✅ [Escrow] Order %s advanced to funds_locked", order.ID)
	return nil
}

// releaseSecret hands the funds_locked order to the secret vault so the
// reveal and destination withdraw follow without waiting for the resolver
// to poll
func (s *EscrowService) releaseSecret(ctx context.Context, orderID, resolver string) {
	if s.revealer == nil {
		return
	}
	if _, err := s.revealer.Reveal(ctx, orderID, resolver); err != nil {
		log.Printf("⚠️ [Escrow] Order %s reveal after funding failed: %v", orderID, err)
	}
}

// loadCommittedOrder fetches the order and its active commitment and
// checks the caller is the bound resolver
func (s *EscrowService) loadCommittedOrder(ctx context.Context, orderID, resolver string, wantStatus models.OrderStatus) (*models.Order, *models.Commitment, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if order.Status != wantStatus {
		return nil, nil, fmt.Errorf("%w: status is %s, want %s", ErrOrderNotOpen, order.Status, wantStatus)
	}

	commitment, err := s.commitmentRepo.GetActiveByOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if !utils.SameAddress(commitment.Resolver, resolver) {
		return nil, nil, ErrNotCommittedResolver
	}
	return order, commitment, nil
}

// recordEscrow verifies one reported address against its derivation and
// stores the record
func (s *EscrowService) recordEscrow(ctx context.Context, order *models.Order, commitment *models.Commitment, side models.EscrowSide, reported string) error {
	if !utils.IsEvmAddress(reported) {
		return fmt.Errorf("%w: invalid %s escrow address", ErrInvalidRequest, side)
	}

	chainID := order.SrcChainID
	if side == models.EscrowSideDestination {
		chainID = order.DstChainID
	}
	adapter, err := s.chains.Get(chainID)
	if err != nil {
		return err
	}

	immutables, required, err := s.immutablesFor(order, commitment, side)
	if err != nil {
		return err
	}
	// The destination escrow must also hold the resolver's safety deposit;
	// the deposit is not part of the CREATE2 derivation
	if side == models.EscrowSideDestination {
		deposit, err := pricing.ParseAmount(commitment.SafetyDeposit)
		if err != nil {
			return fmt.Errorf("corrupt safety deposit on commitment %s: %w", commitment.ID, err)
		}
		required = new(big.Int).Add(required, deposit)
	}
	expected, err := adapter.AddressOf(immutables)
	if err != nil {
		return err
	}
	if !utils.SameAddress(expected.Hex(), reported) {
		log.Printf("❌ [Escrow] Order %s %s escrow mismatch: reported=%s derived=%s",
			order.ID, side, reported, expected.Hex())
		return fmt.Errorf("%w: %s side", ErrEscrowMismatch, side)
	}

	record := &models.EscrowRecord{
		OrderID:          order.ID,
		Side:             side,
		ChainID:          chainID,
		EscrowAddress:    utils.NormalizeAddress(reported),
		RequiredAmount:   required.String(),
		SafetyDeposit:    commitment.SafetyDeposit,
		WithdrawDeadline: immutables.Timelock,
		CancelDeadline:   immutables.Timelock + int64(time.Hour.Seconds()),
	}
	if err := s.escrowRepo.Upsert(ctx, record); err != nil {
		return err
	}
	log.Printf("📝 [Escrow] Order %s %s escrow recorded at %s", order.ID, side, record.EscrowAddress)
	return nil
}

// immutablesFor builds the deterministic escrow parameters for one side
func (s *EscrowService) immutablesFor(order *models.Order, commitment *models.Commitment, side models.EscrowSide) (*chain.EscrowImmutables, *big.Int, error) {
	var token string
	var amount *big.Int
	var err error

	switch side {
	case models.EscrowSideSource:
		token = order.SrcToken
		amount, err = pricing.ParseAmount(order.SrcAmount)
	case models.EscrowSideDestination:
		token = order.DstToken
		amount, err = expectedDstAmount(commitment)
	default:
		return nil, nil, fmt.Errorf("unknown escrow side %q", side)
	}
	if err != nil {
		return nil, nil, err
	}

	return &chain.EscrowImmutables{
		OrderID:    order.ID,
		SecretHash: order.SecretHash,
		User:       common.HexToAddress(order.Requester),
		Resolver:   common.HexToAddress(commitment.Resolver),
		Token:      common.HexToAddress(token),
		Amount:     amount,
		Timelock:   order.FillDeadline,
		Side:       chain.EscrowSide(side),
	}, amount, nil
}

// observeBalance queries the escrow balance on the record's chain
func (s *EscrowService) observeBalance(ctx context.Context, order *models.Order, record *models.EscrowRecord) (*big.Int, error) {
	adapter, err := s.chains.Get(record.ChainID)
	if err != nil {
		return nil, err
	}
	token := order.SrcToken
	if record.Side == models.EscrowSideDestination {
		token = order.DstToken
	}
	return adapter.BalanceOf(ctx, common.HexToAddress(record.EscrowAddress), common.HexToAddress(token))
}
