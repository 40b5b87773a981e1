package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"relayer-backend/internal/chain"
	"relayer-backend/internal/config"
	"relayer-backend/internal/dto"
	"relayer-backend/internal/metrics"
	"relayer-backend/internal/models"
	"relayer-backend/internal/pricing"
	"relayer-backend/internal/repository"
	"relayer-backend/internal/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrInvalidRequest covers malformed or internally inconsistent swap
	// requests; handlers map it to 400
	ErrInvalidRequest = errors.New("invalid swap request")
	// ErrSecretMismatch the supplied secret does not hash to secretHash
	ErrSecretMismatch = errors.New("secret does not match secret hash")
	// ErrBadSignature the signature does not recover to the requester
	ErrBadSignature = errors.New("signature verification failed")
)

// OrderService owns order intake and read paths
type OrderService struct {
	orderRepo      repository.OrderRepository
	commitmentRepo repository.CommitmentRepository
	escrowRepo     repository.EscrowRepository
	secretRepo     repository.SecretRepository
	vault          *SecretVault
	broadcast      *BroadcastService
	chains         *chain.Registry
}

// NewOrderService creates a new OrderService
func NewOrderService(
	orderRepo repository.OrderRepository,
	commitmentRepo repository.CommitmentRepository,
	escrowRepo repository.EscrowRepository,
	secretRepo repository.SecretRepository,
	vault *SecretVault,
	broadcast *BroadcastService,
	chains *chain.Registry,
) *OrderService {
	return &OrderService{
		orderRepo:      orderRepo,
		commitmentRepo: commitmentRepo,
		escrowRepo:     escrowRepo,
		secretRepo:     secretRepo,
		vault:          vault,
		broadcast:      broadcast,
		chains:         chains,
	}
}

// CreateSwap validates a signed swap request, seals the secret, persists
// the order in pending and announces it to resolvers.
func (s *OrderService) CreateSwap(ctx context.Context, req *dto.CreateSwapRequest) (*models.Order, error) {
	sr := &req.SwapRequest

	auction, err := s.validateSwapRequest(sr)
	if err != nil {
		return nil, err
	}

	// The user signs the JSON encoding of the request; recover and match
	message, err := json.Marshal(sr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := utils.VerifyPersonalSignature(message, req.Signature, sr.Requester); err != nil {
		log.Printf("❌ [CreateSwap] Signature check failed for %s: %v", sr.Requester, err)
		return nil, ErrBadSignature
	}

	// The secret never leaves this process unsealed; only its hash is stored
	// on the order
	if !utils.IsHash32(req.Secret) {
		return nil, fmt.Errorf("%w: secret must be a 32-byte hex string", ErrInvalidRequest)
	}
	secretBytes := common.FromHex(req.Secret)
	computedHash := crypto.Keccak256Hash(secretBytes)
	if !utils.SameAddress(computedHash.Hex(), sr.SecretHash) {
		return nil, ErrSecretMismatch
	}

	orderID := deriveOrderID(message)

	if existing, err := s.orderRepo.GetByID(ctx, orderID); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: order %s already exists", ErrInvalidRequest, orderID)
	}

	sealed, err := s.vault.Seal(secretBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to seal secret: %w", err)
	}

	order := &models.Order{
		ID:                orderID,
		Requester:         utils.NormalizeAddress(sr.Requester),
		SrcChainID:        sr.SrcChainID,
		DstChainID:        sr.DstChainID,
		SrcToken:          utils.NormalizeAddress(sr.SrcToken),
		DstToken:          utils.NormalizeAddress(sr.DstToken),
		SrcAmount:         sr.SrcAmount,
		ExactInput:        sr.ExactInput,
		SecretHash:        sr.SecretHash,
		InitialPrice:      auction.InitialPrice.String(),
		FinalPrice:        auction.FinalPrice.String(),
		AuctionStart:      sr.AuctionStart,
		AuctionEnd:        sr.AuctionEnd,
		SafetyFactorPPM:   auction.SafetyFactorPPM,
		CreationTimestamp: sr.CreationTimestamp,
		FillDeadline:      sr.FillDeadline,
		Status:            models.OrderStatusPending,
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}
	if err := s.secretRepo.Create(ctx, &models.SecretRecord{
		OrderID:      orderID,
		SecretHash:   sr.SecretHash,
		SealedSecret: sealed,
	}); err != nil {
		return nil, fmt.Errorf("failed to persist sealed secret: %w", err)
	}

	metrics.OrdersCreated.Inc()
	log.Printf("✅ [CreateSwap] Order %s created: %d -> %d, amount=%s, exactInput=%v",
		orderID, order.SrcChainID, order.DstChainID, order.SrcAmount, order.ExactInput)

	// Fire-and-forget: a broker outage must not fail creation
	s.broadcast.Announce(order, false)

	return order, nil
}

// validateSwapRequest checks field shapes and auction consistency, returning
// the parsed auction
func (s *OrderService) validateSwapRequest(sr *dto.SwapOrderRequest) (*pricing.Auction, error) {
	if !utils.IsEvmAddress(sr.Requester) {
		return nil, fmt.Errorf("%w: invalid requester address", ErrInvalidRequest)
	}
	if !utils.IsEvmAddress(sr.SrcToken) || !utils.IsEvmAddress(sr.DstToken) {
		return nil, fmt.Errorf("%w: invalid token address", ErrInvalidRequest)
	}
	if !utils.IsHash32(sr.SecretHash) {
		return nil, fmt.Errorf("%w: secretHash must be a 32-byte hex string", ErrInvalidRequest)
	}
	if sr.SrcChainID == sr.DstChainID {
		return nil, fmt.Errorf("%w: source and destination chains must differ", ErrInvalidRequest)
	}
	if !s.chains.Supports(sr.SrcChainID, sr.DstChainID) {
		return nil, fmt.Errorf("%w: unsupported chain pair %d -> %d", ErrInvalidRequest, sr.SrcChainID, sr.DstChainID)
	}

	if _, err := pricing.ParseAmount(sr.SrcAmount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	initialPrice, err := pricing.ParsePrice(sr.InitialPrice)
	if err != nil {
		return nil, fmt.Errorf("%w: initialPrice: %v", ErrInvalidRequest, err)
	}
	finalPrice, err := pricing.ParsePrice(sr.FinalPrice)
	if err != nil {
		return nil, fmt.Errorf("%w: finalPrice: %v", ErrInvalidRequest, err)
	}

	safetyFactor := sr.SafetyFactor
	if safetyFactor == "" {
		safetyFactor = config.AppConfig.Auction.DefaultSafetyFactor
	}
	sfPPM, err := pricing.ParseSafetyFactor(safetyFactor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	now := time.Now().Unix()
	if sr.FillDeadline <= now {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, pricing.ErrOrderExpired)
	}
	if sr.FillDeadline <= sr.CreationTimestamp {
		return nil, fmt.Errorf("%w: fill deadline must be after creation timestamp", ErrInvalidRequest)
	}
	maxDuration := int64(config.AppConfig.Auction.MaxOrderDuration)
	if sr.FillDeadline-sr.CreationTimestamp > maxDuration {
		return nil, fmt.Errorf("%w: order lifetime exceeds %ds", ErrInvalidRequest, maxDuration)
	}

	auction := &pricing.Auction{
		InitialPrice:    initialPrice,
		FinalPrice:      finalPrice,
		StartTime:       sr.AuctionStart,
		EndTime:         sr.AuctionEnd,
		FillDeadline:    sr.FillDeadline,
		SafetyFactorPPM: sfPPM,
		ExactInput:      sr.ExactInput,
	}
	if err := auction.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return auction, nil
}

// GetOrderStatus assembles the public view of an order
func (s *OrderService) GetOrderStatus(ctx context.Context, orderID string) (*dto.OrderStatusResponse, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	resp := s.toStatusResponse(order)

	if commitment, err := s.commitmentRepo.GetActiveByOrder(ctx, orderID); err == nil {
		resp.Resolver = commitment.Resolver
		resp.CommitDeadline = commitment.Deadline.Unix()
	}

	escrows, err := s.escrowRepo.FindByOrder(ctx, orderID)
	if err == nil {
		for _, e := range escrows {
			status := &dto.EscrowStatus{
				ChainID:       e.ChainID,
				EscrowAddress: e.EscrowAddress,
				Funded:        e.Funded,
				Balance:       e.ObservedBalance,
			}
			switch e.Side {
			case models.EscrowSideSource:
				resp.SrcEscrow = status
			case models.EscrowSideDestination:
				resp.DstEscrow = status
			}
		}
	}

	return resp, nil
}

// ListActiveOrders returns orders still open for resolver commitment
func (s *OrderService) ListActiveOrders(ctx context.Context) (*dto.ActiveOrdersResponse, error) {
	orders, err := s.orderRepo.FindByStatus(ctx, models.OrderStatusPending, models.OrderStatusRescueAvailable)
	if err != nil {
		return nil, err
	}

	resp := &dto.ActiveOrdersResponse{Orders: make([]dto.OrderStatusResponse, 0, len(orders))}
	now := time.Now().Unix()
	for _, order := range orders {
		if order.FillDeadline <= now {
			continue
		}
		resp.Orders = append(resp.Orders, *s.toStatusResponse(order))
	}
	resp.Count = len(resp.Orders)
	return resp, nil
}

func (s *OrderService) toStatusResponse(order *models.Order) *dto.OrderStatusResponse {
	resp := &dto.OrderStatusResponse{
		OrderID:      order.ID,
		Status:       string(order.Status),
		Requester:    order.Requester,
		SrcChainID:   order.SrcChainID,
		DstChainID:   order.DstChainID,
		SrcToken:     order.SrcToken,
		DstToken:     order.DstToken,
		SrcAmount:    order.SrcAmount,
		ExactInput:   order.ExactInput,
		SecretHash:   order.SecretHash,
		AuctionStart: order.AuctionStart,
		AuctionEnd:   order.AuctionEnd,
		FillDeadline: order.FillDeadline,
	}

	auction, err := auctionFromOrder(order)
	if err != nil {
		return resp
	}
	now := time.Now().Unix()
	if price, err := auction.Price(now); err == nil {
		resp.CurrentPrice = pricing.FormatPrice(price)
	}
	if effective, err := auction.EffectivePrice(now); err == nil {
		resp.EffectivePrice = pricing.FormatPrice(effective)
	}
	return resp
}

// auctionFromOrder reconstructs the auction from stored order columns
func auctionFromOrder(order *models.Order) (*pricing.Auction, error) {
	initialPrice, ok := new(big.Int).SetString(order.InitialPrice, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt initial price on order %s", order.ID)
	}
	finalPrice, ok := new(big.Int).SetString(order.FinalPrice, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt final price on order %s", order.ID)
	}
	return &pricing.Auction{
		InitialPrice:    initialPrice,
		FinalPrice:      finalPrice,
		StartTime:       order.AuctionStart,
		EndTime:         order.AuctionEnd,
		FillDeadline:    order.FillDeadline,
		SafetyFactorPPM: order.SafetyFactorPPM,
		ExactInput:      order.ExactInput,
	}, nil
}

// deriveOrderID hashes the signed request JSON into the canonical order id
func deriveOrderID(message []byte) string {
	return crypto.Keccak256Hash(message).Hex()
}
