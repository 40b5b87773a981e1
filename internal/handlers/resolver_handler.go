package handlers

import (
	"errors"
	"net/http"

	"relayer-backend/internal/dto"
	"relayer-backend/internal/pricing"
	"relayer-backend/internal/repository"
	"relayer-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ResolverHandler serves the resolver-facing endpoints: commitment, escrow
// reporting, funding confirmation and secret retrieval
type ResolverHandler struct {
	commitmentService *services.CommitmentService
	escrowService     *services.EscrowService
	secretService     *services.SecretService
	logger            *logrus.Logger
}

// NewResolverHandler creates a new ResolverHandler
func NewResolverHandler(
	commitmentService *services.CommitmentService,
	escrowService *services.EscrowService,
	secretService *services.SecretService,
	logger *logrus.Logger,
) *ResolverHandler {
	return &ResolverHandler{
		commitmentService: commitmentService,
		escrowService:     escrowService,
		secretService:     secretService,
		logger:            logger,
	}
}

// CommitResolver binds an order to the first acceptable bidder
// POST /api/commit-resolver
func (h *ResolverHandler) CommitResolver(c *gin.Context) {
	var req dto.CommitResolverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Invalid request body",
			Details: err.Error(),
		})
		return
	}

	commitment, err := h.commitmentService.Commit(c.Request.Context(), &req)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"order_id": req.OrderID,
			"resolver": req.Resolver,
			"error":    err.Error(),
		}).Warn("Resolver commit rejected")

		c.JSON(h.commitStatusCode(err), dto.ErrorResponse{Error: "Commit rejected", Details: err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.CommitResolverResponse{
		OrderID:        commitment.OrderID,
		Resolver:       commitment.Resolver,
		CommittedPrice: commitment.CommittedPrice,
		ExpectedDstAmt: commitment.ExpectedDstAmt,
		Deadline:       commitment.Deadline.Unix(),
		Status:         string(commitment.Status),
	})
}

// ResolverUpdate records deployed escrow addresses
// POST /api/resolver-update
func (h *ResolverHandler) ResolverUpdate(c *gin.Context) {
	var req dto.ResolverUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Invalid request body",
			Details: err.Error(),
		})
		return
	}

	if err := h.escrowService.ReportEscrows(c.Request.Context(), &req); err != nil {
		h.logger.WithFields(logrus.Fields{
			"order_id": req.OrderID,
			"resolver": req.Resolver,
			"error":    err.Error(),
		}).Warn("Escrow report rejected")

		c.JSON(h.commitStatusCode(err), dto.ErrorResponse{Error: "Escrow report rejected", Details: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "orderId": req.OrderID})
}

// TradeComplete accepts the resolver's funded claim and starts on-chain
// verification in the background
// POST /api/trade-complete
func (h *ResolverHandler) TradeComplete(c *gin.Context) {
	var req dto.TradeCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Invalid request body",
			Details: err.Error(),
		})
		return
	}

	if err := h.escrowService.ConfirmFunding(c.Request.Context(), &req); err != nil {
		h.logger.WithFields(logrus.Fields{
			"order_id": req.OrderID,
			"resolver": req.Resolver,
			"error":    err.Error(),
		}).Warn("Funding confirmation rejected")

		c.JSON(h.commitStatusCode(err), dto.ErrorResponse{Error: "Funding confirmation rejected", Details: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "orderId": req.OrderID, "message": "funding verification started"})
}

// OrderSecret releases the preimage to the committed resolver
// GET /api/order-secret/:id?resolverAddress=0x...
func (h *ResolverHandler) OrderSecret(c *gin.Context) {
	orderID := c.Param("id")
	resolver := c.Query("resolverAddress")
	if resolver == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "resolverAddress query parameter required"})
		return
	}

	resp, err := h.secretService.Reveal(c.Request.Context(), orderID, resolver)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"order_id": orderID,
			"resolver": resolver,
			"error":    err.Error(),
		}).Warn("Secret release rejected")

		c.JSON(h.commitStatusCode(err), dto.ErrorResponse{Error: "Secret release rejected", Details: err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// commitStatusCode maps service errors to HTTP status codes
func (h *ResolverHandler) commitStatusCode(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrAlreadyCommitted):
		return http.StatusConflict
	case errors.Is(err, services.ErrNotCommittedResolver):
		return http.StatusForbidden
	case errors.Is(err, services.ErrOrderNotOpen),
		errors.Is(err, services.ErrSecretNotReleasable),
		errors.Is(err, services.ErrEscrowMismatch),
		errors.Is(err, services.ErrEscrowNotFunded):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidRequest),
		errors.Is(err, pricing.ErrPriceBelowAuction),
		errors.Is(err, pricing.ErrOrderExpired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
