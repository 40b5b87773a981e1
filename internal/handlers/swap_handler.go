package handlers

import (
	"errors"
	"math/big"
	"net/http"
	"time"

	"relayer-backend/internal/dto"
	"relayer-backend/internal/pricing"
	"relayer-backend/internal/repository"
	"relayer-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SwapHandler serves user-facing order intake and read endpoints
type SwapHandler struct {
	orderService *services.OrderService
	logger       *logrus.Logger
}

// NewSwapHandler creates a new SwapHandler
func NewSwapHandler(orderService *services.OrderService, logger *logrus.Logger) *SwapHandler {
	return &SwapHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// CreateSwap accepts a signed swap request
// POST /api/create-swap
func (h *SwapHandler) CreateSwap(c *gin.Context) {
	var req dto.CreateSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Invalid request body",
			Details: err.Error(),
		})
		return
	}

	order, err := h.orderService.CreateSwap(c.Request.Context(), &req)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, services.ErrBadSignature):
			status = http.StatusUnauthorized
		case errors.Is(err, services.ErrInvalidRequest),
			errors.Is(err, services.ErrSecretMismatch),
			errors.Is(err, pricing.ErrOrderExpired),
			errors.Is(err, pricing.ErrInvalidPriceRange):
		default:
			status = http.StatusInternalServerError
		}

		h.logger.WithFields(logrus.Fields{
			"requester": req.SwapRequest.Requester,
			"error":     err.Error(),
		}).Warn("Swap creation rejected")

		c.JSON(status, dto.ErrorResponse{Error: "Failed to create swap", Details: err.Error()})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"src_chain_id": order.SrcChainID,
		"dst_chain_id": order.DstChainID,
	}).Info("Swap order created")

	resp := dto.CreateSwapResponse{
		OrderID:      order.ID,
		Status:       string(order.Status),
		FillDeadline: order.FillDeadline,
		Message:      "Order created and broadcast to resolvers",
	}
	if initial, ok := new(big.Int).SetString(order.InitialPrice, 10); ok {
		auction := &pricing.Auction{
			InitialPrice:    initial,
			FinalPrice:      initial,
			StartTime:       order.AuctionStart,
			EndTime:         order.AuctionEnd,
			FillDeadline:    order.FillDeadline,
			SafetyFactorPPM: order.SafetyFactorPPM,
			ExactInput:      order.ExactInput,
		}
		if final, ok := new(big.Int).SetString(order.FinalPrice, 10); ok {
			auction.FinalPrice = final
		}
		if price, err := auction.Price(time.Now().Unix()); err == nil {
			resp.CurrentPrice = pricing.FormatPrice(price)
		}
	}
	c.JSON(http.StatusCreated, resp)
}

// OrderStatus returns the public view of an order
// GET /api/order-status/:id
func (h *SwapHandler) OrderStatus(c *gin.Context) {
	orderID := c.Param("id")

	resp, err := h.orderService.GetOrderStatus(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Order not found"})
			return
		}
		h.logger.WithFields(logrus.Fields{
			"order_id": orderID,
			"error":    err.Error(),
		}).Error("Failed to load order status")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load order"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ActiveOrders lists orders open for commitment
// GET /api/active-orders
func (h *SwapHandler) ActiveOrders(c *gin.Context) {
	resp, err := h.orderService.ListActiveOrders(c.Request.Context())
	if err != nil {
		h.logger.WithField("error", err.Error()).Error("Failed to list active orders")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list active orders"})
		return
	}

	c.JSON(http.StatusOK, resp)
}
