package handlers

import (
	"net/http"
	"strconv"

	"relayer-backend/internal/repository"
	"relayer-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AdminHandler serves operator endpoints: full order listing, forfeited
// deposits and a manual rescue sweep trigger
type AdminHandler struct {
	orderRepo     repository.OrderRepository
	penaltyRepo   repository.PenaltyRepository
	rescueMonitor *services.RescueMonitorService
	logger        *logrus.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(
	orderRepo repository.OrderRepository,
	penaltyRepo repository.PenaltyRepository,
	rescueMonitor *services.RescueMonitorService,
	logger *logrus.Logger,
) *AdminHandler {
	return &AdminHandler{
		orderRepo:     orderRepo,
		penaltyRepo:   penaltyRepo,
		rescueMonitor: rescueMonitor,
		logger:        logger,
	}
}

// ListOrders pages through all orders regardless of status
// GET /api/admin/orders?page=1&pageSize=50
func (h *AdminHandler) ListOrders(c *gin.Context) {
	page, pageSize := pagination(c)

	orders, total, err := h.orderRepo.List(c.Request.Context(), page, pageSize)
	if err != nil {
		h.logger.WithField("error", err.Error()).Error("Failed to list orders")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list orders"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders":    orders,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ListPenalties pages through forfeited safety deposits
// GET /api/admin/penalties?page=1&pageSize=50
func (h *AdminHandler) ListPenalties(c *gin.Context) {
	page, pageSize := pagination(c)

	penalties, total, err := h.penaltyRepo.List(c.Request.Context(), page, pageSize)
	if err != nil {
		h.logger.WithField("error", err.Error()).Error("Failed to list penalties")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list penalties"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"penalties": penalties,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// TriggerSweep runs one rescue sweep immediately instead of waiting for
// the next tick
// POST /api/admin/rescue-sweep
func (h *AdminHandler) TriggerSweep(c *gin.Context) {
	h.logger.WithField("admin", c.GetString("admin_username")).Info("Manual rescue sweep triggered")
	h.rescueMonitor.Sweep()
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Rescue sweep completed"})
}

func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "50"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}
	return page, pageSize
}
