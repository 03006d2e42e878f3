// Package httpapi exposes the reservation and stock-admin operations over
// HTTP for the checkout and back-office surfaces.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"orderledger/internal/domain"
	"orderledger/internal/reservation"
	"orderledger/internal/scheduler"
	"orderledger/internal/stock"
)

type Handler struct {
	ledger      *stock.Ledger
	coordinator *reservation.Coordinator
	scheduler   *scheduler.Scheduler
	logger      *zap.Logger
}

func NewHandler(ledger *stock.Ledger, coordinator *reservation.Coordinator, sched *scheduler.Scheduler, logger *zap.Logger) *Handler {
	return &Handler{
		ledger:      ledger,
		coordinator: coordinator,
		scheduler:   sched,
		logger:      logger,
	}
}

func (h *Handler) Register(r *gin.Engine) {
	api := r.Group("/api")

	api.POST("/reservations", h.createReservation)
	api.POST("/reservations/:prefix/release", h.releaseReservation)
	api.PATCH("/reservations/:prefix/hold", h.updateHold)

	api.GET("/stock/:sizeId/availability", h.availability)
	api.POST("/stock/import", h.importStock)
	api.POST("/stock/export", h.exportStock)
	api.POST("/stock/adjust", h.adjustStock)
	api.GET("/stock/stats", h.stats)
	api.GET("/stock/low", h.lowStock)

	api.POST("/orders/:id/transitions/:type/cancel", h.cancelTransitions)
}

type createReservationRequest struct {
	ReferencePrefix string             `json:"referencePrefix" binding:"required"`
	Items           []reservation.Line `json:"items" binding:"required,min=1"`
}

func (h *Handler) createReservation(c *gin.Context) {
	var req createReservationRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	refs, err := h.coordinator.ReserveBatch(c.Request.Context(), req.ReferencePrefix, req.Items)
	if err != nil {
		var insufficient *domain.InsufficientStockError
		if errors.As(err, &insufficient) {
			c.JSON(http.StatusConflict, gin.H{
				"error":     "insufficient stock",
				"sizeId":    insufficient.SizeID,
				"requested": insufficient.Requested,
				"available": insufficient.Available,
			})
			return
		}
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"references": refs})
}

func (h *Handler) releaseReservation(c *gin.Context) {
	prefix := c.Param("prefix")
	if err := h.ledger.ReleaseByReferencePrefix(c.Request.Context(), prefix); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"released": prefix})
}

type updateHoldRequest struct {
	SizeID      string `json:"sizeId" binding:"required"`
	OldQuantity int    `json:"oldQuantity" binding:"min=0"`
	NewQuantity int    `json:"newQuantity" binding:"min=0"`
}

func (h *Handler) updateHold(c *gin.Context) {
	var req updateHoldRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	err := h.coordinator.UpdateHold(c.Request.Context(), c.Param("prefix"), req.SizeID, req.OldQuantity, req.NewQuantity)
	if err != nil {
		var insufficient *domain.InsufficientStockError
		if errors.As(err, &insufficient) {
			c.JSON(http.StatusConflict, gin.H{
				"error":     "insufficient stock",
				"sizeId":    insufficient.SizeID,
				"available": insufficient.Available,
			})
			return
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sizeId": req.SizeID, "quantity": req.NewQuantity})
}

func (h *Handler) availability(c *gin.Context) {
	sizeID := c.Param("sizeId")
	available, err := h.ledger.AvailableQuantity(c.Request.Context(), sizeID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sizeId": sizeID, "available": available})
}

type stockQuantityRequest struct {
	SizeID   string `json:"sizeId" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
	Note     string `json:"note"`
}

func (h *Handler) importStock(c *gin.Context) {
	var req stockQuantityRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if err := h.ledger.Import(c.Request.Context(), req.SizeID, req.Quantity, req.Note); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sizeId": req.SizeID, "imported": req.Quantity})
}

func (h *Handler) exportStock(c *gin.Context) {
	var req stockQuantityRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if err := h.ledger.Export(c.Request.Context(), req.SizeID, req.Quantity, req.Note); err != nil {
		var insufficient *domain.InsufficientStockError
		if errors.As(err, &insufficient) {
			c.JSON(http.StatusConflict, gin.H{
				"error":     "insufficient stock",
				"available": insufficient.Available,
			})
			return
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sizeId": req.SizeID, "exported": req.Quantity})
}

type adjustStockRequest struct {
	SizeID      string `json:"sizeId" binding:"required"`
	NewQuantity int    `json:"newQuantity" binding:"min=0"`
	Note        string `json:"note"`
}

func (h *Handler) adjustStock(c *gin.Context) {
	var req adjustStockRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if err := h.ledger.Adjust(c.Request.Context(), req.SizeID, req.NewQuantity, req.Note); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sizeId": req.SizeID, "quantity": req.NewQuantity})
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.ledger.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) lowStock(c *gin.Context) {
	records, err := h.ledger.LowStock(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": records})
}

func (h *Handler) cancelTransitions(c *gin.Context) {
	orderID := c.Param("id")
	tt := domain.TransitionType(c.Param("type"))
	if err := h.scheduler.CancelScheduledTransitions(c.Request.Context(), orderID, tt); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orderId": orderID, "cancelled": string(tt)})
}

// fail maps domain errors onto HTTP statuses and hides internals behind a
// generic message.
func (h *Handler) fail(c *gin.Context, err error) {
	var invariant *domain.InvariantError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &invariant):
		c.JSON(http.StatusBadRequest, gin.H{"error": invariant.Error()})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
