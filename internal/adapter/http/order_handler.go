package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	domain "github.com/ondegooltd/fortisel-api/internal/entity"
	"github.com/ondegooltd/fortisel-api/internal/usecase"
)

type OrderHandler struct {
	lifecycle *usecase.OrderLifecycle
	cache     usecase.OrderCache
}

func NewOrderHandler(lc *usecase.OrderLifecycle, cache usecase.OrderCache) *OrderHandler {
	return &OrderHandler{lifecycle: lc, cache: cache}
}

type createOrderReq struct {
	UserID         string  `json:"userId" binding:"required"`
	CylinderSize   string  `json:"cylinderSize" binding:"required"`
	Quantity       int     `json:"quantity" binding:"required,gt=0"`
	RefillAmount   float64 `json:"refillAmount" binding:"required,gt=0"`
	DeliveryFee    float64 `json:"deliveryFee" binding:"gte=0"`
	TotalAmount    float64 `json:"totalAmount" binding:"required,gt=0"`
	PickupAddress  string  `json:"pickupAddress"`
	DropOffAddress string  `json:"dropOffAddress" binding:"required"`
	ReceiverName   string  `json:"receiverName" binding:"required"`
	ReceiverPhone  string  `json:"receiverPhone" binding:"required"`
	PaymentMethod  string  `json:"paymentMethod" binding:"required"`
	Notes          string  `json:"notes"`
	ScheduledDate  string  `json:"scheduledDate" binding:"required"` // YYYY-MM-DD
	ScheduledTime  string  `json:"scheduledTime"`
}

type orderResp struct {
	OrderID       string   `json:"orderId"`
	Status        string   `json:"status"`
	TotalAmount   float64  `json:"totalAmount"`
	ScheduledDate string   `json:"scheduledDate"`
	Warnings      []string `json:"warnings,omitempty"`
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	day, err := time.ParseInLocation("2006-01-02", req.ScheduledDate, time.Local)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "detail": "scheduledDate must be YYYY-MM-DD"})
		return
	}

	idemKey := c.GetHeader("X-Idempotency-Key") // prevent duplicated requests

	ctx, cancel := context.WithTimeout(c.Request.Context(), 35*time.Second)
	defer cancel()

	out, err := h.lifecycle.Create(ctx, usecase.CreateOrderInput{
		UserID:         req.UserID,
		IdempotencyKey: idemKey,
		CylinderSize:   req.CylinderSize,
		Quantity:       req.Quantity,
		RefillAmount:   req.RefillAmount,
		DeliveryFee:    req.DeliveryFee,
		TotalAmount:    req.TotalAmount,
		PickupAddress:  req.PickupAddress,
		DropOffAddress: req.DropOffAddress,
		ReceiverName:   req.ReceiverName,
		ReceiverPhone:  req.ReceiverPhone,
		PaymentMethod:  req.PaymentMethod,
		Notes:          req.Notes,
		ScheduledDate:  day,
		ScheduledTime:  req.ScheduledTime,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, orderResp{
		OrderID:       out.Order.OrderID,
		Status:        string(out.Order.Status),
		TotalAmount:   out.Order.TotalAmount,
		ScheduledDate: out.Order.ScheduledDate.Format("2006-01-02"),
		Warnings:      out.Warnings,
	})
}

func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	id := c.Param("id")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	// Status polling stays off MySQL when the cache answers.
	if c.Query("fields") == "status" && h.cache != nil {
		if status, ok, err := h.cache.GetStatus(ctx, id); err == nil && ok {
			c.JSON(http.StatusOK, gin.H{"orderId": id, "status": status})
			return
		}
	}

	order, err := h.lifecycle.Get(ctx, id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orderId":        order.OrderID,
		"userId":         order.UserID,
		"cylinderSize":   order.CylinderSize,
		"quantity":       order.Quantity,
		"refillAmount":   order.RefillAmount,
		"deliveryFee":    order.DeliveryFee,
		"totalAmount":    order.TotalAmount,
		"dropOffAddress": order.DropOffAddress,
		"receiverName":   order.ReceiverName,
		"receiverPhone":  order.ReceiverPhone,
		"paymentMethod":  order.PaymentMethod,
		"status":         order.Status,
		"scheduledDate":  order.ScheduledDate.Format("2006-01-02"),
		"scheduledTime":  order.ScheduledTime,
		"createdAt":      order.CreatedAt,
	})
}

type cancelOrderReq struct {
	UserID string `json:"userId" binding:"required"`
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	var req cancelOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.lifecycle.Cancel(ctx, c.Param("id"), req.UserID); err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orderId": c.Param("id"), "status": string(domain.OrderCancelled)})
}

// writeDomainError maps usecase errors onto HTTP statuses.
func writeDomainError(c *gin.Context, err error) {
	var rv *usecase.RuleViolationError
	var ite *domain.InvalidTransitionError
	switch {
	case errors.As(err, &rv):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "rule_violation", "violations": rv.Violations})
	case errors.As(err, &ite):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_transition", "detail": ite.Error()})
	case errors.Is(err, usecase.ErrDuplicate), errors.Is(err, usecase.ErrStatusConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	case errors.Is(err, usecase.ErrOrderNotFound), errors.Is(err, usecase.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
	}
}
