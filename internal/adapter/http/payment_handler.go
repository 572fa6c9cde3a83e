package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	domain "github.com/ondegooltd/fortisel-api/internal/entity"
	"github.com/ondegooltd/fortisel-api/internal/usecase"
)

type PaymentHandler struct {
	reconciler *usecase.PaymentReconciler
}

func NewPaymentHandler(rec *usecase.PaymentReconciler) *PaymentHandler {
	return &PaymentHandler{reconciler: rec}
}

type createPaymentReq struct {
	OrderID     string  `json:"orderId" binding:"required"`
	UserID      string  `json:"userId" binding:"required"`
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	Currency    string  `json:"currency"`
	Method      string  `json:"paymentMethod" binding:"required"`
	Description string  `json:"description"`
}

func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req createPaymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	if req.Currency == "" {
		req.Currency = "GHS"
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	p, err := h.reconciler.Create(ctx, usecase.CreatePaymentInput{
		OrderID:     req.OrderID,
		UserID:      req.UserID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Provider:    domain.ProviderPaystack,
		Method:      domain.PaymentMethod(req.Method),
		Description: req.Description,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"paymentId": p.PaymentID,
		"orderId":   p.OrderID,
		"amount":    p.Amount,
		"currency":  p.Currency,
		"status":    p.Status,
	})
}

type initializeReq struct {
	Email string `json:"email" binding:"required,email"`
}

func (h *PaymentHandler) InitializePayment(c *gin.Context) {
	var req initializeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	// Generous budget: the gateway call retries with backoff underneath.
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	auth, err := h.reconciler.InitializeCharge(ctx, c.Param("id"), req.Email)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authorizationUrl": auth.AuthorizationURL,
		"accessCode":       auth.AccessCode,
		"reference":        auth.Reference,
	})
}

func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	rec, err := h.reconciler.VerifyCharge(ctx, c.Param("reference"))
	if err != nil {
		writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reference":       rec.Reference,
		"status":          string(domain.MapProviderStatus(rec.Status)),
		"amount":          rec.Amount,
		"currency":        rec.Currency,
		"gatewayResponse": rec.GatewayResponse,
		"paidAt":          rec.PaidAt,
	})
}
