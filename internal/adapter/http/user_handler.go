package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ondegooltd/fortisel-api/internal/usecase"
)

type UserHandler struct {
	register *usecase.RegisterUser
}

func NewUserHandler(reg *usecase.RegisterUser) *UserHandler {
	return &UserHandler{register: reg}
}

type registerReq struct {
	Email    string `json:"email" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

func (h *UserHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	u, err := h.register.Register(ctx, usecase.RegisterUserInput{
		Email:    req.Email,
		Phone:    req.Phone,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"userId": u.UserID,
		"email":  u.Email,
		"phone":  u.Phone,
		"name":   u.Name,
	})
}
