package chain

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	bridge Bridge
	logger *zap.Logger
}

// NewHandler accepts a nil bridge; every endpoint then answers 503.
func NewHandler(bridge Bridge, logger *zap.Logger) *Handler {
	return &Handler{bridge: bridge, logger: logger}
}

// RegisterRoutes mounts the contract endpoints. Handlers passed in mint guard minting.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, mint ...gin.HandlerFunc) {
	rg.GET("/credits", h.ListCredits)
	rg.POST("/mint", append(mint, h.MintCredit)...)
}

type mintRequest struct {
	Amount *int64 `json:"amount" binding:"required"`
	Price  *int64 `json:"price" binding:"required"`
}

// ListCredits handles GET /blockchain/credits
func (h *Handler) ListCredits(c *gin.Context) {
	if h.bridge == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": ErrNotConfigured.Error()})
		return
	}

	credits, err := h.bridge.ListCredits(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to read contract credits", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, credits)
}

// MintCredit handles POST /blockchain/mint
func (h *Handler) MintCredit(c *gin.Context) {
	if h.bridge == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": ErrNotConfigured.Error()})
		return
	}

	var req mintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount and price are required integers"})
		return
	}
	if *req.Amount <= 0 || *req.Price < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive and price non-negative"})
		return
	}

	hash, err := h.bridge.MintCredit(c.Request.Context(), *req.Amount, *req.Price)
	if err != nil {
		if errors.Is(err, ErrMintingDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Mint failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"txHash": hash})
}
