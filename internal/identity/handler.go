package identity

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for the citizen registry
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new identity handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers citizen registry routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	c := rg.Group("/citizens")
	{
		c.POST("", h.register)
		c.GET("/:wallet", h.getByWallet)
	}
}

// RegisterAdminRoutes registers routes requiring the admin role.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	c := rg.Group("/citizens")
	{
		c.POST("/:id/reputation", h.adjustReputation)
		c.DELETE("/:id", h.deactivate)
	}
}

func (h *Handler) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	citizen, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, ErrWalletTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "wallet is already registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, citizen)
}

func (h *Handler) getByWallet(c *gin.Context) {
	citizen, err := h.service.GetByWallet(c.Request.Context(), c.Param("wallet"))
	if err != nil {
		if errors.Is(err, ErrCitizenNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "citizen not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, citizen)
}

type adjustPayload struct {
	Delta int64 `json:"delta" binding:"required"`
}

func (h *Handler) adjustReputation(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid citizen id"})
		return
	}

	var payload adjustPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	score, err := h.service.AdjustReputation(c.Request.Context(), id, payload.Delta)
	if err != nil {
		if errors.Is(err, ErrCitizenNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "citizen not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"citizen_id": id, "reputation_score": score})
}

func (h *Handler) deactivate(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid citizen id"})
		return
	}

	if err := h.service.Deactivate(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrCitizenNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "citizen not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}
