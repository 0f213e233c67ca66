package evidence

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"citiproof/civic-portal/civic-portal-backend/pkg/storage"
)

// Handler pins submitted evidence documents and hands back their content
// addresses. The verification core only ever sees the resulting CIDs.
type Handler struct {
	ipfs   storage.IPFSClient
	logger *zap.Logger
}

// NewHandler creates a new evidence handler
func NewHandler(ipfs storage.IPFSClient, logger *zap.Logger) *Handler {
	return &Handler{ipfs: ipfs, logger: logger}
}

// RegisterRoutes registers evidence routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/evidence", h.pin)
}

func (h *Handler) pin(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	cid, err := h.ipfs.PinFile(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("Failed to pin evidence", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to pin evidence"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"cid": cid})
}
