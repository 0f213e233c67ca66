package verification

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WalletHeader carries the caller's wallet address. Signature verification of
// the wallet happens at the gateway in front of this service.
const WalletHeader = "X-Wallet-Address"

// Handler handles HTTP requests for verification operations
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new verification handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers the public verification routes. Admin routes are
// registered separately so the caller can wrap them in role middleware.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	v := rg.Group("/verifications")
	{
		v.POST("", h.submitRequest)
		v.GET("/pending", h.pendingRequests)
		v.GET("/stats", h.stats)
		v.GET("", h.listByCitizen)
		v.GET("/:id", h.getRequest)
		v.GET("/:id/responses", h.listResponses)
		v.POST("/:id/responses", h.completeVerification)
		v.POST("/:id/responses/:index/dispute", h.disputeResponse)
	}
}

// RegisterAdminRoutes registers routes requiring the admin role.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	v := rg.Group("/verifications")
	{
		v.POST("/:id/resolve", h.forceResolve)
		v.GET("/policy", h.getPolicy)
		v.PUT("/policy", h.setPolicy)
		v.PUT("/weights", h.setWeightTiers)
	}
}

type submitRequestPayload struct {
	Type                  VerificationType `json:"verification_type" binding:"required"`
	Title                 string           `json:"title"`
	DescriptionRef        string           `json:"description_ref"`
	EvidenceRef           string           `json:"evidence_ref"`
	RelatedEntityID       int64            `json:"related_entity_id"`
	RequiredVerifications int              `json:"required_verifications"`
	Tags                  []string         `json:"tags"`
}

func (h *Handler) submitRequest(c *gin.Context) {
	var payload submitRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.service.SubmitRequest(c.Request.Context(), SubmitRequestInput{
		Wallet:                c.GetHeader(WalletHeader),
		Type:                  payload.Type,
		Title:                 payload.Title,
		DescriptionRef:        payload.DescriptionRef,
		EvidenceRef:           payload.EvidenceRef,
		RelatedEntityID:       payload.RelatedEntityID,
		RequiredVerifications: payload.RequiredVerifications,
		Tags:                  payload.Tags,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"request_id": id})
}

type completeVerificationPayload struct {
	IsApproved  *bool  `json:"is_approved" binding:"required"`
	FindingsRef string `json:"findings_ref"`
	EvidenceRef string `json:"evidence_ref"`
}

func (h *Handler) completeVerification(c *gin.Context) {
	requestID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}

	var payload completeVerificationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err = h.service.CompleteVerification(c.Request.Context(), CompleteVerificationInput{
		Wallet:      c.GetHeader(WalletHeader),
		RequestID:   requestID,
		IsApproved:  *payload.IsApproved,
		FindingsRef: payload.FindingsRef,
		EvidenceRef: payload.EvidenceRef,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

type disputePayload struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *Handler) disputeResponse(c *gin.Context) {
	requestID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}
	responseIndex, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid response index"})
		return
	}

	var payload disputePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err = h.service.DisputeResponse(c.Request.Context(), c.GetHeader(WalletHeader), requestID, responseIndex, payload.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "disputed"})
}

type resolvePayload struct {
	FinalStatus RequestStatus `json:"final_status" binding:"required"`
	ResolvedBy  string        `json:"resolved_by"`
}

func (h *Handler) forceResolve(c *gin.Context) {
	requestID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}

	var payload resolvePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resolvedBy := payload.ResolvedBy
	if resolvedBy == "" {
		resolvedBy = "governance"
	}

	err = h.service.ForceResolveDispute(c.Request.Context(), resolvedBy, requestID, payload.FinalStatus)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": string(payload.FinalStatus)})
}

func (h *Handler) getRequest(c *gin.Context) {
	requestID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}

	req, err := h.service.GetRequest(c.Request.Context(), requestID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handler) listResponses(c *gin.Context) {
	requestID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}

	responses, err := h.service.Responses(c.Request.Context(), requestID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, responses)
}

func (h *Handler) listByCitizen(c *gin.Context) {
	citizenID, err := strconv.ParseInt(c.Query("citizen"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "citizen query parameter is required"})
		return
	}

	requests, err := h.service.RequestsByCitizen(c.Request.Context(), citizenID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (h *Handler) pendingRequests(c *gin.Context) {
	ids, err := h.service.PendingRequestIDs(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request_ids": ids})
}

func (h *Handler) stats(c *gin.Context) {
	counts, err := h.service.Stats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (h *Handler) getPolicy(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Policy())
}

type policyPayload struct {
	DeadlineWindowHours    int   `json:"deadline_window_hours" binding:"required"`
	MinReputationToVerify  int64 `json:"minimum_reputation_to_verify"`
	BaseVerificationReward int64 `json:"base_verification_reward"`
	ApprovalThresholdPct   int   `json:"approval_threshold_pct" binding:"required"`
}

func (h *Handler) setPolicy(c *gin.Context) {
	var payload policyPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.service.SetPolicy(Policy{
		DeadlineWindow:         time.Duration(payload.DeadlineWindowHours) * time.Hour,
		MinReputationToVerify:  payload.MinReputationToVerify,
		BaseVerificationReward: payload.BaseVerificationReward,
		ApprovalThresholdPct:   payload.ApprovalThresholdPct,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.service.Policy())
}

func (h *Handler) setWeightTiers(c *gin.Context) {
	var tiers []WeightTier
	if err := c.ShouldBindJSON(&tiers); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.SetWeightTiers(tiers); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tiers)
}

// respondError maps core failures onto HTTP statuses. Every mapped failure is
// terminal for the attempted operation; nothing was committed.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrRequestNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidFinalStatus):
		status = http.StatusBadRequest
	case errors.Is(err, ErrNotRegistered), errors.Is(err, ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, ErrInsufficientReputation),
		errors.Is(err, ErrSelfVerification),
		errors.Is(err, ErrSelfDispute):
		status = http.StatusForbidden
	case errors.Is(err, ErrRequestClosed),
		errors.Is(err, ErrDeadlinePassed),
		errors.Is(err, ErrResponseAlreadySubmitted),
		errors.Is(err, ErrAlreadyDisputed),
		errors.Is(err, ErrNotDisputed):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Verification operation failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
