package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"kyc-wallet.backend/internal/domain/entities"
	domainerrors "kyc-wallet.backend/internal/domain/errors"
	"kyc-wallet.backend/internal/interfaces/http/response"
)

type rewardService interface {
	ListRewards(ctx context.Context, sessionID *uuid.UUID) ([]entities.RewardView, error)
	Redeem(ctx context.Context, sessionID uuid.UUID, rewardID string) (*entities.Redemption, error)
	RedeemByQR(ctx context.Context, payload, rewardID string) (*entities.Redemption, error)
}

// RewardHandler handles reward catalog and redemption endpoints
type RewardHandler struct {
	rewardUsecase rewardService
}

// NewRewardHandler creates a new reward handler
func NewRewardHandler(rewardUsecase rewardService) *RewardHandler {
	return &RewardHandler{rewardUsecase: rewardUsecase}
}

// ListRewards lists the catalog, with redeemability when a session is given
// GET /api/v1/rewards
func (h *RewardHandler) ListRewards(c *gin.Context) {
	var sessionID *uuid.UUID
	if raw := c.Query("sessionId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Error(c, domainerrors.BadRequest("Invalid session ID"))
			return
		}
		sessionID = &id
	}

	rewards, err := h.rewardUsecase.ListRewards(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if rewards == nil {
		rewards = []entities.RewardView{}
	}
	response.Success(c, http.StatusOK, gin.H{"rewards": rewards})
}

// Redeem spends the session wallet's points on a reward
// POST /api/v1/sessions/:id/rewards/:rewardId/redeem
func (h *RewardHandler) Redeem(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	redemption, err := h.rewardUsecase.Redeem(c.Request.Context(), id, c.Param("rewardId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"redemption": redemption})
}

type scanRequest struct {
	Payload  string `json:"qrPayload" binding:"required"`
	RewardID string `json:"rewardId" binding:"required"`
}

// RedeemByQR redeems a reward for the wallet encoded in a scanned QR payload
// POST /api/v1/redemptions/scan
func (h *RewardHandler) RedeemByQR(c *gin.Context) {
	var input scanRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	redemption, err := h.rewardUsecase.RedeemByQR(c.Request.Context(), input.Payload, input.RewardID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"redemption": redemption})
}
