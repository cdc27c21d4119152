package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"kyc-wallet.backend/internal/domain/entities"
	domainerrors "kyc-wallet.backend/internal/domain/errors"
	"kyc-wallet.backend/internal/interfaces/http/response"
	"kyc-wallet.backend/pkg/logger"
)

// sessionIDParam parses the :id path parameter and tags the request
// context with it for logging.
func sessionIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid session ID"))
		return uuid.Nil, false
	}
	c.Request = c.Request.WithContext(logger.WithSession(c.Request.Context(), id.String()))
	return id, true
}

func slotParam(c *gin.Context) (entities.CaptureSlot, bool) {
	slot := entities.CaptureSlot(c.Param("slot"))
	if _, ok := slot.Step(); !ok {
		response.Error(c, domainerrors.BadRequest("Unknown capture slot"))
		return "", false
	}
	return slot, true
}
