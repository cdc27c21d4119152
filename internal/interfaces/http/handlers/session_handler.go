package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"kyc-wallet.backend/internal/domain/entities"
	domainerrors "kyc-wallet.backend/internal/domain/errors"
	"kyc-wallet.backend/internal/interfaces/http/response"
	"kyc-wallet.backend/internal/usecases"
)

// MaxUploadBytes bounds a document upload body.
const MaxUploadBytes = 8 << 20

type sessionService interface {
	CreateSession(ctx context.Context) (*entities.SessionView, error)
	GetSession(ctx context.Context, id uuid.UUID) (*entities.SessionView, error)
	Dispatch(ctx context.Context, id uuid.UUID, intent entities.Intent) (*entities.SessionView, error)
	Capture(ctx context.Context, id uuid.UUID, slot entities.CaptureSlot, action usecases.CaptureAction, facing entities.Facing) (*entities.StageStatus, error)
	GetCapture(ctx context.Context, id uuid.UUID, slot entities.CaptureSlot) (*entities.StageStatus, error)
	SetTorch(ctx context.Context, id uuid.UUID, slot entities.CaptureSlot, on bool) (*entities.StageStatus, error)
	UploadDocument(ctx context.Context, id uuid.UUID, slot entities.CaptureSlot, data []byte) (*entities.StageStatus, error)
}

// SessionHandler handles onboarding session and capture endpoints
type SessionHandler struct {
	sessionUsecase sessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionUsecase sessionService) *SessionHandler {
	return &SessionHandler{sessionUsecase: sessionUsecase}
}

// CreateSession starts a new onboarding session
// POST /api/v1/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	view, err := h.sessionUsecase.CreateSession(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"session": view})
}

// GetSession returns the current session view
// GET /api/v1/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	view, err := h.sessionUsecase.GetSession(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": view})
}

type intentRequest struct {
	Type  entities.IntentType `json:"type" binding:"required"`
	Field string              `json:"field"`
	Value string              `json:"value"`
}

// DispatchIntent applies a user intent to the onboarding machine
// POST /api/v1/sessions/:id/intents
func (h *SessionHandler) DispatchIntent(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	var input intentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	intent := entities.Intent{Type: input.Type, Field: input.Field, Value: input.Value}
	view, err := h.sessionUsecase.Dispatch(c.Request.Context(), id, intent)
	if err != nil {
		if view != nil {
			response.ErrorWithData(c, err, gin.H{"session": view})
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": view})
}

// GetCapture returns a capture stage status, with the held still as a data URL
// GET /api/v1/sessions/:id/captures/:slot
func (h *SessionHandler) GetCapture(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	slot, ok := slotParam(c)
	if !ok {
		return
	}

	status, err := h.sessionUsecase.GetCapture(c.Request.Context(), id, slot)
	if err != nil {
		response.Error(c, err)
		return
	}

	body := gin.H{"capture": status}
	if status.Artifact != nil {
		body["preview"] = status.Artifact.DataURL()
	}
	response.Success(c, http.StatusOK, body)
}

type startCaptureRequest struct {
	Facing entities.Facing `json:"facing"`
}

// StartCapture acquires the camera for a slot
// POST /api/v1/sessions/:id/captures/:slot/start
func (h *SessionHandler) StartCapture(c *gin.Context) {
	var input startCaptureRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			response.Error(c, domainerrors.BadRequest(err.Error()))
			return
		}
	}
	if input.Facing != "" && !input.Facing.Valid() {
		response.Error(c, domainerrors.BadRequest("facing must be user or environment"))
		return
	}
	h.runCapture(c, usecases.CaptureStart, input.Facing)
}

// SnapshotCapture grabs a still from the live preview
// POST /api/v1/sessions/:id/captures/:slot/snapshot
func (h *SessionHandler) SnapshotCapture(c *gin.Context) {
	h.runCapture(c, usecases.CaptureSnapshot, "")
}

// RetakeCapture discards the still and resumes the preview
// POST /api/v1/sessions/:id/captures/:slot/retake
func (h *SessionHandler) RetakeCapture(c *gin.Context) {
	h.runCapture(c, usecases.CaptureRetake, "")
}

// CommitCapture hands the still to the onboarding session
// POST /api/v1/sessions/:id/captures/:slot/commit
func (h *SessionHandler) CommitCapture(c *gin.Context) {
	h.runCapture(c, usecases.CaptureCommit, "")
}

// CancelCapture releases the camera for a slot
// POST /api/v1/sessions/:id/captures/:slot/cancel
func (h *SessionHandler) CancelCapture(c *gin.Context) {
	h.runCapture(c, usecases.CaptureCancel, "")
}

func (h *SessionHandler) runCapture(c *gin.Context, action usecases.CaptureAction, facing entities.Facing) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	slot, ok := slotParam(c)
	if !ok {
		return
	}

	status, err := h.sessionUsecase.Capture(c.Request.Context(), id, slot, action, facing)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"capture": status})
}

type torchRequest struct {
	On *bool `json:"on" binding:"required"`
}

// SetTorch toggles the torch on the slot's camera
// POST /api/v1/sessions/:id/captures/:slot/torch
func (h *SessionHandler) SetTorch(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	slot, ok := slotParam(c)
	if !ok {
		return
	}

	var input torchRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	status, err := h.sessionUsecase.SetTorch(c.Request.Context(), id, slot, *input.On)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"capture": status})
}

var documentSides = map[string]entities.CaptureSlot{
	"front": entities.SlotDocumentFront,
	"back":  entities.SlotDocumentBack,
}

// UploadDocument accepts a document image as a file instead of a camera capture
// POST /api/v1/sessions/:id/documents/:side/upload
func (h *SessionHandler) UploadDocument(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	slot, ok := documentSides[c.Param("side")]
	if !ok {
		response.Error(c, domainerrors.BadRequest("side must be front or back"))
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, domainerrors.BadRequest("file is required"))
		return
	}
	if file.Size > MaxUploadBytes {
		response.Error(c, domainerrors.BadRequest("file is too large"))
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, domainerrors.BadRequest("file could not be read"))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxUploadBytes))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("file could not be read"))
		return
	}

	status, err := h.sessionUsecase.UploadDocument(c.Request.Context(), id, slot, data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"capture": status})
}
