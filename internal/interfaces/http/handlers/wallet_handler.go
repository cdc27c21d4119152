package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	domainerrors "kyc-wallet.backend/internal/domain/errors"
	"kyc-wallet.backend/internal/interfaces/http/response"
	"kyc-wallet.backend/internal/usecases"
	"kyc-wallet.backend/pkg/utils"
)

// MaxQRSize caps the rendered QR image edge in pixels.
const MaxQRSize = 1024

type walletService interface {
	GetWallet(ctx context.Context, id uuid.UUID, page utils.PaginationParams) (*usecases.WalletView, error)
	WalletQR(ctx context.Context, id uuid.UUID, size int) ([]byte, error)
}

// WalletHandler handles wallet endpoints
type WalletHandler struct {
	walletUsecase walletService
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(walletUsecase walletService) *WalletHandler {
	return &WalletHandler{walletUsecase: walletUsecase}
}

// GetWallet returns the wallet summary and a page of transactions
// GET /api/v1/sessions/:id/wallet
func (h *WalletHandler) GetWallet(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	var query utils.PaginationParams
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, domainerrors.BadRequest("page and limit must be integers"))
		return
	}

	wallet, err := h.walletUsecase.GetWallet(c.Request.Context(), id, utils.GetPaginationParams(query.Page, query.Limit))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"wallet": wallet})
}

// GetWalletQR renders the wallet id as a PNG QR code
// GET /api/v1/sessions/:id/wallet/qr
func (h *WalletHandler) GetWalletQR(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	size := 0
	if raw := c.Query("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > MaxQRSize {
			response.Error(c, domainerrors.BadRequest("size must be between 1 and 1024"))
			return
		}
		size = parsed
	}

	png, err := h.walletUsecase.WalletQR(c.Request.Context(), id, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
