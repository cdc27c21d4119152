package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"kyc-wallet.backend/internal/domain/entities"
	"kyc-wallet.backend/internal/usecases"
	"kyc-wallet.backend/pkg/utils"
)

type sessionServiceStub struct {
	createFn   func(ctx context.Context) (*entities.SessionView, error)
	getFn      func(ctx context.Context, id uuid.UUID) (*entities.SessionView, error)
	dispatchFn func(ctx context.Context, id uuid.UUID, intent entities.Intent) (*entities.SessionView, error)
	captureFn  func(ctx context.Context, id uuid.UUID, slot entities.CaptureSlot, action usecases.CaptureAction, facing entities.Facing) (*entities.StageStatus, error)
	getCapFn   func(ctx context.Context, id uuid.UUID, slot entities.CaptureSlot) (*entities.StageStatus, error)
	torchFn    func(ctx context.Context, id uuid.UUID, slot entities.CaptureSlot, on bool) (*entities.StageStatus, error)
	uploadFn   func(ctx context.Context, id uuid.UUID, slot entities.CaptureSlot, data []byte) (*entities.StageStatus, error)
}

func (s sessionServiceStub) CreateSession(ctx context.Context) (*entities.SessionView, error) {
	return s.createFn(ctx)
}

func (s sessionServiceStub) GetSession(ctx context.Context, id uuid.UUID) (*entities.SessionView, error) {
	return s.getFn(ctx, id)
}

func (s sessionServiceStub) Dispatch(ctx context.Context, id uuid.UUID, intent entities.Intent) (*entities.SessionView, error) {
	return s.dispatchFn(ctx, id, intent)
}

func (s sessionServiceStub) Capture(ctx context.Context, id uuid.UUID, slot entities.CaptureSlot, action usecases.CaptureAction, facing entities.Facing) (*entities.StageStatus, error) {
	return s.captureFn(ctx, id, slot, action, facing)
}

func (s sessionServiceStub) GetCapture(ctx context.Context, id uuid.UUID, slot entities.CaptureSlot) (*entities.StageStatus, error) {
	return s.getCapFn(ctx, id, slot)
}

func (s sessionServiceStub) SetTorch(ctx context.Context, id uuid.UUID, slot entities.CaptureSlot, on bool) (*entities.StageStatus, error) {
	return s.torchFn(ctx, id, slot, on)
}

func (s sessionServiceStub) UploadDocument(ctx context.Context, id uuid.UUID, slot entities.CaptureSlot, data []byte) (*entities.StageStatus, error) {
	return s.uploadFn(ctx, id, slot, data)
}

type walletServiceStub struct {
	getFn func(ctx context.Context, id uuid.UUID, page utils.PaginationParams) (*usecases.WalletView, error)
	qrFn  func(ctx context.Context, id uuid.UUID, size int) ([]byte, error)
}

func (s walletServiceStub) GetWallet(ctx context.Context, id uuid.UUID, page utils.PaginationParams) (*usecases.WalletView, error) {
	return s.getFn(ctx, id, page)
}

func (s walletServiceStub) WalletQR(ctx context.Context, id uuid.UUID, size int) ([]byte, error) {
	return s.qrFn(ctx, id, size)
}

type rewardServiceStub struct {
	listFn   func(ctx context.Context, sessionID *uuid.UUID) ([]entities.RewardView, error)
	redeemFn func(ctx context.Context, sessionID uuid.UUID, rewardID string) (*entities.Redemption, error)
	scanFn   func(ctx context.Context, payload, rewardID string) (*entities.Redemption, error)
}

func (s rewardServiceStub) ListRewards(ctx context.Context, sessionID *uuid.UUID) ([]entities.RewardView, error) {
	return s.listFn(ctx, sessionID)
}

func (s rewardServiceStub) Redeem(ctx context.Context, sessionID uuid.UUID, rewardID string) (*entities.Redemption, error) {
	return s.redeemFn(ctx, sessionID, rewardID)
}

func (s rewardServiceStub) RedeemByQR(ctx context.Context, payload, rewardID string) (*entities.Redemption, error) {
	return s.scanFn(ctx, payload, rewardID)
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}
