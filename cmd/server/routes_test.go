package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"kyc-wallet.backend/internal/interfaces/http/handlers"
)

func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sessionUsecase, rewardUsecase, err := buildUsecases(baseTestConfig())
	require.NoError(t, err)

	return newRouter(routeDeps{
		sessionHandler: handlers.NewSessionHandler(sessionUsecase),
		walletHandler:  handlers.NewWalletHandler(sessionUsecase),
		rewardHandler:  handlers.NewRewardHandler(rewardUsecase),
	})
}

type apiClient struct {
	t *testing.T
	r http.Handler
}

func (c apiClient) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	c.r.ServeHTTP(w, req)
	return w
}

func (c apiClient) ok(method, path string, body interface{}) map[string]interface{} {
	c.t.Helper()
	w := c.do(method, path, body)
	require.Less(c.t, w.Code, 300, "%s %s: %s", method, path, w.Body.String())

	var out map[string]interface{}
	require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (c apiClient) intent(base string, typ, field, value string) map[string]interface{} {
	c.t.Helper()
	return c.ok(http.MethodPost, base+"/intents", map[string]string{"type": typ, "field": field, "value": value})
}

func (c apiClient) capture(base, slot string, actions ...string) map[string]interface{} {
	c.t.Helper()
	var out map[string]interface{}
	for _, action := range actions {
		out = c.ok(http.MethodPost, base+"/captures/"+slot+"/"+action, nil)
	}
	return out["capture"].(map[string]interface{})
}

func TestRegisterAPIV1Routes_RegistersKeyRoutes(t *testing.T) {
	r := newTestServer(t)

	expects := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"POST", "/api/v1/sessions"},
		{"GET", "/api/v1/sessions/:id"},
		{"POST", "/api/v1/sessions/:id/intents"},
		{"POST", "/api/v1/sessions/:id/captures/:slot/start"},
		{"POST", "/api/v1/sessions/:id/captures/:slot/torch"},
		{"POST", "/api/v1/sessions/:id/documents/:side/upload"},
		{"GET", "/api/v1/sessions/:id/wallet/qr"},
		{"GET", "/api/v1/rewards"},
		{"POST", "/api/v1/sessions/:id/rewards/:rewardId/redeem"},
		{"POST", "/api/v1/redemptions/scan"},
	}

	routes := r.Routes()
	for _, exp := range expects {
		found := false
		for _, route := range routes {
			if route.Method == exp.method && route.Path == exp.path {
				found = true
				break
			}
		}
		assert.True(t, found, "route %s %s not registered", exp.method, exp.path)
	}
}

func TestApplyCORSMiddleware(t *testing.T) {
	r := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRegisterHealthRoute(t *testing.T) {
	api := apiClient{t: t, r: newTestServer(t)}

	body := api.ok(http.MethodGet, "/health", nil)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, serviceName, body["service"])

	w := api.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "kyc_wallet_")
}

func TestOnboardingOverHTTP(t *testing.T) {
	api := apiClient{t: t, r: newTestServer(t)}

	created := api.ok(http.MethodPost, "/api/v1/sessions", nil)
	session := created["session"].(map[string]interface{})
	assert.Equal(t, "CONSENT", session["currentStep"])
	base := "/api/v1/sessions/" + session["id"].(string)

	w := api.do(http.MethodPost, base+"/intents", map[string]string{"type": "ADVANCE"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	api.intent(base, "SET_FIELD", "consent", "true")
	api.intent(base, "ADVANCE", "", "")
	api.intent(base, "SET_FIELD", "fullName", "Ali Khan")
	api.intent(base, "SET_FIELD", "dateOfBirth", "1997-12-12")
	api.intent(base, "SET_FIELD", "nationalId", "61101-1234567-1")
	api.intent(base, "SET_FIELD", "phone", "+923001234567")
	api.intent(base, "ADVANCE", "", "")
	api.intent(base, "SET_FIELD", "otp", "123456")
	out := api.intent(base, "ADVANCE", "", "")
	assert.Equal(t, "DOCUMENT_CAPTURE", out["session"].(map[string]interface{})["currentStep"])

	w = api.do(http.MethodGet, base+"/wallet", nil)
	require.Equal(t, http.StatusConflict, w.Code)

	api.capture(base, "document_front", "start", "snapshot", "commit")
	back := api.capture(base, "document_back", "snapshot", "commit")
	assert.Equal(t, "COMMITTED", back["state"])
	api.intent(base, "ADVANCE", "", "")

	api.capture(base, "left_hand", "start", "snapshot", "commit")
	api.capture(base, "right_hand", "snapshot", "commit")
	api.intent(base, "SKIP_FACE", "", "")
	out = api.intent(base, "ADVANCE", "", "")
	session = out["session"].(map[string]interface{})
	assert.Equal(t, "COMPLETE", session["currentStep"])
	assert.Regexp(t, `^WLT-\d{6}$`, session["walletId"])
	assert.EqualValues(t, 100, session["balance"])

	wallet := api.ok(http.MethodGet, base+"/wallet?page=1&limit=10", nil)["wallet"].(map[string]interface{})
	assert.EqualValues(t, 100, wallet["summary"].(map[string]interface{})["pointBalance"])
	assert.Len(t, wallet["transactions"], 1)

	w = api.do(http.MethodGet, base+"/wallet/qr", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	rewards := api.ok(http.MethodGet, "/api/v1/rewards?sessionId="+session["id"].(string), nil)["rewards"].([]interface{})
	require.Len(t, rewards, 3)
	assert.Equal(t, false, rewards[0].(map[string]interface{})["canRedeem"])

	w = api.do(http.MethodPost, base+"/rewards/1/redeem", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "INSUFFICIENT_BALANCE")

	w = api.do(http.MethodPost, "/api/v1/redemptions/scan", map[string]string{
		"qrPayload": session["walletId"].(string), "rewardId": "1",
	})
	require.Equal(t, http.StatusConflict, w.Code)

	w = api.do(http.MethodPost, base+"/intents", map[string]string{"type": "BACK"})
	require.Equal(t, http.StatusConflict, w.Code)
}
