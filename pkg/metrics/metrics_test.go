package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(LedgerOperations.WithLabelValues("redeem", "insufficient_balance"))
	LedgerOperations.WithLabelValues("redeem", "insufficient_balance").Inc()
	after := testutil.ToFloat64(LedgerOperations.WithLabelValues("redeem", "insufficient_balance"))
	assert.Equal(t, before+1, after)
}

func TestHandlerServesCollectors(t *testing.T) {
	StepTransitions.WithLabelValues("CONSENT", "PERSONAL_INFO").Inc()

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "kyc_wallet_onboarding_step_transitions_total"))
}

func TestObserveHTTPRequest(t *testing.T) {
	ObserveHTTPRequest(http.MethodGet, "", http.StatusNotFound, 0)
	ObserveHTTPRequest(http.MethodPost, "/api/v1/sessions", http.StatusCreated, 0)

	assert.GreaterOrEqual(t, testutil.CollectAndCount(HTTPRequestDuration), 2)
}
