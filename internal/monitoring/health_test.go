package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getHealth(t *testing.T, h *HealthChecker) (int, HealthStatus) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	return rec.Code, status
}

func TestHealthChecker_HealthyAfterCycle(t *testing.T) {
	h := NewHealthChecker()
	h.SetVenueConnected(true)
	h.CycleCompleted(10000, false)

	code, status := getHealth(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", status.Status)
	assert.InDelta(t, 10000, status.PortfolioValue, 1e-9)
	assert.False(t, status.TradingHalted)
}

func TestHealthChecker_DegradedWithoutVenue(t *testing.T) {
	h := NewHealthChecker()
	h.SetVenueConnected(false)

	code, status := getHealth(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", status.Status)
}

func TestHealthChecker_HaltedEngineStaysHealthy(t *testing.T) {
	h := NewHealthChecker()
	h.SetVenueConnected(true)
	h.CycleCompleted(9000, true)

	code, status := getHealth(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, status.TradingHalted)
}

func TestHealthChecker_ErrorsMakeUnhealthyUntilNextCycle(t *testing.T) {
	h := NewHealthChecker()
	h.SetVenueConnected(true)
	h.ReportError("price fetch failed")

	code, status := getHealth(t, h)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "unhealthy", status.Status)
	assert.Contains(t, status.Errors, "price fetch failed")

	h.CycleCompleted(10000, false)
	code, status = getHealth(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, status.Errors)
}
