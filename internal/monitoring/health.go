package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker serves a JSON health endpoint. The engine feeds it
// after every cycle; the venue client feeds connectivity state.
type HealthChecker struct {
	mu             sync.RWMutex
	lastCycle      time.Time
	portfolioValue float64
	venueConnected bool
	halted         bool
	errors         []string
}

type HealthStatus struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	LastCycle      time.Time `json:"last_cycle"`
	PortfolioValue float64   `json:"portfolio_value_usd"`
	VenueConnected bool      `json:"venue_connected"`
	TradingHalted  bool      `json:"trading_halted"`
	Uptime         string    `json:"uptime"`
	Errors         []string  `json:"errors,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{errors: make([]string, 0)}
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	code := http.StatusOK

	// A halted engine is still a healthy process; only stale cycles or
	// lost venue connectivity degrade the endpoint.
	if !h.venueConnected || (!h.lastCycle.IsZero() && time.Since(h.lastCycle) > 26*time.Hour) {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	if len(h.errors) > 0 {
		status = "unhealthy"
		code = http.StatusInternalServerError
	}

	health := HealthStatus{
		Status:         status,
		Timestamp:      time.Now(),
		LastCycle:      h.lastCycle,
		PortfolioValue: h.portfolioValue,
		VenueConnected: h.venueConnected,
		TradingHalted:  h.halted,
		Uptime:         time.Since(startTime).String(),
		Errors:         h.errors,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(health)
}

// CycleCompleted records a finished engine cycle.
func (h *HealthChecker) CycleCompleted(portfolioValue float64, halted bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastCycle = time.Now()
	h.portfolioValue = portfolioValue
	h.halted = halted
	h.errors = h.errors[:0]
}

// SetVenueConnected records venue reachability.
func (h *HealthChecker) SetVenueConnected(connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.venueConnected = connected
}

// ReportError adds a persistent error until the next completed cycle.
func (h *HealthChecker) ReportError(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, msg)
	if len(h.errors) > 20 {
		h.errors = h.errors[len(h.errors)-20:]
	}
}
