package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/recall-agent/portfolio-rebalancer/pkg/types"
)

// recoveringScale halves position-size limits for the single cycle that
// follows a cooldown recovery.
const recoveringScale = 0.5

// Manager is the stateful gatekeeper for every trade the engine wants
// to place. It owns the Normal/Halted state machine and the rolling
// trade ledger. The scheduler never runs cycles concurrently, but all
// state lives behind one mutex so a misbehaving caller cannot corrupt
// it.
type Manager struct {
	mu sync.Mutex

	limits Limits
	state  State
	ledger *Ledger

	lastTradeBySymbol map[string]time.Time
	recoverySpent     bool
	rebasePending     bool

	onHalt func(reason string)
	nowFn  func() time.Time
}

// NewManager creates a risk manager in Normal mode.
func NewManager(limits Limits) *Manager {
	return &Manager{
		limits:            limits,
		state:             State{Mode: ModeNormal},
		ledger:            NewLedger(),
		lastTradeBySymbol: make(map[string]time.Time),
		nowFn:             time.Now,
	}
}

// SetHaltCallback registers a hook invoked on every Normal -> Halted
// transition, after the transition is committed. It runs on its own
// goroutine so a slow callback (alert delivery) cannot hold the
// manager lock.
func (m *Manager) SetHaltCallback(fn func(reason string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onHalt = fn
}

// BeginCycle must be called once at the start of every cycle with the
// freshly captured portfolio value. It rolls the daily PnL baseline at
// date boundaries, expires the one-cycle Recovering modifier and runs
// the halt check before any trade is considered.
func (m *Manager) BeginCycle(totalValue float64) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowFn()

	// New calendar day resets the PnL baseline.
	if m.state.dayStart.IsZero() || !sameDay(m.state.dayStart, now) {
		m.state.dayStart = now
		m.state.dayStartValue = totalValue
	}
	// An administrative reset rebases on the next cycle, once a fresh
	// portfolio value is available.
	if m.rebasePending {
		m.state.dayStartValue = totalValue
		m.rebasePending = false
	}
	if m.state.dayStartValue > 0 {
		m.state.DailyPnLPct = (totalValue - m.state.dayStartValue) / m.state.dayStartValue
	}

	// Timed recovery: after the cooldown, provided the daily PnL has
	// not deteriorated further, re-enter Normal in the reduced-size
	// Recovering mode for one cycle. The PnL baseline is rebased so the
	// drawdown that caused the halt does not immediately re-trigger it.
	if m.state.Mode == ModeHalted &&
		m.limits.HaltCooldown > 0 &&
		now.Sub(m.state.HaltedAt) >= m.limits.HaltCooldown &&
		m.state.DailyPnLPct >= m.state.pnlAtHalt {
		m.state.Mode = ModeNormal
		m.state.Recovering = true
		m.recoverySpent = false
		m.state.HaltReason = ""
		m.state.dayStartValue = totalValue
		m.state.DailyPnLPct = 0
	}

	// Recovering lasts exactly one cycle.
	if m.state.Recovering {
		if m.recoverySpent {
			m.state.Recovering = false
		} else {
			m.recoverySpent = true
		}
	}

	m.checkHaltLocked(now)
	return m.statusLocked()
}

// ValidateTrade runs the ordered risk pipeline against one request,
// short-circuiting on the first failed check. The reason names the
// failed check; it is user-visible and must be logged by the caller.
func (m *Manager) ValidateTrade(req types.TradeRequest, portfolio types.PortfolioSnapshot) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowFn()

	// 1. Mode check. The halt triggers are re-evaluated on every call
	// so a PnL collapse halts on the next validation, not the next
	// cycle.
	m.checkHaltLocked(now)
	if m.state.Mode == ModeHalted {
		return false, fmt.Sprintf("halted: %s", m.state.HaltReason)
	}

	// 2. Position size.
	if ok, reason := m.checkPositionSize(req, portfolio); !ok {
		return false, reason
	}

	// 3. Stop loss: loss-protection sells must be backed by a real
	// unrealized loss above the threshold.
	if ok, reason := m.checkStopLoss(req, portfolio); !ok {
		return false, reason
	}

	// 4. Trade frequency.
	if ok, reason := m.checkFrequency(req, now); !ok {
		return false, reason
	}

	// 5. Daily loss soft brake: blocks new Buys, permits de-risking
	// Sells.
	if req.Side == types.SideBuy && m.state.DailyPnLPct <= -m.limits.MaxDailyLoss {
		return false, fmt.Sprintf("daily loss: pnl %.2f%% breaches -%.2f%% limit, buys blocked",
			m.state.DailyPnLPct*100, m.limits.MaxDailyLoss*100)
	}

	return true, "all risk checks passed"
}

func (m *Manager) checkPositionSize(req types.TradeRequest, portfolio types.PortfolioSnapshot) (bool, string) {
	if portfolio.TotalValue <= 0 {
		return false, "position size: portfolio has no value"
	}

	maxSize := m.limits.MaxPositionSize
	if m.state.Recovering {
		maxSize *= recoveringScale
	}

	current := portfolio.Positions[req.Symbol].USDValue
	var projected float64
	if req.Side == types.SideBuy {
		projected = (current + req.USDAmount) / portfolio.TotalValue
	} else {
		projected = (current - req.USDAmount) / portfolio.TotalValue
	}

	const eps = 1e-9
	if req.Side == types.SideBuy {
		if projected > maxSize+eps {
			return false, fmt.Sprintf("position size: projected weight %.2f%% exceeds limit %.2f%%",
				projected*100, maxSize*100)
		}
		if projected < m.limits.MinPositionSize-eps {
			return false, fmt.Sprintf("position size: projected weight %.2f%% below minimum %.2f%%",
				projected*100, m.limits.MinPositionSize*100)
		}
	}
	return true, ""
}

func (m *Manager) checkStopLoss(req types.TradeRequest, portfolio types.PortfolioSnapshot) (bool, string) {
	if req.Side != types.SideSell || !req.LossProtection {
		return true, ""
	}

	pos := portfolio.Positions[req.Symbol]
	if pos.AvgEntryPrice <= 0 || pos.Price <= 0 {
		return false, fmt.Sprintf("stop loss: no entry price for %s, cannot verify loss-protection sell", req.Symbol)
	}

	lossPct := (pos.AvgEntryPrice - pos.Price) / pos.AvgEntryPrice
	if lossPct <= m.limits.StopLossPercentage {
		return false, fmt.Sprintf("stop loss: unrealized loss %.2f%% on %s does not exceed %.2f%%, sell must come from a strategy signal",
			lossPct*100, req.Symbol, m.limits.StopLossPercentage*100)
	}
	return true, ""
}

func (m *Manager) checkFrequency(req types.TradeRequest, now time.Time) (bool, string) {
	m.evictHourWindowLocked(now)

	if len(m.state.TradesInLastHour) >= m.limits.MaxTradesPerHour {
		return false, fmt.Sprintf("frequency: %d trades in the last hour reaches limit %d",
			len(m.state.TradesInLastHour), m.limits.MaxTradesPerHour)
	}

	if last, ok := m.lastTradeBySymbol[req.Symbol]; ok {
		if since := now.Sub(last); since < m.limits.MinTradeInterval {
			return false, fmt.Sprintf("frequency: last %s trade %.0fs ago, minimum interval %.0fs",
				req.Symbol, since.Seconds(), m.limits.MinTradeInterval.Seconds())
		}
	}
	return true, ""
}

// RecordTrade appends an outcome to the rolling ledger. Executed trades
// (filled or failed) also feed the hourly frequency window and the
// per-symbol trade spacing.
func (m *Manager) RecordTrade(rec types.TradeRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ledger.Append(rec)

	if rec.Outcome.Executed() {
		m.state.TradesInLastHour = append(m.state.TradesInLastHour, rec.ExecutedAt)
		m.lastTradeBySymbol[rec.Symbol] = rec.ExecutedAt
	}

	switch rec.Outcome {
	case types.OutcomeFailed:
		m.state.ConsecutiveFailures++
	case types.OutcomeFilled:
		m.state.ConsecutiveFailures = 0
	}
}

// Reset is the administrative recovery path: it returns a halted
// manager to Normal immediately, with no Recovering modifier. Like the
// timed recovery it rebases the PnL baseline (deferred to the next
// BeginCycle, when a portfolio value is available) and moves the
// success-rate watermark, so the drawdown or failures that caused the
// halt cannot re-trigger it on the next validation.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.Mode = ModeNormal
	m.state.Recovering = false
	m.recoverySpent = false
	m.state.HaltReason = ""
	m.state.HaltedAt = m.nowFn()
	m.state.DailyPnLPct = 0
	m.rebasePending = true
}

// Status returns a read-only view of the risk state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

// Metrics returns the rolling 24h trade metrics.
func (m *Manager) Metrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := m.ledger.Metrics(m.nowFn())
	metrics.DailyPnLPct = m.state.DailyPnLPct
	return metrics
}

// Records returns the current 24h ledger contents for reporting.
func (m *Manager) Records() []types.TradeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Records(m.nowFn())
}

// checkHaltLocked evaluates the Normal -> Halted triggers. Called with
// the lock held; recovery runs in BeginCycle only.
func (m *Manager) checkHaltLocked(now time.Time) {
	if m.state.Mode != ModeNormal {
		return
	}

	if m.state.DailyPnLPct <= -m.limits.HaltDailyLoss {
		m.haltLocked(now, fmt.Sprintf("daily pnl %.2f%% breached -%.2f%% emergency threshold",
			m.state.DailyPnLPct*100, m.limits.HaltDailyLoss*100))
		return
	}

	// Success rate over the rolling 24h window, counting only trades
	// executed after the last halt so a recovered engine is not judged
	// by the history that halted it.
	executed, filled := 0, 0
	for _, rec := range m.ledger.Records(now) {
		if !rec.Outcome.Executed() || rec.ExecutedAt.Before(m.state.HaltedAt) {
			continue
		}
		executed++
		if rec.Outcome == types.OutcomeFilled {
			filled++
		}
	}
	if executed >= m.limits.MinSampleSize {
		if rate := float64(filled) / float64(executed); rate < m.limits.MinSuccessRate {
			m.haltLocked(now, fmt.Sprintf("24h success rate %.0f%% below %.0f%% over %d trades",
				rate*100, m.limits.MinSuccessRate*100, executed))
		}
	}
}

func (m *Manager) haltLocked(now time.Time, reason string) {
	m.state.Mode = ModeHalted
	m.state.HaltedAt = now
	m.state.HaltReason = reason
	m.state.pnlAtHalt = m.state.DailyPnLPct
	m.state.Recovering = false
	m.recoverySpent = false

	if m.onHalt != nil {
		go m.onHalt(reason)
	}
}

func (m *Manager) evictHourWindowLocked(now time.Time) {
	cutoff := now.Add(-time.Hour)
	idx := 0
	for idx < len(m.state.TradesInLastHour) && m.state.TradesInLastHour[idx].Before(cutoff) {
		idx++
	}
	if idx > 0 {
		m.state.TradesInLastHour = append(m.state.TradesInLastHour[:0], m.state.TradesInLastHour[idx:]...)
	}
}

func (m *Manager) statusLocked() Status {
	return Status{
		Mode:             m.state.Mode,
		Recovering:       m.state.Recovering,
		DailyPnLPct:      m.state.DailyPnLPct,
		TradesInLastHour: len(m.state.TradesInLastHour),
		HaltedAt:         m.state.HaltedAt,
		HaltReason:       m.state.HaltReason,
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
