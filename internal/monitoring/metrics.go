package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Trade metrics
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rebalancer_trades_total",
			Help: "Total trade submissions by final outcome",
		},
		[]string{"symbol", "side", "outcome"},
	)

	tradeAmount = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rebalancer_trade_usd_amount",
			Help:    "Distribution of trade notionals in USD",
			Buckets: prometheus.ExponentialBuckets(10, 2.5, 10),
		},
		[]string{"symbol"},
	)

	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rebalancer_rejections_total",
			Help: "Trade requests rejected by the risk pipeline",
		},
		[]string{"check"},
	)

	// Risk metrics
	riskMode = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rebalancer_risk_halted",
			Help: "1 while trading is halted, 0 in normal mode",
		},
	)

	dailyPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rebalancer_daily_pnl_pct",
			Help: "Daily portfolio PnL as a fraction",
		},
	)

	// Portfolio metrics
	portfolioValue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rebalancer_portfolio_value_usd",
			Help: "Total portfolio value in USD",
		},
	)

	allocationDrift = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rebalancer_allocation_drift",
			Help: "Target minus current weight per asset",
		},
		[]string{"symbol"},
	)

	assetPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rebalancer_asset_price_usd",
			Help: "Last observed asset price in USD",
		},
		[]string{"symbol"},
	)

	// Signal metrics
	decisionConfidence = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rebalancer_decision_confidence",
			Help: "Weighted vote mass behind the winning signal",
		},
		[]string{"symbol", "signal"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rebalancer_errors_total",
			Help: "Errors by category",
		},
		[]string{"category"},
	)

	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rebalancer_cycles_total",
			Help: "Completed engine cycles by trigger",
		},
		[]string{"trigger"},
	)
)

func init() {
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(tradeAmount)
	prometheus.MustRegister(rejectionsTotal)
	prometheus.MustRegister(riskMode)
	prometheus.MustRegister(dailyPnL)
	prometheus.MustRegister(portfolioValue)
	prometheus.MustRegister(allocationDrift)
	prometheus.MustRegister(assetPrice)
	prometheus.MustRegister(decisionConfidence)
	prometheus.MustRegister(errorsTotal)
	prometheus.MustRegister(cyclesTotal)
}

// MetricsHandler serves the Prometheus scrape endpoint.
type MetricsHandler struct{}

func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordTrade records a trade submission outcome.
func RecordTrade(symbol, side, outcome string, usdAmount float64) {
	tradesTotal.WithLabelValues(symbol, side, outcome).Inc()
	tradeAmount.WithLabelValues(symbol).Observe(usdAmount)
}

// RecordRejection counts a risk-pipeline rejection by failed check.
func RecordRejection(check string) {
	rejectionsTotal.WithLabelValues(check).Inc()
}

// SetHalted reflects the risk manager mode.
func SetHalted(halted bool) {
	if halted {
		riskMode.Set(1)
	} else {
		riskMode.Set(0)
	}
}

// SetDailyPnL updates the daily PnL gauge.
func SetDailyPnL(pct float64) {
	dailyPnL.Set(pct)
}

// SetPortfolioValue updates the total value gauge.
func SetPortfolioValue(usd float64) {
	portfolioValue.Set(usd)
}

// SetDrift updates the per-asset allocation drift gauge.
func SetDrift(symbol string, drift float64) {
	allocationDrift.WithLabelValues(symbol).Set(drift)
}

// SetPrice updates the last observed price for an asset.
func SetPrice(symbol string, price float64) {
	assetPrice.WithLabelValues(symbol).Set(price)
}

// SetDecision records the combined decision confidence for an asset.
func SetDecision(symbol, signal string, confidence float64) {
	decisionConfidence.WithLabelValues(symbol, signal).Set(confidence)
}

// RecordError counts an error by category.
func RecordError(category string) {
	errorsTotal.WithLabelValues(category).Inc()
}

// RecordCycle counts a completed cycle by trigger name.
func RecordCycle(trigger string) {
	cyclesTotal.WithLabelValues(trigger).Inc()
}
