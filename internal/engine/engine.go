package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/recall-agent/portfolio-rebalancer/internal/advisor"
	"github.com/recall-agent/portfolio-rebalancer/internal/config"
	enginerrors "github.com/recall-agent/portfolio-rebalancer/internal/errors"
	"github.com/recall-agent/portfolio-rebalancer/internal/logger"
	"github.com/recall-agent/portfolio-rebalancer/internal/marketdata"
	"github.com/recall-agent/portfolio-rebalancer/internal/monitoring"
	"github.com/recall-agent/portfolio-rebalancer/internal/notifications"
	"github.com/recall-agent/portfolio-rebalancer/internal/rebalance"
	"github.com/recall-agent/portfolio-rebalancer/internal/risk"
	"github.com/recall-agent/portfolio-rebalancer/internal/strategy"
	"github.com/recall-agent/portfolio-rebalancer/internal/venue"
	"github.com/recall-agent/portfolio-rebalancer/pkg/reporting"
	"github.com/recall-agent/portfolio-rebalancer/pkg/types"
)

// Trigger names for cycle accounting.
const (
	TriggerDaily     = "daily"
	TriggerMonitor   = "monitor"
	TriggerEmergency = "emergency"
	TriggerReview    = "review"
	TriggerManual    = "manual"
)

// Deps collects the collaborators an Engine needs. Advisor, Console,
// Health and Notifier are optional.
type Deps struct {
	Config   *config.PortfolioConfig
	Provider marketdata.Provider
	Executor venue.Executor
	Account  venue.AccountReader
	Risk     *risk.Manager
	Advisor  advisor.Advisor
	Log      *logger.Logger
	Console  reporting.ConsoleReporter
	Health   *monitoring.HealthChecker
	Notifier notifications.Notifier
}

// entryState tracks a running average entry price per asset from fills
// the engine itself made. The venue does not report entry prices, so
// this is the basis for stop-loss verification.
type entryState struct {
	qty      float64
	avgPrice float64
}

// Engine runs the snapshot -> evaluate -> combine -> plan -> validate
// -> execute pipeline. One cycle runs at a time; overlapping triggers
// serialize on the engine mutex.
type Engine struct {
	mu sync.Mutex

	cfg        *config.PortfolioConfig
	evaluators []strategy.Evaluator
	aggregator *strategy.Aggregator
	planner    *rebalance.Planner
	riskMgr    *risk.Manager
	provider   marketdata.Provider
	executor   venue.Executor
	account    venue.AccountReader
	adv        advisor.Advisor
	log        *logger.Logger
	console    reporting.ConsoleReporter
	health     *monitoring.HealthChecker
	notifier   notifications.Notifier

	entries map[string]*entryState
}

// New builds an engine from its dependencies.
func New(deps Deps) (*Engine, error) {
	if deps.Config == nil {
		return nil, enginerrors.NewConfigError("engine", "config is required")
	}
	if deps.Provider == nil || deps.Executor == nil || deps.Account == nil || deps.Risk == nil {
		return nil, enginerrors.NewConfigError("engine", "provider, executor, account and risk manager are required")
	}
	if deps.Log == nil {
		return nil, enginerrors.NewConfigError("engine", "logger is required")
	}

	evaluators, err := strategy.BuildEvaluators(
		deps.Config.Strategies.Active,
		deps.Config.Strategies.VolThresholdLow,
		deps.Config.Strategies.VolThresholdHigh,
	)
	if err != nil {
		return nil, enginerrors.NewConfigError("engine", err.Error())
	}

	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.Noop{}
	}

	e := &Engine{
		cfg:        deps.Config,
		evaluators: evaluators,
		aggregator: strategy.NewAggregator(deps.Config.Strategies.Weights),
		planner:    rebalance.NewPlanner(deps.Config.Risk.RebalanceThreshold),
		riskMgr:    deps.Risk,
		provider:   deps.Provider,
		executor:   deps.Executor,
		account:    deps.Account,
		adv:        deps.Advisor,
		log:        deps.Log,
		console:    deps.Console,
		health:     deps.Health,
		notifier:   notifier,
		entries:    make(map[string]*entryState),
	}

	deps.Risk.SetHaltCallback(func(reason string) {
		deps.Log.LogHalt(reason)
		monitoring.SetHalted(true)
		if err := e.notifier.SendAlert("error", "Trading halted: "+reason); err != nil {
			deps.Log.Warning("halt alert delivery failed: %v", err)
		}
	})

	return e, nil
}

func (e *Engine) symbols() []string {
	symbols := make([]string, 0, len(e.cfg.Targets))
	for symbol := range e.cfg.Targets {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// RunCycle executes one full rebalancing cycle. It is safe to call from
// multiple triggers; cycles never overlap.
func (e *Engine) RunCycle(ctx context.Context, trigger string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runCycleLocked(ctx, trigger)
}

func (e *Engine) runCycleLocked(ctx context.Context, trigger string) error {
	e.log.Info("Starting %s cycle", trigger)

	snapshot, err := e.provider.Snapshot(ctx, e.symbols())
	if err != nil {
		e.reportError("market data unavailable", err)
		return err
	}

	portfolio, err := e.buildPortfolio(ctx, snapshot)
	if err != nil {
		e.reportError("portfolio snapshot failed", err)
		return err
	}

	status := e.riskMgr.BeginCycle(portfolio.TotalValue)
	e.publishCycleMetrics(portfolio, status)

	// Strategy evaluation and vote aggregation.
	votes := make(map[string]map[string]types.Signal, len(e.evaluators))
	for _, ev := range e.evaluators {
		votes[ev.Name()] = ev.Evaluate(snapshot)
	}
	decisions := e.aggregator.Combine(votes)
	for symbol, d := range decisions {
		monitoring.SetDecision(symbol, d.Signal.String(), d.Confidence)
	}

	// Loss-protection exits come ahead of allocation trades so capital
	// stops bleeding before it is redeployed.
	requests := e.planner.StopLossSells(portfolio, e.cfg.Risk.StopLossPercentage)
	requests = append(requests, e.planner.Plan(portfolio, snapshot, e.cfg.Targets, decisions)...)

	if status.Mode == risk.ModeHalted {
		e.log.Risk("Cycle runs in halted mode: %d planned trades will be rejected", len(requests))
	}

	records := e.processRequests(ctx, requests, portfolio, snapshot)

	e.finishCycle(trigger, portfolio, decisions, records)
	return nil
}

// processRequests validates and executes each planned trade in order.
// Context cancellation between submissions stops the remainder of the
// plan but never interrupts an in-flight submission.
func (e *Engine) processRequests(ctx context.Context, requests []types.TradeRequest, portfolio types.PortfolioSnapshot, snapshot types.PriceSnapshot) []types.TradeRecord {
	records := make([]types.TradeRecord, 0, len(requests))

	for _, req := range requests {
		if err := ctx.Err(); err != nil {
			e.log.Warning("Cycle cancelled with %d trades unprocessed", len(requests)-len(records))
			break
		}

		price := snapshot.Assets[req.Symbol].Price

		ok, reason := e.riskMgr.ValidateTrade(req, portfolio)
		if !ok {
			rec := types.TradeRecord{
				Symbol:     req.Symbol,
				Side:       req.Side,
				USDAmount:  req.USDAmount,
				Price:      price,
				ExecutedAt: time.Now(),
				Outcome:    types.OutcomeRejected,
				Reason:     reason,
			}
			e.riskMgr.RecordTrade(rec)
			e.log.LogRejection(req, reason)
			monitoring.RecordTrade(req.Symbol, req.Side.String(), rec.Outcome.String(), req.USDAmount)
			monitoring.RecordRejection(rejectionCheck(reason))
			records = append(records, rec)
			continue
		}

		rec, err := e.executor.Execute(ctx, req, price)
		if err != nil {
			e.log.LogError(fmt.Sprintf("execute %s %s", req.Side, req.Symbol), err)
			monitoring.RecordError(string(enginerrors.ErrorCategoryExecution))
		}
		e.riskMgr.RecordTrade(rec)
		e.log.LogTradeExecution(rec)
		monitoring.RecordTrade(rec.Symbol, rec.Side.String(), rec.Outcome.String(), rec.USDAmount)

		if rec.Outcome == types.OutcomeFilled {
			e.trackFill(rec)
			msg := fmt.Sprintf("%s %s $%.2f @ $%.2f", rec.Side, rec.Symbol, rec.USDAmount, rec.Price)
			if err := e.notifier.SendAlert("success", msg); err != nil {
				e.log.Warning("fill alert delivery failed: %v", err)
			}
		}
		records = append(records, rec)
	}
	return records
}

// buildPortfolio combines venue balances with the price snapshot.
// Assets the provider could not price are valued at zero and logged;
// the cycle proceeds with what it has.
func (e *Engine) buildPortfolio(ctx context.Context, snapshot types.PriceSnapshot) (types.PortfolioSnapshot, error) {
	balances, err := e.account.Balances(ctx)
	if err != nil {
		return types.PortfolioSnapshot{}, err
	}

	positions := make(map[string]types.Position, len(balances))
	total := 0.0
	for symbol, balance := range balances {
		data, ok := snapshot.Assets[symbol]
		if !ok {
			if balance > 0 {
				e.log.Warning("No price for held asset %s, valuing at zero this cycle", symbol)
			}
			positions[symbol] = types.Position{Balance: balance}
			continue
		}

		pos := types.Position{
			Balance:  balance,
			Price:    data.Price,
			USDValue: balance * data.Price,
		}
		if entry, ok := e.entries[symbol]; ok && entry.qty > 0 {
			pos.AvgEntryPrice = entry.avgPrice
		}
		positions[symbol] = pos
		total += pos.USDValue
	}

	if total <= 0 {
		return types.PortfolioSnapshot{}, enginerrors.NewDataUnavailable("engine", "portfolio has no priced value", nil)
	}

	return types.PortfolioSnapshot{
		Positions:  positions,
		TotalValue: total,
		Timestamp:  time.Now(),
	}, nil
}

// trackFill maintains the running average entry price per asset.
func (e *Engine) trackFill(rec types.TradeRecord) {
	if rec.Price <= 0 || types.IsStable(rec.Symbol) {
		return
	}
	qty := rec.USDAmount / rec.Price

	entry, ok := e.entries[rec.Symbol]
	if !ok {
		entry = &entryState{}
		e.entries[rec.Symbol] = entry
	}

	switch rec.Side {
	case types.SideBuy:
		newQty := entry.qty + qty
		entry.avgPrice = (entry.qty*entry.avgPrice + rec.USDAmount) / newQty
		entry.qty = newQty
	case types.SideSell:
		entry.qty -= qty
		if entry.qty <= 0 {
			entry.qty = 0
			entry.avgPrice = 0
		}
	}
}

func (e *Engine) finishCycle(trigger string, portfolio types.PortfolioSnapshot, decisions map[string]types.CombinedDecision, records []types.TradeRecord) {
	status := e.riskMgr.Status()
	metrics := e.riskMgr.Metrics()

	var filled, rejected, failed int
	for _, rec := range records {
		switch rec.Outcome {
		case types.OutcomeFilled:
			filled++
		case types.OutcomeRejected:
			rejected++
		case types.OutcomeFailed:
			failed++
		}
	}

	e.log.LogCycleSummary(trigger, portfolio.TotalValue, status.DailyPnLPct, len(records), filled, rejected, failed)
	monitoring.RecordCycle(trigger)
	monitoring.SetHalted(status.Mode == risk.ModeHalted)
	monitoring.SetDailyPnL(status.DailyPnLPct)

	if e.health != nil {
		e.health.CycleCompleted(portfolio.TotalValue, status.Mode == risk.ModeHalted)
	}
	if e.console != nil {
		e.console.PrintCycle(reporting.CycleReport{
			Trigger:   trigger,
			Portfolio: portfolio,
			Targets:   e.cfg.Targets,
			Decisions: decisions,
			Records:   records,
			Risk:      status,
			Metrics:   metrics,
		})
	}
	if failed > 0 {
		if err := e.notifier.SendAlert("warning", fmt.Sprintf("%d trade(s) failed during %s cycle", failed, trigger)); err != nil {
			e.log.Warning("alert delivery failed: %v", err)
		}
	}
}

func (e *Engine) publishCycleMetrics(portfolio types.PortfolioSnapshot, status risk.Status) {
	monitoring.SetPortfolioValue(portfolio.TotalValue)
	monitoring.SetHalted(status.Mode == risk.ModeHalted)
	monitoring.SetDailyPnL(status.DailyPnLPct)
	for symbol, target := range e.cfg.Targets {
		monitoring.SetDrift(symbol, target-portfolio.Weight(symbol))
		if pos, ok := portfolio.Positions[symbol]; ok && pos.Price > 0 {
			monitoring.SetPrice(symbol, pos.Price)
		}
	}
}

// Monitor is the hourly light-weight check: it revalues the portfolio
// and triggers an emergency cycle when drift exceeds twice the
// configured threshold on any asset.
func (e *Engine) Monitor(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	prices, err := e.provider.Prices(ctx, e.symbols())
	if err != nil {
		e.reportError("monitor price fetch failed", err)
		return err
	}
	balances, err := e.account.Balances(ctx)
	if err != nil {
		e.reportError("monitor balance fetch failed", err)
		return err
	}

	total := 0.0
	values := make(map[string]float64, len(balances))
	for symbol, balance := range balances {
		if price, ok := prices[symbol]; ok {
			values[symbol] = balance * price
			total += values[symbol]
		}
	}
	if total <= 0 {
		return enginerrors.NewDataUnavailable("engine", "portfolio has no priced value", nil)
	}

	monitoring.SetPortfolioValue(total)
	e.log.Status("Monitor: portfolio value $%.2f", total)

	maxDrift := 0.0
	for symbol, target := range e.cfg.Targets {
		drift := target - values[symbol]/total
		monitoring.SetDrift(symbol, drift)
		if math.Abs(drift) > maxDrift {
			maxDrift = math.Abs(drift)
		}
	}

	if maxDrift > 2*e.cfg.Risk.RebalanceThreshold {
		e.log.Warning("Large allocation drift %.2f%% detected, triggering emergency rebalance", maxDrift*100)
		return e.runCycleLocked(ctx, TriggerEmergency)
	}

	monitoring.RecordCycle(TriggerMonitor)
	if e.health != nil {
		e.health.CycleCompleted(total, e.riskMgr.Status().Mode == risk.ModeHalted)
	}
	return nil
}

// StrategyReview is the weekly advisor pass. A suggestion only takes
// effect when some asset's target moves by more than the significance
// threshold; accepted suggestions are persisted and rebalanced toward
// immediately.
func (e *Engine) StrategyReview(ctx context.Context) error {
	if e.adv == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot, err := e.provider.Snapshot(ctx, e.symbols())
	if err != nil {
		e.reportError("review market data unavailable", err)
		return err
	}

	suggested, err := e.adv.SuggestAllocation(ctx, e.cfg.Targets, snapshot)
	if err != nil {
		e.log.Warning("Strategy review skipped: %v", err)
		return err
	}

	change := advisor.MaxChange(e.cfg.Targets, suggested)
	if change <= advisor.SignificantChange {
		e.log.Info("Strategy review: max suggested change %.2f%% below threshold, keeping targets", change*100)
		return nil
	}

	e.log.Info("Strategy review: adopting new targets (max change %.2f%%): %s", change*100, formatTargets(suggested))
	if err := e.cfg.SaveTargets(suggested); err != nil {
		e.log.LogError("persist new targets", err)
		return err
	}
	if err := e.notifier.SendAlert("info", "Target allocation updated by strategy review"); err != nil {
		e.log.Warning("alert delivery failed: %v", err)
	}

	return e.runCycleLocked(ctx, TriggerReview)
}

func (e *Engine) reportError(context string, err error) {
	e.log.LogError(context, err)
	monitoring.RecordError(errorCategory(err))
	if e.health != nil {
		e.health.ReportError(fmt.Sprintf("%s: %v", context, err))
	}
}

func errorCategory(err error) string {
	var ee *enginerrors.EngineError
	if errors.As(err, &ee) {
		return string(ee.Category)
	}
	return "unknown"
}

// rejectionCheck extracts the failed check name from a rejection
// reason, e.g. "position size: ..." -> "position size".
func rejectionCheck(reason string) string {
	if i := strings.Index(reason, ":"); i > 0 {
		return reason[:i]
	}
	return reason
}

func formatTargets(targets map[string]float64) string {
	parts := make([]string, 0, len(targets))
	for _, symbol := range sortedSymbols(targets) {
		parts = append(parts, fmt.Sprintf("%s=%.0f%%", symbol, targets[symbol]*100))
	}
	return strings.Join(parts, " ")
}

func sortedSymbols(m map[string]float64) []string {
	symbols := make([]string, 0, len(m))
	for s := range m {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}
