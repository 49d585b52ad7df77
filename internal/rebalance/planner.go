package rebalance

import (
	"math"
	"sort"
	"time"

	"github.com/recall-agent/portfolio-rebalancer/pkg/types"
)

// Planner turns allocation drift into an ordered sequence of trade
// requests. It is stateless; all inputs arrive per call.
type Planner struct {
	threshold float64
}

// NewPlanner creates a planner with the given drift threshold. Assets
// whose |drift| stays below it are left alone.
func NewPlanner(threshold float64) *Planner {
	return &Planner{threshold: threshold}
}

type candidate struct {
	symbol   string
	absDrift float64
	usd      float64
}

// Plan computes target-minus-current drift for every target asset and
// emits the trades that close it. Sells come before Buys so quote
// currency is freed before it is spent; within each side, largest
// corrections first, lexical symbol order on equal drift.
//
// Drift alone never overrides a contrary strategy decision: an
// underweight asset is not bought while the combined signal says Sell,
// and an overweight asset is not sold while it says Buy.
func (p *Planner) Plan(portfolio types.PortfolioSnapshot, prices types.PriceSnapshot, targets map[string]float64, decisions map[string]types.CombinedDecision) []types.TradeRequest {
	if portfolio.TotalValue <= 0 {
		return nil
	}

	var sells, buys []candidate
	for symbol, target := range targets {
		drift := target - portfolio.Weight(symbol)
		if math.Abs(drift) < p.threshold {
			continue
		}

		decision := decisions[symbol]
		if drift > 0 && decision.Signal == types.SignalSell {
			continue
		}
		if drift < 0 && decision.Signal == types.SignalBuy {
			continue
		}

		data, ok := prices.Assets[symbol]
		if !ok || data.Price <= 0 {
			continue
		}

		usd := floorToTradable(math.Abs(drift)*portfolio.TotalValue, data.Price, symbol)
		if usd <= 0 {
			continue
		}

		c := candidate{symbol: symbol, absDrift: math.Abs(drift), usd: usd}
		if drift < 0 {
			sells = append(sells, c)
		} else {
			buys = append(buys, c)
		}
	}

	orderCandidates(sells)
	orderCandidates(buys)

	now := time.Now()
	requests := make([]types.TradeRequest, 0, len(sells)+len(buys))
	for _, c := range sells {
		requests = append(requests, types.TradeRequest{
			Symbol: c.symbol, Side: types.SideSell, USDAmount: c.usd, RequestedAt: now,
		})
	}
	for _, c := range buys {
		requests = append(requests, types.TradeRequest{
			Symbol: c.symbol, Side: types.SideBuy, USDAmount: c.usd, RequestedAt: now,
		})
	}
	return requests
}

// StopLossSells scans for positions whose unrealized loss against the
// average entry price exceeds the stop threshold and emits full-exit
// sells flagged for loss protection. Positions without an entry price
// or a live price are skipped: the risk manager cannot verify them.
func (p *Planner) StopLossSells(portfolio types.PortfolioSnapshot, stopLoss float64) []types.TradeRequest {
	now := time.Now()
	var requests []types.TradeRequest
	for symbol, pos := range portfolio.Positions {
		if types.IsStable(symbol) || pos.USDValue <= 0 {
			continue
		}
		if pos.AvgEntryPrice <= 0 || pos.Price <= 0 {
			continue
		}
		lossPct := (pos.AvgEntryPrice - pos.Price) / pos.AvgEntryPrice
		if lossPct <= stopLoss {
			continue
		}
		requests = append(requests, types.TradeRequest{
			Symbol:         symbol,
			Side:           types.SideSell,
			USDAmount:      pos.USDValue,
			LossProtection: true,
			RequestedAt:    now,
		})
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].Symbol < requests[j].Symbol })
	return requests
}

func orderCandidates(cs []candidate) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].absDrift != cs[j].absDrift {
			return cs[i].absDrift > cs[j].absDrift
		}
		return cs[i].symbol < cs[j].symbol
	})
}

// floorToTradable rounds a notional down to the asset's tradable
// quantity precision so the venue never sees an amount it cannot fill.
func floorToTradable(usd, price float64, symbol string) float64 {
	scale := math.Pow10(types.TokenDecimals(symbol))
	qty := math.Floor(usd / price * scale) / scale
	return qty * price
}
