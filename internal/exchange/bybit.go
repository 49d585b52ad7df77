// Package exchange adapts a centralized exchange to the venue
// interfaces, as an alternative execution backend to the Recall
// competition API.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	enginerrors "github.com/recall-agent/portfolio-rebalancer/internal/errors"
	"github.com/recall-agent/portfolio-rebalancer/pkg/types"
)

const demoBaseURL = "https://api-demo.bybit.com"

// pairCoin maps portfolio symbols to Bybit spot coins. Wrapped tokens
// trade as their native asset on the exchange.
var pairCoin = map[string]string{
	"WETH": "ETH",
	"WBTC": "BTC",
}

// BybitVenue executes portfolio trades as Bybit spot market orders
// against USDT. It implements the same executor and account reader
// contracts as the Recall client.
type BybitVenue struct {
	client *bybit_api.Client
	demo   bool
}

// NewBybitVenue creates a Bybit-backed venue. Demo mode targets the
// paper trading environment.
func NewBybitVenue(apiKey, apiSecret string, demo bool) *BybitVenue {
	baseURL := bybit_api.MAINNET
	if demo {
		baseURL = demoBaseURL
	}
	return &BybitVenue{
		client: bybit_api.NewBybitHttpClient(apiKey, apiSecret, bybit_api.WithBaseURL(baseURL)),
		demo:   demo,
	}
}

// Demo reports whether the venue targets the paper trading environment.
func (v *BybitVenue) Demo() bool {
	return v.demo
}

// spotPair returns the Bybit spot trading pair for a portfolio symbol.
func spotPair(symbol string) string {
	if coin, ok := pairCoin[symbol]; ok {
		return coin + "USDT"
	}
	return symbol + "USDT"
}

// portfolioSymbol reverses the coin mapping for balance reporting.
func portfolioSymbol(coin string) string {
	for symbol, mapped := range pairCoin {
		if mapped == coin {
			return symbol
		}
	}
	return coin
}

// Execute submits a spot market order. Buys are sized in quote
// currency, sells in base units at the supplied reference price.
func (v *BybitVenue) Execute(ctx context.Context, req types.TradeRequest, price float64) (types.TradeRecord, error) {
	rec := types.TradeRecord{
		Symbol:     req.Symbol,
		Side:       req.Side,
		USDAmount:  req.USDAmount,
		Price:      price,
		ExecutedAt: time.Now(),
		Outcome:    types.OutcomeFailed,
	}

	params := map[string]interface{}{
		"category":  "spot",
		"symbol":    spotPair(req.Symbol),
		"orderType": "Market",
	}
	switch req.Side {
	case types.SideBuy:
		params["side"] = "Buy"
		params["marketUnit"] = "quoteCoin"
		params["qty"] = strconv.FormatFloat(req.USDAmount, 'f', 2, 64)
	case types.SideSell:
		if price <= 0 {
			return rec, enginerrors.NewExecutionFailed("bybit", "no reference price for sell sizing", nil)
		}
		params["side"] = "Sell"
		params["marketUnit"] = "baseCoin"
		params["qty"] = strconv.FormatFloat(req.USDAmount/price, 'f', 6, 64)
	default:
		return rec, enginerrors.NewExecutionFailed("bybit", "unknown trade side", nil)
	}

	resp, err := v.client.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
	if err != nil {
		rec.Reason = err.Error()
		return rec, enginerrors.NewNetworkError("bybit", "order submission failed", err)
	}
	// Non-zero ret codes are the venue declining the order, not a
	// transport failure.
	if resp.RetCode != 0 {
		rec.Outcome = types.OutcomeRejected
		rec.Reason = fmt.Sprintf("%s (code %d)", resp.RetMsg, resp.RetCode)
		return rec, nil
	}

	rec.Outcome = types.OutcomeFilled
	return rec, nil
}

// walletResult mirrors the relevant part of the unified account wallet
// response.
type walletResult struct {
	List []struct {
		Coin []struct {
			Coin          string `json:"coin"`
			WalletBalance string `json:"walletBalance"`
		} `json:"coin"`
	} `json:"list"`
}

// Balances returns spot balances for the unified account, keyed by
// portfolio symbol. USDT is reported as USDC so the stable leg of the
// portfolio maps onto the exchange's quote currency.
func (v *BybitVenue) Balances(ctx context.Context) (map[string]float64, error) {
	params := map[string]interface{}{"accountType": "UNIFIED"}
	resp, err := v.client.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
	if err != nil {
		return nil, enginerrors.NewNetworkError("bybit", "wallet query failed", err)
	}
	if resp.RetCode != 0 {
		return nil, enginerrors.NewDataUnavailable("bybit",
			fmt.Sprintf("wallet query rejected: %s (code %d)", resp.RetMsg, resp.RetCode), nil)
	}

	raw, err := json.Marshal(resp.Result)
	if err != nil {
		return nil, enginerrors.NewDataUnavailable("bybit", "unexpected wallet payload", err)
	}
	var wallet walletResult
	if err := json.Unmarshal(raw, &wallet); err != nil {
		return nil, enginerrors.NewDataUnavailable("bybit", "unexpected wallet payload", err)
	}

	balances := make(map[string]float64)
	for _, account := range wallet.List {
		for _, coin := range account.Coin {
			qty, err := strconv.ParseFloat(coin.WalletBalance, 64)
			if err != nil || qty == 0 {
				continue
			}
			symbol := portfolioSymbol(coin.Coin)
			if symbol == "USDT" {
				symbol = "USDC"
			}
			balances[symbol] += qty
		}
	}
	return balances, nil
}

// Ping verifies API connectivity with a public ticker query.
func (v *BybitVenue) Ping(ctx context.Context) error {
	params := map[string]interface{}{"category": "spot", "symbol": "BTCUSDT"}
	resp, err := v.client.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return enginerrors.NewNetworkError("bybit", "ticker query failed", err)
	}
	if resp.RetCode != 0 {
		return enginerrors.NewNetworkError("bybit",
			fmt.Sprintf("ticker query rejected: %s (code %d)", resp.RetMsg, resp.RetCode), nil)
	}
	return nil
}
