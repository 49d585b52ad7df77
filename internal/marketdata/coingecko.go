package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	enginerrors "github.com/recall-agent/portfolio-rebalancer/internal/errors"
	"github.com/recall-agent/portfolio-rebalancer/internal/safety"
	"github.com/recall-agent/portfolio-rebalancer/pkg/types"
)

const (
	defaultBaseURL = "https://api.coingecko.com/api/v3"
	apiKeyHeader   = "x-cg-demo-api-key"
)

// CoingeckoClient fetches prices and trailing returns from CoinGecko.
// The free tier allows 30 calls/minute; a token bucket paces requests
// accordingly, faster when an API key is configured.
type CoingeckoClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *safety.Limiter
	nowFn      func() time.Time
}

// NewCoingeckoClient creates a client. apiKey may be empty for the free
// tier.
func NewCoingeckoClient(apiKey string, timeout time.Duration) *CoingeckoClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rate := 0.4 // free tier, stay under 30/min
	if apiKey != "" {
		rate = 5
	}
	return &CoingeckoClient{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    safety.NewLimiter("coingecko", 5, rate),
		nowFn:      time.Now,
	}
}

// coinDetail is the subset of /coins/{id} the snapshot needs.
type coinDetail struct {
	MarketData struct {
		CurrentPrice struct {
			USD float64 `json:"usd"`
		} `json:"current_price"`
		PriceChange24h float64 `json:"price_change_percentage_24h"`
		PriceChange7d  float64 `json:"price_change_percentage_7d"`
		PriceChange30d float64 `json:"price_change_percentage_30d"`
	} `json:"market_data"`
}

// Snapshot fetches full market data per symbol. Symbols that cannot be
// priced are omitted; the error is non-nil only when no symbol could be
// priced at all.
func (c *CoingeckoClient) Snapshot(ctx context.Context, symbols []string) (types.PriceSnapshot, error) {
	assets := make(map[string]types.AssetData, len(symbols))
	var lastErr error

	for _, symbol := range symbols {
		token, err := types.LookupToken(symbol)
		if err != nil {
			lastErr = err
			continue
		}

		detail, err := c.fetchCoinDetail(ctx, token.CoingeckoID)
		if err != nil {
			lastErr = err
			continue
		}

		md := detail.MarketData
		if md.CurrentPrice.USD <= 0 {
			lastErr = fmt.Errorf("coingecko returned no usd price for %s", symbol)
			continue
		}

		data := types.AssetData{
			Price:     md.CurrentPrice.USD,
			Return7d:  md.PriceChange7d / 100,
			Return30d: md.PriceChange30d / 100,
		}
		if !token.Stable {
			data.Volatility = estimateVolatility(md.PriceChange24h/100, md.PriceChange7d/100)
		}
		assets[symbol] = data
	}

	if len(assets) == 0 {
		return types.PriceSnapshot{}, enginerrors.NewDataUnavailable(
			"marketdata", "no prices available for any requested asset", lastErr)
	}
	return types.PriceSnapshot{Assets: assets, Timestamp: c.nowFn()}, nil
}

// Prices fetches spot prices in one /simple/price call.
func (c *CoingeckoClient) Prices(ctx context.Context, symbols []string) (map[string]float64, error) {
	ids := make([]string, 0, len(symbols))
	idToSymbol := make(map[string]string, len(symbols))
	for _, symbol := range symbols {
		token, err := types.LookupToken(symbol)
		if err != nil {
			continue
		}
		ids = append(ids, token.CoingeckoID)
		idToSymbol[token.CoingeckoID] = symbol
	}
	if len(ids) == 0 {
		return nil, enginerrors.NewDataUnavailable("marketdata", "no known assets requested", nil)
	}

	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("vs_currencies", "usd")

	var raw map[string]map[string]float64
	if err := c.get(ctx, "/simple/price", params, &raw); err != nil {
		return nil, enginerrors.NewDataUnavailable("marketdata", "price fetch failed", err)
	}

	prices := make(map[string]float64, len(raw))
	for id, entry := range raw {
		symbol, ok := idToSymbol[id]
		if !ok {
			continue
		}
		if usd, ok := entry["usd"]; ok && usd > 0 {
			prices[symbol] = usd
		}
	}
	if len(prices) == 0 {
		return nil, enginerrors.NewDataUnavailable("marketdata", "no prices in response", nil)
	}
	return prices, nil
}

func (c *CoingeckoClient) fetchCoinDetail(ctx context.Context, id string) (*coinDetail, error) {
	params := url.Values{}
	params.Set("localization", "false")
	params.Set("tickers", "false")
	params.Set("market_data", "true")
	params.Set("community_data", "false")
	params.Set("developer_data", "false")
	params.Set("sparkline", "false")

	var detail coinDetail
	if err := c.get(ctx, "/coins/"+id, params, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *CoingeckoClient) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("coingecko %s: status %d: %s", path, resp.StatusCode, truncate(string(body), 200))
	}
	return json.Unmarshal(body, out)
}

// estimateVolatility derives a rough volatility figure from the 24h and
// 7d price changes: the 24h move annualizes onto a weekly scale, then
// averages with the realized weekly move.
func estimateVolatility(change24h, change7d float64) float64 {
	return (math.Abs(change24h)*7 + math.Abs(change7d)) / 2
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
