package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"time"

	enginerrors "github.com/recall-agent/portfolio-rebalancer/internal/errors"
	"github.com/recall-agent/portfolio-rebalancer/internal/safety"
	"github.com/recall-agent/portfolio-rebalancer/pkg/types"
)

const (
	SandboxBaseURL    = "https://api.sandbox.competitions.recall.network"
	ProductionBaseURL = "https://api.competitions.recall.network"

	defaultSlippageTolerance = "0.5"
)

// RecallClient talks to the Recall competition API. All swaps route
// through the quote asset: a Sell swaps the asset into USDC, a Buy
// swaps USDC into the asset.
type RecallClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *safety.Limiter
	retry      RetryConfig
	nowFn      func() time.Time
}

// RetryConfig controls transport-level retries. Venue-side trade
// rejections are never retried; only network and 5xx failures are.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Backoff      float64
}

// DefaultRetryConfig mirrors the 3-attempt exponential backoff the
// venue documentation recommends.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Backoff:      2.0,
	}
}

// NewRecallClient creates a client against the given environment.
func NewRecallClient(apiKey string, sandbox bool, timeout time.Duration) *RecallClient {
	baseURL := ProductionBaseURL
	if sandbox {
		baseURL = SandboxBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RecallClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    safety.NewLimiter("recall", 10, 2),
		retry:      DefaultRetryConfig(),
		nowFn:      time.Now,
	}
}

type tradeExecutePayload struct {
	FromToken         string `json:"fromToken"`
	ToToken           string `json:"toToken"`
	Amount            string `json:"amount"`
	Reason            string `json:"reason"`
	SlippageTolerance string `json:"slippageTolerance"`
}

type tradeExecuteResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Transaction struct {
		ID        string  `json:"id"`
		ToAmount  float64 `json:"toAmount"`
		Price     float64 `json:"price"`
	} `json:"transaction"`
}

// Execute swaps through USDC and returns the trade record. A venue
// rejection yields a Rejected record with a nil error; transport
// failures after retries yield a Failed record with a timeout or
// execution error, so every submission the venue may have seen counts
// toward the success rate.
func (c *RecallClient) Execute(ctx context.Context, req types.TradeRequest, price float64) (types.TradeRecord, error) {
	record := types.TradeRecord{
		Symbol:     req.Symbol,
		Side:       req.Side,
		USDAmount:  req.USDAmount,
		Price:      price,
		ExecutedAt: c.nowFn(),
	}

	payload, err := c.buildPayload(req, price)
	if err != nil {
		record.Outcome = types.OutcomeFailed
		record.Reason = err.Error()
		return record, enginerrors.NewExecutionFailed("venue", "build trade payload", err)
	}

	var resp tradeExecuteResponse
	err = c.withRetry(ctx, func() error {
		return c.post(ctx, "/api/trade/execute", payload, &resp)
	})
	if err != nil {
		record.Outcome = types.OutcomeFailed
		record.Reason = err.Error()
		return record, classifyTransportError("trade submission failed", err)
	}

	// A well-formed "no" from the venue (insufficient balance and the
	// like) is a rejection, not a failure: it does not count against
	// the rolling success rate and carries no transport error.
	if !resp.Success {
		record.Outcome = types.OutcomeRejected
		record.Reason = resp.Error
		return record, nil
	}

	record.Outcome = types.OutcomeFilled
	if resp.Transaction.Price > 0 {
		record.Price = resp.Transaction.Price
	}
	return record, nil
}

// Balances fetches per-token balances in human units.
func (c *RecallClient) Balances(ctx context.Context) (map[string]float64, error) {
	var resp struct {
		Balances []struct {
			Symbol string  `json:"symbol"`
			Amount float64 `json:"amount"`
		} `json:"balances"`
	}
	err := c.withRetry(ctx, func() error {
		return c.get(ctx, "/api/agent/balances", nil, &resp)
	})
	if err != nil {
		return nil, enginerrors.NewDataUnavailable("venue", "balance fetch failed", err)
	}

	balances := make(map[string]float64, len(resp.Balances))
	for _, b := range resp.Balances {
		if b.Symbol != "" {
			balances[b.Symbol] += b.Amount
		}
	}
	return balances, nil
}

// Price asks the venue for its own view of a token price. Used as a
// fallback when the market data provider is degraded.
func (c *RecallClient) Price(ctx context.Context, symbol string) (float64, error) {
	token, err := types.LookupToken(symbol)
	if err != nil {
		return 0, enginerrors.NewDataUnavailable("venue", "unknown token", err)
	}

	params := url.Values{}
	params.Set("token", token.Address)
	params.Set("chain", token.Chain)

	var resp struct {
		Price float64 `json:"price"`
	}
	err = c.withRetry(ctx, func() error {
		return c.get(ctx, "/api/price", params, &resp)
	})
	if err != nil {
		return 0, enginerrors.NewDataUnavailable("venue", "price fetch failed", err)
	}
	if resp.Price <= 0 {
		return 0, enginerrors.NewDataUnavailable("venue", "venue returned zero price", nil)
	}
	return resp.Price, nil
}

// Ping hits the health endpoint once, without retries.
func (c *RecallClient) Ping(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/api/health", nil, &resp); err != nil {
		return enginerrors.NewNetworkError("venue", "health check failed", err)
	}
	return nil
}

func (c *RecallClient) buildPayload(req types.TradeRequest, price float64) (*tradeExecutePayload, error) {
	asset, err := types.LookupToken(req.Symbol)
	if err != nil {
		return nil, err
	}
	quote, err := types.LookupToken("USDC")
	if err != nil {
		return nil, err
	}

	reason := fmt.Sprintf("rebalance %s %s", req.Side, req.Symbol)
	if req.LossProtection {
		reason = fmt.Sprintf("stop loss exit %s", req.Symbol)
	}

	payload := &tradeExecutePayload{
		Reason:            reason,
		SlippageTolerance: defaultSlippageTolerance,
	}

	switch req.Side {
	case types.SideSell:
		if price <= 0 {
			return nil, fmt.Errorf("no price for %s", req.Symbol)
		}
		payload.FromToken = asset.Address
		payload.ToToken = quote.Address
		payload.Amount = toBaseUnits(req.USDAmount/price, asset.Decimals)
	case types.SideBuy:
		payload.FromToken = quote.Address
		payload.ToToken = asset.Address
		payload.Amount = toBaseUnits(req.USDAmount, quote.Decimals)
	default:
		return nil, fmt.Errorf("unknown trade side %v", req.Side)
	}
	return payload, nil
}

func (c *RecallClient) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == c.retry.MaxRetries || !isRetryable(err) {
			break
		}

		delay := time.Duration(float64(c.retry.InitialDelay) * math.Pow(c.retry.Backoff, float64(attempt)))
		if delay > c.retry.MaxDelay {
			delay = c.retry.MaxDelay
		}
		if jitter := int64(delay / 10); jitter > 0 {
			delay += time.Duration(rand.Int63n(jitter))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

// classifyTransportError maps a post-retry transport error to its
// engine category: deadline expiry and net-level timeouts are TIMEOUT,
// everything else stays EXECUTION.
func classifyTransportError(reason string, err error) *enginerrors.EngineError {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return enginerrors.NewTimeoutError("venue", reason, err)
	}
	return enginerrors.NewExecutionFailed("venue", reason, err)
}

// httpStatusError marks server-side failures as retryable.
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.body)
}

func isRetryable(err error) bool {
	if se, ok := err.(*httpStatusError); ok {
		return se.status == http.StatusTooManyRequests || se.status >= 500
	}
	// Network-level errors (connection reset, timeout) are retryable.
	return true
}

func (c *RecallClient) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *RecallClient) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *RecallClient) do(req *http.Request, out interface{}) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpStatusError{status: resp.StatusCode, body: truncate(string(body), 200)}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

// toBaseUnits converts a human amount to the integer base-unit string
// the venue expects. big.Float keeps 18-decimal tokens exact where
// float64 arithmetic would not.
func toBaseUnits(amount float64, decimals int) string {
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	scaled := new(big.Float).Mul(big.NewFloat(amount), scale)
	i, _ := scaled.Int(nil)
	if i.Sign() < 0 {
		return "0"
	}
	return i.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
