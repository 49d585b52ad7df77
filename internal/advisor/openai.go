package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	enginerrors "github.com/recall-agent/portfolio-rebalancer/internal/errors"
	"github.com/recall-agent/portfolio-rebalancer/pkg/types"
)

const (
	openAIBaseURL = "https://api.openai.com/v1"

	// Allocation constraints applied to every suggestion before it is
	// accepted, whatever the model answered.
	MinAllocation = 0.05
	MaxAllocation = 0.70

	// SignificantChange is the per-asset threshold below which a
	// suggestion is ignored and the current targets stay in place.
	SignificantChange = 0.05
)

// Advisor suggests target allocations during the weekly strategy
// review.
type Advisor interface {
	SuggestAllocation(ctx context.Context, current map[string]float64, snapshot types.PriceSnapshot) (map[string]float64, error)
}

// OpenAIAdvisor asks a chat-completion model for an allocation. The
// answer is advisory only: it is normalized and clamped before use and
// any parse failure leaves the current targets untouched.
type OpenAIAdvisor struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIAdvisor creates an advisor using the given model.
func NewOpenAIAdvisor(apiKey, model string) *OpenAIAdvisor {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIAdvisor{
		apiKey:     apiKey,
		model:      model,
		baseURL:    openAIBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// SuggestAllocation asks the model for new target weights.
func (a *OpenAIAdvisor) SuggestAllocation(ctx context.Context, current map[string]float64, snapshot types.PriceSnapshot) (map[string]float64, error) {
	currentJSON, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return nil, err
	}
	marketJSON, err := json.MarshalIndent(snapshot.Assets, "", "  ")
	if err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(current))
	for symbol := range current {
		symbols = append(symbols, symbol)
	}

	prompt := fmt.Sprintf(`Based on current market conditions, suggest an optimal portfolio allocation.

Current Allocation:
%s

Market Data (prices, trailing returns, volatility estimates):
%s

Available tokens: %s

Rules:
- Allocations must sum to 1.0
- Minimum allocation per token: %.2f
- Maximum allocation per token: %.2f
- USDC can be used as a safe haven (higher allocation in uncertain times)

Respond with ONLY a JSON object with token symbols as keys and allocation fractions as values.
Example: {"USDC": 0.3, "WETH": 0.5, "WBTC": 0.2}`,
		currentJSON, marketJSON, strings.Join(symbols, ", "), MinAllocation, MaxAllocation)

	content, err := a.complete(ctx, prompt)
	if err != nil {
		return nil, enginerrors.NewDataUnavailable("advisor", "completion request failed", err)
	}

	suggested, err := parseAllocation(content)
	if err != nil {
		return nil, enginerrors.NewDataUnavailable("advisor", "unparseable allocation suggestion", err)
	}

	// Drop symbols outside the configured universe before clamping.
	for symbol := range suggested {
		if _, ok := current[symbol]; !ok {
			delete(suggested, symbol)
		}
	}
	if len(suggested) == 0 {
		return nil, enginerrors.NewDataUnavailable("advisor", "suggestion covered no configured assets", nil)
	}

	return ClampAllocation(suggested), nil
}

func (a *OpenAIAdvisor) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       a.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// parseAllocation extracts the allocation object from a model answer,
// tolerating markdown code fences around the JSON.
func parseAllocation(content string) (map[string]float64, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var allocation map[string]float64
	if err := json.Unmarshal([]byte(content), &allocation); err != nil {
		return nil, err
	}
	if len(allocation) == 0 {
		return nil, fmt.Errorf("empty allocation")
	}
	return allocation, nil
}

// ClampAllocation normalizes weights to sum to 1.0, clamps each into
// [MinAllocation, MaxAllocation] and renormalizes.
func ClampAllocation(weights map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(weights))

	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return out
	}
	for symbol, w := range weights {
		out[symbol] = w / total
	}

	for symbol, w := range out {
		if w < MinAllocation {
			out[symbol] = MinAllocation
		} else if w > MaxAllocation {
			out[symbol] = MaxAllocation
		}
	}

	total = 0
	for _, w := range out {
		total += w
	}
	for symbol, w := range out {
		out[symbol] = w / total
	}
	return out
}

// MaxChange returns the largest per-asset absolute difference between
// two allocations.
func MaxChange(current, suggested map[string]float64) float64 {
	symbols := make(map[string]struct{}, len(current)+len(suggested))
	for s := range current {
		symbols[s] = struct{}{}
	}
	for s := range suggested {
		symbols[s] = struct{}{}
	}

	var maxDiff float64
	for s := range symbols {
		diff := math.Abs(suggested[s] - current[s])
		if diff > maxDiff {
			maxDiff = diff
		}
	}
	return maxDiff
}
