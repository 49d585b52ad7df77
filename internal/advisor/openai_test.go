package advisor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recall-agent/portfolio-rebalancer/pkg/types"
)

func chatReply(content string) string {
	return fmt.Sprintf(`{"choices":[{"message":{"content":%q}}]}`, content)
}

func TestOpenAIAdvisor_SuggestAllocation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		fmt.Fprint(w, chatReply("```json\n{\"USDC\": 0.3, \"WETH\": 0.5, \"WBTC\": 0.2}\n```"))
	}))
	defer server.Close()

	a := NewOpenAIAdvisor("sk-test", "gpt-4o-mini")
	a.baseURL = server.URL

	current := map[string]float64{"USDC": 0.4, "WETH": 0.4, "WBTC": 0.2}
	suggested, err := a.SuggestAllocation(context.Background(), current, types.PriceSnapshot{})
	require.NoError(t, err)

	assert.InDelta(t, 0.3, suggested["USDC"], 1e-9)
	assert.InDelta(t, 0.5, suggested["WETH"], 1e-9)
	assert.InDelta(t, 0.2, suggested["WBTC"], 1e-9)
}

func TestOpenAIAdvisor_DropsUnknownSymbols(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatReply(`{"USDC": 0.5, "DOGE": 0.5}`))
	}))
	defer server.Close()

	a := NewOpenAIAdvisor("sk-test", "")
	a.baseURL = server.URL

	current := map[string]float64{"USDC": 0.5, "WETH": 0.5}
	suggested, err := a.SuggestAllocation(context.Background(), current, types.PriceSnapshot{})
	require.NoError(t, err)
	assert.NotContains(t, suggested, "DOGE")
	assert.InDelta(t, 1.0, suggested["USDC"], 1e-9, "lone surviving asset takes full weight after renormalization")
}

func TestOpenAIAdvisor_RejectsGarbageAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatReply("I think you should buy low and sell high."))
	}))
	defer server.Close()

	a := NewOpenAIAdvisor("sk-test", "")
	a.baseURL = server.URL

	_, err := a.SuggestAllocation(context.Background(), map[string]float64{"USDC": 1}, types.PriceSnapshot{})
	assert.Error(t, err)
}

func TestClampAllocation_NormalizesAndClamps(t *testing.T) {
	// Sums to 2.0: normalized first, then clamped.
	got := ClampAllocation(map[string]float64{"USDC": 1.6, "WETH": 0.38, "WBTC": 0.02})

	var total float64
	for _, w := range got {
		total += w
	}
	assert.InDelta(t, 1.0, total, 1e-9)

	// 1.6/2.0 = 0.80 clamps to 0.70; 0.02/2.0 = 0.01 clamps to 0.05,
	// then everything renormalizes.
	assert.Less(t, got["USDC"], 0.75)
	assert.Greater(t, got["WBTC"], 0.04)
}

func TestMaxChange(t *testing.T) {
	current := map[string]float64{"USDC": 0.3, "WETH": 0.5, "WBTC": 0.2}
	suggested := map[string]float64{"USDC": 0.35, "WETH": 0.42, "WBTC": 0.23}
	assert.InDelta(t, 0.08, MaxChange(current, suggested), 1e-9)

	// A symbol present only on one side counts at its full weight.
	assert.InDelta(t, 0.2, MaxChange(map[string]float64{"WBTC": 0.2}, map[string]float64{}), 1e-9)
}
