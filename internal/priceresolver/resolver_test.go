package priceresolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	prices map[string]float64
	err    error
	calls  int
}

func (f *fakeSource) Price(ctx context.Context, symbolOrAddr string) (float64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.prices[symbolOrAddr], nil
}

func TestResolver_StablecoinsAlwaysOne(t *testing.T) {
	r := New(Config{}, nil, nil)
	for _, sym := range []string{"usdc", "USDT", "Dai", "BUSD", "TUSD", "FRAX", "USDP", "GUSD"} {
		price, ok := r.Price(context.Background(), sym, time.Now())
		require.True(t, ok)
		assert.Equal(t, 1.0, price)
	}
}

func TestResolver_NoSourceNoObservation_ReturnsMissing(t *testing.T) {
	r := New(Config{}, nil, nil)
	_, ok := r.Price(context.Background(), "WETH", time.Now())
	assert.False(t, ok)
}

func TestResolver_SourceLookupAndCache(t *testing.T) {
	source := &fakeSource{prices: map[string]float64{"WETH": 3200.50}}
	r := New(Config{StalenessBudget: time.Minute}, source, nil)

	now := time.Now()
	price, ok := r.Price(context.Background(), "weth", now)
	require.True(t, ok)
	assert.Equal(t, 3200.50, price)
	assert.Equal(t, 1, source.calls)

	// within the staleness budget, subsequent lookups use the cached
	// observation rather than re-hitting the source.
	price2, ok2 := r.Price(context.Background(), "WETH", now.Add(30*time.Second))
	require.True(t, ok2)
	assert.Equal(t, 3200.50, price2)
	assert.Equal(t, 1, source.calls)
}

func TestResolver_StaleObservationFallsThroughToSource(t *testing.T) {
	source := &fakeSource{prices: map[string]float64{"WETH": 3300}}
	r := New(Config{StalenessBudget: 120 * time.Second}, source, nil)
	r.Observe("WETH", 3000)

	price, ok := r.Price(context.Background(), "WETH", time.Now().Add(200*time.Second))
	require.True(t, ok)
	assert.Equal(t, 3300.0, price)
}

func TestResolver_SourceErrorReturnsMissing(t *testing.T) {
	source := &fakeSource{err: errors.New("oracle timeout")}
	r := New(Config{}, source, nil)
	_, ok := r.Price(context.Background(), "WETH", time.Now())
	assert.False(t, ok)
}

func TestResolver_USDValue_MissingPriceYieldsZeroAndFlag(t *testing.T) {
	r := New(Config{}, nil, nil)
	value, missing := r.USDValue(context.Background(), "WETH", 10, time.Now())
	assert.True(t, missing)
	assert.Equal(t, 0.0, value)
}

func TestResolver_USDValue_Computed(t *testing.T) {
	r := New(Config{}, nil, nil)
	value, missing := r.USDValue(context.Background(), "USDC", 500, time.Now())
	assert.False(t, missing)
	assert.Equal(t, 500.0, value)
}

func TestIsStablecoin(t *testing.T) {
	assert.True(t, IsStablecoin("usdt"))
	assert.False(t, IsStablecoin("WETH"))
}
