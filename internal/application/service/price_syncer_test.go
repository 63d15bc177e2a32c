package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinfolio/internal/application/port"
	"coinfolio/internal/domain"
	"coinfolio/internal/infrastructure/coincap"
)

type fakeMarket struct {
	mu       sync.Mutex
	listing  []domain.SymbolMapping
	listErr  error
	prices   map[string]string
	errs     map[string]error
	delay    time.Duration
	calls    atomic.Int64
	inflight atomic.Int64
	maxSeen  atomic.Int64
}

func (m *fakeMarket) FetchAllAssets(ctx context.Context) ([]domain.SymbolMapping, error) {
	return m.listing, m.listErr
}

func (m *fakeMarket) FetchLatestPrice(ctx context.Context, assetID string) (domain.PriceQuote, error) {
	m.calls.Add(1)
	cur := m.inflight.Add(1)
	defer m.inflight.Add(-1)
	for {
		max := m.maxSeen.Load()
		if cur <= max || m.maxSeen.CompareAndSwap(max, cur) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errs[assetID]; ok {
		return domain.PriceQuote{}, err
	}
	price, ok := m.prices[assetID]
	if !ok {
		return domain.PriceQuote{}, &coincap.ClientError{Status: 404, Body: "not found"}
	}
	return domain.PriceQuote{
		AssetID:   assetID,
		PriceUSD:  decimal.RequireFromString(price),
		FetchedAt: time.Now(),
	}, nil
}

type fakeLedger struct {
	mu        sync.Mutex
	names     []string
	prices    map[string]decimal.Decimal
	writeErrs map[string]error
}

func newFakeLedger(names ...string) *fakeLedger {
	prices := make(map[string]decimal.Decimal, len(names))
	for _, n := range names {
		prices[n] = decimal.Zero
	}
	return &fakeLedger{names: names, prices: prices}
}

func (l *fakeLedger) DistinctAssetNames(ctx context.Context) ([]string, error) {
	return l.names, nil
}

func (l *fakeLedger) UpdatePriceByName(ctx context.Context, name string, price decimal.Decimal) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, ok := l.writeErrs[name]; ok {
		return 0, err
	}
	l.prices[name] = price
	return 1, nil
}

func (l *fakeLedger) priceOf(name string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.prices[name]
}

type fakeMappings struct {
	mu       sync.Mutex
	bySymbol map[string]domain.SymbolMapping
}

func newFakeMappings() *fakeMappings {
	return &fakeMappings{bySymbol: make(map[string]domain.SymbolMapping)}
}

func (m *fakeMappings) ReplaceAll(ctx context.Context, mappings []domain.SymbolMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mapping := range mappings {
		m.bySymbol[mapping.Symbol] = mapping
	}
	return nil
}

func (m *fakeMappings) FindBySymbol(ctx context.Context, symbol string) (domain.SymbolMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mapping, ok := m.bySymbol[symbol]
	if !ok {
		return domain.SymbolMapping{}, port.ErrMappingNotFound
	}
	return mapping, nil
}

func TestSyncCycleWritesBackFetchedPrices(t *testing.T) {
	market := &fakeMarket{
		prices: map[string]string{"bitcoin": "40000.00"},
		errs:   map[string]error{"ethereum": &coincap.TransportError{Err: context.DeadlineExceeded}},
	}
	ledger := newFakeLedger("bitcoin", "ethereum")

	syncer := NewPriceSyncer(market, newFakeMappings(), ledger, nil, time.Minute, 3)
	syncer.syncCycle(context.Background())

	assert.Equal(t, "40000.00", ledger.priceOf("bitcoin").String(),
		"fetched price must be written back")
	assert.True(t, ledger.priceOf("ethereum").IsZero(),
		"failed fetch must leave the ledger price unchanged")
}

func TestSyncCycleWithNoHeldAssetsMakesNoCalls(t *testing.T) {
	market := &fakeMarket{prices: map[string]string{}}
	syncer := NewPriceSyncer(market, newFakeMappings(), newFakeLedger(), nil, time.Minute, 3)

	syncer.syncCycle(context.Background())

	assert.Zero(t, market.calls.Load(), "empty cycle must not hit the provider")
}

func TestSyncCycleBoundsConcurrentFetches(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	prices := make(map[string]string, len(names))
	for _, n := range names {
		prices[n] = "1"
	}
	market := &fakeMarket{prices: prices, delay: 20 * time.Millisecond}
	ledger := newFakeLedger(names...)

	syncer := NewPriceSyncer(market, newFakeMappings(), ledger, nil, time.Minute, 3)
	syncer.syncCycle(context.Background())

	assert.EqualValues(t, len(names), market.calls.Load())
	assert.LessOrEqual(t, market.maxSeen.Load(), int64(3),
		"at most maxConcurrentFetches calls may be in flight")
}

func TestSyncCycleIsolatesSingleFailure(t *testing.T) {
	market := &fakeMarket{
		prices: map[string]string{"bitcoin": "1", "ethereum": "2", "solana": "3"},
		errs:   map[string]error{"ethereum": &coincap.ServerError{Status: 500, Body: "oops"}},
	}
	ledger := newFakeLedger("bitcoin", "ethereum", "solana")

	syncer := NewPriceSyncer(market, newFakeMappings(), ledger, nil, time.Minute, 3)
	syncer.syncCycle(context.Background())

	assert.Equal(t, "1", ledger.priceOf("bitcoin").String())
	assert.True(t, ledger.priceOf("ethereum").IsZero())
	assert.Equal(t, "3", ledger.priceOf("solana").String())
}

func TestSyncCycleIsolatesWriteBackFailure(t *testing.T) {
	market := &fakeMarket{prices: map[string]string{"bitcoin": "1", "ethereum": "2"}}
	ledger := newFakeLedger("bitcoin", "ethereum")
	ledger.writeErrs = map[string]error{"bitcoin": errors.New("disk full")}

	syncer := NewPriceSyncer(market, newFakeMappings(), ledger, nil, time.Minute, 3)
	syncer.syncCycle(context.Background())

	assert.True(t, ledger.priceOf("bitcoin").IsZero())
	assert.Equal(t, "2", ledger.priceOf("ethereum").String())
}

func TestAuthErrorDoesNotStopScheduling(t *testing.T) {
	market := &fakeMarket{errs: map[string]error{"bitcoin": &coincap.AuthError{Body: "forbidden"}}}
	ledger := newFakeLedger("bitcoin")
	market.prices = map[string]string{}

	syncer := NewPriceSyncer(market, newFakeMappings(), ledger, nil, 10*time.Millisecond, 3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- syncer.Run(ctx) }()

	// a cycle failing on 403 must not prevent the next one from running
	require.Eventually(t, func() bool { return market.calls.Load() >= 3 },
		2*time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	market := &fakeMarket{prices: map[string]string{}}
	syncer := NewPriceSyncer(market, newFakeMappings(), newFakeLedger(), nil, time.Hour, 3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- syncer.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestBootstrapStoresMappings(t *testing.T) {
	market := &fakeMarket{listing: []domain.SymbolMapping{
		{AssetID: "bitcoin", Symbol: "BTC"},
		{AssetID: "ethereum", Symbol: "ETH"},
	}}
	mappings := newFakeMappings()

	syncer := NewPriceSyncer(market, mappings, newFakeLedger(), nil, time.Minute, 3)
	syncer.Bootstrap(context.Background())

	m, err := mappings.FindBySymbol(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, "bitcoin", m.AssetID)
}

func TestBootstrapFailureKeepsExistingMappings(t *testing.T) {
	mappings := newFakeMappings()
	require.NoError(t, mappings.ReplaceAll(context.Background(),
		[]domain.SymbolMapping{{AssetID: "bitcoin", Symbol: "BTC"}}))

	market := &fakeMarket{listErr: &coincap.ServerError{Status: 503, Body: "down"}}
	syncer := NewPriceSyncer(market, mappings, newFakeLedger(), nil, time.Minute, 3)
	syncer.Bootstrap(context.Background())

	m, err := mappings.FindBySymbol(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, "bitcoin", m.AssetID)
}
