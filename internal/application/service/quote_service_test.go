package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinfolio/internal/domain"
	"coinfolio/internal/infrastructure/coincap"
)

func TestLookupAndFetchPrice(t *testing.T) {
	market := &fakeMarket{prices: map[string]string{"bitcoin": "40000.00"}}
	mappings := newFakeMappings()
	require.NoError(t, mappings.ReplaceAll(context.Background(),
		[]domain.SymbolMapping{{AssetID: "bitcoin", Symbol: "BTC"}}))

	quotes := NewQuoteService(market, mappings)
	quote, err := quotes.LookupAndFetchPrice(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, "bitcoin", quote.AssetID)
	assert.Equal(t, "40000.00", quote.PriceUSD.String())
}

func TestLookupAndFetchPriceUnknownSymbol(t *testing.T) {
	quotes := NewQuoteService(&fakeMarket{}, newFakeMappings())

	_, err := quotes.LookupAndFetchPrice(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestLookupAndFetchPriceUnavailable(t *testing.T) {
	market := &fakeMarket{
		prices: map[string]string{},
		errs:   map[string]error{"bitcoin": &coincap.TransportError{Err: context.DeadlineExceeded}},
		delay:  time.Millisecond,
	}
	mappings := newFakeMappings()
	require.NoError(t, mappings.ReplaceAll(context.Background(),
		[]domain.SymbolMapping{{AssetID: "bitcoin", Symbol: "BTC"}}))

	quotes := NewQuoteService(market, mappings)
	_, err := quotes.LookupAndFetchPrice(context.Background(), "BTC")
	assert.ErrorIs(t, err, ErrPriceUnavailable)

	var transportErr *coincap.TransportError
	assert.ErrorAs(t, err, &transportErr, "cause must stay inspectable")
}
