package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"coinfolio/internal/domain"
)

// QuoteCache mirrors the latest quote per asset into a redis hash so other
// consumers can read prices without touching the wallet database. Cache
// failures are logged and swallowed: the ledger stays the source of truth.
type QuoteCache struct {
	rdb       *redis.Client
	keyLatest string
	ttl       time.Duration
}

type cachedQuote struct {
	AssetID  string `json:"assetId"`
	Symbol   string `json:"symbol"`
	PriceUSD string `json:"priceUsd"`
	Ts       int64  `json:"ts"`
}

func NewQuoteCache(rdb *redis.Client, prefix string, ttl time.Duration) *QuoteCache {
	if prefix == "" {
		prefix = "coinfolio"
	}
	return &QuoteCache{rdb: rdb, keyLatest: prefix + ":quotes:latest", ttl: ttl}
}

// PublishQuote implements port.QuotePublisher.
func (c *QuoteCache) PublishQuote(ctx context.Context, quote domain.PriceQuote) {
	cq := cachedQuote{
		AssetID:  quote.AssetID,
		Symbol:   quote.Symbol,
		PriceUSD: quote.PriceUSD.String(),
		Ts:       quote.FetchedAt.UnixMilli(),
	}
	b, _ := json.Marshal(cq)

	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, c.keyLatest, quote.AssetID, string(b))
	if c.ttl > 0 {
		pipe.Expire(ctx, c.keyLatest, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Str("asset", quote.AssetID).Msg("quote cache write failed")
	}
}
