package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"coinfolio/internal/application/port"
	"coinfolio/internal/infrastructure/coincap"
)

const (
	defaultMaxConcurrentFetches = 3
	defaultRefreshInterval      = 30 * time.Second
)

// PriceSyncer keeps ledger prices current. At startup it rebuilds the symbol
// mapping table from the provider's full listing; after that it runs
// fixed-delay sync cycles: collect the distinct held asset names, fetch each
// latest price with a bounded fan-out, write successes back. One bad fetch
// never aborts a cycle.
type PriceSyncer struct {
	market        port.MarketData
	mappings      port.MappingRepository
	ledger        port.AssetLedger
	publisher     port.QuotePublisher // optional
	interval      time.Duration
	maxConcurrent int
}

func NewPriceSyncer(
	market port.MarketData,
	mappings port.MappingRepository,
	ledger port.AssetLedger,
	publisher port.QuotePublisher,
	interval time.Duration,
	maxConcurrent int,
) *PriceSyncer {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentFetches
	}
	return &PriceSyncer{
		market:        market,
		mappings:      mappings,
		ledger:        ledger,
		publisher:     publisher,
		interval:      interval,
		maxConcurrent: maxConcurrent,
	}
}

// Bootstrap replaces the symbol mapping table with the provider's current
// listing. A failure degrades symbol lookups but must not take the process
// down, so it only logs; scheduled syncing does not depend on the table.
func (s *PriceSyncer) Bootstrap(ctx context.Context) {
	mappings, err := s.market.FetchAllAssets(ctx)
	if err != nil {
		log.Error().Err(err).Msg("asset mapping bootstrap failed, symbol lookups degraded")
		return
	}
	if err := s.mappings.ReplaceAll(ctx, mappings); err != nil {
		log.Error().Err(err).Msg("saving asset mappings failed")
		return
	}
	log.Info().Int("mappings", len(mappings)).Msg("asset mappings saved")
}

// Run drives sync cycles until ctx is cancelled. The delay is measured from
// the end of one cycle to the start of the next, so cycles never overlap; a
// slow cycle simply pushes the next one out.
func (s *PriceSyncer) Run(ctx context.Context) error {
	s.syncCycle(ctx)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			s.syncCycle(ctx)
			timer.Reset(s.interval)
		}
	}
}

func (s *PriceSyncer) syncCycle(ctx context.Context) {
	names, err := s.ledger.DistinctAssetNames(ctx)
	if err != nil {
		log.Error().Err(err).Msg("collecting held asset names failed, skipping cycle")
		return
	}
	if len(names) == 0 {
		log.Info().Msg("no asset prices to update, skipping cycle")
		return
	}

	log.Info().Int("assets", len(names)).Strs("names", names).Msg("updating asset prices")

	var updated, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)
	for _, name := range names {
		g.Go(func() error {
			if s.syncOne(gctx, name) {
				updated.Add(1)
			} else {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Info().
		Int64("updated", updated.Load()).
		Int64("failed", failed.Load()).
		Msg("price sync cycle complete")
}

// syncOne fetches and writes back a single asset. All failures are terminal
// for this asset in this cycle only: logged, skipped, retried naturally next
// cycle.
func (s *PriceSyncer) syncOne(ctx context.Context, name string) bool {
	quote, err := s.market.FetchLatestPrice(ctx, name)
	if err != nil {
		var authErr *coincap.AuthError
		if errors.As(err, &authErr) {
			log.Error().Err(err).Str("asset", name).Msg("provider rejected api key, check configuration")
		} else {
			log.Warn().Err(err).Str("asset", name).Msg("price fetch failed")
		}
		return false
	}

	rows, err := s.ledger.UpdatePriceByName(ctx, name, quote.PriceUSD)
	if err != nil {
		log.Warn().Err(err).Str("asset", name).Msg("price write-back failed")
		return false
	}

	if s.publisher != nil {
		s.publisher.PublishQuote(ctx, quote)
	}

	log.Debug().
		Str("asset", name).
		Str("price_usd", quote.PriceUSD.String()).
		Int64("rows", rows).
		Msg("asset price updated")
	return true
}
