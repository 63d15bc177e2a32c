package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"coinfolio/internal/application/port"
	"coinfolio/internal/application/service"
	"coinfolio/internal/infrastructure/coincap"
	"coinfolio/internal/infrastructure/config"
	"coinfolio/internal/infrastructure/logger"
	"coinfolio/internal/infrastructure/storage/composite"
	"coinfolio/internal/infrastructure/storage/postgres"
	redisstore "coinfolio/internal/infrastructure/storage/redis"
	"coinfolio/internal/infrastructure/storage/sqlite"
	"coinfolio/internal/interfaces/web"
)

func main() {
	logger.Setup()

	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("open storage failed")
	}
	defer store.Close()

	client := coincap.New(cfg.CoinCap.APIURL, cfg.CoinCap.APIKey)

	hub := web.NewHub()
	var cache port.QuotePublisher
	if cfg.Redis.Enabled {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr})
		cache = redisstore.NewQuoteCache(rdb, "coinfolio", time.Duration(cfg.Redis.TTLSec)*time.Second)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis quote cache enabled")
	}
	publisher := composite.NewPublisher(hub, cache)

	syncer := service.NewPriceSyncer(
		client,
		store.Mappings(),
		store.Ledger(),
		publisher,
		time.Duration(cfg.CoinCap.RefreshIntervalMs)*time.Millisecond,
		cfg.CoinCap.MaxConcurrentFetches,
	)

	quotes := service.NewQuoteService(client, store.Mappings())
	wallets := service.NewWalletService(store.Wallets(), quotes)
	simulation := service.NewSimulationService(quotes)
	server := web.NewServer(cfg.Server.Listen, wallets, simulation, hub)

	// bootstrap must not block readiness
	go syncer.Bootstrap(ctx)
	go func() {
		if err := syncer.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("price syncer exited")
		}
	}()

	log.Info().
		Str("config", *configPath).
		Str("driver", cfg.Storage.Driver).
		Int("max_concurrent_fetches", cfg.CoinCap.MaxConcurrentFetches).
		Int("refresh_interval_ms", cfg.CoinCap.RefreshIntervalMs).
		Msg("coinfolio started")

	if err := server.Start(ctx); err != nil {
		log.Error().Err(err).Msg("http server exited")
	}
}

func openStorage(cfg *config.Config) (port.Storage, error) {
	if cfg.Storage.Driver == "postgres" {
		return postgres.New(cfg.Storage.DSN)
	}
	return sqlite.New(cfg.Storage.Path)
}
