package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/0xmhha/launchpad-go/api"
	"github.com/0xmhha/launchpad-go/api/websocket"
	"github.com/0xmhha/launchpad-go/cache"
	"github.com/0xmhha/launchpad-go/chain"
	"github.com/0xmhha/launchpad-go/events"
	"github.com/0xmhha/launchpad-go/ingest"
	"github.com/0xmhha/launchpad-go/internal/config"
	"github.com/0xmhha/launchpad-go/internal/constants"
	"github.com/0xmhha/launchpad-go/internal/logger"
	"github.com/0xmhha/launchpad-go/notify"
	"github.com/0xmhha/launchpad-go/relay"
	"github.com/0xmhha/launchpad-go/storage"
	"github.com/0xmhha/launchpad-go/watchlist"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to configuration file (YAML)")
		showVersion = flag.Bool("version", false, "Show version information and exit")

		endpoint  = flag.String("endpoint", "", "Ledger node websocket endpoint")
		contract  = flag.String("contract", "", "Launchpad contract address (0x...)")
		dbBackend = flag.String("db-backend", "", "Database backend (pebble, memory)")
		dbPath    = flag.String("db", "", "Database directory path")
		logLevel  = flag.String("log-level", "", "Log level (debug, info, warn, error)")
		logFormat = flag.String("log-format", "", "Log format (json, console)")

		enableAPI   = flag.Bool("api", false, "Enable the HTTP API server")
		apiHost     = flag.String("api-host", "", "API server host")
		apiPort     = flag.Int("api-port", 0, "API server port")
		enableRelay = flag.Bool("relay", false, "Enable the Kafka event relay")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("launchpad-go version %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", buildTime)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	applyFlags(cfg, *endpoint, *contract, *dbBackend, *dbPath, *logLevel, *logFormat)
	applyAPIFlags(cfg, *enableAPI, *apiHost, *apiPort)
	if *enableRelay {
		cfg.Relay.Enabled = true
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := initLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting launchpad backend",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_time", buildTime),
		zap.String("endpoint", cfg.Chain.Endpoint),
		zap.String("contract", cfg.Chain.Contract),
		zap.String("db_backend", cfg.Database.Backend),
		zap.String("cache_backend", cfg.Cache.Backend),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Ledger client.
	client, err := chain.NewClient(cfg.Chain, log)
	if err != nil {
		log.Fatal("Failed to connect to ledger node", zap.Error(err))
	}
	defer client.Close()
	log.Info("Connected to ledger node", zap.String("endpoint", cfg.Chain.Endpoint))

	// Storage. Both backends also persist per-user watchlists.
	var store storage.Storage
	var watchStore watchlist.Store
	switch cfg.Database.Backend {
	case "memory":
		memStore := storage.NewMemoryStorage()
		store = memStore
		watchStore = memStore
	default:
		storageConfig := storage.DefaultConfig(cfg.Database.Path)
		if cfg.Database.CacheSize > 0 {
			storageConfig.CacheSize = cfg.Database.CacheSize
		}
		if cfg.Database.MaxOpenFiles > 0 {
			storageConfig.MaxOpenFiles = cfg.Database.MaxOpenFiles
		}
		if cfg.Database.WriteBuffer > 0 {
			storageConfig.WriteBuffer = cfg.Database.WriteBuffer
		}
		pebbleStore, err := storage.NewPebbleStorage(storageConfig)
		if err != nil {
			log.Fatal("Failed to open storage", zap.Error(err))
		}
		pebbleStore.SetLogger(log)
		store = pebbleStore
		watchStore = pebbleStore
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Failed to close storage", zap.Error(err))
		}
	}()
	log.Info("Storage initialized",
		zap.String("backend", cfg.Database.Backend),
		zap.String("path", cfg.Database.Path),
	)

	// Query cache.
	cacheClient, err := cache.New(cfg.Cache, log)
	if err != nil {
		log.Fatal("Failed to create cache", zap.Error(err))
	}

	// Event bus.
	bus := events.NewBus(constants.DefaultEventBufferSize, constants.DefaultSubscriberBuffer)
	bus.SetMetrics(events.NewMetrics("", ""))
	go bus.Run()

	// Ingestion pipeline.
	pipeline := ingest.NewPipeline(store, cacheClient, bus, cfg.Ingest, log)
	pipeline.SetMetrics(ingest.NewMetrics("", ""))
	go pipeline.Run()

	// Ledger event source. The global feed carries the four public
	// kinds; detailed transactions are ingested per token only while
	// at least one client watches that token.
	parser := chain.NewParser(common.HexToAddress(cfg.Chain.Contract))
	source := chain.NewSource(client, parser, cfg.Chain, log)
	publicKinds := []events.Kind{
		events.KindTokenCreated,
		events.KindTokenBought,
		events.KindTokenSold,
		events.KindTokenGraduated,
	}
	if _, err := source.SubscribeGlobal(publicKinds, pipeline.Enqueue); err != nil {
		log.Fatal("Failed to subscribe to ledger events", zap.Error(err))
	}
	listeners := ingest.NewEntityListeners(source, pipeline.Enqueue, log)

	// Watchlists.
	var watchlists *watchlist.Service
	if cfg.Watchlist.Enabled {
		watchlists = watchlist.New(watchStore, cfg.Watchlist, log)
		if _, err := watchlists.Load(context.Background()); err != nil {
			log.Fatal("Failed to load watchlists", zap.Error(err))
		}
	}

	// Distribution hub.
	hub := websocket.NewHub(cfg.Hub, websocket.Deps{
		Stream:     bus,
		Registry:   websocket.NewRegistry(),
		Listeners:  listeners,
		Verifier:   websocket.NewVerifier(cfg.Hub.AuthSecret),
		Reader:     store,
		Cache:      cacheClient,
		Watchlists: watchlists,
	}, log)
	hub.SetMetrics(websocket.NewMetrics("", ""))
	go hub.Run()
	wsServer := websocket.NewServer(hub, log)

	// Kafka relay.
	var eventRelay *relay.Relay
	if cfg.Relay.Enabled {
		eventRelay, err = relay.New(cfg.Relay, bus, log)
		if err != nil {
			log.Fatal("Failed to create Kafka relay", zap.Error(err))
		}
		if err := eventRelay.Start(); err != nil {
			log.Fatal("Failed to start Kafka relay", zap.Error(err))
		}
	}

	// Webhook notifier.
	var notifier *notify.Notifier
	if cfg.Notify.Enabled {
		notifier, err = notify.New(cfg.Notify, bus, log)
		if err != nil {
			log.Fatal("Failed to create webhook notifier", zap.Error(err))
		}
		if err := notifier.Start(); err != nil {
			log.Fatal("Failed to start webhook notifier", zap.Error(err))
		}
	}

	// HTTP API server.
	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer, err = api.NewServer(api.FromAppConfig(cfg.API), log, store, wsServer)
		if err != nil {
			log.Fatal("Failed to create API server", zap.Error(err))
		}
		apiServer.SetEventBus(bus)
		go func() {
			if err := apiServer.Start(); err != nil {
				log.Error("API server failed", zap.Error(err))
			}
		}()
	}

	log.Info("Launchpad backend running")

	sig := <-sigChan
	log.Info("Received shutdown signal", zap.String("signal", sig.String()))

	log.Info("Shutting down gracefully...")

	// Stop the edges first, then drain inward: no new client traffic,
	// no new ledger events, flush queued work, then stop the fan-out.
	if apiServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
		if err := apiServer.Stop(shutdownCtx); err != nil {
			log.Error("Failed to stop API server gracefully", zap.Error(err))
		}
		shutdownCancel()
	}

	hub.Stop()
	listeners.Close()
	source.Close()

	flushCtx, flushCancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
	if err := pipeline.Flush(flushCtx); err != nil {
		log.Error("Failed to flush ingestion pipeline", zap.Error(err))
	}
	flushCancel()
	pipeline.Stop()

	if eventRelay != nil {
		eventRelay.Stop()
	}
	if notifier != nil {
		notifier.Stop()
	}
	bus.Stop()

	if err := cacheClient.Close(); err != nil {
		log.Error("Failed to close cache", zap.Error(err))
	}

	logFinalStats(log, store, bus)
	log.Info("Launchpad backend stopped")
}

// loadConfig loads .env, the optional config file, and environment
// variables. Validation runs in main after CLI flags are applied, so a
// flag can satisfy a required setting.
func loadConfig(path string) (*config.Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	cfg := config.NewConfig()
	if path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}
	return cfg, nil
}

func loadDotEnv() error {
	info, err := os.Stat(".env")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat .env: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf(".env exists but is a directory")
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

func applyFlags(cfg *config.Config, endpoint, contract, dbBackend, dbPath, logLevel, logFormat string) {
	if endpoint != "" {
		cfg.Chain.Endpoint = endpoint
	}
	if contract != "" {
		cfg.Chain.Contract = contract
	}
	if dbBackend != "" {
		cfg.Database.Backend = dbBackend
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
}

func applyAPIFlags(cfg *config.Config, enableAPI bool, apiHost string, apiPort int) {
	if enableAPI {
		cfg.API.Enabled = true
	}
	if apiHost != "" {
		cfg.API.Host = apiHost
	}
	if apiPort > 0 {
		cfg.API.Port = apiPort
	}
}

func initLogger(level, format string) (*zap.Logger, error) {
	if format == "json" || format == "production" {
		return logger.NewProduction()
	}
	return logger.NewWithConfig(&logger.Config{
		Level:       level,
		Development: true,
		Encoding:    "console",
	})
}

func logFinalStats(log *zap.Logger, store storage.Storage, bus *events.Bus) {
	stats, err := store.MarketStats(context.Background())
	if err != nil {
		log.Warn("Failed to read final market statistics", zap.Error(err))
	} else {
		log.Info("Final market statistics",
			zap.Uint64("tokens", stats.TokenCount),
			zap.Uint64("graduated", stats.GraduatedCount),
			zap.Uint64("trades", stats.TradeCount),
			zap.String("total_volume", stats.TotalVolume.String()),
		)
	}

	published, delivered, dropped := bus.Stats()
	log.Info("Event bus statistics",
		zap.Uint64("published", published),
		zap.Uint64("delivered", delivered),
		zap.Uint64("dropped", dropped),
	)
}
