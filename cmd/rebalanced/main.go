package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"auction_rebalancer/internal/alert"
	"auction_rebalancer/internal/config"
	"auction_rebalancer/internal/core"
	"auction_rebalancer/internal/custody"
	"auction_rebalancer/internal/infrastructure/health"
	"auction_rebalancer/internal/infrastructure/metrics"
	"auction_rebalancer/internal/pricecurve"
	"auction_rebalancer/internal/rebalance"
	"auction_rebalancer/pkg/concurrency"
	"auction_rebalancer/pkg/liveserver"
	"auction_rebalancer/pkg/logging"
	"auction_rebalancer/pkg/telemetry"
)

var (
	// Version information (set via build flags)
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/rebalanced.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("rebalanced version %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	tel, err := telemetry.Setup("auction_rebalancer")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up telemetry: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewZapLogger(cfg.System.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting rebalanced", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Engine collaborators
	feePercentage, err := cfg.FeePercentage()
	if err != nil {
		logger.Fatal("Invalid fee percentage", "error", err)
	}
	registry := pricecurve.NewDefaultRegistry()
	transfer := custody.NewInMemoryTransferAgent()

	var store core.IRebalanceStore
	if cfg.Storage.Backend == "sqlite" {
		sqliteStore, err := rebalance.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			logger.Fatal("Failed to open sqlite store", "error", err, "path", cfg.Storage.SQLitePath)
		}
		store = sqliteStore
	} else {
		store = rebalance.NewMemoryStore()
	}
	defer store.Close()

	// Event fan-out: log everything, and feed the websocket hub off the
	// settlement path through a worker pool.
	sinks := rebalance.MultiSink{rebalance.NewLoggerSink(logger)}

	var hub *liveserver.Hub
	var server *liveserver.Server
	var pool *concurrency.WorkerPool
	if cfg.LiveServer.Enabled {
		hub = liveserver.NewHub(logger, 64)
		go hub.Run(ctx)

		pool = concurrency.NewWorkerPool(concurrency.PoolConfig{
			Name:        "EventBroadcastPool",
			MaxWorkers:  cfg.Concurrency.BroadcastPoolSize,
			MaxCapacity: cfg.Concurrency.BroadcastPoolBuffer,
			NonBlocking: true,
		}, logger)
		defer pool.Stop()

		hubSink := rebalance.FuncSink(func(_ context.Context, event core.Event) {
			hub.Broadcast(liveserver.NewMessage(event.EventType(), event))
		})
		sinks = append(sinks, rebalance.NewAsyncSink(pool, hubSink))
	}

	if cfg.Alerting.Enabled {
		alertManager := alert.NewAlertManager(logger)
		if cfg.Alerting.SlackWebhookURL != "" {
			alertManager.AddChannel(alert.NewSlackChannel(cfg.Alerting.SlackWebhookURL))
		}
		if cfg.Alerting.TelegramBotToken != "" {
			alertManager.AddChannel(alert.NewTelegramChannel(
				cfg.Alerting.TelegramBotToken, cfg.Alerting.TelegramChatID))
		}
		threshold, err := cfg.LargeBidThreshold()
		if err != nil {
			logger.Fatal("Invalid large bid threshold", "error", err)
		}
		sinks = append(sinks, alert.NewNotifier(alertManager, threshold))
	}

	engine := rebalance.NewEngine(rebalance.Config{
		Owner:         cfg.Engine.Owner,
		FeePercentage: feePercentage,
		FeeRecipient:  cfg.Engine.FeeRecipient,
	}, registry, transfer, logger,
		rebalance.WithStore(store),
		rebalance.WithEventSink(sinks),
	)
	logger.Info("Auction rebalance engine ready", "engine_id", engine.ID())

	if cfg.LiveServer.Enabled {
		server = liveserver.NewServer(hub, logger, []string{"*"})
		server.SetRateLimit(float64(cfg.LiveServer.RateLimitRPS), cfg.LiveServer.RateLimitBurst)
		registerViews(server, engine, store)

		go func() {
			if err := server.Start(ctx, cfg.LiveServer.ListenAddr); err != nil {
				logger.Error("Live server error", "error", err)
				cancel()
			}
		}()
	}

	var metricsServer *metrics.Server
	if cfg.Telemetry.EnableMetrics {
		checker := health.NewHealthManager(logger)
		checker.Register("store", func() error {
			_, err := store.ListBids(context.Background(), "", 1)
			return err
		})
		if cfg.LiveServer.Enabled {
			checker.Register("live_server", func() error {
				if !server.IsRunning() {
					return fmt.Errorf("not running")
				}
				return nil
			})
		}
		metricsServer = metrics.NewServer(cfg.Telemetry.MetricsPort, logger, checker)
		metricsServer.Start()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case <-sigChan:
		logger.Info("Received shutdown signal, gracefully shutting down...")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// The servers are independent; drain them in parallel inside the budget.
	var g errgroup.Group
	if server != nil {
		g.Go(func() error { return server.Stop(shutdownCtx) })
	}
	if metricsServer != nil {
		g.Go(func() error { return metricsServer.Stop(shutdownCtx) })
	}
	if err := g.Wait(); err != nil {
		logger.Error("Error during server shutdown", "error", err)
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during telemetry shutdown", "error", err)
	}

	logger.Info("rebalanced stopped")
}

// registerViews mounts the read-only rebalance API on the live server.
func registerViews(server *liveserver.Server, engine *rebalance.Engine, store core.IRebalanceStore) {
	writeJSON := func(w http.ResponseWriter, status int, body interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
	writeError := func(w http.ResponseWriter, err error) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	server.HandleFunc("/api/rebalance", func(w http.ResponseWriter, r *http.Request) {
		portfolio := r.URL.Query().Get("portfolio")
		info, err := engine.GetRebalanceInfo(portfolio)
		if err != nil {
			writeError(w, err)
			return
		}
		components, err := engine.GetRebalanceComponents(portfolio)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"portfolio":  portfolio,
			"info":       info,
			"components": components,
		})
	})

	server.HandleFunc("/api/auction", func(w http.ResponseWriter, r *http.Request) {
		portfolio := r.URL.Query().Get("portfolio")
		component := r.URL.Query().Get("component")
		size, err := engine.GetAuctionSizeAndDirection(portfolio, component)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"portfolio": portfolio,
			"component": component,
			"is_sell":   size.IsSell,
			"quantity":  size.Quantity,
		})
	})

	server.HandleFunc("/api/bids", func(w http.ResponseWriter, r *http.Request) {
		portfolio := r.URL.Query().Get("portfolio")
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		records, err := store.ListBids(r.Context(), portfolio, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, records)
	})
}
