package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/clobcore/internal/api"
	"github.com/abdoElHodaky/clobcore/internal/api/handlers"
	"github.com/abdoElHodaky/clobcore/internal/api/websocket"
	"github.com/abdoElHodaky/clobcore/internal/config"
	"github.com/abdoElHodaky/clobcore/internal/db"
	"github.com/abdoElHodaky/clobcore/internal/db/repositories"
	"github.com/abdoElHodaky/clobcore/internal/events"
	"github.com/abdoElHodaky/clobcore/internal/matching"
	"github.com/abdoElHodaky/clobcore/internal/monitor"
	"github.com/abdoElHodaky/clobcore/internal/settlement"
	"github.com/abdoElHodaky/clobcore/internal/store"
)

const (
	appName    = "clobcore"
	appVersion = "v1.0.0"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config directory")
		version    = flag.Bool("version", false, "show version information")
	)
	flag.Parse()

	if *version {
		fmt.Printf("%s %s\n", appName, appVersion)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	gdb, sqlxDB, err := db.Open(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}

	marketRepo := repositories.NewMarketRepository(gdb, logger)
	orderRepo := repositories.NewOrderRepository(gdb, sqlxDB, logger)

	marketStore := store.NewMarketStore(marketRepo, logger)
	orderStore := store.NewOrderStore(marketStore, orderRepo, logger)
	tradeStore := store.NewTradeStore()

	ctx := context.Background()
	// Markets and orders are both restored before the matching engine and
	// HTTP server start, so no tick or request sees a partial restore.
	if err := marketStore.RestoreMarkets(ctx); err != nil {
		logger.Fatal("failed to restore markets", zap.Error(err))
	}
	if err := orderStore.RestoreFromPersistence(ctx); err != nil {
		logger.Fatal("failed to restore orders", zap.Error(err))
	}

	var chainClient settlement.ChainClient
	if cfg.SettlementEnabled() {
		chainClient = settlement.NewRestyChainClient(
			cfg.Stacks.APIURL,
			cfg.Stacks.CTFExchangeAddress,
			cfg.Stacks.ConditionalTokensAddress,
			cfg.Stacks.OperatorPrivateKey,
			logger,
		)
	}
	bridge := settlement.NewBridge(cfg, chainClient, logger)

	hub := websocket.NewHub(orderStore, logger)

	var tradePublisher matching.TradePublisher = hub
	if cfg.Messaging.NATSURL != "" {
		natsPublisher, err := events.NewPublisher(cfg.Messaging.NATSURL, logger)
		if err != nil {
			logger.Warn("failed to connect to NATS, trade events will only reach websocket subscribers", zap.Error(err))
		} else {
			defer natsPublisher.Close()
			tradePublisher = events.NewMultiPublisher(natsPublisher.PublishTrade, hub.PublishTrade)
		}
	}

	reg := prometheus.NewRegistry()
	engine, err := matching.NewEngine(
		matching.Config{TickInterval: cfg.Matching.TickInterval},
		marketStore, orderStore, tradeStore,
		bridge, tradePublisher, reg, logger,
	)
	if err != nil {
		logger.Fatal("failed to construct matching engine", zap.Error(err))
	}

	mon := monitor.New(cfg.Stacks.APIURL, cfg.Monitor.PollInterval, marketStore, orderStore, logger)

	h := handlers.New(marketStore, orderStore, tradeStore, orderRepo, bridge, logger)
	router := api.NewRouter(cfg, h, hub)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	runCtx, cancelRun := context.WithCancel(context.Background())
	engineDone := make(chan struct{})
	monDone := make(chan struct{})
	go func() { engine.Run(runCtx); close(engineDone) }()
	go func() { mon.Run(runCtx); close(monDone) }()

	server := &http.Server{
		Addr:    api.Addr(cfg),
		Handler: router,
	}

	go func() {
		logger.Info("starting HTTP server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancelRun() // let an in-flight matching tick and monitor poll finish, no new ones start
	<-engineDone
	<-monDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("shutdown complete")
}
