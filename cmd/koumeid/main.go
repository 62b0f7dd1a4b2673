package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"koumei/internal/chain"
	"koumei/internal/config"
	cronrunner "koumei/internal/cron"
	"koumei/internal/db"
	"koumei/internal/handler"
	"koumei/internal/ledger"
	"koumei/internal/lmsr"
	"koumei/internal/logger"
	"koumei/internal/market"
	"koumei/internal/quorum"
	gormrepository "koumei/internal/repository/gorm"
)

func main() {
	cfgPath := os.Getenv("KM_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("KM_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if cfg.DB.Driver != "sqlite" {
		if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
			logger.Warn("failed to set timezone", zap.Error(err))
		}
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)
	balances := &ledger.BalanceLedger{Repo: store}

	seedGenesisBalances(logger, balances, cfg.Genesis)

	minMargin, err := decimal.NewFromString(cfg.Market.MinMargin)
	if err != nil {
		logger.Fatal("invalid market.min_margin", zap.Error(err))
	}

	pricing := lmsr.New(cfg.Market.Precision)
	marketLedger := &market.Ledger{
		Repo:      store,
		Balances:  balances,
		Pricing:   pricing,
		Logger:    logger,
		MinMargin: minMargin,
	}
	states := &market.StateMachine{
		Repo:           store,
		Logger:         logger,
		AnnouncePeriod: cfg.Chain.AnnouncePeriod,
		RevealWindow:   cfg.Chain.RevealWindow,
	}
	settler := &market.Settler{
		Repo:     store,
		Balances: balances,
		Logger:   logger,
	}
	delegates := quorum.NewRegistry(cfg.Chain.Delegates)
	clock := chain.NewClock(cfg.Chain.StartHeight)
	node := &chain.Node{
		Repo:      store,
		Ledger:    marketLedger,
		States:    states,
		Settler:   settler,
		Delegates: delegates,
		Clock:     clock,
		Logger:    logger,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	marketHandler := &handler.MarketHandler{
		Repo:    store,
		Pricing: pricing,
		Logger:  logger,
	}
	marketHandler.Register(engine)
	txHandler := &handler.TransactionHandler{Node: node, Logger: logger}
	txHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	spec := "@every " + cfg.Chain.BlockInterval.String()
	_, err = cronRunner.Add("block-tick", spec, func(ctx context.Context) {
		height := clock.Tick()
		if height%100 == 0 {
			logger.Debug("block height advanced", zap.Int64("height", height))
		}
	})
	if err != nil {
		logger.Warn("cron register block tick failed", zap.Error(err))
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func seedGenesisBalances(logger *zap.Logger, balances *ledger.BalanceLedger, genesis config.GenesisConfig) {
	for _, entry := range genesis.Balances {
		amount, err := decimal.NewFromString(entry.Amount)
		if err != nil {
			logger.Warn("invalid genesis balance amount",
				zap.String("address", entry.Address),
				zap.String("amount", entry.Amount),
			)
			continue
		}
		current, err := balances.Repo.GetBalance(context.Background(), entry.Address, entry.Currency)
		if err != nil {
			logger.Warn("genesis balance lookup failed", zap.Error(err))
			continue
		}
		if !current.IsZero() {
			continue
		}
		if err := balances.Deposit(context.Background(), entry.Address, entry.Currency, amount); err != nil {
			logger.Warn("genesis balance seed failed",
				zap.String("address", entry.Address),
				zap.Error(err),
			)
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
