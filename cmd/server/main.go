package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoStakeVault/stakegate/internal/asset"
	"github.com/GoStakeVault/stakegate/internal/config"
	"github.com/GoStakeVault/stakegate/internal/handler"
	"github.com/GoStakeVault/stakegate/internal/ledger"
	"github.com/GoStakeVault/stakegate/internal/middleware"
	"github.com/GoStakeVault/stakegate/internal/pkg/logger"
	"github.com/GoStakeVault/stakegate/internal/repository"
	"github.com/GoStakeVault/stakegate/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

func main() {
	// 0. Initialize Logger
	logger.Init("info")

	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Initialize Persistence
	// Usage / Events / Idempotency (Redis > Memory)
	var usageRepo service.UsageRepo
	var redisClient *repository.RedisClient
	if cfg.Redis.Addr != "" {
		redisClient, err = repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("✅ Connected to Redis")
			usageRepo = redisClient
		} else {
			logger.Error("⚠️ Failed to connect to Redis, falling back to memory", "error", err)
			redisClient = nil
		}
	}
	if usageRepo == nil {
		usageRepo = service.NewStakeUsageStore()
	}

	// Ledger snapshots and event journal (Postgres > memory/file-only)
	var snapshots ledger.Snapshotter
	var eventRepos []service.EventRepo
	var idempotencyStore middleware.IdempotencyStore
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err == nil {
			logger.Info("✅ Connected to PostgreSQL")
			snapshots = repository.NewPostgresSnapshotRepo(db)
			idempotencyStore = repository.NewPostgresIdempotencyStore(db)
			if gormRepo, err := repository.NewGormEventRepo(db); err == nil {
				eventRepos = append(eventRepos, gormRepo)
			} else {
				logger.Error("⚠️ Failed to initialize event journal", "error", err)
			}
		} else {
			logger.Error("⚠️ Failed to connect to DB, ledger state will not survive restarts", "error", err)
		}
	}
	if redisClient != nil {
		eventRepos = append(eventRepos, repository.NewRedisEventRepo(redisClient, cfg.Redis.EventListKey, cfg.Redis.EventListMax))
		if idempotencyStore == nil {
			idempotencyStore = repository.NewRedisIdempotencyStore(redisClient, time.Duration(cfg.Redis.IdempotencyTTLSeconds)*time.Second)
		}
	}
	if idempotencyStore == nil {
		idempotencyStore = middleware.NewInMemIdempotencyStore()
	}

	// 3. Initialize Core Services
	// Asset backend (on-chain ERC-20 > internal vault)
	var transferrer asset.Transferrer
	var vault *asset.Vault
	if cfg.Chain.RPCURL != "" {
		erc20, err := asset.NewERC20Transferrer(
			cfg.Chain.RPCURL,
			cfg.Chain.TokenAddress,
			cfg.Chain.PrivateKey,
			cfg.Chain.ChainID,
			time.Duration(cfg.Chain.TimeoutMs)*time.Millisecond,
		)
		if err != nil {
			log.Fatalf("Failed to initialize ERC-20 transferrer: %v", err)
		}
		logger.Info("✅ Connected to chain RPC", "token", cfg.Chain.TokenAddress)
		transferrer = erc20
	} else {
		vault = asset.NewVault()
		transferrer = vault
	}

	eventSvc, err := service.NewEventService(cfg.Events.Dir, eventRepos...)
	if err != nil {
		log.Fatalf("Failed to initialize event service: %v", err)
	}

	book := ledger.New(ledger.Params{
		Owner:           cfg.Ledger.Owner,
		CooldownSeconds: cfg.Ledger.CooldownSeconds,
		Transferrer:     transferrer,
		Notifier:        eventSvc,
		Snapshots:       snapshots,
	})

	// Restore persisted state, then apply config seeds on top.
	if snapshots != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if snap, err := snapshots.Load(ctx); err != nil {
			logger.Error("⚠️ Failed to load ledger snapshot, starting empty", "error", err)
		} else if snap != nil {
			book.Restore(snap)
			logger.Info("Restored ledger snapshot", "records", len(snap.Records))
		}
		cancel()
	}
	for _, tier := range cfg.Ledger.Tiers {
		if err := book.ModifyTier(book.Owner(), tier.ID, tier.RewardRateBps, tier.LockDurationSeconds); err != nil {
			log.Fatalf("Failed to seed tier %d: %v", tier.ID, err)
		}
	}
	for _, seed := range cfg.Accounts {
		if seed.AllowListed {
			if err := book.UpdateAllowListStatus(book.Owner(), seed.Address, true); err != nil {
				log.Fatalf("Failed to allow-list account %s: %v", seed.Address, err)
			}
		}
		if vault != nil && seed.Balance != "" {
			balance, err := decimal.NewFromString(seed.Balance)
			if err != nil {
				log.Fatalf("Invalid balance for account %s: %v", seed.Address, err)
			}
			vault.Mint(seed.Address, balance)
		}
	}

	registry := service.NewAccountRegistry(cfg)

	// 4. Initialize Handlers
	stakeHandler := handler.NewStakeHandler(book, usageRepo)
	adminHandler := handler.NewAdminHandler(book, registry)
	eventHandler := handler.NewEventHandler(eventSvc)

	// 5. Setup Router
	r := gin.Default()

	// Global Middleware
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.AuditMiddleware())

	// Health Check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "stakegate"})
	})

	// Metrics Endpoint
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// API V1 Routes
	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg, registry))
	v1.Use(middleware.RateLimitMiddleware(registry))
	v1.Use(middleware.IdempotencyMiddleware(idempotencyStore))
	v1.Use(middleware.ReadOnlyMiddleware(cfg.Server.ReadOnly))
	{
		v1.POST("/stakes", stakeHandler.PlaceStake)
		v1.POST("/withdrawals", stakeHandler.Withdraw)
		v1.GET("/stakes/:account/:tier", stakeHandler.GetStakeDetails)
		v1.GET("/tiers/:id", stakeHandler.GetTier)
	}

	// Owner-only routes
	admin := r.Group("/v1/admin")
	admin.Use(middleware.AdminMiddleware(cfg))
	{
		admin.PUT("/tiers/:id", adminHandler.ModifyTier)
		admin.PUT("/allowlist/:account", adminHandler.UpdateAllowList)
		admin.POST("/accounts", adminHandler.RegisterAccount)
		admin.GET("/accounts", adminHandler.ListAccounts)
		admin.GET("/events", eventHandler.List)
		admin.GET("/events/stream", eventHandler.Stream)
	}

	// 6. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("🚀 StakeGate started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	// In-flight requests are done; flush the persist worker and event sinks.
	book.Close()
	eventSvc.Close()

	logger.Info("Server exiting")
}
