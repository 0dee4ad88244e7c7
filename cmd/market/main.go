package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/example/agrimarket/gateway"
	"github.com/example/agrimarket/pkg/catalog"
	"github.com/example/agrimarket/pkg/config"
	"github.com/example/agrimarket/pkg/discovery"
	"github.com/example/agrimarket/pkg/dispute"
	"github.com/example/agrimarket/pkg/lifecycle"
	"github.com/example/agrimarket/pkg/matching"
	"github.com/example/agrimarket/pkg/notify"
	"github.com/example/agrimarket/pkg/pricing"
	"github.com/example/agrimarket/pkg/repository"
	"github.com/example/agrimarket/pkg/store"
)

func main() {
	configPath := "config/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	logger, err := buildLogger(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting market service",
		zap.String("name", cfg.Server.Name),
		zap.Int("port", cfg.Server.Port))

	// Entity store, constructed once for the process lifetime
	st := store.New()

	// Seed the external catalog
	if cfg.Market.CatalogPath != "" {
		snap, err := catalog.Load(cfg.Market.CatalogPath, st)
		if err != nil {
			logger.Fatal("Failed to load catalog", zap.Error(err))
		}
		logger.Info("Catalog loaded",
			zap.Int("products", len(snap.Products)),
			zap.Int("users", len(snap.Users)),
			zap.Int("inventory", len(snap.Inventory)))
	}

	// Notification actor
	notifier, err := notify.NewActorSender(st, logger)
	if err != nil {
		logger.Fatal("Failed to start notifier", zap.Error(err))
	}
	defer notifier.Shutdown()

	ctx := context.Background()

	// Optional side-channels
	var cache *repository.RedisRepository
	if cfg.Redis.Enabled {
		cache = repository.NewRedisRepository(&cfg.Redis)
		defer cache.Close()
		if err := cache.Ping(ctx); err != nil {
			logger.Warn("Redis connection failed", zap.Error(err))
		} else {
			logger.Info("Redis connected successfully")
		}
	}

	var audit *repository.MongoRepository
	if cfg.MongoDB.Enabled {
		audit, err = repository.NewMongoRepository(&cfg.MongoDB)
		if err != nil {
			logger.Warn("MongoDB connection failed, audit trail disabled", zap.Error(err))
			audit = nil
		} else {
			defer audit.Close(ctx)
		}
	}

	var archive *repository.OrderArchive
	if cfg.MySQL.Enabled {
		archive, err = repository.NewOrderArchive(&cfg.MySQL)
		if err != nil {
			logger.Warn("MySQL connection failed, order archive disabled", zap.Error(err))
			archive = nil
		}
	}

	// Engines
	lifecycleOpts := []lifecycle.Option{lifecycle.WithLogisticsFee(cfg.Market.LogisticsFee)}
	disputeOpts := []dispute.Option{}
	pricingOpts := []pricing.Option{}
	if cache != nil {
		lifecycleOpts = append(lifecycleOpts, lifecycle.WithCache(cache))
	}
	if audit != nil {
		lifecycleOpts = append(lifecycleOpts, lifecycle.WithAudit(audit))
		disputeOpts = append(disputeOpts, dispute.WithAudit(audit))
		pricingOpts = append(pricingOpts, pricing.WithAudit(audit))
	}
	if archive != nil {
		lifecycleOpts = append(lifecycleOpts, lifecycle.WithArchive(archive))
	}

	gw := gateway.New(cfg, logger, gateway.Deps{
		Store:     st,
		Cache:     cache,
		Lifecycle: lifecycle.New(st, logger.Named("lifecycle"), notifier, lifecycleOpts...),
		Dispute:   dispute.New(st, logger.Named("dispute"), notifier, disputeOpts...),
		Pricing:   pricing.New(st, logger.Named("pricing"), notifier, pricingOpts...),
		Matching:  matching.New(st, logger.Named("matching")),
	})
	gw.SetupRoutes()

	// Service discovery
	instance := &discovery.ServiceInstance{
		Name: cfg.Server.Name,
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}
	sd, err := discovery.NewServiceDiscovery(&cfg.Etcd)
	if err != nil {
		logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		sd = nil
	} else {
		if err := sd.Register(ctx, instance); err != nil {
			logger.Warn("Failed to register service", zap.Error(err))
		} else {
			logger.Info("Service registered in etcd",
				zap.String("name", cfg.Server.Name),
				zap.String("address", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)))
		}
	}

	// Start gateway in goroutine
	gwErr := make(chan error, 1)
	go func() {
		if err := gw.Start(); err != nil {
			gwErr <- err
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case err := <-gwErr:
		logger.Fatal("Gateway error", zap.Error(err))
	}

	if sd != nil {
		if err := sd.Deregister(ctx, instance); err != nil {
			logger.Error("Failed to deregister service", zap.Error(err))
		}
		sd.Close()
	}

	logger.Info("Service stopped")
}

func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Level != "" {
		lvl, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	if cfg.Encoding != "" {
		zcfg.Encoding = cfg.Encoding
	}
	if len(cfg.OutputPaths) > 0 {
		zcfg.OutputPaths = cfg.OutputPaths
	}
	return zcfg.Build()
}
