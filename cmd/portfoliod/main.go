package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"defi_portfolio/internal/cache"
	"defi_portfolio/internal/client"
	"defi_portfolio/internal/config"
	"defi_portfolio/internal/entity"
	"defi_portfolio/internal/metrics"
	"defi_portfolio/internal/pkg/utils"
	"defi_portfolio/internal/port"
	"defi_portfolio/internal/provider"
	"defi_portfolio/internal/queue"
	"defi_portfolio/internal/repository"
	"defi_portfolio/internal/restapi"
	"defi_portfolio/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debugf("No .env file loaded: %v", err)
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		logrus.Fatalf("Failed to initialize zap logger: %v", err)
	}
	defer zapLogger.Sync()

	slogHandler := zapslog.NewHandler(zapLogger.Core(), &zapslog.HandlerOptions{})
	slog.SetDefault(slog.New(slogHandler))

	cfgPath := utils.GetEnv("CONFIG_PATH", "config/config.yaml")
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Logging.Level != "" {
		if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
			logrus.SetLevel(level)
		} else {
			logrus.Warnf("Invalid log level in config: %s, keeping default", cfg.Logging.Level)
		}
	}
	zapLogger.Info("Configuration loaded", zap.String("path", cfgPath))

	metrics.MustRegisterMetrics()

	// Optional distributed cache layer. An unreachable Redis degrades the
	// store to memory-only, it never blocks startup.
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			zapLogger.Warn("Redis unreachable, cache runs memory-only", zap.Error(err))
			redisClient = nil
		}
		cancel()
	}

	store := cache.NewStore(redisClient, cache.Options{
		DefaultExpiration: time.Duration(cfg.Cache.DefaultExpirationMinutes) * time.Minute,
		CleanupInterval:   time.Duration(cfg.Cache.CleanupIntervalMinutes) * time.Minute,
		MaxConcurrentOps:  int64(cfg.Cache.MaxConcurrentOps),
		KeyPrefix:         cfg.Redis.KeyPrefix,
	}, zapLogger)

	registryStore := repository.NewInMemoryRegistryStore()

	verifiedRepo := repository.NewVerifiedTokenRepository(store, registryStore,
		time.Duration(cfg.Registry.VerifiedTTLMinutes)*time.Minute, zapLogger)
	unlistedRepo := repository.NewUnlistedTokenRepository(store, registryStore,
		time.Duration(cfg.Registry.UnlistedTTLMinutes)*time.Minute, zapLogger)
	metadataRepo := repository.NewTokenMetadataRepository(store, registryStore,
		time.Duration(cfg.Registry.MetadataTTLMinutes)*time.Minute, zapLogger)

	metaQueue := queue.NewMetadataQueue(cfg.Queue.Capacity, zapLogger)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()
	for i := 0; i < cfg.Queue.Workers; i++ {
		worker := queue.NewWorker(metaQueue, registryStore, metadataRepo,
			time.Duration(cfg.Queue.LatencyWarnMillis)*time.Millisecond,
			cfg.Queue.MaxRetries, zapLogger)
		go worker.Run(rootCtx)
	}
	zapLogger.Info("Metadata write workers started", zap.Int("workers", cfg.Queue.Workers))

	platforms := make(map[entity.Network]string, len(cfg.Networks))
	for _, node := range cfg.Networks {
		if node.PricingPlatformID != "" {
			platforms[entity.Network(node.Identifier)] = node.PricingPlatformID
		}
	}
	pricingClient := client.NewPricingClient(cfg.Pricing.BaseURL, cfg.Pricing.APIKey,
		time.Duration(cfg.Pricing.RequestTimeoutMillis)*time.Millisecond, platforms, zapLogger)
	authorityClient := client.NewAuthorityClient(cfg.Authority.BaseURL, cfg.Authority.APIKey,
		time.Duration(cfg.Authority.RequestTimeoutMillis)*time.Millisecond, zapLogger)

	verificationSvc := service.NewVerificationService(verifiedRepo, unlistedRepo,
		authorityClient, metaQueue, cfg.Verification, zapLogger)
	enrichmentSvc := service.NewPriceEnrichmentService(pricingClient, verificationSvc, cfg, zapLogger)
	transformer := service.NewPortfolioTransformer(service.NewNetworkMetadataLookup(cfg), zapLogger)

	var providers []port.PositionProvider
	if cfg.Providers.Debank.Enabled {
		debankClient := client.NewDebankClient(cfg.Providers.Debank.BaseURL, cfg.Providers.Debank.APIKey,
			time.Duration(cfg.Providers.Debank.RequestTimeoutMillis)*time.Millisecond, zapLogger)
		providers = append(providers, provider.NewDebankAdapter(debankClient, cfg, zapLogger))
	}
	if cfg.Providers.Zerion.Enabled {
		zerionClient := client.NewZerionClient(cfg.Providers.Zerion.BaseURL, cfg.Providers.Zerion.APIKey,
			time.Duration(cfg.Providers.Zerion.RequestTimeoutMillis)*time.Millisecond, zapLogger)
		providers = append(providers, provider.NewZerionAdapter(zerionClient, cfg, zapLogger))
	}
	if len(providers) == 0 {
		zapLogger.Warn("No position providers enabled; DeFi endpoints will reject all requests")
	}

	portfolioSvc := service.NewPortfolioService(providers, enrichmentSvc, transformer, cfg, zapLogger)

	evmProvider := client.NewEVMClientProvider(cfg, zapLogger)
	walletSvc := service.NewWalletBalanceService(evmProvider, metadataRepo, verificationSvc,
		pricingClient, store, cfg, zapLogger)

	router := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))
	router.Use(restapi.ZapLoggerMiddleware(zapLogger))
	router.Use(gin.Recovery())

	handler := restapi.NewPortfolioHandler(portfolioSvc, walletSvc, verificationSvc, zapLogger)
	restapi.SetupRouter(router, handler)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	pprofRouter := router.Group("/debug/pprof")
	{
		pprofRouter.GET("/", gin.WrapF(pprof.Index))
		pprofRouter.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		pprofRouter.GET("/profile", gin.WrapF(pprof.Profile))
		pprofRouter.POST("/symbol", gin.WrapF(pprof.Symbol))
		pprofRouter.GET("/symbol", gin.WrapF(pprof.Symbol))
		pprofRouter.GET("/trace", gin.WrapF(pprof.Trace))
		pprofRouter.GET("/allocs", gin.WrapH(pprof.Handler("allocs")))
		pprofRouter.GET("/goroutine", gin.WrapH(pprof.Handler("goroutine")))
		pprofRouter.GET("/heap", gin.WrapH(pprof.Handler("heap")))
		pprofRouter.GET("/mutex", gin.WrapH(pprof.Handler("mutex")))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		zapLogger.Info(fmt.Sprintf("Server starting on %s", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	rootCancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		zapLogger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	zapLogger.Info("Server exiting")
}
