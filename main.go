package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arrxxhh/Payment-gateway/cache"
	"github.com/arrxxhh/Payment-gateway/common/logger"
	commonmw "github.com/arrxxhh/Payment-gateway/common/middleware"
	"github.com/arrxxhh/Payment-gateway/config"
	"github.com/arrxxhh/Payment-gateway/controllers"
	"github.com/arrxxhh/Payment-gateway/database"
	"github.com/arrxxhh/Payment-gateway/middleware"
	aws_pkg "github.com/arrxxhh/Payment-gateway/pkg/aws"
	"github.com/arrxxhh/Payment-gateway/routes"
	"github.com/arrxxhh/Payment-gateway/security"
	"github.com/arrxxhh/Payment-gateway/services"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const serviceName = "ledger-service"

func main() {
	_ = godotenv.Load()
	decimal.MarshalJSONWithoutQuotes = true

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Config load failed: %v", err)
	}
	if err := cfg.ValidateAuth(); err != nil {
		log.Fatalf("Config load failed: %v", err)
	}

	// --- AWS setup (non-fatal: only some drivers need it) ---
	awsCfg, awsErr := aws_pkg.LoadAWSConfig(context.Background())

	var cwWriter *aws_pkg.CloudWatchLogsClient
	if cfg.CloudWatchEnabled && awsErr == nil {
		cwWriter, err = aws_pkg.NewCloudWatchLogsClient(context.Background(), awsCfg, serviceName)
		if err != nil {
			log.Printf("CloudWatch Logs disabled: %v", err)
		} else {
			defer cwWriter.Close()
		}
	}

	var zl *zap.Logger
	if cwWriter != nil {
		zl, err = logger.New(cfg.Env, cwWriter)
	} else {
		zl, err = logger.New(cfg.Env, nil)
	}
	if err != nil {
		log.Fatalf("Logger init failed: %v", err)
	}
	defer zl.Sync()

	if awsErr != nil {
		zl.Warn("AWS config unavailable, AWS-backed features disabled", zap.Error(awsErr))
	}
	if cfg.TrustGatewayHeaders {
		zl.Warn("Trusting gateway identity headers, only safe behind a token-verifying gateway")
	}

	cipher, err := security.NewFieldCipher(cfg.AESKeyHex, cfg.AESIVHex)
	if err != nil {
		zl.Fatal("Invalid encryption material", zap.Error(err))
	}

	loc, err := cfg.Location()
	if err != nil {
		zl.Fatal("Invalid LEDGER_TIMEZONE", zap.String("zone", cfg.LedgerTimezone), zap.Error(err))
	}

	// --- Store ---
	store, err := database.OpenLedgerStore(cfg, cfg.StoreDriver, awsCfg, awsErr, zl)
	if err != nil {
		zl.Fatal("Store init failed", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer store.Close()

	// --- Analytics cache (optional) ---
	var analyticsCache *cache.AnalyticsCache
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			zl.Warn("Redis unavailable, analytics are computed uncached", zap.Error(err))
		} else {
			defer redisClient.Close()
			analyticsCache = cache.NewAnalyticsCache(redisClient, cfg.AnalyticsCacheTTL, zl)
		}
	}

	// --- Event bus ---
	publisher, closePublisher, err := buildPublisher(cfg, awsCfg, awsErr, zl)
	if err != nil {
		zl.Fatal("Event bus init failed", zap.Error(err))
	}
	defer closePublisher()

	var metricsClient *aws_pkg.MetricsClient
	if awsErr == nil {
		metricsClient = aws_pkg.NewMetricsClient(awsCfg)
	}

	// --- Dependency injection ---
	opts := []services.LedgerOption{
		services.WithPaymentLinkBase(cfg.PaymentLinkBase),
		services.WithLocation(loc),
		services.WithMetrics(metricsClient),
		services.WithCacheInvalidator(analyticsCache),
	}
	if publisher != nil {
		opts = append(opts, services.WithPublisher(publisher))
	}
	policy := services.NewSimulatedOutcomePolicy(nil, cfg.HighValueThreshold, cfg.RiskNoiseRate)
	ledgerService := services.NewLedgerService(store.Repo, cipher, policy, zl, opts...)
	analyticsService := services.NewAnalyticsService(store.Repo, services.NewAggregator(cipher, loc), analyticsCache, zl)

	var objectStore services.ObjectStore
	if awsErr == nil && cfg.ExportBucket != "" {
		objectStore = aws_pkg.NewS3ObjectStore(awsCfg)
	}
	exportService := services.NewExportService(ledgerService, objectStore, cfg.ExportBucket, zl)

	ctx, stopConsumers := context.WithCancel(context.Background())
	defer stopConsumers()
	if cfg.CheckoutRequestQueueURL != "" && awsErr == nil {
		poller := aws_pkg.NewSQSConsumer(awsCfg, cfg.CheckoutRequestQueueURL, zl)
		go services.NewCheckoutRequestConsumer(poller, ledgerService, zl).Start(ctx)
	}

	// --- HTTP router ---
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(commonmw.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(commonmw.SecurityHeaders())
	r.Use(commonmw.RequestID())
	r.Use(commonmw.RequestLogger(zl))
	r.Use(commonmw.MetricsMiddleware(metricsClient, serviceName))

	// Request timeout middleware
	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": serviceName, "store": cfg.StoreDriver})
	})

	limiter := commonmw.DefaultRateLimiter()
	stopSweeper := make(chan struct{})
	go limiter.RunSweeper(stopSweeper)
	defer close(stopSweeper)

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(cfg.JWTSecret, cfg.TrustGatewayHeaders), commonmw.RateLimitMiddleware(limiter))
	routes.RegisterLedgerRoutes(api, controllers.NewTransactionController(ledgerService, exportService))
	routes.RegisterAnalyticsRoutes(api, controllers.NewAnalyticsController(analyticsService))

	// --- HTTP server ---
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		zl.Info("Ledger Service started", zap.String("port", cfg.Port), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("Initiating graceful shutdown...")
	stopConsumers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("Server shutdown error", zap.Error(err))
	}

	zl.Info("Ledger Service stopped gracefully")
}
