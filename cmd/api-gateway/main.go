package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/doc-control-api/api/swagger"
	"github.com/noah-isme/doc-control-api/internal/handler"
	internalmiddleware "github.com/noah-isme/doc-control-api/internal/middleware"
	"github.com/noah-isme/doc-control-api/internal/repository"
	"github.com/noah-isme/doc-control-api/internal/service"
	"github.com/noah-isme/doc-control-api/pkg/cache"
	"github.com/noah-isme/doc-control-api/pkg/config"
	"github.com/noah-isme/doc-control-api/pkg/database"
	"github.com/noah-isme/doc-control-api/pkg/jobs"
	"github.com/noah-isme/doc-control-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/doc-control-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/doc-control-api/pkg/middleware/requestid"
	"github.com/noah-isme/doc-control-api/pkg/storage"
)

// @title Document Control API
// @version 1.0.0
// @description Engineering document approval, versioning and distribution service
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close()

	fileBaseURL := cfg.PublicURL + cfg.APIPrefix + "/files"
	objects, localObjects, err := storage.New(ctx, cfg.Storage, fileBaseURL)
	if err != nil {
		logr.Fatal("failed to init object storage", zap.Error(err), zap.String("driver", cfg.Storage.Driver))
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	txManager := repository.NewTxManager(db)
	userRepo := repository.NewUserRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	flowRepo := repository.NewApprovalFlowRepository(db)
	recordRepo := repository.NewApprovalRecordRepository(db)
	distributionRepo := repository.NewDistributionRepository(db)
	operationLogRepo := repository.NewOperationLogRepository(db)
	sessionRepo := repository.NewUploadSessionRepository(redisClient)
	cacheRepo := repository.NewCacheRepository(redisClient)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled)
	operationLogSvc := service.NewOperationLogService(operationLogRepo, logr)

	var channels []service.NotificationChannel
	if cfg.Notification.EmailEnabled {
		email, err := service.NewEmailChannel(cfg.Notification, logr)
		if err != nil {
			logr.Fatal("failed to init email channel", zap.Error(err), zap.String("smtp_host", cfg.Notification.SMTPHost))
		}
		channels = append(channels, email)
	}
	if cfg.Notification.SMSEnabled {
		channels = append(channels, service.NewMockChannel(service.ChannelSMS, logr))
	}
	notificationSvc := service.NewNotificationService(userRepo, channels, metricsSvc, logr)
	notificationQueue := jobs.NewQueue("notifications", notificationSvc.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Queue.Workers,
		BufferSize: cfg.Queue.BufferSize,
		MaxRetries: cfg.Queue.MaxRetries,
		RetryDelay: cfg.Queue.RetryDelay,
		Logger:     logr,
		OnGiveUp:   notificationSvc.OnGiveUp,
	})
	notificationSvc.AttachQueue(notificationQueue)
	// Outlives the signal context so requests drained by Shutdown can still enqueue.
	queueCtx, stopQueue := context.WithCancel(context.Background())
	notificationQueue.Start(queueCtx)

	flowSvc := service.NewFlowService(txManager, flowRepo, cfg.Flows.Dir, cfg.Flows.DisableStale, logr)
	if cfg.Flows.SyncOnStart {
		if synced, err := flowSvc.Sync(ctx); err != nil {
			logr.Warn("approval flow sync failed, keeping stored flows", zap.Error(err), zap.String("dir", cfg.Flows.Dir))
		} else {
			logr.Info("approval flows synced", zap.Int("count", synced))
		}
	}
	if err := cacheSvc.Invalidate(ctx, service.VersionListPattern()); err != nil {
		logr.Warn("failed to drop stale version listings", zap.Error(err))
	}

	sequencer := service.NewApprovalSequencer(recordRepo, service.NewRoleResolver(userRepo))
	selector := service.NewFlowSelector(flowRepo, logr)
	lifecycleSvc := service.NewLifecycleService(txManager, documentRepo, recordRepo, selector, sequencer, logr,
		service.WithLifecycleNotifier(notificationSvc),
		service.WithLifecycleOperationLog(operationLogSvc),
		service.WithLifecycleMetrics(metricsSvc),
		service.WithLifecycleCache(cacheSvc),
	)

	authSvc := service.NewAuthService(userRepo, operationLogSvc, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	uploadSvc := service.NewUploadService(objects, sessionRepo, documentRepo, operationLogSvc, service.UploadPolicy{
		AllowedTypes: cfg.Storage.AllowedTypes,
		MaxFileSize:  cfg.Storage.MaxFileSize,
		SessionTTL:   cfg.Storage.UploadTTL,
	}, validate, logr)
	documentSvc := service.NewDocumentService(documentRepo, objects, cfg.Storage.DownloadTTL, metricsSvc, logr)
	versionSvc := service.NewVersionService(documentRepo, sessionRepo, lifecycleSvc, cacheSvc, operationLogSvc, validate, logr)
	distributionSvc := service.NewDistributionService(service.DistributionDeps{
		Tx:           txManager,
		Documents:    documentRepo,
		Store:        distributionRepo,
		Directory:    userRepo,
		Files:        objects,
		DownloadTTL:  cfg.Storage.DownloadTTL,
		Notifier:     notificationSvc,
		OperationLog: operationLogSvc,
		Metrics:      metricsSvc,
		Validator:    validate,
		Logger:       logr,
	})

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	})
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	var fileHandler *handler.FileHandler
	if localObjects != nil {
		fileHandler = handler.NewFileHandler(localObjects, cfg.Storage.MaxFileSize, logr)
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeHandlers{
		auth:         handler.NewAuthHandler(authSvc),
		upload:       handler.NewUploadHandler(uploadSvc),
		document:     handler.NewDocumentHandler(documentSvc),
		approval:     handler.NewApprovalHandler(lifecycleSvc),
		distribution: handler.NewDistributionHandler(distributionSvc, lifecycleSvc),
		version:      handler.NewVersionHandler(versionSvc),
		logs:         handler.NewLogHandler(operationLogSvc),
		files:        fileHandler,
	}, authSvc)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		logr.Fatal("failed to listen", zap.Error(err), zap.String("addr", srv.Addr))
	}
	logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "storage", cfg.Storage.Driver)
	if err := serve(ctx, srv, ln, 15*time.Second, logr, stopQueue, notificationQueue.Stop); err != nil {
		logr.Error("server stopped", zap.Error(err))
	}
}
