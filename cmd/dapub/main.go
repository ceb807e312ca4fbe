package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aescanero/dapub/internal/application/orchestrator"
	"github.com/aescanero/dapub/internal/application/workers"
	"github.com/aescanero/dapub/internal/config"
	"github.com/aescanero/dapub/pkg/adapters/events"
	memoryevents "github.com/aescanero/dapub/pkg/adapters/events/memory"
	redisevents "github.com/aescanero/dapub/pkg/adapters/events/redis"
	"github.com/aescanero/dapub/pkg/adapters/metrics/prometheus"
	"github.com/aescanero/dapub/pkg/adapters/publisher"
	"github.com/aescanero/dapub/pkg/adapters/publisher/s3stage"
	memorystorage "github.com/aescanero/dapub/pkg/adapters/storage/memory"
	redisstorage "github.com/aescanero/dapub/pkg/adapters/storage/redis"
	sqlitestorage "github.com/aescanero/dapub/pkg/adapters/storage/sqlite"
	"github.com/aescanero/dapub/pkg/api/grpc"
	"github.com/aescanero/dapub/pkg/api/http"
	"github.com/aescanero/dapub/pkg/api/websocket"
	"github.com/aescanero/dapub/pkg/domain"
	"github.com/aescanero/dapub/pkg/ports"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting publishing orchestrator",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("instance_id", cfg.InstanceID))

	ctx := context.Background()

	var redisClient *goredis.Client
	if cfg.UsesRedis() {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	stateStore, closeStore := newStateStore(cfg, redisClient, logger)

	var eventBus ports.EventBus
	switch cfg.Events.Backend {
	case "redis":
		eventBus = redisevents.NewStreamsEventBus(redisClient, cfg.Events.MaxLen, logger)
	default:
		eventBus = memoryevents.NewEventBus()
	}

	pub, err := publisher.NewPublisher(ctx, &publisher.Config{
		Provider:   cfg.Publisher.Provider,
		Endpoint:   cfg.Publisher.Endpoint,
		Token:      cfg.Publisher.Token,
		Timeout:    cfg.Publisher.Timeout,
		RetryCount: cfg.Publisher.RetryCount,
		Staging: s3stage.Config{
			Endpoint:  cfg.Staging.Endpoint,
			Region:    cfg.Staging.Region,
			AccessKey: cfg.Staging.AccessKey,
			SecretKey: cfg.Staging.SecretKey,
			UseSSL:    cfg.Staging.UseSSL,
			Bucket:    cfg.Staging.Bucket,
			PublicURL: cfg.Staging.PublicURL,
			Prefix:    cfg.Staging.Prefix,
		},
		Delay:  cfg.Publisher.DryRunDelay,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("failed to create publisher", zap.Error(err))
	}

	metricsCollector := prometheus.NewCollector()

	dispatcher := workers.NewDispatcher(
		cfg.Workers.SinkQueueSize,
		cfg.Workers.SinkDeliveryTimeout,
		metricsCollector,
		logger,
	)
	if err := dispatcher.Register("bus", events.NewBusSink(eventBus, cfg.Events.Topic)); err != nil {
		logger.Fatal("failed to register bus sink", zap.Error(err))
	}
	if err := dispatcher.Register("log", progressLogger(logger)); err != nil {
		logger.Fatal("failed to register log sink", zap.Error(err))
	}
	if err := dispatcher.Start(); err != nil {
		logger.Fatal("failed to start sink dispatcher", zap.Error(err))
	}

	orchestratorMgr := orchestrator.NewManager(
		stateStore,
		pub,
		dispatcher,
		metricsCollector,
		orchestrator.NewValidator(),
		logger,
		orchestrator.WithTickInterval(cfg.Run.TickInterval),
	)

	if _, err := orchestratorMgr.Recover(ctx); err != nil {
		logger.Error("failed to recover previous run", zap.Error(err))
	}

	healthMonitor := workers.NewHealthMonitor(
		orchestratorMgr,
		dispatcher,
		metricsCollector,
		cfg.Workers.HealthCheckInterval,
		cfg.Workers.StallThreshold,
		logger,
	)

	httpServer := http.NewServer(&http.Config{
		Addr:       cfg.GetHTTPAddr(),
		Runs:       orchestratorMgr,
		Health:     healthMonitor,
		Sinks:      dispatcher,
		EnableCORS: cfg.EnableCORS,
		Logger:     logger,
	})

	wsHandler := websocket.NewHandler(eventBus, cfg.Events.Topic, logger)
	httpServer.SetupWebSocket(wsHandler)

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Addr:   cfg.GetGRPCAddr(),
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("failed to create gRPC server", zap.Error(err))
	}
	grpcServer.SetServing(healthMonitor.IsHealthy())
	healthMonitor.OnChange(grpcServer.SetServing)
	healthMonitor.Start()

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	logger.Info("publishing orchestrator started",
		zap.String("http_addr", cfg.GetHTTPAddr()),
		zap.String("grpc_addr", cfg.GetGRPCAddr()),
		zap.String("state_backend", cfg.State.Backend),
		zap.String("events_backend", cfg.Events.Backend),
		zap.String("publisher", cfg.Publisher.Provider))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}

	healthMonitor.Stop()

	// an interrupted run keeps its snapshot for the next process to recover
	if err := orchestratorMgr.Shutdown(shutdownCtx); err != nil {
		logger.Error("orchestrator shutdown error", zap.Error(err))
	}

	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("sink dispatcher shutdown error", zap.Error(err))
	}

	if err := eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}

	closeStore()

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}

	logger.Info("publishing orchestrator shut down complete")
}

// newStateStore builds the configured snapshot store and its close function
func newStateStore(cfg *config.Config, redisClient *goredis.Client, logger *zap.Logger) (ports.StateStore, func()) {
	switch cfg.State.Backend {
	case "redis":
		return redisstorage.NewStateStore(redisClient, cfg.InstanceID, cfg.State.RedisTTL, logger), func() {}
	case "sqlite":
		db, err := sqlitestorage.Open(cfg.State.SQLitePath)
		if err != nil {
			logger.Fatal("failed to open sqlite state store", zap.Error(err))
		}
		logger.Info("using sqlite state store", zap.String("path", cfg.State.SQLitePath))
		return sqlitestorage.NewStateStore(db, cfg.InstanceID, logger), func() {
			if sqlDB, err := db.DB(); err == nil {
				if err := sqlDB.Close(); err != nil {
					logger.Error("sqlite close error", zap.Error(err))
				}
			}
		}
	default:
		logger.Warn("using in-memory state store, runs will not survive a restart")
		return memorystorage.NewStateStore(), func() {}
	}
}

// progressLogger logs every progress event
func progressLogger(logger *zap.Logger) ports.ProgressSink {
	return ports.ProgressSinkFunc(func(_ context.Context, event domain.ProgressEvent) error {
		fields := []zap.Field{
			zap.String("run_id", event.RunID),
			zap.String("kind", string(event.Kind)),
		}
		if event.Data.Index != nil {
			fields = append(fields, zap.Int("index", *event.Data.Index))
		}
		if event.Data.Remaining != nil {
			fields = append(fields, zap.Int("remaining", *event.Data.Remaining))
		}
		if event.Data.Message != "" {
			fields = append(fields, zap.String("message", event.Data.Message))
		}

		if event.Kind == domain.EventKindCountdownTick {
			logger.Debug("progress", fields...)
			return nil
		}
		logger.Info("progress", fields...)
		return nil
	})
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
