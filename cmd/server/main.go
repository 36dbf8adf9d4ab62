package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"order-console/config"
	"order-console/internal/api"
	"order-console/internal/broker"
	"order-console/internal/dashboard"
	"order-console/internal/feed"
	"order-console/internal/redisclient"
	"order-console/internal/service"
	"order-console/internal/store"
	"order-console/internal/util"
	"order-console/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting order console",
		zap.String("store", cfg.Store.Driver),
		zap.String("transport", cfg.Feed.Transport),
	)

	tp, err := util.InitTracer("order-console", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Store.Driver, cfg.Store.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(migrateCtx); err != nil {
		migrateCancel()
		log.Fatalf("Failed to migrate database: %v", err)
	}
	migrateCancel()
	logger.Info("Database connected")

	changes := feed.NewFeed(db,
		feed.WithPollInterval(cfg.Feed.PollInterval),
		feed.WithReadTimeout(cfg.Feed.ReadTimeout),
		feed.WithErrorHandler(func(collection string, err error) {
			logger.Warn("Dashboard data may be stale",
				zap.String("collection", collection),
				zap.Error(err),
			)
		}),
	)
	defer changes.Close()

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var stopWorker func() error
	switch cfg.Feed.Transport {
	case config.TransportKafka:
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicChanges)
		defer producer.Close()
		// own writes wake the local feed even if publishing fails
		db.SetNotifier(store.Notifiers{changes, broker.NewEventPublisher(producer)})

		// every console instance must see every change, so groups are per process
		group := fmt.Sprintf("%s-%s", cfg.Kafka.ConsumerGroup, uuid.NewString())
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicChanges, group)
		changeWorker := worker.NewChangeWorker(consumer, changes)
		stopWorker = changeWorker.Stop
		go func() {
			if err := changeWorker.Start(workerCtx); err != nil {
				logger.Error("Change worker error", zap.Error(err))
			}
		}()
		logger.Info("Kafka change stream initialized", zap.String("group", group))

	case config.TransportAMQP:
		mq, err := broker.NewAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		db.SetNotifier(store.Notifiers{changes, mq})

		changeWorker := worker.NewAMQPChangeWorker(mq, changes)
		stopWorker = mq.Close
		go func() {
			if err := changeWorker.Start(workerCtx); err != nil {
				logger.Error("Change worker error", zap.Error(err))
			}
		}()
		logger.Info("RabbitMQ change stream initialized", zap.String("exchange", cfg.AMQP.Exchange))

	default:
		db.SetNotifier(changes)
	}

	catalogOpts := []service.CatalogOption{}
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, product creation is not idempotent", zap.Error(err))
	} else {
		defer redisClient.Close()
		catalogOpts = append(catalogOpts, service.WithIdempotency(redisClient, cfg.Redis.IdempotencyTTL))
		logger.Info("Redis connected")
	}

	statusController := service.NewOrderStatusController(db, cfg.Collections.Orders)
	catalogController := service.NewCatalogController(db, cfg.Collections.Products, catalogOpts...)

	dash := dashboard.NewDashboard(changes, dashboard.Collections{
		Orders:   cfg.Collections.Orders,
		Products: cfg.Collections.Products,
	})
	if err := dash.Start(); err != nil {
		log.Fatalf("Failed to start dashboard: %v", err)
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	handler := api.NewHandler(dash, statusController, catalogController,
		api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer))
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	dash.Stop()

	workerCancel()
	if stopWorker != nil {
		if err := stopWorker(); err != nil {
			logger.Warn("Error stopping change worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}
