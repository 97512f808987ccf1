package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/smartexecution/internal/execution/application"
	"github.com/wyfcoding/smartexecution/internal/execution/domain"
	"github.com/wyfcoding/smartexecution/internal/execution/infrastructure/client"
	"github.com/wyfcoding/smartexecution/internal/execution/infrastructure/events"
	"github.com/wyfcoding/smartexecution/internal/execution/infrastructure/persistence/memory"
	"github.com/wyfcoding/smartexecution/internal/execution/infrastructure/persistence/mysql"
	executionredis "github.com/wyfcoding/smartexecution/internal/execution/infrastructure/persistence/redis"
	"github.com/wyfcoding/smartexecution/internal/execution/infrastructure/telemetry"
	executionconsumer "github.com/wyfcoding/smartexecution/internal/execution/interfaces/consumer"
	httpserver "github.com/wyfcoding/smartexecution/internal/execution/interfaces/http"
	"github.com/wyfcoding/smartexecution/pkg/cache"
	"github.com/wyfcoding/smartexecution/pkg/config"
	"github.com/wyfcoding/smartexecution/pkg/db"
	"github.com/wyfcoding/smartexecution/pkg/logger"
	"github.com/wyfcoding/smartexecution/pkg/metrics"
	"github.com/wyfcoding/smartexecution/pkg/middleware"
	"github.com/wyfcoding/smartexecution/pkg/mq"
	"github.com/wyfcoding/smartexecution/pkg/utils"
	"golang.org/x/sync/errgroup"
)

var configPath = flag.String("config", "configs/execution/config.toml", "config file path")

func main() {
	flag.Parse()
	ctx := context.Background()

	// 1. Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. Logger
	if cfg.Logger.Service == "" {
		cfg.Logger.Service = cfg.ServiceName
	}
	if err := logger.Init(cfg.Logger); err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	// 3. Metrics
	metricsImpl := metrics.New("execution")

	// 4. Checkpoint store
	var closers []func() error
	store, closeStore, err := newCheckpointStore(cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to init checkpoint store", "store", cfg.Execution.CheckpointStore, "error", err)
	}
	if closeStore != nil {
		closers = append(closers, closeStore)
	}

	// 5. Kafka producers
	var (
		eventProducer *mq.KafkaProducer
		dlq           *mq.DeadLetterQueue
	)
	if len(cfg.Kafka.Brokers) > 0 {
		eventProducer = mq.NewProducer(cfg.Kafka, true)
		dlq = mq.NewDeadLetterQueue(eventProducer, cfg.Kafka.DeadLetterTopic)
		closers = append(closers, eventProducer.Close)
	}

	// 6. Broker & quotes
	book := client.NewQuoteBook()
	var (
		broker  domain.Broker
		paper   *client.PaperBroker
		updater application.QuoteUpdater = book
	)
	switch cfg.Execution.BrokerMode {
	case "gateway":
		requestProducer := mq.NewProducer(cfg.Kafka, false)
		closers = append(closers, requestProducer.Close)
		broker = client.NewGatewayBroker(requestProducer, cfg.Kafka.OrderRequestTopic, cfg.Execution.NodeID)
	default:
		paper = client.NewPaperBroker(book, cfg.Execution.NodeID)
		broker = paper
		updater = paper
	}

	// 7. Orchestrator
	publishers := events.Fanout{telemetry.NewEventCounter(metricsImpl)}
	if eventProducer != nil {
		publishers = append(publishers, events.NewKafkaPublisher(eventProducer, cfg.Kafka.EventTopic))
	}
	orch, err := application.NewOrchestrator(
		application.Config{Defaults: cfg.Execution.Defaults, Overrides: cfg.Execution.Overrides},
		broker, book,
		application.WithIDGenerator(utils.NewSnowflakeID(cfg.Execution.NodeID).Prefixed("WO")),
		application.WithTelemetry(telemetry.NewPrometheus(metricsImpl)),
		application.WithPublisher(publishers),
	)
	if err != nil {
		logger.Fatal(ctx, "invalid execution parameters", "error", err)
	}
	if paper != nil {
		paper.SetEventSink(orch.HandleOrderEvent)
	}

	// 8. Application services
	queue := application.NewTargetQueue()
	worker := application.NewWorker(orch, queue, store, time.Duration(cfg.Execution.TickInterval)*time.Second)
	if err := worker.Restore(ctx); err != nil {
		logger.Error(ctx, "failed to restore working orders, starting empty", "error", err)
	}
	commandSvc := application.NewExecutionCommandService(queue, updater)
	querySvc := application.NewExecutionQueryService(orch)

	// 9. Interfaces
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.GinRecoveryMiddleware(), middleware.GinLoggingMiddleware())
	httpserver.NewExecutionHandler(commandSvc, querySvc).RegisterRoutes(r.Group("/api"))
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(metricsImpl.Handler()))
	}
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	var consumers []*mq.KafkaConsumer
	type subscription struct {
		topic  string
		handle mq.Handler
	}
	var subs []subscription
	if len(cfg.Kafka.Brokers) > 0 {
		subs = append(subs, subscription{cfg.Kafka.QuoteTopic, executionconsumer.NewQuoteHandler(commandSvc).Handle})
		if cfg.Execution.BrokerMode == "gateway" {
			subs = append(subs, subscription{cfg.Kafka.OrderEventTopic, executionconsumer.NewOrderEventHandler(orch).Handle})
		}
	}

	// 10. Start
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(sigCtx)

	g.Go(func() error {
		logger.Info(gctx, "HTTP server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		logger.Info(gctx, "Execution worker starting", "interval", cfg.Execution.TickInterval)
		return worker.Run(gctx)
	})

	for _, sub := range subs {
		c := mq.NewConsumer(cfg.Kafka, sub.topic, dlq)
		consumers = append(consumers, c)
		handle := sub.handle
		g.Go(func() error { return c.Run(gctx, handle) })
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info(ctx, "shutting down servers...")
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "HTTP server shutdown failed", "error", err)
		}
		for _, c := range consumers {
			_ = c.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error(ctx, "server exited with error", "error", err)
	}

	// 最后一次快照，便于重启后恢复
	if store != nil {
		if err := store.SaveAll(ctx, orch.Registry().Snapshot()); err != nil {
			logger.Error(ctx, "final checkpoint failed", "error", err)
		}
	}
	for _, closeFn := range closers {
		_ = closeFn()
	}
}

func newCheckpointStore(cfg *config.Config) (domain.CheckpointStore, func() error, error) {
	switch cfg.Execution.CheckpointStore {
	case "redis":
		rc, err := cache.New(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return executionredis.NewWorkingOrderRepository(rc.GetClient()), rc.Close, nil
	case "mysql":
		gdb, err := db.Init(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Environment == "dev" {
			if err := mysql.AutoMigrate(gdb); err != nil {
				logger.Error(context.Background(), "failed to migrate database", "error", err)
			}
		}
		return mysql.NewWorkingOrderRepository(gdb), func() error { return db.Close(gdb) }, nil
	default:
		return memory.NewWorkingOrderRepository(), nil, nil
	}
}
