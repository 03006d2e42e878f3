package app

import (
	"context"
	"fmt"
	"net/http"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	"github.com/gin-gonic/gin"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"orderledger/internal/config"
	"orderledger/internal/httpapi"
	"orderledger/internal/notify"
	"orderledger/internal/platform/kafka"
	"orderledger/internal/platform/observability"
	"orderledger/internal/reservation"
	"orderledger/internal/scheduler"
	"orderledger/internal/stock"
	"orderledger/internal/storage"
	"orderledger/internal/storage/memorystore"
	"orderledger/internal/storage/pgstore"
)

// Container holds the singleton resources and wires the core components.
type Container struct {
	cfg    *config.Config
	logger *zap.Logger
	tracer observability.Tracer

	pg       *pgstore.Store
	producer kafka.Producer

	ledger      *stock.Ledger
	coordinator *reservation.Coordinator
	scheduler   *scheduler.Scheduler
	executor    *scheduler.Executor

	httpServer *http.Server

	otelLogShutdown   func(context.Context) error
	otelTraceShutdown func(context.Context) error
}

// NewContainer loads configuration and initializes observability, storage,
// messaging, and the core components.
func NewContainer(ctx context.Context) (*Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	c := &Container{cfg: cfg}

	bootstrapLogger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	c.otelLogShutdown, err = observability.SetupLoggingSDK(ctx, cfg)
	if err != nil {
		bootstrapLogger.Error("failed to setup OpenTelemetry logging", zap.Error(err))
	}

	tp, traceShutdown, err := observability.SetupTracingSDK(ctx, cfg)
	if err != nil {
		bootstrapLogger.Error("failed to setup OpenTelemetry tracing", zap.Error(err))
	}
	c.otelTraceShutdown = traceShutdown

	c.logger = observability.NewLogger()
	c.tracer = otel.Tracer(config.ServiceName)

	stockStore, orderStore, transitionStore, err := c.setupStorage()
	if err != nil {
		return nil, err
	}

	sender, err := c.setupNotifier(tp)
	if err != nil {
		return nil, err
	}

	c.ledger = stock.NewLedger(stockStore, c.logger, c.tracer)
	c.coordinator = reservation.NewCoordinator(c.ledger, c.logger, c.tracer)
	c.scheduler = scheduler.NewScheduler(cfg.AutoTransition, transitionStore, c.logger)
	c.executor = scheduler.NewExecutor(
		cfg.AutoTransition, transitionStore, orderStore, c.ledger, c.scheduler, sender, c.logger, c.tracer)

	c.setupHTTP()

	return c, nil
}

func (c *Container) setupStorage() (storage.StockStore, storage.OrderStore, storage.TransitionStore, error) {
	if c.cfg.DatabaseDSN == "" {
		c.logger.Info("no database configured, using in-memory store")
		mem := memorystore.New()
		return mem.Stock(), mem.Orders(), mem.Transitions(), nil
	}

	pg, err := pgstore.Open(c.cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	c.pg = pg
	c.logger.Info("connected to postgres store")
	return pg.Stock(), pg.Orders(), pg.Transitions(), nil
}

func (c *Container) setupNotifier(tp *sdktrace.TracerProvider) (notify.Sender, error) {
	if c.cfg.KafkaBroker == "" {
		c.logger.Info("no kafka broker configured, notifications go to the log only")
		return notify.NewLogSender(c.logger), nil
	}

	baseWriter := &kafkago.Writer{
		Addr:     kafkago.TCP(c.cfg.KafkaBroker),
		Topic:    c.cfg.StatusTopic,
		Balancer: &kafkago.LeastBytes{},
	}

	opts := []otelkafka.Option{
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes([]attribute.KeyValue{
			semconv.MessagingDestinationNameKey.String(c.cfg.StatusTopic),
			attribute.String("messaging.kafka.client_id", config.ServiceName),
		}),
	}
	if tp != nil {
		opts = append(opts, otelkafka.WithTracerProvider(tp))
	}

	writer, err := otelkafka.NewWriter(baseWriter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka writer: %w", err)
	}
	c.producer = writer

	c.logger.Info("kafka notifier configured",
		zap.String("broker", c.cfg.KafkaBroker),
		zap.String("topic", c.cfg.StatusTopic),
	)
	return notify.NewKafkaSender(writer, c.logger), nil
}

func (c *Container) setupHTTP() {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	handler := httpapi.NewHandler(c.ledger, c.coordinator, c.scheduler, c.logger)
	handler.Register(engine)

	c.httpServer = &http.Server{
		Addr:    c.cfg.HTTPAddr,
		Handler: engine,
	}
}

// Shutdown releases resources in reverse construction order.
func (c *Container) Shutdown(ctx context.Context) {
	c.logger.Info("shutting down infrastructure")

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			c.logger.Error("failed to shut down HTTP server", zap.Error(err))
		}
	}

	if c.producer != nil {
		if err := c.producer.Close(); err != nil {
			c.logger.Error("failed to close kafka producer", zap.Error(err))
		}
	}

	if c.pg != nil {
		if err := c.pg.Close(); err != nil {
			c.logger.Error("failed to close database", zap.Error(err))
		}
	}

	if c.otelTraceShutdown != nil {
		if err := c.otelTraceShutdown(ctx); err != nil {
			c.logger.Error("failed to shut down OTel tracing", zap.Error(err))
		}
	}
	if c.otelLogShutdown != nil {
		if err := c.otelLogShutdown(ctx); err != nil {
			c.logger.Error("failed to shut down OTel logging", zap.Error(err))
		}
	}

	_ = c.logger.Sync()
}

func (c *Container) Logger() *zap.Logger                    { return c.logger }
func (c *Container) Ledger() *stock.Ledger                  { return c.ledger }
func (c *Container) Coordinator() *reservation.Coordinator  { return c.coordinator }
func (c *Container) Scheduler() *scheduler.Scheduler        { return c.scheduler }
func (c *Container) Executor() *scheduler.Executor          { return c.executor }
func (c *Container) HTTPServer() *http.Server               { return c.httpServer }
