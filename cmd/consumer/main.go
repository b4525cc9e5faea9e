package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-redeliver/internal/config"
	"go-redeliver/internal/observability"
	"go-redeliver/internal/redelivery"
	"go-redeliver/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	observability.InitLogger(cfg.Logging.Level)
	logger := observability.GetLogger()

	registry := prometheus.NewRegistry()
	metrics := observability.NewPrometheusMetrics(registry)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
			logger.WithError(err).Error("Metrics listener stopped")
		}
	}()

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	health := redelivery.NewHealthChecker(cfg.Kafka.Brokers, logger)
	if err := health.Check(startupCtx); err != nil {
		log.Fatalf("broker health check failed: %v", err)
	}
	dltTopic := cfg.Consumer.Topic + cfg.DeadLetter.Suffix
	if err := health.CheckTopic(startupCtx, dltTopic); err != nil {
		log.Fatalf("dead-letter destination unavailable: %v", err)
	}

	publisher := redelivery.NewPublisher(redelivery.PublisherConfig{
		Brokers: cfg.Kafka.Brokers,
		Metrics: metrics,
		Logger:  logger,
	})
	defer publisher.Close()

	var states redelivery.StateStore = redelivery.NewInMemoryStateStore(cfg.Redis.TTL)
	if cfg.Redis.URL != "" {
		client, err := redelivery.NewRedisClient(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer client.Close()
		states = redelivery.NewRedisStateStore(client, cfg.Redis.TTL)
	}

	partitionPolicy, err := redelivery.ParsePartitionPolicy(cfg.DeadLetter.PartitionPolicy)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	coordinator := redelivery.NewRecoveryCoordinator(redelivery.CoordinatorConfig{
		Backoff:    cfg.BackoffSchedule(),
		Classifier: redelivery.NewClassifier(cfg.NonRetryableKinds()),
		Router: redelivery.NewDeadLetterRouter(redelivery.RouterConfig{
			Suffix:          cfg.DeadLetter.Suffix,
			PartitionPolicy: partitionPolicy,
			FixedPartition:  cfg.DeadLetter.FixedPartition,
		}),
		Publisher: publisher,
		States:    states,
		Metrics:   metrics,
		Logger:    logger,
	})

	consumer := redelivery.NewConsumerLoop(redelivery.ConsumerConfig{
		Brokers:       cfg.Kafka.Brokers,
		Topic:         cfg.Consumer.Topic,
		GroupID:       cfg.Consumer.GroupID,
		Lanes:         cfg.Consumer.Lanes,
		FetchMinBytes: cfg.Consumer.FetchMinBytes,
		FetchMaxBytes: cfg.Consumer.FetchMaxBytes,
		Metrics:       metrics,
		Logger:        logger,
	}, coordinator)

	processor := service.NewOrderProcessor(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithField("topic", cfg.Consumer.Topic).Info("Consumer starting")

	if err := consumer.Run(ctx, processor.Process); err != nil {
		logger.WithError(err).Error("Consumer stopped with error")
	}

	if err := consumer.Close(); err != nil {
		logger.WithError(err).Error("Failed to close consumer")
	}
	logger.Info("Consumer stopped")
}
