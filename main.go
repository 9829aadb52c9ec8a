package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/vitovidale/video-api-service/config"
	"github.com/vitovidale/video-api-service/domain"
	"github.com/vitovidale/video-api-service/infrastructure"
	"github.com/vitovidale/video-api-service/usecase"
)

type subscriber interface {
	Run(ctx context.Context) error
}

// app collects what main builds so shutdown can release it in order.
type app struct {
	cfg     *config.Config
	logger  *logrus.Entry
	checks  []infrastructure.HealthCheck
	closers []func() error
	awsCfg  *aws.Config
	metrics *infrastructure.Metrics
}

func main() {
	configPath := flag.String("config", "", "optional path to a config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := infrastructure.NewLogger(cfg.Log, cfg.Service.Name)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("service stopped")
	}
}

func run(cfg *config.Config, logger *logrus.Entry) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &app{cfg: cfg, logger: logger, metrics: infrastructure.NewMetrics(registry)}
	defer a.close()

	videos, err := a.buildVideoStore(ctx)
	if err != nil {
		return err
	}
	blobs, err := a.buildBlobStore(ctx)
	if err != nil {
		return err
	}
	sink, newSubscriber, err := a.buildBroker(ctx)
	if err != nil {
		return err
	}

	publisher := infrastructure.NewMessagingPublisher(sink, a.metrics, logger)
	lifecycle := usecase.NewVideoLifecycle(videos, blobs, publisher, logger)
	dispatcher := infrastructure.NewMessageDispatcher(lifecycle, a.metrics, logger)

	router := infrastructure.NewRouter(infrastructure.RouterDeps{
		Handlers:  infrastructure.NewVideoHandlers(lifecycle, cfg.Upload.MaxBytes, logger),
		Metrics:   a.metrics,
		Gatherer:  registry,
		JWTSecret: []byte(cfg.Auth.JWTSecret),
		Checks:    a.checks,
		Logger:    logger,
	})
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("auth.jwt_secret not set, only the x-user-id header identifies callers")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 2)
	subscriberDone := startSubscriber(ctx, newSubscriber(dispatcher), errs)
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("video api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errs:
		logger.WithError(err).Error("component failed, shutting down")
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.WithError(shutdownErr).Error("http server shutdown")
	}
	// The deferred close tears down the broker and stores, so the
	// in-flight message has to finish first.
	select {
	case <-subscriberDone:
	case <-shutdownCtx.Done():
		logger.Warn("subscriber did not stop before the shutdown deadline")
	}
	return err
}

// startSubscriber runs s until ctx ends. The returned channel is closed
// once Run has returned.
func startSubscriber(ctx context.Context, s subscriber, errs chan<- error) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.Run(ctx); err != nil {
			errs <- fmt.Errorf("subscriber: %w", err)
		}
	}()
	return done
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.WithError(err).Warn("error while closing")
		}
	}
}

func (a *app) loadAWS(ctx context.Context) (aws.Config, error) {
	if a.awsCfg == nil {
		cfg, err := infrastructure.LoadAWSConfig(ctx, a.cfg.AWS)
		if err != nil {
			return aws.Config{}, err
		}
		a.awsCfg = &cfg
	}
	return *a.awsCfg, nil
}

func (a *app) buildVideoStore(ctx context.Context) (domain.VideoStore, error) {
	switch a.cfg.Store.Driver {
	case config.StoreDriverDynamoDB:
		awsCfg, err := a.loadAWS(ctx)
		if err != nil {
			return nil, err
		}
		repo := infrastructure.NewDynamoDBVideoRepository(
			infrastructure.NewDynamoDBClient(awsCfg, a.cfg.AWS.Endpoint), a.cfg.DynamoDB.Table)
		a.checks = append(a.checks, infrastructure.HealthCheck{Name: "database", Check: repo.Ping})
		return repo, nil
	default:
		db, err := infrastructure.ConnectPostgres(ctx, a.cfg.Postgres, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)

		repo := infrastructure.NewPostgresVideoRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			return nil, err
		}
		a.checks = append(a.checks, infrastructure.HealthCheck{Name: "database", Check: repo.Ping})
		return repo, nil
	}
}

func (a *app) buildBlobStore(ctx context.Context) (domain.BlobStore, error) {
	switch a.cfg.Blob.Driver {
	case config.BlobDriverMinio:
		client, err := infrastructure.NewMinioClient(ctx, a.cfg.Minio, a.cfg.Blob.Bucket)
		if err != nil {
			return nil, err
		}
		return infrastructure.NewMinioBlobStore(client, a.cfg.Blob, a.cfg.Minio, a.logger), nil
	default:
		awsCfg, err := a.loadAWS(ctx)
		if err != nil {
			return nil, err
		}
		client := infrastructure.NewS3Client(awsCfg, a.cfg.AWS.Endpoint)
		return infrastructure.NewS3BlobStore(client, a.cfg.Blob, a.cfg.AWS, a.logger), nil
	}
}

// buildBroker returns the outbound sink and a factory for the inbound
// subscriber, which needs the dispatcher built later.
func (a *app) buildBroker(ctx context.Context) (infrastructure.MessageSink, func(infrastructure.Dispatcher) subscriber, error) {
	switch a.cfg.Broker.Driver {
	case config.BrokerDriverKafka:
		client, err := infrastructure.NewKafkaClient(a.cfg.Kafka.Brokers, a.cfg.Service.Name)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, client.Close)

		producer, err := sarama.NewSyncProducerFromClient(client)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create kafka producer: %w", err)
		}
		group, err := sarama.NewConsumerGroupFromClient(a.cfg.Kafka.Group, client)
		if err != nil {
			producer.Close()
			return nil, nil, fmt.Errorf("failed to create kafka consumer group: %w", err)
		}
		sink := infrastructure.NewKafkaSink(producer, a.cfg.Kafka.PublishTopic, a.logger)
		a.closers = append(a.closers, sink.Close, group.Close)
		a.checks = append(a.checks, infrastructure.HealthCheck{Name: "kafka", Check: infrastructure.KafkaPing(client)})

		return sink, func(d infrastructure.Dispatcher) subscriber {
			return infrastructure.NewKafkaSubscriber(group, a.cfg.Kafka.ConsumeTopic, d, a.logger)
		}, nil
	default:
		conn, err := infrastructure.DialRabbitMQ(ctx, a.cfg.RabbitMQ.URL, a.logger)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, conn.Close)

		sink := infrastructure.NewRabbitMQSink(conn, a.cfg.RabbitMQ.PublishQueue)
		a.checks = append(a.checks, infrastructure.HealthCheck{Name: "rabbitmq", Check: sink.Ping})

		return sink, func(d infrastructure.Dispatcher) subscriber {
			return infrastructure.NewRabbitMQSubscriber(conn, a.cfg.RabbitMQ.ConsumeQueue, d, a.logger)
		}, nil
	}
}
