package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ArpitSharma4/nexus-gateway/internal/api"
	"github.com/ArpitSharma4/nexus-gateway/internal/config"
	"github.com/ArpitSharma4/nexus-gateway/internal/contract"
	"github.com/ArpitSharma4/nexus-gateway/internal/gateway/factory"
	"github.com/ArpitSharma4/nexus-gateway/internal/metrics"
	"github.com/ArpitSharma4/nexus-gateway/internal/monitor"
	"github.com/ArpitSharma4/nexus-gateway/internal/notify"
	"github.com/ArpitSharma4/nexus-gateway/internal/payments"
	"github.com/ArpitSharma4/nexus-gateway/internal/security"
	"github.com/ArpitSharma4/nexus-gateway/internal/storage"
	"github.com/ArpitSharma4/nexus-gateway/internal/storage/healthcache"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.New()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.APP.LogLevel); err == nil {
		log.SetLevel(level)
	}

	tp, err := initTracer()
	if err != nil {
		log.WithError(err).Fatal("failed to initialize tracing")
	}

	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{})
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	store := storage.New(db)
	if err := store.AutoMigrate(); err != nil {
		log.WithError(err).Fatal("failed to migrate schema")
	}
	if err := bootstrapMerchant(store, log); err != nil {
		log.WithError(err).Fatal("failed to bootstrap merchant")
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	var cache *healthcache.Cache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cache = healthcache.New(rdb, log)
	}

	webhookSink := notify.NewWebhook(store, cfg.Webhook.SigningSecret)
	sinks := []notify.Sink{webhookSink}
	var kafkaSink *notify.KafkaPublisher
	if brokers := cfg.Kafka.BrokerList(); len(brokers) > 0 {
		kafkaSink = notify.NewKafkaPublisher(brokers, cfg.Kafka.Topic)
		sinks = append(sinks, kafkaSink)
	}
	notifier := notify.NewDispatcher(log, sinks...)

	envCreds := factory.Env{
		StripeSecretKey: cfg.Gateways.StripeSecretKey,
		RazorpayKey:     cfg.Gateways.RazorpayKey,
	}
	httpClient := &http.Client{Timeout: 30 * time.Second}
	adapters := factory.NewSource(store, envCreds, httpClient)

	svc := payments.NewService(store, store, healthcache.NewReader(cache, store), adapters, notifier, m, log)

	cards, err := contract.NewProcessPaymentValidator()
	if err != nil {
		log.WithError(err).Fatal("failed to compile request schema")
	}

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	mon := monitor.New(factory.Build(nil, envCreds, httpClient), store, monitorCache(cache), m, log)
	mon.Interval = cfg.Monitor.Interval
	mon.StartupDelay = cfg.Monitor.StartupDelay
	go mon.Run(monitorCtx)

	handler := api.NewHandler(svc, store, cards, apiCache(cache), registry, log)
	srv := &http.Server{
		Addr:    ":" + cfg.APP.Port,
		Handler: handler.Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown incomplete")
	}
	stopMonitor()
	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			log.WithError(err).Warn("kafka writer close failed")
		}
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("tracer shutdown incomplete")
	}
}

// bootstrapMerchant seeds a default merchant on an empty database and
// logs the generated API key once. It is never printed again; operators
// rotate it by inserting a new merchant row.
func bootstrapMerchant(store *storage.Store, log *logrus.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	n, err := store.CountMerchants(ctx)
	if err != nil || n > 0 {
		return err
	}

	apiKey, err := security.GenerateAPIKey()
	if err != nil {
		return err
	}
	merchant := &storage.Merchant{
		Name:         "default",
		APIKeyHashed: security.HashAPIKey(apiKey),
	}
	if err := store.CreateMerchant(ctx, merchant); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"merchant_id": merchant.ID,
		"api_key":     apiKey,
	}).Warn("bootstrapped default merchant, store this API key now")
	return nil
}

func initTracer() (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return tp, nil
}

// monitorCache and apiCache keep a nil *healthcache.Cache from turning
// into a non-nil interface value.
func monitorCache(c *healthcache.Cache) monitor.SnapshotCache {
	if c == nil {
		return nil
	}
	return c
}

func apiCache(c *healthcache.Cache) api.CacheInvalidator {
	if c == nil {
		return nil
	}
	return c
}
