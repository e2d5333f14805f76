package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qms/ticket-queue/internal/bus"
	"qms/ticket-queue/internal/config"
	"qms/ticket-queue/internal/httpapi"
	"qms/ticket-queue/internal/hub"
	"qms/ticket-queue/internal/notify"
	"qms/ticket-queue/internal/queue"
	"qms/ticket-queue/internal/reports"
	"qms/ticket-queue/internal/scheduler"
	"qms/ticket-queue/internal/store/postgres"
	"qms/ticket-queue/internal/telemetry"
	"qms/ticket-queue/internal/worker"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()
	shutdownTelemetry := telemetry.Setup("queue-service", telemetry.TracingConfig{
		Endpoint: cfg.OTLPEndpoint,
		Insecure: cfg.OTLPInsecure,
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	ctx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	store := postgres.NewStore(pool)
	events := hub.New()
	location := cfg.Location()

	var publisher queue.Publisher = events
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		redisBus := bus.NewRedisBus(rdb, cfg.RedisChannel, events)
		publisher = redisBus
		go func() {
			_ = redisBus.Run(ctx)
			log.Printf("redis bus stopped")
		}()
	}

	engine := queue.NewEngine(store, store, publisher, queue.Options{
		StoreTimeout: cfg.StoreTimeout,
		Location:     location,
	})

	notifier := notify.NewProvider(notify.ProviderConfig{
		Kind:          cfg.NotifyProvider,
		WebhookURL:    cfg.NotifyWebhookURL,
		WebhookToken:  cfg.NotifyWebhookToken,
		TelegramToken: cfg.TelegramToken,
	})

	sinks := []worker.Sink{notify.NewSink(notifier)}
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("queue-service"))
		if err != nil {
			log.Fatalf("nats connect: %v", err)
		}
		defer func() { _ = nc.Drain() }()
		sinks = append(sinks, bus.NewNATSSink(nc, cfg.NATSSubjectPrefix))
	}
	relay := worker.New(store, worker.Config{BatchSize: cfg.OutboxBatchSize}, sinks...)
	go worker.Start(ctx, cfg.OutboxPollInterval, relay)

	purge, err := scheduler.New(engine, notifier, scheduler.Config{
		Schedule: cfg.PurgeSchedule,
		Location: location,
		ReportTo: cfg.TelegramAdminChatID,
	})
	if err != nil {
		log.Fatalf("scheduler: %v", err)
	}
	purge.Start()

	reporter := reports.NewService(store, reports.Options{
		StoreTimeout: cfg.StoreTimeout,
		Location:     location,
	})

	handler := httpapi.NewHandler(engine, store, store, reporter, events, notifier, httpapi.Options{
		JWTSecret:  cfg.JWTSecret,
		TokenTTL:   cfg.TokenTTL,
		SendBuffer: cfg.HubSendBuffer,
		Telegram: httpapi.TelegramOptions{
			WebhookSecret: cfg.TelegramWebhookSecret,
			AdminChatID:   cfg.TelegramAdminChatID,
		},
	})
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:    cfg.RateLimitPerMinute,
		IPBurst:        cfg.RateLimitBurst,
		IssuePerMinute: cfg.IssuePerMinute,
		IssueBurst:     cfg.IssueBurst,
	})

	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(handler.Routes())), "queue-service")
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("queue-service listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	purge.Stop(shutdownCtx)
	stopBackground()
}
