package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/homebook/libs/db"
	"github.com/md-rashed-zaman/homebook/libs/grpcx"
	"github.com/md-rashed-zaman/homebook/libs/httpx"
	"github.com/md-rashed-zaman/homebook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/homebook/libs/otel"
	"github.com/md-rashed-zaman/homebook/libs/runtime"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/config"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/outbox"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// grpcHealthService is the name the gateway health-checks.
const grpcHealthService = "homebook.booking"

func runServe(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	logger := runtime.NewLogger(cfg.ServiceName)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.ServiceName))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	var checks []runtime.ReadyCheck
	if a.pool != nil {
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(a.pool)})
		if brokers := cfg.Brokers(); len(brokers) > 0 {
			publisher := outbox.NewPublisher(a.pool, outbox.NewRepository(), kafkax.NewWriter(brokers), logger, outbox.PublisherConfig{
				PollEvery: cfg.OutboxPoll,
				BatchSize: cfg.OutboxBatch,
				Retention: cfg.OutboxKeep,
			})
			go publisher.Run(ctx)
			checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
		} else {
			logger.Warn("KAFKA_BROKERS not set; outbox events stay unpublished")
		}
	}
	if cfg.SweepEnabled {
		go a.sweeper().Run(ctx)
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	api := handlers.API{
		Providers: handlers.NewProviderHandler(a.providers, logger),
		Bookings:  handlers.NewBookingHandler(a.bookings, logger),
		Payments:  handlers.NewPaymentHandler(a.payments, logger),
		Reviews:   handlers.NewReviewHandler(a.ratings, logger),
	}
	if cfg.StripeWebhookKey != "" {
		api.Stripe = handlers.NewStripeWebhookHandler(a.payments, cfg.StripeWebhookKey, cfg.StripeTolerance, logger)
	}
	api.Register(mux)

	var rateLimitMW httpx.Middleware
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		rateLimitMW = httpx.NewRedisRateLimiter(rdb, cfg.RateLimit, cfg.RateLimitWindow, "rl:booking").Middleware(logger, cfg.RateLimitOpen)
		logger.Info("rate limiting enabled (redis)", "limit", cfg.RateLimit, "window", cfg.RateLimitWindow)
	} else {
		rateLimitMW = httpx.NewRateLimiter(cfg.RateLimit, cfg.RateLimitWindow).Middleware()
		logger.Info("rate limiting enabled (in-memory)", "limit", cfg.RateLimit, "window", cfg.RateLimitWindow)
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		rateLimitMW,
		httpx.WithBodyLimit(cfg.BodyLimitBytes),
		httpx.WithTimeout(cfg.RequestTimeout),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv := grpcx.NewServer(logger)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	grpcSrv.SetServing(true, grpcHealthService)

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()
	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	grpcSrv.SetServing(false, grpcHealthService)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	grpcSrv.GracefulStop()
	logger.Info("servers stopped")
	return nil
}
