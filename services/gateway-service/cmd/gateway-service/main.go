package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/homebook/libs/auth"
	"github.com/md-rashed-zaman/homebook/libs/config"
	"github.com/md-rashed-zaman/homebook/libs/grpcx"
	"github.com/md-rashed-zaman/homebook/libs/httpx"
	otelx "github.com/md-rashed-zaman/homebook/libs/otel"
	"github.com/md-rashed-zaman/homebook/libs/runtime"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type gatewayConfig struct {
	ServiceName     string        `mapstructure:"SERVICE_NAME"`
	Port            string        `mapstructure:"PORT"`
	BookingURL      string        `mapstructure:"BOOKING_URL"`
	BookingGRPCAddr string        `mapstructure:"BOOKING_GRPC_ADDR"`
	NotificationURL string        `mapstructure:"NOTIFICATION_URL"`
	JWTSecret       string        `mapstructure:"JWT_SECRET"`
	JWKSURL         string        `mapstructure:"JWKS_URL"`
	JWKSCacheTTL    time.Duration `mapstructure:"JWKS_CACHE_TTL"`
	BodyLimitBytes  int64         `mapstructure:"REQUEST_BODY_LIMIT_BYTES"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	RateLimit       int           `mapstructure:"RATE_LIMIT_PER_MINUTE"`
	RateLimitPrefix string        `mapstructure:"RATE_LIMIT_PREFIX"`
	RateLimitOpen   bool          `mapstructure:"RATE_LIMIT_FAIL_OPEN"`
	RedisAddr       string        `mapstructure:"REDIS_ADDR"`
	RedisPassword   string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB         int           `mapstructure:"REDIS_DB"`
	CORSOrigins     string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	CORSMethods     string        `mapstructure:"CORS_ALLOWED_METHODS"`
	CORSHeaders     string        `mapstructure:"CORS_ALLOWED_HEADERS"`
	CORSCredentials bool          `mapstructure:"CORS_ALLOW_CREDENTIALS"`
	CORSMaxAge      time.Duration `mapstructure:"CORS_MAX_AGE"`
}

func loadConfig(file string) (gatewayConfig, error) {
	var c gatewayConfig
	err := config.Load(&c, map[string]any{
		"SERVICE_NAME":             "gateway-service",
		"PORT":                     "8080",
		"BOOKING_URL":              "http://booking-service:8083",
		"BOOKING_GRPC_ADDR":        "booking-service:9083",
		"NOTIFICATION_URL":         "http://notification-service:8085",
		"JWT_SECRET":               "dev-secret",
		"JWKS_URL":                 "",
		"JWKS_CACHE_TTL":           "5m",
		"REQUEST_BODY_LIMIT_BYTES": 1 << 20,
		"REQUEST_TIMEOUT":          "10s",
		"RATE_LIMIT_PER_MINUTE":    60,
		"RATE_LIMIT_PREFIX":        "rl",
		"RATE_LIMIT_FAIL_OPEN":     true,
		"REDIS_ADDR":               "",
		"REDIS_PASSWORD":           "",
		"REDIS_DB":                 0,
		"CORS_ALLOWED_ORIGINS":     "",
		"CORS_ALLOWED_METHODS":     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		"CORS_ALLOWED_HEADERS":     "Authorization,Content-Type,X-Request-Id,Idempotency-Key",
		"CORS_ALLOW_CREDENTIALS":   false,
		"CORS_MAX_AGE":             "10m",
	}, file)
	if err != nil {
		return gatewayConfig{}, err
	}
	if c.RateLimit <= 0 {
		return gatewayConfig{}, errors.New("RATE_LIMIT_PER_MINUTE must be positive")
	}
	return c, nil
}

func main() {
	var configFile string
	rootCmd := &cobra.Command{
		Use:          "gateway-service",
		Short:        "Public edge: authentication, rate limiting and routing",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configFile)
		},
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "optional config file")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := loadConfig(configFile)
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

	bookingConn, err := grpcx.Dial(cfg.BookingGRPCAddr, grpcx.DialOptions{})
	if err != nil {
		return fmt.Errorf("dial booking grpc: %w", err)
	}
	defer bookingConn.Close()

	var jwks *auth.JWKSClient
	if cfg.JWKSURL != "" {
		jwks = auth.NewJWKSClient(cfg.JWKSURL, cfg.JWKSCacheTTL)
	}
	verifier := auth.NewVerifier(cfg.JWTSecret, jwks)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "booking", Check: grpcx.HealthCheck(bookingConn, "homebook.booking")},
	)
	if err := registerRoutes(mux, cfg, verifier); err != nil {
		return err
	}

	var rateLimitMW httpx.Middleware
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer func() { _ = rdb.Close() }()
		rateLimitMW = httpx.NewRedisRateLimiter(rdb, cfg.RateLimit, time.Minute, cfg.RateLimitPrefix).Middleware(logger, cfg.RateLimitOpen)
		logger.Info("rate limiting enabled (redis)", "per_minute", cfg.RateLimit, "redis_addr", cfg.RedisAddr)
	} else {
		rateLimitMW = httpx.NewRateLimiter(cfg.RateLimit, time.Minute).Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", cfg.RateLimit)
	}

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   config.SplitList(cfg.CORSOrigins),
			AllowedMethods:   config.SplitList(cfg.CORSMethods),
			AllowedHeaders:   config.SplitList(cfg.CORSHeaders),
			AllowCredentials: cfg.CORSCredentials,
			MaxAge:           cfg.CORSMaxAge,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(cfg.BodyLimitBytes),
		httpx.WithTimeout(cfg.RequestTimeout),
		rateLimitMW,
	)
	handler = otelhttp.NewHandler(handler, "gateway")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
	return nil
}
