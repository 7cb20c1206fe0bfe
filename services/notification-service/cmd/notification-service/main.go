package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/homebook/libs/db"
	"github.com/md-rashed-zaman/homebook/libs/httpx"
	"github.com/md-rashed-zaman/homebook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/homebook/libs/otel"
	"github.com/md-rashed-zaman/homebook/libs/runtime"
	"github.com/md-rashed-zaman/homebook/services/notification-service/internal/api"
	"github.com/md-rashed-zaman/homebook/services/notification-service/internal/config"
	"github.com/md-rashed-zaman/homebook/services/notification-service/internal/consumer"
	"github.com/md-rashed-zaman/homebook/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/homebook/services/notification-service/internal/inbox"
	"github.com/md-rashed-zaman/homebook/services/notification-service/internal/notify"
	"github.com/md-rashed-zaman/homebook/services/notification-service/internal/sms"
	"github.com/md-rashed-zaman/homebook/services/notification-service/internal/storage"
	"github.com/md-rashed-zaman/homebook/services/notification-service/migrations"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	var configFile string
	rootCmd := &cobra.Command{
		Use:          "notification-service",
		Short:        "Delivers booking and payment notifications",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configFile)
		},
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "optional config file")
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			pool, err := db.Open(cmd.Context(), cfg.DatabaseURL, db.PoolOptions{MaxConns: 2})
			if err != nil {
				return err
			}
			defer pool.Close()
			n, err := db.NewMigrator(pool, migrations.FS).Up(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
			return nil
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configFile string) error {
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

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.PoolOptions{})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer pool.Close()
	if cfg.AutoMigrate {
		if _, err := db.NewMigrator(pool, migrations.FS).Up(ctx); err != nil {
			return err
		}
	}

	store := storage.NewRepository(pool)
	emailSender := email.NewSMTPSender(email.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		From:     cfg.SMTPFrom,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
	})
	var smsSender sms.Sender = sms.NoopSender{}
	if cfg.SMSProvider == "webhook" {
		smsSender = sms.NewWebhookSender(cfg.SMSWebhookURL, cfg.SMSWebhookToken)
	}
	dispatcher := notify.NewDispatcher(store, emailSender, smsSender, logger)

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		reader := kafkax.NewGroupReader(brokers, cfg.GroupID, notify.Topics...)
		c := consumer.New(reader, inbox.NewRepository(pool), dispatcher.Handle, logger, consumer.Config{})
		go c.Run(ctx)
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	} else {
		logger.Warn("KAFKA_BROKERS not set; not consuming events")
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	api.NewHandler(store, logger).Register(mux)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
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
