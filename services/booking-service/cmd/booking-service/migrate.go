package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/homebook/libs/db"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/config"
	"github.com/md-rashed-zaman/homebook/services/booking-service/migrations"
	"github.com/spf13/cobra"
)

func migrateCmd(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the booking database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, closeFn, err := openMigrator(cmd.Context(), *configFile)
			if err != nil {
				return err
			}
			defer closeFn()
			n, err := m.Up(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, closeFn, err := openMigrator(cmd.Context(), *configFile)
			if err != nil {
				return err
			}
			defer closeFn()
			statuses, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, st := range statuses {
				state := "pending"
				if st.Applied {
					state = "applied " + st.AppliedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(out, "%03d  %-32s %s\n", st.Version, st.Name, state)
			}
			return nil
		},
	})
	return cmd
}

func openMigrator(ctx context.Context, configFile string) (*db.Migrator, func(), error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	if cfg.InMemory() {
		return nil, nil, errors.New("DATABASE_URL is required for migrations")
	}
	pool, err := db.Open(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: 2})
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return db.NewMigrator(pool, migrations.FS), pool.Close, nil
}
