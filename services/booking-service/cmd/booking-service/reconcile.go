package main

import (
	"fmt"

	"github.com/md-rashed-zaman/homebook/libs/runtime"
	"github.com/md-rashed-zaman/homebook/services/booking-service/internal/config"
	"github.com/spf13/cobra"
)

func reconcileCmd(configFile *string) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Settle payments left pending by an unknown processor outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}
			logger := runtime.NewLogger(cfg.ServiceName)

			ctx, stop := runtime.SignalContext()
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			sweeper := a.sweeper()
			if !once {
				sweeper.Run(ctx)
				return nil
			}
			res, err := sweeper.RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "settled=%d abandoned=%d skipped=%d\n", res.Settled, res.Abandoned, res.Skipped)
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single sweep and exit")
	return cmd
}
