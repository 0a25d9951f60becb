package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleetware/cardbridge/pkg/daemon"
	"github.com/fleetware/cardbridge/pkg/reconcile"
	"github.com/fleetware/cardbridge/pkg/registrar"
	"github.com/fleetware/cardbridge/pkg/telemetry"
)

func NewDaemonCommand() *cobra.Command {
	var metricsListen string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the bridge in the background",
		Long:  "Keeps this device registered as a card bridge and reconciles the card registry on an interval. Stops cleanly on SIGINT or SIGTERM.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}

			log, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			sugar := log.Sugar()

			st, err := openStore(rt)
			if err != nil {
				return err
			}
			registry, err := openRegistry(rt)
			if err != nil {
				return err
			}
			fleetClient, err := buildFleetClient(rt)
			if err != nil {
				return err
			}
			manager, err := buildChain(rt, st, sugar)
			if err != nil {
				return err
			}

			metrics := telemetry.New()
			manager = manager.WithMetrics(metrics)
			reg := registrar.New(fleetClient, manager, st, sugar)
			engine := reconcile.NewEngine(fleetClient, manager, registry, sugar).WithMetrics(metrics)

			opts := daemon.Options{MetricsListen: metricsListen}
			if rt.cfg != nil {
				interval, err := rt.cfg.Settings.SyncIntervalDuration()
				if err != nil {
					return err
				}
				opts.SyncInterval = interval
				if opts.MetricsListen == "" {
					opts.MetricsListen = rt.cfg.Settings.MetricsListen
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = daemon.New(reg, engine, registry, metrics, sugar, opts).Run(ctx)
			if ctx.Err() != nil {
				sugar.Infow("shutting down")
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "Address to serve prometheus metrics on (for example 127.0.0.1:9465)")
	return cmd
}
