package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCmd() *cobra.Command {
	var (
		cfgPath      string
		metricsAddr  string
		sharedGroups bool
		devLog       bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the routing daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(devLog)
			if err != nil {
				return err
			}
			defer logger.Sync()
			log := logger.Sugar()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d := newDaemon(log, cfgPath, metricsAddr, sharedGroups)
			if err := d.run(ctx); err != nil && err != context.Canceled {
				log.Errorw("daemon exited", "error", err)
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "/etc/zebrad/zebrad.toml", "path to the running-configuration TOML file")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9100", "address for the Prometheus /metrics endpoint (empty disables it)")
	cmd.Flags().BoolVar(&sharedGroups, "shared-nexthop-groups", true, "use platform shared kernel nexthop-group objects when available")
	cmd.Flags().BoolVar(&devLog, "dev-log", false, "use zap's human-readable development logging instead of structured JSON")

	return cmd
}

// newLogger matches SPEC_FULL.md §6's one-*SugaredLogger-per-subsystem
// treatment: zap.NewProduction for structured JSON in normal operation,
// zap.NewDevelopment for a human-readable console during local testing.
func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
