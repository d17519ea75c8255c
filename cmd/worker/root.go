package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"custetl/internal/config"
	"custetl/internal/logger"
	"custetl/internal/pipeline"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	cfg        *config.Config
	log        *logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "worker",
		Short: "Customer analytics batch pipeline",
		Long: `Run the customer analytics pipeline:

  extract    load customer profiles, fetch purchase history, join
  transform  clean, build features, segment, aggregate
  load       replace the reporting tables and write the report
  run        all of the above
  watch      re-run on every change to the customer profile file`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to YAML config (defaults plus environment when empty)")

	root.AddCommand(
		a.stagesCmd("run", "Run every stage", pipeline.AllStages),
		a.stagesCmd("extract", "Extract customers and purchases and join them", pipeline.ExtractStages),
		a.stagesCmd("transform", "Transform the joined table into the reporting artifacts", pipeline.TransformStages),
		a.stagesCmd("load", "Load artifacts into storage and write the report", pipeline.LoadStages),
		a.watchCmd(),
		a.runsCmd(),
		a.verifyCmd(),
	)

	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = logger.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	return nil
}

func (a *app) loadConfig() (*config.Config, error) {
	if a.configPath != "" {
		return config.LoadConfig(a.configPath)
	}

	cfg := config.Default()
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
