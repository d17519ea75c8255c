package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"custetl/internal/pipeline"
	"custetl/internal/report"
	"custetl/internal/storage"
	"custetl/internal/watch"
)

func (a *app) stagesCmd(use, short string, stages []pipeline.Stage) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			started := time.Now()
			a.log.Info(fmt.Sprintf("🚀 Starting %s", use), "stages", len(stages))

			state, err := pipeline.NewRunner(a.cfg, a.log).RunStages(ctx, stages...)
			if err != nil {
				a.log.Error(fmt.Sprintf("❌ %s failed: %v", use, err), "run_id", state.RunID)
				return err
			}

			printSummary(cmd, state, time.Since(started))

			return nil
		},
	}
}

func printSummary(cmd *cobra.Command, state *pipeline.RunState, elapsed time.Duration) {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "------------------------------------------------")
	fmt.Fprintln(out, "📊 Summary Report")
	fmt.Fprintln(out, "------------------------------------------------")
	fmt.Fprintf(out, "Run ID: %s\n", state.RunID)
	fmt.Fprintf(out, "Last Stage: %s\n", state.LastStage)

	if state.Customers > 0 {
		fmt.Fprintf(out, "Customers Segmented: %d\n", state.Customers)
		fmt.Fprintf(out, "Segments: %d\n", state.Segments)
	}

	fmt.Fprintf(out, "Total Duration: %v\n", elapsed)
	fmt.Fprintln(out, "------------------------------------------------")
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the full pipeline whenever the customer profile file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			runner := pipeline.NewRunner(a.cfg, a.log)
			debounce := time.Duration(a.cfg.Watch.DebounceMs) * time.Millisecond

			w := watch.New(a.cfg.Extract.CustomersPath, debounce, func(ctx context.Context) error {
				_, err := runner.Run(ctx)
				return err
			}, a.log)

			if err := w.Start(ctx); err != nil {
				return err
			}

			w.Wait()
			a.log.Info("watcher stopped")

			return nil
		},
	}
}

func (a *app) runsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded pipeline runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := storage.Open(cmd.Context(), a.cfg.Storage.Driver, a.cfg.Storage.DSN)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, r := range runs {
				fmt.Fprintf(out, "%s  %-9s  %-17s  customers=%d segments=%d  %s\n",
					r.StartedAt.Format(time.RFC3339), r.Status, r.LastStage, r.Customers, r.Segments, r.ID)

				if r.LastError != "" {
					fmt.Fprintf(out, "    error: %s\n", r.LastError)
				}
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")

	return cmd
}

func (a *app) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [report]",
		Short: "Verify the signature block of a run report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.Output.ReportPath
			if len(args) == 1 {
				path = args[0]
			}

			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("report not found: %w", err)
			}

			meta, err := report.VerifyFile(path)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "❌ %s: %v\n", path, err)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✅ %s: run %s generated %s (hash %s)\n",
				path, meta.RunID, meta.GeneratedAt.Format(time.RFC3339), meta.Hash)

			return nil
		},
	}
}
