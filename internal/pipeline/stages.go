// Package pipeline wires the extract, transform and load stages into a
// sequential batch run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"custetl/internal/config"
	"custetl/internal/extract"
	"custetl/internal/logger"
	"custetl/internal/report"
	"custetl/internal/storage"
	"custetl/internal/tables"
	"custetl/internal/transform"
)

// Stage represents pipeline phases.
type Stage string

// Pipeline stages in execution order.
const (
	StageExtractCustomers Stage = "EXTRACT_CUSTOMERS"
	StageExtractPurchases Stage = "EXTRACT_PURCHASES"
	StageJoin             Stage = "JOIN"
	StageTransform        Stage = "TRANSFORM"
	StageLoad             Stage = "LOAD"
	StageReport           Stage = "REPORT"
)

// Stage groups used by the CLI.
var (
	AllStages       = []Stage{StageExtractCustomers, StageExtractPurchases, StageJoin, StageTransform, StageLoad, StageReport}
	ExtractStages   = []Stage{StageExtractCustomers, StageExtractPurchases, StageJoin}
	TransformStages = []Stage{StageTransform}
	LoadStages      = []Stage{StageLoad, StageReport}
)

// ErrUnknownStage is returned for a stage missing from the registry.
var ErrUnknownStage = errors.New("unknown stage")

// RunState is shared by the stages of one run.
type RunState struct {
	StartedAt   time.Time
	RunID       string
	LastStage   Stage
	Customers   int
	Segments    int
	GenderCodes []string
}

// ExecutionContext bundles dependencies for stage execution.
type ExecutionContext struct {
	Cfg    *config.Config
	Store  *storage.Store
	Source extract.PurchaseSource
	Log    *logger.Logger
	State  *RunState
}

// StageFunc is a stage implementation. Stages exchange data through CSV
// artifacts in the output directory, so any suffix of the stage list can be
// rerun on its own.
type StageFunc func(ctx context.Context, exec *ExecutionContext) error

// Registry maps stages to implementations.
type Registry map[Stage]StageFunc

// BuildRegistry wires the stage functions.
func BuildRegistry() Registry {
	return Registry{
		StageExtractCustomers: extractCustomersStage,
		StageExtractPurchases: extractPurchasesStage,
		StageJoin:             joinStage,
		StageTransform:        transformStage,
		StageLoad:             loadStage,
		StageReport:           reportStage,
	}
}

func readArtifact(cfg *config.Config, name string) (*tables.Table, error) {
	return tables.ReadFile(cfg.ArtifactPath(name), name)
}

func writeArtifact(cfg *config.Config, t *tables.Table) error {
	return t.WriteFile(cfg.ArtifactPath(t.Name))
}

func extractCustomersStage(_ context.Context, exec *ExecutionContext) error {
	customers, stats, err := extract.LoadCustomers(exec.Cfg.Extract.CustomersPath, exec.Cfg.Extract.MinMobileDigits)
	if err != nil {
		return err
	}

	exec.Log.Info("customers loaded",
		"read", stats.Read,
		"invalid_mobile", stats.InvalidMobile,
		"duplicates", stats.Duplicates,
		"kept", len(customers),
	)

	exec.State.Customers = len(customers)

	return writeArtifact(exec.Cfg, tables.CustomersTable(customers))
}

func extractPurchasesStage(ctx context.Context, exec *ExecutionContext) error {
	t, err := readArtifact(exec.Cfg, tables.Customers)
	if err != nil {
		return err
	}

	customers, err := tables.CustomersFrom(t)
	if err != nil {
		return err
	}

	purchases, err := exec.Source.Fetch(ctx, extract.Mobiles(customers))
	if err != nil {
		return err
	}

	exec.Log.Info("purchase history fetched", "customers", len(customers), "purchases", len(purchases))

	return writeArtifact(exec.Cfg, tables.PurchasesTable(purchases))
}

func joinStage(_ context.Context, exec *ExecutionContext) error {
	ct, err := readArtifact(exec.Cfg, tables.Customers)
	if err != nil {
		return err
	}

	pt, err := readArtifact(exec.Cfg, tables.Purchases)
	if err != nil {
		return err
	}

	customers, err := tables.CustomersFrom(ct)
	if err != nil {
		return err
	}

	purchases, err := tables.PurchasesFrom(pt)
	if err != nil {
		return err
	}

	joined := extract.Join(customers, purchases)
	exec.Log.Info("joined", "customers", len(customers), "purchases", len(purchases), "rows", len(joined))

	return writeArtifact(exec.Cfg, tables.JoinedTable(joined))
}

func transformStage(_ context.Context, exec *ExecutionContext) error {
	t, err := readArtifact(exec.Cfg, tables.Joined)
	if err != nil {
		return err
	}

	rows, err := tables.JoinedFrom(t)
	if err != nil {
		return err
	}

	result, err := transform.NewProcessor(transform.OptionsFromConfig(exec.Cfg), exec.Log).Process(rows)
	if err != nil {
		return err
	}

	for _, out := range tables.OutputTables(result) {
		if err := writeArtifact(exec.Cfg, out); err != nil {
			return err
		}
	}

	exec.State.Segments = len(result.Segments)
	exec.State.GenderCodes = result.GenderCodes

	return writeArtifact(exec.Cfg, tables.GenderCodesTable(result.GenderCodes))
}

func loadStage(ctx context.Context, exec *ExecutionContext) error {
	if exec.Store == nil {
		exec.Log.Info("no storage configured, skipping load")
		return nil
	}

	for _, name := range tables.OutputNames {
		t, err := readArtifact(exec.Cfg, name)
		if err != nil {
			return err
		}

		if err := exec.Store.ReplaceTable(ctx, t); err != nil {
			return err
		}

		exec.Log.Info("table replaced", "table", name, "rows", len(t.Rows))
	}

	return nil
}

func reportStage(_ context.Context, exec *ExecutionContext) error {
	path := exec.Cfg.Output.ReportPath
	if path == "" {
		return nil
	}

	metrics, err := readArtifact(exec.Cfg, tables.SegmentMetrics)
	if err != nil {
		return err
	}

	codes := exec.State.GenderCodes
	if codes == nil {
		gt, err := readArtifact(exec.Cfg, tables.GenderCodes)
		if err != nil {
			return err
		}

		if codes, err = tables.GenderCodesFrom(gt); err != nil {
			return err
		}
	}

	counts := make([]report.ArtifactCount, 0, len(tables.OutputNames))

	for _, name := range tables.OutputNames {
		t, err := readArtifact(exec.Cfg, name)
		if err != nil {
			return err
		}

		counts = append(counts, report.ArtifactCount{Name: name, Rows: len(t.Rows)})
	}

	content := report.Render(report.Input{
		GeneratedAt:    exec.State.StartedAt,
		AsOf:           exec.Cfg.AsOf(),
		RunID:          exec.State.RunID,
		ClusterCount:   exec.Cfg.Pipeline.ClusterCount,
		Seed:           exec.Cfg.Pipeline.RandomSeed,
		SegmentMetrics: metrics,
		GenderCodes:    codes,
		Artifacts:      counts,
	})

	if err := report.WriteFile(path, content); err != nil {
		return err
	}

	exec.Log.Info("report written", "path", path)

	return nil
}

func stageError(stage Stage, err error) error {
	return fmt.Errorf("stage %s failed: %w", stage, err)
}
