package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"custetl/internal/config"
	"custetl/internal/extract"
	"custetl/internal/models"
	"custetl/internal/report"
	"custetl/internal/storage"
	"custetl/internal/tables"
	"custetl/internal/transform"
)

// fakeSource serves a fixed purchase history.
type fakeSource struct {
	purchases []models.Purchase
	err       error
	requested []string
}

func (f *fakeSource) Fetch(_ context.Context, mobiles []string) ([]models.Purchase, error) {
	f.requested = mobiles
	return f.purchases, f.err
}

func str(s string) *string { return &s }

func amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

const customersCSV = "name,age,income,mobile,gender\n" +
	"Asha,30,50000,9000000001,Male\n" +
	"Ravi,45,80000,9000000002,Female\n" +
	"Ravi again,45,80000,9000000002,Female\n" +
	"Nobody,22,1000,123,Other\n"

func history() []models.Purchase {
	return []models.Purchase{
		{Mobile: "9000000001", Date: str("2024-05-02"), Store: str("Store A"), Amount: amount("100")},
		{Mobile: "9000000001", Date: str("10-05-2024"), Store: str("Store B"), Amount: amount("150")},
		{Mobile: "9000000001", Date: str("2024-05-28"), Store: str("Store A"), Amount: amount("50")},
		{Mobile: "9000000002", Date: str("2024-05-15"), Store: str("Store C")},
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	input := filepath.Join(dir, "customers.csv")

	if err := os.WriteFile(input, []byte(customersCSV), 0644); err != nil {
		t.Fatalf("Failed to write customers: %v", err)
	}

	cfg := config.Default()
	cfg.Extract.CustomersPath = input
	cfg.Output.Dir = filepath.Join(dir, "out")
	cfg.Output.ReportPath = filepath.Join(dir, "out", "report.md")
	cfg.Pipeline.AsOf = "2024-06-30"
	cfg.Pipeline.ClusterCount = 2

	return cfg
}

func TestRunner_Run(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Driver = config.DriverSQLite
	cfg.Storage.DSN = filepath.Join(t.TempDir(), "reporting.db")

	src := &fakeSource{purchases: history()}

	state, err := NewRunner(cfg, nil, WithSource(src)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if state.RunID == "" || state.LastStage != StageReport {
		t.Errorf("state = %+v", state)
	}

	if state.Customers != 2 || state.Segments != 2 {
		t.Errorf("customers=%d segments=%d, want 2/2", state.Customers, state.Segments)
	}

	if len(src.requested) != 2 || src.requested[0] != "9000000001" {
		t.Errorf("requested mobiles = %v", src.requested)
	}

	for _, name := range tables.OutputNames {
		if _, err := os.Stat(cfg.ArtifactPath(name)); err != nil {
			t.Errorf("artifact %s missing: %v", name, err)
		}
	}

	meta, err := report.VerifyFile(cfg.Output.ReportPath)
	if err != nil {
		t.Fatalf("report does not verify: %v", err)
	}

	if meta.RunID != state.RunID {
		t.Errorf("report run id = %s, want %s", meta.RunID, state.RunID)
	}

	store, err := storage.Open(context.Background(), cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer store.Close()

	if n, err := store.RowCount(context.Background(), tables.CustomerSegments); err != nil || n != 2 {
		t.Errorf("customer_segments rows = %d, %v", n, err)
	}

	runs, err := store.Runs(context.Background(), 5)
	if err != nil || len(runs) != 1 || runs[0].Status != storage.StatusSucceeded {
		t.Errorf("runs = %+v, %v", runs, err)
	}
}

func TestRunner_ArtifactsAreDeterministic(t *testing.T) {
	cfg := testConfig(t)

	read := func() map[string]string {
		out := make(map[string]string)

		for _, name := range tables.OutputNames {
			b, err := os.ReadFile(cfg.ArtifactPath(name))
			if err != nil {
				t.Fatalf("read %s: %v", name, err)
			}

			out[name] = string(b)
		}

		return out
	}

	if _, err := NewRunner(cfg, nil, WithSource(&fakeSource{purchases: history()})).Run(context.Background()); err != nil {
		t.Fatalf("first Run() error: %v", err)
	}

	first := read()

	if _, err := NewRunner(cfg, nil, WithSource(&fakeSource{purchases: history()})).Run(context.Background()); err != nil {
		t.Fatalf("second Run() error: %v", err)
	}

	for name, content := range read() {
		if content != first[name] {
			t.Errorf("%s differs between identical runs", name)
		}
	}

	if !strings.Contains(first[tables.PurchaseTrends], "9000000001,2024-05,300.00,3") {
		t.Errorf("trend artifact:\n%s", first[tables.PurchaseTrends])
	}
}

func TestRunner_UpstreamFailureStopsRun(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Driver = config.DriverSQLite
	cfg.Storage.DSN = filepath.Join(t.TempDir(), "reporting.db")

	src := &fakeSource{err: extract.ErrUpstreamUnavailable}

	state, err := NewRunner(cfg, nil, WithSource(src)).Run(context.Background())
	if !errors.Is(err, extract.ErrUpstreamUnavailable) {
		t.Fatalf("Run() error = %v, want ErrUpstreamUnavailable", err)
	}

	if state.LastStage != StageExtractPurchases {
		t.Errorf("last stage = %s", state.LastStage)
	}

	if _, err := os.Stat(cfg.ArtifactPath(tables.Joined)); !os.IsNotExist(err) {
		t.Error("join should not have run after a failed extract")
	}

	store, err := storage.Open(context.Background(), cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer store.Close()

	runs, _ := store.Runs(context.Background(), 1)
	if len(runs) != 1 || runs[0].Status != storage.StatusFailed || runs[0].LastStage != string(StageExtractPurchases) {
		t.Errorf("runs = %+v", runs)
	}
}

func TestRunner_DegenerateInput(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.ClusterCount = 5

	_, err := NewRunner(cfg, nil, WithSource(&fakeSource{purchases: history()})).Run(context.Background())
	if !errors.Is(err, transform.ErrTooFewCustomers) {
		t.Errorf("Run() error = %v, want ErrTooFewCustomers", err)
	}
}

func TestRunner_StageSubsets(t *testing.T) {
	cfg := testConfig(t)
	runner := NewRunner(cfg, nil, WithSource(&fakeSource{purchases: history()}))

	if _, err := runner.RunStages(context.Background(), ExtractStages...); err != nil {
		t.Fatalf("extract stages: %v", err)
	}

	if _, err := runner.RunStages(context.Background(), TransformStages...); err != nil {
		t.Fatalf("transform stage: %v", err)
	}

	// The report reads the gender mapping back from its artifact.
	if _, err := runner.RunStages(context.Background(), LoadStages...); err != nil {
		t.Fatalf("load stages: %v", err)
	}

	content, err := os.ReadFile(cfg.Output.ReportPath)
	if err != nil {
		t.Fatalf("report missing: %v", err)
	}

	if !strings.Contains(string(content), "Female") {
		t.Errorf("report lacks gender mapping:\n%s", content)
	}
}

func TestRunner_UnknownStage(t *testing.T) {
	cfg := testConfig(t)

	_, err := NewRunner(cfg, nil, WithRegistry(Registry{})).RunStages(context.Background(), StageJoin)
	if !errors.Is(err, ErrUnknownStage) {
		t.Errorf("RunStages() error = %v, want ErrUnknownStage", err)
	}
}

func TestRunner_CancelledContext(t *testing.T) {
	cfg := testConfig(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(cfg, nil, WithSource(&fakeSource{})).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestRunner_NoStoresLoadsEmptySummary(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Driver = config.DriverSQLite
	cfg.Storage.DSN = filepath.Join(t.TempDir(), "reporting.db")

	src := &fakeSource{purchases: []models.Purchase{
		{Mobile: "9000000001", Date: str("2024-05-02"), Amount: amount("100")},
		{Mobile: "9000000002", Date: str("2024-05-15"), Amount: amount("40")},
	}}

	state, err := NewRunner(cfg, nil, WithSource(src)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if state.LastStage != StageReport {
		t.Errorf("last stage = %s", state.LastStage)
	}

	summary, err := tables.ReadFile(cfg.ArtifactPath(tables.StoreSummary), tables.StoreSummary)
	if err != nil {
		t.Fatalf("store summary unreadable: %v", err)
	}

	if len(summary.Rows) != 0 || len(summary.Columns) != 4 {
		t.Errorf("store summary = %+v", summary)
	}

	store, err := storage.Open(context.Background(), cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer store.Close()

	if n, err := store.RowCount(context.Background(), tables.StoreSummary); err != nil || n != 0 {
		t.Errorf("customer_store_summary rows = %d, %v", n, err)
	}

	if _, err := report.VerifyFile(cfg.Output.ReportPath); err != nil {
		t.Errorf("report does not verify: %v", err)
	}
}

func TestRunner_NoPurchasesReportsNoCustomers(t *testing.T) {
	cfg := testConfig(t)

	state, err := NewRunner(cfg, nil, WithSource(&fakeSource{})).Run(context.Background())
	if !errors.Is(err, transform.ErrNoCustomers) {
		t.Fatalf("Run() error = %v, want ErrNoCustomers", err)
	}

	if state.LastStage != StageTransform {
		t.Errorf("last stage = %s, want %s", state.LastStage, StageTransform)
	}
}
