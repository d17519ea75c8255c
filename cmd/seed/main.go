// Package main provides the seed command-line tool that writes a synthetic
// customer profile CSV for local pipeline runs.
package main

import (
	"flag"
	"fmt"
	"os"

	"custetl/internal/generator"
	"custetl/internal/tables"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
)

// Config holds the seeder configuration.
type Config struct {
	Output  string
	Options generator.Options
}

func logInfo(msg string) {
	fmt.Printf("%s[SEEDER]%s %s\n", colorGreen, colorReset, msg)
}

func logWarn(msg string) {
	fmt.Printf("%s[SEEDER]%s %s\n", colorYellow, colorReset, msg)
}

func logError(msg string) {
	fmt.Printf("%s[SEEDER]%s %s\n", colorRed, colorReset, msg)
}

func main() {
	cfg := parseConfig()

	if err := cfg.Options.Validate(); err != nil {
		logError(fmt.Sprintf("Invalid options: %v", err))
		os.Exit(1)
	}

	if _, err := os.Stat(cfg.Output); err == nil {
		logWarn(fmt.Sprintf("Overwriting existing file %s", cfg.Output))
	}

	logInfo(fmt.Sprintf("Generating %d customer profiles (seed %d)...", cfg.Options.Rows, cfg.Options.Seed))

	customers, err := generator.Customers(cfg.Options)
	if err != nil {
		logError(fmt.Sprintf("Generation failed: %v", err))
		os.Exit(1)
	}

	if err := tables.CustomersTable(customers).WriteFile(cfg.Output); err != nil {
		logError(fmt.Sprintf("Failed to write %s: %v", cfg.Output, err))
		os.Exit(1)
	}

	logInfo("===========================================")
	logInfo(fmt.Sprintf("Wrote %d rows to %s", len(customers), cfg.Output))
	logInfo("===========================================")
}

func parseConfig() Config {
	defaults := generator.DefaultOptions()

	rows := flag.Int("rows", defaults.Rows, "Number of unique customer profiles")
	output := flag.String("output", "./data/customer_profiles.csv", "Output CSV path")
	duplicateRatio := flag.Float64("duplicate-ratio", defaults.DuplicateRatio, "Share of rows appended as exact duplicates")
	missingRatio := flag.Float64("missing-ratio", defaults.MissingRatio, "Share of profiles with a missing age")
	seed := flag.Uint64("seed", defaults.Seed, "Random seed")
	flag.Parse()

	return Config{
		Output: *output,
		Options: generator.Options{
			Rows:           *rows,
			DuplicateRatio: *duplicateRatio,
			MissingRatio:   *missingRatio,
			Seed:           *seed,
		},
	}
}
