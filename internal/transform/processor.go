// Package transform turns the joined customer/purchase table into customer
// segments and reporting aggregates.
package transform

import (
	"fmt"
	"time"

	"custetl/internal/config"
	"custetl/internal/logger"
	"custetl/internal/models"
)

// Options are the parameters that, together with the input, fully determine
// the transform output.
type Options struct {
	AsOf          time.Time
	DateFormats   []string
	ClusterCount  int
	Seed          uint64
	MaxIterations int
	Restarts      int
}

// OptionsFromConfig extracts transform options from the pipeline configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		AsOf:          cfg.AsOf(),
		DateFormats:   cfg.Pipeline.DateFormats,
		ClusterCount:  cfg.Pipeline.ClusterCount,
		Seed:          cfg.Pipeline.RandomSeed,
		MaxIterations: cfg.Pipeline.MaxIterations,
		Restarts:      cfg.Pipeline.Restarts,
	}
}

// Processor runs the transform stages in order: clean, build features,
// normalize, segment, aggregate.
type Processor struct {
	opts      Options
	log       *logger.Logger
	validator *Validator
	cleaner   *Cleaner
	builder   *FeatureBuilder
	segmenter *Segmenter
}

// NewProcessor creates a processor. A nil logger discards output.
func NewProcessor(opts Options, log *logger.Logger) *Processor {
	if log == nil {
		log = logger.Discard()
	}

	return &Processor{
		opts:      opts,
		log:       log,
		validator: NewValidator(opts.ClusterCount),
		cleaner:   NewCleaner(opts.DateFormats),
		builder:   NewFeatureBuilder(opts.AsOf),
		segmenter: NewSegmenter(opts.ClusterCount, opts.Seed, opts.MaxIterations, opts.Restarts),
	}
}

// Process transforms the joined table into the five reporting artifacts.
// The input slice is not modified.
func (p *Processor) Process(rows []models.Transaction) (*models.TransformResult, error) {
	if err := p.validator.ValidateInput(rows); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	started := time.Now()
	cleaned := p.cleaner.Clean(rows)
	p.log.Stage("clean", len(rows), len(cleaned), started)

	if err := p.validator.ValidateCleaned(cleaned); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	started = time.Now()
	features := p.builder.Build(cleaned)
	p.log.Stage("features", len(cleaned), len(features), started)

	if err := p.validator.ValidateFeatures(features); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	started = time.Now()

	normalized, err := Normalize(features)
	if err != nil {
		return nil, fmt.Errorf("normalization failed: %w", err)
	}

	p.log.Stage("normalize", len(features), len(normalized.Matrix), started)

	started = time.Now()

	seg, err := p.segmenter.Fit(normalized.Matrix)
	if err != nil {
		return nil, fmt.Errorf("segmentation failed: %w", err)
	}

	if !seg.Converged {
		p.log.Warn("segmentation stopped at iteration cap", "max_iterations", p.opts.MaxIterations)
	}

	segments, err := AttachSegments(normalized.Features, seg.Labels)
	if err != nil {
		return nil, fmt.Errorf("segmentation failed: %w", err)
	}

	p.log.Stage("segment", len(normalized.Matrix), len(segments), started)

	started = time.Now()
	result := &models.TransformResult{
		Segments:       segments,
		SegmentMetrics: SegmentMetrics(segments),
		Behavior:       BehaviorMetrics(cleaned, p.opts.AsOf),
		StoreSummary:   StoreSummary(cleaned),
		PurchaseTrends: PurchaseTrends(cleaned),
		GenderCodes:    normalized.Encoder.Classes(),
	}
	p.log.Stage("aggregate", len(cleaned), len(result.Behavior), started)

	p.log.Debug("segmentation inertia", "inertia", seg.Inertia, "k", p.opts.ClusterCount)

	return result, nil
}
