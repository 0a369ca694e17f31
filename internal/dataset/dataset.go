// Package dataset ties the loader, combiner and smoothing filter into
// the processing pipeline and holds its result. A dataset is created
// whole by Process and replaced whole on re-load; it is never mutated
// in place.
package dataset

import (
	"context"
	"fmt"
	"log/slog"

	"taacli/internal/combine"
	"taacli/internal/errors"
	"taacli/internal/infrastructure"
	"taacli/internal/loader"
	"taacli/internal/smoothing"
	"taacli/internal/table"
)

// Dataset is the result of one run of the processing pipeline.
type Dataset struct {
	// Signal is the raw signal table as loaded.
	Signal *table.Table
	// Reference is the raw reference (dark) table, nil when none was
	// supplied.
	Reference *table.Table
	// SignalCommon and ReferenceCommon are the inputs filtered to the
	// shared axes; nil without a reference.
	SignalCommon    *table.Table
	ReferenceCommon *table.Table
	// Combined is the post-combination table the filter runs on.
	Combined *table.Table
	// Smoothed is Combined after the moving average.
	Smoothed *table.Table

	Window int
	Rule   combine.Rule
}

// Options configures a pipeline run.
type Options struct {
	SignalPath    string
	ReferencePath string // optional
	Window        int
	Rule          combine.Rule
}

// Process loads the input files and runs the full pipeline:
// load, align/combine, smooth.
func Process(ctx context.Context, opts Options) (*Dataset, error) {
	logger := infrastructure.LoggerFromContext(ctx)

	signal, err := loader.ReadFile(opts.SignalPath)
	if err != nil {
		return nil, fmt.Errorf("loading signal: %w", err)
	}

	var reference *table.Table
	if opts.ReferencePath != "" {
		reference, err = loader.ReadFile(opts.ReferencePath)
		if err != nil {
			return nil, fmt.Errorf("loading reference: %w", err)
		}
	}

	ds, err := ProcessTables(signal, reference, opts.Window, opts.Rule)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "processing complete",
		slog.Int("wavelengths", ds.Smoothed.NumWavelengths()),
		slog.Int("time_points", ds.Smoothed.NumTimes()),
		slog.Int("window", ds.Window),
		slog.String("rule", string(ds.Rule)))
	return ds, nil
}

// ProcessTables runs the pipeline on already-loaded tables.
func ProcessTables(signal, reference *table.Table, window int, rule combine.Rule) (*Dataset, error) {
	if rule == "" {
		rule = combine.RuleSubtract
	}
	if signal == nil {
		return nil, errors.NewAlignmentError("dataset.ProcessTables", "signal table is required")
	}

	// Reject a bad window before aligning, so parameter errors surface
	// even when the inputs cannot be combined.
	if err := smoothing.ValidateOptions(smoothing.Options{Window: window}, signal.NumTimes()); err != nil {
		return nil, err
	}

	res, err := combine.Combine(signal, reference, rule)
	if err != nil {
		return nil, err
	}

	smoothed, err := smoothing.Apply(res.Combined, smoothing.Options{Window: window})
	if err != nil {
		return nil, err
	}

	return &Dataset{
		Signal:          signal,
		Reference:       reference,
		SignalCommon:    res.SignalCommon,
		ReferenceCommon: res.ReferenceCommon,
		Combined:        res.Combined,
		Smoothed:        smoothed,
		Window:          window,
		Rule:            rule,
	}, nil
}

// Summary describes the processed dataset for logging and user
// feedback.
func (d *Dataset) Summary() string {
	return fmt.Sprintf(
		"Data processing complete:\n- Number of wavelengths: %d\n- Number of time points: %d\n- Moving average window: %d",
		d.Smoothed.NumWavelengths(), d.Smoothed.NumTimes(), d.Window)
}

// TimeRange returns the processed data's time extent.
func (d *Dataset) TimeRange() (min, max float64) {
	return d.Smoothed.TimeRange()
}
