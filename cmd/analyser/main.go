// Command analyser processes transient-absorption measurement files:
// it loads signal and optional reference data, applies background
// subtraction and moving-average smoothing, and exports the processed
// tables and plots.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"taacli/internal/combine"
	"taacli/internal/config"
	"taacli/internal/dataset"
	"taacli/internal/errors"
	"taacli/internal/exporter"
	"taacli/internal/infrastructure"
	"taacli/internal/plot"
	"taacli/internal/viewstate"
)

var (
	signalPath    string
	referencePath string
	window        int
	ruleName      string

	exportDir  string
	highlights []float64
	fromTime   float64
	toTime     float64
	syncZoom   bool

	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "analyser",
		Short: "Transient-absorption spectroscopy analysis tool",
		Long: `analyser processes transient-absorption measurement files.

It loads a signal table (CSV, TXT or Excel; first column time, remaining
columns headed by numeric wavelengths), optionally subtracts a dark
reference, smooths each wavelength with a moving average, and exports
the processed tables together with rendered plots.

Examples:
  analyser process -s signal.csv -n 5
  analyser export -s signal.csv -r dark.csv -n 3 -o results
  analyser export -s signal.csv --highlight 532 --from 10 --to 40
  analyser watch -s signal.csv -r dark.csv -o results`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	processCmd = &cobra.Command{
		Use:   "process",
		Short: "Load and process measurement files, printing a summary",
		RunE:  runProcess,
	}

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Process measurement files and export tables and figures",
	}
)

func init() {
	exportCmd.RunE = runExport
	watchCmd.RunE = runWatch
	for _, cmd := range []*cobra.Command{processCmd, exportCmd, watchCmd} {
		cmd.Flags().StringVarP(&signalPath, "signal", "s", "", "signal data file (required)")
		cmd.Flags().StringVarP(&referencePath, "reference", "r", "", "reference (dark) data file")
		cmd.Flags().IntVarP(&window, "window", "n", 0, "moving-average window (odd, default from config)")
		cmd.Flags().StringVar(&ruleName, "rule", "", "combination rule: subtract or ratio")
		_ = cmd.MarkFlagRequired("signal")
	}
	for _, cmd := range []*cobra.Command{exportCmd, watchCmd} {
		cmd.Flags().StringVarP(&exportDir, "out", "o", "", "export base directory (default from config)")
		cmd.Flags().Float64SliceVar(&highlights, "highlight", nil, "wavelengths to highlight in the curve plot")
		cmd.Flags().Float64Var(&fromTime, "from", 0, "selected time interval start (default: data start)")
		cmd.Flags().Float64Var(&toTime, "to", 0, "selected time interval end (default: data end)")
		cmd.Flags().BoolVar(&syncZoom, "sync-zoom", true, "propagate zoom bounds across plot panels")
	}

	rootCmd.AddCommand(processCmd, exportCmd, watchCmd)
}

func main() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	infrastructure.MustInitializeLogger(cfg.Logging)
	defer infrastructure.CloseLogFile()

	if err := rootCmd.Execute(); err != nil {
		reportError(err)
		os.Exit(1)
	}
}

// pipelineOptions resolves CLI flags against config defaults. A flag
// the user explicitly set always wins, even when set to a value the
// pipeline will reject.
func pipelineOptions(cmd *cobra.Command) (dataset.Options, error) {
	w := cfg.Processing.Window
	if cmd.Flags().Changed("window") {
		w = window
	}
	name := cfg.Processing.Rule
	if cmd.Flags().Changed("rule") {
		name = ruleName
	}
	rule, err := combine.ParseRule(name)
	if err != nil {
		return dataset.Options{}, err
	}
	return dataset.Options{
		SignalPath:    signalPath,
		ReferencePath: referencePath,
		Window:        w,
		Rule:          rule,
	}, nil
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := infrastructure.WithTraceID(cmd.Context(), uuid.NewString())

	opts, err := pipelineOptions(cmd)
	if err != nil {
		return err
	}
	ds, err := dataset.Process(ctx, opts)
	if err != nil {
		return err
	}

	fmt.Println(ds.Summary())
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := infrastructure.WithTraceID(cmd.Context(), uuid.NewString())

	opts, err := pipelineOptions(cmd)
	if err != nil {
		return err
	}
	ds, err := dataset.Process(ctx, opts)
	if err != nil {
		return err
	}

	model := viewstate.New(nil)
	if err := applySelection(model, ds); err != nil {
		return err
	}

	mgr := exporter.NewManager(resolveExportDir(), plot.NewRenderer())
	report, err := mgr.ExportAll(ctx, ds, model.Snapshot())
	if err != nil {
		return err
	}
	printReport(report)
	return nil
}

// applySelection initializes the view state for a freshly processed
// dataset and applies the selection flags.
func applySelection(model *viewstate.Model, ds *dataset.Dataset) error {
	for _, panel := range plot.Panels {
		model.RegisterPlot(panel)
	}

	lo, hi := ds.TimeRange()
	model.Reset(ds.Smoothed.Wavelengths(), lo, hi)
	model.SetSyncZoom(syncZoom)

	if len(highlights) > 0 {
		if err := model.SetHighlighted(highlights...); err != nil {
			return err
		}
	}

	from, to := lo, hi
	if flagChanged("from") {
		from = fromTime
	}
	if flagChanged("to") {
		to = toTime
	}
	model.SelectInterval(from, to)
	return nil
}

// flagChanged reports whether the user set the named flag on any of the
// export-capable commands this run.
func flagChanged(name string) bool {
	for _, cmd := range []*cobra.Command{exportCmd, watchCmd} {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			return true
		}
	}
	return false
}

func resolveExportDir() string {
	if exportDir != "" {
		return exportDir
	}
	return cfg.Paths.ExportDir
}

func printReport(report *exporter.Report) {
	fmt.Printf("Exported to %s\n", report.ExportDir)
	for _, name := range report.Written {
		fmt.Printf("  wrote %s\n", name)
	}
	for _, failed := range report.Failed {
		fmt.Fprintf(os.Stderr, "  FAILED %s: %v\n", failed.Name, failed.Err)
	}
}

// reportError translates pipeline errors into user-facing messages.
func reportError(err error) {
	switch errors.KindOf(err) {
	case errors.KindIO:
		fmt.Fprintf(os.Stderr, "file error: %v\n", err)
	case errors.KindFormat:
		fmt.Fprintf(os.Stderr, "input format error: %v\n", err)
	case errors.KindInvalidParameter:
		fmt.Fprintf(os.Stderr, "invalid parameter: %v\n", err)
	case errors.KindAlignment:
		fmt.Fprintf(os.Stderr, "signal/reference mismatch: %v\n", err)
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	slog.Error("command failed", slog.Any("error", err))
}
