package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"taacli/internal/dataset"
	"taacli/internal/exporter"
	"taacli/internal/infrastructure"
	"taacli/internal/plot"
	"taacli/internal/viewstate"
)

// debounceDelay coalesces the burst of write events most instrument
// software produces while saving a file.
const debounceDelay = 300 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-process and re-export whenever the input files change",
	Long: `watch runs an initial process+export and then watches the signal and
reference files, re-running the pipeline each time one of them is
written. Stop with Ctrl-C.`,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts, err := pipelineOptions(cmd)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the parent directories: editors and instrument software
	// often replace files instead of writing in place, which drops the
	// watch on the file itself.
	watched := map[string]bool{opts.SignalPath: true}
	dirs := map[string]bool{filepath.Dir(opts.SignalPath): true}
	if opts.ReferencePath != "" {
		watched[opts.ReferencePath] = true
		dirs[filepath.Dir(opts.ReferencePath)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	mgr := exporter.NewManager(resolveExportDir(), plot.NewRenderer())
	model := viewstate.New(nil)

	run := func() {
		runCtx := infrastructure.WithTraceID(ctx, uuid.NewString())
		ds, err := dataset.Process(runCtx, opts)
		if err != nil {
			reportError(err)
			return
		}
		if err := applySelection(model, ds); err != nil {
			reportError(err)
			return
		}
		report, err := mgr.ExportAll(runCtx, ds, model.Snapshot())
		if err != nil {
			reportError(err)
			return
		}
		printReport(report)
	}

	run()
	fmt.Println("watching for changes, Ctrl-C to stop")

	var pending *time.Timer
	fire := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			slog.Info("watch stopped")
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !watched[filepath.Clean(ev.Name)] {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			slog.Debug("input file changed",
				slog.String("file", ev.Name),
				slog.String("op", ev.Op.String()))
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(debounceDelay, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			run()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", slog.Any("error", err))
		}
	}
}
