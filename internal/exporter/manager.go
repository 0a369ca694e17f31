// Package exporter writes processed datasets and rendered figures to
// disk. Exports land in a timestamped directory per dataset, with
// data/ and figures/ subdirectories; re-exporting an unchanged dataset
// reuses the directory and only refreshes the figures.
package exporter

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bytedance/sonic"

	"taacli/internal/combine"
	"taacli/internal/dataset"
	"taacli/internal/errors"
	"taacli/internal/infrastructure"
	"taacli/internal/plot"
	"taacli/internal/table"
	"taacli/internal/viewstate"
)

// ArtifactError records one failed artifact in an otherwise
// independent export run.
type ArtifactError struct {
	Name string
	Err  error
}

// Report summarizes an export run. Artifacts are independent: failures
// are collected here, already-written files are never rolled back.
type Report struct {
	ExportDir string
	Written   []string
	Failed    []ArtifactError
}

// OK reports whether every artifact was written.
func (r *Report) OK() bool { return len(r.Failed) == 0 }

// Manager exports datasets and figures.
type Manager struct {
	baseDir  string
	renderer *plot.Renderer

	currentExportDir string
	currentDataHash  string

	// now is swappable in tests.
	now func() time.Time
}

// NewManager creates an export manager writing below baseDir.
func NewManager(baseDir string, renderer *plot.Renderer) *Manager {
	if renderer == nil {
		renderer = plot.NewRenderer()
	}
	return &Manager{
		baseDir:  baseDir,
		renderer: renderer,
		now:      time.Now,
	}
}

// ExportAll writes the dataset's tables and renders every plot panel
// using the given view-state snapshot. A new export directory is
// created when the dataset changed since the last export; otherwise
// only the figures are re-rendered into the existing directory.
func (m *Manager) ExportAll(ctx context.Context, ds *dataset.Dataset, snap viewstate.Snapshot) (*Report, error) {
	logger := infrastructure.LoggerFromContext(ctx)

	hash, err := m.dataHash(ds)
	if err != nil {
		return nil, fmt.Errorf("hashing dataset: %w", err)
	}

	report := &Report{}
	freshDir := m.currentExportDir == "" || m.currentDataHash != hash
	if freshDir {
		m.currentExportDir = filepath.Join(m.baseDir,
			fmt.Sprintf("%s_N%d", m.now().Format("20060102_150405"), ds.Window))
		m.currentDataHash = hash
	}
	report.ExportDir = m.currentExportDir

	for _, sub := range []string{"data", "figures"} {
		dir := filepath.Join(m.currentExportDir, sub)
		if err := os.MkdirAll(dir, 0755); err != nil {
			m.currentExportDir = ""
			m.currentDataHash = ""
			return nil, errors.NewIOError("exporter.ExportAll", dir, err)
		}
	}

	if freshDir {
		m.exportDataFiles(ds, snap, report)
	}
	m.exportFigures(ds, snap, report)

	logger.InfoContext(ctx, "export complete",
		slog.String("export_dir", report.ExportDir),
		slog.Int("written", len(report.Written)),
		slog.Int("failed", len(report.Failed)))
	return report, nil
}

// exportDataFiles writes every table the pipeline produced. Tables a
// signal-only run does not have are skipped.
func (m *Manager) exportDataFiles(ds *dataset.Dataset, snap viewstate.Snapshot, report *Report) {
	writer := NewCSVWriter(filepath.Join(m.currentExportDir, "data"))

	files := []struct {
		name string
		tbl  *table.Table
	}{
		{"signal.csv", ds.Signal},
		{"reference_dark.csv", ds.Reference},
		{"common_signal.csv", ds.SignalCommon},
		{"common_reference_dark.csv", ds.ReferenceCommon},
		{combinedFileName(ds), ds.Combined},
		{"moving_average.csv", ds.Smoothed},
	}
	for _, f := range files {
		if f.tbl == nil {
			continue
		}
		if err := writer.WriteSimpleCSV(f.name, f.tbl.Headers(), f.tbl.Records()); err != nil {
			report.Failed = append(report.Failed, ArtifactError{Name: f.name, Err: err})
			continue
		}
		report.Written = append(report.Written, filepath.Join("data", f.name))
	}

	m.exportTimeAveraged(writer, ds, snap, report)
}

// exportTimeAveraged writes the mean intensity per wavelength over the
// currently selected time interval.
func (m *Manager) exportTimeAveraged(writer *CSVWriter, ds *dataset.Dataset, snap viewstate.Snapshot, report *Report) {
	const name = "time_averaged.csv"

	wavelengths, averages, err := ds.Smoothed.AverageOverInterval(snap.IntervalLo, snap.IntervalHi)
	if err != nil {
		report.Failed = append(report.Failed, ArtifactError{Name: name, Err: err})
		return
	}

	records := make([][]string, len(wavelengths))
	for i := range wavelengths {
		records[i] = []string{
			strconv.FormatFloat(wavelengths[i], 'g', -1, 64),
			strconv.FormatFloat(averages[i], 'g', -1, 64),
		}
	}
	if err := writer.WriteSimpleCSV(name, []string{"Wavelength", "AverageIntensity"}, records); err != nil {
		report.Failed = append(report.Failed, ArtifactError{Name: name, Err: err})
		return
	}
	report.Written = append(report.Written, filepath.Join("data", name))
}

// exportFigures renders each plot panel to PNG. Figure names carry a
// timestamp so repeated exports of the same dataset keep their
// history.
func (m *Manager) exportFigures(ds *dataset.Dataset, snap viewstate.Snapshot, report *Report) {
	stamp := m.now().Format("150405")
	figDir := filepath.Join(m.currentExportDir, "figures")

	figures := []struct {
		name   string
		render func(w *os.File) error
	}{
		{
			name:   fmt.Sprintf("all_spectrum_%s.png", stamp),
			render: func(w *os.File) error { return m.renderer.Spectrum(ds.Smoothed, snap, w) },
		},
		{
			name:   fmt.Sprintf("curve_%s_%s.png", highlightTag(snap), stamp),
			render: func(w *os.File) error { return m.renderer.HighlightedCurves(ds.Smoothed, snap, w) },
		},
		{
			name: fmt.Sprintf("avg_signal_vs_wavelength_time_%d_%dns_%s.png",
				int(snap.IntervalLo), int(snap.IntervalHi), stamp),
			render: func(w *os.File) error { return m.renderer.AverageIntensity(ds.Smoothed, snap, w) },
		},
		{
			name:   fmt.Sprintf("time_range_selection_%s.png", stamp),
			render: func(w *os.File) error { return m.renderer.TimeRangeSelection(ds.Smoothed, snap, w) },
		},
	}

	for _, fig := range figures {
		path := filepath.Join(figDir, fig.name)
		if err := m.writeFigure(path, fig.render); err != nil {
			report.Failed = append(report.Failed, ArtifactError{Name: fig.name, Err: err})
			continue
		}
		report.Written = append(report.Written, filepath.Join("figures", fig.name))
	}
}

func (m *Manager) writeFigure(path string, render func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.NewIOError("exporter.writeFigure", path, err)
	}
	if err := render(f); err != nil {
		f.Close()
		os.Remove(path) // don't leave a truncated image behind
		return err
	}
	return f.Close()
}

// dataHash fingerprints the dataset so unchanged data reuses its
// export directory.
func (m *Manager) dataHash(ds *dataset.Dataset) (string, error) {
	var buf bytes.Buffer
	for _, tbl := range []*table.Table{ds.Signal, ds.Reference, ds.Combined, ds.Smoothed} {
		if tbl == nil {
			buf.WriteString("nil;")
			continue
		}
		payload, err := sonic.Marshal(tbl.Records())
		if err != nil {
			return "", err
		}
		buf.Write(payload)
		buf.WriteByte(';')
	}
	buf.WriteString(strconv.Itoa(ds.Window))

	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

func combinedFileName(ds *dataset.Dataset) string {
	if ds.ReferenceCommon == nil {
		return "combined.csv"
	}
	if ds.Rule == combine.RuleRatio {
		return "common_signal_over_common_reference.csv"
	}
	return "common_signal_minus_common_reference.csv"
}

// highlightTag names the curve figure after the highlighted
// wavelengths, or "all" when nothing is highlighted.
func highlightTag(snap viewstate.Snapshot) string {
	if len(snap.Highlighted) == 0 {
		return "all"
	}
	tag := ""
	for i, w := range snap.Highlighted {
		if i > 0 {
			tag += "_"
		}
		tag += strconv.FormatFloat(w, 'g', -1, 64)
	}
	return tag
}
