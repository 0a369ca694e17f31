package exporter

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taacli/internal/combine"
	"taacli/internal/dataset"
	"taacli/internal/errors"
	"taacli/internal/table"
	"taacli/internal/viewstate"
)

func testDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	signal, err := table.New(
		[]float64{0, 1, 2, 3, 4},
		map[float64][]float64{
			532: {10, 20, 30, 40, 50},
			533: {1, 2, 3, 4, 5},
		},
	)
	require.NoError(t, err)
	reference, err := table.New(
		[]float64{0, 1, 2, 3, 4},
		map[float64][]float64{
			532: {1, 1, 1, 1, 1},
			533: {0.5, 0.5, 0.5, 0.5, 0.5},
		},
	)
	require.NoError(t, err)

	ds, err := dataset.ProcessTables(signal, reference, 3, combine.RuleSubtract)
	require.NoError(t, err)
	return ds
}

func testSnapshot(t *testing.T, ds *dataset.Dataset) viewstate.Snapshot {
	t.Helper()
	m := viewstate.New(nil)
	lo, hi := ds.TimeRange()
	m.Reset(ds.Smoothed.Wavelengths(), lo, hi)
	return m.Snapshot()
}

func TestExportAll_WritesDataAndFigures(t *testing.T) {
	baseDir := t.TempDir()
	mgr := NewManager(baseDir, nil)
	ds := testDataset(t)

	report, err := mgr.ExportAll(context.Background(), ds, testSnapshot(t, ds))
	require.NoError(t, err)
	require.True(t, report.OK(), "failed artifacts: %v", report.Failed)

	for _, name := range []string{
		"data/signal.csv",
		"data/reference_dark.csv",
		"data/common_signal.csv",
		"data/common_reference_dark.csv",
		"data/common_signal_minus_common_reference.csv",
		"data/moving_average.csv",
		"data/time_averaged.csv",
	} {
		assert.FileExists(t, filepath.Join(report.ExportDir, name))
	}

	figures, err := filepath.Glob(filepath.Join(report.ExportDir, "figures", "*.png"))
	require.NoError(t, err)
	assert.Len(t, figures, 4)

	// Export dir carries the window size.
	assert.Contains(t, filepath.Base(report.ExportDir), "_N3")
}

func TestExportAll_SignalOnlySkipsReferenceFiles(t *testing.T) {
	signal, err := table.New([]float64{0, 1, 2}, map[float64][]float64{
		532: {1, 2, 3},
		533: {4, 5, 6},
	})
	require.NoError(t, err)
	ds, err := dataset.ProcessTables(signal, nil, 1, combine.RuleSubtract)
	require.NoError(t, err)

	mgr := NewManager(t.TempDir(), nil)
	report, err := mgr.ExportAll(context.Background(), ds, testSnapshot(t, ds))
	require.NoError(t, err)
	require.True(t, report.OK(), "failed artifacts: %v", report.Failed)

	assert.FileExists(t, filepath.Join(report.ExportDir, "data", "signal.csv"))
	assert.NoFileExists(t, filepath.Join(report.ExportDir, "data", "reference_dark.csv"))
	assert.NoFileExists(t, filepath.Join(report.ExportDir, "data", "common_signal.csv"))
}

func TestExportAll_TimeAveragedFollowsSelection(t *testing.T) {
	ds := testDataset(t)
	m := viewstate.New(nil)
	lo, hi := ds.TimeRange()
	m.Reset(ds.Smoothed.Wavelengths(), lo, hi)
	m.SelectInterval(1, 3)

	mgr := NewManager(t.TempDir(), nil)
	report, err := mgr.ExportAll(context.Background(), ds, m.Snapshot())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(report.ExportDir, "data", "time_averaged.csv"))
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "Wavelength,AverageIntensity")
	// Combined 532 is [9,19,29,39,49]; smoothed with window 3 gives
	// [14,19,29,39,44], and rows 1..3 average to 29.
	assert.Contains(t, content, "532,29")
}

func TestExportAll_ReusesDirForUnchangedData(t *testing.T) {
	mgr := NewManager(t.TempDir(), nil)
	ds := testDataset(t)
	snap := testSnapshot(t, ds)

	stamps := []time.Time{
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC),
	}
	i := 0
	mgr.now = func() time.Time { t := stamps[i%len(stamps)]; i++; return t }

	first, err := mgr.ExportAll(context.Background(), ds, snap)
	require.NoError(t, err)
	second, err := mgr.ExportAll(context.Background(), ds, snap)
	require.NoError(t, err)

	assert.Equal(t, first.ExportDir, second.ExportDir)
	// Second run rewrites figures only.
	for _, name := range second.Written {
		assert.Contains(t, name, "figures")
	}
}

func TestExportAll_NewDirForChangedData(t *testing.T) {
	mgr := NewManager(t.TempDir(), nil)
	ds := testDataset(t)
	snap := testSnapshot(t, ds)

	times := []time.Time{
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
	}
	i := 0
	mgr.now = func() time.Time { t := times[i%len(times)]; i++; return t }

	first, err := mgr.ExportAll(context.Background(), ds, snap)
	require.NoError(t, err)

	// Re-processing with a different window is a different dataset.
	ds2, err := dataset.ProcessTables(ds.Signal, ds.Reference, 5, combine.RuleSubtract)
	require.NoError(t, err)
	second, err := mgr.ExportAll(context.Background(), ds2, snap)
	require.NoError(t, err)

	assert.NotEqual(t, first.ExportDir, second.ExportDir)
	assert.Contains(t, filepath.Base(second.ExportDir), "_N5")
}

func TestExportAll_UnwritableDestination(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced the same way on Windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}

	baseDir := t.TempDir()
	require.NoError(t, os.Chmod(baseDir, 0555))
	t.Cleanup(func() { _ = os.Chmod(baseDir, 0755) })

	mgr := NewManager(baseDir, nil)
	ds := testDataset(t)

	report, err := mgr.ExportAll(context.Background(), ds, testSnapshot(t, ds))
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, errors.IsKind(err, errors.KindIO))
}

func TestExportAll_PartialFailureIsReported(t *testing.T) {
	mgr := NewManager(t.TempDir(), nil)
	ds := testDataset(t)

	// An out-of-range selection makes the time-averaged slice and the
	// average-intensity figure fail; everything else still exports.
	snap := testSnapshot(t, ds)
	snap.IntervalLo, snap.IntervalHi = 500, 600

	report, err := mgr.ExportAll(context.Background(), ds, snap)
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.False(t, report.OK())
	assert.NotEmpty(t, report.Written, "independent artifacts are still written")

	var failedNames []string
	for _, f := range report.Failed {
		failedNames = append(failedNames, f.Name)
	}
	assert.Contains(t, failedNames, "time_averaged.csv")
}
