// Package plot renders the analysis views to PNG: the full spectrum
// vs time, highlighted curves, the time-range selection view and the
// average-intensity-vs-wavelength slice. Rendering is driven by a
// view-state snapshot so exported figures always match what the linked
// plots would show.
package plot

import (
	"fmt"
	"io"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"taacli/internal/errors"
	"taacli/internal/table"
	"taacli/internal/viewstate"
)

// Plot panel names, shared with the view-state model and the exporter.
const (
	PanelSpectrum  = "spectrum"
	PanelCurves    = "curves"
	PanelIntensity = "intensity"
	PanelTimeRange = "time_range"
)

// Panels lists every plot panel in render order.
var Panels = []string{PanelSpectrum, PanelCurves, PanelIntensity, PanelTimeRange}

var dimmedColor = drawing.Color{R: 180, G: 180, B: 180, A: 90}

// Renderer draws charts at a fixed pixel size.
type Renderer struct {
	Width  int
	Height int
}

// NewRenderer returns a renderer at the default figure size.
func NewRenderer() *Renderer {
	return &Renderer{Width: 1024, Height: 768}
}

// Spectrum renders every wavelength's intensity against time.
func (r *Renderer) Spectrum(tbl *table.Table, snap viewstate.Snapshot, w io.Writer) error {
	if err := plottable(tbl); err != nil {
		return err
	}

	times := tbl.Times()
	var series []chart.Series
	for i, wavelength := range tbl.Wavelengths() {
		values, _ := tbl.Column(wavelength)
		series = append(series, chart.ContinuousSeries{
			Name:    fmt.Sprintf("%g nm", wavelength),
			XValues: times,
			YValues: values,
			Style: chart.Style{
				StrokeColor: chart.GetDefaultColor(i),
				StrokeWidth: 1.5,
			},
		})
	}

	return r.render("absorption", "Time (ns)", "Intensity (a.u.)", series, snap, PanelSpectrum, w)
}

// HighlightedCurves renders all wavelengths dimmed with the highlighted
// set drawn on top in full color. Without highlights it matches
// Spectrum.
func (r *Renderer) HighlightedCurves(tbl *table.Table, snap viewstate.Snapshot, w io.Writer) error {
	if err := plottable(tbl); err != nil {
		return err
	}
	if len(snap.Highlighted) == 0 {
		return r.Spectrum(tbl, snap, w)
	}

	highlighted := make(map[float64]bool, len(snap.Highlighted))
	for _, wavelength := range snap.Highlighted {
		highlighted[wavelength] = true
	}

	times := tbl.Times()
	var series []chart.Series
	for _, wavelength := range tbl.Wavelengths() {
		if highlighted[wavelength] {
			continue
		}
		values, _ := tbl.Column(wavelength)
		series = append(series, chart.ContinuousSeries{
			XValues: times,
			YValues: values,
			Style: chart.Style{
				StrokeColor: dimmedColor,
				StrokeWidth: 1,
			},
		})
	}
	for i, wavelength := range snap.Highlighted {
		values, ok := tbl.Column(wavelength)
		if !ok {
			continue
		}
		series = append(series, chart.ContinuousSeries{
			Name:    fmt.Sprintf("%g nm", wavelength),
			XValues: times,
			YValues: values,
			Style: chart.Style{
				StrokeColor: chart.GetDefaultColor(i),
				StrokeWidth: 2.5,
			},
		})
	}

	return r.render("absorption", "Time (ns)", "Intensity (a.u.)", series, snap, PanelCurves, w)
}

// TimeRangeSelection renders the spectrum with the selected interval
// emphasised: samples inside the selection are drawn in full color
// over the dimmed full curves.
func (r *Renderer) TimeRangeSelection(tbl *table.Table, snap viewstate.Snapshot, w io.Writer) error {
	if err := plottable(tbl); err != nil {
		return err
	}

	times := tbl.Times()
	indices := tbl.IntervalIndices(snap.IntervalLo, snap.IntervalHi)

	var series []chart.Series
	for _, wavelength := range tbl.Wavelengths() {
		values, _ := tbl.Column(wavelength)
		series = append(series, chart.ContinuousSeries{
			XValues: times,
			YValues: values,
			Style: chart.Style{
				StrokeColor: dimmedColor,
				StrokeWidth: 1,
			},
		})
	}
	if len(indices) >= 2 {
		selTimes := make([]float64, len(indices))
		for i, wavelength := range tbl.Wavelengths() {
			values, _ := tbl.Column(wavelength)
			selValues := make([]float64, len(indices))
			for j, idx := range indices {
				selTimes[j] = times[idx]
				selValues[j] = values[idx]
			}
			series = append(series, chart.ContinuousSeries{
				Name:    fmt.Sprintf("%g nm", wavelength),
				XValues: selTimes,
				YValues: selValues,
				Style: chart.Style{
					StrokeColor: chart.GetDefaultColor(i),
					StrokeWidth: 2.5,
				},
			})
		}
	}

	title := fmt.Sprintf("time range selection: %.2f - %.2f ns", snap.IntervalLo, snap.IntervalHi)
	return r.render(title, "Time (ns)", "Intensity (a.u.)", series, snap, PanelTimeRange, w)
}

// AverageIntensity renders the mean intensity over the selected time
// interval against wavelength.
func (r *Renderer) AverageIntensity(tbl *table.Table, snap viewstate.Snapshot, w io.Writer) error {
	wavelengths, averages, err := tbl.AverageOverInterval(snap.IntervalLo, snap.IntervalHi)
	if err != nil {
		return err
	}
	if len(wavelengths) < 2 {
		return errors.NewInvalidParameterError("plot.AverageIntensity",
			"need at least two wavelengths to plot an average-intensity curve")
	}

	series := []chart.Series{chart.ContinuousSeries{
		Name:    "average intensity",
		XValues: wavelengths,
		YValues: averages,
		Style: chart.Style{
			StrokeColor: chart.ColorBlue,
			StrokeWidth: 1.5,
			DotColor:    chart.ColorBlue,
			DotWidth:    4,
		},
	}}

	title := fmt.Sprintf("average intensity v.s. wavelength, time span: %.2f - %.2f ns",
		snap.IntervalLo, snap.IntervalHi)
	return r.render(title, "Wavelength (nm)", "Average Intensity", series, snap, PanelIntensity, w)
}

func (r *Renderer) render(title, xLabel, yLabel string, series []chart.Series, snap viewstate.Snapshot, panel string, w io.Writer) error {
	xAxis := chart.XAxis{Name: xLabel}
	yAxis := chart.YAxis{Name: yLabel}

	// Apply the panel's zoom bounds when it is zoomed.
	if snap.Zoomed[panel] {
		b := snap.Views[panel]
		xAxis.Range = &chart.ContinuousRange{Min: b.XMin, Max: b.XMax}
		yAxis.Range = &chart.ContinuousRange{Min: b.YMin, Max: b.YMax}
	}

	ch := chart.Chart{
		Title:      title,
		Width:      r.Width,
		Height:     r.Height,
		Background: chart.Style{Padding: chart.Box{Top: 16, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      xAxis,
		YAxis:      yAxis,
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("rendering %s chart: %w", panel, err)
	}
	return nil
}

func plottable(tbl *table.Table) error {
	if tbl == nil {
		return errors.NewInvalidParameterError("plot", "no table to plot")
	}
	if tbl.NumTimes() < 2 {
		return errors.NewInvalidParameterError("plot",
			"need at least two time points to plot a time series")
	}
	return nil
}
