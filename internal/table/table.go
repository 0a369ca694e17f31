// Package table defines the in-memory measurement table shared by the
// loader, the processing pipeline and the exporter: a strictly
// increasing time axis plus one intensity series per wavelength.
package table

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"taacli/internal/errors"
)

// Table holds a single measurement: time points and, for each
// wavelength, one intensity value per time point. Tables are immutable
// after construction; transforms produce new tables.
type Table struct {
	times       []float64
	wavelengths []float64 // ascending
	columns     map[float64][]float64
}

// New builds a table from a time axis and wavelength columns. It
// enforces the shape invariants: at least one time point and one
// wavelength, strictly increasing times, and every column as long as
// the time axis.
func New(times []float64, columns map[float64][]float64) (*Table, error) {
	if len(times) == 0 {
		return nil, errors.NewFormatError("table.New", "table has no time points")
	}
	if len(columns) == 0 {
		return nil, errors.NewFormatError("table.New", "table has no wavelength columns")
	}

	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return nil, errors.NewFormatError("table.New",
				fmt.Sprintf("time axis not strictly increasing at index %d (%g after %g)", i, times[i], times[i-1]))
		}
	}

	wavelengths := make([]float64, 0, len(columns))
	for w, values := range columns {
		if len(values) != len(times) {
			return nil, errors.NewFormatError("table.New",
				fmt.Sprintf("wavelength %g has %d values, expected %d", w, len(values), len(times)))
		}
		wavelengths = append(wavelengths, w)
	}
	sort.Float64s(wavelengths)

	t := &Table{
		times:       append([]float64(nil), times...),
		wavelengths: wavelengths,
		columns:     make(map[float64][]float64, len(columns)),
	}
	for w, values := range columns {
		t.columns[w] = append([]float64(nil), values...)
	}
	return t, nil
}

// Times returns a copy of the time axis.
func (t *Table) Times() []float64 {
	return append([]float64(nil), t.times...)
}

// Wavelengths returns the wavelength keys in ascending order.
func (t *Table) Wavelengths() []float64 {
	return append([]float64(nil), t.wavelengths...)
}

// Column returns a copy of the intensity series at the given
// wavelength, or false if the wavelength is not present.
func (t *Table) Column(wavelength float64) ([]float64, bool) {
	values, ok := t.columns[wavelength]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), values...), true
}

// HasWavelength reports whether the table has a column for wavelength.
func (t *Table) HasWavelength(wavelength float64) bool {
	_, ok := t.columns[wavelength]
	return ok
}

// NumTimes returns the number of time points.
func (t *Table) NumTimes() int { return len(t.times) }

// NumWavelengths returns the number of wavelength columns.
func (t *Table) NumWavelengths() int { return len(t.wavelengths) }

// TimeRange returns the first and last time point.
func (t *Table) TimeRange() (min, max float64) {
	return t.times[0], t.times[len(t.times)-1]
}

// ValueAt returns the intensity at a time index for a wavelength.
func (t *Table) ValueAt(wavelength float64, timeIndex int) (float64, error) {
	values, ok := t.columns[wavelength]
	if !ok {
		return 0, errors.NewInvalidParameterError("table.ValueAt",
			fmt.Sprintf("no column for wavelength %g", wavelength))
	}
	if timeIndex < 0 || timeIndex >= len(values) {
		return 0, errors.NewInvalidParameterError("table.ValueAt",
			fmt.Sprintf("time index %d out of range [0,%d)", timeIndex, len(values)))
	}
	return values[timeIndex], nil
}

// Map applies fn to each wavelength column and returns a new table with
// the same time axis. fn must return a slice of the same length.
func (t *Table) Map(fn func(wavelength float64, values []float64) []float64) (*Table, error) {
	columns := make(map[float64][]float64, len(t.columns))
	for _, w := range t.wavelengths {
		out := fn(w, append([]float64(nil), t.columns[w]...))
		if len(out) != len(t.times) {
			return nil, errors.NewInvalidParameterError("table.Map",
				fmt.Sprintf("transform changed column length for wavelength %g (%d != %d)", w, len(out), len(t.times)))
		}
		columns[w] = out
	}
	return New(t.times, columns)
}

// Select returns a new table restricted to the given time indices and
// wavelengths. Indices must be ascending; wavelengths must exist.
func (t *Table) Select(timeIndices []int, wavelengths []float64) (*Table, error) {
	if len(timeIndices) == 0 {
		return nil, errors.NewAlignmentError("table.Select", "no time points selected")
	}
	if len(wavelengths) == 0 {
		return nil, errors.NewAlignmentError("table.Select", "no wavelengths selected")
	}

	times := make([]float64, len(timeIndices))
	for i, idx := range timeIndices {
		if idx < 0 || idx >= len(t.times) {
			return nil, errors.NewInvalidParameterError("table.Select",
				fmt.Sprintf("time index %d out of range", idx))
		}
		times[i] = t.times[idx]
	}

	columns := make(map[float64][]float64, len(wavelengths))
	for _, w := range wavelengths {
		src, ok := t.columns[w]
		if !ok {
			return nil, errors.NewAlignmentError("table.Select",
				fmt.Sprintf("wavelength %g not present", w))
		}
		values := make([]float64, len(timeIndices))
		for i, idx := range timeIndices {
			values[i] = src[idx]
		}
		columns[w] = values
	}
	return New(times, columns)
}

// IntervalIndices returns the indices of time points falling inside
// [lo, hi], inclusive.
func (t *Table) IntervalIndices(lo, hi float64) []int {
	var indices []int
	for i, tp := range t.times {
		if tp >= lo && tp <= hi {
			indices = append(indices, i)
		}
	}
	return indices
}

// AverageOverInterval computes, for every wavelength, the mean
// intensity across the time points inside [lo, hi]. The returned
// slices are parallel and ordered by ascending wavelength. An interval
// containing no time points yields an alignment error.
func (t *Table) AverageOverInterval(lo, hi float64) (wavelengths, averages []float64, err error) {
	indices := t.IntervalIndices(lo, hi)
	if len(indices) == 0 {
		return nil, nil, errors.NewAlignmentError("table.AverageOverInterval",
			fmt.Sprintf("no time points in interval [%g, %g]", lo, hi))
	}

	wavelengths = t.Wavelengths()
	averages = make([]float64, len(wavelengths))
	for i, w := range wavelengths {
		values := t.columns[w]
		var sum float64
		for _, idx := range indices {
			sum += values[idx]
		}
		averages[i] = sum / float64(len(indices))
	}
	return wavelengths, averages, nil
}

// Equal reports whether two tables have identical axes and values
// within the given absolute tolerance.
func (t *Table) Equal(other *Table, tolerance float64) bool {
	if other == nil || len(t.times) != len(other.times) || len(t.wavelengths) != len(other.wavelengths) {
		return false
	}
	for i := range t.times {
		if math.Abs(t.times[i]-other.times[i]) > tolerance {
			return false
		}
	}
	for _, w := range t.wavelengths {
		otherValues, ok := other.columns[w]
		if !ok {
			return false
		}
		values := t.columns[w]
		for i := range values {
			if math.Abs(values[i]-otherValues[i]) > tolerance {
				return false
			}
		}
	}
	return true
}

// Headers returns the CSV header row: time first, then the wavelengths
// in ascending order.
func (t *Table) Headers() []string {
	headers := make([]string, 0, len(t.wavelengths)+1)
	headers = append(headers, "Time")
	for _, w := range t.wavelengths {
		headers = append(headers, formatFloat(w))
	}
	return headers
}

// Records returns the table body as CSV records, one per time point.
func (t *Table) Records() [][]string {
	records := make([][]string, len(t.times))
	for i, tp := range t.times {
		row := make([]string, 0, len(t.wavelengths)+1)
		row = append(row, formatFloat(tp))
		for _, w := range t.wavelengths {
			row = append(row, formatFloat(t.columns[w][i]))
		}
		records[i] = row
	}
	return records
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
