package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taacli/internal/errors"
)

func newTestTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := New(
		[]float64{0, 1, 2, 3, 4},
		map[float64][]float64{
			532.0: {1, 2, 3, 4, 5},
			533.0: {10, 20, 30, 40, 50},
		},
	)
	require.NoError(t, err)
	return tbl
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		times   []float64
		columns map[float64][]float64
	}{
		{
			name:    "empty time axis",
			times:   nil,
			columns: map[float64][]float64{532: {}},
		},
		{
			name:    "no columns",
			times:   []float64{0, 1},
			columns: map[float64][]float64{},
		},
		{
			name:    "non-increasing times",
			times:   []float64{0, 2, 1},
			columns: map[float64][]float64{532: {1, 2, 3}},
		},
		{
			name:    "duplicate time point",
			times:   []float64{0, 1, 1},
			columns: map[float64][]float64{532: {1, 2, 3}},
		},
		{
			name:    "column length mismatch",
			times:   []float64{0, 1, 2},
			columns: map[float64][]float64{532: {1, 2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.times, tt.columns)
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindFormat))
		})
	}
}

func TestTable_Accessors(t *testing.T) {
	tbl := newTestTable(t)

	assert.Equal(t, 5, tbl.NumTimes())
	assert.Equal(t, 2, tbl.NumWavelengths())
	assert.Equal(t, []float64{532, 533}, tbl.Wavelengths())

	min, max := tbl.TimeRange()
	assert.Equal(t, 0.0, min)
	assert.Equal(t, 4.0, max)

	values, ok := tbl.Column(532)
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, values)

	_, ok = tbl.Column(999)
	assert.False(t, ok)

	v, err := tbl.ValueAt(533, 2)
	require.NoError(t, err)
	assert.Equal(t, 30.0, v)

	_, err = tbl.ValueAt(533, 7)
	assert.Error(t, err)
}

func TestTable_ImmutableFromCallers(t *testing.T) {
	times := []float64{0, 1, 2}
	columns := map[float64][]float64{532: {1, 2, 3}}
	tbl, err := New(times, columns)
	require.NoError(t, err)

	// Mutating inputs or returned slices must not leak into the table.
	times[0] = 99
	columns[532][0] = 99
	got, _ := tbl.Column(532)
	got[1] = 99

	assert.Equal(t, []float64{0, 1, 2}, tbl.Times())
	fresh, _ := tbl.Column(532)
	assert.Equal(t, []float64{1, 2, 3}, fresh)
}

func TestTable_Map(t *testing.T) {
	tbl := newTestTable(t)

	doubled, err := tbl.Map(func(_ float64, values []float64) []float64 {
		out := make([]float64, len(values))
		for i, v := range values {
			out[i] = v * 2
		}
		return out
	})
	require.NoError(t, err)

	values, _ := doubled.Column(532)
	assert.Equal(t, []float64{2, 4, 6, 8, 10}, values)

	// Original untouched.
	orig, _ := tbl.Column(532)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, orig)
}

func TestTable_Map_LengthChangeRejected(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.Map(func(_ float64, values []float64) []float64 {
		return values[:1]
	})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInvalidParameter))
}

func TestTable_Select(t *testing.T) {
	tbl := newTestTable(t)

	sub, err := tbl.Select([]int{1, 3}, []float64{533})
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 3}, sub.Times())
	assert.Equal(t, []float64{533}, sub.Wavelengths())
	values, _ := sub.Column(533)
	assert.Equal(t, []float64{20, 40}, values)
}

func TestTable_Select_Errors(t *testing.T) {
	tbl := newTestTable(t)

	_, err := tbl.Select(nil, []float64{532})
	assert.True(t, errors.IsKind(err, errors.KindAlignment))

	_, err = tbl.Select([]int{0}, []float64{999})
	assert.True(t, errors.IsKind(err, errors.KindAlignment))

	_, err = tbl.Select([]int{12}, []float64{532})
	assert.True(t, errors.IsKind(err, errors.KindInvalidParameter))
}

func TestTable_IntervalIndices(t *testing.T) {
	tbl := newTestTable(t)

	assert.Equal(t, []int{1, 2, 3}, tbl.IntervalIndices(1, 3))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, tbl.IntervalIndices(-10, 10))
	assert.Nil(t, tbl.IntervalIndices(5.5, 6))
}

func TestTable_AverageOverInterval(t *testing.T) {
	tbl := newTestTable(t)

	wavelengths, averages, err := tbl.AverageOverInterval(1, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{532, 533}, wavelengths)
	assert.InDelta(t, 3.0, averages[0], 1e-12)  // mean of 2,3,4
	assert.InDelta(t, 30.0, averages[1], 1e-12) // mean of 20,30,40

	_, _, err = tbl.AverageOverInterval(100, 200)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindAlignment))
}

func TestTable_Equal(t *testing.T) {
	a := newTestTable(t)
	b := newTestTable(t)
	assert.True(t, a.Equal(b, 1e-12))

	c, err := b.Map(func(_ float64, values []float64) []float64 {
		values[0] += 0.5
		return values
	})
	require.NoError(t, err)
	assert.False(t, a.Equal(c, 1e-12))
	assert.False(t, a.Equal(nil, 1e-12))
}

func TestTable_CSVShape(t *testing.T) {
	tbl := newTestTable(t)

	assert.Equal(t, []string{"Time", "532", "533"}, tbl.Headers())

	records := tbl.Records()
	require.Len(t, records, 5)
	assert.Equal(t, []string{"0", "1", "10"}, records[0])
	assert.Equal(t, []string{"4", "5", "50"}, records[4])
}
