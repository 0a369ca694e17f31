// Package combine aligns a signal table with an optional reference
// (dark) table and derives the combined dataset used by the rest of
// the pipeline.
package combine

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"taacli/internal/errors"
	"taacli/internal/table"
)

// Rule selects how aligned signal and reference values are combined.
type Rule string

const (
	// RuleSubtract computes signal minus reference, the conventional
	// background subtraction.
	RuleSubtract Rule = "subtract"
	// RuleRatio computes signal divided by reference. Reference values
	// of zero yield non-finite results; they are passed through as-is.
	RuleRatio Rule = "ratio"
)

// ParseRule validates a rule name.
func ParseRule(s string) (Rule, error) {
	switch Rule(s) {
	case RuleSubtract, RuleRatio:
		return Rule(s), nil
	default:
		return "", errors.NewInvalidParameterError("combine.ParseRule",
			fmt.Sprintf("unknown combination rule %q: use %q or %q", s, RuleSubtract, RuleRatio))
	}
}

func (r Rule) apply(signal, reference float64) float64 {
	if r == RuleRatio {
		return signal / reference
	}
	return signal - reference
}

// Result carries the combined table together with the signal and
// reference tables filtered to the common axes; the filtered tables
// are exported alongside the combination.
type Result struct {
	Combined        *table.Table
	SignalCommon    *table.Table
	ReferenceCommon *table.Table
}

// wavelengthMatchPrecision is the rounding applied to wavelengths
// before matching signal against reference columns.
const wavelengthMatchPrecision = 2

// Combine aligns signal and reference on the exact intersection of
// their time axes and wavelength keys and applies the rule. No
// interpolation is performed. If reference is nil the signal passes
// through unchanged and the common tables are nil.
func Combine(signal, reference *table.Table, rule Rule) (*Result, error) {
	if signal == nil {
		return nil, errors.NewAlignmentError("combine.Combine", "signal table is required")
	}
	if reference == nil {
		return &Result{Combined: signal}, nil
	}

	sigWaves, err := matchWavelengths(signal, reference)
	if err != nil {
		return nil, err
	}
	refByRounded, err := roundedIndex(reference)
	if err != nil {
		return nil, err
	}

	sigIndices, refIndices, err := matchTimes(signal, reference)
	if err != nil {
		return nil, err
	}

	signalCommon, err := signal.Select(sigIndices, sigWaves)
	if err != nil {
		return nil, err
	}

	refWaves := make([]float64, len(sigWaves))
	for i, w := range sigWaves {
		refWaves[i] = refByRounded[roundTo(w, wavelengthMatchPrecision)]
	}
	referenceCommon, err := reference.Select(refIndices, refWaves)
	if err != nil {
		return nil, err
	}

	// Combine column by column; the output keeps the signal's
	// wavelength keys.
	columns := make(map[float64][]float64, len(sigWaves))
	times := signalCommon.Times()
	for i, w := range sigWaves {
		sigValues, _ := signalCommon.Column(w)
		refValues, _ := referenceCommon.Column(refWaves[i])
		out := make([]float64, len(sigValues))
		for j := range sigValues {
			out[j] = rule.apply(sigValues[j], refValues[j])
		}
		columns[w] = out
	}

	combined, err := table.New(times, columns)
	if err != nil {
		return nil, err
	}

	slog.Info("signal and reference combined",
		slog.String("rule", string(rule)),
		slog.Int("common_wavelengths", len(sigWaves)),
		slog.Int("common_time_points", len(times)))

	return &Result{
		Combined:        combined,
		SignalCommon:    signalCommon,
		ReferenceCommon: referenceCommon,
	}, nil
}

// matchWavelengths returns the signal wavelengths that have a
// counterpart in the reference after rounding, in ascending order.
func matchWavelengths(signal, reference *table.Table) ([]float64, error) {
	refByRounded, err := roundedIndex(reference)
	if err != nil {
		return nil, err
	}

	var matched []float64
	seen := make(map[float64]bool)
	for _, w := range signal.Wavelengths() {
		rounded := roundTo(w, wavelengthMatchPrecision)
		if seen[rounded] {
			return nil, errors.NewAlignmentError("combine.Combine",
				fmt.Sprintf("signal wavelengths are ambiguous at %.2f after rounding", rounded))
		}
		seen[rounded] = true
		if _, ok := refByRounded[rounded]; ok {
			matched = append(matched, w)
		}
	}
	if len(matched) == 0 {
		return nil, errors.NewAlignmentError("combine.Combine",
			"no common wavelengths between signal and reference")
	}
	sort.Float64s(matched)
	return matched, nil
}

// roundedIndex maps each rounded reference wavelength to its original
// key, rejecting collisions.
func roundedIndex(t *table.Table) (map[float64]float64, error) {
	index := make(map[float64]float64, t.NumWavelengths())
	for _, w := range t.Wavelengths() {
		rounded := roundTo(w, wavelengthMatchPrecision)
		if _, ok := index[rounded]; ok {
			return nil, errors.NewAlignmentError("combine.Combine",
				fmt.Sprintf("reference wavelengths are ambiguous at %.2f after rounding", rounded))
		}
		index[rounded] = w
	}
	return index, nil
}

// matchTimes returns parallel index slices into the signal and
// reference time axes covering exactly the shared time points.
func matchTimes(signal, reference *table.Table) (sigIndices, refIndices []int, err error) {
	refIndex := make(map[float64]int, reference.NumTimes())
	for i, tp := range reference.Times() {
		refIndex[tp] = i
	}

	for i, tp := range signal.Times() {
		if j, ok := refIndex[tp]; ok {
			sigIndices = append(sigIndices, i)
			refIndices = append(refIndices, j)
		}
	}
	if len(sigIndices) == 0 {
		return nil, nil, errors.NewAlignmentError("combine.Combine",
			"reference time sampling does not match the signal: no common time points")
	}
	return sigIndices, refIndices, nil
}

func roundTo(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
