// Package smoothing implements the moving-average filter applied to
// measurement tables before plotting and export.
package smoothing

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"taacli/internal/errors"
	"taacli/internal/table"
)

// Options configures the moving-average filter. The window must be an
// odd positive number of time samples.
type Options struct {
	Window int `validate:"required,gte=1,odd"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// validator has no built-in parity check.
	_ = v.RegisterValidation("odd", func(fl validator.FieldLevel) bool {
		return fl.Field().Int()%2 == 1
	})
	return v
}

// ValidateOptions checks the filter options against a table with
// numPoints time samples.
func ValidateOptions(opts Options, numPoints int) error {
	if err := validate.Struct(opts); err != nil {
		return errors.NewInvalidParameterError("smoothing.ValidateOptions",
			fmt.Sprintf("window must be an odd positive integer, got %d", opts.Window))
	}
	if opts.Window > numPoints {
		return errors.NewInvalidParameterError("smoothing.ValidateOptions",
			fmt.Sprintf("window %d exceeds the number of time points (%d)", opts.Window, numPoints))
	}
	return nil
}

// Apply returns a new table where every value is replaced by the mean
// of the window of samples centred on it. Windows shrink at the edges
// to the in-range samples instead of padding, so boundary values are
// averaged over fewer points rather than pulled toward zero. A window
// of 1 is the identity.
func Apply(t *table.Table, opts Options) (*table.Table, error) {
	if err := ValidateOptions(opts, t.NumTimes()); err != nil {
		return nil, err
	}
	if opts.Window == 1 {
		return t, nil
	}

	half := opts.Window / 2
	return t.Map(func(_ float64, values []float64) []float64 {
		return movingAverage(values, half)
	})
}

// movingAverage computes the shrinking-window mean with half-width
// half, using a running sum over the sliding window.
func movingAverage(values []float64, half int) []float64 {
	n := len(values)
	out := make([]float64, n)

	// Seed the window for index 0: samples [0, half].
	hi := half
	if hi > n-1 {
		hi = n - 1
	}
	var sum float64
	for i := 0; i <= hi; i++ {
		sum += values[i]
	}
	count := hi + 1
	out[0] = sum / float64(count)

	lo := 0
	for i := 1; i < n; i++ {
		if i+half < n {
			sum += values[i+half]
			count++
		}
		if i-half-1 >= lo {
			sum -= values[i-half-1]
			count--
			lo = i - half
		}
		out[i] = sum / float64(count)
	}
	return out
}
