package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalysisError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AnalysisError
		expected string
	}{
		{
			name:     "with op",
			err:      &AnalysisError{Kind: KindFormat, Op: "loader.ReadFile", Message: "empty file"},
			expected: "[format] loader.ReadFile: empty file",
		},
		{
			name:     "without op",
			err:      &AnalysisError{Kind: KindAlignment, Message: "no common wavelengths"},
			expected: "[alignment] no common wavelengths",
		},
		{
			name:     "nil error",
			err:      nil,
			expected: "unknown analysis error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAnalysisError_Unwrap(t *testing.T) {
	cause := stderrors.New("permission denied")
	err := NewIOError("exporter.WriteCSV", "/readonly/out.csv", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, cause, err.Unwrap())
}

func TestKindSentinels(t *testing.T) {
	wrapped := fmt.Errorf("processing failed: %w",
		NewInvalidParameterError("smoothing.Apply", "window must be odd"))

	assert.True(t, stderrors.Is(wrapped, ErrInvalidParameter))
	assert.False(t, stderrors.Is(wrapped, ErrFormat))
	assert.False(t, stderrors.Is(wrapped, ErrIO))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{"format error", NewFormatError("loader", "bad header"), KindFormat},
		{"io error", NewIOError("loader", "/missing", nil), KindIO},
		{"alignment error", NewAlignmentError("combine", "no overlap"), KindAlignment},
		{"wrapped error", fmt.Errorf("outer: %w", NewFormatError("loader", "x")), KindFormat},
		{"plain error", stderrors.New("plain"), Kind("")},
		{"nil", nil, Kind("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindOf(tt.err))
		})
	}
}

func TestWithContext(t *testing.T) {
	err := NewFormatError("loader.parseHeader", "duplicate wavelength").
		WithContext("wavelength", 532.0).
		WithContext("column", 3)

	require.NotNil(t, err.Context)
	assert.Equal(t, 532.0, err.Context["wavelength"])
	assert.Equal(t, 3, err.Context["column"])
}

func TestIsKind(t *testing.T) {
	err := NewAlignmentError("combine.Align", "time sampling mismatch")
	assert.True(t, IsKind(err, KindAlignment))
	assert.False(t, IsKind(err, KindIO))
}
