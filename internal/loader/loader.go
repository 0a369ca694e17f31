// Package loader reads measurement files into tables. Supported
// formats are CSV, tab- or comma-delimited text and Excel workbooks.
// The first column is the time axis; every remaining column header
// must be a numeric wavelength. Loads are all-or-nothing: a malformed
// file never produces a partial table.
package loader

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"taacli/internal/errors"
	"taacli/internal/table"
)

// Format identifies a supported input file format.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatText  Format = "txt"
	FormatExcel Format = "excel"
)

// DetectFormat maps a file extension to its format.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".txt":
		return FormatText, nil
	case ".xls", ".xlsx":
		return FormatExcel, nil
	default:
		return "", errors.NewFormatError("loader.DetectFormat",
			fmt.Sprintf("unsupported file format %q: use .csv, .txt, .xls or .xlsx", filepath.Ext(path)))
	}
}

// ReadFile loads a measurement table from path, detecting the format
// from the file extension.
func ReadFile(path string) (*table.Table, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	return Read(path, format)
}

// Read loads a measurement table from path using the declared format.
func Read(path string, format Format) (*table.Table, error) {
	slog.Debug("loading measurement file",
		slog.String("path", path),
		slog.String("format", string(format)))

	var rows [][]string
	var err error
	switch format {
	case FormatCSV:
		rows, err = readDelimited(path, ',')
	case FormatText:
		rows, err = readText(path)
	case FormatExcel:
		rows, err = readExcel(path)
	default:
		return nil, errors.NewFormatError("loader.Read", fmt.Sprintf("unknown format %q", format))
	}
	if err != nil {
		return nil, err
	}

	tbl, err := buildTable(rows)
	if err != nil {
		return nil, err
	}

	slog.Info("measurement file loaded",
		slog.String("path", path),
		slog.Int("time_points", tbl.NumTimes()),
		slog.Int("wavelengths", tbl.NumWavelengths()))
	return tbl, nil
}

func readDelimited(path string, comma rune) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError("loader.Read", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = comma
	r.TrimLeadingSpace = true
	// Column-count mismatches are reported as format errors below.
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.NewFormatError("loader.Read",
			fmt.Sprintf("cannot parse %s: %v", filepath.Base(path), err))
	}
	return rows, nil
}

// readText loads a plain-text table, sniffing the delimiter from the
// first line. Semicolon is checked before comma so that
// semicolon-delimited files using decimal commas parse correctly.
func readText(path string) ([][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIOError("loader.Read", path, err)
	}

	firstLine, _, _ := strings.Cut(string(raw), "\n")
	comma := ','
	switch {
	case strings.ContainsRune(firstLine, '\t'):
		comma = '\t'
	case strings.ContainsRune(firstLine, ';'):
		comma = ';'
	}
	return readDelimited(path, comma)
}

// buildTable validates the raw rows and assembles a measurement table.
func buildTable(rows [][]string) (*table.Table, error) {
	rows = dropEmptyRows(rows)
	if len(rows) == 0 {
		return nil, errors.NewFormatError("loader.Read", "the file is empty")
	}

	header := rows[0]
	if len(header) < 2 {
		return nil, errors.NewFormatError("loader.Read",
			"file must have a time column and at least one wavelength column")
	}
	if len(rows) < 2 {
		return nil, errors.NewFormatError("loader.Read", "file has a header but no data rows")
	}

	// Header cells after the first must be unique numeric wavelengths.
	wavelengths := make([]float64, 0, len(header)-1)
	seen := make(map[float64]bool, len(header)-1)
	for i, cell := range header[1:] {
		w, err := parseNumber(cell)
		if err != nil {
			return nil, errors.NewFormatError("loader.Read",
				fmt.Sprintf("invalid column header %q: all columns except the first must be numeric wavelengths", cell)).
				WithContext("column", i+1)
		}
		if seen[w] {
			return nil, errors.NewFormatError("loader.Read",
				fmt.Sprintf("duplicate wavelength column %g", w))
		}
		seen[w] = true
		wavelengths = append(wavelengths, w)
	}

	times := make([]float64, 0, len(rows)-1)
	columns := make(map[float64][]float64, len(wavelengths))
	for _, w := range wavelengths {
		columns[w] = make([]float64, 0, len(rows)-1)
	}

	for rowIdx, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, errors.NewFormatError("loader.Read",
				fmt.Sprintf("row %d has %d columns, expected %d", rowIdx+2, len(row), len(header)))
		}

		tp, err := parseNumber(row[0])
		if err != nil {
			return nil, errors.NewFormatError("loader.Read",
				fmt.Sprintf("non-numeric time value %q in row %d", row[0], rowIdx+2))
		}
		times = append(times, tp)

		for colIdx, w := range wavelengths {
			v, err := parseNumber(row[colIdx+1])
			if err != nil {
				return nil, errors.NewFormatError("loader.Read",
					fmt.Sprintf("non-numeric value %q in row %d, column %d", row[colIdx+1], rowIdx+2, colIdx+2))
			}
			columns[w] = append(columns[w], v)
		}
	}

	return table.New(times, columns)
}

func dropEmptyRows(rows [][]string) [][]string {
	out := rows[:0]
	for _, row := range rows {
		empty := true
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				empty = false
				break
			}
		}
		if !empty {
			out = append(out, row)
		}
	}
	return out
}

// parseNumber parses a cell value, tolerating a decimal comma
// ("0,5" reads as 0.5) and grouping spaces.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty cell")
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}
	// Decimal-comma fallback: a single comma and no dot.
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		return strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	}
	return strconv.ParseFloat(s, 64)
}
