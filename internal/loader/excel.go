package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"taacli/internal/errors"
)

// readExcel extracts the raw cell grid from the first sheet of an
// Excel workbook.
func readExcel(path string) ([][]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.NewIOError("loader.Read", path, err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.NewFormatError("loader.Read",
			fmt.Sprintf("cannot open workbook %s: %v", filepath.Base(path), err))
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.NewFormatError("loader.Read", "workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.NewFormatError("loader.Read",
			fmt.Sprintf("cannot read sheet %q: %v", sheets[0], err))
	}

	// GetRows trims trailing empty cells per row; pad every row to the
	// header width so column-count validation sees the real shape.
	return padRows(rows), nil
}

func padRows(rows [][]string) [][]string {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	for i, row := range rows {
		for len(row) < width {
			row = append(row, "")
		}
		rows[i] = row
	}
	return rows
}
