// Package importer converts class record spreadsheets to and from the
// store's document shape.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// MaxRows caps the data rows accepted from a single upload.
const MaxRows = 5000

var (
	ErrNoData         = errors.New("spreadsheet has no data rows (the first row is the header)")
	ErrTooManyRows    = fmt.Errorf("spreadsheet exceeds %d data rows", MaxRows)
	ErrUnsupportedExt = errors.New("unsupported file type, upload an .xlsx or .csv file")
)

// Read dispatches on the file name extension.
func Read(filename string, r io.Reader) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return ReadRows(r)
	case ".csv":
		return ReadCSV(r)
	default:
		return nil, ErrUnsupportedExt
	}
}

// ReadRows returns every row of the workbook's first sheet, header included.
func ReadRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
	}
	return checkRows(rows)
}

// ReadCSV reads a comma separated export of the same layout.
func ReadCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return checkRows(rows)
}

func checkRows(rows [][]string) ([][]string, error) {
	if len(rows) < 2 {
		return nil, ErrNoData
	}
	if len(rows)-1 > MaxRows {
		return nil, ErrTooManyRows
	}
	return rows, nil
}
