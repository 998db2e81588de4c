package importer

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"classrecord/backend/internal/grading"
)

// Export writes records back to a workbook in upload column order, so the
// file can be edited and re-uploaded as is.
func Export(records []grading.StudentRecord, tmpl *grading.Template) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := tmpl.Name
	if len(sheetName) > 31 {
		sheetName = sheetName[:31]
	}
	idx, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if sheetName != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}

	header := append([]string{"ID Number", "Last Name", "First Name"}, tmpl.Columns...)
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, h := range header {
		f.SetCellValue(sheetName, cellName(i, 1), h)
	}
	f.SetCellStyle(sheetName, cellName(0, 1), cellName(len(header)-1, 1), headerStyle)
	f.SetColWidth(sheetName, colName(0), colName(2), 16)

	for r, rec := range records {
		row := r + 2
		f.SetCellValue(sheetName, cellName(colID, row), rec.IDNumber)
		f.SetCellValue(sheetName, cellName(colLastName, row), rec.LastName)
		f.SetCellValue(sheetName, cellName(colFirstName, row), rec.FirstName)
		for j, field := range tmpl.Columns {
			switch field {
			case "":
			case tmpl.GradeField:
				f.SetCellValue(sheetName, cellName(firstScoreCol+j, row), grading.Round2(rec.Grade))
			default:
				f.SetCellValue(sheetName, cellName(firstScoreCol+j, row), rec.Score(field))
			}
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf, nil
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col+1, row)
	return name
}
