package history

import (
	"fmt"
	"io"
	"time"

	"github.com/framingham-risk-server/internal/domain"
	"github.com/xuri/excelize/v2"
)

// XLSXSheet is the name of the sheet holding exported predictions
const XLSXSheet = "Predictions"

// XLSXHeader is the column order of the spreadsheet export
var XLSXHeader = []string{
	"Prediction ID",
	"Created At",
	"Patient ID",
	"Test ID",
	"Model",
	"Shape",
	"Probability",
	"Risk %",
	"Label",
	"Low Confidence",
}

var xlsxColumnWidths = []float64{38, 22, 20, 20, 22, 10, 14, 10, 14, 16}

// WriteXLSX renders predictions as a single-sheet workbook with a frozen header row
func WriteXLSX(w io.Writer, preds []*domain.Prediction) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(XLSXSheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range XLSXHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(XLSXSheet, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(XLSXSheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}

		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(XLSXSheet, name, name, xlsxColumnWidths[col]); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, p := range preds {
		row := i + 2
		values := []interface{}{
			p.ID,
			p.CreatedAt.UTC().Format(time.RFC3339),
			p.PatientID,
			p.TestID,
			p.Model,
			p.Shape,
			p.Probability,
			roundPct(p.Probability),
			p.Label,
			yesNo(p.LowConfidence),
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(XLSXSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", row, err)
		}
	}

	if err := f.SetPanes(XLSXSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// roundPct converts a probability to a percentage with one decimal
func roundPct(p float64) float64 {
	return float64(int64(p*1000+0.5)) / 10
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
