package export

import (
	"fmt"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/provwatch/provwatch/internal/models"
)

const summarySheet = "Providers"

// WriteXLSX writes the triage summary as a styled workbook: bold frozen
// header row, one provider per row, same columns as the CSV.
func (w *Writer) WriteXLSX(filename string, providers []models.Provider) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	index, err := f.NewSheet(summarySheet)
	if err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("removing default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	for col, header := range summaryColumns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("header cell name: %w", err)
		}
		if err := f.SetCellValue(summarySheet, cell, header); err != nil {
			return fmt.Errorf("writing header cell: %w", err)
		}
		if err := f.SetCellStyle(summarySheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("styling header cell: %w", err)
		}
	}

	for row := range providers {
		for col, value := range summaryRow(&providers[row]) {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return fmt.Errorf("cell name: %w", err)
			}
			if err := f.SetCellValue(summarySheet, cell, value); err != nil {
				return fmt.Errorf("writing cell: %w", err)
			}
		}
	}

	// Freeze the header row.
	if err := f.SetPanes(summarySheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freezing header row: %w", err)
	}

	path := filepath.Join(w.opts.OutputDir, filename)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	w.logger.Info("wrote XLSX summary", "path", path, "providers", len(providers))
	return nil
}
