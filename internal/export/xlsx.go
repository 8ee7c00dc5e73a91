package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"fishda-monitor/internal/models"
)

const sheetName = "Historical Data"

var columnWidths = []float64{20, 15, 10, 15, 15, 12}

// XLSXEncoder writes an Excel workbook with a single sheet
type XLSXEncoder struct{}

func (XLSXEncoder) Format() string    { return "xlsx" }
func (XLSXEncoder) Extension() string { return "xlsx" }
func (XLSXEncoder) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Encode writes numeric cells rounded to display precision; absent values are "N/A"
func (XLSXEncoder) Encode(w io.Writer, doc *Document) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	rows := [][]interface{}{
		{Title},
		{"Export Date:", doc.exportedText()},
		{"Date Range:", doc.rangeText()},
		{"Total Records:", len(doc.Rows)},
		{},
	}

	header := columnHeaders()
	headerRow := make([]interface{}, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	rows = append(rows, headerRow)
	headerIndex := len(rows)

	for _, r := range doc.Rows {
		row := []interface{}{doc.rowTime(r)}
		for _, p := range models.Parameters {
			v := r.Value(p)
			if v == nil {
				row = append(row, missing)
				continue
			}
			row = append(row, roundValue(*v, Places(p)))
		}
		rows = append(rows, row)
	}

	rows = append(rows,
		[]interface{}{},
		[]interface{}{StatsHeading},
		[]interface{}{"Parameter", "Minimum", "Maximum", "Average"},
	)
	for _, s := range doc.statRows() {
		rows = append(rows, []interface{}{
			ColumnHeader(s.param),
			roundValue(s.summary.Min, statPlaces),
			roundValue(s.summary.Max, statPlaces),
			roundValue(s.summary.Avg, statPlaces),
		})
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", "A1", bold); err != nil {
		return err
	}
	first, _ := excelize.CoordinatesToCellName(1, headerIndex)
	last, _ := excelize.CoordinatesToCellName(len(header), headerIndex)
	if err := f.SetCellStyle(sheetName, first, last, bold); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
