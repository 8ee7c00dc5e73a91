package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-pdf/fpdf"

	"fishda-monitor/internal/models"
)

var pdfColumnWidths = []float64{46, 28, 20, 28, 30, 30}

// PDFEncoder writes an A4 portrait report with a data table and a summary table
type PDFEncoder struct{}

func (PDFEncoder) Format() string      { return "pdf" }
func (PDFEncoder) Extension() string   { return "pdf" }
func (PDFEncoder) ContentType() string { return "application/pdf" }

func (PDFEncoder) Encode(w io.Writer, doc *Document) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(true, 18)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(150, 150, 150)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(14, 165, 233)
	pdf.CellFormat(0, 10, "FISHDA Historical Data", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 6, "Export Date: "+doc.exportedText(), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Date Range: "+doc.rangeText(), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Total Records: "+strconv.Itoa(len(doc.Rows)), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	header := columnHeaders()
	drawHeader := func(cols []string, widths []float64) {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(14, 165, 233)
		pdf.SetTextColor(255, 255, 255)
		for i, h := range cols {
			pdf.CellFormat(widths[i], 8, tr(h), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(40, 40, 40)
	}

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()

	drawHeader(header, pdfColumnWidths)
	for i, r := range doc.Rows {
		if pdf.GetY()+7 > pageHeight-bottom {
			pdf.AddPage()
			drawHeader(header, pdfColumnWidths)
		}

		fill := i%2 == 1
		pdf.SetFillColor(245, 245, 245)
		pdf.CellFormat(pdfColumnWidths[0], 7, doc.rowTime(r), "1", 0, "L", fill, 0, "")
		for j, p := range models.Parameters {
			pdf.CellFormat(pdfColumnWidths[j+1], 7, FormatValue(p, r.Value(p)), "1", 0, "C", fill, 0, "")
		}
		pdf.Ln(-1)
	}

	stats := doc.statRows()
	if len(stats) > 0 {
		if pdf.GetY()+20+float64(len(stats))*7 > pageHeight-bottom {
			pdf.AddPage()
		} else {
			pdf.Ln(8)
		}

		pdf.SetFont("Helvetica", "B", 14)
		pdf.SetTextColor(14, 165, 233)
		pdf.CellFormat(0, 8, "Summary Statistics", "", 1, "L", false, 0, "")

		widths := []float64{52, 40, 40, 40}
		drawHeader([]string{"Parameter", "Minimum", "Maximum", "Average"}, widths)
		for _, s := range stats {
			pdf.CellFormat(widths[0], 7, tr(ColumnHeader(s.param)), "1", 0, "L", false, 0, "")
			pdf.CellFormat(widths[1], 7, formatStat(s.summary.Min), "1", 0, "C", false, 0, "")
			pdf.CellFormat(widths[2], 7, formatStat(s.summary.Max), "1", 0, "C", false, 0, "")
			pdf.CellFormat(widths[3], 7, formatStat(s.summary.Avg), "1", 0, "C", false, 0, "")
			pdf.Ln(-1)
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}
