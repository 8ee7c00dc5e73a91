package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"fishda-monitor/internal/models"
)

// CSVEncoder writes delimited text
type CSVEncoder struct{}

func (CSVEncoder) Format() string      { return "csv" }
func (CSVEncoder) Extension() string   { return "csv" }
func (CSVEncoder) ContentType() string { return "text/csv; charset=utf-8" }

// Encode writes the title block, the data rows and the statistics section
func (CSVEncoder) Encode(w io.Writer, doc *Document) error {
	cw := csv.NewWriter(w)

	records := [][]string{
		{Title},
		{"Export Date: " + doc.exportedText()},
		{"Date Range: " + doc.rangeText()},
		{"Total Records: " + strconv.Itoa(len(doc.Rows))},
		{},
		columnHeaders(),
	}

	for _, r := range doc.Rows {
		row := []string{doc.rowTime(r)}
		for _, p := range models.Parameters {
			row = append(row, FormatValue(p, r.Value(p)))
		}
		records = append(records, row)
	}

	records = append(records,
		[]string{},
		[]string{StatsHeading},
		[]string{"Parameter", "Minimum", "Maximum", "Average"},
	)
	for _, s := range doc.statRows() {
		records = append(records, []string{
			ColumnHeader(s.param),
			formatStat(s.summary.Min),
			formatStat(s.summary.Max),
			formatStat(s.summary.Avg),
		})
	}

	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// EncodeAlertsCSV writes the alert history table
func EncodeAlertsCSV(w io.Writer, alerts []models.Alert, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Timestamp", "Parameter", "Severity", "Value", "Threshold", "Message", "Acknowledged"}); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, a := range alerts {
		acknowledged := "No"
		if a.Acknowledged {
			acknowledged = "Yes"
		}
		row := []string{
			time.UnixMilli(a.Timestamp).In(loc).Format(rowTimeLayout),
			string(a.Parameter),
			string(a.Severity),
			strconv.FormatFloat(a.Value, 'f', -1, 64),
			a.Threshold,
			a.Message,
			acknowledged,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
