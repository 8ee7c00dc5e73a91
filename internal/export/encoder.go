// Package export renders a history query result into downloadable documents.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fishda-monitor/internal/history"
	"fishda-monitor/internal/models"
)

// File name prefixes for history and alert history exports
const (
	FilePrefix       = "fishda_history"
	AlertsFilePrefix = "alerts_history"
)

const (
	Title         = "FISHDA Historical Data Export"
	StatsHeading  = "--- Summary Statistics ---"
	missing       = "N/A"
	rowTimeLayout = "2006-01-02 15:04:05"
	statPlaces    = 2
)

// Document is everything an encoder needs: the full filtered rows, their
// statistics, the queried range and the export time
type Document struct {
	Rows       []models.Reading
	Statistics history.Statistics
	DateFrom   string
	DateTo     string
	ExportedAt time.Time
	Location   *time.Location
}

// Encoder renders a Document into one output format
type Encoder interface {
	Format() string
	Extension() string
	ContentType() string
	Encode(w io.Writer, doc *Document) error
}

var encoders = map[string]Encoder{
	"csv":  CSVEncoder{},
	"xlsx": XLSXEncoder{},
	"pdf":  PDFEncoder{},
}

// Lookup returns the encoder for format; "excel" is accepted for xlsx
func Lookup(format string) (Encoder, error) {
	key := strings.ToLower(strings.TrimSpace(format))
	if key == "excel" {
		key = "xlsx"
	}
	enc, ok := encoders[key]
	if !ok {
		return nil, &models.ValidationError{
			Field:   "format",
			Value:   format,
			Message: fmt.Sprintf("unsupported export format %q (use csv, xlsx or pdf)", format),
		}
	}
	return enc, nil
}

// Filename builds <prefix>_<YYYYMMDD_HHMMSS>.<ext>
func Filename(prefix, ext string, t time.Time) string {
	return fmt.Sprintf("%s_%s.%s", prefix, t.Format("20060102_150405"), ext)
}

func (d *Document) loc() *time.Location {
	if d.Location == nil {
		return time.Local
	}
	return d.Location
}

func (d *Document) rangeText() string {
	from, to := d.DateFrom, d.DateTo
	if from == "" {
		from = missing
	}
	if to == "" {
		to = missing
	}
	return from + " to " + to
}

func (d *Document) exportedText() string {
	return d.ExportedAt.In(d.loc()).Format(rowTimeLayout)
}

func (d *Document) rowTime(r models.Reading) string {
	return r.Time(d.loc()).Format(rowTimeLayout)
}

// ColumnHeader returns the table heading for p, with its unit
func ColumnHeader(p models.Parameter) string {
	if u := p.Unit(); u != "" {
		return fmt.Sprintf("%s (%s)", p.Label(), u)
	}
	return p.Label()
}

func columnHeaders() []string {
	out := []string{"Date & Time"}
	for _, p := range models.Parameters {
		out = append(out, ColumnHeader(p))
	}
	return out
}

// Places is the number of decimals shown for p: two for pH, one otherwise
func Places(p models.Parameter) int32 {
	if p == models.PH {
		return 2
	}
	return 1
}

// FormatValue rounds half away from zero to the parameter's precision
func FormatValue(p models.Parameter, v *float64) string {
	if v == nil {
		return missing
	}
	return decimal.NewFromFloat(*v).StringFixed(Places(p))
}

// roundValue is FormatValue for numeric cells
func roundValue(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

func formatStat(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(statPlaces)
}

// statRows lists statistics in parameter order, skipping absent parameters
func (d *Document) statRows() []statRow {
	var out []statRow
	for _, p := range models.Parameters {
		s, ok := d.Statistics[p]
		if !ok {
			continue
		}
		out = append(out, statRow{param: p, summary: s})
	}
	return out
}

type statRow struct {
	param   models.Parameter
	summary history.Summary
}
