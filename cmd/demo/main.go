package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fishda-monitor/internal/classifier"
	"fishda-monitor/internal/export"
	"fishda-monitor/internal/history"
	"fishda-monitor/internal/models"
	"fishda-monitor/internal/services"
	"fishda-monitor/pkg/logging"
)

// Demo runs a feed export through normalization, classification, a history
// query and every export format without a database.
func main() {
	file := flag.String("file", "./readings.json", "Feed export to process")
	outDir := flag.String("out", "./exports", "Directory for the generated exports")
	tz := flag.String("tz", "Asia/Manila", "Time zone for day boundaries")
	flag.Parse()

	fmt.Println("════════════════════════════════════════════════════════════════")
	fmt.Println("FISHDA POND MONITOR - DATA PROCESSING DEMONSTRATION")
	fmt.Println("════════════════════════════════════════════════════════════════")
	fmt.Println()

	logger := logging.NewStructuredLogger("demo", "1.0.0", logging.InfoLevel)
	ctx := context.Background()

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		fmt.Printf("Invalid time zone: %v\n", err)
		os.Exit(1)
	}

	body, err := os.ReadFile(*file)
	if err != nil {
		fmt.Printf("Error reading feed export: %v\n", err)
		os.Exit(1)
	}

	records, err := services.ParseFeed(body)
	if err != nil {
		fmt.Printf("Error parsing feed export: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Found %d feed records in %s\n\n", len(records), filepath.Base(*file))

	table := models.DefaultThresholds()
	readings := make([]models.Reading, 0, len(records))
	severityCounts := map[models.Severity]int{}
	rejected := 0

	fmt.Printf("─────────────────────────────────────────────────────────────\n")
	fmt.Printf("Normalizing and classifying\n")
	fmt.Printf("─────────────────────────────────────────────────────────────\n")

	for i, rec := range records {
		reading, err := rec.Raw.Normalize(rec.Key, loc)
		if err != nil {
			rejected++
			logger.Warn(ctx, "[DEMO_REJECT] Skipping malformed record", logging.Fields{
				"key":   rec.Key,
				"error": err.Error(),
			})
			continue
		}
		readings = append(readings, reading)

		violations := classifier.CheckReading(reading, table)
		worst := models.SeveritySafe
		for _, v := range violations {
			if v.Severity == models.SeverityCritical || worst == models.SeveritySafe {
				worst = v.Severity
			}
		}
		severityCounts[worst]++

		// Print the first 3 records and every violation
		if i < 3 || len(violations) > 0 {
			fmt.Printf("  [%d] %s", i+1, time.UnixMilli(reading.Timestamp).In(loc).Format("2006-01-02 15:04"))
			for _, p := range models.Parameters {
				fmt.Printf(" | %s: %s", p.Label(), export.FormatValue(p, reading.Value(p)))
			}
			for _, v := range violations {
				fmt.Printf(" ⚠ %s %s (%s)", v.Parameter.Label(), strings.ToUpper(string(v.Severity)), v.Threshold)
			}
			fmt.Println()
		}
	}

	fmt.Println()
	fmt.Println("════════════════════════════════════════════════════════════════")
	fmt.Println("PROCESSING SUMMARY")
	fmt.Println("════════════════════════════════════════════════════════════════")
	fmt.Printf("Total records:          %d\n", len(records))
	fmt.Printf("Valid readings:         %d\n", len(readings))
	fmt.Printf("Rejected records:       %d\n", rejected)
	fmt.Printf("Safe / Warning / Critical: %d / %d / %d\n",
		severityCounts[models.SeveritySafe], severityCounts[models.SeverityWarning], severityCounts[models.SeverityCritical])
	fmt.Println()

	if len(readings) == 0 {
		fmt.Println("No readings to query.")
		return
	}

	cal := history.BuildCalendar(readings, loc)
	dates := cal.DatesWithData
	filter := history.Filter{
		DateFrom:  dates[0],
		DateTo:    dates[len(dates)-1],
		SortOrder: history.SortOldest,
	}

	res, err := history.QueryReadings(readings, filter, loc, table)
	if err != nil {
		fmt.Printf("History query failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("════════════════════════════════════════════════════════════════")
	fmt.Println("STATISTICS DEMONSTRATION")
	fmt.Println("════════════════════════════════════════════════════════════════")
	fmt.Printf("Range: %s to %s (%d readings on %d days, %d pages)\n",
		filter.DateFrom, filter.DateTo, res.Total, len(dates), res.TotalPages())
	fmt.Printf("─────────────────────────────────────────────────────────────\n")
	for _, p := range models.Parameters {
		s, ok := res.Statistics[p]
		if !ok {
			continue
		}
		fmt.Printf("%-12s min %8.2f  max %8.2f  avg %8.2f  (%d readings)\n", p.Label(), s.Min, s.Max, s.Avg, s.Count)
	}
	fmt.Println()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Printf("Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	doc := &export.Document{
		Rows:       res.Items,
		Statistics: res.Statistics,
		DateFrom:   filter.DateFrom,
		DateTo:     filter.DateTo,
		ExportedAt: time.Now().In(loc),
		Location:   loc,
	}

	for _, format := range []string{"csv", "xlsx", "pdf"} {
		enc, err := export.Lookup(format)
		if err != nil {
			fmt.Printf("  %s: %v\n", format, err)
			continue
		}

		path := filepath.Join(*outDir, export.Filename(export.FilePrefix, enc.Extension(), doc.ExportedAt))
		out, err := os.Create(path)
		if err != nil {
			fmt.Printf("  %s: %v\n", format, err)
			continue
		}
		err = enc.Encode(out, doc)
		out.Close()
		if err != nil {
			fmt.Printf("  %s: encode failed: %v\n", format, err)
			continue
		}
		fmt.Printf("  ✓ Wrote %s\n", path)
	}

	fmt.Println()
	fmt.Println("════════════════════════════════════════════════════════════════")
	fmt.Println("✅ DATA PROCESSING DEMONSTRATION COMPLETE")
	fmt.Println("════════════════════════════════════════════════════════════════")
}
