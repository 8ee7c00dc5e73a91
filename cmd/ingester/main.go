package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"fishda-monitor/internal/config"
	"fishda-monitor/internal/repository"
	"fishda-monitor/internal/services"
	"fishda-monitor/internal/session"
	"fishda-monitor/pkg/database"
	"fishda-monitor/pkg/logging"
	"fishda-monitor/pkg/metrics"
)

// The ingester replays a feed export (keyed object or array of readings)
// into the store through the same path as the live feed.
func main() {
	file := flag.String("file", "./readings.json", "Feed export to replay")
	batchSize := flag.Int("batch-size", 500, "Number of records per batch")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	loc, err := cfg.Monitor.Location()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid timezone: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("fishda-ingester", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[INGESTER_START] Starting feed replay", logging.Fields{
		"file":       *file,
		"batch_size": *batchSize,
	})

	body, err := os.ReadFile(*file)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to read feed export", logging.Fields{"file": *file}, err)
	}

	records, err := services.ParseFeed(body)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to parse feed export", logging.Fields{"file": *file}, err)
	}

	metricsCollector := metrics.NewCollector("fishda_ingester", prometheus.NewRegistry())

	db, err := database.NewPostgresDB(cfg.Database.Postgres(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	deps := services.Deps{
		Repo:     repository.NewPondRepository(db, logger, metricsCollector),
		Session:  session.New(session.Options{Location: loc, HistoryLimit: cfg.Monitor.HistoryLimit}),
		Logger:   logger,
		Metrics:  metricsCollector,
		Operator: cfg.Monitor.Operator,
	}

	configService := services.NewConfigService(deps, cfg.Monitor.WiFiConfirmTimeout)
	if err := configService.Load(ctx); err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to load thresholds", logging.Fields{}, err)
	}
	alertService := services.NewAlertService(deps)
	if err := alertService.Load(ctx); err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to load active alerts", logging.Fields{}, err)
	}
	readingService := services.NewReadingService(deps, cfg.Monitor.AlertCooldown, cfg.Monitor.HistoryLimit)

	start := time.Now()
	var received, accepted, rejected, stored, alerts int
	var errs []string

	for i := 0; i < len(records); i += *batchSize {
		end := i + *batchSize
		if end > len(records) {
			end = len(records)
		}

		result, err := readingService.IngestBatch(ctx, records[i:end])
		if result == nil {
			logger.Fatal(ctx, "[INGESTION_ERROR] Batch failed", logging.Fields{
				"batch_start": i,
				"batch_end":   end,
			}, err)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}

		keys := make([]string, 0, end-i)
		for _, rec := range records[i:end] {
			keys = append(keys, rec.Key)
		}
		found, err := readingService.Stored(ctx, keys)
		if err != nil {
			logger.Fatal(ctx, "[INGESTION_ERROR] Failed to read back batch", logging.Fields{
				"batch_start": i,
				"batch_end":   end,
			}, err)
		}
		if len(found) != result.Accepted {
			logger.Warn(ctx, "[INGESTION_VERIFY] Stored readings differ from accepted", logging.Fields{
				"batch_start": i,
				"accepted":    result.Accepted,
				"stored":      len(found),
			})
		}

		received += result.Received
		accepted += result.Accepted
		stored += len(found)
		rejected += result.Rejected
		alerts += len(result.Alerts)
		errs = append(errs, result.Errors...)
	}
	duration := time.Since(start)

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("REPLAY COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Records Received:   %d\n", received)
	fmt.Printf("Records Accepted:   %d\n", accepted)
	fmt.Printf("Records Rejected:   %d\n", rejected)
	fmt.Printf("Records Stored:     %d\n", stored)
	fmt.Printf("Alerts Raised:      %d\n", alerts)
	fmt.Printf("Duration:           %v\n", duration)

	if len(errs) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(errs))
		for i, errMsg := range errs {
			if i < 10 {
				fmt.Printf("  - %s\n", errMsg)
			}
		}
		if len(errs) > 10 {
			fmt.Printf("  ... and %d more errors\n", len(errs)-10)
		}
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Feed replay completed", logging.Fields{
		"received":         received,
		"accepted":         accepted,
		"rejected":         rejected,
		"stored":           stored,
		"alerts":           alerts,
		"duration_seconds": duration.Seconds(),
	})
}
