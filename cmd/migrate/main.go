package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"fishda-monitor/internal/config"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	steps := flag.Int("steps", 0, "Number of migrations to apply (0 means all)")
	source := flag.String("source", "file://migrations", "Migration source URL")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	m, err := migrate.New(*source, cfg.Database.Postgres().URL())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrator: %v\n", err)
		os.Exit(1)
	}
	defer m.Close()

	fmt.Printf("Running migrations %s from %s\n", *direction, *source)

	switch {
	case *steps != 0 && *direction == "down":
		err = m.Steps(-*steps)
	case *steps != 0:
		err = m.Steps(*steps)
	case *direction == "up":
		err = m.Up()
	case *direction == "down":
		err = m.Down()
	default:
		fmt.Fprintf(os.Stderr, "Unknown direction %q (use up or down)\n", *direction)
		os.Exit(2)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("No new migrations, schema is up to date")
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute migration: %v\n", err)
		os.Exit(1)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		fmt.Fprintf(os.Stderr, "Failed to read schema version: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Migration completed successfully (version %d, dirty %t)\n", version, dirty)
}
