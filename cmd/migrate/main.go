package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"workspace-commerce/internal/config"
	"workspace-commerce/internal/database"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	direction := flag.String("direction", string(database.DirectionUp), "migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := config.NewLogger(cfg.Logger)

	pool, err := database.NewPool(context.Background(), cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	return database.Migrate(pool, database.Direction(*direction), logger)
}
