package main

import (
	"context"
	"fmt"
	"os"

	"github.com/vitos/live_price_chart/internal/config"
	"github.com/vitos/live_price_chart/internal/domain"
	"github.com/vitos/live_price_chart/internal/infrastructure/storage"
)

func main() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	store, err := storage.NewSQLiteStore(cfg.Database.SQLitePath)
	if err != nil {
		fmt.Printf("Failed to init sqlite: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	if series := cfg.Series.Identifier; series != "" {
		key, err := store.GetRange(ctx, series)
		if err != nil {
			fmt.Printf("⚠️ No remembered range for %s: %v\n", series, err)
		} else {
			fmt.Printf("Remembered range for %s: %s\n", series, key)
		}
	}

	events, err := store.ListStatus(ctx, 20)
	if err != nil {
		fmt.Printf("Failed to list status events: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Last %d status events:\n", len(events))
	for _, e := range events {
		mark := "✅"
		if e.Severity == domain.SeverityError {
			mark = "❌"
		}
		fmt.Printf("%s %s [%s] %s: %s\n", mark, e.At.Local().Format("2006-01-02 15:04:05"), e.Kind, e.Series, e.Message)
	}
}
