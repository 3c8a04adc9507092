package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/vitos/live_price_chart/internal/config"
	"github.com/vitos/live_price_chart/internal/domain"
	"github.com/vitos/live_price_chart/internal/infrastructure/feed"
	"github.com/vitos/live_price_chart/internal/infrastructure/render"
	"github.com/vitos/live_price_chart/internal/usecase"
)

func main() {
	godotenv.Load()

	configPath := flag.String("config", config.DefaultPath, "config file")
	series := flag.String("series", "", "series identifier (defaults to series.identifier)")
	rangeKey := flag.String("range", "", "range key (defaults to series.default_range)")
	pngPath := flag.String("png", "", "also write the chart to this PNG file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *series == "" {
		*series = cfg.Series.Identifier
	}
	if *rangeKey == "" {
		*rangeKey = cfg.Series.DefaultRange
	}

	source, err := feed.New(cfg.Feed.URL, cfg.Feed.File, cfg.FetchTimeout())
	if err != nil {
		fmt.Printf("Failed to init feed: %v\n", err)
		os.Exit(1)
	}
	ranges, err := cfg.Ranges()
	if err != nil {
		fmt.Printf("Invalid ranges: %v\n", err)
		os.Exit(1)
	}
	loc, err := cfg.Location()
	if err != nil {
		fmt.Printf("Invalid timezone: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.FetchTimeout()+time.Second)
	defer cancel()

	start := time.Now()
	rows, err := source.Fetch(ctx, *series)
	if err != nil {
		fmt.Printf("❌ Fetch failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Fetched %d rows from %s feed in %s\n", len(rows), source.Name(), time.Since(start).Round(time.Millisecond))

	points, err := usecase.NewRowNormalizer(loc).Normalize(rows, *series)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Normalized %d points for %s\n", len(points), *series)

	key := domain.RangeKey(*rangeKey)
	reduced, err := usecase.NewSeriesReducer(ranges, cfg.Chart.Epsilon, cfg.Chart.MaxPoints).Reduce(points, key)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ %d plotted points (range %s):\n", len(reduced), key)
	for _, p := range reduced {
		fmt.Printf("  %s  %.4f\n", time.UnixMilli(p.TS).In(loc).Format("2006-01-02 15:04:05"), p.Price)
	}

	if *pngPath != "" {
		sink := render.NewPNGSink(cfg.Chart.Width, cfg.Chart.Height, loc)
		if err := sink.Render(ctx, domain.NewFrame(*series, key, domain.RenderFull, reduced, 0)); err != nil {
			fmt.Printf("❌ Render failed: %v\n", err)
			os.Exit(1)
		}
		img, _, _ := sink.Latest()
		if err := os.WriteFile(*pngPath, img, 0o644); err != nil {
			fmt.Printf("❌ Failed to write %s: %v\n", *pngPath, err)
			os.Exit(1)
		}
		fmt.Printf("Chart written to %s\n", *pngPath)
	}
}
