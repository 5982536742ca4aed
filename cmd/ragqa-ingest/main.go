package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"ragqa/internal/app"
	"ragqa/internal/config"
	"ragqa/internal/logging"
	"ragqa/internal/service"
)

func main() {
	var (
		cfgPath string
		clear   bool
		summary int
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/ragqa/config.yaml if not provided)")
	flag.BoolVar(&clear, "clear", false, "Empty the collection before ingesting")
	flag.IntVar(&summary, "summary", 0, "Print an extractive summary of N sentences")
	flag.Parse()
	inputs := flag.Args()
	if len(inputs) == 0 {
		fmt.Println("Usage: ragqa-ingest [--config=config.yaml] [--clear] [--summary N] path [path ...]")
		os.Exit(1)
	}

	cfg, _, err := config.Resolve(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	in, store, err := app.NewIngestor(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer store.Close()

	report, err := in.Ingest(ctx, inputs, service.IngestOptions{Clear: clear, SummarySentences: summary})
	for _, f := range report.Files {
		fmt.Printf("%s: %d chunks\n", f.Path, f.Chunks)
	}
	for _, s := range report.Skipped {
		fmt.Printf("skipped %s: %v\n", s.Path, s.Err)
	}
	if err != nil {
		log.Fatalf("ingest failed: %v", err)
	}
	fmt.Printf("Stored %d chunks; collection %q now holds %d (dimension %d) at %s\n",
		report.Stored, report.Info.Name, report.Info.Count, report.Info.Dimension, report.Info.Location)
	if report.Summary != "" {
		fmt.Println()
		fmt.Println("Summary:")
		fmt.Println(report.Summary)
	}
}
