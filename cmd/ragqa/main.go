package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"

	"ragqa/internal/app"
	"ragqa/internal/chat"
	"ragqa/internal/config"
	"ragqa/internal/logging"
	"ragqa/internal/tui"
)

func main() {
	var (
		cfgPath string
		query   string
		noRAG   bool
		plain   bool
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/ragqa/config.yaml if not provided)")
	flag.StringVar(&query, "query", "", "Answer a single question and exit")
	flag.BoolVar(&noRAG, "no-rag", false, "Answer without retrieving context")
	flag.BoolVar(&plain, "plain", false, "Use the line REPL instead of the terminal UI")
	flag.Parse()

	cfg, _, err := config.Resolve(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	q, err := app.NewQuery(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer q.Close()

	useRAG := !noRAG
	if query != "" {
		env := q.Pipeline.Answer(ctx, query, nil, useRAG)
		if env.Success {
			fmt.Println(env.Answer)
		} else {
			fmt.Println("Error: " + env.Answer)
		}
		return
	}

	banner := fmt.Sprintf("Model %s. Commands: history, clear, status, quit.", cfg.LLM.Model)
	if info, err := q.Retriever.Info(ctx); err != nil {
		logger.Warn("cannot read collection info", "err", err)
	} else if useRAG && !info.Initialized {
		banner = "Warning: the document collection is not initialized; run ragqa-ingest first. " + banner
		logger.Warn("collection not initialized", "location", info.Location)
	}

	session := chat.NewSession(q.Pipeline, q.Retriever.Info, useRAG, cfg.Debug)
	if plain || !isatty.IsTerminal(os.Stdin.Fd()) {
		fmt.Println(banner)
		if err := chat.RunREPL(ctx, session, os.Stdin, os.Stdout); err != nil {
			log.Printf("input error: %v", err)
		}
		return
	}
	if err := tui.Run(ctx, session, banner, cfg.Debug); err != nil {
		log.Printf("terminal UI failed: %v", err)
	}
}
