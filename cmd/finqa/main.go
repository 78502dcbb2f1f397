package main

import (
	"context"
	"flag"
	"log"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"finqa/internal/app"
	"finqa/internal/config"
	"finqa/internal/logging"
	"finqa/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, snapshotPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/finqa/config.yaml if not provided)")
	flag.StringVar(&snapshotPath, "snapshot", "", "Path to a chunk snapshot JSON to load into the vector index (overrides config)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if snapshotPath != "" {
		cfg.VectorIndex.SnapshotPath = snapshotPath
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	defer func() { _ = logger.Sync() }()

	p, banner, err := app.Build(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	m := tui.New(p, banner)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatal(err)
	}
}
