package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"finqa/internal/app"
	"finqa/internal/config"
	"finqa/internal/logging"
)

// questionItem is one entry of the questions file. Plain-text files get
// sequential ids starting at 1.
type questionItem struct {
	QuestionID int    `json:"question_id"`
	Question   string `json:"question"`
}

type resultItem struct {
	QuestionID      int      `json:"question_id"`
	KnowledgePoints []string `json:"knowledge_points"`
}

func main() {
	_ = godotenv.Load()

	var cfgPath, snapshotPath, questionsPath, outPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/finqa/config.yaml if not provided)")
	flag.StringVar(&snapshotPath, "snapshot", "", "Path to a chunk snapshot JSON to load into the vector index (overrides config)")
	flag.StringVar(&questionsPath, "questions", "", "Path to the questions file (JSON array or one question per line)")
	flag.StringVar(&outPath, "out", "result.json", "Path for the answers JSON")
	flag.Parse()
	if questionsPath == "" {
		fmt.Println("Usage: finqa-batch [--config=config.yaml] [--snapshot=chunks.json] --questions=questions.json [--out=result.json]")
		os.Exit(1)
	}

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

	if addr := os.Getenv("FINQA_METRICS_ADDR"); addr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(addr, nil); err != nil {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	items, err := readQuestions(questionsPath)
	if err != nil {
		log.Fatalf("failed to read questions: %v", err)
	}

	ctx := context.Background()
	p, banner, err := app.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	logger.Info("pipeline assembled", zap.String("assembly", banner))

	questions := make([]string, len(items))
	for i, it := range items {
		questions[i] = it.Question
	}

	start := time.Now()
	answers, err := p.BatchAnswer(ctx, questions)
	if err != nil {
		log.Fatalf("batch failed: %v", err)
	}

	results := make([]resultItem, len(items))
	violations := 0
	for i, a := range answers {
		points := a.KnowledgePoints
		if points == nil {
			points = []string{}
		}
		if len(points) > cfg.Ranking.MaxKnowledgePoints {
			violations++
			logger.Error("answer exceeds point limit",
				zap.Int("question_id", items[i].QuestionID),
				zap.Int("points", len(points)))
		}
		for _, pt := range points {
			if n := utf8.RuneCountInString(pt); n > cfg.Ranking.MaxKnowledgeChars {
				violations++
				logger.Error("knowledge point exceeds length limit",
					zap.Int("question_id", items[i].QuestionID),
					zap.Int("runes", n))
			}
		}
		results[i] = resultItem{QuestionID: items[i].QuestionID, KnowledgePoints: points}
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		log.Fatalf("encode results: %v", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		log.Fatalf("write %s: %v", outPath, err)
	}

	logger.Info("batch complete",
		zap.Int("questions", len(items)),
		zap.Int("violations", violations),
		zap.String("out", outPath),
		zap.Duration("elapsed", time.Since(start)))
}

func readQuestions(path string) ([]questionItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%s holds no questions", path)
	}
	if trimmed[0] == '[' {
		var items []questionItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return items, nil
	}
	var items []questionItem
	for _, line := range strings.Split(string(trimmed), "\n") {
		q := strings.TrimSpace(line)
		if q == "" {
			continue
		}
		items = append(items, questionItem{QuestionID: len(items) + 1, Question: q})
	}
	return items, nil
}
