// Command rag answers questions from ingested course notes with cited
// evidence, over a local OpenAI-compatible inference server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v3"
	"gopkg.in/natefinch/lumberjack.v2"

	ragengine "github.com/pck00223-oss/ai-rag-engine"
	"github.com/pck00223-oss/ai-rag-engine/generate"
	"github.com/pck00223-oss/ai-rag-engine/index"
	"github.com/pck00223-oss/ai-rag-engine/store"
)

var (
	configPath string
	verbose    bool
	logFile    string
)

func main() {
	app := &cli.Command{
		Name:  "rag",
		Usage: "Evidence-grounded question answering over local documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "config file path (default: " + ragengine.ConfigPath() + ")",
				Destination: &configPath,
			},
			&cli.BoolFlag{
				Name:        "verbose",
				Aliases:     []string{"v"},
				Usage:       "enable debug logging",
				Destination: &verbose,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "write logs to a rotating file instead of stderr",
				Destination: &logFile,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			ingestCmd(),
			askCmd(),
			llmCmd(),
			replCmd(),
			serveCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if logFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		handler = slog.NewTextHandler(rotator, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	}
	slog.SetDefault(slog.New(handler))
}

// app bundles the shared dependencies behind every subcommand.
type app struct {
	cfg     *ragengine.Config
	store   *store.Store
	vectors *index.VectorIndex
	engine  *generate.Engine
}

func newApp() (*app, error) {
	setupLogging()

	cfg, err := ragengine.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	warnings, err := ragengine.ValidateConfig(cfg)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		slog.Warn(w)
	}

	if dir := filepath.Dir(cfg.Storage.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	st, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}

	var vectors *index.VectorIndex
	if ragengine.EmbeddingEnabled(cfg) {
		embedder := index.NewEmbedder(
			ragengine.ResolveEmbeddingBaseURL(cfg),
			ragengine.ResolveEmbeddingAPIKey(cfg),
			ragengine.ResolveEmbeddingModel(cfg),
			cfg.Embedding.Dimensions,
		)
		vectors = index.NewVectorIndex(embedder, cfg.Embedding.Dimensions)
		if cfg.Storage.VectorCachePath != "" {
			if err := vectors.LoadCache(cfg.Storage.VectorCachePath); err != nil {
				slog.Debug("no vector cache loaded", "error", err)
			}
		}
	}

	var completer generate.Completer
	if baseURL := ragengine.ResolveLLMBaseURL(cfg); baseURL != "" {
		llm := cfg.LLM
		llm.Model = ragengine.ResolveLLMModel(cfg)
		completer = generate.NewClient(baseURL, ragengine.ResolveLLMAPIKey(cfg), llm)
	}

	return &app{
		cfg:     cfg,
		store:   st,
		vectors: vectors,
		engine:  generate.NewEngine(cfg, st, completer),
	}, nil
}

func (a *app) close() {
	a.engine.Close()
	if err := a.store.Close(); err != nil {
		slog.Warn("failed to close store", "error", err)
	}
}

// saveVectorCache persists the current vector index, keyed by all stored
// chunk ids.
func (a *app) saveVectorCache(ctx context.Context) {
	if a.vectors == nil || a.cfg.Storage.VectorCachePath == "" {
		return
	}
	chunks, err := a.store.AllChunks(ctx)
	if err != nil {
		slog.Warn("failed to enumerate chunks for vector cache", "error", err)
		return
	}
	ids := make([]int64, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	if err := a.vectors.SaveCache(a.cfg.Storage.VectorCachePath, ids); err != nil {
		slog.Warn("failed to save vector cache", "error", err)
	}
}
