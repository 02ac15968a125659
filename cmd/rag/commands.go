package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/pck00223-oss/ai-rag-engine/ingest"
	"github.com/pck00223-oss/ai-rag-engine/repl"
	"github.com/pck00223-oss/ai-rag-engine/serve"
)

func ingestCmd() *cli.Command {
	return &cli.Command{
		Name:      "ingest",
		Usage:     "Ingest documents (markdown/text files or directories)",
		ArgsUsage: "<path> [path...]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() == 0 {
				return fmt.Errorf("at least one file or directory is required")
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ing := ingest.New(a.store, a.vectors, a.cfg.Storage.ChunkSize, a.cfg.Storage.ChunkOverlap)

			total := 0
			for _, path := range cmd.Args().Slice() {
				info, err := os.Stat(path)
				if err != nil {
					return err
				}
				var n int
				if info.IsDir() {
					n, err = ing.IngestDir(ctx, path)
				} else {
					n, err = ing.IngestFile(ctx, path)
				}
				if err != nil {
					return err
				}
				total += n
			}

			a.saveVectorCache(ctx)
			fmt.Printf("ingested %d chunks\n", total)
			return nil
		},
	}
}

func askCmd() *cli.Command {
	var asJSON bool

	return &cli.Command{
		Name:      "ask",
		Usage:     "Answer a question from the ingested evidence",
		ArgsUsage: "<question>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print the full answer record as JSON", Destination: &asJSON},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			question := strings.Join(cmd.Args().Slice(), " ")
			if strings.TrimSpace(question) == "" {
				return fmt.Errorf("a question is required")
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			answer, err := a.engine.Answer(ctx, question)
			if err != nil {
				return err
			}

			if asJSON {
				out, err := json.MarshalIndent(answer, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}
			fmt.Println(answer.Text)
			return nil
		},
	}
}

func llmCmd() *cli.Command {
	return &cli.Command{
		Name:      "llm",
		Usage:     "Ask the model directly for a one-sentence answer, no retrieval",
		ArgsUsage: "<question>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			question := strings.Join(cmd.Args().Slice(), " ")
			if strings.TrimSpace(question) == "" {
				return fmt.Errorf("a question is required")
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			answer, err := a.engine.Direct(ctx, question)
			if err != nil {
				return err
			}
			fmt.Println(answer)
			return nil
		},
	}
}

func replCmd() *cli.Command {
	return &cli.Command{
		Name:  "repl",
		Usage: "Interactive question loop",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			return repl.Run(ctx, a.engine, os.Stdin, os.Stdout)
		},
	}
}

func serveCmd() *cli.Command {
	var addr string

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address (overrides config)", Destination: &addr},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if addr == "" {
				addr = a.cfg.Serve.Addr
			}
			slog.Info("starting server", "address", addr)
			return serve.Run(ctx, addr, serve.NewServer(a.store, a.vectors, a.engine))
		},
	}
}
