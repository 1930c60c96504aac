// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/poiesic/docbase"
	"github.com/poiesic/docbase/ai"
	"github.com/poiesic/docbase/ingestion"
	"github.com/urfave/cli/v2"
)

func main() {
	// Local overrides for hosts, models and tokens. Missing .env is fine.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "docbase",
		Usage: "Grounded question answering over a local document base",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest documents into the index",
				ArgsUsage: "<file> [<file>...]",
				Action:    ingestCommand,
				Flags: append(engineFlags(),
					&cli.StringFlag{
						Name:  "area",
						Usage: "Content area tag applied to the ingested documents",
					},
					&cli.StringFlag{
						Name:  "doc-id",
						Usage: "Document ID to version under (single file only)",
					},
				),
			},
			{
				Name:      "ask",
				Usage:     "Ask a question against the document base",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: append(engineFlags(),
					&cli.StringFlag{
						Name:  "area",
						Usage: "Restrict retrieval to one content area",
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Number of chunks retrieved per question",
						Value: 5,
					},
					&cli.Float64Flag{
						Name:  "min-score",
						Usage: "Relevance floor for retrieved chunks",
						Value: 0.35,
					},
				),
			},
			{
				Name:   "collections",
				Usage:  "List collections in the index",
				Action: collectionsCommand,
				Flags:  engineFlags(),
			},
			{
				Name:   "documents",
				Usage:  "List documents in the base",
				Action: documentsCommand,
				Flags:  engineFlags(),
			},
			{
				Name:      "delete",
				Usage:     "Remove a document and all its indexed versions",
				ArgsUsage: "<document-id>",
				Action:    deleteCommand,
				Flags:     engineFlags(),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to the document base directory",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "collection",
			Usage: "Collection name",
			Value: ingestion.DefaultCollection,
		},
		&cli.StringFlag{
			Name:    "host",
			Usage:   "OpenAI-compatible service host URL",
			EnvVars: []string{"DOCBASE_HOST"},
			Value:   "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:    "embedding-model",
			Usage:   "Embedding model name",
			EnvVars: []string{"DOCBASE_EMBEDDING_MODEL"},
			Value:   "embeddinggemma",
		},
		&cli.StringFlag{
			Name:    "completion-model",
			Usage:   "Completion model name",
			EnvVars: []string{"DOCBASE_COMPLETION_MODEL"},
			Value:   "qwen2.5:3b",
		},
		&cli.StringFlag{
			Name:    "token",
			Usage:   "API token for the AI service",
			EnvVars: []string{"DOCBASE_TOKEN"},
			Value:   "none",
		},
	}
}

func openEngine(c *cli.Context, extra ...docbase.EngineOption) (*docbase.Engine, error) {
	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithCompletionModel(c.String("completion-model")),
		ai.WithToken(c.String("token")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	opts := append([]docbase.EngineOption{
		docbase.WithAIConfig(aiConfig),
		docbase.WithCollection(c.String("collection")),
	}, extra...)

	return docbase.NewEngine(c.String("db"), opts...)
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("at least one file is required")
	}
	if c.String("doc-id") != "" && c.NArg() > 1 {
		return fmt.Errorf("doc-id can only be used with a single file")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx := context.Background()
	for _, path := range c.Args().Slice() {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		result, err := engine.Ingest(ctx, &ingestion.Request{
			Filename:    filepath.Base(path),
			Data:        data,
			Area:        c.String("area"),
			DocumentId:  c.String("doc-id"),
			StoragePath: path,
		})
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}

		fmt.Printf("%s: document %s version %d, %d chunks\n",
			filepath.Base(path), result.DocumentId, result.Version, result.ChunkCount)
	}
	return nil
}

func askCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("a question is required")
	}
	question := strings.Join(c.Args().Slice(), " ")

	engine, err := openEngine(c,
		docbase.WithTopK(c.Int("top-k")),
		docbase.WithMinScore(float32(c.Float64("min-score"))),
	)
	if err != nil {
		return err
	}
	defer engine.Close()

	answer, err := engine.Ask(context.Background(), question, &docbase.AskOptions{
		Area: c.String("area"),
	})
	if err != nil {
		return err
	}

	fmt.Println(answer.Text)
	if len(answer.Sources) > 0 {
		fmt.Printf("\nSources: %s\n", strings.Join(answer.Sources, ", "))
	}
	return nil
}

func collectionsCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	names, err := engine.Collections(context.Background())
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func documentsCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	docs, err := engine.Documents(context.Background())
	if err != nil {
		return err
	}
	for _, doc := range docs {
		fmt.Printf("%s\t%s\tv%d\t%s\n", doc.Id, doc.Filename, doc.Version,
			doc.UploadedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func deleteCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one document ID is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.Delete(context.Background(), c.Args().First()); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", c.Args().First())
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
