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


package docbase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poiesic/docbase/ai"
	"github.com/poiesic/docbase/ai/openai"
	"github.com/poiesic/docbase/answer"
	"github.com/poiesic/docbase/core"
	"github.com/poiesic/docbase/ingestion"
	"github.com/poiesic/docbase/prompt"
	"github.com/poiesic/docbase/retrieval"
	"github.com/poiesic/docbase/storage"
	"github.com/poiesic/docbase/storage/badger"
)

// Engine wires storage, the AI provider and the pipeline stages into one
// grounded question-answering unit over a local document base.
type Engine struct {
	backend    *badger.Backend
	index      storage.VectorIndex
	documents  storage.DocumentRepository
	provider   ai.AIProvider
	pipeline   *ingestion.Pipeline
	retriever  *retrieval.Retriever
	assembler  *prompt.Assembler
	generator  *answer.Generator
	collection string
	logger     *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	aiConfig      *ai.Config
	provider      ai.AIProvider
	collection    string
	retention     int
	chunkSize     int
	chunkOverlap  int
	topK          int
	minScore      float32
	haveMinScore  bool
	inMemory      bool
	ingestionOpts []ingestion.Option
	assemblerOpts []prompt.Option
	generatorOpts []answer.Option
}

// WithAIConfig sets the AI provider configuration.
func WithAIConfig(config *ai.Config) EngineOption {
	return func(o *engineOptions) {
		if config != nil {
			o.aiConfig = config
		}
	}
}

// WithProvider injects an AI provider directly, bypassing the OpenAI
// provider built from the AI config. Used by tests and embedders with
// custom transports.
func WithProvider(provider ai.AIProvider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithCollection sets the collection documents are indexed into and
// questions are answered from.
func WithCollection(collection string) EngineOption {
	return func(o *engineOptions) {
		o.collection = collection
	}
}

// WithRetention sets how many versions of each document stay indexed.
func WithRetention(versions int) EngineOption {
	return func(o *engineOptions) {
		o.retention = versions
	}
}

// WithChunking sets the chunk size and overlap in runes.
func WithChunking(size, overlap int) EngineOption {
	return func(o *engineOptions) {
		o.chunkSize = size
		o.chunkOverlap = overlap
	}
}

// WithTopK sets how many chunks retrieval fetches per question.
func WithTopK(topK int) EngineOption {
	return func(o *engineOptions) {
		o.topK = topK
	}
}

// WithMinScore sets the retrieval relevance floor.
func WithMinScore(minScore float32) EngineOption {
	return func(o *engineOptions) {
		o.minScore = minScore
		o.haveMinScore = true
	}
}

// WithInMemory opens the storage backend in memory instead of on disk.
// Nothing survives Close; intended for tests.
func WithInMemory() EngineOption {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

// WithIngestionOptions appends extra options for the ingestion pipeline.
func WithIngestionOptions(opts ...ingestion.Option) EngineOption {
	return func(o *engineOptions) {
		o.ingestionOpts = append(o.ingestionOpts, opts...)
	}
}

// WithAssemblerOptions appends extra options for the prompt assembler.
func WithAssemblerOptions(opts ...prompt.Option) EngineOption {
	return func(o *engineOptions) {
		o.assemblerOpts = append(o.assemblerOpts, opts...)
	}
}

// WithGeneratorOptions appends extra options for the answer generator.
func WithGeneratorOptions(opts ...answer.Option) EngineOption {
	return func(o *engineOptions) {
		o.generatorOpts = append(o.generatorOpts, opts...)
	}
}

// NewEngine opens (or creates) a document base at filePath.
func NewEngine(filePath string, opts ...EngineOption) (*Engine, error) {
	options := &engineOptions{
		aiConfig:   ai.DefaultConfig(),
		collection: ingestion.DefaultCollection,
		retention:  ingestion.DefaultRetention,
		topK:       retrieval.DefaultTopK,
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	index := badger.NewIndex(backend)
	documents := badger.NewDocumentRepository(backend)

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	ingestionOpts := []ingestion.Option{
		ingestion.WithCollection(options.collection),
		ingestion.WithRetention(options.retention),
	}
	if options.chunkSize > 0 {
		ingestionOpts = append(ingestionOpts, ingestion.WithChunking(options.chunkSize, options.chunkOverlap))
	}
	ingestionOpts = append(ingestionOpts, options.ingestionOpts...)

	pipeline, err := ingestion.NewPipeline(index, documents, provider.Embedder(), ingestionOpts...)
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	retrievalOpts := []retrieval.Option{retrieval.WithTopK(options.topK)}
	if options.haveMinScore {
		retrievalOpts = append(retrievalOpts, retrieval.WithMinScore(options.minScore))
	}
	retriever, err := retrieval.NewRetriever(index, provider.Embedder(), retrievalOpts...)
	if err != nil {
		pipeline.Release()
		provider.Close()
		backend.Close()
		return nil, err
	}

	generator, err := answer.NewGenerator(provider.Generator(), options.generatorOpts...)
	if err != nil {
		pipeline.Release()
		provider.Close()
		backend.Close()
		return nil, err
	}

	return &Engine{
		backend:    backend,
		index:      index,
		documents:  documents,
		provider:   provider,
		pipeline:   pipeline,
		retriever:  retriever,
		assembler:  prompt.NewAssembler(options.assemblerOpts...),
		generator:  generator,
		collection: options.collection,
		logger:     slog.Default().With("component", "engine"),
	}, nil
}

// Close releases the worker pool, the AI provider and the storage backend.
func (e *Engine) Close() error {
	e.pipeline.Release()

	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
	}
	if err := e.index.Close(); err != nil {
		e.logger.Error("error closing vector index", "err", err)
	}
	if err := e.documents.Close(); err != nil {
		e.logger.Error("error closing document repository", "err", err)
	}

	if err := e.backend.Close(); err != nil {
		e.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// AskOptions holds optional parameters for Ask.
type AskOptions struct {
	// History is the conversation so far, oldest turn first. It lets the
	// model resolve follow-up references against earlier turns.
	History []core.Turn

	// Area restricts retrieval to documents tagged with this area.
	Area string
}

// Ask answers a question from the document base.
//
// Provider and storage failures never surface as raw errors: they are
// logged and mapped to an Answer with StatusError and a safe message. The
// returned error is non-nil only for invalid input, such as an empty
// question.
func (e *Engine) Ask(ctx context.Context, question string, opts *AskOptions) (*core.Answer, error) {
	if err := core.ValidateQuestion(question); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &AskOptions{}
	}

	var filter *storage.Filter
	if opts.Area != "" {
		filter = &storage.Filter{Area: opts.Area}
	}

	matches, err := e.retriever.Retrieve(ctx, e.collection, question, filter)
	if err != nil {
		// An empty document base has no collection yet; that is the
		// fallback path, not a failure.
		if errors.Is(err, core.ErrCollectionNotFound) {
			matches = nil
		} else {
			e.logger.Error("retrieval failed", "err", err)
			return &core.Answer{Text: answer.ErrorText, Status: core.StatusError}, nil
		}
	}

	promptText, sources := e.assembler.Assemble(question, matches, opts.History)

	result, genErr := e.generator.Generate(ctx, promptText, sources)
	if genErr != nil {
		e.logger.Error("answer generation failed", "err", genErr)
	}
	return result, nil
}

// Ingest runs the ingestion pipeline for one document.
func (e *Engine) Ingest(ctx context.Context, req *ingestion.Request) (*core.IngestionResult, error) {
	return e.pipeline.Ingest(ctx, req)
}

// Delete removes a document from the index across all versions and
// soft-deletes its metadata.
func (e *Engine) Delete(ctx context.Context, documentID string) error {
	return e.pipeline.PurgeDocument(ctx, documentID)
}

// Documents lists the latest version of every non-deleted document.
func (e *Engine) Documents(ctx context.Context) ([]*core.Document, error) {
	return e.documents.ListDocuments(ctx)
}

// Collections lists the collections present in the index, sorted.
func (e *Engine) Collections(ctx context.Context) ([]string, error) {
	return e.index.ListCollections(ctx)
}
