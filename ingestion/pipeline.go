package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docbase/ai"
	"github.com/poiesic/docbase/chunk"
	"github.com/poiesic/docbase/core"
	"github.com/poiesic/docbase/extract"
	"github.com/poiesic/docbase/storage"
)

const (
	// DefaultCollection is the collection documents are indexed into when no
	// other collection is configured.
	DefaultCollection = "documents"

	// DefaultRetention is the number of document versions kept in the index.
	DefaultRetention = 3

	// DefaultBatchSize is the number of chunks embedded and upserted per
	// worker job.
	DefaultBatchSize = 16
)

// Pipeline orchestrates document ingestion: extract, chunk, embed, index.
// A single Pipeline is safe for concurrent Ingest calls; writes for the same
// chunk are last-writer-wins in the index.
type Pipeline struct {
	index      storage.VectorIndex
	documents  storage.DocumentRepository
	embedder   ai.Embedder
	registry   *extract.Registry
	chunker    *chunk.Chunker
	pool       *ants.Pool
	collection string
	retention  int
	batchSize  int
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithCollection sets the target collection.
// Default is DefaultCollection.
func WithCollection(collection string) Option {
	return func(p *Pipeline) error {
		if collection == "" {
			collection = DefaultCollection
		}
		p.collection = collection
		return nil
	}
}

// WithChunking sets the chunk size and overlap in runes.
func WithChunking(size, overlap int) Option {
	return func(p *Pipeline) error {
		chunker, err := chunk.New(size, overlap)
		if err != nil {
			return err
		}
		p.chunker = chunker
		return nil
	}
}

// WithRetention sets how many versions of a document stay indexed.
// Older versions are purged after a successful ingestion. Values below 1
// fall back to DefaultRetention.
func WithRetention(versions int) Option {
	return func(p *Pipeline) error {
		if versions < 1 {
			versions = DefaultRetention
		}
		p.retention = versions
		return nil
	}
}

// WithBatchSize sets how many chunks one worker job embeds and upserts.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = DefaultBatchSize
		}
		p.batchSize = size
		return nil
	}
}

// WithRegistry sets the text extractor registry, e.g. to add binary formats.
func WithRegistry(registry *extract.Registry) Option {
	return func(p *Pipeline) error {
		if registry != nil {
			p.registry = registry
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(
	index storage.VectorIndex,
	documents storage.DocumentRepository,
	embedder ai.Embedder,
	opts ...Option,
) (*Pipeline, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if documents == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		index:      index,
		documents:  documents,
		embedder:   embedder,
		registry:   extract.NewRegistry(),
		chunker:    chunk.Default(),
		pool:       pool,
		collection: DefaultCollection,
		retention:  DefaultRetention,
		batchSize:  DefaultBatchSize,
		logger:     slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Request describes one document upload.
type Request struct {
	// Filename selects the extractor by extension and becomes the citation
	// display name. Required.
	Filename string

	// Data is the raw file contents. Required.
	Data []byte

	// Area optionally tags the document for filtered retrieval.
	Area string

	// DocumentId identifies the logical document across versions. When
	// empty, a fresh ID is assigned and the upload becomes version 1.
	DocumentId string

	// StoragePath optionally records where the original upload is kept.
	StoragePath string
}

// Ingest runs the full pipeline for one document synchronously.
//
// The run is all-or-nothing for the new version: on any failure the chunks
// already indexed for it are removed and the returned result carries
// StateFailed alongside the error. On success the new version is recorded
// in the document repository and versions beyond the retention limit are
// purged, oldest first.
func (p *Pipeline) Ingest(ctx context.Context, req *Request) (*core.IngestionResult, error) {
	if req == nil || req.Filename == "" {
		return nil, fmt.Errorf("%w: filename is required", core.ErrInvalidInput)
	}
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", core.ErrInvalidInput, req.Filename)
	}
	// Rejected up front: ':' delimits index keys, and the repository would
	// only catch it after the document was chunked, embedded and indexed.
	if strings.Contains(req.DocumentId, ":") {
		return nil, fmt.Errorf("%w: document id %q contains ':'", core.ErrInvalidInput, req.DocumentId)
	}

	documentID := req.DocumentId
	if documentID == "" {
		documentID = uuid.NewString()
	}

	result := &core.IngestionResult{
		DocumentId: documentID,
		State:      core.StateLoaded,
	}

	version, err := p.nextVersion(ctx, documentID)
	if err != nil {
		result.State = core.StateFailed
		return result, err
	}
	result.Version = version

	text, err := p.registry.Extract(req.Filename, req.Data)
	if err != nil {
		result.State = core.StateFailed
		return result, err
	}

	chunks, err := p.chunker.Split(documentID, text)
	if err != nil {
		result.State = core.StateFailed
		return result, err
	}
	result.State = core.StateChunked
	result.ChunkCount = len(chunks)

	if err := p.embedAndIndex(ctx, req, documentID, version, chunks); err != nil {
		p.rollback(ctx, documentID, version)
		result.State = core.StateFailed
		return result, err
	}
	result.State = core.StateIndexed

	doc := &core.Document{
		Id:          documentID,
		Filename:    req.Filename,
		Area:        req.Area,
		Version:     version,
		UploadedAt:  time.Now().UTC(),
		StoragePath: req.StoragePath,
	}
	if err := p.documents.PutVersion(ctx, doc); err != nil {
		p.rollback(ctx, documentID, version)
		result.State = core.StateFailed
		return result, err
	}

	if err := p.purgeExpiredVersions(ctx, documentID); err != nil {
		// The new version is live; losing a purge only delays cleanup.
		p.logger.Warn("version retention purge failed", "document", documentID, "err", err)
	}

	result.State = core.StateReady
	p.logger.Info("document ingested",
		"document", documentID, "version", version, "chunks", len(chunks))
	return result, nil
}

// PurgeDocument removes every indexed chunk of a document across all
// versions and soft-deletes its metadata.
func (p *Pipeline) PurgeDocument(ctx context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("%w: document id is empty", core.ErrInvalidInput)
	}

	ids, err := p.index.ListDocumentChunks(ctx, p.collection, documentID, 0)
	if err != nil {
		return err
	}
	if err := p.index.Delete(ctx, p.collection, ids...); err != nil {
		return err
	}

	err = p.documents.MarkDeleted(ctx, documentID)
	if err != nil && !errors.Is(err, core.ErrDocumentNotFound) {
		return err
	}

	p.logger.Info("document purged", "document", documentID, "chunks", len(ids))
	return nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// nextVersion returns the version number the upload will be stored under.
func (p *Pipeline) nextVersion(ctx context.Context, documentID string) (int, error) {
	versions, err := p.documents.GetVersions(ctx, documentID)
	if err != nil {
		if errors.Is(err, core.ErrDocumentNotFound) {
			return 1, nil
		}
		return 0, err
	}
	return versions[len(versions)-1].Version + 1, nil
}

// embedAndIndex embeds chunks in batches on the worker pool and upserts the
// resulting records. Returns the first batch error, if any.
func (p *Pipeline) embedAndIndex(ctx context.Context, req *Request, documentID string, version int, chunks []core.Chunk) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	setErr := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	for start := 0; start < len(chunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			if err := p.processBatch(ctx, req, documentID, version, batch); err != nil {
				setErr(err)
			}
		})
		if submitErr != nil {
			wg.Done()
			setErr(submitErr)
			break
		}
	}

	wg.Wait()
	return firstErr
}

// processBatch embeds one batch of chunks and upserts the records.
func (p *Pipeline) processBatch(ctx context.Context, req *Request, documentID string, version int, batch []core.Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("%w: expected %d vectors, got %d", core.ErrIndexWrite, len(batch), len(vectors))
	}

	records := make([]*core.ChunkRecord, len(batch))
	for i, c := range batch {
		records[i] = &core.ChunkRecord{
			Id:         core.ChunkID(documentID, version, c.Seq),
			DocumentId: documentID,
			Filename:   req.Filename,
			Area:       req.Area,
			Version:    version,
			Seq:        c.Seq,
			Page:       c.Page,
			Text:       c.Text,
			Vector:     vectors[i],
		}
	}

	return p.index.Upsert(ctx, p.collection, records...)
}

// rollback removes the chunks indexed for a failed version.
func (p *Pipeline) rollback(ctx context.Context, documentID string, version int) {
	ids, err := p.index.ListDocumentChunks(ctx, p.collection, documentID, version)
	if err != nil {
		p.logger.Error("rollback listing failed", "document", documentID, "version", version, "err", err)
		return
	}
	if len(ids) == 0 {
		return
	}
	if err := p.index.Delete(ctx, p.collection, ids...); err != nil {
		p.logger.Error("rollback delete failed", "document", documentID, "version", version, "err", err)
		return
	}
	p.logger.Info("rolled back partial ingestion",
		"document", documentID, "version", version, "chunks", len(ids))
}

// purgeExpiredVersions drops index entries and metadata for versions beyond
// the retention limit, oldest first.
func (p *Pipeline) purgeExpiredVersions(ctx context.Context, documentID string) error {
	versions, err := p.documents.GetVersions(ctx, documentID)
	if err != nil {
		return err
	}

	for len(versions) > p.retention {
		oldest := versions[0]
		versions = versions[1:]

		ids, err := p.index.ListDocumentChunks(ctx, p.collection, documentID, oldest.Version)
		if err != nil {
			return err
		}
		if err := p.index.Delete(ctx, p.collection, ids...); err != nil {
			return err
		}
		if err := p.documents.DeleteVersion(ctx, documentID, oldest.Version); err != nil {
			return err
		}
		p.logger.Debug("purged expired version",
			"document", documentID, "version", oldest.Version, "chunks", len(ids))
	}
	return nil
}
