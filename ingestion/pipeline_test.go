package ingestion

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/poiesic/docbase/ai/mock"
	"github.com/poiesic/docbase/core"
	"github.com/poiesic/docbase/storage"
	badgerstore "github.com/poiesic/docbase/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, opts ...Option) (*Pipeline, storage.VectorIndex, storage.DocumentRepository, *mock.MockEmbedder) {
	t.Helper()

	index, docRepo, backend, err := badgerstore.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { index.Close(); docRepo.Close(); backend.Close() })

	embedder := mock.NewMockEmbedder()
	pipeline, err := NewPipeline(index, docRepo, embedder, opts...)
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	return pipeline, index, docRepo, embedder
}

func handbookText() string {
	var b strings.Builder
	b.WriteString("Annual Leave: permanent employees receive 18 days of paid leave per calendar year.\n\n")
	b.WriteString("Remote Work: employees may work remotely up to two days per week with manager approval.\n\n")
	b.WriteString("Expenses: claims must be submitted within 30 days of the purchase date, with receipts attached.\n\n")
	b.WriteString("Probation: the standard probation period lasts six months and includes two review meetings.\n")
	return b.String()
}

func TestIngestDocument(t *testing.T) {
	pipeline, index, docRepo, _ := newTestPipeline(t, WithChunking(120, 20))
	ctx := context.Background()

	result, err := pipeline.Ingest(ctx, &Request{
		Filename:   "handbook.md",
		Data:       []byte(handbookText()),
		Area:       "hr",
		DocumentId: "doc-1",
	})
	require.NoError(t, err)
	assert.Equal(t, core.StateReady, result.State)
	assert.Equal(t, "doc-1", result.DocumentId)
	assert.Equal(t, 1, result.Version)
	assert.Greater(t, result.ChunkCount, 1)

	ids, err := index.ListDocumentChunks(ctx, DefaultCollection, "doc-1", 1)
	require.NoError(t, err)
	assert.Len(t, ids, result.ChunkCount)

	doc, err := docRepo.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "handbook.md", doc.Filename)
	assert.Equal(t, "hr", doc.Area)
	assert.Equal(t, 1, doc.Version)
}

func TestIngestChunksAreSearchable(t *testing.T) {
	pipeline, index, _, _ := newTestPipeline(t, WithChunking(120, 20))
	ctx := context.Background()

	_, err := pipeline.Ingest(ctx, &Request{
		Filename:   "handbook.md",
		Data:       []byte(handbookText()),
		DocumentId: "doc-1",
	})
	require.NoError(t, err)

	// Query with the embedding of a stored chunk; the match must carry the
	// chunk's own text and metadata back out of the index.
	ids, err := index.ListDocumentChunks(ctx, DefaultCollection, "doc-1", 1)
	require.NoError(t, err)
	require.NotEmpty(t, ids)

	matches, err := index.Query(ctx, DefaultCollection, mock.DeterministicVector("anything", 384), 5, nil)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "doc-1", matches[0].Record.DocumentId)
	assert.Equal(t, "handbook.md", matches[0].Record.Filename)
	assert.NotEmpty(t, matches[0].Record.Text)
}

func TestIngestNewVersion(t *testing.T) {
	pipeline, index, docRepo, _ := newTestPipeline(t, WithChunking(120, 20))
	ctx := context.Background()

	first, err := pipeline.Ingest(ctx, &Request{
		Filename: "handbook.md", Data: []byte(handbookText()), DocumentId: "doc-1",
	})
	require.NoError(t, err)
	require.Equal(t, 1, first.Version)

	second, err := pipeline.Ingest(ctx, &Request{
		Filename: "handbook.md", Data: []byte(handbookText() + "\nAmendment: parking passes are available at reception.\n"), DocumentId: "doc-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)

	versions, err := docRepo.GetVersions(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, versions, 2)

	v1, err := index.ListDocumentChunks(ctx, DefaultCollection, "doc-1", 1)
	require.NoError(t, err)
	v2, err := index.ListDocumentChunks(ctx, DefaultCollection, "doc-1", 2)
	require.NoError(t, err)
	assert.Len(t, v1, first.ChunkCount)
	assert.Len(t, v2, second.ChunkCount)
}

func TestIngestAssignsDocumentID(t *testing.T) {
	pipeline, _, _, _ := newTestPipeline(t)
	ctx := context.Background()

	result, err := pipeline.Ingest(ctx, &Request{
		Filename: "note.txt", Data: []byte("A short note about the office plants."),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.DocumentId)
	assert.Equal(t, 1, result.Version)
}

func TestIngestRollbackOnEmbedFailure(t *testing.T) {
	pipeline, index, _, embedder := newTestPipeline(t,
		WithChunking(60, 10), WithBatchSize(2), WithPoolSize(1))
	ctx := context.Background()

	// First batch succeeds and is upserted, second batch fails. The run must
	// leave zero chunks behind for the attempted version.
	var calls atomic.Int64
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if calls.Add(1) > 1 {
			return nil, core.NewEmbeddingError(errors.New("backend unavailable"), false)
		}
		vectors := make([][]float32, len(texts))
		for i, text := range texts {
			vectors[i] = mock.DeterministicVector(text, 384)
		}
		return vectors, nil
	}

	result, err := pipeline.Ingest(ctx, &Request{
		Filename: "handbook.md", Data: []byte(handbookText()), DocumentId: "doc-1",
	})
	require.Error(t, err)
	assert.Equal(t, core.StateFailed, result.State)

	ids, err := index.ListDocumentChunks(ctx, DefaultCollection, "doc-1", 1)
	require.NoError(t, err)
	assert.Empty(t, ids, "partial ingestion must be rolled back")
}

func TestIngestVersionRetention(t *testing.T) {
	pipeline, index, docRepo, _ := newTestPipeline(t, WithChunking(120, 20), WithRetention(3))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := pipeline.Ingest(ctx, &Request{
			Filename: "handbook.md", Data: []byte(handbookText()), DocumentId: "doc-1",
		})
		require.NoError(t, err)
	}

	versions, err := docRepo.GetVersions(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, 2, versions[0].Version, "oldest version must be purged first")
	assert.Equal(t, 4, versions[2].Version)

	purged, err := index.ListDocumentChunks(ctx, DefaultCollection, "doc-1", 1)
	require.NoError(t, err)
	assert.Empty(t, purged, "purged version must leave no chunks in the index")

	kept, err := index.ListDocumentChunks(ctx, DefaultCollection, "doc-1", 4)
	require.NoError(t, err)
	assert.NotEmpty(t, kept)
}

func TestIngestUnsupportedFormat(t *testing.T) {
	pipeline, _, _, _ := newTestPipeline(t)

	result, err := pipeline.Ingest(context.Background(), &Request{
		Filename: "slides.pptx", Data: []byte("binary"),
	})
	require.ErrorIs(t, err, core.ErrUnsupportedFormat)
	assert.Equal(t, core.StateFailed, result.State)
}

func TestIngestInvalidRequest(t *testing.T) {
	pipeline, _, _, _ := newTestPipeline(t)
	ctx := context.Background()

	_, err := pipeline.Ingest(ctx, nil)
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = pipeline.Ingest(ctx, &Request{Filename: "", Data: []byte("text")})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = pipeline.Ingest(ctx, &Request{Filename: "empty.txt", Data: nil})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestIngestRejectsDocumentIDWithColonUpFront(t *testing.T) {
	pipeline, index, _, embedder := newTestPipeline(t)
	ctx := context.Background()

	_, err := pipeline.Ingest(ctx, &Request{
		Filename: "handbook.md", Data: []byte(handbookText()), DocumentId: "bad:id",
	})
	require.ErrorIs(t, err, core.ErrInvalidInput)

	// Rejected before any extraction, embedding or indexing happened.
	assert.Zero(t, embedder.CallCount())
	ids, err := index.ListDocumentChunks(ctx, DefaultCollection, "bad", 0)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPurgeDocument(t *testing.T) {
	pipeline, index, docRepo, _ := newTestPipeline(t, WithChunking(120, 20))
	ctx := context.Background()

	_, err := pipeline.Ingest(ctx, &Request{
		Filename: "handbook.md", Data: []byte(handbookText()), DocumentId: "doc-1",
	})
	require.NoError(t, err)

	require.NoError(t, pipeline.PurgeDocument(ctx, "doc-1"))

	ids, err := index.ListDocumentChunks(ctx, DefaultCollection, "doc-1", 0)
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = docRepo.GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, core.ErrDocumentNotFound)
}

func TestNewPipelineValidation(t *testing.T) {
	index, docRepo, backend, err := badgerstore.NewMemoryStores()
	require.NoError(t, err)
	defer func() { index.Close(); docRepo.Close(); backend.Close() }()

	_, err = NewPipeline(nil, docRepo, mock.NewMockEmbedder())
	assert.ErrorIs(t, err, ErrIndexRequired)

	_, err = NewPipeline(index, nil, mock.NewMockEmbedder())
	assert.ErrorIs(t, err, ErrRepositoryRequired)

	_, err = NewPipeline(index, docRepo, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}
