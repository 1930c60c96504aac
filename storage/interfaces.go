package storage

import (
	"context"

	"github.com/poiesic/docbase/core"
)

// Filter restricts a similarity query to a metadata subset before ranking.
// Zero-value fields are ignored.
type Filter struct {
	// Area restricts matches to one content area.
	Area string

	// DocumentId restricts matches to one document.
	DocumentId string
}

// Matches reports whether a chunk record passes the filter.
func (f *Filter) Matches(record *core.ChunkRecord) bool {
	if f == nil {
		return true
	}
	if f.Area != "" && record.Area != f.Area {
		return false
	}
	if f.DocumentId != "" && record.DocumentId != f.DocumentId {
		return false
	}
	return true
}

// VectorIndex is the persistent store of (vector, chunk text, metadata)
// tuples, partitioned into named collections. A collection is created
// implicitly on first upsert. Implementations must be thread-safe;
// concurrent upserts are last-writer-wins per chunk ID.
type VectorIndex interface {
	// Upsert stores chunk records in the collection, overwriting any
	// existing entries with the same ID. Creates the collection if absent.
	Upsert(ctx context.Context, collection string, records ...*core.ChunkRecord) error

	// Query returns at most topK matches ordered best-first by cosine
	// similarity, after applying the optional filter.
	// Returns core.ErrCollectionNotFound for a nonexistent collection.
	Query(ctx context.Context, collection string, vector []float32, topK int, filter *Filter) ([]*core.RetrievalMatch, error)

	// Delete removes entries by ID. Missing IDs are ignored.
	// Returns core.ErrCollectionNotFound for a nonexistent collection.
	Delete(ctx context.Context, collection string, ids ...core.ID) error

	// ListDocumentChunks returns the IDs of all chunks belonging to one
	// document version. version <= 0 means all versions.
	ListDocumentChunks(ctx context.Context, collection, documentID string, version int) ([]core.ID, error)

	// ListCollections returns the names of all collections, sorted.
	ListCollections(ctx context.Context) ([]string, error)

	// Close closes the index and releases resources.
	Close() error
}

// DocumentRepository stores document and version metadata.
// The question-answering core only reads it; the ingestion pipeline writes
// version records and drives retention.
type DocumentRepository interface {
	// PutVersion stores one document version record.
	PutVersion(ctx context.Context, doc *core.Document) error

	// GetDocument returns the latest non-deleted version of a document.
	// Returns core.ErrDocumentNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id string) (*core.Document, error)

	// GetVersions returns all version records for a document, oldest first.
	GetVersions(ctx context.Context, id string) ([]*core.Document, error)

	// DeleteVersion removes one version record.
	DeleteVersion(ctx context.Context, id string, version int) error

	// ListDocuments returns the latest version of every non-deleted
	// document, ordered by ID.
	ListDocuments(ctx context.Context) ([]*core.Document, error)

	// MarkDeleted soft-deletes a document. Index purging is the
	// pipeline's responsibility.
	MarkDeleted(ctx context.Context, id string) error

	// Close closes the repository and releases resources.
	Close() error
}
