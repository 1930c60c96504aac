package core

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for indexed chunks.
// It is derived from chunk provenance so re-ingesting identical input
// produces identical IDs (idempotent upserts).
type ID uint64

// IDFromContent generates a deterministic ID from text using BLAKE2b hashing.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ChunkID derives the index key for a chunk from its provenance.
// The key is position-based so a re-ingest of the same document version
// overwrites rather than duplicates.
func ChunkID(documentID string, version, seq int) ID {
	return IDFromContent(fmt.Sprintf("%s:%d:%d", documentID, version, seq))
}

// Document is a logical source unit. The identifier is unique and immutable
// once assigned; the filename is not required to be unique.
type Document struct {
	Id          string
	Filename    string
	Area        string
	Version     int
	UploadedAt  time.Time
	StoragePath string
	Deleted     bool
}

// Chunk is a bounded span of a document's extracted text.
type Chunk struct {
	DocumentId string
	Seq        int
	Text       string
	Page       int // 0 when the source format has no page numbers
}

// ChunkRecord is the stored tuple of a chunk, its provenance metadata and
// its embedding vector. This is the unit held by the vector index.
type ChunkRecord struct {
	Id         ID
	DocumentId string
	Filename   string
	Area       string
	Version    int
	Seq        int
	Page       int
	Text       string
	Vector     []float32
}

// RetrievalMatch is an ephemeral similarity-search result.
// Matches are ordered best-first; Score is cosine similarity.
type RetrievalMatch struct {
	Record *ChunkRecord
	Score  float32
}

// Turn is one completed question/answer exchange in a conversation.
// The session boundary owns turn storage; core receives turns as an
// ordered sequence, oldest first.
type Turn struct {
	Question string
	Answer   string
}

// Status reports the outcome of the question-answering path.
// A "no relevant content" reply is StatusSuccess with the fixed fallback
// answer, never StatusError.
type Status int

const (
	StatusSuccess Status = iota + 1
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Answer is the result of one question-answering request.
type Answer struct {
	Text    string
	Status  Status
	Sources []string
}

// IngestionState tracks a document version through the ingestion pipeline.
type IngestionState int

const (
	StateLoaded IngestionState = iota + 1
	StateChunked
	StateEmbedded
	StateIndexed
	StateReady
	StateFailed
)

func (s IngestionState) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateChunked:
		return "chunked"
	case StateEmbedded:
		return "embedded"
	case StateIndexed:
		return "indexed"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IngestionResult summarizes one ingestion attempt.
type IngestionResult struct {
	DocumentId string
	Version    int
	ChunkCount int
	State      IngestionState
}
