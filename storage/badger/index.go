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


package badger

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docbase/core"
	"github.com/poiesic/docbase/storage"
)

// Index implements storage.VectorIndex on BadgerDB.
// Chunk records live under collection-scoped keys; a registry key per
// collection records its embedding dimension so vectors from different
// embedding models can never mix within one collection.
type Index struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.VectorIndex = (*Index)(nil)

// NewIndex creates a vector index on an open backend.
// The backend's lifetime is owned by the caller.
//
// Returns storage.VectorIndex interface to enforce abstraction.
func NewIndex(backend *Backend) storage.VectorIndex {
	return &Index{
		backend: backend,
		logger:  slog.Default().With("component", "vector-index"),
	}
}

// Close is a no-op; the shared backend is closed by its owner.
func (ix *Index) Close() error {
	return nil
}

// Upsert stores chunk records, creating the collection on first write.
// Writes are idempotent by chunk ID (last-writer-wins).
func (ix *Index) Upsert(ctx context.Context, collection string, records ...*core.ChunkRecord) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	for _, record := range records {
		if len(record.Vector) == 0 {
			return fmt.Errorf("%w: chunk %d has no vector", storage.ErrInvalidQuery, record.Id)
		}
	}

	err := ix.backend.WithWriteTx(func(tx *badger.Txn) error {
		dim, err := ix.collectionDim(tx, collection)
		if err != nil {
			return err
		}
		if dim == 0 {
			// First upsert creates the collection with the incoming dimension.
			dim = len(records[0].Vector)
			if err := tx.Set(makeCollectionKey(collection), []byte(strconv.Itoa(dim))); err != nil {
				return err
			}
		}

		for _, record := range records {
			if len(record.Vector) != dim {
				return fmt.Errorf("%w: chunk %d has dimension %d, collection %q expects %d",
					storage.ErrDimensionMismatch, record.Id, len(record.Vector), collection, dim)
			}
			if err := tx.Set(makeChunkKey(collection, record.Id), storage.MarshalChunkRecord(record)); err != nil {
				return err
			}
			docKey := makeChunkDocKey(collection, record.DocumentId, record.Version, record.Id)
			if err := tx.Set(docKey, nil); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		ix.logger.Error("upsert failed", "collection", collection, "records", len(records), "err", err)
		return fmt.Errorf("%w: %w", core.ErrIndexWrite, err)
	}
	return nil
}

// Query returns at most topK matches ordered best-first by cosine
// similarity, after applying the optional metadata filter.
func (ix *Index) Query(ctx context.Context, collection string, vector []float32, topK int, filter *storage.Filter) ([]*core.RetrievalMatch, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if topK < 1 {
		return nil, fmt.Errorf("%w: topK must be positive", storage.ErrInvalidQuery)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: query vector is empty", storage.ErrInvalidQuery)
	}

	var results []*core.RetrievalMatch
	err := ix.backend.WithTx(func(tx *badger.Txn) error {
		dim, err := ix.collectionDim(tx, collection)
		if err != nil {
			return err
		}
		if dim == 0 {
			return fmt.Errorf("%w: %s", core.ErrCollectionNotFound, collection)
		}
		if len(vector) != dim {
			return fmt.Errorf("%w: query has dimension %d, collection %q expects %d",
				storage.ErrDimensionMismatch, len(vector), collection, dim)
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkScanPrefix(collection)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var record *core.ChunkRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalChunkRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			if record == nil || !filter.Matches(record) {
				continue
			}

			results = append(results, &core.RetrievalMatch{
				Record: record,
				Score:  cosineSimilarity(vector, record.Vector),
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending
	slices.SortFunc(results, func(a, b *core.RetrievalMatch) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Delete removes entries by ID; missing IDs are ignored.
func (ix *Index) Delete(ctx context.Context, collection string, ids ...core.ID) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	return ix.backend.WithWriteTx(func(tx *badger.Txn) error {
		dim, err := ix.collectionDim(tx, collection)
		if err != nil {
			return err
		}
		if dim == 0 {
			return fmt.Errorf("%w: %s", core.ErrCollectionNotFound, collection)
		}

		for _, id := range ids {
			key := makeChunkKey(collection, id)
			item, err := tx.Get(key)
			if err != nil {
				if err == badger.ErrKeyNotFound {
					continue
				}
				return err
			}

			var record *core.ChunkRecord
			if err := item.Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalChunkRecord(val)
				return err
			}); err != nil {
				return err
			}

			docKey := makeChunkDocKey(collection, record.DocumentId, record.Version, record.Id)
			if err := tx.Delete(docKey); err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// ListDocumentChunks returns the IDs of all indexed chunks for one document
// version (all versions when version <= 0). A collection that was never
// created yields an empty result, which keeps the rollback path simple when
// ingestion fails before its first upsert.
func (ix *Index) ListDocumentChunks(ctx context.Context, collection, documentID string, version int) ([]core.ID, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}

	var ids []core.ID
	err := ix.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkDocScanPrefix(collection, documentID, version)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			id, err := chunkIDFromDocKey(iter.Item().Key())
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListCollections returns the names of all collections, sorted.
func (ix *Index) ListCollections(ctx context.Context) ([]string, error) {
	var names []string
	err := ix.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(collectionPrefix + ":")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			key := string(iter.Item().Key())
			names = append(names, strings.TrimPrefix(key, collectionPrefix+":"))
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}

// collectionDim reads the collection's embedding dimension from the
// registry. Returns 0 when the collection does not exist.
func (ix *Index) collectionDim(tx *badger.Txn, collection string) (int, error) {
	item, err := tx.Get(makeCollectionKey(collection))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return 0, nil
		}
		return 0, err
	}
	var dim int
	err = item.Value(func(val []byte) error {
		var convErr error
		dim, convErr = strconv.Atoi(string(val))
		return convErr
	})
	return dim, err
}

// chunkIDFromDocKey parses the trailing fixed-width chunk ID from a
// document-index key.
func chunkIDFromDocKey(key []byte) (core.ID, error) {
	s := string(key)
	if len(s) < 20 {
		return 0, fmt.Errorf("%w: malformed doc index key %q", storage.ErrSerializationFailed, s)
	}
	id, err := strconv.ParseUint(s[len(s)-20:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed doc index key %q", storage.ErrSerializationFailed, s)
	}
	return core.ID(id), nil
}

func validateCollection(collection string) error {
	if collection == "" {
		return fmt.Errorf("%w: collection name is empty", storage.ErrInvalidQuery)
	}
	if strings.Contains(collection, ":") {
		return fmt.Errorf("%w: collection name %q contains ':'", storage.ErrInvalidQuery, collection)
	}
	return nil
}
