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
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docbase/core"
	"github.com/poiesic/docbase/storage"
)

// DocumentRepository implements storage.DocumentRepository on BadgerDB.
// Each document version is one record keyed by (id, version); version keys
// are fixed-width so iteration yields versions oldest first.
type DocumentRepository struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a document repository on an open backend.
// The backend's lifetime is owned by the caller.
func NewDocumentRepository(backend *Backend) storage.DocumentRepository {
	return &DocumentRepository{
		backend: backend,
		logger:  slog.Default().With("component", "document-repository"),
	}
}

// Close is a no-op; the shared backend is closed by its owner.
func (r *DocumentRepository) Close() error {
	return nil
}

// PutVersion stores one document version record.
func (r *DocumentRepository) PutVersion(ctx context.Context, doc *core.Document) error {
	if doc == nil || doc.Id == "" {
		return fmt.Errorf("%w: document id is empty", core.ErrInvalidInput)
	}
	if doc.Version < 1 {
		return fmt.Errorf("%w: document version must be positive", core.ErrInvalidInput)
	}
	if strings.Contains(doc.Id, ":") {
		return fmt.Errorf("%w: document id %q contains ':'", core.ErrInvalidInput, doc.Id)
	}

	return r.backend.WithWriteTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeDocumentKey(doc.Id, doc.Version), storage.MarshalDocument(doc)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// GetDocument returns the latest non-deleted version of a document.
func (r *DocumentRepository) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	versions, err := r.GetVersions(ctx, id)
	if err != nil {
		return nil, err
	}

	for i := len(versions) - 1; i >= 0; i-- {
		if !versions[i].Deleted {
			return versions[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
}

// GetVersions returns all version records for a document, oldest first.
func (r *DocumentRepository) GetVersions(ctx context.Context, id string) ([]*core.Document, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: document id is empty", core.ErrInvalidInput)
	}

	var versions []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeDocumentScanPrefix(id)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				doc, err := storage.UnmarshalDocument(val)
				if err != nil {
					return err
				}
				versions = append(versions, doc)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
	}
	return versions, nil
}

// DeleteVersion removes one version record. Missing versions are ignored.
func (r *DocumentRepository) DeleteVersion(ctx context.Context, id string, version int) error {
	if id == "" {
		return fmt.Errorf("%w: document id is empty", core.ErrInvalidInput)
	}

	return r.backend.WithWriteTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeDocumentKey(id, version)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// ListDocuments returns the latest version of every non-deleted document,
// ordered by ID. Latest wins because versions iterate oldest first within
// one document's key range.
func (r *DocumentRepository) ListDocuments(ctx context.Context) ([]*core.Document, error) {
	var docs []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeDocumentRegistryPrefix()
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				doc, err := storage.UnmarshalDocument(val)
				if err != nil {
					return err
				}
				if doc.Deleted {
					return nil
				}
				if len(docs) > 0 && docs[len(docs)-1].Id == doc.Id {
					docs[len(docs)-1] = doc
					return nil
				}
				docs = append(docs, doc)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// MarkDeleted soft-deletes every version record of a document.
func (r *DocumentRepository) MarkDeleted(ctx context.Context, id string) error {
	versions, err := r.GetVersions(ctx, id)
	if err != nil {
		return err
	}

	return r.backend.WithWriteTx(func(tx *badger.Txn) error {
		for _, doc := range versions {
			doc.Deleted = true
			if err := tx.Set(makeDocumentKey(doc.Id, doc.Version), storage.MarshalDocument(doc)); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}
