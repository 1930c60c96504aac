package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/docbase/core"
)

func makeDoc(id string, version int) *core.Document {
	return &core.Document{
		Id:         id,
		Filename:   id + ".md",
		Version:    version,
		UploadedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestDocumentVersions(t *testing.T) {
	index, docRepo, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { index.Close(); docRepo.Close(); backend.Close() }()

	ctx := context.Background()

	for version := 1; version <= 3; version++ {
		if err := docRepo.PutVersion(ctx, makeDoc("doc-1", version)); err != nil {
			t.Fatalf("Failed to put version %d: %v", version, err)
		}
	}

	versions, err := docRepo.GetVersions(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Failed to get versions: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("Expected 3 versions, got %d", len(versions))
	}
	for i, doc := range versions {
		if doc.Version != i+1 {
			t.Fatalf("Expected versions oldest first, got %d at position %d", doc.Version, i)
		}
	}

	latest, err := docRepo.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if latest.Version != 3 {
		t.Fatalf("Expected latest version 3, got %d", latest.Version)
	}
}

func TestDocumentNotFound(t *testing.T) {
	index, docRepo, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { index.Close(); docRepo.Close(); backend.Close() }()

	ctx := context.Background()

	if _, err := docRepo.GetDocument(ctx, "missing"); !errors.Is(err, core.ErrDocumentNotFound) {
		t.Fatalf("Expected ErrDocumentNotFound, got %v", err)
	}
	if _, err := docRepo.GetVersions(ctx, "missing"); !errors.Is(err, core.ErrDocumentNotFound) {
		t.Fatalf("Expected ErrDocumentNotFound, got %v", err)
	}
}

func TestDocumentDeleteVersion(t *testing.T) {
	index, docRepo, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { index.Close(); docRepo.Close(); backend.Close() }()

	ctx := context.Background()

	for version := 1; version <= 2; version++ {
		if err := docRepo.PutVersion(ctx, makeDoc("doc-1", version)); err != nil {
			t.Fatalf("Failed to put version: %v", err)
		}
	}

	if err := docRepo.DeleteVersion(ctx, "doc-1", 1); err != nil {
		t.Fatalf("Failed to delete version: %v", err)
	}

	versions, err := docRepo.GetVersions(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Failed to get versions: %v", err)
	}
	if len(versions) != 1 || versions[0].Version != 2 {
		t.Fatalf("Expected only version 2 to remain, got %v", versions)
	}
}

func TestDocumentMarkDeleted(t *testing.T) {
	index, docRepo, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { index.Close(); docRepo.Close(); backend.Close() }()

	ctx := context.Background()

	if err := docRepo.PutVersion(ctx, makeDoc("doc-1", 1)); err != nil {
		t.Fatalf("Failed to put version: %v", err)
	}
	if err := docRepo.PutVersion(ctx, makeDoc("doc-2", 1)); err != nil {
		t.Fatalf("Failed to put version: %v", err)
	}

	if err := docRepo.MarkDeleted(ctx, "doc-1"); err != nil {
		t.Fatalf("Failed to mark deleted: %v", err)
	}

	if _, err := docRepo.GetDocument(ctx, "doc-1"); !errors.Is(err, core.ErrDocumentNotFound) {
		t.Fatalf("Expected deleted document to be hidden, got %v", err)
	}

	docs, err := docRepo.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("Failed to list documents: %v", err)
	}
	if len(docs) != 1 || docs[0].Id != "doc-2" {
		t.Fatalf("Expected only doc-2 listed, got %v", docs)
	}
}

func TestDocumentListLatestVersions(t *testing.T) {
	index, docRepo, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { index.Close(); docRepo.Close(); backend.Close() }()

	ctx := context.Background()

	for version := 1; version <= 3; version++ {
		if err := docRepo.PutVersion(ctx, makeDoc("doc-b", version)); err != nil {
			t.Fatalf("Failed to put version: %v", err)
		}
	}
	if err := docRepo.PutVersion(ctx, makeDoc("doc-a", 1)); err != nil {
		t.Fatalf("Failed to put version: %v", err)
	}

	docs, err := docRepo.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("Failed to list documents: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("Expected 2 documents, got %d", len(docs))
	}
	if docs[0].Id != "doc-a" || docs[1].Id != "doc-b" {
		t.Fatalf("Expected ID order [doc-a doc-b], got [%s %s]", docs[0].Id, docs[1].Id)
	}
	if docs[1].Version != 3 {
		t.Fatalf("Expected latest version 3 for doc-b, got %d", docs[1].Version)
	}
}

func TestDocumentPutVersionValidation(t *testing.T) {
	index, docRepo, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { index.Close(); docRepo.Close(); backend.Close() }()

	ctx := context.Background()

	if err := docRepo.PutVersion(ctx, &core.Document{Id: "", Version: 1}); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("Expected ErrInvalidInput for empty id, got %v", err)
	}
	if err := docRepo.PutVersion(ctx, &core.Document{Id: "doc-1", Version: 0}); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("Expected ErrInvalidInput for version 0, got %v", err)
	}
	if err := docRepo.PutVersion(ctx, &core.Document{Id: "bad:id", Version: 1}); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("Expected ErrInvalidInput for ':' in id, got %v", err)
	}
}
