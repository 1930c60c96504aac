package badger

import (
	"fmt"

	"github.com/poiesic/docbase/core"
)

// Key prefixes for different data types
const (
	collectionPrefix = "col"
	chunkPrefix      = "chunk"
	chunkDocPrefix   = "chdoc"
	documentPrefix   = "docrec"
)

// makeCollectionKey generates the registry key for a collection.
// The value holds the collection's embedding dimension.
func makeCollectionKey(collection string) []byte {
	return []byte(fmt.Sprintf("%s:%s", collectionPrefix, collection))
}

// makeChunkKey generates a key for a chunk record by ID within a collection.
func makeChunkKey(collection string, id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%s:%020d", chunkPrefix, collection, id))
}

// makeChunkScanPrefix generates the prefix for scanning all chunks of a collection.
func makeChunkScanPrefix(collection string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", chunkPrefix, collection))
}

// makeChunkDocKey generates a composite key for the document→chunk index.
// Format: prefix:collection:documentID:version:chunkID
// The fixed-width version keeps versions lexicographically ordered.
func makeChunkDocKey(collection, documentID string, version int, id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:%010d:%020d", chunkDocPrefix, collection, documentID, version, id))
}

// makeChunkDocScanPrefix generates the prefix for scanning a document's
// chunk index entries. version <= 0 scans all versions.
func makeChunkDocScanPrefix(collection, documentID string, version int) []byte {
	if version <= 0 {
		return []byte(fmt.Sprintf("%s:%s:%s:", chunkDocPrefix, collection, documentID))
	}
	return []byte(fmt.Sprintf("%s:%s:%s:%010d:", chunkDocPrefix, collection, documentID, version))
}

// makeDocumentKey generates a key for one document version record.
func makeDocumentKey(id string, version int) []byte {
	return []byte(fmt.Sprintf("%s:%s:%010d", documentPrefix, id, version))
}

// makeDocumentScanPrefix generates the prefix for scanning a document's versions.
func makeDocumentScanPrefix(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", documentPrefix, id))
}

// makeDocumentRegistryPrefix generates the prefix for scanning all document records.
func makeDocumentRegistryPrefix() []byte {
	return []byte(documentPrefix + ":")
}
