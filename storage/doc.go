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


// Package storage provides the storage abstraction layer for docbase.
//
// This package defines the interfaces that decouple the vector index and
// the document metadata store from business logic, so different backends
// (BadgerDB, in-memory) can be used interchangeably.
//
// # Constructor Return Type Pattern
//
// Public constructors in backend packages return the storage interfaces to
// enforce abstraction and enable alternative backends:
//
//	index, err := badger.NewIndex(path)  // returns storage.VectorIndex
//
// # Architecture
//
//   - VectorIndex: collection-partitioned persistent store of chunk
//     records with cosine-similarity queries
//   - DocumentRepository: document and version metadata
//
// # Thread Safety
//
// All implementations must be thread-safe. Concurrent upserts into the
// same collection must not corrupt existing entries; writes are
// last-writer-wins per chunk ID.
//
// # Context Support
//
// All methods accept context.Context for cancellation and timeout support.
package storage
