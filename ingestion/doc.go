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


// Package ingestion turns uploaded documents into indexed, searchable
// chunks. A pipeline run extracts text, splits it into overlapping chunks,
// embeds them in batches on a worker pool, and upserts the results into the
// vector index under a fresh document version.
//
// A run is all-or-nothing per document version: any failure rolls back the
// chunks already written for that version, so the index never holds a
// partially ingested document. Re-ingesting identical content is idempotent
// because chunk IDs derive from (document, version, position).
package ingestion
