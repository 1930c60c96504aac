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


package storage

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/docbase/core"
)

// vectorSer serializes embedding vectors.
var vectorSer = ord.NewSliceSer[float32](raw.Float32)

// ChunkRecordMUS is the MUS serializer for core.ChunkRecord.
var ChunkRecordMUS = chunkRecordSer{}

// DocumentMUS is the MUS serializer for core.Document.
var DocumentMUS = documentSer{}

type chunkRecordSer struct{}

func (chunkRecordSer) Marshal(v core.ChunkRecord, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(v.Id), bs)
	n += ord.String.Marshal(v.DocumentId, bs[n:])
	n += ord.String.Marshal(v.Filename, bs[n:])
	n += ord.String.Marshal(v.Area, bs[n:])
	n += varint.Int.Marshal(v.Version, bs[n:])
	n += varint.Int.Marshal(v.Seq, bs[n:])
	n += varint.Int.Marshal(v.Page, bs[n:])
	n += ord.String.Marshal(v.Text, bs[n:])
	n += vectorSer.Marshal(v.Vector, bs[n:])
	return n
}

func (chunkRecordSer) Unmarshal(bs []byte) (v core.ChunkRecord, n int, err error) {
	var (
		n1 int
		id uint64
	)
	id, n, err = varint.Uint64.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Id = core.ID(id)
	v.DocumentId, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Filename, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Area, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Version, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Seq, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Page, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Text, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Vector, n1, err = vectorSer.Unmarshal(bs[n:])
	n += n1
	return
}

func (chunkRecordSer) Size(v core.ChunkRecord) (size int) {
	size = varint.Uint64.Size(uint64(v.Id))
	size += ord.String.Size(v.DocumentId)
	size += ord.String.Size(v.Filename)
	size += ord.String.Size(v.Area)
	size += varint.Int.Size(v.Version)
	size += varint.Int.Size(v.Seq)
	size += varint.Int.Size(v.Page)
	size += ord.String.Size(v.Text)
	size += vectorSer.Size(v.Vector)
	return size
}

type documentSer struct{}

func (documentSer) Marshal(v core.Document, bs []byte) (n int) {
	n = ord.String.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Filename, bs[n:])
	n += ord.String.Marshal(v.Area, bs[n:])
	n += varint.Int.Marshal(v.Version, bs[n:])
	n += varint.Int64.Marshal(v.UploadedAt.UnixMicro(), bs[n:])
	n += ord.String.Marshal(v.StoragePath, bs[n:])
	n += ord.Bool.Marshal(v.Deleted, bs[n:])
	return n
}

func (documentSer) Unmarshal(bs []byte) (v core.Document, n int, err error) {
	var (
		n1    int
		micro int64
	)
	v.Id, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Filename, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Area, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Version, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	micro, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UploadedAt = time.UnixMicro(micro).UTC()
	v.StoragePath, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Deleted, n1, err = ord.Bool.Unmarshal(bs[n:])
	n += n1
	return
}

func (documentSer) Size(v core.Document) (size int) {
	size = ord.String.Size(v.Id)
	size += ord.String.Size(v.Filename)
	size += ord.String.Size(v.Area)
	size += varint.Int.Size(v.Version)
	size += varint.Int64.Size(v.UploadedAt.UnixMicro())
	size += ord.String.Size(v.StoragePath)
	size += ord.Bool.Size(v.Deleted)
	return size
}

// MarshalChunkRecord serializes a ChunkRecord to bytes.
func MarshalChunkRecord(record *core.ChunkRecord) []byte {
	buf := make([]byte, ChunkRecordMUS.Size(*record))
	ChunkRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalChunkRecord deserializes a ChunkRecord from bytes.
func UnmarshalChunkRecord(data []byte) (*core.ChunkRecord, error) {
	record, _, err := ChunkRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) []byte {
	buf := make([]byte, DocumentMUS.Size(*doc))
	DocumentMUS.Marshal(*doc, buf)
	return buf
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	doc, _, err := DocumentMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
