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
	"fmt"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/newsrag/core"
)

// CollectionInfo is the persisted description of a collection.
type CollectionInfo struct {
	Dimension int
	Metric    Metric
}

// pointMUS encodes a core.Point as
// varint(id) | varint(len) | raw float32 * len | string title | string link | string content.
type pointMUS struct{}

func (pointMUS) Size(p core.Point) (size int) {
	size = varint.Uint64.Size(uint64(p.ID))
	size += varint.Uint64.Size(uint64(len(p.Vector)))
	for _, f := range p.Vector {
		size += raw.Float32.Size(f)
	}
	size += ord.String.Size(p.Payload.Title)
	size += ord.String.Size(p.Payload.Link)
	size += ord.String.Size(p.Payload.Content)
	return
}

func (pointMUS) Marshal(p core.Point, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(p.ID), bs)
	n += varint.Uint64.Marshal(uint64(len(p.Vector)), bs[n:])
	for _, f := range p.Vector {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	n += ord.String.Marshal(p.Payload.Title, bs[n:])
	n += ord.String.Marshal(p.Payload.Link, bs[n:])
	n += ord.String.Marshal(p.Payload.Content, bs[n:])
	return
}

func (pointMUS) Unmarshal(bs []byte) (p core.Point, n int, err error) {
	id, n1, err := varint.Uint64.Unmarshal(bs)
	n += n1
	if err != nil {
		return
	}
	p.ID = core.ID(id)

	length, n1, err := varint.Uint64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	// Each float32 takes four bytes, so a longer length cannot be satisfied.
	if length > uint64(len(bs)-n)/4 {
		err = ErrTruncatedData
		return
	}
	p.Vector = make([]float32, length)
	for i := range p.Vector {
		p.Vector[i], n1, err = raw.Float32.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}

	for _, field := range []*string{&p.Payload.Title, &p.Payload.Link, &p.Payload.Content} {
		*field, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

// collectionMUS encodes a CollectionInfo as varint(dimension) | varint(metric).
type collectionMUS struct{}

func (collectionMUS) Size(c CollectionInfo) int {
	return varint.Uint64.Size(uint64(c.Dimension)) + varint.Uint64.Size(uint64(c.Metric))
}

func (collectionMUS) Marshal(c CollectionInfo, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(c.Dimension), bs)
	n += varint.Uint64.Marshal(uint64(c.Metric), bs[n:])
	return
}

func (collectionMUS) Unmarshal(bs []byte) (c CollectionInfo, n int, err error) {
	dim, n1, err := varint.Uint64.Unmarshal(bs)
	n += n1
	if err != nil {
		return
	}
	metric, n1, err := varint.Uint64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	c.Dimension = int(dim)
	c.Metric = Metric(metric)
	return
}

// MarshalPoint serializes a Point to bytes.
func MarshalPoint(p *core.Point) []byte {
	ser := pointMUS{}
	buf := make([]byte, ser.Size(*p))
	ser.Marshal(*p, buf)
	return buf
}

// UnmarshalPoint deserializes a Point from bytes.
func UnmarshalPoint(data []byte) (*core.Point, error) {
	p, _, err := pointMUS{}.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &p, nil
}

// MarshalCollectionInfo serializes a CollectionInfo to bytes.
func MarshalCollectionInfo(info CollectionInfo) []byte {
	ser := collectionMUS{}
	buf := make([]byte, ser.Size(info))
	ser.Marshal(info, buf)
	return buf
}

// UnmarshalCollectionInfo deserializes a CollectionInfo from bytes.
func UnmarshalCollectionInfo(data []byte) (CollectionInfo, error) {
	info, _, err := collectionMUS{}.Unmarshal(data)
	if err != nil {
		return CollectionInfo{}, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return info, nil
}
