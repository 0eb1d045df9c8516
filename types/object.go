/*
 * Copyright 2019 The CovenantSQL Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

import (
	"sort"
	"strconv"

	hsp "github.com/CovenantSQL/HashStablePack/marshalhash"
	"github.com/pkg/errors"

	"github.com/CovenantSQL/verichain/crypto/acc"
	"github.com/CovenantSQL/verichain/crypto/hash"
)

// RawObject is an object as read from input, before validation.
type RawObject struct {
	BlockID uint64
	V       []uint64
	W       []string
	Line    int
}

// Object is an immutable record of a sealed block. (BlockID, Seq) is its
// identity; Seq is the position of the object in the block input.
type Object struct {
	BlockID uint64   `json:"block_id"`
	Seq     uint32   `json:"seq"`
	V       []uint64 `json:"v"`
	W       []string `json:"w"`
}

// NewObject validates raw against p and returns the object with W sorted
// and deduplicated.
func NewObject(raw *RawObject, seq uint32, p *Parameter) (*Object, error) {
	fail := func(err error) error {
		return &BuildError{Line: raw.Line, BlockID: raw.BlockID, Err: err}
	}

	if len(raw.V) != p.Dims() {
		return nil, fail(errors.Wrapf(ErrDimensionMismatch, "got %d dimensions, want %d",
			len(raw.V), p.Dims()))
	}
	for i, v := range raw.V {
		if v > p.MaxValue(i) {
			return nil, fail(errors.Wrapf(ErrValueOverflow, "dimension %d value %d exceeds %d bits",
				i, v, p.BitLengths[i]))
		}
	}

	w := make([]string, 0, len(raw.W))
	for _, kw := range raw.W {
		if kw == "" {
			return nil, fail(ErrEmptyKeyword)
		}
		w = append(w, kw)
	}
	sort.Strings(w)
	dedup := w[:0]
	for i, kw := range w {
		if i == 0 || kw != w[i-1] {
			dedup = append(dedup, kw)
		}
	}

	return &Object{
		BlockID: raw.BlockID,
		Seq:     seq,
		V:       append([]uint64(nil), raw.V...),
		W:       dedup,
	}, nil
}

// MarshalHash marshals for hash.
func (z *Object) MarshalHash() (o []byte, err error) {
	var b []byte
	o = hsp.Require(b, z.Msgsize())
	// map header, size 4
	o = append(o, 0x84)
	o = hsp.AppendUint64(o, z.BlockID)
	o = hsp.AppendUint32(o, z.Seq)
	o = hsp.AppendArrayHeader(o, uint32(len(z.V)))
	for _, v := range z.V {
		o = hsp.AppendUint64(o, v)
	}
	o = hsp.AppendArrayHeader(o, uint32(len(z.W)))
	for _, w := range z.W {
		o = hsp.AppendString(o, w)
	}
	return
}

// Msgsize returns an upper bound estimate of the number of bytes occupied by the serialized message.
func (z *Object) Msgsize() (s int) {
	s = 1 + hsp.Uint64Size + hsp.Uint32Size + hsp.ArrayHeaderSize + len(z.V)*hsp.Uint64Size +
		hsp.ArrayHeaderSize
	for _, w := range z.W {
		s += hsp.StringPrefixSize + len(w)
	}
	return
}

// Digest returns the leaf digest of the object.
func (z *Object) Digest() hash.Hash {
	// the encoding of plain integers and strings never fails
	b, _ := z.MarshalHash()
	return hash.THashH(b)
}

// Keywords returns the keyword elements of the object.
func (z *Object) Keywords() acc.Multiset {
	m := make(acc.Multiset, len(z.W))
	for _, w := range z.W {
		m.Add(KeywordElement(w), 1)
	}
	return m
}

// Elements returns the keyword elements plus every prefix element of v,
// the set an object accumulator commits to.
func (z *Object) Elements(p *Parameter) acc.Multiset {
	m := z.Keywords()
	for dim, v := range z.V {
		bits := p.BitLengths[dim]
		for depth := uint8(1); depth <= bits; depth++ {
			m.Add(PrefixElement(dim, depth, v>>(bits-depth)), 1)
		}
	}
	return m
}

// HasKeyword reports whether w contains kw.
func (z *Object) HasKeyword(kw string) bool {
	i := sort.SearchStrings(z.W, kw)
	return i < len(z.W) && z.W[i] == kw
}

// ID returns the "block/seq" identity string.
func (z *Object) ID() string {
	return strconv.FormatUint(z.BlockID, 10) + "/" + strconv.FormatUint(uint64(z.Seq), 10)
}

// KeywordElement maps a keyword to its accumulator element.
func KeywordElement(w string) acc.Element {
	return acc.Element("w:" + w)
}

// PrefixElement maps the top depth bits of a dimension value to its
// accumulator element.
func PrefixElement(dim int, depth uint8, prefix uint64) acc.Element {
	b := make([]byte, 0, 32)
	b = append(b, "v:"...)
	b = strconv.AppendInt(b, int64(dim), 10)
	b = append(b, ':')
	b = strconv.AppendUint(b, uint64(depth), 10)
	b = append(b, ':')
	b = strconv.AppendUint(b, prefix, 10)
	return acc.Element(b)
}

// RangeCover returns the prefix elements whose value blocks exactly tile
// [lo, hi] in a dimension of the given bit length. It returns nil when the
// range is the whole domain.
func RangeCover(dim int, bits uint8, lo, hi uint64) acc.Multiset {
	type prefix struct {
		depth uint8
		value uint64
	}

	cover := acc.Multiset{}
	stack := []prefix{{0, 0}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		shift := bits - cur.depth
		blockLo := cur.value << shift
		blockHi := blockLo + (uint64(1) << shift) - 1
		if blockHi < lo || blockLo > hi {
			continue
		}
		if lo <= blockLo && blockHi <= hi {
			if cur.depth == 0 {
				return nil
			}
			cover.Add(PrefixElement(dim, cur.depth, cur.value), 1)
			continue
		}
		stack = append(stack,
			prefix{cur.depth + 1, cur.value<<1 | 1},
			prefix{cur.depth + 1, cur.value << 1})
	}
	return cover
}
