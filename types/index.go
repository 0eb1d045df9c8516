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
	hsp "github.com/CovenantSQL/HashStablePack/marshalhash"

	"github.com/CovenantSQL/verichain/crypto/acc"
	"github.com/CovenantSQL/verichain/crypto/hash"
	"github.com/CovenantSQL/verichain/merkle"
)

// Interval is a closed range [Lo, Hi] of one dimension.
type Interval struct {
	Lo uint64 `json:"lo"`
	Hi uint64 `json:"hi"`
}

// Box is a per-dimension bounding box.
type Box []Interval

// Contains reports whether v lies in the box.
func (b Box) Contains(v []uint64) bool {
	if len(v) != len(b) {
		return false
	}
	for i, iv := range b {
		if v[i] < iv.Lo || v[i] > iv.Hi {
			return false
		}
	}
	return true
}

// Disjoint reports whether the box shares no point with [lo, hi].
func (b Box) Disjoint(lo, hi []uint64) bool {
	for i, iv := range b {
		if iv.Hi < lo[i] || iv.Lo > hi[i] {
			return true
		}
	}
	return false
}

// IsPoint reports whether every interval holds a single value.
func (b Box) IsPoint() bool {
	for _, iv := range b {
		if iv.Lo != iv.Hi {
			return false
		}
	}
	return true
}

// Clone returns a copy of b.
func (b Box) Clone() Box {
	return append(Box(nil), b...)
}

// NodeKind tells inner index nodes from leaves.
type NodeKind uint8

const (
	// InnerNode partitions its box among children.
	InnerNode NodeKind = iota + 1
	// LeafNode holds object entries.
	LeafNode
)

func (k NodeKind) String() string {
	switch k {
	case InnerNode:
		return "Inner"
	case LeafNode:
		return "Leaf"
	default:
		return "Unknown"
	}
}

// Entry is an object slot of a leaf. Acc commits to the object elements.
type Entry struct {
	Seq          uint32    `json:"seq"`
	ObjectDigest hash.Hash `json:"object_digest"`
	Acc          []byte    `json:"acc"`
}

// Digest returns the entry digest committed by its leaf.
func (e *Entry) Digest() hash.Hash {
	return EntryDigest(e.ObjectDigest, hash.THashH(e.Acc))
}

// EntryDigest binds an object digest to the digest of its accumulator.
func EntryDigest(objectDigest, accDigest hash.Hash) hash.Hash {
	return hash.THashHs(objectDigest[:], accDigest[:])
}

// IndexNode is a stored node of the intra-block index. Keywords is the
// multiset union of the keywords of every object below the node and Acc
// its accumulator. BelowRoot is the merkle root of the child digests of an
// inner node or the entry digests of a leaf.
type IndexNode struct {
	ID        uint32       `json:"id"`
	Kind      NodeKind     `json:"kind"`
	Box       Box          `json:"box"`
	Keywords  acc.Multiset `json:"keywords"`
	Acc       []byte       `json:"acc"`
	Children  []uint32     `json:"children,omitempty"`
	Entries   []*Entry     `json:"entries,omitempty"`
	BelowRoot hash.Hash    `json:"below_root"`
	Digest    hash.Hash    `json:"digest"`
}

// Count returns the number of children or entries of the node.
func (n *IndexNode) Count() uint32 {
	if n.Kind == LeafNode {
		return uint32(len(n.Entries))
	}
	return uint32(len(n.Children))
}

// NodeDigest computes the digest of an index node from its kind, box,
// keyword accumulator digest and the ordered digests below it (children
// of an inner node, entries of a leaf).
func NodeDigest(kind NodeKind, box Box, accDigest hash.Hash, below []hash.Hash) hash.Hash {
	return NodeDigestFromRoot(kind, box, accDigest, uint32(len(below)), merkle.Root(below))
}

// NodeDigestFromRoot is NodeDigest given the count and merkle root of the
// digests below the node, which is all a pruned node reveals.
func NodeDigestFromRoot(kind NodeKind, box Box, accDigest hash.Hash, count uint32, root hash.Hash) hash.Hash {
	o := hsp.Require(nil, 8+hsp.ArrayHeaderSize+len(box)*2*hsp.Uint64Size+2*hsp.BytesPrefixSize+
		2*hash.HashSize+hsp.Uint32Size)
	o = hsp.AppendUint64(o, uint64(kind))
	o = hsp.AppendArrayHeader(o, uint32(len(box)))
	for _, iv := range box {
		o = hsp.AppendUint64(o, iv.Lo)
		o = hsp.AppendUint64(o, iv.Hi)
	}
	o = hsp.AppendBytes(o, accDigest[:])
	o = hsp.AppendUint32(o, count)
	o = hsp.AppendBytes(o, root[:])
	return hash.THashH(o)
}
