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

// Package index builds and queries the authenticated intra-block index.
//
// The index is a k-d partition of the fixed key space of the chain. A cell
// holding more than LeafCapacity objects is split at the midpoint of its
// widest dimension, the lowest dimension winning ties, and empty halves
// are dropped. A cell becomes a leaf once it is small enough or shrinks to
// a single point. The split rule depends only on the parameter and the
// objects, so every build of the same block yields the same digests.
//
// Every node commits to its box, to the accumulator of the keywords below
// it and to the merkle root of the digests of its children (or of its leaf
// entries). Leaf entries bind an object digest to the accumulator of the
// full element set of the object, its keywords plus the prefixes of v.
package index

import (
	"github.com/pkg/errors"

	"github.com/CovenantSQL/verichain/crypto/acc"
	"github.com/CovenantSQL/verichain/crypto/hash"
	"github.com/CovenantSQL/verichain/merkle"
	"github.com/CovenantSQL/verichain/types"
)

// RootID is the arena id of the root node.
const RootID uint32 = 0

// Block is the sealed index of one block.
type Block struct {
	// Nodes is the node arena, indexed by node id.
	Nodes []*types.IndexNode
	// Acc is the accumulator of the block keywords.
	Acc acc.Point
}

// Root returns the root node.
func (b *Block) Root() *types.IndexNode {
	return b.Nodes[RootID]
}

// Keywords returns the keyword multiset of the whole block.
func (b *Block) Keywords() acc.Multiset {
	return b.Root().Keywords
}

// RootDigest returns the digest the block header commits to.
func (b *Block) RootDigest() hash.Hash {
	return b.Root().Digest
}

type cell struct {
	id   uint32
	box  types.Box
	objs []int
}

// Build indexes objs, which must be the objects of one block in sequence
// order.
func Build(objs []*types.Object, p *types.Parameter, st *acc.Setup) (b *Block, err error) {
	for i, o := range objs {
		if o.Seq != uint32(i) {
			return nil, errors.Wrapf(types.ErrInvalidParameter, "object %d has sequence %d", i, o.Seq)
		}
		if len(o.V) != p.Dims() {
			return nil, &types.BuildError{BlockID: o.BlockID, Err: types.ErrDimensionMismatch}
		}
	}

	entries := make([]*types.Entry, len(objs))
	for i, o := range objs {
		entries[i] = &types.Entry{
			Seq:          o.Seq,
			ObjectDigest: o.Digest(),
			Acc:          st.Accumulate(o.Elements(p)).Bytes(),
		}
	}

	all := make([]int, len(objs))
	for i := range all {
		all[i] = i
	}

	b = &Block{}
	b.Nodes = append(b.Nodes, &types.IndexNode{ID: RootID})
	stack := []cell{{id: RootID, box: p.Domain(), objs: all}}

	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := b.Nodes[c.id]
		n.Box = c.box

		if !p.IntraIndex || uint32(len(c.objs)) <= p.LeafCapacity || c.box.IsPoint() {
			n.Kind = types.LeafNode
			n.Entries = make([]*types.Entry, 0, len(c.objs))
			for _, i := range c.objs {
				n.Entries = append(n.Entries, entries[i])
			}
			continue
		}

		n.Kind = types.InnerNode
		left, right, leftBox, rightBox := split(objs, c)
		for _, half := range []cell{{box: leftBox, objs: left}, {box: rightBox, objs: right}} {
			if len(half.objs) == 0 {
				continue
			}
			half.id = uint32(len(b.Nodes))
			b.Nodes = append(b.Nodes, &types.IndexNode{ID: half.id})
			n.Children = append(n.Children, half.id)
			stack = append(stack, half)
		}
	}

	// children always follow their parent in the arena
	for i := len(b.Nodes) - 1; i >= 0; i-- {
		n := b.Nodes[i]
		var (
			below []hash.Hash
			point acc.Point
		)
		n.Keywords = acc.Multiset{}
		switch n.Kind {
		case types.LeafNode:
			below = make([]hash.Hash, len(n.Entries))
			for j, e := range n.Entries {
				below[j] = e.Digest()
				n.Keywords.Merge(objs[e.Seq].Keywords())
			}
			point = st.Accumulate(n.Keywords)
		case types.InnerNode:
			below = make([]hash.Hash, len(n.Children))
			points := make([]acc.Point, len(n.Children))
			for j, id := range n.Children {
				child := b.Nodes[id]
				below[j] = child.Digest
				n.Keywords.Merge(child.Keywords)
				if points[j], err = acc.PointFromBytes(child.Acc); err != nil {
					return nil, err
				}
			}
			point = acc.Sum(points...)
		}
		n.Acc = point.Bytes()
		n.BelowRoot = merkle.Root(below)
		n.Digest = types.NodeDigestFromRoot(n.Kind, n.Box, point.Digest(), uint32(len(below)), n.BelowRoot)
	}

	b.Acc, err = acc.PointFromBytes(b.Root().Acc)
	return
}

// split halves the box of c at the midpoint of its widest dimension and
// partitions the objects of c accordingly.
func split(objs []*types.Object, c cell) (left, right []int, leftBox, rightBox types.Box) {
	dim := 0
	for d := 1; d < len(c.box); d++ {
		if c.box[d].Hi-c.box[d].Lo > c.box[dim].Hi-c.box[dim].Lo {
			dim = d
		}
	}
	iv := c.box[dim]
	mid := iv.Lo + (iv.Hi-iv.Lo)/2

	leftBox, rightBox = c.box.Clone(), c.box.Clone()
	leftBox[dim].Hi = mid
	rightBox[dim].Lo = mid + 1

	for _, i := range c.objs {
		if objs[i].V[dim] <= mid {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return
}
