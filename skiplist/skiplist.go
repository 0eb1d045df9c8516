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

// Package skiplist builds and navigates the deterministic skip list over
// block headers.
//
// The level L pointer of block i targets block i-2^L and commits to the
// accumulator of the keywords of every block in the span (i-2^L, i]. A
// pointer exists iff its target is not below first-1, the virtual genesis
// block whose digest is zero. Level 0 is the prev pointer of the header
// and has no skip record.
//
// Span records are built by doubling:
//
//   span(i, L) = span(i, L-1) + span(i-2^(L-1), L-1)
//
// where span(i, 0) is the keyword multiset of block i.
package skiplist

import (
	"github.com/pkg/errors"

	"github.com/CovenantSQL/verichain/crypto/acc"
	"github.com/CovenantSQL/verichain/crypto/hash"
	"github.com/CovenantSQL/verichain/types"
)

// Reader loads the records of sealed blocks.
type Reader interface {
	GetBlockHeader(id uint64) (*types.Header, error)
	GetIndexNode(blockID uint64, node uint32) (*types.IndexNode, error)
	GetSkipNode(id uint64) (*types.SkipNode, error)
}

// Distance returns the number of blocks a level L pointer spans.
func Distance(level uint8) uint64 {
	return uint64(1) << level
}

// Target returns the id a level L pointer of block id points to, and
// whether such a pointer exists in a chain starting at first.
func Target(id, first uint64, level uint8) (target uint64, ok bool) {
	if level >= 64 || id < Distance(level) {
		return 0, false
	}
	target = id - Distance(level)
	return target, target+1 >= first
}

// Build returns the skip record and header pointers of block id, given the
// keyword multiset and accumulator of its index root. Every earlier block
// of the chain must be sealed.
func Build(r Reader, first, id uint64, maxLevel uint8, kws acc.Multiset,
	value acc.Point) (node *types.SkipNode, ptrs []types.SkipPointer, err error) {
	node = &types.SkipNode{BlockID: id}

	var (
		prevKws   = kws
		prevValue = value
	)
	for level := uint8(1); level <= maxLevel; level++ {
		target, ok := Target(id, first, level)
		if !ok {
			break
		}

		// the second half of the span, (target, id-2^(L-1)]
		mid := id - Distance(level-1)
		var (
			halfKws   acc.Multiset
			halfValue acc.Point
		)
		if level == 1 {
			var root *types.IndexNode
			if root, err = r.GetIndexNode(mid, 0); err != nil {
				return nil, nil, errors.Wrapf(err, "load index root of block %d", mid)
			}
			halfKws = root.Keywords
			if halfValue, err = acc.PointFromBytes(root.Acc); err != nil {
				return nil, nil, err
			}
		} else {
			var sk *types.SkipNode
			if sk, err = r.GetSkipNode(mid); err != nil {
				return nil, nil, errors.Wrapf(err, "load skip node of block %d", mid)
			}
			half := sk.Level(level - 1)
			if half == nil {
				return nil, nil, errors.Wrapf(types.ErrNotFound, "level %d of block %d", level-1, mid)
			}
			halfKws = half.SpanKeywords
			if halfValue, err = acc.PointFromBytes(half.SpanAcc); err != nil {
				return nil, nil, err
			}
		}

		spanKws := prevKws.Clone()
		spanKws.Merge(halfKws)
		spanValue := prevValue.Add(halfValue)

		var targetDigest hash.Hash
		if target >= first {
			var h *types.Header
			if h, err = r.GetBlockHeader(target); err != nil {
				return nil, nil, errors.Wrapf(err, "load header of block %d", target)
			}
			targetDigest = h.SelfDigest
		}

		node.Levels = append(node.Levels, &types.SkipLevel{
			Level:        level,
			Target:       target,
			TargetDigest: targetDigest,
			SpanKeywords: spanKws,
			SpanAcc:      spanValue.Bytes(),
		})
		ptrs = append(ptrs, types.SkipPointer{
			Level:         level,
			Target:        target,
			TargetDigest:  targetDigest,
			SpanAccDigest: spanValue.Digest(),
		})

		prevKws, prevValue = spanKws, spanValue
	}
	return
}

// WaypointLevel returns the level to follow from header h, which lies
// above end: the highest pointer that does not overshoot end, or 0 for
// the prev pointer.
func WaypointLevel(h *types.Header, end uint64) uint8 {
	best := uint8(0)
	for i := range h.Skips {
		p := &h.Skips[i]
		if p.Target >= end && p.Level > best {
			best = p.Level
		}
	}
	return best
}

// Jump returns the highest level of node whose span stays inside
// [start, node.BlockID] and misses a keyword clause of pred, with the index
// of that clause. It returns nil when no span can be skipped.
func Jump(node *types.SkipNode, start uint64, pred *types.Predicate) (level *types.SkipLevel, clause int) {
	for i := len(node.Levels) - 1; i >= 0; i-- {
		lv := node.Levels[i]
		if lv.Target+1 < start {
			continue
		}
		if c := pred.FirstDisjointKeyword(lv.SpanKeywords); c >= 0 {
			return lv, c
		}
	}
	return nil, -1
}
