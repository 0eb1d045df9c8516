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

package verifier

import (
	"github.com/CovenantSQL/verichain/crypto/hash"
	"github.com/CovenantSQL/verichain/types"
)

// replayIndex rebuilds the index root digest of block id from its VO tree
// and returns it with the root accumulator digest. Matched entries are
// checked against the result set and every proven accumulator is queued
// for the pairing check.
func (s *session) replayIndex(id uint64, root *types.VONode) (digest, accDigest hash.Hash, f *failure) {
	// pre-order walk, digests computed in reverse so children come first
	var (
		order = []*types.VONode{root}
		dims  = s.param.Dims()
	)
	for i := 0; i < len(order); i++ {
		n := order[i]
		if n == nil {
			return digest, accDigest, inconsistent("block %d: nil index node", id)
		}
		if n.Kind == types.VOInner {
			order = append(order, n.Children...)
		}
	}

	digests := make(map[*types.VONode]hash.Hash, len(order))
	accDigests := make(map[*types.VONode]hash.Hash, len(order))

	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		if len(n.Box) != dims {
			return digest, accDigest, inconsistent("block %d: index node of %d dimensions", id, len(n.Box))
		}
		if n.NodeKind != types.InnerNode && n.NodeKind != types.LeafNode {
			return digest, accDigest, inconsistent("block %d: unknown index node kind %d", id, n.NodeKind)
		}

		var d, ad hash.Hash
		switch n.Kind {
		case types.VORangePruned:
			if !s.pred.RangeDisjoint(n.Box) {
				return digest, accDigest, inconsistent("block %d: range-pruned node overlaps the query range", id)
			}
			ad = n.AccDigest
			d = types.NodeDigestFromRoot(n.NodeKind, n.Box, ad, n.Count, n.ChildrenRoot)

		case types.VOKeywordPruned:
			if n.Acc == nil {
				return digest, accDigest, incomplete("block %d: keyword-pruned node carries no accumulator", id)
			}
			if !s.pred.IsKeywordClause(n.Acc.Clause) {
				return digest, accDigest, inconsistent("block %d: node pruned against clause %d", id, n.Acc.Clause)
			}
			if f = s.addAcc(n.Acc); f != nil {
				return
			}
			ad = hash.THashH(n.Acc.Acc)
			d = types.NodeDigestFromRoot(n.NodeKind, n.Box, ad, n.Count, n.ChildrenRoot)

		case types.VOInner:
			if n.NodeKind != types.InnerNode || len(n.Children) == 0 {
				return digest, accDigest, inconsistent("block %d: malformed inner node", id)
			}
			below := make([]hash.Hash, len(n.Children))
			for j, c := range n.Children {
				below[j] = digests[c]
			}
			ad = n.AccDigest
			d = types.NodeDigest(n.NodeKind, n.Box, ad, below)

		case types.VOLeaf:
			if n.NodeKind != types.LeafNode || len(n.Children) != 0 {
				return digest, accDigest, inconsistent("block %d: malformed leaf", id)
			}
			below := make([]hash.Hash, len(n.Entries))
			for j, e := range n.Entries {
				if below[j], f = s.replayEntry(id, e); f != nil {
					return
				}
			}
			ad = n.AccDigest
			d = types.NodeDigest(n.NodeKind, n.Box, ad, below)

		default:
			return digest, accDigest, inconsistent("block %d: unknown proof node kind %d", id, n.Kind)
		}
		digests[n] = d
		accDigests[n] = ad
	}

	return digests[root], accDigests[root], nil
}

func (s *session) replayEntry(id uint64, e *types.VOEntry) (digest hash.Hash, f *failure) {
	if e == nil {
		return digest, inconsistent("block %d: nil entry", id)
	}
	switch e.Kind {
	case types.EntryMatch:
		k := objKey{block: id, seq: e.Seq}
		o, ok := s.results[k]
		if !ok {
			return digest, incomplete("matching object %s missing from the result", k)
		}
		if s.referenced[k] {
			return digest, inconsistent("object %s referenced twice", k)
		}
		s.referenced[k] = true
		if !s.pred.Matches(o) {
			return digest, unsound("object %s does not satisfy the query", k)
		}
		return types.EntryDigest(o.Digest(), e.AccDigest), nil

	case types.EntryMismatch:
		if e.Acc == nil {
			return digest, incomplete("block %d: mismatch entry carries no accumulator", id)
		}
		if !s.pred.HasClause(e.Acc.Clause) {
			return digest, inconsistent("block %d: mismatch proven against clause %d", id, e.Acc.Clause)
		}
		if f = s.addAcc(e.Acc); f != nil {
			return
		}
		return types.EntryDigest(e.ObjectDigest, hash.THashH(e.Acc.Acc)), nil

	default:
		return digest, inconsistent("block %d: unknown entry kind %d", id, e.Kind)
	}
}
