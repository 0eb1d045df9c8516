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

package index

import (
	"github.com/CovenantSQL/verichain/crypto/acc"
	"github.com/CovenantSQL/verichain/crypto/hash"
	"github.com/CovenantSQL/verichain/types"
)

// Reader loads the stored index and objects of sealed blocks.
type Reader interface {
	GetIndexNode(blockID uint64, node uint32) (*types.IndexNode, error)
	GetBlockData(blockID uint64) ([]*types.Object, error)
}

// Prover issues disjointness proofs of committed sets against clauses of
// the predicate being answered.
type Prover interface {
	Prove(clause int, set acc.Multiset, value []byte) (*types.AccRef, error)
}

// Result is the answer of one candidate block.
type Result struct {
	Root    *types.VONode
	Matches []*types.Object

	RangePruned   int
	KeywordPruned int
	Mismatches    int
}

type visit struct {
	id uint32
	vo *types.VONode
}

// Query answers pred against the index of block blockID. Nodes whose box
// misses the range are pruned by box, nodes whose keywords miss a keyword
// clause are pruned with a proof, and every entry of an expanded leaf is
// either a match or carries a proof of the first clause its object fails.
func Query(r Reader, blockID uint64, p *types.Parameter, pred *types.Predicate,
	prover Prover) (res *Result, err error) {
	var objs []*types.Object

	res = &Result{Root: &types.VONode{}}
	stack := []visit{{id: RootID, vo: res.Root}}

	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var n *types.IndexNode
		if n, err = r.GetIndexNode(blockID, v.id); err != nil {
			return nil, err
		}

		vo := v.vo
		vo.NodeKind = n.Kind
		vo.Box = n.Box

		if pred.RangeDisjoint(n.Box) {
			vo.Kind = types.VORangePruned
			vo.AccDigest = hash.THashH(n.Acc)
			vo.Count = n.Count()
			vo.ChildrenRoot = n.BelowRoot
			res.RangePruned++
			continue
		}
		if c := pred.FirstDisjointKeyword(n.Keywords); c >= 0 {
			vo.Kind = types.VOKeywordPruned
			if vo.Acc, err = prover.Prove(c, n.Keywords, n.Acc); err != nil {
				return nil, err
			}
			vo.Count = n.Count()
			vo.ChildrenRoot = n.BelowRoot
			res.KeywordPruned++
			continue
		}

		vo.AccDigest = hash.THashH(n.Acc)

		switch n.Kind {
		case types.InnerNode:
			vo.Kind = types.VOInner
			vo.Children = make([]*types.VONode, len(n.Children))
			for i := len(n.Children) - 1; i >= 0; i-- {
				vo.Children[i] = &types.VONode{}
				stack = append(stack, visit{id: n.Children[i], vo: vo.Children[i]})
			}
		case types.LeafNode:
			vo.Kind = types.VOLeaf
			if objs == nil && len(n.Entries) > 0 {
				if objs, err = r.GetBlockData(blockID); err != nil {
					return nil, err
				}
			}
			vo.Entries = make([]*types.VOEntry, len(n.Entries))
			for i, e := range n.Entries {
				if int(e.Seq) >= len(objs) {
					return nil, &types.StorageError{Op: "get", Key: "object", Err: types.ErrNotFound}
				}
				o := objs[e.Seq]
				if c := pred.FirstFailing(o); c >= 0 {
					ve := &types.VOEntry{Kind: types.EntryMismatch, ObjectDigest: e.ObjectDigest}
					if ve.Acc, err = prover.Prove(c, o.Elements(p), e.Acc); err != nil {
						return nil, err
					}
					vo.Entries[i] = ve
					res.Mismatches++
					continue
				}
				vo.Entries[i] = &types.VOEntry{
					Kind:      types.EntryMatch,
					Seq:       e.Seq,
					AccDigest: hash.THashH(e.Acc),
				}
				res.Matches = append(res.Matches, o)
			}
		}
	}
	return
}
