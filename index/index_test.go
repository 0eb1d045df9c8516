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
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/CovenantSQL/verichain/crypto/acc"
	"github.com/CovenantSQL/verichain/crypto/hash"
	"github.com/CovenantSQL/verichain/merkle"
	"github.com/CovenantSQL/verichain/types"
)

type memReader struct {
	blk  *Block
	objs []*types.Object
}

func (r *memReader) GetIndexNode(blockID uint64, node uint32) (*types.IndexNode, error) {
	if int(node) >= len(r.blk.Nodes) {
		return nil, &types.StorageError{Op: "get", Key: fmt.Sprint(node), Err: types.ErrNotFound}
	}
	return r.blk.Nodes[node], nil
}

func (r *memReader) GetBlockData(blockID uint64) ([]*types.Object, error) {
	return r.objs, nil
}

type proofRecord struct {
	clause int
	set    acc.Multiset
	value  []byte
	proof  acc.Point
}

type testProver struct {
	st     *acc.Setup
	pred   *types.Predicate
	proofs []proofRecord
}

func (p *testProver) Prove(clause int, set acc.Multiset, value []byte) (*types.AccRef, error) {
	proof, err := p.st.ProveDisjoint(set, p.pred.Clauses[clause].Set)
	if err != nil {
		return nil, err
	}
	p.proofs = append(p.proofs, proofRecord{clause: clause, set: set, value: value, proof: proof})
	return &types.AccRef{Clause: clause, Acc: value}, nil
}

func testObjects(p *types.Parameter, raws ...*types.RawObject) (objs []*types.Object) {
	for i, raw := range raws {
		o, err := types.NewObject(raw, uint32(i), p)
		if err != nil {
			panic(err)
		}
		objs = append(objs, o)
	}
	return
}

func gridObjects(p *types.Parameter) []*types.Object {
	var raws []*types.RawObject
	for x := uint64(0); x < 16; x += 3 {
		for y := uint64(0); y < 16; y += 5 {
			w := []string{fmt.Sprintf("x%d", x%2)}
			if y%2 == 0 {
				w = append(w, "even")
			}
			raws = append(raws, &types.RawObject{BlockID: 1, V: []uint64{x, y}, W: w})
		}
	}
	return testObjects(p, raws...)
}

func collectVO(vo *types.VONode, f func(*types.VONode)) {
	stack := []*types.VONode{vo}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		f(n)
		stack = append(stack, n.Children...)
	}
}

func TestBuild(t *testing.T) {
	st, _ := acc.NewSetup("index-test", 0)
	p := &types.Parameter{
		BitLengths: []uint8{4, 4}, LeafCapacity: 2, IntraIndex: true, AccSeed: "index-test",
	}

	Convey("index partitions every object exactly once", t, func() {
		objs := gridObjects(p)
		blk, err := Build(objs, p, st)
		So(err, ShouldBeNil)
		So(blk.Root().Box, ShouldResemble, p.Domain())

		seen := make(map[uint32]int)
		for _, n := range blk.Nodes {
			switch n.Kind {
			case types.LeafNode:
				So(len(n.Entries) <= int(p.LeafCapacity) || n.Box.IsPoint(), ShouldBeTrue)
				for _, e := range n.Entries {
					seen[e.Seq]++
					So(n.Box.Contains(objs[e.Seq].V), ShouldBeTrue)
				}
			case types.InnerNode:
				So(n.Children, ShouldNotBeEmpty)
				for _, c := range n.Children {
					So(c, ShouldBeGreaterThan, n.ID)
				}
			}
		}
		So(seen, ShouldHaveLength, len(objs))
		for _, cnt := range seen {
			So(cnt, ShouldEqual, 1)
		}

		kws := acc.Multiset{}
		for _, o := range objs {
			kws.Merge(o.Keywords())
		}
		So(blk.Keywords(), ShouldResemble, kws)
		So(blk.Acc.Equal(st.Accumulate(kws)), ShouldBeTrue)
	})
	Convey("digests are reproducible and commit to children", t, func() {
		objs := gridObjects(p)
		b1, err := Build(objs, p, st)
		So(err, ShouldBeNil)
		b2, err := Build(gridObjects(p), p, st)
		So(err, ShouldBeNil)
		So(b1.RootDigest(), ShouldEqual, b2.RootDigest())

		for _, n := range b1.Nodes {
			var below []hash.Hash
			if n.Kind == types.LeafNode {
				for _, e := range n.Entries {
					below = append(below, e.Digest())
				}
			} else {
				for _, c := range n.Children {
					below = append(below, b1.Nodes[c].Digest)
				}
			}
			So(n.BelowRoot, ShouldEqual, merkle.Root(below))
			So(n.Digest, ShouldEqual, types.NodeDigest(n.Kind, n.Box, hash.THashH(n.Acc), below))
		}

		objs[3].W = append(objs[3].W, "zzz")
		b3, err := Build(objs, p, st)
		So(err, ShouldBeNil)
		So(b3.RootDigest(), ShouldNotEqual, b1.RootDigest())
	})
	Convey("flat blocks are one leaf", t, func() {
		flat := *p
		flat.IntraIndex = false
		blk, err := Build(gridObjects(&flat), &flat, st)
		So(err, ShouldBeNil)
		So(blk.Nodes, ShouldHaveLength, 1)
		So(blk.Root().Kind, ShouldEqual, types.LeafNode)
		So(blk.Root().Entries, ShouldHaveLength, len(gridObjects(&flat)))
	})
	Convey("empty blocks and co-located objects", t, func() {
		blk, err := Build(nil, p, st)
		So(err, ShouldBeNil)
		So(blk.Root().Kind, ShouldEqual, types.LeafNode)
		So(blk.Acc.IsZero(), ShouldBeTrue)

		var raws []*types.RawObject
		for i := 0; i < 5; i++ {
			raws = append(raws, &types.RawObject{BlockID: 1, V: []uint64{7, 7}, W: []string{"a"}})
		}
		blk, err = Build(testObjects(p, raws...), p, st)
		So(err, ShouldBeNil)
		leaves := 0
		for _, n := range blk.Nodes {
			if n.Kind == types.LeafNode {
				leaves++
				So(n.Entries, ShouldHaveLength, 5)
				So(n.Box.IsPoint(), ShouldBeTrue)
			}
		}
		So(leaves, ShouldEqual, 1)
	})
	Convey("objects out of sequence are rejected", t, func() {
		objs := gridObjects(p)
		objs[0], objs[1] = objs[1], objs[0]
		_, err := Build(objs, p, st)
		So(err, ShouldNotBeNil)
	})
}

func TestQuery(t *testing.T) {
	st, _ := acc.NewSetup("index-test", 0)
	p := &types.Parameter{
		BitLengths: []uint8{4, 4}, LeafCapacity: 2, IntraIndex: true, AccSeed: "index-test",
	}
	objs := gridObjects(p)
	blk, err := Build(objs, p, st)
	if err != nil {
		t.Fatal(err)
	}
	r := &memReader{blk: blk, objs: objs}

	run := func(q *types.Query) (*Result, *testProver, *types.Predicate) {
		pred, err := q.Compile(p)
		So(err, ShouldBeNil)
		prover := &testProver{st: st, pred: pred}
		res, err := Query(r, 1, p, pred, prover)
		So(err, ShouldBeNil)
		return res, prover, pred
	}

	Convey("query results are exactly the matching objects", t, func() {
		queries := []*types.Query{
			{StartBlock: 1, EndBlock: 1},
			{StartBlock: 1, EndBlock: 1, Range: []types.Bound{types.NewBound(2, 9), types.NewBound(0, 7)}},
			{StartBlock: 1, EndBlock: 1, Bool: [][]string{{"even"}}},
			{StartBlock: 1, EndBlock: 1, Range: []types.Bound{types.NewBound(3, 3), {}},
				Bool: [][]string{{"x1", "missing"}, {"even"}}},
			{StartBlock: 1, EndBlock: 1, Bool: [][]string{{"missing"}}},
		}
		for _, q := range queries {
			res, prover, pred := run(q)

			var want []uint32
			for _, o := range objs {
				if pred.Matches(o) {
					want = append(want, o.Seq)
				}
			}
			var got []uint32
			for _, o := range res.Matches {
				got = append(got, o.Seq)
			}
			So(got, ShouldHaveLength, len(want))
			for _, seq := range want {
				So(got, ShouldContain, seq)
			}

			for _, rec := range prover.proofs {
				value, err := acc.PointFromBytes(rec.value)
				So(err, ShouldBeNil)
				ok, err := st.VerifyDisjoint(value, pred.Clauses[rec.clause].Set, rec.proof)
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
			}
		}
	})
	Convey("a missing keyword prunes at the root", t, func() {
		res, prover, _ := run(&types.Query{StartBlock: 1, EndBlock: 1, Bool: [][]string{{"missing"}}})
		So(res.Root.Kind, ShouldEqual, types.VOKeywordPruned)
		So(res.Root.Acc.Clause, ShouldEqual, 0)
		So(res.Root.Count, ShouldEqual, blk.Root().Count())
		So(res.KeywordPruned, ShouldEqual, 1)
		So(prover.proofs, ShouldHaveLength, 1)
		So(res.Matches, ShouldBeEmpty)
	})
	Convey("narrow ranges prune boxes without revealing entries", t, func() {
		res, _, _ := run(&types.Query{StartBlock: 1, EndBlock: 1,
			Range: []types.Bound{types.NewBound(0, 0), types.NewBound(0, 0)}})
		So(res.RangePruned, ShouldBeGreaterThan, 0)
		So(res.Matches, ShouldHaveLength, 1)
		collectVO(res.Root, func(n *types.VONode) {
			if n.Kind == types.VORangePruned {
				So(n.Entries, ShouldBeEmpty)
				So(n.Children, ShouldBeEmpty)
				So(n.Box.Disjoint([]uint64{0, 0}, []uint64{0, 0}), ShouldBeTrue)
			}
		})
	})
	Convey("mismatching entries carry a proof on their first failing clause", t, func() {
		res, prover, pred := run(&types.Query{StartBlock: 1, EndBlock: 1,
			Bool: [][]string{{"x0"}}})
		So(res.Mismatches+len(res.Matches)+res.KeywordPruned, ShouldBeGreaterThan, 0)
		collectVO(res.Root, func(n *types.VONode) {
			for _, e := range n.Entries {
				if e.Kind == types.EntryMismatch {
					So(e.Acc, ShouldNotBeNil)
					So(pred.IsKeywordClause(e.Acc.Clause), ShouldBeTrue)
				}
			}
		})
		So(len(prover.proofs), ShouldEqual, res.Mismatches+res.KeywordPruned)
	})
}
