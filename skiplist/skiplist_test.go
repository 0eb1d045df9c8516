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

package skiplist

import (
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/CovenantSQL/verichain/crypto/acc"
	"github.com/CovenantSQL/verichain/crypto/hash"
	"github.com/CovenantSQL/verichain/index"
	"github.com/CovenantSQL/verichain/types"
)

type memChain struct {
	headers map[uint64]*types.Header
	roots   map[uint64]*types.IndexNode
	skips   map[uint64]*types.SkipNode
}

func (c *memChain) GetBlockHeader(id uint64) (*types.Header, error) {
	if h, ok := c.headers[id]; ok {
		return h, nil
	}
	return nil, &types.StorageError{Op: "get", Key: fmt.Sprint(id), Err: types.ErrNotFound}
}

func (c *memChain) GetIndexNode(id uint64, node uint32) (*types.IndexNode, error) {
	if n, ok := c.roots[id]; ok && node == 0 {
		return n, nil
	}
	return nil, &types.StorageError{Op: "get", Key: fmt.Sprint(id), Err: types.ErrNotFound}
}

func (c *memChain) GetSkipNode(id uint64) (*types.SkipNode, error) {
	if n, ok := c.skips[id]; ok {
		return n, nil
	}
	return nil, &types.StorageError{Op: "get", Key: fmt.Sprint(id), Err: types.ErrNotFound}
}

func blockKeywords(id uint64) []string {
	w := []string{fmt.Sprintf("b%d", id)}
	if id%3 == 0 {
		w = append(w, "three")
	}
	return w
}

func buildChain(st *acc.Setup, p *types.Parameter, first, last uint64) *memChain {
	c := &memChain{
		headers: make(map[uint64]*types.Header),
		roots:   make(map[uint64]*types.IndexNode),
		skips:   make(map[uint64]*types.SkipNode),
	}
	var prev hash.Hash
	for id := first; id <= last; id++ {
		o, err := types.NewObject(&types.RawObject{BlockID: id, V: []uint64{id % 16}, W: blockKeywords(id)}, 0, p)
		if err != nil {
			panic(err)
		}
		blk, err := index.Build([]*types.Object{o}, p, st)
		if err != nil {
			panic(err)
		}
		node, ptrs, err := Build(c, first, id, p.SkipListMaxLevel, blk.Keywords(), blk.Acc)
		if err != nil {
			panic(err)
		}
		h := &types.Header{
			BlockID:    id,
			PrevDigest: prev,
			IndexRoot:  blk.RootDigest(),
			AccDigest:  blk.Acc.Digest(),
			Skips:      ptrs,
		}
		if err = h.SetDigest(); err != nil {
			panic(err)
		}
		c.headers[id] = h
		c.roots[id] = blk.Root()
		c.skips[id] = node
		prev = h.SelfDigest
	}
	return c
}

func TestSkipList(t *testing.T) {
	st, _ := acc.NewSetup("skiplist-test", 0)
	p := &types.Parameter{BitLengths: []uint8{4}, SkipListMaxLevel: 3, LeafCapacity: 1, AccSeed: "x"}

	Convey("pointer geometry", t, func() {
		for _, first := range []uint64{1, 5} {
			c := buildChain(st, p, first, first+12)
			for id := first; id <= first+12; id++ {
				h := c.headers[id]
				for level := uint8(1); level <= p.SkipListMaxLevel; level++ {
					ptr := h.Pointer(level)
					target := int64(id) - int64(Distance(level))
					if target < int64(first)-1 {
						So(ptr, ShouldBeNil)
						continue
					}
					So(ptr, ShouldNotBeNil)
					So(ptr.Target, ShouldEqual, uint64(target))
					if uint64(target) < first {
						So(ptr.TargetDigest.IsZero(), ShouldBeTrue)
					} else {
						So(ptr.TargetDigest, ShouldEqual, c.headers[uint64(target)].SelfDigest)
					}
				}
			}
		}
	})
	Convey("spans commit to every block they cover", t, func() {
		c := buildChain(st, p, 1, 12)
		for id := uint64(1); id <= 12; id++ {
			for _, lv := range c.skips[id].Levels {
				want := acc.Multiset{}
				for b := lv.Target + 1; b <= id; b++ {
					for _, w := range blockKeywords(b) {
						want.Add(types.KeywordElement(w), 1)
					}
				}
				So(lv.SpanKeywords, ShouldResemble, want)
				So(lv.SpanAcc, ShouldResemble, st.Accumulate(want).Bytes())
				So(c.headers[id].Pointer(lv.Level).SpanAccDigest, ShouldEqual, hash.THashH(lv.SpanAcc))
			}
		}
	})
	Convey("disabled skip list has no pointers", t, func() {
		flat := *p
		flat.SkipListMaxLevel = 0
		c := buildChain(st, &flat, 1, 4)
		So(c.headers[4].Skips, ShouldBeEmpty)
		So(c.skips[4].Levels, ShouldBeEmpty)
	})
	Convey("navigation", t, func() {
		c := buildChain(st, p, 1, 12)

		So(WaypointLevel(c.headers[12], 3), ShouldEqual, 3)
		So(WaypointLevel(c.headers[12], 9), ShouldEqual, 1)
		So(WaypointLevel(c.headers[12], 11), ShouldEqual, 0)

		pred, err := (&types.Query{StartBlock: 1, EndBlock: 12, Bool: [][]string{{"three"}}}).Compile(p)
		So(err, ShouldBeNil)
		// blocks 10 and 11 miss "three", 9 has it
		lv, clause := Jump(c.skips[11], 1, pred)
		So(lv, ShouldNotBeNil)
		So(lv.Level, ShouldEqual, 1)
		So(lv.Target, ShouldEqual, 9)
		So(clause, ShouldEqual, 0)

		lv, _ = Jump(c.skips[12], 1, pred)
		So(lv, ShouldBeNil)

		// spans may not leave [start, id]
		pred, _ = (&types.Query{StartBlock: 11, EndBlock: 11, Bool: [][]string{{"b4"}}}).Compile(p)
		lv, _ = Jump(c.skips[11], 11, pred)
		So(lv, ShouldBeNil)
		pred, _ = (&types.Query{StartBlock: 4, EndBlock: 11, Bool: [][]string{{"b3"}}}).Compile(p)
		lv, _ = Jump(c.skips[11], 4, pred)
		So(lv, ShouldNotBeNil)
		So(lv.Level, ShouldEqual, 3)
		So(lv.Target, ShouldEqual, 3)
	})
}
