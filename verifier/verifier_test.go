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
	"context"
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/mohae/deepcopy"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/CovenantSQL/verichain/chain"
	"github.com/CovenantSQL/verichain/crypto/acc"
	"github.com/CovenantSQL/verichain/crypto/asymmetric"
	"github.com/CovenantSQL/verichain/query"
	"github.com/CovenantSQL/verichain/types"
)

var pool = []string{"a", "b", "c", "d", "e", "f"}

func testParam(maxLevel uint8) *types.Parameter {
	return &types.Parameter{
		BitLengths:       []uint8{4, 4},
		SkipListMaxLevel: maxLevel,
		LeafCapacity:     2,
		IntraIndex:       true,
		AccSeed:          "verifier-test",
	}
}

func randomChain(cfg *chain.Config, blocks, perBlock int) *chain.Chain {
	c, err := chain.NewChain(cfg)
	So(err, ShouldBeNil)

	rng := rand.New(rand.NewSource(11))
	for id := uint64(1); id <= uint64(blocks); id++ {
		var raws []*types.RawObject
		for i := 0; i < perBlock; i++ {
			raws = append(raws, &types.RawObject{
				BlockID: id,
				V:       []uint64{uint64(rng.Intn(16)), uint64(rng.Intn(16))},
				W:       []string{pool[rng.Intn(len(pool))], pool[rng.Intn(len(pool))]},
			})
		}
		_, err = c.Append(id, raws)
		So(err, ShouldBeNil)
	}
	return c
}

func randomQuery(rng *rand.Rand, tip uint64) *types.Query {
	q := &types.Query{StartBlock: 1 + uint64(rng.Int63n(int64(tip)))}
	q.EndBlock = q.StartBlock + uint64(rng.Int63n(int64(tip-q.StartBlock+1)))
	if rng.Intn(3) > 0 {
		for dim := 0; dim < 2; dim++ {
			lo := uint64(rng.Intn(16))
			q.Range = append(q.Range, types.NewBound(lo, lo+uint64(rng.Intn(int(16-lo)))))
		}
	}
	for i := rng.Intn(3); i > 0; i-- {
		var or []string
		for j := 1 + rng.Intn(2); j > 0; j-- {
			or = append(or, pool[rng.Intn(len(pool))])
		}
		q.Bool = append(q.Bool, or)
	}
	return q
}

func execute(c *chain.Chain, q *types.Query) *types.Response {
	resp, err := query.Execute(context.Background(), c.Snapshot(), q)
	So(err, ShouldBeNil)
	return resp
}

func tampered(resp *types.Response) *types.Response {
	return deepcopy.Copy(resp).(*types.Response)
}

func TestVerify(t *testing.T) {
	Convey("honest responses pass", t, func() {
		for _, level := range []uint8{0, 3} {
			c := randomChain(&chain.Config{Param: testParam(level)}, 12, 6)
			v := New(c.Param(), c.Setup())

			rng := rand.New(rand.NewSource(int64(level) + 1))
			for i := 0; i < 30; i++ {
				q := randomQuery(rng, 12)
				resp := execute(c, q)
				o := v.Verify(c.Tip(), resp)
				So(o.String(), ShouldEqual, "Pass")
			}
			c.Close()
		}
	})
	Convey("boundary queries pass", t, func() {
		c := randomChain(&chain.Config{Param: testParam(2)}, 6, 4)
		defer c.Close()
		v := New(c.Param(), c.Setup())

		for _, q := range []*types.Query{
			{StartBlock: 3, EndBlock: 3},
			{StartBlock: 1, EndBlock: 6, Bool: [][]string{}},
			{StartBlock: 6, EndBlock: 6, Range: []types.Bound{{}, {}}},
			{StartBlock: 1, EndBlock: 1, Bool: [][]string{{"none"}}},
			{StartBlock: 2, EndBlock: 5, Range: []types.Bound{types.NewBound(15, 15), types.NewBound(0, 0)}},
		} {
			So(v.Verify(c.Tip(), execute(c, q)).Pass(), ShouldBeTrue)
		}
	})
	Convey("responses survive the json transport", t, func() {
		c := randomChain(&chain.Config{Param: testParam(3)}, 10, 4)
		defer c.Close()
		v := New(c.Param(), c.Setup())

		resp := execute(c, &types.Query{StartBlock: 2, EndBlock: 8,
			Range: []types.Bound{types.NewBound(0, 9), {}}, Bool: [][]string{{"a", "b"}}})
		data, err := json.Marshal(resp)
		So(err, ShouldBeNil)
		var decoded types.Response
		So(json.Unmarshal(data, &decoded), ShouldBeNil)
		So(v.Verify(c.Tip(), &decoded).Pass(), ShouldBeTrue)
	})
	Convey("tampered responses fail", t, func() {
		c := randomChain(&chain.Config{Param: testParam(3)}, 12, 6)
		defer c.Close()
		v := New(c.Param(), c.Setup())
		tip := c.Tip()

		resp := execute(c, &types.Query{StartBlock: 1, EndBlock: 12, Bool: [][]string{{"a"}}})
		So(resp.Result, ShouldNotBeEmpty)
		So(v.Verify(tip, resp).Pass(), ShouldBeTrue)

		Convey("object failing the predicate", func() {
			r := tampered(resp)
			r.Result[0].W = []string{"zz"}
			So(v.Verify(tip, r).Status, ShouldEqual, types.VerifyUnsound)
		})
		Convey("object with altered value", func() {
			r := tampered(resp)
			r.Result[0].V[0] ^= 1
			So(v.Verify(tip, r).Status, ShouldEqual, types.VerifyInconsistent)
		})
		Convey("fabricated object", func() {
			r := tampered(resp)
			r.Result = append(r.Result, &types.Object{BlockID: 3, Seq: 99, V: []uint64{1, 1}, W: []string{"a"}})
			So(v.Verify(tip, r).Status, ShouldEqual, types.VerifyUnsound)
		})
		Convey("duplicated object", func() {
			r := tampered(resp)
			r.Result = append(r.Result, r.Result[0])
			So(v.Verify(tip, r).Status, ShouldEqual, types.VerifyInconsistent)
		})
		Convey("dropped object", func() {
			r := tampered(resp)
			r.Result = r.Result[1:]
			So(v.Verify(tip, r).Status, ShouldEqual, types.VerifyIncomplete)
		})
		Convey("dropped block", func() {
			r := tampered(resp)
			r.VO.Blocks = r.VO.Blocks[:len(r.VO.Blocks)-1]
			So(v.Verify(tip, r).Status, ShouldEqual, types.VerifyIncomplete)
		})
		Convey("extra block", func() {
			r := tampered(resp)
			r.VO.Blocks = append(r.VO.Blocks, r.VO.Blocks[len(r.VO.Blocks)-1])
			So(v.Verify(tip, r).Status, ShouldEqual, types.VerifyInconsistent)
		})
		Convey("altered header", func() {
			r := tampered(resp)
			r.VO.Blocks[1].Header.IndexRoot[0] ^= 1
			So(v.Verify(tip, r).Status, ShouldEqual, types.VerifyInconsistent)
		})
		Convey("rehashed historical header", func() {
			r := tampered(resp)
			So(len(r.VO.Blocks), ShouldBeGreaterThan, 1)
			h := &r.VO.Blocks[1].Header
			h.IndexRoot[0] ^= 1
			So(h.SetDigest(), ShouldBeNil)
			So(h.VerifyDigest(), ShouldBeNil)

			o := v.Verify(tip, r)
			So(o.Status, ShouldEqual, types.VerifyInconsistent)
			So(o.Detail, ShouldContainSubstring, "does not chain to the trusted tip")
		})
		Convey("untrusted tip", func() {
			other := tip
			other.Digest[0] ^= 1
			So(v.Verify(other, resp).Status, ShouldEqual, types.VerifyInconsistent)

			r := tampered(resp)
			r.Tip = other
			So(v.Verify(other, r).Status, ShouldEqual, types.VerifyInconsistent)
		})
		Convey("dropped proof", func() {
			r := tampered(resp)
			So(r.VO.Proofs, ShouldNotBeEmpty)
			r.VO.Proofs = r.VO.Proofs[1:]
			So(v.Verify(tip, r).Status, ShouldEqual, types.VerifyIncomplete)
		})
		Convey("forged proof", func() {
			r := tampered(resp)
			p, err := acc.PointFromBytes(r.VO.Proofs[0].Proof)
			So(err, ShouldBeNil)
			r.VO.Proofs[0].Proof = p.Add(p).Bytes()
			So(v.Verify(tip, r).Status, ShouldEqual, types.VerifyInconsistent)

			r.VO.Proofs[0].Proof = []byte{1, 2, 3}
			So(v.Verify(tip, r).Status, ShouldEqual, types.VerifyInconsistent)
		})
		Convey("different query", func() {
			r := tampered(resp)
			r.Query.Bool = [][]string{{"b"}}
			So(v.Verify(tip, r).Pass(), ShouldBeFalse)

			r.Query.StartBlock = 0
			So(v.Verify(tip, r).Status, ShouldEqual, types.VerifyInconsistent)
		})
		Convey("missing parts", func() {
			r := tampered(resp)
			r.VO = nil
			So(v.Verify(tip, r).Status, ShouldEqual, types.VerifyIncomplete)
			So(v.Verify(tip, nil).Status, ShouldEqual, types.VerifyIncomplete)
		})
	})
	Convey("skip jumps are checked", t, func() {
		c, err := chain.NewChain(&chain.Config{Param: testParam(3)})
		So(err, ShouldBeNil)
		defer c.Close()
		for id := uint64(1); id <= 16; id++ {
			w := []string{"a"}
			if id == 1 {
				w = append(w, "x")
			}
			_, err = c.Append(id, []*types.RawObject{
				{BlockID: id, V: []uint64{1, 1}, W: w},
				{BlockID: id, V: []uint64{9, 9}, W: []string{"b"}},
			})
			So(err, ShouldBeNil)
		}
		v := New(c.Param(), c.Setup())
		tip := c.Tip()

		resp := execute(c, &types.Query{StartBlock: 1, EndBlock: 16, Bool: [][]string{{"x"}}})
		So(resp.Stats.NumJumps, ShouldBeGreaterThan, 0)
		So(v.Verify(tip, resp).Pass(), ShouldBeTrue)

		r := tampered(resp)
		r.VO.Blocks[0].Jump = nil
		So(v.Verify(tip, r).Status, ShouldEqual, types.VerifyIncomplete)

		r = tampered(resp)
		r.VO.Blocks[0].Jump.Clause = 3
		So(v.Verify(tip, r).Status, ShouldEqual, types.VerifyInconsistent)

		r = tampered(resp)
		r.VO.Blocks[0].Via = 2
		So(v.Verify(tip, r).Status, ShouldEqual, types.VerifyInconsistent)

		// a jump over the only matching block
		r = tampered(resp)
		last := r.VO.Blocks[len(r.VO.Blocks)-2]
		So(last.Role, ShouldEqual, types.Candidate)
		last.Role = types.Jumped
		last.Via = 1
		last.Jump = r.VO.Blocks[0].Jump
		r.VO.Blocks = r.VO.Blocks[:len(r.VO.Blocks)-1]
		r.Result = nil
		So(v.Verify(tip, r).Pass(), ShouldBeFalse)
	})
	Convey("signed tips are checked", t, func() {
		priv, pub, err := asymmetric.GenSecp256k1KeyPair()
		So(err, ShouldBeNil)
		_, other, err := asymmetric.GenSecp256k1KeyPair()
		So(err, ShouldBeNil)

		c := randomChain(&chain.Config{Param: testParam(2), Signer: priv}, 4, 3)
		defer c.Close()
		v := New(c.Param(), c.Setup())

		resp := execute(c, &types.Query{StartBlock: 1, EndBlock: 3})
		So(resp.SignedTip, ShouldNotBeNil)
		So(v.VerifySigned(pub, resp).Pass(), ShouldBeTrue)
		So(v.VerifySigned(other, resp).Status, ShouldEqual, types.VerifyInconsistent)

		r := tampered(resp)
		r.SignedTip = nil
		So(v.VerifySigned(pub, r).Status, ShouldEqual, types.VerifyIncomplete)

		vr := v.Check(c.Tip(), resp)
		So(vr.Pass, ShouldBeTrue)
		So(vr.Detail, ShouldBeNil)
		vr = v.Check(types.TipRef{}, resp)
		So(vr.Pass, ShouldBeFalse)
		So(*vr.Detail, ShouldStartWith, "Inconsistent")
	})
	Convey("two block example", t, func() {
		p := &types.Parameter{
			BitLengths:       []uint8{3, 3},
			SkipListMaxLevel: 2,
			LeafCapacity:     1,
			IntraIndex:       true,
			AccSeed:          "verifier-example",
		}
		c, err := chain.NewChain(&chain.Config{Param: p})
		So(err, ShouldBeNil)
		defer c.Close()
		_, err = c.Append(1, []*types.RawObject{
			{BlockID: 1, V: []uint64{1, 2}, W: []string{"a", "b", "c"}},
			{BlockID: 1, V: []uint64{1, 5}, W: []string{"a"}},
		})
		So(err, ShouldBeNil)
		_, err = c.Append(2, []*types.RawObject{
			{BlockID: 2, V: []uint64{3, 4}, W: []string{"a", "e"}},
		})
		So(err, ShouldBeNil)
		v := New(c.Param(), c.Setup())

		var q types.Query
		So(json.Unmarshal([]byte(`{"start_block":1,"end_block":2,
			"range":[[1,null,2],[3,null,4]],"bool":[["a"],["b","c"]]}`), &q), ShouldBeNil)
		resp := execute(c, &q)
		So(resp.Result, ShouldBeEmpty)
		So(v.Verify(c.Tip(), resp).Pass(), ShouldBeTrue)

		So(json.Unmarshal([]byte(`{"start_block":1,"end_block":2,
			"range":[[1,3],[2,4]],"bool":[["a"],["b","c"]]}`), &q), ShouldBeNil)
		resp = execute(c, &q)
		So(resp.Result, ShouldHaveLength, 1)
		So(resp.Result[0].V, ShouldResemble, []uint64{1, 2})
		So(v.Verify(c.Tip(), resp).Pass(), ShouldBeTrue)
	})
}
