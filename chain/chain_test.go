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

package chain

import (
	"io/ioutil"
	"os"
	"sync"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/CovenantSQL/verichain/crypto/asymmetric"
	"github.com/CovenantSQL/verichain/types"
)

func testParam() *types.Parameter {
	return &types.Parameter{
		BitLengths:       []uint8{4, 4},
		SkipListMaxLevel: 2,
		LeafCapacity:     2,
		IntraIndex:       true,
		AccSeed:          "chain-test",
	}
}

func raws(id uint64, n int) (r []*types.RawObject) {
	for i := 0; i < n; i++ {
		r = append(r, &types.RawObject{
			BlockID: id,
			V:       []uint64{uint64(i) % 16, id % 16},
			W:       []string{"a", string(rune('b' + i%3))},
			Line:    i + 1,
		})
	}
	return
}

func TestChain(t *testing.T) {
	Convey("blocks chain through their headers", t, func() {
		c, err := NewChain(&Config{Param: testParam()})
		So(err, ShouldBeNil)
		defer c.Close()

		So(c.Tip().BlockID, ShouldEqual, 0)
		So(c.Snapshot().Empty(), ShouldBeTrue)

		h1, err := c.Append(1, raws(1, 5))
		So(err, ShouldBeNil)
		So(h1.PrevDigest.IsZero(), ShouldBeTrue)
		So(h1.VerifyDigest(), ShouldBeNil)

		snap := c.Snapshot()

		h2, err := c.Append(2, raws(2, 3))
		So(err, ShouldBeNil)
		So(h2.PrevDigest, ShouldEqual, h1.SelfDigest)
		So(h2.Pointer(1).Target, ShouldEqual, 0)
		So(c.Tip(), ShouldResemble, types.TipRef{BlockID: 2, Digest: h2.SelfDigest})

		So(snap.Tip.BlockID, ShouldEqual, 1)
		So(snap.Contains(2), ShouldBeFalse)
		_, err = snap.GetBlockHeader(2)
		So(errors.Cause(err), ShouldEqual, types.ErrNotFound)
		h, err := snap.GetBlockHeader(1)
		So(err, ShouldBeNil)
		So(h.SelfDigest, ShouldEqual, h1.SelfDigest)

		objs, err := c.Snapshot().GetBlockData(1)
		So(err, ShouldBeNil)
		So(objs, ShouldHaveLength, 5)
		So(objs[4].Seq, ShouldEqual, 4)
		o, err := c.Snapshot().GetObject(2, 1)
		So(err, ShouldBeNil)
		So(o.BlockID, ShouldEqual, 2)
		root, err := c.Snapshot().GetIndexNode(2, 0)
		So(err, ShouldBeNil)
		So(root.Digest, ShouldEqual, h2.IndexRoot)
		sk, err := c.Snapshot().GetSkipNode(2)
		So(err, ShouldBeNil)
		So(sk.Level(1), ShouldNotBeNil)
	})
	Convey("block order and builder states", t, func() {
		c, err := NewChain(&Config{Param: testParam()})
		So(err, ShouldBeNil)
		defer c.Close()

		_, err = c.NewBlock(0)
		So(types.IsBuildError(err), ShouldBeTrue)

		_, err = c.Append(7, raws(7, 1))
		So(err, ShouldBeNil)
		So(c.Snapshot().First, ShouldEqual, 7)

		_, err = c.NewBlock(9)
		So(types.IsBuildError(err), ShouldBeTrue)
		So(errors.Cause(err), ShouldEqual, types.ErrBlockOrder)

		b, err := c.NewBlock(8)
		So(err, ShouldBeNil)
		err = b.Add(&types.RawObject{BlockID: 8, V: []uint64{1}, Line: 3})
		So(types.IsBuildError(err), ShouldBeTrue)
		So(errors.Cause(err), ShouldEqual, types.ErrDimensionMismatch)
		err = b.Add(&types.RawObject{BlockID: 9, V: []uint64{1, 1}})
		So(errors.Cause(err), ShouldEqual, types.ErrBlockOrder)
		b.Discard()
		So(b.Add(raws(8, 1)[0]), ShouldEqual, ErrBuilderSealed)
		So(c.Tip().BlockID, ShouldEqual, 7)

		b, err = c.NewBlock(8)
		So(err, ShouldBeNil)
		So(b.Add(raws(8, 1)[0]), ShouldBeNil)
		So(b.Len(), ShouldEqual, 1)
		_, err = b.Seal()
		So(err, ShouldBeNil)
		_, err = b.Seal()
		So(err, ShouldEqual, ErrBuilderSealed)
		b.Discard()

		_, err = c.Append(9, nil)
		So(err, ShouldBeNil)
		So(c.Tip().BlockID, ShouldEqual, 9)

		_, err = c.Append(10, []*types.RawObject{{BlockID: 10, V: []uint64{99, 0}}})
		So(errors.Cause(err), ShouldEqual, types.ErrValueOverflow)
		So(c.Tip().BlockID, ShouldEqual, 9)
	})
	Convey("chains persist and reopen", t, func() {
		dir, err := ioutil.TempDir("", "verichain-chain")
		So(err, ShouldBeNil)
		defer os.RemoveAll(dir)

		_, err = NewChain(&Config{DataDir: dir})
		So(err, ShouldEqual, ErrNoParameter)

		bad := testParam()
		bad.BitLengths = nil
		_, err = NewChain(&Config{DataDir: dir, Param: bad})
		So(errors.Cause(err), ShouldEqual, types.ErrInvalidParameter)

		priv, pub, err := asymmetric.GenSecp256k1KeyPair()
		So(err, ShouldBeNil)

		c, err := NewChain(&Config{DataDir: dir, Param: testParam(), Signer: priv})
		So(err, ShouldBeNil)
		for id := uint64(1); id <= 4; id++ {
			_, err = c.Append(id, raws(id, 3))
			So(err, ShouldBeNil)
		}
		tip := c.Tip()
		st := c.Snapshot().SignedTip
		So(st, ShouldNotBeNil)
		So(st.Tip, ShouldResemble, tip)
		So(st.Verify(pub), ShouldBeNil)
		So(c.Close(), ShouldBeNil)

		other := testParam()
		other.AccSeed = "other"
		_, err = NewChain(&Config{DataDir: dir, Param: other})
		So(errors.Cause(err), ShouldEqual, ErrParameterMismatch)

		c, err = NewChain(&Config{DataDir: dir, Signer: priv})
		So(err, ShouldBeNil)
		defer c.Close()
		So(c.Tip(), ShouldResemble, tip)
		So(c.Param().AccSeed, ShouldEqual, "chain-test")
		So(c.Snapshot().SignedTip.Verify(pub), ShouldBeNil)

		h5, err := c.Append(5, raws(5, 2))
		So(err, ShouldBeNil)
		So(h5.PrevDigest, ShouldEqual, tip.Digest)
		So(h5.Pointer(2).Target, ShouldEqual, 1)
	})
	Convey("readers run alongside the writer", t, func() {
		c, err := NewChain(&Config{Param: testParam()})
		So(err, ShouldBeNil)
		defer c.Close()

		var (
			wg     sync.WaitGroup
			stop   = make(chan struct{})
			failed int32
			mu     sync.Mutex
		)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					snap := c.Snapshot()
					if snap.Empty() {
						continue
					}
					h, err := snap.GetBlockHeader(snap.Tip.BlockID)
					if err != nil || h.SelfDigest != snap.Tip.Digest {
						mu.Lock()
						failed++
						mu.Unlock()
					}
				}
			}()
		}
		for id := uint64(1); id <= 10; id++ {
			_, err = c.Append(id, raws(id, 2))
			So(err, ShouldBeNil)
		}
		close(stop)
		wg.Wait()
		So(failed, ShouldEqual, 0)
	})
}
