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

package acc

import (
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMultiset(t *testing.T) {
	Convey("multiset bookkeeping", t, func() {
		m := NewMultiset("a", "b", "a")
		So(m["a"], ShouldEqual, 2)
		So(m.Contains("b"), ShouldBeTrue)
		So(m.Contains("c"), ShouldBeFalse)

		o := NewMultiset("c")
		So(m.Intersects(o), ShouldBeFalse)
		c := m.Clone()
		c.Merge(o)
		c.Add("d", 0)
		So(c.Elements(), ShouldResemble, []Element{"a", "b", "c"})
		So(m.Elements(), ShouldResemble, []Element{"a", "b"})
		So(c.Intersects(o), ShouldBeTrue)
	})
}

func TestAccumulator(t *testing.T) {
	st, err := NewSetup("test-seed", 128)
	if err != nil {
		t.Fatal(err)
	}

	Convey("setup requires a seed", t, func() {
		_, err := NewSetup("", 0)
		So(errors.Cause(err), ShouldEqual, ErrEmptySeed)
	})
	Convey("accumulators are deterministic and additive", t, func() {
		other, err := NewSetup("test-seed", 0)
		So(err, ShouldBeNil)
		x := NewMultiset("a", "b")
		y := NewMultiset("b", "c")

		So(st.Accumulate(x).Equal(other.Accumulate(x)), ShouldBeTrue)

		union := x.Clone()
		union.Merge(y)
		So(st.Accumulate(union).Equal(st.Accumulate(x).Add(st.Accumulate(y))), ShouldBeTrue)
		So(st.Accumulate(union).Equal(Sum(st.Accumulate(x), st.Accumulate(y))), ShouldBeTrue)
		So(st.Accumulate(NewMultiset()).IsZero(), ShouldBeTrue)

		diff, err := NewSetup("other-seed", 0)
		So(err, ShouldBeNil)
		So(diff.Accumulate(x).Equal(st.Accumulate(x)), ShouldBeFalse)
	})
	Convey("disjointness proofs verify", t, func() {
		x := NewMultiset("a", "b", "b")
		y := NewMultiset("c", "d")
		p, err := st.ProveDisjoint(x, y)
		So(err, ShouldBeNil)

		ok, err := st.VerifyDisjoint(st.Accumulate(x), y, p)
		So(err, ShouldBeNil)
		So(ok, ShouldBeTrue)

		// wrong clause
		ok, err = st.VerifyDisjoint(st.Accumulate(x), NewMultiset("c"), p)
		So(err, ShouldBeNil)
		So(ok, ShouldBeFalse)

		// wrong accumulator
		ok, err = st.VerifyDisjoint(st.Accumulate(NewMultiset("a")), y, p)
		So(err, ShouldBeNil)
		So(ok, ShouldBeFalse)

		_, err = st.ProveDisjoint(x, NewMultiset("b"))
		So(err, ShouldEqual, ErrNotDisjoint)
	})
	Convey("proofs aggregate per clause", t, func() {
		y := NewMultiset("k1", "k2")
		x1 := NewMultiset("a")
		x2 := NewMultiset("b", "c")
		p1, err := st.ProveDisjoint(x1, y)
		So(err, ShouldBeNil)
		p2, err := st.ProveDisjoint(x2, y)
		So(err, ShouldBeNil)

		ok, err := st.VerifyDisjoint(st.Accumulate(x1).Add(st.Accumulate(x2)), y, p1.Add(p2))
		So(err, ShouldBeNil)
		So(ok, ShouldBeTrue)

		ok, err = st.VerifyDisjoint(st.Accumulate(x1).Add(st.Accumulate(x2)), y, p1)
		So(err, ShouldBeNil)
		So(ok, ShouldBeFalse)
	})
	Convey("points encode and decode", t, func() {
		p := st.Accumulate(NewMultiset("a"))
		b := p.Bytes()
		So(b, ShouldHaveLength, PointSize)

		q, err := PointFromBytes(b)
		So(err, ShouldBeNil)
		So(q.Equal(p), ShouldBeTrue)
		So(q.Digest(), ShouldEqual, p.Digest())

		zero, err := PointFromBytes(Point{}.Bytes())
		So(err, ShouldBeNil)
		So(zero.IsZero(), ShouldBeTrue)

		_, err = PointFromBytes(b[1:])
		So(errors.Cause(err), ShouldEqual, ErrInvalidPoint)
	})
}
