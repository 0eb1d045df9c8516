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

package timer

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestTimer(t *testing.T) {
	Convey("test timer", t, func() {
		t := NewTimer()
		So(t.ToMap(), ShouldBeEmpty)

		time.Sleep(time.Millisecond * 20)
		t.Add("walk")
		time.Sleep(time.Millisecond * 30)
		t.Add("prove")
		time.Sleep(time.Millisecond * 10)
		t.Add("walk")

		m := t.ToMap()
		So(m, ShouldHaveLength, 3)
		So(m["walk"], ShouldBeGreaterThanOrEqualTo, time.Millisecond*30)
		So(m["prove"], ShouldBeGreaterThanOrEqualTo, time.Millisecond*30)
		So(m["total"], ShouldBeGreaterThanOrEqualTo, time.Millisecond*60)
		So(m["total"], ShouldEqual, m["walk"]+m["prove"])
		So(t.ElapsedMillis(), ShouldBeGreaterThanOrEqualTo, 60)

		f := t.ToLogFields()
		So(f, ShouldHaveLength, 3)
		So(f["total"], ShouldEqual, m["total"].String())
	})
}
