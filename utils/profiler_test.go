/*
 * Copyright 2018 The CovenantSQL Authors.
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

package utils

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestProfile(t *testing.T) {
	Convey("profiles are written on stop", t, func() {
		dir, err := ioutil.TempDir("", "profile")
		So(err, ShouldBeNil)
		defer os.RemoveAll(dir)

		cpuPath, memPath := filepath.Join(dir, "cpu"), filepath.Join(dir, "mem")
		p, err := StartProfile(cpuPath, memPath)
		So(err, ShouldBeNil)
		p.Stop()
		p.Stop()

		info, err := os.Stat(cpuPath)
		So(err, ShouldBeNil)
		So(info.Size(), ShouldBeGreaterThan, 0)
		info, err = os.Stat(memPath)
		So(err, ShouldBeNil)
		So(info.Size(), ShouldBeGreaterThan, 0)
	})
	Convey("empty paths disable profiling", t, func() {
		p, err := StartProfile("", "")
		So(err, ShouldBeNil)
		p.Stop()

		var none *Profile
		none.Stop()
	})
	Convey("unwritable paths fail", t, func() {
		_, err := StartProfile("/not/exist/path", "")
		So(err, ShouldNotBeNil)
		_, err = StartProfile("", "/not/exist/path")
		So(err, ShouldNotBeNil)
	})
}
