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

package log

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStandardLogger(t *testing.T) {
	Convey("log entries carry the caller", t, func() {
		var buf bytes.Buffer
		SetOutput(&buf)
		SetFormatter(&logrus.JSONFormatter{})
		SetLevel(DebugLevel)
		So(GetLevel(), ShouldEqual, DebugLevel)

		WithField("block", 1).Info("sealed")
		So(buf.String(), ShouldContainSubstring, `"block":1`)
		So(buf.String(), ShouldContainSubstring, "logwrapper_test.go")

		buf.Reset()
		WithError(errors.New("boom")).Error("failed")
		So(buf.String(), ShouldContainSubstring, "boom")
		So(buf.String(), ShouldContainSubstring, "stack")

		buf.Reset()
		WithFields(Fields{"a": 1, "b": 2}).Debugf("debug %d", 1)
		Infof("info %d", 2)
		Warnf("warn %d", 3)
		So(buf.String(), ShouldContainSubstring, "debug 1")
		So(buf.String(), ShouldContainSubstring, "warn 3")
	})
	Convey("string levels fall back to default", t, func() {
		SetStringLevel("warn", InfoLevel)
		So(GetLevel(), ShouldEqual, WarnLevel)
		SetStringLevel("not-a-level", InfoLevel)
		So(GetLevel(), ShouldEqual, InfoLevel)
		_, err := ParseLevel("nope")
		So(err, ShouldNotBeNil)
	})
	Convey("package names are extracted from function names", t, func() {
		So(pkgOf("crypto/acc.(*Setup).Accumulate"), ShouldEqual, "crypto/acc")
		So(pkgOf("metric.Register"), ShouldEqual, "metric")
		n := NilFormatter{}
		data, err := n.Format(&logrus.Entry{})
		So(data, ShouldBeNil)
		So(err, ShouldBeNil)
	})
}
