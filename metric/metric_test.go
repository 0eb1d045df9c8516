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

package metric

import (
	"expvar"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetric(t *testing.T) {
	Convey("prometheus collectors count", t, func() {
		before := testutil.ToFloat64(Queries.WithLabelValues("ok"))
		Queries.WithLabelValues("ok").Inc()
		So(testutil.ToFloat64(Queries.WithLabelValues("ok")), ShouldEqual, before+1)

		ChainHeight.Set(42)
		So(testutil.ToFloat64(ChainHeight), ShouldEqual, 42)
	})
	Convey("expvar meters", t, func() {
		Add(ChainQueries, 1)
		Add("unknown:meter", 1)
		So(expvar.Get(ChainQueries).String(), ShouldNotBeEmpty)

		rec := httptest.NewRecorder()
		WebHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/metrics", nil))
		So(rec.Code, ShouldEqual, http.StatusOK)
		So(rec.Body.Len(), ShouldBeGreaterThan, 0)
	})
	Convey("runtime collector stops", t, func() {
		stop := make(chan struct{})
		StartRuntimeCollector(time.Millisecond, stop)
		time.Sleep(5 * time.Millisecond)
		close(stop)
	})
}
