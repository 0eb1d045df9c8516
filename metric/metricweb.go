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

package metric

import (
	"expvar"
	"net/http"
	"runtime"
	"time"

	mw "github.com/zserge/metric"

	"github.com/CovenantSQL/verichain/utils/log"
)

const mb = 1024 * 1024

// Names of the expvar meters.
const (
	GoNumGoroutine = "go:numgoroutine"
	GoAlloc        = "go:alloc"
	GoAllocTotal   = "go:alloctotal"
	ChainQueries   = "chain:queries"
	ChainQueryMS   = "chain:query_ms"
	ChainVerifies  = "chain:verifies"
	ChainVOBytes   = "chain:vo_bytes"
)

func init() {
	expvar.Publish(GoNumGoroutine, mw.NewGauge("1m1s", "5m5s", "1h1m"))
	expvar.Publish(GoAlloc, mw.NewGauge("1m1s", "5m5s", "1h1m"))
	expvar.Publish(GoAllocTotal, mw.NewGauge("1m1s", "5m5s", "1h1m"))
	expvar.Publish(ChainQueries, mw.NewCounter("1m1s", "5m5s", "1h1m"))
	expvar.Publish(ChainQueryMS, mw.NewHistogram("1m1s", "5m5s", "1h1m"))
	expvar.Publish(ChainVerifies, mw.NewCounter("1m1s", "5m5s", "1h1m"))
	expvar.Publish(ChainVOBytes, mw.NewHistogram("1m1s", "5m5s", "1h1m"))
}

// Add feeds n to the expvar meter name.
func Add(name string, n float64) {
	if v, ok := expvar.Get(name).(mw.Metric); ok {
		v.Add(n)
	}
}

// WebHandler returns the /debug/metrics dashboard handler.
func WebHandler() http.Handler {
	return mw.Handler(mw.Exposed)
}

// StartRuntimeCollector samples go runtime meters every interval until
// stop is closed.
func StartRuntimeCollector(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				log.Debug("runtime collector stopped")
				return
			case <-ticker.C:
				m := &runtime.MemStats{}
				runtime.ReadMemStats(m)
				Add(GoNumGoroutine, float64(runtime.NumGoroutine()))
				Add(GoAlloc, float64(m.Alloc)/mb)
				Add(GoAllocTotal, float64(m.TotalAlloc)/mb)
			}
		}
	}()
}
