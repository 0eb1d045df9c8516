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

// Package timer provides a stage stopwatch used to report query, verify
// and build timings.
package timer

import (
	"sync"
	"time"

	"github.com/CovenantSQL/verichain/utils/log"
)

// Timer defines a stop watch timer for performance analysis.
type Timer struct {
	sync.Mutex
	start  time.Time
	names  []string
	pivots []time.Time
}

// NewTimer returns a new stop watch timer instance.
func NewTimer() *Timer {
	return &Timer{
		start: time.Now(),
	}
}

// Add records a time pivot named after the stage that just finished.
func (t *Timer) Add(name string) {
	t.Lock()
	defer t.Unlock()

	t.names = append(t.names, name)
	t.pivots = append(t.pivots, time.Now())
}

// Elapsed returns the duration since the timer was created.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// ElapsedMillis returns Elapsed in whole milliseconds.
func (t *Timer) ElapsedMillis() uint64 {
	return uint64(t.Elapsed() / time.Millisecond)
}

// ToLogFields returns stage durations as log fields.
func (t *Timer) ToLogFields() log.Fields {
	f := log.Fields{}
	for k, v := range t.ToMap() {
		f[k] = v.String()
	}
	return f
}

// ToMap returns stage durations plus the "total" up to the last pivot.
func (t *Timer) ToMap() map[string]time.Duration {
	t.Lock()
	defer t.Unlock()

	lp := len(t.pivots)
	m := make(map[string]time.Duration, 1+lp)
	last := t.start

	for i := 0; i != lp; i++ {
		m[t.names[i]] += t.pivots[i].Sub(last)
		last = t.pivots[i]
	}
	if lp > 0 {
		m["total"] = last.Sub(t.start)
	}

	return m
}
