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
	"sort"
)

// Element is the canonical string form of a set element. Callers are
// responsible for domain separation between element kinds.
type Element string

// Multiset maps elements to their multiplicity.
type Multiset map[Element]uint32

// NewMultiset returns a multiset holding each element once per occurrence.
func NewMultiset(elems ...Element) Multiset {
	m := make(Multiset, len(elems))
	for _, e := range elems {
		m[e]++
	}
	return m
}

// Add adds n occurrences of e.
func (m Multiset) Add(e Element, n uint32) {
	if n == 0 {
		return
	}
	m[e] += n
}

// Merge adds every occurrence of o into m.
func (m Multiset) Merge(o Multiset) {
	for e, n := range o {
		m[e] += n
	}
}

// Clone returns a copy of m.
func (m Multiset) Clone() Multiset {
	c := make(Multiset, len(m))
	for e, n := range m {
		c[e] = n
	}
	return c
}

// Contains reports whether e occurs at least once.
func (m Multiset) Contains(e Element) bool {
	return m[e] > 0
}

// Intersects reports whether m and o share an element.
func (m Multiset) Intersects(o Multiset) bool {
	small, large := m, o
	if len(small) > len(large) {
		small, large = large, small
	}
	for e, n := range small {
		if n > 0 && large[e] > 0 {
			return true
		}
	}
	return false
}

// Elements returns the distinct elements of m in ascending order.
func (m Multiset) Elements() []Element {
	res := make([]Element, 0, len(m))
	for e, n := range m {
		if n > 0 {
			res = append(res, e)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}
