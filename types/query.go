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

package types

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/CovenantSQL/verichain/crypto/acc"
)

// Bound is the [lo, hi] range of one dimension, nil meaning unbounded.
// On the wire it is a two element array. A three element [lo, null, hi]
// array is also accepted and read as [lo, hi]; this is a compatibility
// reading for clients writing per-dimension triples, not a vector form
// where the range is [lo_vector, hi_vector] and null drops one dimension.
type Bound struct {
	Lo *uint64
	Hi *uint64
}

// NewBound returns the bound [lo, hi].
func NewBound(lo, hi uint64) Bound {
	return Bound{Lo: &lo, Hi: &hi}
}

// MarshalJSON implements the json.Marshaler interface.
func (b Bound) MarshalJSON() ([]byte, error) {
	return json.Marshal([]*uint64{b.Lo, b.Hi})
}

// UnmarshalJSON implements the json.Unmarshaler interface. Triples must
// have a null middle element.
func (b *Bound) UnmarshalJSON(data []byte) error {
	var parts []*uint64
	if err := json.Unmarshal(data, &parts); err != nil {
		return errors.Wrap(ErrInvalidRange, err.Error())
	}
	switch len(parts) {
	case 2:
		b.Lo, b.Hi = parts[0], parts[1]
	case 3:
		if parts[1] != nil {
			return errors.Wrap(ErrInvalidRange, "middle element of a triple must be null")
		}
		b.Lo, b.Hi = parts[0], parts[2]
	default:
		return errors.Wrapf(ErrInvalidRange, "bound has %d elements", len(parts))
	}
	return nil
}

// Query is a range + CNF keyword predicate over a block interval. An empty
// Range matches every v; an empty Bool matches every w.
type Query struct {
	StartBlock uint64     `json:"start_block"`
	EndBlock   uint64     `json:"end_block"`
	Range      []Bound    `json:"range"`
	Bool       [][]string `json:"bool"`
}

// ClauseKind tells range clauses from keyword clauses.
type ClauseKind uint8

const (
	// RangeClause requires v[Dim] to lie in [Lo, Hi].
	RangeClause ClauseKind = iota + 1
	// KeywordClause requires one of Keywords to be in w.
	KeywordClause
)

// Clause is one OR-clause of the compiled CNF. Set holds its elements:
// the prefix cover of the range or the keyword elements.
type Clause struct {
	Kind     ClauseKind
	Dim      int
	Lo, Hi   uint64
	Keywords []string
	Set      acc.Multiset
}

// Predicate is a query compiled against the chain parameter. Range clauses
// come first in dimension order, then keyword clauses in query order.
// Dimensions whose bound covers the whole domain have no clause.
type Predicate struct {
	Start, End uint64
	Lo, Hi     []uint64
	Clauses    []*Clause
}

// Compile validates q against p and builds its predicate.
func (q *Query) Compile(p *Parameter) (pred *Predicate, err error) {
	if q.StartBlock == 0 || q.StartBlock > q.EndBlock {
		return nil, NewQueryError(ErrInvalidBlockRange, "start %d end %d", q.StartBlock, q.EndBlock)
	}
	if len(q.Range) != 0 && len(q.Range) != p.Dims() {
		return nil, NewQueryError(ErrDimensionMismatch, "got %d range dimensions, want %d",
			len(q.Range), p.Dims())
	}

	pred = &Predicate{
		Start: q.StartBlock,
		End:   q.EndBlock,
		Lo:    make([]uint64, p.Dims()),
		Hi:    make([]uint64, p.Dims()),
	}
	for dim := 0; dim < p.Dims(); dim++ {
		pred.Hi[dim] = p.MaxValue(dim)
		if len(q.Range) == 0 {
			continue
		}
		b := q.Range[dim]
		if b.Lo != nil {
			pred.Lo[dim] = *b.Lo
		}
		if b.Hi != nil {
			if *b.Hi > p.MaxValue(dim) {
				return nil, NewQueryError(ErrValueOverflow, "dimension %d upper bound %d", dim, *b.Hi)
			}
			pred.Hi[dim] = *b.Hi
		}
		if pred.Lo[dim] > pred.Hi[dim] {
			return nil, NewQueryError(ErrInvalidRange, "dimension %d bound [%d, %d]",
				dim, pred.Lo[dim], pred.Hi[dim])
		}
		if cover := RangeCover(dim, p.BitLengths[dim], pred.Lo[dim], pred.Hi[dim]); cover != nil {
			pred.Clauses = append(pred.Clauses, &Clause{
				Kind: RangeClause,
				Dim:  dim,
				Lo:   pred.Lo[dim],
				Hi:   pred.Hi[dim],
				Set:  cover,
			})
		}
	}

	for i, or := range q.Bool {
		if len(or) == 0 {
			return nil, NewQueryError(ErrEmptyClause, "clause %d", i)
		}
		c := &Clause{Kind: KeywordClause, Set: acc.Multiset{}}
		for _, kw := range or {
			if kw == "" {
				return nil, NewQueryError(ErrEmptyKeyword, "clause %d", i)
			}
			if !c.Set.Contains(KeywordElement(kw)) {
				c.Keywords = append(c.Keywords, kw)
				c.Set.Add(KeywordElement(kw), 1)
			}
		}
		pred.Clauses = append(pred.Clauses, c)
	}
	return
}

// Satisfied reports whether o satisfies clause c.
func (c *Clause) Satisfied(o *Object) bool {
	switch c.Kind {
	case RangeClause:
		v := o.V[c.Dim]
		return c.Lo <= v && v <= c.Hi
	case KeywordClause:
		for _, kw := range c.Keywords {
			if o.HasKeyword(kw) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// FirstFailing returns the index of the first clause o violates, -1 when
// o matches the predicate.
func (p *Predicate) FirstFailing(o *Object) int {
	if len(o.V) != len(p.Lo) {
		return 0
	}
	for i, c := range p.Clauses {
		if !c.Satisfied(o) {
			return i
		}
	}
	return -1
}

// Matches reports whether o satisfies every clause.
func (p *Predicate) Matches(o *Object) bool {
	return len(o.V) == len(p.Lo) && p.FirstFailing(o) < 0
}

// RangeDisjoint reports whether no point of box lies in the query range.
func (p *Predicate) RangeDisjoint(box Box) bool {
	return len(box) != len(p.Lo) || box.Disjoint(p.Lo, p.Hi)
}

// FirstDisjointKeyword returns the index of the first keyword clause that
// shares no keyword with kws, -1 if every keyword clause intersects it.
func (p *Predicate) FirstDisjointKeyword(kws acc.Multiset) int {
	for i, c := range p.Clauses {
		if c.Kind == KeywordClause && !c.Set.Intersects(kws) {
			return i
		}
	}
	return -1
}

// IsKeywordClause reports whether i names a keyword clause.
func (p *Predicate) IsKeywordClause(i int) bool {
	return i >= 0 && i < len(p.Clauses) && p.Clauses[i].Kind == KeywordClause
}

// HasClause reports whether i names a clause.
func (p *Predicate) HasClause(i int) bool {
	return i >= 0 && i < len(p.Clauses)
}
