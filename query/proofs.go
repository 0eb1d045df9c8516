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

package query

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/CovenantSQL/verichain/crypto/acc"
	"github.com/CovenantSQL/verichain/types"
)

// proofSet issues disjointness proofs and sums them per clause.
type proofSet struct {
	setup *acc.Setup
	pred  *types.Predicate
	sums  map[int]acc.Point
	count int
}

func newProofSet(setup *acc.Setup, pred *types.Predicate) *proofSet {
	return &proofSet{setup: setup, pred: pred, sums: make(map[int]acc.Point)}
}

// Prove implements index.Prover.
func (p *proofSet) Prove(clause int, set acc.Multiset, value []byte) (*types.AccRef, error) {
	if !p.pred.HasClause(clause) {
		return nil, errors.Errorf("clause %d out of range", clause)
	}
	proof, err := p.setup.ProveDisjoint(set, p.pred.Clauses[clause].Set)
	if err != nil {
		return nil, errors.Wrapf(err, "prove clause %d", clause)
	}
	p.sums[clause] = p.sums[clause].Add(proof)
	p.count++
	return &types.AccRef{Clause: clause, Acc: value}, nil
}

// clauseProofs returns the summed proofs ordered by clause.
func (p *proofSet) clauseProofs() (proofs []*types.ClauseProof) {
	for clause, sum := range p.sums {
		proofs = append(proofs, &types.ClauseProof{Clause: clause, Proof: sum.Bytes()})
	}
	sort.Slice(proofs, func(i, j int) bool { return proofs[i].Clause < proofs[j].Clause })
	return
}
