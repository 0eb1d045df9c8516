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

// Package verifier checks a query response against a trusted chain tip.
//
// Verification needs only the public chain parameter, the public
// accumulator setup and the trusted tip digest. It replays the header walk
// from the tip down to start_block, rebuilds every intra-block index root
// from the verification object, and checks the summed disjointness proofs
// of each clause with one pairing equation.
package verifier

import (
	"fmt"

	"github.com/CovenantSQL/verichain/crypto/acc"
	"github.com/CovenantSQL/verichain/crypto/asymmetric"
	"github.com/CovenantSQL/verichain/crypto/hash"
	"github.com/CovenantSQL/verichain/types"
)

// Verifier checks responses of one chain.
type Verifier struct {
	param *types.Parameter
	setup *acc.Setup
}

// New returns a verifier of the chain with parameter param.
func New(param *types.Parameter, setup *acc.Setup) *Verifier {
	return &Verifier{param: param, setup: setup}
}

type objKey struct {
	block uint64
	seq   uint32
}

func (k objKey) String() string {
	return fmt.Sprintf("%d/%d", k.block, k.seq)
}

// session is the state of one verification.
type session struct {
	*Verifier
	pred       *types.Predicate
	results    map[objKey]*types.Object
	referenced map[objKey]bool
	accs       map[int]acc.Point
	counts     map[int]int
}

// failure aborts a verification with an outcome.
type failure struct {
	outcome types.VerifyOutcome
}

func fail(status types.VerifyStatus, format string, args ...interface{}) *failure {
	return &failure{outcome: types.VerifyOutcome{Status: status, Detail: fmt.Sprintf(format, args...)}}
}

func inconsistent(format string, args ...interface{}) *failure {
	return fail(types.VerifyInconsistent, format, args...)
}

func incomplete(format string, args ...interface{}) *failure {
	return fail(types.VerifyIncomplete, format, args...)
}

func unsound(format string, args ...interface{}) *failure {
	return fail(types.VerifyUnsound, format, args...)
}

// VerifySigned checks the signed tip carried by resp against the producer
// key pub, then verifies resp against that tip.
func (v *Verifier) VerifySigned(pub *asymmetric.PublicKey, resp *types.Response) types.VerifyOutcome {
	if resp == nil || resp.SignedTip == nil {
		return incomplete("response carries no signed tip").outcome
	}
	if err := resp.SignedTip.Verify(pub); err != nil {
		return inconsistent("tip signature: %v", err).outcome
	}
	return v.Verify(resp.SignedTip.Tip, resp)
}

// Verify checks resp against the trusted tip. The outcome is Pass only
// when every returned object satisfies the query, every object of the
// queried blocks that satisfies it is returned, and all of it chains to
// trusted.
func (v *Verifier) Verify(trusted types.TipRef, resp *types.Response) types.VerifyOutcome {
	if f := v.verify(trusted, resp); f != nil {
		return f.outcome
	}
	return types.VerifyOutcome{Status: types.VerifyPass}
}

func (v *Verifier) verify(trusted types.TipRef, resp *types.Response) *failure {
	if resp == nil || resp.Query == nil || resp.VO == nil {
		return incomplete("response misses the query or the verification object")
	}
	pred, err := resp.Query.Compile(v.param)
	if err != nil {
		return inconsistent("answered query is malformed: %v", err)
	}
	if resp.Tip != trusted {
		return inconsistent("response tip %d %s, trusted tip %d %s",
			resp.Tip.BlockID, resp.Tip.Digest.Short(4), trusted.BlockID, trusted.Digest.Short(4))
	}
	if trusted.BlockID < pred.End {
		return inconsistent("query end %d beyond trusted tip %d", pred.End, trusted.BlockID)
	}

	s := &session{
		Verifier:   v,
		pred:       pred,
		results:    make(map[objKey]*types.Object, len(resp.Result)),
		referenced: make(map[objKey]bool, len(resp.Result)),
		accs:       make(map[int]acc.Point),
		counts:     make(map[int]int),
	}
	for _, o := range resp.Result {
		if o == nil {
			return inconsistent("nil object in result")
		}
		k := objKey{block: o.BlockID, seq: o.Seq}
		if _, ok := s.results[k]; ok {
			return inconsistent("object %s returned twice", k)
		}
		s.results[k] = o
	}

	if f := s.walk(trusted, resp.VO.Blocks); f != nil {
		return f
	}
	for k := range s.results {
		if !s.referenced[k] {
			return unsound("object %s is not proven by any queried block", k)
		}
	}
	return s.checkProofs(resp.VO.Proofs)
}

// walk replays the header chain from the trusted tip down to start_block.
func (s *session) walk(trusted types.TipRef, blocks []*types.VOBlock) *failure {
	var (
		pred   = s.pred
		expect = trusted.BlockID
		digest = trusted.Digest
	)

	for _, b := range blocks {
		if b == nil {
			return inconsistent("nil block in verification object")
		}
		if expect < pred.Start {
			return inconsistent("block %d after the queried range was covered", b.Header.BlockID)
		}

		h := &b.Header
		if h.BlockID != expect {
			return inconsistent("block %d where block %d was expected", h.BlockID, expect)
		}
		if err := h.VerifyDigest(); err != nil {
			return inconsistent("block %d: %v", h.BlockID, err)
		}
		if h.SelfDigest != digest {
			return inconsistent("block %d does not chain to the trusted tip", h.BlockID)
		}

		switch b.Role {
		case types.Waypoint:
			if h.BlockID <= pred.End {
				return inconsistent("waypoint %d inside the queried range", h.BlockID)
			}
			if b.Via == 0 {
				expect, digest = h.BlockID-1, h.PrevDigest
				break
			}
			ptr := h.Pointer(b.Via)
			if ptr == nil {
				return inconsistent("block %d has no skip pointer of level %d", h.BlockID, b.Via)
			}
			if ptr.Target < pred.End {
				return inconsistent("waypoint %d skips past end block %d", h.BlockID, pred.End)
			}
			expect, digest = ptr.Target, ptr.TargetDigest

		case types.Jumped:
			if h.BlockID > pred.End {
				return inconsistent("jump from block %d above the queried range", h.BlockID)
			}
			ptr := h.Pointer(b.Via)
			if b.Via == 0 || ptr == nil {
				return inconsistent("block %d has no skip pointer of level %d", h.BlockID, b.Via)
			}
			if ptr.Target+1 < pred.Start {
				return inconsistent("jump from block %d leaves the queried range", h.BlockID)
			}
			if b.Jump == nil {
				return incomplete("jump from block %d carries no accumulator", h.BlockID)
			}
			if !pred.IsKeywordClause(b.Jump.Clause) {
				return inconsistent("jump from block %d proven against clause %d", h.BlockID, b.Jump.Clause)
			}
			if hash.THashH(b.Jump.Acc) != ptr.SpanAccDigest {
				return inconsistent("span accumulator of block %d level %d mismatch", h.BlockID, b.Via)
			}
			if f := s.addAcc(b.Jump); f != nil {
				return f
			}
			expect, digest = ptr.Target, ptr.TargetDigest

		case types.Candidate:
			if h.BlockID > pred.End {
				return inconsistent("candidate %d above the queried range", h.BlockID)
			}
			if b.Root == nil {
				return incomplete("block %d carries no index proof", h.BlockID)
			}
			root, accDigest, f := s.replayIndex(h.BlockID, b.Root)
			if f != nil {
				return f
			}
			if root != h.IndexRoot {
				return inconsistent("index root of block %d mismatch", h.BlockID)
			}
			if accDigest != h.AccDigest {
				return inconsistent("accumulator digest of block %d mismatch", h.BlockID)
			}
			expect, digest = h.BlockID-1, h.PrevDigest

		default:
			return inconsistent("block %d has unknown role %d", h.BlockID, b.Role)
		}
	}

	if expect >= pred.Start {
		return incomplete("blocks %d to %d are not covered", pred.Start, expect)
	}
	return nil
}

func (s *session) addAcc(ref *types.AccRef) *failure {
	p, err := acc.PointFromBytes(ref.Acc)
	if err != nil {
		return inconsistent("accumulator of clause %d: %v", ref.Clause, err)
	}
	s.accs[ref.Clause] = s.accs[ref.Clause].Add(p)
	s.counts[ref.Clause]++
	return nil
}

// checkProofs checks the summed accumulators of every clause against the
// aggregated proof of that clause.
func (s *session) checkProofs(proofs []*types.ClauseProof) *failure {
	byClause := make(map[int]acc.Point, len(proofs))
	for _, cp := range proofs {
		if cp == nil || !s.pred.HasClause(cp.Clause) {
			return inconsistent("proof of unknown clause")
		}
		if _, ok := byClause[cp.Clause]; ok {
			return inconsistent("clause %d proven twice", cp.Clause)
		}
		if _, ok := s.counts[cp.Clause]; !ok {
			return inconsistent("proof of clause %d proves nothing", cp.Clause)
		}
		p, err := acc.PointFromBytes(cp.Proof)
		if err != nil {
			return inconsistent("proof of clause %d: %v", cp.Clause, err)
		}
		byClause[cp.Clause] = p
	}

	for clause, sum := range s.accs {
		proof, ok := byClause[clause]
		if !ok {
			return incomplete("proof of clause %d missing", clause)
		}
		valid, err := s.setup.VerifyDisjoint(sum, s.pred.Clauses[clause].Set, proof)
		if err != nil {
			return inconsistent("proof of clause %d: %v", clause, err)
		}
		if !valid {
			return inconsistent("%d accumulators are not disjoint from clause %d",
				s.counts[clause], clause)
		}
	}
	return nil
}
