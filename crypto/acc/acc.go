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

// Package acc implements an additive set accumulator over BLS12-381.
//
// A multiset X is committed as
//
//   acc(X) = g1 * Σ m_x s^h(x)
//
// where h maps an element to an exponent modulo the order of Fr*. Two
// commitments add up to the commitment of the multiset union, so object
// accumulators roll up into node, block and skip span accumulators.
//
// Disjointness of X and Y is proven by
//
//   π = g1 * Σ m_x s^(q+h(x)-h(y))
//
// and checked with one pairing equation e(acc(X), acc2(Y)) = e(π, g2), where
// acc2(Y) = g2 * Σ s^(q-h(y)). Proofs for the same Y add up as well, which
// lets a verifier check many disjointness claims against one clause with a
// single pairing.
//
// The setup is derived from a seed. Whoever holds the seed holds the
// trapdoor, so the seed is part of the trusted configuration of both the
// producer and the verifying client.
package acc

import (
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/CovenantSQL/verichain/crypto/hash"
	"github.com/CovenantSQL/verichain/utils/log"
)

// DefaultCacheSize is the number of element exponents kept in memory.
const DefaultCacheSize = 1 << 16

var (
	// ErrNotDisjoint is returned when a disjointness proof is requested for
	// two sets that share an element.
	ErrNotDisjoint = errors.New("sets are not disjoint")
	// ErrEmptySeed is returned when the setup seed is empty.
	ErrEmptySeed = errors.New("empty accumulator seed")
	// ErrInvalidPoint is returned when point bytes cannot be decoded.
	ErrInvalidPoint = errors.New("invalid accumulator point")
)

type exponents struct {
	pos fr.Element // s^h(x)
	neg fr.Element // s^(q-h(x))
}

// Setup holds the public generators and the trapdoor of the accumulator.
type Setup struct {
	s     fr.Element
	q     *big.Int
	order *big.Int
	g1    bls12381.G1Affine
	g2    bls12381.G2Affine
	cache *lru.Cache
}

// NewSetup derives a setup from seed. cacheSize <= 0 selects
// DefaultCacheSize.
func NewSetup(seed string, cacheSize int) (st *Setup, err error) {
	if seed == "" {
		err = ErrEmptySeed
		return
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}

	st = &Setup{
		order: new(big.Int).Sub(fr.Modulus(), big.NewInt(1)),
	}
	if st.cache, err = lru.New(cacheSize); err != nil {
		err = errors.Wrap(err, "create exponent cache failed")
		return
	}
	_, _, st.g1, st.g2 = bls12381.Generators()

	for i := byte(0); st.s.IsZero(); i++ {
		h := hash.THashHs([]byte("verichain/acc/s"), []byte{i}, []byte(seed))
		st.s.SetBytes(h[:])
	}
	qh := hash.THashHs([]byte("verichain/acc/q"), []byte(seed))
	st.q = new(big.Int).SetBytes(qh[:])
	st.q.Mod(st.q, st.order)

	log.WithField("cache", cacheSize).Debug("accumulator setup derived")
	return
}

func (st *Setup) exponentsOf(e Element) *exponents {
	if v, ok := st.cache.Get(e); ok {
		return v.(*exponents)
	}

	h := hash.THashH([]byte(e))
	hx := new(big.Int).SetBytes(h[:])
	hx.Mod(hx, st.order)

	ny := new(big.Int).Sub(st.q, hx)
	ny.Mod(ny, st.order)

	exp := &exponents{}
	exp.pos.Exp(st.s, hx)
	exp.neg.Exp(st.s, ny)
	st.cache.Add(e, exp)
	return exp
}

func (st *Setup) scalar(set Multiset, neg bool) (sum fr.Element) {
	var term, mult fr.Element
	for e, n := range set {
		if n == 0 {
			continue
		}
		exp := st.exponentsOf(e)
		mult.SetUint64(uint64(n))
		if neg {
			term.Mul(&exp.neg, &mult)
		} else {
			term.Mul(&exp.pos, &mult)
		}
		sum.Add(&sum, &term)
	}
	return
}

func (st *Setup) g1Mul(k *fr.Element) (p Point) {
	if k.IsZero() {
		return
	}
	p.p.ScalarMultiplication(&st.g1, k.BigInt(new(big.Int)))
	return
}

// Accumulate commits to set in G1.
func (st *Setup) Accumulate(set Multiset) Point {
	a := st.scalar(set, false)
	return st.g1Mul(&a)
}

func (st *Setup) accumulateG2(set Multiset) (p bls12381.G2Affine) {
	b := st.scalar(set, true)
	if b.IsZero() {
		return
	}
	p.ScalarMultiplication(&st.g2, b.BigInt(new(big.Int)))
	return
}

// ProveDisjoint proves that x and y share no element.
func (st *Setup) ProveDisjoint(x, y Multiset) (p Point, err error) {
	if x.Intersects(y) {
		err = ErrNotDisjoint
		return
	}
	a := st.scalar(x, false)
	b := st.scalar(y, true)
	a.Mul(&a, &b)
	p = st.g1Mul(&a)
	return
}

// VerifyDisjoint checks that proof shows the multiset committed by accSum
// to be disjoint from y. accSum and proof may be sums of several
// accumulators and of their individual proofs against the same y.
func (st *Setup) VerifyDisjoint(accSum Point, y Multiset, proof Point) (bool, error) {
	b := st.accumulateG2(y)

	var negProof bls12381.G1Affine
	negProof.Neg(&proof.p)

	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{accSum.p, negProof},
		[]bls12381.G2Affine{b, st.g2},
	)
	if err != nil {
		return false, errors.Wrap(err, "pairing check failed")
	}
	return ok, nil
}
