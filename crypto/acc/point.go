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
	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/pkg/errors"

	"github.com/CovenantSQL/verichain/crypto/hash"
)

// PointSize is the length of a compressed point.
const PointSize = bls12381.SizeOfG1AffineCompressed

// Point is a G1 element: either an accumulator value or a disjointness
// proof. The zero value is the identity, the commitment to the empty set.
type Point struct {
	p bls12381.G1Affine
}

// PointFromBytes decodes a compressed point, checking subgroup membership.
func PointFromBytes(b []byte) (p Point, err error) {
	if len(b) != PointSize {
		err = errors.Wrapf(ErrInvalidPoint, "length %d", len(b))
		return
	}
	if _, err = p.p.SetBytes(b); err != nil {
		err = errors.Wrap(ErrInvalidPoint, err.Error())
	}
	return
}

// Bytes returns the compressed encoding of p.
func (p Point) Bytes() []byte {
	b := p.p.Bytes()
	return b[:]
}

// Digest returns the hash of the compressed encoding, which is what
// authenticated structures commit to.
func (p Point) Digest() hash.Hash {
	return hash.THashH(p.Bytes())
}

// IsZero reports whether p is the identity.
func (p Point) IsZero() bool {
	return p.p.IsInfinity()
}

// Equal reports whether p and o are the same point.
func (p Point) Equal(o Point) bool {
	return p.p.Equal(&o.p)
}

// Add returns p + o.
func (p Point) Add(o Point) (r Point) {
	var j bls12381.G1Jac
	j.FromAffine(&p.p)
	j.AddMixed(&o.p)
	r.p.FromJacobian(&j)
	return
}

// Sum returns the sum of points.
func Sum(points ...Point) (r Point) {
	var j bls12381.G1Jac
	j.FromAffine(&r.p)
	for i := range points {
		j.AddMixed(&points[i].p)
	}
	r.p.FromJacobian(&j)
	return
}
