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
	"math"

	"github.com/pkg/errors"
)

const (
	// MaxBitLength is the widest supported dimension.
	MaxBitLength = 64
	// MaxSkipListLevel bounds the skip list fan-out.
	MaxSkipListLevel = 30
	// DefaultLeafCapacity is the leaf size used when none is configured.
	DefaultLeafCapacity = 4
)

// Parameter holds the build-time settings every block of a chain shares.
type Parameter struct {
	BitLengths       []uint8 `json:"bit_lengths"`
	SkipListMaxLevel uint8   `json:"skip_list_max_level"`
	LeafCapacity     uint32  `json:"leaf_capacity"`
	IntraIndex       bool    `json:"intra_index"`
	AccSeed          string  `json:"acc_seed"`
}

// Validate checks the parameter describes a usable key space.
func (p *Parameter) Validate() error {
	if len(p.BitLengths) == 0 {
		return errors.Wrap(ErrInvalidParameter, "no dimensions")
	}
	for i, b := range p.BitLengths {
		if b == 0 || b > MaxBitLength {
			return errors.Wrapf(ErrInvalidParameter, "dimension %d has bit length %d", i, b)
		}
	}
	if p.SkipListMaxLevel > MaxSkipListLevel {
		return errors.Wrapf(ErrInvalidParameter, "skip list level %d exceeds %d",
			p.SkipListMaxLevel, MaxSkipListLevel)
	}
	if p.LeafCapacity == 0 {
		return errors.Wrap(ErrInvalidParameter, "zero leaf capacity")
	}
	if p.AccSeed == "" {
		return errors.Wrap(ErrInvalidParameter, "empty accumulator seed")
	}
	return nil
}

// Dims returns the number of dimensions of v.
func (p *Parameter) Dims() int {
	return len(p.BitLengths)
}

// MaxValue returns the largest value dimension dim can hold.
func (p *Parameter) MaxValue(dim int) uint64 {
	return maxValue(p.BitLengths[dim])
}

// Domain returns the box covering the whole key space.
func (p *Parameter) Domain() Box {
	box := make(Box, len(p.BitLengths))
	for i, b := range p.BitLengths {
		box[i] = Interval{Lo: 0, Hi: maxValue(b)}
	}
	return box
}

func maxValue(bits uint8) uint64 {
	if bits >= 64 {
		return math.MaxUint64
	}
	return uint64(1)<<bits - 1
}
