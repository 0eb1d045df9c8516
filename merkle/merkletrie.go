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

// Package merkle computes binary merkle roots over digest lists. Index
// nodes commit to their children and leaf entries through it.
package merkle

import (
	"github.com/CovenantSQL/verichain/crypto/hash"
)

// Merkle is a merkle tree implementation (https://en.wikipedia.org/wiki/Merkle_tree)
type Merkle struct {
	tree []*hash.Hash
}

// Algorithm is from
// https://web.archive.org/web/20180327073507/graphics.stanford.edu/~seander/bithacks.html#RoundUpPowerOf2
func upperPowOfTwo(n int) int {
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}

// NewMerkle builds the tree over items. An empty list is treated as a
// single zero digest. A lone left node is merged with itself, so callers
// that need to distinguish lists of different lengths must also commit to
// the length.
func NewMerkle(items []*hash.Hash) *Merkle {
	if len(items) == 0 {
		items = []*hash.Hash{{}}
	}

	upperPoT := upperPowOfTwo(len(items))
	maxMerkleSize := upperPoT*2 - 1
	hashArray := make([]*hash.Hash, maxMerkleSize)

	copy(hashArray, items)
	offset := upperPoT
	for i := 0; i < maxMerkleSize-1; i += 2 {
		switch {
		case hashArray[i] != nil && hashArray[i+1] != nil:
			hashArray[offset] = MergeTwoHash(hashArray[i], hashArray[i+1])
		case hashArray[i] != nil:
			hashArray[offset] = MergeTwoHash(hashArray[i], hashArray[i])
		}
		offset++
	}
	return &Merkle{hashArray}
}

// GetRoot returns the root of merkle tree
func (merkle *Merkle) GetRoot() *hash.Hash {
	return merkle.tree[len(merkle.tree)-1]
}

// MergeTwoHash computes the hash of the concatenate of two hash
func MergeTwoHash(l *hash.Hash, r *hash.Hash) *hash.Hash {
	result := hash.THashHs(l[:], r[:])
	return &result
}

// Root returns the merkle root of hs.
func Root(hs []hash.Hash) hash.Hash {
	items := make([]*hash.Hash, len(hs))
	for i := range hs {
		items[i] = &hs[i]
	}
	return *NewMerkle(items).GetRoot()
}
