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

package chain

import (
	"fmt"

	"github.com/CovenantSQL/verichain/crypto/acc"
	"github.com/CovenantSQL/verichain/storage"
	"github.com/CovenantSQL/verichain/types"
)

// Snapshot is a read view of the chain pinned at one tip. Blocks sealed
// after the snapshot was taken are not visible through it.
type Snapshot struct {
	Tip       types.TipRef
	SignedTip *types.SignedTip
	First     uint64
	Param     *types.Parameter
	Setup     *acc.Setup

	st *storage.ChainStore
}

// Empty reports whether the snapshot holds no block.
func (s *Snapshot) Empty() bool {
	return s.Tip.BlockID == 0
}

// Contains reports whether block id is visible in the snapshot.
func (s *Snapshot) Contains(id uint64) bool {
	return !s.Empty() && id >= s.First && id <= s.Tip.BlockID
}

func (s *Snapshot) check(name string, id uint64) error {
	if !s.Contains(id) {
		return &types.StorageError{Op: "get", Key: fmt.Sprintf("%s_%d", name, id), Err: types.ErrNotFound}
	}
	return nil
}

// GetBlockHeader returns the header of block id. The header is shared and
// must not be modified.
func (s *Snapshot) GetBlockHeader(id uint64) (*types.Header, error) {
	if err := s.check("HDR", id); err != nil {
		return nil, err
	}
	return s.st.GetBlockHeader(id)
}

// GetBlockData returns the objects of block id.
func (s *Snapshot) GetBlockData(id uint64) ([]*types.Object, error) {
	if err := s.check("OBJ", id); err != nil {
		return nil, err
	}
	return s.st.GetBlockData(id)
}

// GetObject returns object seq of block id.
func (s *Snapshot) GetObject(id uint64, seq uint32) (*types.Object, error) {
	if err := s.check("OBJ", id); err != nil {
		return nil, err
	}
	return s.st.GetObject(id, seq)
}

// GetIndexNode returns an intra-block index node of block id.
func (s *Snapshot) GetIndexNode(id uint64, node uint32) (*types.IndexNode, error) {
	if err := s.check("IDX", id); err != nil {
		return nil, err
	}
	return s.st.GetIndexNode(id, node)
}

// GetSkipNode returns the skip list record of block id.
func (s *Snapshot) GetSkipNode(id uint64) (*types.SkipNode, error) {
	if err := s.check("SKP", id); err != nil {
		return nil, err
	}
	return s.st.GetSkipNode(id)
}
