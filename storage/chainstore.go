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

package storage

import (
	"encoding/binary"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/CovenantSQL/verichain/types"
	"github.com/CovenantSQL/verichain/utils"
)

const headerCacheSize = 4096

var (
	paramKey        = []byte("PARAM")
	tipKey          = []byte("TIP")
	firstKey        = []byte("FIRST")
	headerKeyPrefix = []byte("HDR_")
	objectKeyPrefix = []byte("OBJ_")
	indexKeyPrefix  = []byte("IDX_")
	skipKeyPrefix   = []byte("SKP_")
)

func blockKey(prefix []byte, id uint64) []byte {
	k := make([]byte, len(prefix)+8)
	copy(k, prefix)
	binary.BigEndian.PutUint64(k[len(prefix):], id)
	return k
}

func nodeKey(id uint64, node uint32) []byte {
	k := make([]byte, len(indexKeyPrefix)+12)
	copy(k, indexKeyPrefix)
	binary.BigEndian.PutUint64(k[len(indexKeyPrefix):], id)
	binary.BigEndian.PutUint32(k[len(indexKeyPrefix)+8:], node)
	return k
}

// ChainStore maps chain records onto a KV. Records are msgpack encoded.
// Every failure is reported as a *types.StorageError; a missing record
// has types.ErrNotFound as its cause.
type ChainStore struct {
	kv      KV
	headers *lru.Cache
}

// NewChainStore returns a ChainStore over kv.
func NewChainStore(kv KV) (s *ChainStore, err error) {
	s = &ChainStore{kv: kv}
	if s.headers, err = lru.New(headerCacheSize); err != nil {
		err = errors.Wrap(err, "create header cache failed")
		return nil, err
	}
	return
}

// OpenChainStore opens a LevelDB backed store at path, or an in-memory
// one when path is empty.
func OpenChainStore(path string) (*ChainStore, error) {
	var (
		kv  *LevelDBKV
		err error
	)
	if path == "" {
		kv, err = NewMemLevelDBKV()
	} else {
		kv, err = NewLevelDBKV(path)
	}
	if err != nil {
		return nil, &types.StorageError{Op: "open", Key: path, Err: err}
	}
	return NewChainStore(kv)
}

func (s *ChainStore) get(key []byte, name string, out interface{}) error {
	raw, err := s.kv.Get(key)
	if err == ErrNotFound {
		return &types.StorageError{Op: "get", Key: name, Err: types.ErrNotFound}
	} else if err != nil {
		return &types.StorageError{Op: "get", Key: name, Err: err}
	}
	if err = utils.DecodeMsgPack(raw, out); err != nil {
		return &types.StorageError{Op: "decode", Key: name, Err: err}
	}
	return nil
}

// GetParameter returns the chain parameter.
func (s *ChainStore) GetParameter() (p *types.Parameter, err error) {
	p = new(types.Parameter)
	if err = s.get(paramKey, "PARAM", p); err != nil {
		return nil, err
	}
	return
}

// GetTip returns the sealed tip.
func (s *ChainStore) GetTip() (tip types.TipRef, err error) {
	err = s.get(tipKey, "TIP", &tip)
	return
}

// GetFirstBlock returns the id of the first block of the chain.
func (s *ChainStore) GetFirstBlock() (id uint64, err error) {
	err = s.get(firstKey, "FIRST", &id)
	return
}

// GetBlockHeader returns the header of block id. Headers are immutable once
// sealed and are served from cache.
func (s *ChainStore) GetBlockHeader(id uint64) (h *types.Header, err error) {
	if v, ok := s.headers.Get(id); ok {
		return v.(*types.Header), nil
	}
	h = new(types.Header)
	if err = s.get(blockKey(headerKeyPrefix, id), fmt.Sprintf("HDR_%d", id), h); err != nil {
		return nil, err
	}
	s.headers.Add(id, h)
	return
}

// GetBlockData returns the objects of block id in sequence order.
func (s *ChainStore) GetBlockData(id uint64) (objs []*types.Object, err error) {
	if err = s.get(blockKey(objectKeyPrefix, id), fmt.Sprintf("OBJ_%d", id), &objs); err != nil {
		return nil, err
	}
	return
}

// GetObject returns object seq of block id.
func (s *ChainStore) GetObject(id uint64, seq uint32) (*types.Object, error) {
	objs, err := s.GetBlockData(id)
	if err != nil {
		return nil, err
	}
	if uint64(seq) >= uint64(len(objs)) {
		return nil, &types.StorageError{
			Op:  "get",
			Key: fmt.Sprintf("OBJ_%d/%d", id, seq),
			Err: types.ErrNotFound,
		}
	}
	return objs[seq], nil
}

// GetIndexNode returns node of the intra-block index of block id.
func (s *ChainStore) GetIndexNode(id uint64, node uint32) (n *types.IndexNode, err error) {
	n = new(types.IndexNode)
	if err = s.get(nodeKey(id, node), fmt.Sprintf("IDX_%d_%d", id, node), n); err != nil {
		return nil, err
	}
	return
}

// GetSkipNode returns the skip list record of block id.
func (s *ChainStore) GetSkipNode(id uint64) (n *types.SkipNode, err error) {
	n = new(types.SkipNode)
	if err = s.get(blockKey(skipKeyPrefix, id), fmt.Sprintf("SKP_%d", id), n); err != nil {
		return nil, err
	}
	return
}

// NewBatch starts a write batch.
func (s *ChainStore) NewBatch() *ChainBatch {
	return &ChainBatch{s: s, b: s.kv.NewBatch()}
}

// Close closes the underlying KV.
func (s *ChainStore) Close() error {
	if err := s.kv.Close(); err != nil {
		return &types.StorageError{Op: "close", Err: err}
	}
	return nil
}

// ChainBatch collects the records of a block seal.
type ChainBatch struct {
	s       *ChainStore
	b       Batch
	headers []*types.Header
}

func (b *ChainBatch) put(key []byte, name string, in interface{}) error {
	buf, err := utils.EncodeMsgPack(in)
	if err != nil {
		return &types.StorageError{Op: "encode", Key: name, Err: err}
	}
	b.b.Put(key, buf.Bytes())
	return nil
}

// PutParameter adds the chain parameter.
func (b *ChainBatch) PutParameter(p *types.Parameter) error {
	return b.put(paramKey, "PARAM", p)
}

// PutTip adds the sealed tip.
func (b *ChainBatch) PutTip(tip types.TipRef) error {
	return b.put(tipKey, "TIP", &tip)
}

// PutFirstBlock adds the id of the first block.
func (b *ChainBatch) PutFirstBlock(id uint64) error {
	return b.put(firstKey, "FIRST", id)
}

// PutBlockHeader adds a sealed header.
func (b *ChainBatch) PutBlockHeader(h *types.Header) error {
	if err := b.put(blockKey(headerKeyPrefix, h.BlockID), fmt.Sprintf("HDR_%d", h.BlockID), h); err != nil {
		return err
	}
	b.headers = append(b.headers, h)
	return nil
}

// PutBlockData adds the objects of block id.
func (b *ChainBatch) PutBlockData(id uint64, objs []*types.Object) error {
	return b.put(blockKey(objectKeyPrefix, id), fmt.Sprintf("OBJ_%d", id), objs)
}

// PutIndexNode adds an intra-block index node of block id.
func (b *ChainBatch) PutIndexNode(id uint64, n *types.IndexNode) error {
	return b.put(nodeKey(id, n.ID), fmt.Sprintf("IDX_%d_%d", id, n.ID), n)
}

// PutSkipNode adds the skip list record of a block.
func (b *ChainBatch) PutSkipNode(n *types.SkipNode) error {
	return b.put(blockKey(skipKeyPrefix, n.BlockID), fmt.Sprintf("SKP_%d", n.BlockID), n)
}

// Len returns the number of records in the batch.
func (b *ChainBatch) Len() int {
	return b.b.Len()
}

// Commit writes every record of the batch at once.
func (b *ChainBatch) Commit() error {
	if err := b.b.Commit(); err != nil {
		return &types.StorageError{Op: "commit", Key: fmt.Sprintf("%d records", b.b.Len()), Err: err}
	}
	for _, h := range b.headers {
		b.s.headers.Add(h.BlockID, h)
	}
	b.headers = nil
	return nil
}
