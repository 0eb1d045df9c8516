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
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lvstorage "github.com/syndtr/goleveldb/leveldb/storage"
)

// LevelDBKV is a KV backed by a LevelDB database, on disk or in memory.
type LevelDBKV struct {
	db     *leveldb.DB
	stor   lvstorage.Storage
	closed uint32
}

// NewLevelDBKV opens or creates the LevelDB database at path.
func NewLevelDBKV(path string) (p *LevelDBKV, err error) {
	p = &LevelDBKV{}
	if p.db, err = leveldb.OpenFile(path, nil); err != nil {
		err = errors.Wrap(err, "open database failed")
		return nil, err
	}
	return
}

// NewMemLevelDBKV opens an empty LevelDB database on memory storage, used by
// tests and ephemeral chains.
func NewMemLevelDBKV() (p *LevelDBKV, err error) {
	p = &LevelDBKV{stor: lvstorage.NewMemStorage()}
	if p.db, err = leveldb.Open(p.stor, nil); err != nil {
		_ = p.stor.Close()
		err = errors.Wrap(err, "open memory database failed")
		return nil, err
	}
	return
}

// Get implements KV.Get.
func (p *LevelDBKV) Get(key []byte) (value []byte, err error) {
	if atomic.LoadUint32(&p.closed) == 1 {
		return nil, ErrClosed
	}
	if value, err = p.db.Get(key, nil); err == leveldb.ErrNotFound {
		err = ErrNotFound
	} else if err != nil {
		err = errors.Wrap(err, "access leveldb failed")
	}
	return
}

// NewBatch implements KV.NewBatch.
func (p *LevelDBKV) NewBatch() Batch {
	return &levelDBBatch{kv: p, b: new(leveldb.Batch)}
}

// Close implements KV.Close.
func (p *LevelDBKV) Close() error {
	if !atomic.CompareAndSwapUint32(&p.closed, 0, 1) {
		return nil
	}
	err := p.db.Close()
	if p.stor != nil {
		if serr := p.stor.Close(); err == nil {
			err = serr
		}
	}
	return err
}

type levelDBBatch struct {
	kv *LevelDBKV
	b  *leveldb.Batch
}

func (b *levelDBBatch) Put(key, value []byte) {
	b.b.Put(key, value)
}

func (b *levelDBBatch) Len() int {
	return b.b.Len()
}

func (b *levelDBBatch) Commit() error {
	if atomic.LoadUint32(&b.kv.closed) == 1 {
		return ErrClosed
	}
	if err := b.kv.db.Write(b.b, &opt.WriteOptions{Sync: true}); err != nil {
		return errors.Wrap(err, "write batch failed")
	}
	b.b.Reset()
	return nil
}
