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

// Package storage implements the persistence collaborator of the chain: an
// opaque key-value abstraction over LevelDB, on disk or in memory, and a
// typed ChainStore mapping chain records onto it.
//
// Writes only happen through batches. A batch is applied atomically by
// Commit, which lets a block be sealed with a single write: either every
// record of the block is visible or none is.
package storage

import (
	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned by KV.Get for missing keys.
	ErrNotFound = errors.New("key not found")
	// ErrClosed is returned when using a closed KV.
	ErrClosed = errors.New("storage closed")
)

// KV is an opaque key to bytes store.
type KV interface {
	// Get returns the value of key, ErrNotFound if absent. The returned slice
	// must not be modified.
	Get(key []byte) ([]byte, error)
	// NewBatch returns an empty write batch.
	NewBatch() Batch
	// Close releases the store.
	Close() error
}

// Batch collects writes that Commit applies atomically.
type Batch interface {
	Put(key, value []byte)
	Len() int
	Commit() error
}
