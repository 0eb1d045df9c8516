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

package types

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidParameter indicates chain parameters that cannot describe a key space.
	ErrInvalidParameter = errors.New("invalid chain parameter")
	// ErrDimensionMismatch indicates an object or range with the wrong number of dimensions.
	ErrDimensionMismatch = errors.New("dimension count mismatch")
	// ErrValueOverflow indicates a v value that does not fit its dimension bit length.
	ErrValueOverflow = errors.New("value exceeds dimension bit length")
	// ErrEmptyKeyword indicates an empty keyword string.
	ErrEmptyKeyword = errors.New("empty keyword")
	// ErrBlockOrder indicates a block appended out of the contiguous id order.
	ErrBlockOrder = errors.New("block id out of order")
	// ErrInvalidBlockRange indicates start_block > end_block or ids outside the chain.
	ErrInvalidBlockRange = errors.New("invalid block range")
	// ErrInvalidRange indicates a range bound with lo > hi or a malformed bound.
	ErrInvalidRange = errors.New("invalid range bound")
	// ErrEmptyClause indicates an OR clause without keywords.
	ErrEmptyClause = errors.New("empty boolean clause")
	// ErrHashVerification indicates a failed header digest verification.
	ErrHashVerification = errors.New("hash verification failed")
	// ErrSignVerification indicates a failed tip signature verification.
	ErrSignVerification = errors.New("signature verification failed")
	// ErrNotFound indicates a record missing from storage.
	ErrNotFound = errors.New("record not found")
)

// BuildError reports input rejected while building a block.
type BuildError struct {
	Line    int // 1-based input line, 0 if unknown
	BlockID uint64
	Err     error
}

func (e *BuildError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("build block %d: line %d: %v", e.BlockID, e.Line, e.Err)
	}
	return fmt.Sprintf("build block %d: %v", e.BlockID, e.Err)
}

// Cause returns the underlying error.
func (e *BuildError) Cause() error { return e.Err }

// QueryError reports a malformed query, rejected before traversal.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string { return "query: " + e.Err.Error() }

// Cause returns the underlying error.
func (e *QueryError) Cause() error { return e.Err }

// StorageError reports a failed read or write of the storage collaborator.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

// Cause returns the underlying error.
func (e *StorageError) Cause() error { return e.Err }

// NewQueryError wraps a query validation failure.
func NewQueryError(err error, format string, args ...interface{}) error {
	return &QueryError{Err: errors.Wrapf(err, format, args...)}
}

type causer interface {
	Cause() error
}

func findCause(err error, match func(error) bool) bool {
	for err != nil {
		if match(err) {
			return true
		}
		c, ok := err.(causer)
		if !ok {
			return false
		}
		err = c.Cause()
	}
	return false
}

// IsBuildError reports whether err is or wraps a *BuildError.
func IsBuildError(err error) bool {
	return findCause(err, func(e error) bool { _, ok := e.(*BuildError); return ok })
}

// IsQueryError reports whether err is or wraps a *QueryError.
func IsQueryError(err error) bool {
	return findCause(err, func(e error) bool { _, ok := e.(*QueryError); return ok })
}

// IsStorageError reports whether err is or wraps a *StorageError.
func IsStorageError(err error) bool {
	return findCause(err, func(e error) bool { _, ok := e.(*StorageError); return ok })
}
