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

import "github.com/pkg/errors"

var (
	// ErrNoParameter indicates a new chain opened without a parameter.
	ErrNoParameter = errors.New("chain parameter required")
	// ErrParameterMismatch indicates a configured parameter that differs from
	// the persisted one.
	ErrParameterMismatch = errors.New("chain parameter mismatch")
	// ErrBuilderSealed indicates use of a sealed or discarded builder.
	ErrBuilderSealed = errors.New("block builder is not open")
	// ErrEmptyChain indicates a query against a chain without blocks.
	ErrEmptyChain = errors.New("chain has no block")
)
