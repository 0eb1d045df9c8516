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
	"github.com/CovenantSQL/verichain/crypto/asymmetric"
	"github.com/CovenantSQL/verichain/types"
)

// Config is the chain session configuration.
type Config struct {
	// DataDir is the LevelDB directory; empty keeps the chain in memory.
	DataDir string
	// Param is required to create a chain and, when set, must match the
	// parameter of an existing one.
	Param *types.Parameter
	// AccCacheSize bounds the accumulator exponent cache.
	AccCacheSize int
	// Signer signs every published tip when set.
	Signer *asymmetric.PrivateKey
}
