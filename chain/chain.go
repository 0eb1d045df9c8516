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

// Package chain owns the session state of a verifiable chain: the sealed
// tip published to readers and the single writer appending blocks.
//
// Readers never see a block before its seal has been committed to storage,
// and a Snapshot never exposes a block beyond the tip it pinned.
package chain

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/CovenantSQL/verichain/crypto/acc"
	"github.com/CovenantSQL/verichain/crypto/asymmetric"
	"github.com/CovenantSQL/verichain/metric"
	"github.com/CovenantSQL/verichain/storage"
	"github.com/CovenantSQL/verichain/types"
	"github.com/CovenantSQL/verichain/utils/log"
)

// Chain is an open chain session.
type Chain struct {
	// The following fields are read-only after NewChain
	st     *storage.ChainStore
	param  *types.Parameter
	setup  *acc.Setup
	signer *asymmetric.PrivateKey

	// writer is held by the open BlockBuilder
	writer sync.Mutex

	sync.RWMutex // protects following fields
	first        uint64
	tip          types.TipRef
	signedTip    *types.SignedTip
}

// NewChain opens the chain described by cfg, creating it if its storage is
// empty.
func NewChain(cfg *Config) (c *Chain, err error) {
	var st *storage.ChainStore
	if st, err = storage.OpenChainStore(cfg.DataDir); err != nil {
		return
	}
	defer func() {
		if err != nil {
			_ = st.Close()
			c = nil
		}
	}()

	c = &Chain{st: st, signer: cfg.Signer}

	if c.param, err = st.GetParameter(); err == nil {
		if cfg.Param != nil && !sameParameter(cfg.Param, c.param) {
			err = errors.Wrapf(ErrParameterMismatch, "chain at %s", cfg.DataDir)
			return
		}
	} else if errors.Cause(err) == types.ErrNotFound {
		if cfg.Param == nil {
			err = ErrNoParameter
			return
		}
		if err = cfg.Param.Validate(); err != nil {
			return
		}
		p := *cfg.Param
		p.BitLengths = append([]uint8(nil), cfg.Param.BitLengths...)
		b := st.NewBatch()
		if err = b.PutParameter(&p); err != nil {
			return
		}
		if err = b.Commit(); err != nil {
			return
		}
		c.param = &p
	} else {
		return
	}

	if c.setup, err = acc.NewSetup(c.param.AccSeed, cfg.AccCacheSize); err != nil {
		return
	}

	if c.tip, err = st.GetTip(); err == nil {
		if c.first, err = st.GetFirstBlock(); err != nil {
			return
		}
		if c.signer != nil {
			if c.signedTip, err = types.SignTip(c.tip, c.signer); err != nil {
				return
			}
		}
	} else if errors.Cause(err) == types.ErrNotFound {
		c.tip, err = types.TipRef{}, nil
	} else {
		return
	}

	metric.ChainHeight.Set(float64(c.tip.BlockID))
	log.WithFields(log.Fields{
		"dir":   cfg.DataDir,
		"first": c.first,
		"tip":   c.tip.BlockID,
		"dims":  c.param.Dims(),
	}).Info("chain opened")
	return
}

func sameParameter(a, b *types.Parameter) bool {
	if len(a.BitLengths) != len(b.BitLengths) {
		return false
	}
	for i := range a.BitLengths {
		if a.BitLengths[i] != b.BitLengths[i] {
			return false
		}
	}
	return a.SkipListMaxLevel == b.SkipListMaxLevel &&
		a.LeafCapacity == b.LeafCapacity &&
		a.IntraIndex == b.IntraIndex &&
		a.AccSeed == b.AccSeed
}

// Param returns the chain parameter.
func (c *Chain) Param() *types.Parameter {
	return c.param
}

// Setup returns the accumulator setup of the chain.
func (c *Chain) Setup() *acc.Setup {
	return c.setup
}

// Tip returns the sealed tip, zero for an empty chain.
func (c *Chain) Tip() types.TipRef {
	c.RLock()
	defer c.RUnlock()
	return c.tip
}

// Snapshot pins the current tip.
func (c *Chain) Snapshot() *Snapshot {
	c.RLock()
	defer c.RUnlock()
	return &Snapshot{
		Tip:       c.tip,
		SignedTip: c.signedTip,
		First:     c.first,
		Param:     c.param,
		Setup:     c.setup,
		st:        c.st,
	}
}

// Append builds and seals block id from raws.
func (c *Chain) Append(id uint64, raws []*types.RawObject) (h *types.Header, err error) {
	var b *BlockBuilder
	if b, err = c.NewBlock(id); err != nil {
		return
	}
	for _, raw := range raws {
		if err = b.Add(raw); err != nil {
			b.Discard()
			return
		}
	}
	return b.Seal()
}

// Close waits for the open builder, if any, and closes the storage.
func (c *Chain) Close() error {
	c.writer.Lock()
	defer c.writer.Unlock()
	return c.st.Close()
}
