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
	"github.com/pkg/errors"

	"github.com/CovenantSQL/verichain/index"
	"github.com/CovenantSQL/verichain/metric"
	"github.com/CovenantSQL/verichain/skiplist"
	"github.com/CovenantSQL/verichain/types"
	"github.com/CovenantSQL/verichain/utils/log"
	"github.com/CovenantSQL/verichain/utils/timer"
)

type builderState int

const (
	builderOpen builderState = iota
	builderSealed
	builderDiscarded
)

// BlockBuilder collects the objects of the next block. It holds the chain
// writer from NewBlock until Seal or Discard.
type BlockBuilder struct {
	c     *Chain
	id    uint64
	objs  []*types.Object
	state builderState
}

// NewBlock opens a builder for block id, which must directly follow the
// tip. It blocks while another builder is open.
func (c *Chain) NewBlock(id uint64) (b *BlockBuilder, err error) {
	c.writer.Lock()

	tip := c.Tip()
	if id == 0 || (tip.BlockID > 0 && id != tip.BlockID+1) {
		c.writer.Unlock()
		err = &types.BuildError{
			BlockID: id,
			Err:     errors.Wrapf(types.ErrBlockOrder, "tip is block %d", tip.BlockID),
		}
		return
	}
	b = &BlockBuilder{c: c, id: id}
	return
}

// ID returns the id of the block being built.
func (b *BlockBuilder) ID() uint64 {
	return b.id
}

// Len returns the number of objects added so far.
func (b *BlockBuilder) Len() int {
	return len(b.objs)
}

// Add validates raw and appends it to the block.
func (b *BlockBuilder) Add(raw *types.RawObject) error {
	if b.state != builderOpen {
		return ErrBuilderSealed
	}
	if raw.BlockID != b.id {
		return &types.BuildError{
			Line:    raw.Line,
			BlockID: raw.BlockID,
			Err:     errors.Wrapf(types.ErrBlockOrder, "object of block %d added to block %d", raw.BlockID, b.id),
		}
	}
	o, err := types.NewObject(raw, uint32(len(b.objs)), b.c.param)
	if err != nil {
		return err
	}
	b.objs = append(b.objs, o)
	return nil
}

// Discard drops the block and releases the writer.
func (b *BlockBuilder) Discard() {
	if b.state != builderOpen {
		return
	}
	b.state = builderDiscarded
	b.c.writer.Unlock()
}

// Seal builds the index and skip list records of the block, persists them
// in one batch and publishes the new tip. The builder is closed whatever
// the outcome; a failed seal persists nothing.
func (b *BlockBuilder) Seal() (h *types.Header, err error) {
	if b.state != builderOpen {
		return nil, ErrBuilderSealed
	}
	c := b.c
	defer func() {
		if err != nil {
			b.state = builderDiscarded
		} else {
			b.state = builderSealed
		}
		c.writer.Unlock()
	}()

	t := timer.NewTimer()

	c.RLock()
	tip, first := c.tip, c.first
	c.RUnlock()
	if tip.BlockID == 0 {
		first = b.id
	}

	var blk *index.Block
	if blk, err = index.Build(b.objs, c.param, c.setup); err != nil {
		return
	}
	t.Add("index")

	node, ptrs, err := skiplist.Build(c.st, first, b.id, c.param.SkipListMaxLevel, blk.Keywords(), blk.Acc)
	if err != nil {
		return
	}
	t.Add("skiplist")

	h = &types.Header{
		BlockID:    b.id,
		PrevDigest: tip.Digest,
		IndexRoot:  blk.RootDigest(),
		AccDigest:  blk.Acc.Digest(),
		Skips:      ptrs,
	}
	if err = h.SetDigest(); err != nil {
		return nil, err
	}
	newTip := types.TipRef{BlockID: b.id, Digest: h.SelfDigest}

	batch := c.st.NewBatch()
	if err = batch.PutBlockData(b.id, b.objs); err != nil {
		return nil, err
	}
	for _, n := range blk.Nodes {
		if err = batch.PutIndexNode(b.id, n); err != nil {
			return nil, err
		}
	}
	if err = batch.PutSkipNode(node); err != nil {
		return nil, err
	}
	if err = batch.PutBlockHeader(h); err != nil {
		return nil, err
	}
	if err = batch.PutTip(newTip); err != nil {
		return nil, err
	}
	if tip.BlockID == 0 {
		if err = batch.PutFirstBlock(first); err != nil {
			return nil, err
		}
	}

	var signed *types.SignedTip
	if c.signer != nil {
		if signed, err = types.SignTip(newTip, c.signer); err != nil {
			return nil, err
		}
	}

	if err = batch.Commit(); err != nil {
		return nil, err
	}
	t.Add("commit")

	c.Lock()
	c.tip, c.first, c.signedTip = newTip, first, signed
	c.Unlock()

	metric.BlocksSealed.Inc()
	metric.ObjectsIndexed.Add(float64(len(b.objs)))
	metric.SealDuration.Observe(t.Elapsed().Seconds())
	metric.ChainHeight.Set(float64(b.id))

	entry := log.WithFields(log.Fields{
		"block":   b.id,
		"objects": len(b.objs),
		"nodes":   len(blk.Nodes),
		"skips":   len(ptrs),
	}).WithFields(t.ToLogFields())
	if b.id%1000 == 0 {
		entry.Info("block sealed")
	} else {
		entry.Debug("block sealed")
	}
	return
}
