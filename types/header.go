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

package types

import (
	hsp "github.com/CovenantSQL/HashStablePack/marshalhash"
	"github.com/pkg/errors"

	"github.com/CovenantSQL/verichain/crypto/acc"
	"github.com/CovenantSQL/verichain/crypto/hash"
)

// SkipPointer links a header to the header 2^Level blocks back. The span
// (Target, BlockID] of the owning header is committed by SpanAccDigest.
type SkipPointer struct {
	Level         uint8     `json:"level"`
	Target        uint64    `json:"target"`
	TargetDigest  hash.Hash `json:"target_digest"`
	SpanAccDigest hash.Hash `json:"span_acc_digest"`
}

// MarshalHash marshals for hash.
func (z *SkipPointer) MarshalHash() (o []byte, err error) {
	var b []byte
	o = hsp.Require(b, z.Msgsize())
	// map header, size 4
	o = append(o, 0x84)
	o = hsp.AppendUint64(o, uint64(z.Level))
	o = hsp.AppendUint64(o, z.Target)
	if oTemp, err := z.TargetDigest.MarshalHash(); err != nil {
		return nil, err
	} else {
		o = hsp.AppendBytes(o, oTemp)
	}
	if oTemp, err := z.SpanAccDigest.MarshalHash(); err != nil {
		return nil, err
	} else {
		o = hsp.AppendBytes(o, oTemp)
	}
	return
}

// Msgsize returns an upper bound estimate of the number of bytes occupied by the serialized message.
func (z *SkipPointer) Msgsize() (s int) {
	return 1 + 2*hsp.Uint64Size + z.TargetDigest.Msgsize() + z.SpanAccDigest.Msgsize()
}

// Header is the sealed header of a block.
type Header struct {
	BlockID    uint64        `json:"block_id"`
	PrevDigest hash.Hash     `json:"prev_digest"`
	IndexRoot  hash.Hash     `json:"index_root"`
	AccDigest  hash.Hash     `json:"acc_digest"`
	Skips      []SkipPointer `json:"skips"`
	SelfDigest hash.Hash     `json:"self_digest"`
}

// MarshalHash marshals every field but SelfDigest for hash.
func (z *Header) MarshalHash() (o []byte, err error) {
	var b []byte
	o = hsp.Require(b, z.Msgsize())
	// map header, size 5
	o = append(o, 0x85)
	o = hsp.AppendUint64(o, z.BlockID)
	if oTemp, err := z.PrevDigest.MarshalHash(); err != nil {
		return nil, err
	} else {
		o = hsp.AppendBytes(o, oTemp)
	}
	if oTemp, err := z.IndexRoot.MarshalHash(); err != nil {
		return nil, err
	} else {
		o = hsp.AppendBytes(o, oTemp)
	}
	if oTemp, err := z.AccDigest.MarshalHash(); err != nil {
		return nil, err
	} else {
		o = hsp.AppendBytes(o, oTemp)
	}
	o = hsp.AppendArrayHeader(o, uint32(len(z.Skips)))
	for i := range z.Skips {
		if oTemp, err := z.Skips[i].MarshalHash(); err != nil {
			return nil, err
		} else {
			o = hsp.AppendBytes(o, oTemp)
		}
	}
	return
}

// Msgsize returns an upper bound estimate of the number of bytes occupied by the serialized message.
func (z *Header) Msgsize() (s int) {
	s = 1 + hsp.Uint64Size + z.PrevDigest.Msgsize() + z.IndexRoot.Msgsize() + z.AccDigest.Msgsize() +
		hsp.ArrayHeaderSize
	for i := range z.Skips {
		s += hsp.BytesPrefixSize + z.Skips[i].Msgsize()
	}
	return
}

// ComputeDigest returns the digest over every field but SelfDigest.
func (z *Header) ComputeDigest() (h hash.Hash, err error) {
	var enc []byte
	if enc, err = z.MarshalHash(); err != nil {
		return
	}
	h = hash.THashH(enc)
	return
}

// SetDigest seals the header by computing SelfDigest.
func (z *Header) SetDigest() (err error) {
	z.SelfDigest, err = z.ComputeDigest()
	return
}

// VerifyDigest checks SelfDigest against the other fields.
func (z *Header) VerifyDigest() error {
	h, err := z.ComputeDigest()
	if err != nil {
		return err
	}
	if h != z.SelfDigest {
		return errors.Wrapf(ErrHashVerification, "header %d", z.BlockID)
	}
	return nil
}

// Pointer returns the skip pointer of the given level, nil if absent.
func (z *Header) Pointer(level uint8) *SkipPointer {
	for i := range z.Skips {
		if z.Skips[i].Level == level {
			return &z.Skips[i]
		}
	}
	return nil
}

// SkipLevel is the stored form of a skip pointer, with the keyword
// multiset and accumulator of its span needed to prove jumps.
type SkipLevel struct {
	Level        uint8        `json:"level"`
	Target       uint64       `json:"target"`
	TargetDigest hash.Hash    `json:"target_digest"`
	SpanKeywords acc.Multiset `json:"span_keywords"`
	SpanAcc      []byte       `json:"span_acc"`
}

// SkipNode is the skip list record of one block.
type SkipNode struct {
	BlockID uint64       `json:"block_id"`
	Levels  []*SkipLevel `json:"levels"`
}

// Level returns the level l record, nil if absent.
func (n *SkipNode) Level(l uint8) *SkipLevel {
	for _, lv := range n.Levels {
		if lv.Level == l {
			return lv
		}
	}
	return nil
}
