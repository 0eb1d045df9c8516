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

	"github.com/CovenantSQL/verichain/crypto/asymmetric"
	"github.com/CovenantSQL/verichain/crypto/hash"
)

// TipRef identifies a sealed chain tip. A zero BlockID means an empty chain.
type TipRef struct {
	BlockID uint64    `json:"block_id"`
	Digest  hash.Hash `json:"digest"`
}

// MarshalHash marshals for hash.
func (z *TipRef) MarshalHash() (o []byte, err error) {
	var b []byte
	o = hsp.Require(b, z.Msgsize())
	// map header, size 2
	o = append(o, 0x82)
	o = hsp.AppendUint64(o, z.BlockID)
	if oTemp, err := z.Digest.MarshalHash(); err != nil {
		return nil, err
	} else {
		o = hsp.AppendBytes(o, oTemp)
	}
	return
}

// Msgsize returns an upper bound estimate of the number of bytes occupied by the serialized message.
func (z *TipRef) Msgsize() (s int) {
	return 1 + hsp.Uint64Size + z.Digest.Msgsize()
}

// SignedTip is a tip published with the producer signature.
type SignedTip struct {
	Tip       TipRef `json:"tip"`
	Signee    []byte `json:"signee"`
	Signature []byte `json:"signature"`
}

func tipHash(tip *TipRef) (h hash.Hash, err error) {
	var enc []byte
	if enc, err = tip.MarshalHash(); err != nil {
		return
	}
	h = hash.THashH(enc)
	return
}

// SignTip signs tip with the producer key.
func SignTip(tip TipRef, signer *asymmetric.PrivateKey) (st *SignedTip, err error) {
	h, err := tipHash(&tip)
	if err != nil {
		return
	}
	sig, err := signer.Sign(h[:])
	if err != nil {
		err = errors.Wrap(err, "sign tip failed")
		return
	}
	st = &SignedTip{
		Tip:       tip,
		Signee:    signer.PubKey().Serialize(),
		Signature: sig.Serialize(),
	}
	return
}

// Verify checks the signature and that it was made by expected.
func (z *SignedTip) Verify(expected *asymmetric.PublicKey) error {
	signee, err := asymmetric.ParsePubKey(z.Signee)
	if err != nil {
		return errors.Wrap(ErrSignVerification, err.Error())
	}
	if expected != nil && !signee.IsEqual(expected) {
		return errors.Wrap(ErrSignVerification, "unexpected signee")
	}
	sig, err := asymmetric.ParseDERSignature(z.Signature)
	if err != nil {
		return errors.Wrap(ErrSignVerification, err.Error())
	}
	h, err := tipHash(&z.Tip)
	if err != nil {
		return err
	}
	if !sig.Verify(h[:], signee) {
		return ErrSignVerification
	}
	return nil
}
