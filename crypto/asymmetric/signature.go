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

package asymmetric

import (
	ec "github.com/btcsuite/btcd/btcec"
)

// Signature is a type representing an ecdsa signature.
type Signature ec.Signature

// Serialize returns the DER encoding of the signature.
func (s *Signature) Serialize() []byte {
	return (*ec.Signature)(s).Serialize()
}

// ParseDERSignature recovers the signature from its DER encoding.
func ParseDERSignature(sigStr []byte) (*Signature, error) {
	sig, err := ec.ParseDERSignature(sigStr, ec.S256())
	return (*Signature)(sig), err
}

// Sign generates a deterministic RFC6979 ECDSA signature of hash.
func (p *PrivateKey) Sign(hash []byte) (*Signature, error) {
	s, e := (*ec.PrivateKey)(p).Sign(hash)
	return (*Signature)(s), e
}

// Verify reports whether s is a valid signature of hash by signee.
func (s *Signature) Verify(hash []byte, signee *PublicKey) bool {
	if s == nil || signee == nil {
		return false
	}
	return (*ec.Signature)(s).Verify(hash, (*ec.PublicKey)(signee))
}
