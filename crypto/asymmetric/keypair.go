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

// Package asymmetric wraps the secp256k1 keys and signatures of btcec that
// the chain producer uses to sign published tips.
package asymmetric

import (
	"encoding/hex"
	"io/ioutil"
	"strings"

	ec "github.com/btcsuite/btcd/btcec"
	"github.com/pkg/errors"
)

// PrivateKey wraps an ec.PrivateKey.
type PrivateKey ec.PrivateKey

// PublicKey wraps an ec.PublicKey.
type PublicKey ec.PublicKey

// GenSecp256k1KeyPair generates a new secp256k1 key pair.
func GenSecp256k1KeyPair() (privateKey *PrivateKey, publicKey *PublicKey, err error) {
	privateKeyEc, err := ec.NewPrivateKey(ec.S256())
	if err != nil {
		err = errors.Wrap(err, "private key generation failed")
		return nil, nil, err
	}
	publicKey = (*PublicKey)(privateKeyEc.PubKey())
	privateKey = (*PrivateKey)(privateKeyEc)
	return
}

// PrivKeyFromBytes returns a private and public key for the raw key bytes.
func PrivKeyFromBytes(pk []byte) (*PrivateKey, *PublicKey) {
	x, y := ec.PrivKeyFromBytes(ec.S256(), pk)
	return (*PrivateKey)(x), (*PublicKey)(y)
}

// LoadPrivateKey reads a hex encoded private key from a file.
func LoadPrivateKey(path string) (*PrivateKey, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read private key file failed")
	}
	raw, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, errors.Wrap(err, "decode private key failed")
	}
	if len(raw) != ec.PrivKeyBytesLen {
		return nil, errors.Errorf("private key length %d, want %d", len(raw), ec.PrivKeyBytesLen)
	}
	priv, _ := PrivKeyFromBytes(raw)
	return priv, nil
}

// Serialize returns the private key as a 256-bit big-endian number.
func (p *PrivateKey) Serialize() []byte {
	return (*ec.PrivateKey)(p).Serialize()
}

// PubKey returns the public key of p.
func (p *PrivateKey) PubKey() *PublicKey {
	return (*PublicKey)((*ec.PrivateKey)(p).PubKey())
}

// ParsePubKey recovers a public key from its compressed form.
func ParsePubKey(pubKeyStr []byte) (*PublicKey, error) {
	key, err := ec.ParsePubKey(pubKeyStr, ec.S256())
	return (*PublicKey)(key), err
}

// Serialize returns the compressed form of the public key.
func (k *PublicKey) Serialize() []byte {
	return (*ec.PublicKey)(k).SerializeCompressed()
}

// IsEqual reports whether two public keys are the same point.
func (k *PublicKey) IsEqual(o *PublicKey) bool {
	return (*ec.PublicKey)(k).IsEqual((*ec.PublicKey)(o))
}
