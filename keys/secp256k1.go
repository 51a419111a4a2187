// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

// Package keys wraps secp256k1 key pairs used to authorize delegated registry
// operations and to sign ES256K credentials.
package keys

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// PublicKeySize is the length of an uncompressed public key without the 0x04 tag.
const PublicKeySize = 64

// SignatureHexLen is the hex length of an r||s||v signature.
const SignatureHexLen = 130

// Signer is anything that can authorize a registry operation.
type Signer interface {
	Address() common.Address
	PublicKey() []byte
	Sign(message []byte) (Signature, error)
}

// Keccak256 hashes the concatenation of data with legacy Keccak-256.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// Signature is a recoverable secp256k1 signature. V is 27 or 28.
type Signature struct {
	V byte
	R [32]byte
	S [32]byte
}

// Bytes returns r||s||v.
func (s Signature) Bytes() []byte {
	out := make([]byte, 0, 65)
	out = append(out, s.R[:]...)
	out = append(out, s.S[:]...)
	return append(out, s.V)
}

// Hex returns r||s||v as 130 lowercase hex characters without a prefix.
func (s Signature) Hex() string {
	return hex.EncodeToString(s.Bytes())
}

// VRS returns the 0x-prefixed hex forms sent to the relay.
func (s Signature) VRS() (v, r, sv string) {
	return hexutil.Encode([]byte{s.V}), hexutil.Encode(s.R[:]), hexutil.Encode(s.S[:])
}

func (s Signature) recoverable() []byte {
	b := s.Bytes()
	if b[64] >= 27 {
		b[64] -= 27
	}
	return b
}

// SignatureFromBytes parses r||s||v. V may be 0/1 or 27/28.
func SignatureFromBytes(b []byte) (Signature, error) {
	var sig Signature
	if len(b) != 65 {
		return sig, fmt.Errorf("keys: signature must be 65 bytes, got %d", len(b))
	}
	copy(sig.R[:], b[:32])
	copy(sig.S[:], b[32:64])
	sig.V = b[64]
	if sig.V < 27 {
		sig.V += 27
	}
	if sig.V != 27 && sig.V != 28 {
		return sig, fmt.Errorf("keys: invalid recovery id %d", b[64])
	}
	return sig, nil
}

// SignatureFromHex parses a 130 character r||s||v hex string, with or without 0x.
func SignatureFromHex(s string) (Signature, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != SignatureHexLen {
		return Signature{}, fmt.Errorf("keys: signature must be %d hex characters, got %d", SignatureHexLen, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Signature{}, fmt.Errorf("keys: decode signature: %w", err)
	}
	return SignatureFromBytes(b)
}

// Key is a secp256k1 key pair held in memory.
type Key struct {
	priv *ecdsa.PrivateKey
}

// GenerateKey creates a fresh random key pair.
func GenerateKey() (*Key, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("keys: generate secp256k1 key: %w", err)
	}
	return &Key{priv: priv}, nil
}

// NewKey wraps an existing private key.
func NewKey(priv *ecdsa.PrivateKey) *Key {
	return &Key{priv: priv}
}

// KeyFromHex loads a private key from hex. Short inputs are left-padded with zeros.
func KeyFromHex(s string) (*Key, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s) == 0 || len(s) > 64 {
		return nil, fmt.Errorf("keys: private key must be 1..64 hex characters, got %d", len(s))
	}
	s = strings.Repeat("0", 64-len(s)) + s
	priv, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, fmt.Errorf("keys: parse private key: %w", err)
	}
	return &Key{priv: priv}, nil
}

// Address returns the 20-byte account address derived from the public key.
func (k *Key) Address() common.Address {
	return crypto.PubkeyToAddress(k.priv.PublicKey)
}

// PublicKey returns the 64-byte uncompressed public key (X||Y).
func (k *Key) PublicKey() []byte {
	return crypto.FromECDSAPub(&k.priv.PublicKey)[1:]
}

// PrivateKeyHex returns the private scalar as 64 zero-padded hex characters.
func (k *Key) PrivateKeyHex() string {
	return hex.EncodeToString(crypto.FromECDSA(k.priv))
}

// ECDSA exposes the underlying key.
func (k *Key) ECDSA() *ecdsa.PrivateKey { return k.priv }

// Sign signs Keccak256(message) and returns a recoverable signature.
func (k *Key) Sign(message []byte) (Signature, error) {
	raw, err := crypto.Sign(Keccak256(message), k.priv)
	if err != nil {
		return Signature{}, fmt.Errorf("keys: sign: %w", err)
	}
	return SignatureFromBytes(raw)
}

// Verify reports whether sig over message recovers to this key's address.
func (k *Key) Verify(message []byte, sig Signature) bool {
	addr, err := RecoverAddress(message, sig)
	return err == nil && addr == k.Address()
}

// SignES256K signs SHA-256(data) and returns the 64-byte r||s JOSE signature.
func (k *Key) SignES256K(data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	raw, err := crypto.Sign(digest[:], k.priv)
	if err != nil {
		return nil, fmt.Errorf("keys: sign ES256K: %w", err)
	}
	return raw[:64], nil
}

// VerifyES256K checks a 64-byte r||s signature over SHA-256(data). Both the
// low and the high form of S are accepted.
func VerifyES256K(pub *ecdsa.PublicKey, data, sig []byte) bool {
	if pub == nil || len(sig) != 64 {
		return false
	}
	sig, ok := lowS(sig)
	if !ok {
		return false
	}
	digest := sha256.Sum256(data)
	return crypto.VerifySignature(crypto.FromECDSAPub(pub), digest[:], sig)
}

// lowS returns sig with S replaced by N-S when S is in the upper half of the
// curve order. It fails for S outside [1, N).
func lowS(sig []byte) ([]byte, bool) {
	n := crypto.S256().Params().N
	s := new(big.Int).SetBytes(sig[32:])
	if s.Sign() == 0 || s.Cmp(n) >= 0 {
		return nil, false
	}
	if s.Cmp(new(big.Int).Rsh(n, 1)) <= 0 {
		return sig, true
	}
	out := make([]byte, 64)
	copy(out, sig[:32])
	new(big.Int).Sub(n, s).FillBytes(out[32:])
	return out, true
}


// RecoverAddress returns the address that produced sig over message.
func RecoverAddress(message []byte, sig Signature) (common.Address, error) {
	pub, err := crypto.SigToPub(Keccak256(message), sig.recoverable())
	if err != nil {
		return common.Address{}, fmt.Errorf("keys: recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// ParsePublicKey accepts a 64-byte X||Y, a 65-byte 0x04-tagged or a 33-byte
// compressed point and fails if it is not on the curve.
func ParsePublicKey(b []byte) (*ecdsa.PublicKey, error) {
	switch len(b) {
	case PublicKeySize:
		return crypto.UnmarshalPubkey(append([]byte{0x04}, b...))
	case PublicKeySize + 1:
		return crypto.UnmarshalPubkey(b)
	case 33:
		return crypto.DecompressPubkey(b)
	default:
		return nil, fmt.Errorf("keys: unsupported public key length %d", len(b))
	}
}

// PublicKeyToAddress derives the account address of a public key.
func PublicKeyToAddress(b []byte) (common.Address, error) {
	pub, err := ParsePublicKey(b)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
