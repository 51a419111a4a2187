// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

package keys

import (
	"encoding/hex"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	keyOneHex     = "0000000000000000000000000000000000000000000000000000000000000001"
	keyOneAddress = "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"
	keyOnePub     = "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798" +
		"483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8"
)

func TestKeccak256Empty(t *testing.T) {
	assert.Equal(t,
		"c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		hex.EncodeToString(Keccak256()))
}

func TestKeyFromHexKnownVector(t *testing.T) {
	k, err := KeyFromHex("0x1")
	require.NoError(t, err)

	assert.Equal(t, common.HexToAddress(keyOneAddress), k.Address())
	assert.Equal(t, keyOnePub, hex.EncodeToString(k.PublicKey()))
	assert.Equal(t, keyOneHex, k.PrivateKeyHex())

	addr, err := PublicKeyToAddress(k.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, k.Address(), addr)
}

func TestKeyFromHexRejectsGarbage(t *testing.T) {
	_, err := KeyFromHex("")
	assert.Error(t, err)
	_, err = KeyFromHex(strings.Repeat("a", 65))
	assert.Error(t, err)
	_, err = KeyFromHex("zz")
	assert.Error(t, err)
}

func TestSignVerify(t *testing.T) {
	k, err := GenerateKey()
	require.NoError(t, err)

	msg := []byte("\x19\x00I authorize the addition of a public key on my behalf.")
	sig, err := k.Sign(msg)
	require.NoError(t, err)

	assert.Contains(t, []byte{27, 28}, sig.V)
	assert.True(t, k.Verify(msg, sig))

	for i := 0; i < len(msg)*8; i += 7 {
		flipped := append([]byte(nil), msg...)
		flipped[i/8] ^= 1 << (i % 8)
		assert.False(t, k.Verify(flipped, sig), "bit %d", i)
	}

	other, err := GenerateKey()
	require.NoError(t, err)
	assert.False(t, other.Verify(msg, sig))
}

func TestSignatureHexRoundTrip(t *testing.T) {
	k, err := GenerateKey()
	require.NoError(t, err)
	sig, err := k.Sign([]byte("payload"))
	require.NoError(t, err)

	h := sig.Hex()
	require.Len(t, h, SignatureHexLen)
	parsed, err := SignatureFromHex("0x" + h)
	require.NoError(t, err)
	assert.Equal(t, sig, parsed)

	v, r, s := sig.VRS()
	assert.Len(t, r, 66)
	assert.Len(t, s, 66)
	assert.True(t, v == "0x1b" || v == "0x1c", v)

	_, err = SignatureFromHex(h[:128])
	assert.Error(t, err)
}

func TestSignatureFromBytesNormalizesV(t *testing.T) {
	raw := make([]byte, 65)
	raw[64] = 1
	sig, err := SignatureFromBytes(raw)
	require.NoError(t, err)
	assert.Equal(t, byte(28), sig.V)

	raw[64] = 5
	_, err = SignatureFromBytes(raw)
	assert.Error(t, err)
}

func TestES256K(t *testing.T) {
	k, err := GenerateKey()
	require.NoError(t, err)

	data := []byte("header.payload")
	sig, err := k.SignES256K(data)
	require.NoError(t, err)
	require.Len(t, sig, 64)

	pub, err := ParsePublicKey(k.PublicKey())
	require.NoError(t, err)
	assert.True(t, VerifyES256K(pub, data, sig))
	assert.False(t, VerifyES256K(pub, []byte("header.payloaX"), sig))
	assert.False(t, VerifyES256K(nil, data, sig))
}

func TestES256KAcceptsHighS(t *testing.T) {
	k, err := GenerateKey()
	require.NoError(t, err)
	pub, err := ParsePublicKey(k.PublicKey())
	require.NoError(t, err)

	data := []byte("header.payload")
	sig, err := k.SignES256K(data)
	require.NoError(t, err)

	n := crypto.S256().Params().N
	high := append([]byte(nil), sig...)
	new(big.Int).Sub(n, new(big.Int).SetBytes(sig[32:])).FillBytes(high[32:])
	require.NotEqual(t, sig, high)

	assert.True(t, VerifyES256K(pub, data, high))
	assert.False(t, VerifyES256K(pub, []byte("header.payloaX"), high))

	outOfRange := append([]byte(nil), sig...)
	n.FillBytes(outOfRange[32:])
	assert.False(t, VerifyES256K(pub, data, outOfRange))
	assert.False(t, VerifyES256K(pub, data, append(sig[:32:32], make([]byte, 32)...)))
}

func TestParsePublicKeyRejectsOffCurve(t *testing.T) {
	bad := make([]byte, PublicKeySize)
	bad[0] = 1
	_, err := ParsePublicKey(bad)
	assert.Error(t, err)

	_, err = ParsePublicKey(make([]byte, 10))
	assert.Error(t, err)
}
