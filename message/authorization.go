// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

package message

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/aumos-ai/did-delegator/keys"
	"github.com/aumos-ai/did-delegator/types"
)

// MinAuthorizationLen is the shortest well-formed encoded RotationAuthorization.
const MinAuthorizationLen = 2 * keys.SignatureHexLen

// RotationAuthorization is produced by the owner of a new key so that a third
// party holding the identity's current key can add it. Both signatures share
// one timestamp.
//
// Encoded form: sig1 (130 hex, r||s||v) | sig2 (130 hex) | timestamp (hex, no prefix).
type RotationAuthorization struct {
	// Association authorizes the new key being added to the identity.
	Association keys.Signature
	// PublicKey authorizes publishing the new key in the public-key resolver.
	PublicKey keys.Signature
	Timestamp uint64
}

// SignRotationAuthorization signs both halves with newKey.
func SignRotationAuthorization(identityRegistry, publicKeyResolver common.Address, ein *big.Int, newKey keys.Signer, ts uint64) (RotationAuthorization, error) {
	var auth RotationAuthorization
	assoc, err := AddedToIdentity(identityRegistry, ein, newKey.Address(), ts)
	if err != nil {
		return auth, err
	}
	pub, err := AddPublicKey(publicKeyResolver, newKey.Address(), newKey.PublicKey(), ts)
	if err != nil {
		return auth, err
	}
	if auth.Association, err = newKey.Sign(assoc); err != nil {
		return auth, fmt.Errorf("message: sign association: %w", err)
	}
	if auth.PublicKey, err = newKey.Sign(pub); err != nil {
		return auth, fmt.Errorf("message: sign public key: %w", err)
	}
	auth.Timestamp = ts
	return auth, nil
}

// Encode returns the positional string form.
func (a RotationAuthorization) Encode() string {
	return a.Association.Hex() + a.PublicKey.Hex() + strconv.FormatUint(a.Timestamp, 16)
}

func (a RotationAuthorization) String() string { return a.Encode() }

// ParseRotationAuthorization decodes an encoded RotationAuthorization.
func ParseRotationAuthorization(blob string) (RotationAuthorization, error) {
	var auth RotationAuthorization
	if len(blob) < MinAuthorizationLen {
		return auth, malformed(fmt.Sprintf("authorization is %d characters, want at least %d", len(blob), MinAuthorizationLen))
	}
	var err error
	if auth.Association, err = keys.SignatureFromHex(blob[:keys.SignatureHexLen]); err != nil {
		return auth, malformed(err.Error())
	}
	if auth.PublicKey, err = keys.SignatureFromHex(blob[keys.SignatureHexLen:MinAuthorizationLen]); err != nil {
		return auth, malformed(err.Error())
	}
	tail := blob[MinAuthorizationLen:]
	if tail == "" {
		return auth, malformed("authorization has no timestamp")
	}
	if auth.Timestamp, err = strconv.ParseUint(tail, 16, 64); err != nil {
		return auth, malformed("timestamp: " + err.Error())
	}
	return auth, nil
}

func malformed(msg string) error {
	return types.NewError(types.KindConstruction, "message: authorization", "malformed signature: "+msg)
}

// Check verifies that both signatures were produced by the owner of publicKey.
func (a RotationAuthorization) Check(identityRegistry, publicKeyResolver common.Address, ein *big.Int, publicKey []byte) error {
	owner, err := keys.PublicKeyToAddress(publicKey)
	if err != nil {
		return types.WrapError(types.KindConstruction, "message: check authorization", err)
	}
	assoc, err := AddedToIdentity(identityRegistry, ein, owner, a.Timestamp)
	if err != nil {
		return err
	}
	pub, err := AddPublicKey(publicKeyResolver, owner, publicKey, a.Timestamp)
	if err != nil {
		return err
	}
	for _, pair := range []struct {
		msg []byte
		sig keys.Signature
	}{{assoc, a.Association}, {pub, a.PublicKey}} {
		signer, err := keys.RecoverAddress(pair.msg, pair.sig)
		if err != nil || signer != owner {
			return malformed("authorization was not signed by the supplied public key")
		}
	}
	return nil
}
