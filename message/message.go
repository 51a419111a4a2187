// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

// Package message builds the byte sequences a key holder signs to authorize
// delegated registry operations.
//
// Every message has the layout
//
//	0x19 0x00 | target contract (20 bytes) | purpose (ASCII) | fields... | timestamp (32 bytes, big-endian)
//
// and is a pure function of its inputs, so the relay can recover the signer
// from the message and the signature alone.
package message

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/aumos-ai/did-delegator/keys"
	"github.com/aumos-ai/did-delegator/types"
)

// Purpose sentences, fixed per operation.
const (
	PurposeCreateIdentity          = "I authorize the creation of an Identity on my behalf."
	PurposeAddAssociatedAddress    = "I authorize adding this address to my Identity."
	PurposeAddedToIdentity         = "I authorize being added to this Identity."
	PurposeRemoveAssociatedAddress = "I authorize removing this address from my Identity."
	PurposeAddPublicKey            = "I authorize the addition of a public key on my behalf."
	PurposeRemovePublicKey         = "I authorize the removal of a public key on my behalf."
	PurposeAddServiceKey           = "I authorize the addition of a service key on my behalf."
	PurposeRemoveServiceKey        = "I authorize the removal of a service key on my behalf."
	PurposeRemoveAllServiceKeys    = "I authorize the removal of all service keys on my behalf."
)

var versionPrefix = []byte{0x19, 0x00}

const wordSize = 32

func constructionErr(op, msg string) error {
	return types.NewError(types.KindConstruction, "message: "+op, msg)
}

func build(op string, target common.Address, purpose string, ts uint64, fields ...[]byte) ([]byte, error) {
	if target == (common.Address{}) {
		return nil, constructionErr(op, "target contract address is zero")
	}
	if ts == 0 {
		return nil, constructionErr(op, "timestamp is zero")
	}
	size := len(versionPrefix) + common.AddressLength + len(purpose) + wordSize
	for _, f := range fields {
		size += len(f)
	}
	out := make([]byte, 0, size)
	out = append(out, versionPrefix...)
	out = append(out, target.Bytes()...)
	out = append(out, purpose...)
	for _, f := range fields {
		out = append(out, f...)
	}
	return append(out, new(big.Int).SetUint64(ts).FillBytes(make([]byte, wordSize))...), nil
}

func einWord(op string, ein *big.Int) ([]byte, error) {
	if ein == nil || ein.Sign() < 0 || ein.BitLen() > 8*wordSize {
		return nil, constructionErr(op, "EIN must be a non-negative 256-bit integer")
	}
	return ein.FillBytes(make([]byte, wordSize)), nil
}

func paddedAddresses(addrs []common.Address) []byte {
	out := make([]byte, 0, len(addrs)*wordSize)
	for _, a := range addrs {
		out = append(out, common.LeftPadBytes(a.Bytes(), wordSize)...)
	}
	return out
}

// CreateIdentity builds the create_identity authorization.
func CreateIdentity(registry, recovery, associated common.Address, providers, resolvers []common.Address, ts uint64) ([]byte, error) {
	return build("create_identity", registry, PurposeCreateIdentity, ts,
		recovery.Bytes(), associated.Bytes(), paddedAddresses(providers), paddedAddresses(resolvers))
}

// AddAssociatedAddress builds the approving key's half of add_associated_address_delegated.
func AddAssociatedAddress(registry common.Address, ein *big.Int, toAdd common.Address, ts uint64) ([]byte, error) {
	w, err := einWord("add_associated_address", ein)
	if err != nil {
		return nil, err
	}
	return build("add_associated_address", registry, PurposeAddAssociatedAddress, ts, w, toAdd.Bytes())
}

// AddedToIdentity builds the added key's half of add_associated_address_delegated.
func AddedToIdentity(registry common.Address, ein *big.Int, toAdd common.Address, ts uint64) ([]byte, error) {
	w, err := einWord("added_to_identity", ein)
	if err != nil {
		return nil, err
	}
	return build("added_to_identity", registry, PurposeAddedToIdentity, ts, w, toAdd.Bytes())
}

// RemoveAssociatedAddress builds the remove_associated_address_delegated authorization.
func RemoveAssociatedAddress(registry common.Address, ein *big.Int, toRemove common.Address, ts uint64) ([]byte, error) {
	w, err := einWord("remove_associated_address", ein)
	if err != nil {
		return nil, err
	}
	return build("remove_associated_address", registry, PurposeRemoveAssociatedAddress, ts, w, toRemove.Bytes())
}

// AddPublicKey builds the add_public_key_delegated authorization. Keys shorter
// than 64 bytes are left-padded with zeros.
func AddPublicKey(resolver, associated common.Address, publicKey []byte, ts uint64) ([]byte, error) {
	if len(publicKey) == 0 || len(publicKey) > keys.PublicKeySize {
		return nil, constructionErr("add_public_key", "public key must be 1..64 bytes")
	}
	return build("add_public_key", resolver, PurposeAddPublicKey, ts,
		associated.Bytes(), common.LeftPadBytes(publicKey, keys.PublicKeySize))
}

// RemovePublicKey builds the remove_public_key_delegated authorization.
func RemovePublicKey(resolver, associated common.Address, ts uint64) ([]byte, error) {
	return build("remove_public_key", resolver, PurposeRemovePublicKey, ts, associated.Bytes())
}

// AddServiceKey builds the add_key_delegated authorization.
func AddServiceKey(resolver, key common.Address, symbol string, ts uint64) ([]byte, error) {
	if symbol == "" {
		return nil, constructionErr("add_service_key", "service symbol is empty")
	}
	return build("add_service_key", resolver, PurposeAddServiceKey, ts, key.Bytes(), []byte(symbol))
}

// RemoveServiceKey builds the remove_key_delegated authorization.
func RemoveServiceKey(resolver, key common.Address, ts uint64) ([]byte, error) {
	return build("remove_service_key", resolver, PurposeRemoveServiceKey, ts, key.Bytes())
}

// RemoveAllServiceKeys builds the remove_keys_delegated authorization.
func RemoveAllServiceKeys(resolver common.Address, ts uint64) ([]byte, error) {
	return build("remove_all_service_keys", resolver, PurposeRemoveAllServiceKeys, ts)
}
