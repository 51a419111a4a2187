// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

package identity

import (
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/multiformats/go-multibase"

	"github.com/aumos-ai/did-delegator/keys"
	"github.com/aumos-ai/did-delegator/types"
)

// ManagementKeyFragment names the key that manages an identity in its DID document.
const ManagementKeyFragment = "MetaManagementKey"

// VerificationKeyType is the document type of a secp256k1 public key entry.
const VerificationKeyType = "EcdsaSecp256k1VerificationKey2019"

const einHexLen = 64

// EinToDID formats ein as a DID under prefix, e.g. did:meta:testnet:000…02a.
func EinToDID(prefix string, ein *big.Int) string {
	return fmt.Sprintf("%s:%064x", prefix, ein)
}

// DIDToEIN parses the trailing 64 hex characters of did back to the EIN.
func DIDToEIN(did string) (*big.Int, error) {
	if len(did) < einHexLen+1 || did[len(did)-einHexLen-1] != ':' {
		return nil, &types.ErrInvalidDID{DID: did, Reason: "missing 64-character EIN suffix"}
	}
	ein, ok := new(big.Int).SetString(did[len(did)-einHexLen:], 16)
	if !ok {
		return nil, &types.ErrInvalidDID{DID: did, Reason: "EIN suffix is not hex"}
	}
	return ein, nil
}

// KeyID returns the management key id of addr under did:
// <did>#MetaManagementKey#<lowercase address without 0x>.
func KeyID(did string, addr common.Address) string {
	return did + "#" + ManagementKeyFragment + "#" + strings.ToLower(addr.Hex()[2:])
}

// DIDFromKeyID returns the part of kid before the first '#'.
func DIDFromKeyID(kid string) string {
	if i := strings.IndexByte(kid, '#'); i >= 0 {
		return kid[:i]
	}
	return kid
}

// DIDDocument is a resolved, read-only snapshot of a DID's keys.
type DIDDocument struct {
	Context            interface{}      `json:"@context,omitempty"`
	ID                 string           `json:"id"`
	PublicKey          []PublicKeyEntry `json:"publicKey,omitempty"`
	VerificationMethod []PublicKeyEntry `json:"verificationMethod,omitempty"`
	Authentication     []interface{}    `json:"authentication,omitempty"`
	Service            []Service        `json:"service,omitempty"`
}

// PublicKeyEntry is one key of a DID document. Exactly one key encoding is expected.
type PublicKeyEntry struct {
	ID                 string `json:"id"`
	Type               string `json:"type"`
	Controller         string `json:"controller,omitempty"`
	PublicKeyHex       string `json:"publicKeyHex,omitempty"`
	PublicKeyMultibase string `json:"publicKeyMultibase,omitempty"`
	PublicKeyJwk       *JWK   `json:"publicKeyJwk,omitempty"`
	PublicKeyHash      string `json:"publicKeyHash,omitempty"`
}

// JWK is an EC public key in JSON Web Key form.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// Service is a service endpoint entry.
type Service struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// FindKey returns the entry whose id equals kid.
func (d *DIDDocument) FindKey(kid string) (*PublicKeyEntry, bool) {
	for _, list := range [][]PublicKeyEntry{d.PublicKey, d.VerificationMethod} {
		for i := range list {
			if list[i].ID == kid {
				return &list[i], true
			}
		}
	}
	return nil, false
}

// ECDSAPublicKey decodes the entry's key material and checks it is on the curve.
func (e *PublicKeyEntry) ECDSAPublicKey() (*ecdsa.PublicKey, error) {
	raw, err := e.rawKey()
	if err != nil {
		return nil, err
	}
	pub, err := keys.ParsePublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("did: key %s: %w", e.ID, err)
	}
	return pub, nil
}

func (e *PublicKeyEntry) rawKey() ([]byte, error) {
	switch {
	case e.PublicKeyHex != "":
		return hex.DecodeString(strings.TrimPrefix(e.PublicKeyHex, "0x"))
	case e.PublicKeyMultibase != "":
		_, b, err := multibase.Decode(e.PublicKeyMultibase)
		return b, err
	case e.PublicKeyJwk != nil:
		if e.PublicKeyJwk.Kty != "EC" || e.PublicKeyJwk.Crv != "secp256k1" {
			return nil, fmt.Errorf("did: unsupported JWK %s/%s", e.PublicKeyJwk.Kty, e.PublicKeyJwk.Crv)
		}
		x, err := base64.RawURLEncoding.DecodeString(e.PublicKeyJwk.X)
		if err != nil {
			return nil, err
		}
		y, err := base64.RawURLEncoding.DecodeString(e.PublicKeyJwk.Y)
		if err != nil {
			return nil, err
		}
		return append(common.LeftPadBytes(x, 32), common.LeftPadBytes(y, 32)...), nil
	default:
		return nil, fmt.Errorf("did: key %s carries no public key material", e.ID)
	}
}

// BuildDIDDocument synthesizes the document a resolver would return for did
// managed by the 64-byte publicKey.
func BuildDIDDocument(did string, publicKey []byte) (*DIDDocument, error) {
	addr, err := keys.PublicKeyToAddress(publicKey)
	if err != nil {
		return nil, fmt.Errorf("did: build document: %w", err)
	}
	uncompressed := append([]byte{0x04}, publicKey...)
	mb, err := multibase.Encode(multibase.Base58BTC, uncompressed)
	if err != nil {
		return nil, fmt.Errorf("did: multibase encode: %w", err)
	}
	kid := KeyID(did, addr)
	return &DIDDocument{
		Context: "https://w3id.org/did/v0.11",
		ID:      did,
		PublicKey: []PublicKeyEntry{{
			ID:                 kid,
			Type:               VerificationKeyType,
			Controller:         did,
			PublicKeyHex:       hex.EncodeToString(uncompressed),
			PublicKeyMultibase: mb,
		}},
		Authentication: []interface{}{kid},
	}, nil
}
