// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

package identity

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aumos-ai/did-delegator/types"
)

// AlgES256K is the JOSE algorithm name for ECDSA over secp256k1 with SHA-256.
const AlgES256K = "ES256K"

// ES256KSigner produces 64-byte r||s signatures over SHA-256 of its input.
// *keys.Key satisfies it.
type ES256KSigner interface {
	SignES256K(data []byte) ([]byte, error)
}

// JWSHeader is the protected header of a signed token.
type JWSHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ,omitempty"`
	Kid string `json:"kid"`
}

// SignedToken is a compact JWS split into its parts. It is not verified.
type SignedToken struct {
	Header       JWSHeader
	Payload      []byte
	SigningInput string
	Signature    []byte
}

// SignJWT serializes claims and signs them as a compact JWS with kid in the header.
func SignJWT(signer ES256KSigner, kid string, claims interface{}) (string, error) {
	header, err := json.Marshal(JWSHeader{Alg: AlgES256K, Typ: "JWT", Kid: kid})
	if err != nil {
		return "", fmt.Errorf("jwt: marshal header: %w", err)
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("jwt: marshal claims: %w", err)
	}
	signingInput := base64URLEncode(header) + "." + base64URLEncode(payload)
	sig, err := signer.SignES256K([]byte(signingInput))
	if err != nil {
		return "", fmt.Errorf("jwt: sign: %w", err)
	}
	return signingInput + "." + base64URLEncode(sig), nil
}

// ParseJWT splits and decodes a compact JWS without checking its signature.
func ParseJWT(token string) (*SignedToken, error) {
	const op = "jwt: parse"
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, types.TrustError(types.TrustInvalidSignature, op, "token must have three segments")
	}
	headerJSON, err := base64URLDecode(parts[0])
	if err != nil {
		return nil, types.TrustError(types.TrustInvalidSignature, op, "decode header: "+err.Error())
	}
	var header JWSHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, types.TrustError(types.TrustInvalidSignature, op, "parse header: "+err.Error())
	}
	payload, err := base64URLDecode(parts[1])
	if err != nil {
		return nil, types.TrustError(types.TrustInvalidSignature, op, "decode payload: "+err.Error())
	}
	sig, err := base64URLDecode(parts[2])
	if err != nil {
		return nil, types.TrustError(types.TrustInvalidSignature, op, "decode signature: "+err.Error())
	}
	return &SignedToken{
		Header:       header,
		Payload:      payload,
		SigningInput: parts[0] + "." + parts[1],
		Signature:    sig,
	}, nil
}

func base64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

func base64URLDecode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}
