// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

package identity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aumos-ai/did-delegator/types"
)

// W3C context and base types.
const (
	CredentialsContext = "https://www.w3.org/2018/credentials/v1"
	TypeCredential     = "VerifiableCredential"
	TypePresentation   = "VerifiablePresentation"
)

// Claims is the JWT payload of a credential or presentation.
type Claims struct {
	Issuer    string            `json:"iss"`
	Subject   string            `json:"sub,omitempty"`
	ID        string            `json:"jti,omitempty"`
	IssuedAt  int64             `json:"iat,omitempty"`
	NotBefore int64             `json:"nbf,omitempty"`
	Expires   int64             `json:"exp,omitempty"`
	Nonce     string            `json:"nonce,omitempty"`
	VC        *CredentialBody   `json:"vc,omitempty"`
	VP        *PresentationBody `json:"vp,omitempty"`
}

// CredentialBody is the "vc" claim.
type CredentialBody struct {
	Context           []string               `json:"@context"`
	Type              []string               `json:"type"`
	CredentialSubject map[string]interface{} `json:"credentialSubject"`
}

// PresentationBody is the "vp" claim. Credentials are compact JWS strings.
type PresentationBody struct {
	Context              []string `json:"@context"`
	Type                 []string `json:"type"`
	VerifiableCredential []string `json:"verifiableCredential"`
}

// IssueOptions carries parameters for Issuer.IssueCredential.
type IssueOptions struct {
	// Types are appended to ["VerifiableCredential"].
	Types []string
	// ID defaults to a random urn:uuid.
	ID string
	// IssuedAt defaults to now.
	IssuedAt  time.Time
	ExpiresAt time.Time
	// SubjectDID becomes the sub claim and credentialSubject.id.
	SubjectDID string
	Claims     map[string]interface{}
}

// PresentOptions carries parameters for Issuer.IssuePresentation.
type PresentOptions struct {
	Types       []string
	ID          string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Credentials []string
}

// Issuer signs credentials and presentations as ES256K JWTs on behalf of one DID.
type Issuer struct {
	did    string
	kid    string
	signer ES256KSigner
	now    func() time.Time
}

// NewIssuer constructs an Issuer whose tokens carry kid in their header.
func NewIssuer(did, kid string, signer ES256KSigner) *Issuer {
	return &Issuer{did: did, kid: kid, signer: signer, now: time.Now}
}

// IssueCredential signs a verifiable credential.
func (i *Issuer) IssueCredential(opts IssueOptions) (string, error) {
	subject := make(map[string]interface{}, len(opts.Claims)+1)
	for k, v := range opts.Claims {
		subject[k] = v
	}
	if opts.SubjectDID != "" {
		subject["id"] = opts.SubjectDID
	}
	claims := i.baseClaims(opts.ID, opts.IssuedAt, opts.ExpiresAt)
	claims.Subject = opts.SubjectDID
	claims.VC = &CredentialBody{
		Context:           []string{CredentialsContext},
		Type:              append([]string{TypeCredential}, opts.Types...),
		CredentialSubject: subject,
	}
	token, err := SignJWT(i.signer, i.kid, claims)
	if err != nil {
		return "", fmt.Errorf("credential: issue: %w", err)
	}
	return token, nil
}

// IssuePresentation signs a presentation wrapping already issued credentials.
func (i *Issuer) IssuePresentation(opts PresentOptions) (string, error) {
	claims := i.baseClaims(opts.ID, opts.IssuedAt, opts.ExpiresAt)
	claims.VP = &PresentationBody{
		Context:              []string{CredentialsContext},
		Type:                 append([]string{TypePresentation}, opts.Types...),
		VerifiableCredential: append([]string{}, opts.Credentials...),
	}
	token, err := SignJWT(i.signer, i.kid, claims)
	if err != nil {
		return "", fmt.Errorf("credential: present: %w", err)
	}
	return token, nil
}

func (i *Issuer) baseClaims(id string, issued, expires time.Time) *Claims {
	if id == "" {
		id = "urn:uuid:" + uuid.NewString()
	}
	if issued.IsZero() {
		issued = i.now()
	}
	c := &Claims{
		Issuer:    i.did,
		ID:        id,
		IssuedAt:  issued.Unix(),
		NotBefore: issued.Unix(),
		Nonce:     uuid.NewString(),
	}
	if !expires.IsZero() {
		c.Expires = expires.Unix()
	}
	return c
}

// ParseClaims decodes a token's payload without verifying it.
func ParseClaims(token string) (*Claims, error) {
	parsed, err := ParseJWT(token)
	if err != nil {
		return nil, err
	}
	var c Claims
	if err := json.Unmarshal(parsed.Payload, &c); err != nil {
		return nil, types.TrustError(types.TrustInvalidSignature, "credential: parse claims", err.Error())
	}
	return &c, nil
}
