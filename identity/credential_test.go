// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

package identity

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aumos-ai/did-delegator/keys"
)

func TestIssueCredentialClaims(t *testing.T) {
	k, err := keys.GenerateKey()
	require.NoError(t, err)
	issued := time.Unix(1700000000, 0)
	expires := issued.Add(24 * time.Hour)

	iss := NewIssuer("did:meta:issuer", "did:meta:issuer#MetaManagementKey#abc", k)
	token, err := iss.IssueCredential(IssueOptions{
		Types:      []string{"EmailCredential"},
		ID:         "http://example.com/credential/1",
		IssuedAt:   issued,
		ExpiresAt:  expires,
		SubjectDID: "did:meta:holder",
		Claims:     map[string]interface{}{"email": "a@example.com"},
	})
	require.NoError(t, err)

	parsed, err := ParseJWT(token)
	require.NoError(t, err)
	assert.Equal(t, AlgES256K, parsed.Header.Alg)
	assert.Equal(t, "did:meta:issuer#MetaManagementKey#abc", parsed.Header.Kid)
	assert.Len(t, parsed.Signature, 64)

	claims, err := ParseClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "did:meta:issuer", claims.Issuer)
	assert.Equal(t, "did:meta:holder", claims.Subject)
	assert.Equal(t, "http://example.com/credential/1", claims.ID)
	assert.Equal(t, issued.Unix(), claims.NotBefore)
	assert.Equal(t, expires.Unix(), claims.Expires)
	assert.NotEmpty(t, claims.Nonce)
	require.NotNil(t, claims.VC)
	assert.Equal(t, []string{TypeCredential, "EmailCredential"}, claims.VC.Type)
	assert.Equal(t, "did:meta:holder", claims.VC.CredentialSubject["id"])
	assert.Equal(t, "a@example.com", claims.VC.CredentialSubject["email"])
}

func TestIssueDefaults(t *testing.T) {
	k, err := keys.GenerateKey()
	require.NoError(t, err)
	iss := NewIssuer("did:meta:issuer", "kid", k)
	iss.now = func() time.Time { return time.Unix(100, 0) }

	a, err := iss.IssuePresentation(PresentOptions{})
	require.NoError(t, err)
	b, err := iss.IssuePresentation(PresentOptions{})
	require.NoError(t, err)

	ca, err := ParseClaims(a)
	require.NoError(t, err)
	cb, err := ParseClaims(b)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ca.ID, "urn:uuid:"))
	assert.NotEqual(t, ca.ID, cb.ID)
	assert.NotEqual(t, ca.Nonce, cb.Nonce)
	assert.Equal(t, int64(100), ca.IssuedAt)
	assert.Zero(t, ca.Expires)
	assert.Equal(t, []string{}, ca.VP.VerifiableCredential)
}
