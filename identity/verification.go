// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

package identity

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aumos-ai/did-delegator/keys"
	"github.com/aumos-ai/did-delegator/types"
)

// VerificationResult describes the outcome of Verifier.Check.
type VerificationResult struct {
	// Valid is the result of the signature check alone. Expiry and issuer
	// claims are left to the caller.
	Valid     bool
	KeyID     string
	IssuerDID string
}

// Verifier authenticates signed credentials and presentations against the
// signer's currently published public key.
type Verifier struct {
	resolver Resolver
	logger   *slog.Logger
}

// NewVerifier constructs a Verifier. Pass a *CachingResolver to avoid one
// network call per verification.
func NewVerifier(resolver Resolver, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{resolver: resolver, logger: logger}
}

// Verify reports whether token's signature matches the key named by its kid header.
func (v *Verifier) Verify(ctx context.Context, token string) (bool, error) {
	res, err := v.Check(ctx, token)
	if err != nil {
		return false, err
	}
	return res.Valid, nil
}

// Check is Verify with the resolved key id and issuer DID.
func (v *Verifier) Check(ctx context.Context, token string) (*VerificationResult, error) {
	const op = "verify"
	parsed, err := ParseJWT(token)
	if err != nil {
		return nil, err
	}
	if parsed.Header.Alg != AlgES256K {
		return nil, types.TrustError(types.TrustInvalidSignature, op, "unsupported alg "+parsed.Header.Alg)
	}
	kid := parsed.Header.Kid
	if kid == "" {
		return nil, types.TrustError(types.TrustInvalidSignature, op, "token header has no kid")
	}
	if strings.IndexByte(kid, '#') < 0 {
		return nil, types.TrustError(types.TrustInvalidSignature, op, "key id "+kid+" names no key of a DID")
	}
	did := DIDFromKeyID(kid)

	doc, err := v.resolver.Resolve(ctx, did)
	if err != nil {
		return nil, err
	}
	entry, ok := doc.FindKey(kid)
	if !ok {
		return nil, types.TrustError(types.TrustUnknownKey, op, kid)
	}
	pub, err := entry.ECDSAPublicKey()
	if err != nil {
		return nil, &types.Error{Kind: types.KindTrust, Op: op, Reason: types.TrustInvalidKey, Message: kid, Cause: err}
	}

	valid := keys.VerifyES256K(pub, []byte(parsed.SigningInput), parsed.Signature)
	v.logger.Debug("verified token", "kid", kid, "valid", valid)
	return &VerificationResult{Valid: valid, KeyID: kid, IssuerDID: did}, nil
}
