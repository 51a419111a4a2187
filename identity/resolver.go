// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aumos-ai/did-delegator/types"
)

// Resolver resolves a DID to its current document.
type Resolver interface {
	Resolve(ctx context.Context, did string) (*DIDDocument, error)
}

// ResolverOptions configures an HTTPResolver.
type ResolverOptions struct {
	// BaseURL is the resolver root; documents are fetched from <BaseURL>/identifiers/<did>. Required.
	BaseURL string
	// HTTPClient defaults to a client with a 10s timeout.
	HTTPClient *http.Client
	// MaxResponseBytes caps the size of a fetched response (default 1 MiB).
	MaxResponseBytes int64
	Logger           *slog.Logger
}

// HTTPResolver fetches DID documents from a universal-resolver style endpoint.
type HTTPResolver struct {
	baseURL          string
	httpClient       *http.Client
	maxResponseBytes int64
	logger           *slog.Logger
}

// NewHTTPResolver constructs an HTTPResolver with the provided options.
func NewHTTPResolver(opts ResolverOptions) (*HTTPResolver, error) {
	if opts.BaseURL == "" {
		return nil, types.NewError(types.KindConfig, "resolver", "base URL is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	maxBytes := opts.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPResolver{
		baseURL:          strings.TrimRight(opts.BaseURL, "/"),
		httpClient:       client,
		maxResponseBytes: maxBytes,
		logger:           logger,
	}, nil
}

// resolution is the envelope returned by the resolver. Some deployments
// return the bare document instead.
type resolution struct {
	DIDDocument json.RawMessage `json:"didDocument"`
}

// Resolve implements Resolver.
func (r *HTTPResolver) Resolve(ctx context.Context, did string) (*DIDDocument, error) {
	const op = "resolver: resolve"
	endpoint := r.baseURL + "/identifiers/" + url.PathEscape(did)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, types.WrapError(types.KindResolver, op, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, types.WrapError(types.KindResolver, op, err)
	}
	defer resp.Body.Close()
	r.logger.Debug("resolver response", "did", did, "status", resp.StatusCode, "elapsed", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, types.TrustError(types.TrustNotFound, op, "no document for "+did)
	case resp.StatusCode != http.StatusOK:
		return nil, types.NewError(types.KindResolver, op, fmt.Sprintf("HTTP %d from %s", resp.StatusCode, endpoint))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxResponseBytes))
	if err != nil {
		return nil, types.WrapError(types.KindResolver, op, err)
	}

	raw := body
	var env resolution
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, types.WrapError(types.KindResolver, op, fmt.Errorf("parse JSON: %w", err))
	}
	if env.DIDDocument != nil {
		raw = env.DIDDocument
	}
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, types.TrustError(types.TrustNotFound, op, "no document for "+did)
	}

	var doc DIDDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, types.WrapError(types.KindResolver, op, fmt.Errorf("parse document: %w", err))
	}
	if doc.ID == "" {
		return nil, types.TrustError(types.TrustNotFound, op, "no document for "+did)
	}
	if doc.ID != did {
		return nil, types.NewError(types.KindResolver, op, fmt.Sprintf("document ID %q does not match requested DID", doc.ID))
	}
	return &doc, nil
}
