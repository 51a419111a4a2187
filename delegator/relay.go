// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

package delegator

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"

	"github.com/aumos-ai/did-delegator/keys"
	"github.com/aumos-ai/did-delegator/types"
)

// Operation names a delegated relay method.
type Operation string

const (
	OpCreateIdentity          Operation = "create_identity"
	OpAddPublicKey            Operation = "add_public_key_delegated"
	OpRemovePublicKey         Operation = "remove_public_key_delegated"
	OpAddAssociatedAddress    Operation = "add_associated_address_delegated"
	OpRemoveAssociatedAddress Operation = "remove_associated_address_delegated"
	OpAddServiceKey           Operation = "add_key_delegated"
	OpRemoveServiceKey        Operation = "remove_key_delegated"
	OpRemoveAllServiceKeys    Operation = "remove_keys_delegated"
)

// APIKeyHeader carries the relay API key on every request.
const APIKeyHeader = "API-KEY"

// DefaultAPIKey is sent when no key is configured.
const DefaultAPIKey = "UNKOWN"

// Relay is a JSON-RPC client. *rpc.Client satisfies it.
type Relay interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// DialRelay connects to the relay endpoint and attaches the API key header.
func DialRelay(ctx context.Context, url, apiKey string, httpClient *http.Client) (*rpc.Client, error) {
	if apiKey == "" {
		apiKey = DefaultAPIKey
	}
	opts := []rpc.ClientOption{rpc.WithHeader(APIKeyHeader, apiKey)}
	if httpClient != nil {
		opts = append(opts, rpc.WithHTTPClient(httpClient))
	}
	c, err := rpc.DialOptions(ctx, url, opts...)
	if err != nil {
		return nil, types.WrapError(types.KindNetwork, "delegator: dial relay", err)
	}
	return c, nil
}

// Params is the single object passed to a delegated method.
type Params map[string]interface{}

func (p Params) withSignature(sig keys.Signature) Params {
	p["v"], p["r"], p["s"] = sig.VRS()
	return p
}

func hexAddress(a common.Address) string {
	return strings.ToLower(a.Hex())
}

func hexAddresses(as []common.Address) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = hexAddress(a)
	}
	return out
}

type relayCaller struct {
	relay   Relay
	limiter *rate.Limiter
	metrics *Metrics
	logger  *slog.Logger
}

func (r *relayCaller) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return types.WrapError(types.KindNetwork, method, err)
		}
	}
	start := time.Now()
	err := r.relay.CallContext(ctx, result, method, args...)
	outcome := "ok"
	if err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			outcome = "relay_error"
			err = &types.Error{Kind: types.KindRelay, Op: method, Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
		} else {
			outcome = "network_error"
			err = types.WrapError(types.KindNetwork, method, err)
		}
	}
	r.metrics.observeRelay(method, outcome)
	if r.logger != nil {
		r.logger.Debug("relay call", "method", method, "outcome", outcome, "elapsed", time.Since(start))
	}
	return err
}

// Submit sends a delegated operation and returns the relay's transaction hash.
func (c *Client) Submit(ctx context.Context, op Operation, params Params) (common.Hash, error) {
	var result string
	if err := c.relay.call(ctx, &result, string(op), params); err != nil {
		return common.Hash{}, err
	}
	if len(result) != 2+2*common.HashLength || !strings.HasPrefix(result, "0x") {
		return common.Hash{}, types.NewError(types.KindNetwork, string(op), "relay returned malformed transaction hash "+result)
	}
	hash := common.HexToHash(result)
	c.logger.Info("submitted delegated operation", "method", op, "tx", hash.Hex())
	return hash, nil
}
