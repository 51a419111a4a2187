// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

package delegator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aumos-ai/did-delegator/types"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// jsonRPCServer answers every call with reply(method). A nil result with a
// non-nil error object produces a JSON-RPC error response.
type jsonRPCServer struct {
	*httptest.Server
	mu      sync.Mutex
	apiKeys []string
	params  map[string]json.RawMessage
}

func newJSONRPCServer(t *testing.T, reply func(method string) (result interface{}, rpcErr map[string]interface{})) *jsonRPCServer {
	t.Helper()
	s := &jsonRPCServer{params: make(map[string]json.RawMessage)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.apiKeys = append(s.apiKeys, r.Header.Get(APIKeyHeader))
		if len(req.Params) > 0 {
			s.params[req.Method] = req.Params[0]
		}
		s.mu.Unlock()

		result, rpcErr := reply(req.Method)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(s.Close)
	return s
}

func dialTestRelay(t *testing.T, url, apiKey string) (*Client, *Metrics) {
	t.Helper()
	relay, err := DialRelay(context.Background(), url, apiKey, nil)
	require.NoError(t, err)
	t.Cleanup(relay.Close)
	metrics := NewMetrics(prometheus.NewRegistry())
	return newTestClient(t, relay, newFakeLedger(), func(o *Options) { o.Metrics = metrics }), metrics
}

func TestRelayOverJSONRPC(t *testing.T) {
	srv := newJSONRPCServer(t, func(method string) (interface{}, map[string]interface{}) {
		if method == methodRegistryAddress {
			return testRegistry(), nil
		}
		return "0x00000000000000000000000000000000000000000000000000000000000000ff", nil
	})
	c, metrics := dialTestRelay(t, srv.URL, "secret")
	key := mustKey(t)

	hash, err := c.CreateIdentityTx(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, byte(0xff), hash[31])

	assert.Equal(t, []string{"secret", "secret"}, srv.apiKeys)

	var params map[string]interface{}
	require.NoError(t, json.Unmarshal(srv.params[string(OpCreateIdentity)], &params))
	assert.Equal(t, lower(key.Address()), params["recovery_address"])
	assert.EqualValues(t, testTS, params["timestamp"])
	assert.Len(t, params["v"], 4)
	assert.Len(t, params["r"], 66)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.relayRequests.WithLabelValues(string(OpCreateIdentity), "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.relayRequests.WithLabelValues(methodRegistryAddress, "ok")))
}

func TestRelayDefaultAPIKey(t *testing.T) {
	srv := newJSONRPCServer(t, func(string) (interface{}, map[string]interface{}) {
		return testRegistry(), nil
	})
	c, _ := dialTestRelay(t, srv.URL, "")

	_, err := c.Directory().RegistryAddress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultAPIKey}, srv.apiKeys)
}

func TestRelayErrorResponse(t *testing.T) {
	srv := newJSONRPCServer(t, func(method string) (interface{}, map[string]interface{}) {
		if method == methodRegistryAddress {
			return testRegistry(), nil
		}
		return nil, map[string]interface{}{"code": -32000, "message": "already exists"}
	})
	c, metrics := dialTestRelay(t, srv.URL, "k")

	_, err := c.CreateIdentityTx(context.Background(), mustKey(t))
	var e *types.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, types.KindRelay, e.Kind)
	assert.Equal(t, -32000, e.Code)
	assert.Equal(t, "already exists", e.Message)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.relayRequests.WithLabelValues(string(OpCreateIdentity), "relay_error")))
}

func TestRelayHTTPFailureIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()
	c, metrics := dialTestRelay(t, srv.URL, "k")

	_, err := c.Directory().RegistryAddress(context.Background())
	assert.True(t, types.IsKind(err, types.KindNetwork), "%v", err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.relayRequests.WithLabelValues(methodRegistryAddress, "network_error")))
}

func TestRateLimitedRelayHonoursContext(t *testing.T) {
	relay := newFakeRelay()
	c := newTestClient(t, relay, newFakeLedger(), func(o *Options) {
		o.RateLimit = 0.001
		o.Burst = 1
	})
	_, err := c.Directory().RegistryAddress(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.CreateIdentityTx(ctx, mustKey(t))
	assert.True(t, types.IsKind(err, types.KindNetwork), "%v", err)
	assert.Len(t, relay.methods(), 1)
}

func TestNewRequiresPrefix(t *testing.T) {
	_, err := New(newFakeRelay(), newFakeLedger(), Options{})
	assert.True(t, types.IsKind(err, types.KindConfig))
	_, err = New(nil, newFakeLedger(), Options{DIDPrefix: "did:meta"})
	assert.True(t, types.IsKind(err, types.KindConfig))
}
