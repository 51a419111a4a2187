// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

package delegator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/aumos-ai/did-delegator/keys"
	"github.com/aumos-ai/did-delegator/message"
	"github.com/aumos-ai/did-delegator/types"
)

const testTS = uint64(1700000000)

func testRegistry() *types.RegistryAddress {
	return &types.RegistryAddress{
		IdentityRegistry: "0xbe2bb3d7085ff04bde4b3f177a730a826f05cb70",
		Providers:        []string{"0x084f8293f1b047d3a217025b24cd7b5ace8fc657"},
		Resolvers:        []string{"0xf4f9790205ee559a379c519e04042b20560eefad", "0xd9f39ab902f835400cfb424529bb0423d7342331"},
		PublicKey:        "0xd9f39ab902f835400cfb424529bb0423d7342331",
		PublicKeyAll:     []string{"0xd9f39ab902f835400cfb424529bb0423d7342331"},
		ServiceKey:       "0xf4f9790205ee559a379c519e04042b20560eefad",
	}
}

type rpcError struct {
	code int
	msg  string
}

func (e *rpcError) Error() string  { return e.msg }
func (e *rpcError) ErrorCode() int { return e.code }

type relayCall struct {
	method string
	params Params
}

type fakeRelay struct {
	mu       sync.Mutex
	calls    []relayCall
	registry *types.RegistryAddress
	fail     map[string]error
	result   map[string]interface{}
	next     int64
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{
		registry: testRegistry(),
		fail:     make(map[string]error),
		result:   make(map[string]interface{}),
	}
}

func (f *fakeRelay) CallContext(_ context.Context, result interface{}, method string, args ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var p Params
	if len(args) == 1 {
		p, _ = args[0].(Params)
	}
	f.calls = append(f.calls, relayCall{method: method, params: p})
	if err, ok := f.fail[method]; ok {
		return err
	}
	var v interface{}
	switch {
	case method == methodRegistryAddress:
		v = f.registry
	case f.result[method] != nil:
		v = f.result[method]
	default:
		f.next++
		v = common.BigToHash(big.NewInt(f.next)).Hex()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, result)
}

func (f *fakeRelay) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.method
	}
	return out
}

func (f *fakeRelay) last(method string) Params {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].method == method {
			return f.calls[i].params
		}
	}
	return nil
}

type fakeLedger struct {
	mu         sync.Mutex
	pending    int
	seen       map[common.Hash]int
	failed     map[common.Hash]bool
	receiptErr error
	block      uint64
	logs       []*ethtypes.Log

	ein       *big.Int
	has       bool
	identity  Identity
	publicKey []byte
	views     []string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		seen:   make(map[common.Hash]int),
		failed: make(map[common.Hash]bool),
		block:  100,
		ein:    big.NewInt(0x2a),
	}
}

func (l *fakeLedger) HeaderByNumber(context.Context, *big.Int) (*ethtypes.Header, error) {
	return &ethtypes.Header{Time: testTS}, nil
}

func (l *fakeLedger) BlockNumber(context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.block, nil
}

func (l *fakeLedger) TransactionReceipt(_ context.Context, h common.Hash) (*ethtypes.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.receiptErr != nil {
		return nil, l.receiptErr
	}
	l.seen[h]++
	if l.seen[h] <= l.pending {
		return nil, ethereum.NotFound
	}
	status := ethtypes.ReceiptStatusSuccessful
	if l.failed[h] {
		status = ethtypes.ReceiptStatusFailed
	}
	l.block++
	return &ethtypes.Receipt{Status: status, TxHash: h, BlockNumber: new(big.Int).SetUint64(l.block), Logs: l.logs}, nil
}

func (l *fakeLedger) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, err := registryABI.MethodById(call.Data[:4]); err == nil {
		l.views = append(l.views, m.Name)
		switch m.Name {
		case "getEIN":
			return m.Outputs.Pack(l.ein)
		case "hasIdentity":
			return m.Outputs.Pack(l.has)
		case "getIdentity":
			return m.Outputs.Pack(l.identity.RecoveryAddress, l.identity.AssociatedAddresses, l.identity.Providers, l.identity.Resolvers)
		}
	}
	if m, err := publicKeyResolverABI.MethodById(call.Data[:4]); err == nil {
		l.views = append(l.views, m.Name)
		return m.Outputs.Pack(l.publicKey)
	}
	return nil, fmt.Errorf("unexpected call %x", call.Data[:4])
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, relay Relay, ledger Ledger, mutate ...func(*Options)) *Client {
	t.Helper()
	opts := Options{
		DIDPrefix: "did:meta:testnet",
		Clock:     message.FixedClock(testTS),
		Confirm: ConfirmOptions{
			Interval:    time.Millisecond,
			MaxInterval: 2 * time.Millisecond,
			Timeout:     500 * time.Millisecond,
		},
		Logger: quietLogger(),
	}
	for _, m := range mutate {
		m(&opts)
	}
	c, err := New(relay, ledger, opts)
	require.NoError(t, err)
	return c
}

func sigFromParams(t *testing.T, v, r, s string) keys.Signature {
	t.Helper()
	raw := append(append(hexutil.MustDecode(r), hexutil.MustDecode(s)...), hexutil.MustDecode(v)...)
	sig, err := keys.SignatureFromBytes(raw)
	require.NoError(t, err)
	return sig
}

func mustKey(t *testing.T) *keys.Key {
	t.Helper()
	k, err := keys.GenerateKey()
	require.NoError(t, err)
	return k
}
