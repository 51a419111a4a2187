// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

package wallet

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/aumos-ai/did-delegator/identity"
	"github.com/aumos-ai/did-delegator/keys"
	"github.com/aumos-ai/did-delegator/message"
	"github.com/aumos-ai/did-delegator/types"
)

const testPrefix = "did:meta:testnet"

var (
	testRegistry = common.HexToAddress("0xbe2bb3d7085ff04bde4b3f177a730a826f05cb70")
	testResolver = common.HexToAddress("0xd9f39ab902f835400cfb424529bb0423d7342331")
	testEIN      = big.NewInt(0x2a)
	testDID      = identity.EinToDID(testPrefix, testEIN)

	identityCreatedTopic = crypto.Keccak256Hash([]byte("IdentityCreated(address,uint256,address,address,address[],address[],bool)"))
)

// scriptedDelegator records every call as "Method(label,...)" and fails the
// calls listed in fail. Each confirmed call is mined in the next block.
type scriptedDelegator struct {
	mu     sync.Mutex
	calls  []string
	labels map[common.Address]string
	fail   map[string]error
	failOn map[string]error
	block  int64
	has    bool
	noLogs bool
}

func newScripted() *scriptedDelegator {
	return &scriptedDelegator{
		labels: make(map[common.Address]string),
		fail:   make(map[string]error),
		failOn: make(map[string]error),
	}
}

func (d *scriptedDelegator) label(addr common.Address, name string) {
	d.mu.Lock()
	d.labels[addr] = name
	d.mu.Unlock()
}

func (d *scriptedDelegator) failWith(call string) *types.Error {
	err := &types.Error{Kind: types.KindTransactionRejected, Op: call, TxHash: "0xbad"}
	d.fail[call] = err
	return err
}

// failMethod fails every call of method whatever its arguments.
func (d *scriptedDelegator) failMethod(method string) {
	d.failOn[method] = &types.Error{Kind: types.KindTransactionRejected, Op: method, TxHash: "0xbad"}
}

func (d *scriptedDelegator) history() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *scriptedDelegator) record(method string, addrs ...common.Address) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, len(addrs))
	for i, a := range addrs {
		if n, ok := d.labels[a]; ok {
			names[i] = n
		} else {
			names[i] = strings.ToLower(a.Hex())
		}
	}
	call := fmt.Sprintf("%s(%s)", method, strings.Join(names, ","))
	d.calls = append(d.calls, call)
	if err, ok := d.fail[call]; ok {
		return err
	}
	return d.failOn[method]
}

func (d *scriptedDelegator) mined(method string, addrs ...common.Address) (*ethtypes.Receipt, error) {
	if err := d.record(method, addrs...); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.block++
	return &ethtypes.Receipt{
		Status:      ethtypes.ReceiptStatusSuccessful,
		TxHash:      common.BigToHash(big.NewInt(d.block)),
		BlockNumber: big.NewInt(d.block),
	}, nil
}

func (d *scriptedDelegator) submitted(ctx context.Context, method string, addrs ...common.Address) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	if err := d.record(method, addrs...); err != nil {
		return common.Hash{}, err
	}
	return common.HexToHash("0xc0"), nil
}

func owner(pub []byte) common.Address {
	addr, _ := keys.PublicKeyToAddress(pub)
	return addr
}

func (d *scriptedDelegator) DIDPrefix() string { return testPrefix }

func (d *scriptedDelegator) HasIdentity(_ context.Context, addr common.Address) (bool, error) {
	if err := d.record("HasIdentity", addr); err != nil {
		return false, err
	}
	return d.has, nil
}

func (d *scriptedDelegator) CreateIdentity(_ context.Context, key keys.Signer) (*ethtypes.Receipt, error) {
	r, err := d.mined("CreateIdentity", key.Address())
	if err != nil || d.noLogs {
		return r, err
	}
	r.Logs = []*ethtypes.Log{{Topics: []common.Hash{
		identityCreatedTopic,
		common.BytesToHash(key.Address().Bytes()),
		common.BigToHash(testEIN),
	}}}
	return r, nil
}

func (d *scriptedDelegator) AddPublicKey(_ context.Context, key keys.Signer) (*ethtypes.Receipt, error) {
	return d.mined("AddPublicKey", key.Address())
}

func (d *scriptedDelegator) AddPublicKeyWithSignature(_ context.Context, pub []byte, _ keys.Signature, _ uint64) (*ethtypes.Receipt, error) {
	return d.mined("AddPublicKeyWithSignature", owner(pub))
}

func (d *scriptedDelegator) RemovePublicKey(_ context.Context, key keys.Signer) (*ethtypes.Receipt, error) {
	return d.mined("RemovePublicKey", key.Address())
}

func (d *scriptedDelegator) AddAssociatedAddress(_ context.Context, approver, added keys.Signer) (*ethtypes.Receipt, error) {
	return d.mined("AddAssociatedAddress", approver.Address(), added.Address())
}

func (d *scriptedDelegator) AddAssociatedAddressWithSignature(_ context.Context, approver keys.Signer, pub []byte, _ keys.Signature, _ uint64) (*ethtypes.Receipt, error) {
	return d.mined("AddAssociatedAddressWithSignature", approver.Address(), owner(pub))
}

func (d *scriptedDelegator) RemoveAssociatedAddress(_ context.Context, key keys.Signer) (*ethtypes.Receipt, error) {
	return d.mined("RemoveAssociatedAddress", key.Address())
}

func (d *scriptedDelegator) AddPublicKeyTx(ctx context.Context, key keys.Signer) (common.Hash, error) {
	return d.submitted(ctx, "AddPublicKeyTx", key.Address())
}

func (d *scriptedDelegator) RemovePublicKeyTx(ctx context.Context, key keys.Signer) (common.Hash, error) {
	return d.submitted(ctx, "RemovePublicKeyTx", key.Address())
}

func (d *scriptedDelegator) RemoveAssociatedAddressTx(ctx context.Context, key keys.Signer) (common.Hash, error) {
	return d.submitted(ctx, "RemoveAssociatedAddressTx", key.Address())
}

func (d *scriptedDelegator) AddServiceKey(_ context.Context, key keys.Signer, svc common.Address, _ string) (*ethtypes.Receipt, error) {
	return d.mined("AddServiceKey", key.Address(), svc)
}

func (d *scriptedDelegator) RemoveServiceKey(_ context.Context, key keys.Signer, svc common.Address) (*ethtypes.Receipt, error) {
	return d.mined("RemoveServiceKey", key.Address(), svc)
}

func (d *scriptedDelegator) RemoveAllServiceKeys(_ context.Context, key keys.Signer) (*ethtypes.Receipt, error) {
	return d.mined("RemoveAllServiceKeys", key.Address())
}

func (d *scriptedDelegator) CheckRotationAuthorization(_ context.Context, did string, pub []byte, auth message.RotationAuthorization) error {
	ein, err := identity.DIDToEIN(did)
	if err != nil {
		return err
	}
	return auth.Check(testRegistry, testResolver, ein, pub)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustKey(t *testing.T) *keys.Key {
	t.Helper()
	k, err := keys.GenerateKey()
	require.NoError(t, err)
	return k
}

// fixture is a wallet for testDID whose current key is labelled "old" and a
// candidate key labelled "new".
type fixture struct {
	d      *scriptedDelegator
	w      *Wallet
	oldKey *keys.Key
	newKey *keys.Key
	log    *keys.RotationLog
	store  *keys.KeyStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{d: newScripted(), oldKey: mustKey(t), newKey: mustKey(t), log: keys.NewRotationLog(), store: keys.NewKeyStore()}
	f.d.label(f.oldKey.Address(), "old")
	f.d.label(f.newKey.Address(), "new")
	f.w = New(testDID, f.oldKey, Options{Logger: quietLogger(), Rotations: f.log, Keys: f.store})
	return f
}
