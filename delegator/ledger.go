// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

package delegator

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/aumos-ai/did-delegator/identity"
	"github.com/aumos-ai/did-delegator/types"
)

// Ledger is the read side of a ledger node. *ethclient.Client satisfies it.
type Ledger interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

const registryABIJSON = `[
 {"type":"function","name":"getEIN","stateMutability":"view","inputs":[{"name":"_address","type":"address"}],"outputs":[{"name":"ein","type":"uint256"}]},
 {"type":"function","name":"hasIdentity","stateMutability":"view","inputs":[{"name":"_address","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"getIdentity","stateMutability":"view","inputs":[{"name":"ein","type":"uint256"}],"outputs":[
   {"name":"recoveryAddress","type":"address"},
   {"name":"associatedAddresses","type":"address[]"},
   {"name":"providers","type":"address[]"},
   {"name":"resolvers","type":"address[]"}]},
 {"type":"event","name":"IdentityCreated","anonymous":false,"inputs":[
   {"name":"initiator","type":"address","indexed":true},
   {"name":"ein","type":"uint256","indexed":true},
   {"name":"recoveryAddress","type":"address","indexed":false},
   {"name":"associatedAddress","type":"address","indexed":false},
   {"name":"providers","type":"address[]","indexed":false},
   {"name":"resolvers","type":"address[]","indexed":false},
   {"name":"delegated","type":"bool","indexed":false}]}
]`

const publicKeyResolverABIJSON = `[
 {"type":"function","name":"getPublicKey","stateMutability":"view","inputs":[{"name":"addr","type":"address"}],"outputs":[{"name":"","type":"bytes"}]}
]`

var (
	registryABI          = mustABI(registryABIJSON)
	publicKeyResolverABI = mustABI(publicKeyResolverABIJSON)
)

func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Identity is an on-chain identity record.
type Identity struct {
	RecoveryAddress     common.Address
	AssociatedAddresses []common.Address
	Providers           []common.Address
	Resolvers           []common.Address
}

func (c *Client) callView(ctx context.Context, contract abi.ABI, to common.Address, block *big.Int, method string, args ...interface{}) ([]interface{}, error) {
	op := "delegator: " + method
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, types.WrapError(types.KindConstruction, op, err)
	}
	out, err := c.ledger.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, block)
	if err != nil {
		return nil, types.WrapError(types.KindNetwork, op, err)
	}
	values, err := contract.Unpack(method, out)
	if err != nil {
		return nil, types.WrapError(types.KindNetwork, op, fmt.Errorf("decode result: %w", err))
	}
	return values, nil
}

// EIN returns the EIN of the identity addr is associated with.
func (c *Client) EIN(ctx context.Context, addr common.Address) (*big.Int, error) {
	reg, err := c.directory.Contracts(ctx)
	if err != nil {
		return nil, err
	}
	out, err := c.callView(ctx, registryABI, reg.IdentityRegistry, nil, "getEIN", addr)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// HasIdentity reports whether addr is associated with any identity.
func (c *Client) HasIdentity(ctx context.Context, addr common.Address) (bool, error) {
	reg, err := c.directory.Contracts(ctx)
	if err != nil {
		return false, err
	}
	out, err := c.callView(ctx, registryABI, reg.IdentityRegistry, nil, "hasIdentity", addr)
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

// Identity reads the identity record of ein at block (nil for latest).
func (c *Client) Identity(ctx context.Context, ein *big.Int, block *big.Int) (*Identity, error) {
	reg, err := c.directory.Contracts(ctx)
	if err != nil {
		return nil, err
	}
	out, err := c.callView(ctx, registryABI, reg.IdentityRegistry, block, "getIdentity", ein)
	if err != nil {
		return nil, err
	}
	return &Identity{
		RecoveryAddress:     out[0].(common.Address),
		AssociatedAddresses: out[1].([]common.Address),
		Providers:           out[2].([]common.Address),
		Resolvers:           out[3].([]common.Address),
	}, nil
}

// PublicKeyOf returns the public key published for did at block (nil for latest).
func (c *Client) PublicKeyOf(ctx context.Context, did string, block *big.Int) ([]byte, error) {
	ein, err := identity.DIDToEIN(did)
	if err != nil {
		return nil, types.WrapError(types.KindConstruction, "delegator: public key", err)
	}
	reg, err := c.directory.Contracts(ctx)
	if err != nil {
		return nil, err
	}
	id, err := c.Identity(ctx, ein, block)
	if err != nil {
		return nil, err
	}
	if len(id.AssociatedAddresses) == 0 {
		return nil, types.TrustError(types.TrustNotFound, "delegator: public key", "identity has no associated address")
	}
	candidates := reg.PublicKeyAll
	if len(candidates) == 0 && reg.PublicKey != (common.Address{}) {
		candidates = []common.Address{reg.PublicKey}
	}
	for _, resolver := range candidates {
		if !containsAddress(id.Resolvers, resolver) {
			continue
		}
		out, err := c.callView(ctx, publicKeyResolverABI, resolver, block, "getPublicKey", id.AssociatedAddresses[0])
		if err != nil {
			return nil, err
		}
		return out[0].([]byte), nil
	}
	return nil, types.TrustError(types.TrustNotFound, "delegator: public key", "identity uses no known public key resolver")
}

// ServiceKeyResolver returns the service-key resolver the identity of addr has
// enabled, or the network default when it uses none of the known ones.
func (c *Client) ServiceKeyResolver(ctx context.Context, addr common.Address) (common.Address, error) {
	reg, err := c.directory.Contracts(ctx)
	if err != nil {
		return common.Address{}, err
	}
	if len(reg.ServiceKeyAll) == 0 {
		return reg.ServiceKey, nil
	}
	ein, err := c.EIN(ctx, addr)
	if err != nil {
		return common.Address{}, err
	}
	id, err := c.Identity(ctx, ein, nil)
	if err != nil {
		return common.Address{}, err
	}
	for _, candidate := range reg.ServiceKeyAll {
		if containsAddress(id.Resolvers, candidate) {
			return candidate, nil
		}
	}
	return reg.ServiceKey, nil
}

// CurrentBlockNumber returns the latest block number.
func (c *Client) CurrentBlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.ledger.BlockNumber(ctx)
	if err != nil {
		return 0, types.WrapError(types.KindNetwork, "delegator: block number", err)
	}
	return n, nil
}

// CreatedEIN extracts the EIN from the IdentityCreated event of receipt.
func CreatedEIN(receipt *ethtypes.Receipt) (*big.Int, error) {
	event := registryABI.Events["IdentityCreated"]
	for _, l := range receipt.Logs {
		if len(l.Topics) >= 3 && l.Topics[0] == event.ID {
			return new(big.Int).SetBytes(l.Topics[2].Bytes()), nil
		}
	}
	return nil, &types.Error{
		Kind:    types.KindTransactionRejected,
		Op:      "delegator: created EIN",
		TxHash:  receipt.TxHash.Hex(),
		Message: "receipt has no IdentityCreated event",
	}
}

func containsAddress(list []common.Address, a common.Address) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}
