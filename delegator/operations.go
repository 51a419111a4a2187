// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

package delegator

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/aumos-ai/did-delegator/identity"
	"github.com/aumos-ai/did-delegator/keys"
	"github.com/aumos-ai/did-delegator/message"
	"github.com/aumos-ai/did-delegator/types"
)

func sign(op Operation, key keys.Signer, msg []byte) (keys.Signature, error) {
	sig, err := key.Sign(msg)
	if err != nil {
		return sig, types.WrapError(types.KindConstruction, string(op), err)
	}
	return sig, nil
}

// CreateIdentityTx submits create_identity with key as recovery and associated address.
func (c *Client) CreateIdentityTx(ctx context.Context, key keys.Signer) (common.Hash, error) {
	reg, err := c.directory.Contracts(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	addr := key.Address()
	ts := c.clock.Timestamp(ctx)
	msg, err := message.CreateIdentity(reg.IdentityRegistry, addr, addr, reg.Providers, reg.Resolvers, ts)
	if err != nil {
		return common.Hash{}, err
	}
	sig, err := sign(OpCreateIdentity, key, msg)
	if err != nil {
		return common.Hash{}, err
	}
	return c.Submit(ctx, OpCreateIdentity, Params{
		"recovery_address":   hexAddress(addr),
		"associated_address": hexAddress(addr),
		"providers":          hexAddresses(reg.Providers),
		"resolvers":          hexAddresses(reg.Resolvers),
		"timestamp":          ts,
	}.withSignature(sig))
}

// CreateIdentity creates an identity and returns the confirmed receipt.
// Use CreatedEIN to read the new EIN from it.
func (c *Client) CreateIdentity(ctx context.Context, key keys.Signer) (*ethtypes.Receipt, error) {
	hash, err := c.CreateIdentityTx(ctx, key)
	return c.settle(ctx, OpCreateIdentity, hash, err)
}

// AddPublicKeyTx publishes key's own public key, signed by key.
func (c *Client) AddPublicKeyTx(ctx context.Context, key keys.Signer) (common.Hash, error) {
	reg, err := c.directory.Contracts(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	addr := key.Address()
	ts := c.clock.Timestamp(ctx)
	msg, err := message.AddPublicKey(reg.PublicKey, addr, key.PublicKey(), ts)
	if err != nil {
		return common.Hash{}, err
	}
	sig, err := sign(OpAddPublicKey, key, msg)
	if err != nil {
		return common.Hash{}, err
	}
	return c.submitAddPublicKey(ctx, reg.PublicKey, addr, key.PublicKey(), ts, sig)
}

// AddPublicKey publishes key's own public key and waits for confirmation.
func (c *Client) AddPublicKey(ctx context.Context, key keys.Signer) (*ethtypes.Receipt, error) {
	hash, err := c.AddPublicKeyTx(ctx, key)
	return c.settle(ctx, OpAddPublicKey, hash, err)
}

// AddPublicKeyWithSignatureTx publishes publicKey using a signature produced
// out of band by its owner over the add-public-key message at ts.
func (c *Client) AddPublicKeyWithSignatureTx(ctx context.Context, publicKey []byte, sig keys.Signature, ts uint64) (common.Hash, error) {
	reg, err := c.directory.Contracts(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	owner, err := keys.PublicKeyToAddress(publicKey)
	if err != nil {
		return common.Hash{}, types.WrapError(types.KindConstruction, string(OpAddPublicKey), err)
	}
	return c.submitAddPublicKey(ctx, reg.PublicKey, owner, publicKey, ts, sig)
}

// AddPublicKeyWithSignature is AddPublicKeyWithSignatureTx followed by confirmation.
func (c *Client) AddPublicKeyWithSignature(ctx context.Context, publicKey []byte, sig keys.Signature, ts uint64) (*ethtypes.Receipt, error) {
	hash, err := c.AddPublicKeyWithSignatureTx(ctx, publicKey, sig, ts)
	return c.settle(ctx, OpAddPublicKey, hash, err)
}

func (c *Client) submitAddPublicKey(ctx context.Context, resolver, owner common.Address, publicKey []byte, ts uint64, sig keys.Signature) (common.Hash, error) {
	if resolver == (common.Address{}) {
		return common.Hash{}, types.NewError(types.KindConstruction, string(OpAddPublicKey), "public key resolver address unknown")
	}
	return c.Submit(ctx, OpAddPublicKey, Params{
		"resolver_address":   hexAddress(resolver),
		"associated_address": hexAddress(owner),
		"public_key":         hexutil.Encode(common.LeftPadBytes(publicKey, keys.PublicKeySize)),
		"timestamp":          ts,
	}.withSignature(sig))
}

// RemovePublicKeyTx removes the public key published for key's address.
func (c *Client) RemovePublicKeyTx(ctx context.Context, key keys.Signer) (common.Hash, error) {
	reg, err := c.directory.Contracts(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	addr := key.Address()
	ts := c.clock.Timestamp(ctx)
	msg, err := message.RemovePublicKey(reg.PublicKey, addr, ts)
	if err != nil {
		return common.Hash{}, err
	}
	sig, err := sign(OpRemovePublicKey, key, msg)
	if err != nil {
		return common.Hash{}, err
	}
	return c.Submit(ctx, OpRemovePublicKey, Params{
		"resolver_address":   hexAddress(reg.PublicKey),
		"associated_address": hexAddress(addr),
		"timestamp":          ts,
	}.withSignature(sig))
}

// RemovePublicKey removes key's public key and waits for confirmation.
func (c *Client) RemovePublicKey(ctx context.Context, key keys.Signer) (*ethtypes.Receipt, error) {
	hash, err := c.RemovePublicKeyTx(ctx, key)
	return c.settle(ctx, OpRemovePublicKey, hash, err)
}

// AddAssociatedAddressTx associates added's address with approver's identity.
// Both keys sign, each with its own timestamp.
func (c *Client) AddAssociatedAddressTx(ctx context.Context, approver, added keys.Signer) (common.Hash, error) {
	reg, ein, err := c.identityOf(ctx, approver.Address())
	if err != nil {
		return common.Hash{}, err
	}
	toAdd := added.Address()
	addedTS := c.clock.Timestamp(ctx)
	msg, err := message.AddedToIdentity(reg.IdentityRegistry, ein, toAdd, addedTS)
	if err != nil {
		return common.Hash{}, err
	}
	addedSig, err := sign(OpAddAssociatedAddress, added, msg)
	if err != nil {
		return common.Hash{}, err
	}
	return c.submitAddAssociatedAddress(ctx, reg, ein, approver, toAdd, addedSig, addedTS)
}

// AddAssociatedAddress is AddAssociatedAddressTx followed by confirmation.
func (c *Client) AddAssociatedAddress(ctx context.Context, approver, added keys.Signer) (*ethtypes.Receipt, error) {
	hash, err := c.AddAssociatedAddressTx(ctx, approver, added)
	return c.settle(ctx, OpAddAssociatedAddress, hash, err)
}

// AddAssociatedAddressWithSignatureTx associates the owner of addedPublicKey
// using that owner's out-of-band signature over the "being added" message at addedTS.
func (c *Client) AddAssociatedAddressWithSignatureTx(ctx context.Context, approver keys.Signer, addedPublicKey []byte, addedSig keys.Signature, addedTS uint64) (common.Hash, error) {
	toAdd, err := keys.PublicKeyToAddress(addedPublicKey)
	if err != nil {
		return common.Hash{}, types.WrapError(types.KindConstruction, string(OpAddAssociatedAddress), err)
	}
	reg, ein, err := c.identityOf(ctx, approver.Address())
	if err != nil {
		return common.Hash{}, err
	}
	return c.submitAddAssociatedAddress(ctx, reg, ein, approver, toAdd, addedSig, addedTS)
}

// AddAssociatedAddressWithSignature is AddAssociatedAddressWithSignatureTx followed by confirmation.
func (c *Client) AddAssociatedAddressWithSignature(ctx context.Context, approver keys.Signer, addedPublicKey []byte, addedSig keys.Signature, addedTS uint64) (*ethtypes.Receipt, error) {
	hash, err := c.AddAssociatedAddressWithSignatureTx(ctx, approver, addedPublicKey, addedSig, addedTS)
	return c.settle(ctx, OpAddAssociatedAddress, hash, err)
}

func (c *Client) submitAddAssociatedAddress(ctx context.Context, reg *Contracts, ein *big.Int, approver keys.Signer, toAdd common.Address, addedSig keys.Signature, addedTS uint64) (common.Hash, error) {
	ts := c.clock.Timestamp(ctx)
	msg, err := message.AddAssociatedAddress(reg.IdentityRegistry, ein, toAdd, ts)
	if err != nil {
		return common.Hash{}, err
	}
	sig, err := sign(OpAddAssociatedAddress, approver, msg)
	if err != nil {
		return common.Hash{}, err
	}
	v1, r1, s1 := sig.VRS()
	v2, r2, s2 := addedSig.VRS()
	return c.Submit(ctx, OpAddAssociatedAddress, Params{
		"approving_address": hexAddress(approver.Address()),
		"address_to_add":    hexAddress(toAdd),
		"timestamp":         []uint64{ts, addedTS},
		"v":                 []string{v1, v2},
		"r":                 []string{r1, r2},
		"s":                 []string{s1, s2},
	})
}

// RemoveAssociatedAddressTx removes key's own address from its identity.
func (c *Client) RemoveAssociatedAddressTx(ctx context.Context, key keys.Signer) (common.Hash, error) {
	addr := key.Address()
	reg, ein, err := c.identityOf(ctx, addr)
	if err != nil {
		return common.Hash{}, err
	}
	ts := c.clock.Timestamp(ctx)
	msg, err := message.RemoveAssociatedAddress(reg.IdentityRegistry, ein, addr, ts)
	if err != nil {
		return common.Hash{}, err
	}
	sig, err := sign(OpRemoveAssociatedAddress, key, msg)
	if err != nil {
		return common.Hash{}, err
	}
	return c.Submit(ctx, OpRemoveAssociatedAddress, Params{
		"address_to_remove": hexAddress(addr),
		"timestamp":         ts,
	}.withSignature(sig))
}

// RemoveAssociatedAddress is RemoveAssociatedAddressTx followed by confirmation.
func (c *Client) RemoveAssociatedAddress(ctx context.Context, key keys.Signer) (*ethtypes.Receipt, error) {
	hash, err := c.RemoveAssociatedAddressTx(ctx, key)
	return c.settle(ctx, OpRemoveAssociatedAddress, hash, err)
}

// AddServiceKeyTx registers serviceKey under symbol for key's identity.
func (c *Client) AddServiceKeyTx(ctx context.Context, key keys.Signer, serviceKey common.Address, symbol string) (common.Hash, error) {
	addr := key.Address()
	resolver, err := c.ServiceKeyResolver(ctx, addr)
	if err != nil {
		return common.Hash{}, err
	}
	ts := c.clock.Timestamp(ctx)
	msg, err := message.AddServiceKey(resolver, serviceKey, symbol, ts)
	if err != nil {
		return common.Hash{}, err
	}
	sig, err := sign(OpAddServiceKey, key, msg)
	if err != nil {
		return common.Hash{}, err
	}
	return c.Submit(ctx, OpAddServiceKey, Params{
		"resolver_address":   hexAddress(resolver),
		"associated_address": hexAddress(addr),
		"key":                hexAddress(serviceKey),
		"symbol":             symbol,
		"timestamp":          ts,
	}.withSignature(sig))
}

// AddServiceKey is AddServiceKeyTx followed by confirmation.
func (c *Client) AddServiceKey(ctx context.Context, key keys.Signer, serviceKey common.Address, symbol string) (*ethtypes.Receipt, error) {
	hash, err := c.AddServiceKeyTx(ctx, key, serviceKey, symbol)
	return c.settle(ctx, OpAddServiceKey, hash, err)
}

// RemoveServiceKeyTx removes serviceKey from key's identity.
func (c *Client) RemoveServiceKeyTx(ctx context.Context, key keys.Signer, serviceKey common.Address) (common.Hash, error) {
	addr := key.Address()
	resolver, err := c.ServiceKeyResolver(ctx, addr)
	if err != nil {
		return common.Hash{}, err
	}
	ts := c.clock.Timestamp(ctx)
	msg, err := message.RemoveServiceKey(resolver, serviceKey, ts)
	if err != nil {
		return common.Hash{}, err
	}
	sig, err := sign(OpRemoveServiceKey, key, msg)
	if err != nil {
		return common.Hash{}, err
	}
	return c.Submit(ctx, OpRemoveServiceKey, Params{
		"resolver_address":   hexAddress(resolver),
		"associated_address": hexAddress(addr),
		"key":                hexAddress(serviceKey),
		"timestamp":          ts,
	}.withSignature(sig))
}

// RemoveServiceKey is RemoveServiceKeyTx followed by confirmation.
func (c *Client) RemoveServiceKey(ctx context.Context, key keys.Signer, serviceKey common.Address) (*ethtypes.Receipt, error) {
	hash, err := c.RemoveServiceKeyTx(ctx, key, serviceKey)
	return c.settle(ctx, OpRemoveServiceKey, hash, err)
}

// RemoveAllServiceKeysTx removes every service key of key's identity.
func (c *Client) RemoveAllServiceKeysTx(ctx context.Context, key keys.Signer) (common.Hash, error) {
	addr := key.Address()
	resolver, err := c.ServiceKeyResolver(ctx, addr)
	if err != nil {
		return common.Hash{}, err
	}
	ts := c.clock.Timestamp(ctx)
	msg, err := message.RemoveAllServiceKeys(resolver, ts)
	if err != nil {
		return common.Hash{}, err
	}
	sig, err := sign(OpRemoveAllServiceKeys, key, msg)
	if err != nil {
		return common.Hash{}, err
	}
	return c.Submit(ctx, OpRemoveAllServiceKeys, Params{
		"resolver_address":   hexAddress(resolver),
		"associated_address": hexAddress(addr),
		"timestamp":          ts,
	}.withSignature(sig))
}

// RemoveAllServiceKeys is RemoveAllServiceKeysTx followed by confirmation.
func (c *Client) RemoveAllServiceKeys(ctx context.Context, key keys.Signer) (*ethtypes.Receipt, error) {
	hash, err := c.RemoveAllServiceKeysTx(ctx, key)
	return c.settle(ctx, OpRemoveAllServiceKeys, hash, err)
}

// SignRotationAuthorization is run by the owner of newKey to let the holder of
// did's current key add newKey on their behalf.
func (c *Client) SignRotationAuthorization(ctx context.Context, did string, newKey keys.Signer) (message.RotationAuthorization, error) {
	ein, err := identity.DIDToEIN(did)
	if err != nil {
		return message.RotationAuthorization{}, types.WrapError(types.KindConstruction, "delegator: sign authorization", err)
	}
	reg, err := c.directory.Contracts(ctx)
	if err != nil {
		return message.RotationAuthorization{}, err
	}
	return message.SignRotationAuthorization(reg.IdentityRegistry, reg.PublicKey, ein, newKey, c.clock.Timestamp(ctx))
}

// CheckRotationAuthorization verifies that auth was signed by the owner of
// publicKey for did on this network.
func (c *Client) CheckRotationAuthorization(ctx context.Context, did string, publicKey []byte, auth message.RotationAuthorization) error {
	ein, err := identity.DIDToEIN(did)
	if err != nil {
		return types.WrapError(types.KindConstruction, "delegator: check authorization", err)
	}
	reg, err := c.directory.Contracts(ctx)
	if err != nil {
		return err
	}
	return auth.Check(reg.IdentityRegistry, reg.PublicKey, ein, publicKey)
}

func (c *Client) identityOf(ctx context.Context, addr common.Address) (*Contracts, *big.Int, error) {
	reg, err := c.directory.Contracts(ctx)
	if err != nil {
		return nil, nil, err
	}
	ein, err := c.EIN(ctx, addr)
	if err != nil {
		return nil, nil, fmt.Errorf("delegator: EIN of %s: %w", hexAddress(addr), err)
	}
	return reg, ein, nil
}
