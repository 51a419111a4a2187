// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

// Package wallet holds a DID together with its management key and drives the
// registry operations that create, rotate and delete it.
//
// A Wallet never talks to the network on its own. Every on-chain method takes
// a Delegator, normally a *delegator.Client.
package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/aumos-ai/did-delegator/delegator"
	"github.com/aumos-ai/did-delegator/identity"
	"github.com/aumos-ai/did-delegator/keys"
	"github.com/aumos-ai/did-delegator/message"
	"github.com/aumos-ai/did-delegator/types"
)

// Delegator is the subset of *delegator.Client a Wallet needs.
type Delegator interface {
	DIDPrefix() string
	HasIdentity(ctx context.Context, addr common.Address) (bool, error)

	CreateIdentity(ctx context.Context, key keys.Signer) (*ethtypes.Receipt, error)
	AddPublicKey(ctx context.Context, key keys.Signer) (*ethtypes.Receipt, error)
	AddPublicKeyWithSignature(ctx context.Context, publicKey []byte, sig keys.Signature, ts uint64) (*ethtypes.Receipt, error)
	RemovePublicKey(ctx context.Context, key keys.Signer) (*ethtypes.Receipt, error)
	AddAssociatedAddress(ctx context.Context, approver, added keys.Signer) (*ethtypes.Receipt, error)
	AddAssociatedAddressWithSignature(ctx context.Context, approver keys.Signer, addedPublicKey []byte, addedSig keys.Signature, addedTS uint64) (*ethtypes.Receipt, error)
	RemoveAssociatedAddress(ctx context.Context, key keys.Signer) (*ethtypes.Receipt, error)

	AddPublicKeyTx(ctx context.Context, key keys.Signer) (common.Hash, error)
	RemovePublicKeyTx(ctx context.Context, key keys.Signer) (common.Hash, error)
	RemoveAssociatedAddressTx(ctx context.Context, key keys.Signer) (common.Hash, error)

	AddServiceKey(ctx context.Context, key keys.Signer, serviceKey common.Address, symbol string) (*ethtypes.Receipt, error)
	RemoveServiceKey(ctx context.Context, key keys.Signer, serviceKey common.Address) (*ethtypes.Receipt, error)
	RemoveAllServiceKeys(ctx context.Context, key keys.Signer) (*ethtypes.Receipt, error)

	CheckRotationAuthorization(ctx context.Context, did string, publicKey []byte, auth message.RotationAuthorization) error
}

var _ Delegator = (*delegator.Client)(nil)

// Options configures a Wallet.
type Options struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Rotations records the active address and completed rotations. Optional.
	Rotations *keys.RotationLog
	// Keys keeps every key the wallet has held, superseded ones included. Optional.
	Keys *keys.KeyStore
	// Metrics counts rotation outcomes. Optional.
	Metrics *delegator.Metrics
}

// Wallet is a DID and the private key currently managing it. All methods are
// safe for concurrent use. On-chain operations on one Wallet run one at a time.
type Wallet struct {
	// op serializes on-chain operations, rotations in particular.
	op sync.Mutex

	mu  sync.RWMutex
	did string
	key *keys.Key

	logger    *slog.Logger
	rotations *keys.RotationLog
	keyStore  *keys.KeyStore
	metrics   *delegator.Metrics
}

// New wraps an existing DID and its key.
func New(did string, key *keys.Key, opts Options) *Wallet {
	w := &Wallet{did: did, key: key}
	w.configure(opts)
	if key != nil {
		if w.rotations != nil {
			w.rotations.Register(did, key.Address())
		}
		w.keep(key)
	}
	return w
}

func (w *Wallet) configure(opts Options) {
	w.logger = opts.Logger
	if w.logger == nil {
		w.logger = slog.Default()
	}
	w.rotations = opts.Rotations
	w.keyStore = opts.Keys
	w.metrics = opts.Metrics
}

func (w *Wallet) keep(key *keys.Key) {
	if w.keyStore == nil {
		return
	}
	if _, err := w.keyStore.Store(context.Background(), key); err != nil {
		w.logger.Warn("keep key", "address", key.Address().Hex(), "err", err)
	}
}

// CreateDID creates an identity for key, reads its EIN from the creation
// receipt and publishes key's public key. A nil key is generated.
//
// If the identity exists but publishing the public key fails, the wallet is
// returned together with the error so the key controlling the identity is
// not lost.
func CreateDID(ctx context.Context, d Delegator, key *keys.Key, opts Options) (*Wallet, error) {
	if key == nil {
		var err error
		if key, err = keys.GenerateKey(); err != nil {
			return nil, fmt.Errorf("wallet: create: %w", err)
		}
	}
	receipt, err := d.CreateIdentity(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("wallet: create identity: %w", err)
	}
	ein, err := delegator.CreatedEIN(receipt)
	if err != nil {
		return nil, fmt.Errorf("wallet: create identity: %w", err)
	}
	did := identity.EinToDID(d.DIDPrefix(), ein)
	w := New(did, key, opts)
	if _, err := d.AddPublicKey(ctx, key); err != nil {
		w.logger.Error("DID created without public key", "did", did, "address", key.Address().Hex(), "err", err)
		return w, fmt.Errorf("wallet: add public key of %s: %w", did, err)
	}
	w.logger.Info("DID created", "did", did, "address", key.Address().Hex(), "block", receipt.BlockNumber)
	return w, nil
}

// DID returns the wallet's DID.
func (w *Wallet) DID() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.did
}

// Key returns the current management key, or nil once it was handed over by
// RotateKeyWithAuthorization.
func (w *Wallet) Key() *keys.Key {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.key
}

// Kid returns the key id of the management key as published in the DID
// document: <did>#MetaManagementKey#<address without 0x>.
func (w *Wallet) Kid() (string, error) {
	key, err := w.signer()
	if err != nil {
		return "", err
	}
	return identity.KeyID(w.DID(), key.Address()), nil
}

func (w *Wallet) signer() (*keys.Key, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.key == nil {
		return nil, types.ErrNoKey
	}
	return w.key, nil
}

// Exists reports whether the wallet's address is associated with an identity.
func (w *Wallet) Exists(ctx context.Context, d Delegator) (bool, error) {
	key, err := w.signer()
	if err != nil {
		return false, err
	}
	return d.HasIdentity(ctx, key.Address())
}

// DeleteDID removes the published public key and then the associated address.
func (w *Wallet) DeleteDID(ctx context.Context, d Delegator) error {
	w.op.Lock()
	defer w.op.Unlock()

	key, err := w.signer()
	if err != nil {
		return err
	}
	did := w.DID()
	if _, err := d.RemovePublicKey(ctx, key); err != nil {
		return fmt.Errorf("wallet: delete %s: remove public key: %w", did, err)
	}
	if _, err := d.RemoveAssociatedAddress(ctx, key); err != nil {
		return fmt.Errorf("wallet: delete %s: remove associated address: %w", did, err)
	}
	if w.rotations != nil {
		w.rotations.Forget(did)
	}
	w.logger.Info("DID deleted", "did", did)
	return nil
}

// AddServiceKey registers serviceKey under symbol.
func (w *Wallet) AddServiceKey(ctx context.Context, d Delegator, symbol string, serviceKey common.Address) (*ethtypes.Receipt, error) {
	w.op.Lock()
	defer w.op.Unlock()
	key, err := w.signer()
	if err != nil {
		return nil, err
	}
	return d.AddServiceKey(ctx, key, serviceKey, symbol)
}

// RemoveServiceKey removes serviceKey.
func (w *Wallet) RemoveServiceKey(ctx context.Context, d Delegator, serviceKey common.Address) (*ethtypes.Receipt, error) {
	w.op.Lock()
	defer w.op.Unlock()
	key, err := w.signer()
	if err != nil {
		return nil, err
	}
	return d.RemoveServiceKey(ctx, key, serviceKey)
}

// RemoveAllServiceKeys removes every service key of the identity.
func (w *Wallet) RemoveAllServiceKeys(ctx context.Context, d Delegator) (*ethtypes.Receipt, error) {
	w.op.Lock()
	defer w.op.Unlock()
	key, err := w.signer()
	if err != nil {
		return nil, err
	}
	return d.RemoveAllServiceKeys(ctx, key)
}

func (w *Wallet) issuer() (*identity.Issuer, error) {
	key, err := w.signer()
	if err != nil {
		return nil, err
	}
	did := w.DID()
	return identity.NewIssuer(did, identity.KeyID(did, key.Address()), key), nil
}

// IssueCredential signs a credential issued by this wallet's DID.
func (w *Wallet) IssueCredential(opts identity.IssueOptions) (string, error) {
	iss, err := w.issuer()
	if err != nil {
		return "", err
	}
	return iss.IssueCredential(opts)
}

// IssuePresentation signs a presentation held by this wallet's DID.
func (w *Wallet) IssuePresentation(opts identity.PresentOptions) (string, error) {
	iss, err := w.issuer()
	if err != nil {
		return "", err
	}
	return iss.IssuePresentation(opts)
}

type persisted struct {
	DID        string `json:"did"`
	PrivateKey string `json:"private_key"`
}

// MarshalJSON encodes the wallet as {"did":…,"private_key":…}.
func (w *Wallet) MarshalJSON() ([]byte, error) {
	key, err := w.signer()
	if err != nil {
		return nil, err
	}
	return json.Marshal(persisted{DID: w.DID(), PrivateKey: key.PrivateKeyHex()})
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (w *Wallet) UnmarshalJSON(data []byte) error {
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("wallet: decode: %w", err)
	}
	if _, err := identity.DIDToEIN(p.DID); err != nil {
		return fmt.Errorf("wallet: decode: %w", err)
	}
	key, err := keys.KeyFromHex(p.PrivateKey)
	if err != nil {
		return fmt.Errorf("wallet: decode: %w", err)
	}
	w.mu.Lock()
	w.did, w.key = p.DID, key
	w.mu.Unlock()
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return nil
}

// Save writes the wallet to path with owner-only permissions.
func (w *Wallet) Save(path string) error {
	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("wallet: save: %w", err)
	}
	return nil
}

// Load reads a wallet written by Save.
func Load(path string, opts Options) (*Wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wallet: load: %w", err)
	}
	var w Wallet
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return New(w.did, w.key, opts), nil
}

func blockOf(r *ethtypes.Receipt) uint64 {
	if r == nil || r.BlockNumber == nil {
		return 0
	}
	return r.BlockNumber.Uint64()
}
