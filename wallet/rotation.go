// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/aumos-ai/did-delegator/keys"
	"github.com/aumos-ai/did-delegator/message"
	"github.com/aumos-ai/did-delegator/types"
)

// Rotation states, in order. Each names what has been done so far.
const (
	StateStart            = "START"
	StateAssocAdded       = "ASSOC_ADDED"
	StatePubKeyAdded      = "PUBKEY_ADDED"
	StateOldPubKeyRemoved = "OLD_PUBKEY_REMOVED"
	StateOldAssocRemoved  = "OLD_ASSOC_REMOVED"
)

// Rotation outcomes reported to delegator.Metrics.
const (
	outcomeRotated      = "rotated"
	outcomeFailed       = "failed"
	outcomeCompensated  = "compensated"
	outcomeInconsistent = "inconsistent"
)

// ErrNewKeyNotHeld is recorded as a compensation error when undoing a step
// would need a signature from a key the wallet does not hold.
var ErrNewKeyNotHeld = errors.New("wallet: new private key not held")

// step is one confirmed transaction of a rotation. reached is the state once
// it is confirmed; undo reverses it afterwards and only submits.
type step struct {
	name    string
	reached string
	run     func(context.Context) (*ethtypes.Receipt, error)
	undo    func(context.Context) (common.Hash, error)
}

// RotateKey replaces the management key with newKey in four confirmed steps:
// associate the new address, publish the new public key, remove the old public
// key, remove the old address. If a step fails the steps already confirmed are
// undone in reverse order, best effort, and a *types.RotationError is returned.
//
// On success the wallet signs with newKey from then on and the block of the
// last transaction is returned.
func (w *Wallet) RotateKey(ctx context.Context, d Delegator, newKey *keys.Key) (uint64, error) {
	if newKey == nil {
		return 0, types.NewError(types.KindConstruction, "wallet: rotate", "new key is nil")
	}
	w.op.Lock()
	defer w.op.Unlock()

	old, err := w.signer()
	if err != nil {
		return 0, err
	}
	if old.Address() == newKey.Address() {
		return 0, types.NewError(types.KindConstruction, "wallet: rotate", "new key equals the current key")
	}
	steps := []step{
		{
			name:    "add associated address",
			reached: StateAssocAdded,
			run:     func(ctx context.Context) (*ethtypes.Receipt, error) { return d.AddAssociatedAddress(ctx, old, newKey) },
			undo:    func(ctx context.Context) (common.Hash, error) { return d.RemoveAssociatedAddressTx(ctx, newKey) },
		},
		{
			name:    "add public key",
			reached: StatePubKeyAdded,
			run:     func(ctx context.Context) (*ethtypes.Receipt, error) { return d.AddPublicKey(ctx, newKey) },
			undo:    func(ctx context.Context) (common.Hash, error) { return d.RemovePublicKeyTx(ctx, newKey) },
		},
		w.removeOldPublicKey(d, old),
		w.removeOldAddress(d, old),
	}
	block, err := w.rotate(ctx, steps)
	if err != nil {
		return 0, err
	}
	w.finish(old.Address(), newKey.Address(), newKey, block)
	return block, nil
}

// RotateKeyWithAuthorization hands the identity over to the owner of
// newPublicKey, who produced blob with delegator.Client.SignRotationAuthorization.
// The steps are those of RotateKey with the new key's signatures taken from
// blob. Undoing the first two steps needs the new private key, so a failure
// after them leaves the identity inconsistent.
//
// On success the wallet holds no key: further signing fails with types.ErrNoKey.
func (w *Wallet) RotateKeyWithAuthorization(ctx context.Context, d Delegator, newPublicKey []byte, blob string) (uint64, error) {
	const op = "wallet: rotate with authorization"
	auth, err := message.ParseRotationAuthorization(blob)
	if err != nil {
		return 0, err
	}
	newAddr, err := keys.PublicKeyToAddress(newPublicKey)
	if err != nil {
		return 0, types.WrapError(types.KindConstruction, op, err)
	}

	w.op.Lock()
	defer w.op.Unlock()

	old, err := w.signer()
	if err != nil {
		return 0, err
	}
	if err := d.CheckRotationAuthorization(ctx, w.DID(), newPublicKey, auth); err != nil {
		return 0, err
	}
	notHeld := func(context.Context) (common.Hash, error) { return common.Hash{}, ErrNewKeyNotHeld }
	steps := []step{
		{
			name:    "add associated address",
			reached: StateAssocAdded,
			run: func(ctx context.Context) (*ethtypes.Receipt, error) {
				return d.AddAssociatedAddressWithSignature(ctx, old, newPublicKey, auth.Association, auth.Timestamp)
			},
			undo: notHeld,
		},
		{
			name:    "add public key",
			reached: StatePubKeyAdded,
			run: func(ctx context.Context) (*ethtypes.Receipt, error) {
				return d.AddPublicKeyWithSignature(ctx, newPublicKey, auth.PublicKey, auth.Timestamp)
			},
			undo: notHeld,
		},
		w.removeOldPublicKey(d, old),
		w.removeOldAddress(d, old),
	}
	block, err := w.rotate(ctx, steps)
	if err != nil {
		return 0, err
	}
	w.finish(old.Address(), newAddr, nil, block)
	return block, nil
}

func (w *Wallet) removeOldPublicKey(d Delegator, old *keys.Key) step {
	return step{
		name:    "remove old public key",
		reached: StateOldPubKeyRemoved,
		run:     func(ctx context.Context) (*ethtypes.Receipt, error) { return d.RemovePublicKey(ctx, old) },
		undo:    func(ctx context.Context) (common.Hash, error) { return d.AddPublicKeyTx(ctx, old) },
	}
}

func (w *Wallet) removeOldAddress(d Delegator, old *keys.Key) step {
	return step{
		name:    "remove old associated address",
		reached: StateOldAssocRemoved,
		run:     func(ctx context.Context) (*ethtypes.Receipt, error) { return d.RemoveAssociatedAddress(ctx, old) },
	}
}

func (w *Wallet) rotate(ctx context.Context, steps []step) (uint64, error) {
	did := w.DID()
	state := StateStart
	var last *ethtypes.Receipt
	for i, s := range steps {
		receipt, err := s.run(ctx)
		if err != nil {
			rerr := &types.RotationError{Step: i + 1, State: state, TxHash: types.TxHashOf(err), Cause: err}
			w.logger.Warn("key rotation step failed", "did", did, "step", i+1, "state", state, "error", err)
			if i > 0 {
				rerr.CompensationAttempted = true
				rerr.CompensationErrs = w.compensate(ctx, did, steps[:i])
				rerr.Compensated = len(rerr.CompensationErrs) == 0
			}
			switch {
			case !rerr.CompensationAttempted:
				w.metrics.ObserveRotation(outcomeFailed)
			case rerr.Compensated:
				w.metrics.ObserveRotation(outcomeCompensated)
			default:
				w.metrics.ObserveRotation(outcomeInconsistent)
				w.logger.Error("key rotation left identity inconsistent", "did", did, "step", i+1, "errors", len(rerr.CompensationErrs))
			}
			return 0, rerr
		}
		state, last = s.reached, receipt
		w.logger.Info("key rotation step confirmed", "did", did, "step", i+1, "state", state, "tx", receipt.TxHash.Hex())
	}
	return blockOf(last), nil
}

// compensate undoes done in reverse order. Every undo is attempted even after
// one fails, and the caller's cancellation does not stop it.
func (w *Wallet) compensate(ctx context.Context, did string, done []step) []error {
	ctx = context.WithoutCancel(ctx)
	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		hash, err := done[i].undo(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("undo %s: %w", done[i].name, err))
			continue
		}
		w.logger.Info("key rotation compensation submitted", "did", did, "undo", done[i].name, "tx", hash.Hex())
	}
	return errs
}

func (w *Wallet) finish(prev, next common.Address, newKey *keys.Key, block uint64) {
	w.mu.Lock()
	w.key = newKey
	did := w.did
	w.mu.Unlock()
	if w.rotations != nil {
		w.rotations.Record(did, prev, next, block)
	}
	if newKey != nil {
		w.keep(newKey)
	}
	w.metrics.ObserveRotation(outcomeRotated)
	w.logger.Info("key rotated", "did", did, "previous", prev.Hex(), "address", next.Hex(), "block", block)
}
