// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

package delegator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/aumos-ai/did-delegator/types"
)

var errPending = errors.New("transaction not yet mined")

// ConfirmOptions bounds receipt polling.
type ConfirmOptions struct {
	// Interval is the first wait between polls (default 1s).
	Interval time.Duration
	// MaxInterval caps the exponential growth of the wait (default 5s).
	MaxInterval time.Duration
	// Timeout is the total polling budget (default 60s).
	Timeout time.Duration
}

func (o ConfirmOptions) withDefaults() ConfirmOptions {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.MaxInterval < o.Interval {
		o.MaxInterval = 5 * o.Interval
	}
	if o.Timeout <= 0 {
		o.Timeout = time.Minute
	}
	return o
}

// Confirm polls the ledger until txHash is mined or the budget runs out.
// A missing receipt is treated as pending. It does not inspect the receipt status.
func (c *Client) Confirm(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	const op = "delegator: confirm"
	pollCtx, cancel := context.WithTimeout(ctx, c.confirm.Timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.confirm.Interval
	b.MaxInterval = c.confirm.MaxInterval
	b.MaxElapsedTime = c.confirm.Timeout

	start := time.Now()
	receipt, err := backoff.RetryWithData(func() (*ethtypes.Receipt, error) {
		r, err := c.ledger.TransactionReceipt(pollCtx, txHash)
		switch {
		case err == nil && r != nil:
			return r, nil
		case err == nil, errors.Is(err, ethereum.NotFound), pollCtx.Err() != nil:
			return nil, errPending
		default:
			return nil, backoff.Permanent(err)
		}
	}, backoff.WithContext(b, pollCtx))
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, errPending) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			c.metrics.observeConfirmation("timeout", elapsed)
			return nil, &types.Error{
				Kind:    types.KindConfirmationTimeout,
				Op:      op,
				TxHash:  txHash.Hex(),
				Message: fmt.Sprintf("not mined after %s", elapsed.Round(time.Millisecond)),
			}
		}
		c.metrics.observeConfirmation("error", elapsed)
		return nil, &types.Error{Kind: types.KindNetwork, Op: op, TxHash: txHash.Hex(), Cause: err}
	}
	c.metrics.observeConfirmation("mined", elapsed)
	c.logger.Debug("transaction mined", "tx", txHash.Hex(), "block", receipt.BlockNumber, "elapsed", elapsed)
	return receipt, nil
}

// settle confirms a submitted transaction and rejects a failed receipt.
func (c *Client) settle(ctx context.Context, op Operation, txHash common.Hash, err error) (*ethtypes.Receipt, error) {
	if err != nil {
		return nil, err
	}
	receipt, err := c.Confirm(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		c.logger.Warn("transaction rejected", "method", op, "tx", txHash.Hex(), "block", receipt.BlockNumber)
		return receipt, &types.Error{
			Kind:    types.KindTransactionRejected,
			Op:      string(op),
			TxHash:  txHash.Hex(),
			Message: fmt.Sprintf("reverted in block %v", receipt.BlockNumber),
		}
	}
	return receipt, nil
}
