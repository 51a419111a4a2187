// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

package message

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// TimestampSource supplies the trailing timestamp of an authorization message.
type TimestampSource interface {
	Timestamp(ctx context.Context) uint64
}

// HeaderReader is the subset of a ledger client needed to read block time.
type HeaderReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
}

// LedgerClock uses the latest block's timestamp and falls back to the local
// wall clock when the ledger cannot be read. An unreachable ledger never
// blocks message construction.
type LedgerClock struct {
	ledger HeaderReader
	now    func() time.Time
	logger *slog.Logger
}

// NewLedgerClock constructs a LedgerClock. A nil ledger always uses the wall clock.
func NewLedgerClock(ledger HeaderReader, logger *slog.Logger) *LedgerClock {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerClock{ledger: ledger, now: time.Now, logger: logger}
}

// Timestamp implements TimestampSource.
func (c *LedgerClock) Timestamp(ctx context.Context) uint64 {
	if c.ledger != nil {
		header, err := c.ledger.HeaderByNumber(ctx, nil)
		if err == nil && header != nil && header.Time > 0 {
			return header.Time
		}
		c.logger.Warn("latest block unavailable, using local clock", "error", err)
	}
	return uint64(c.now().Unix())
}

// FixedClock always returns the same timestamp.
type FixedClock uint64

// Timestamp implements TimestampSource.
func (f FixedClock) Timestamp(context.Context) uint64 { return uint64(f) }
