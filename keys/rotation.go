// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

package keys

import (
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/aumos-ai/did-delegator/types"
)

// RotationLog tracks the active management address of each DID and the
// rotations that replaced it. It is safe for concurrent use.
type RotationLog struct {
	mu sync.Mutex
	// activeByDID maps each DID to its current management address.
	activeByDID map[string]common.Address
	history     map[string][]*types.KeyRotationRecord
	now         func() time.Time
}

// NewRotationLog constructs an empty RotationLog.
func NewRotationLog() *RotationLog {
	return &RotationLog{
		activeByDID: make(map[string]common.Address),
		history:     make(map[string][]*types.KeyRotationRecord),
		now:         time.Now,
	}
}

// Register records addr as the active management address of did.
func (l *RotationLog) Register(did string, addr common.Address) {
	l.mu.Lock()
	l.activeByDID[did] = addr
	l.mu.Unlock()
}

// Active returns the active management address registered for did.
func (l *RotationLog) Active(did string) (common.Address, bool) {
	l.mu.Lock()
	addr, ok := l.activeByDID[did]
	l.mu.Unlock()
	return addr, ok
}

// Record appends a completed rotation and makes next the active address.
func (l *RotationLog) Record(did string, prev, next common.Address, block uint64) *types.KeyRotationRecord {
	rec := &types.KeyRotationRecord{
		DID:             did,
		PreviousAddress: strings.ToLower(prev.Hex()),
		NewAddress:      strings.ToLower(next.Hex()),
		BlockNumber:     block,
		RotatedAt:       l.now().UTC(),
	}
	l.mu.Lock()
	l.activeByDID[did] = next
	l.history[did] = append(l.history[did], rec)
	l.mu.Unlock()
	return rec
}

// Forget drops everything known about did, e.g. after the DID is deleted.
func (l *RotationLog) Forget(did string) {
	l.mu.Lock()
	delete(l.activeByDID, did)
	delete(l.history, did)
	l.mu.Unlock()
}

// History returns all recorded rotations for did, oldest first.
func (l *RotationLog) History(did string) []*types.KeyRotationRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.history[did]
	if len(history) == 0 {
		return nil
	}
	out := make([]*types.KeyRotationRecord, len(history))
	copy(out, history)
	return out
}
