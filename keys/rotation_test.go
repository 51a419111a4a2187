// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

package keys

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotationLog(t *testing.T) {
	log := NewRotationLog()
	did := "did:meta:testnet:0000000000000000000000000000000000000000000000000000000000000011"
	oldAddr := common.HexToAddress("0x01")
	newAddr := common.HexToAddress("0x02")

	_, ok := log.Active(did)
	assert.False(t, ok)
	assert.Nil(t, log.History(did))

	log.Register(did, oldAddr)
	active, ok := log.Active(did)
	require.True(t, ok)
	assert.Equal(t, oldAddr, active)

	rec := log.Record(did, oldAddr, newAddr, 1234)
	assert.Equal(t, uint64(1234), rec.BlockNumber)
	assert.Equal(t, "0x0000000000000000000000000000000000000002", rec.NewAddress)

	active, _ = log.Active(did)
	assert.Equal(t, newAddr, active)

	history := log.History(did)
	require.Len(t, history, 1)
	history[0] = nil
	assert.NotNil(t, log.History(did)[0])

	log.Forget(did)
	_, ok = log.Active(did)
	assert.False(t, ok)
}
