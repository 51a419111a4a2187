// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

package message

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aumos-ai/did-delegator/keys"
	"github.com/aumos-ai/did-delegator/types"
)

func TestRotationAuthorizationRoundTrip(t *testing.T) {
	newKey, err := keys.GenerateKey()
	require.NoError(t, err)
	ein := big.NewInt(77)

	auth, err := SignRotationAuthorization(registry, resolver, ein, newKey, ts)
	require.NoError(t, err)

	blob := auth.Encode()
	require.GreaterOrEqual(t, len(blob), MinAuthorizationLen)
	assert.Equal(t, auth.Association.Hex(), blob[:130])
	assert.Equal(t, auth.PublicKey.Hex(), blob[130:260])
	assert.Equal(t, "6553f100", blob[260:])

	parsed, err := ParseRotationAuthorization(blob)
	require.NoError(t, err)
	assert.Equal(t, auth, parsed)
	assert.Equal(t, ts, parsed.Timestamp)

	require.NoError(t, parsed.Check(registry, resolver, ein, newKey.PublicKey()))

	other, err := keys.GenerateKey()
	require.NoError(t, err)
	assert.Error(t, parsed.Check(registry, resolver, ein, other.PublicKey()))
	assert.Error(t, parsed.Check(registry, resolver, big.NewInt(78), newKey.PublicKey()))
}

func TestParseRotationAuthorizationRejectsShortBlob(t *testing.T) {
	for _, n := range []int{0, 1, 130, 259} {
		_, err := ParseRotationAuthorization(strings.Repeat("1", n))
		require.Error(t, err)
		assert.True(t, types.IsKind(err, types.KindConstruction), "length %d", n)
		assert.Contains(t, err.Error(), "malformed signature")
	}
}

func TestParseRotationAuthorizationRejectsBadSegments(t *testing.T) {
	k, err := keys.GenerateKey()
	require.NoError(t, err)
	auth, err := SignRotationAuthorization(registry, resolver, big.NewInt(1), k, ts)
	require.NoError(t, err)
	blob := auth.Encode()

	_, err = ParseRotationAuthorization(blob[:260])
	assert.True(t, types.IsKind(err, types.KindConstruction))

	_, err = ParseRotationAuthorization("zz" + blob[2:])
	assert.True(t, types.IsKind(err, types.KindConstruction))

	_, err = ParseRotationAuthorization(blob[:260] + "xyz")
	assert.True(t, types.IsKind(err, types.KindConstruction))
}
