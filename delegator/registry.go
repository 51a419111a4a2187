// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

package delegator

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/aumos-ai/did-delegator/types"
)

const methodRegistryAddress = "get_all_service_addresses"

// Contracts is the parsed form of a RegistryAddress. Empty entries parse to
// the zero address.
type Contracts struct {
	IdentityRegistry common.Address
	Providers        []common.Address
	Resolvers        []common.Address
	PublicKey        common.Address
	PublicKeyAll     []common.Address
	ServiceKey       common.Address
	ServiceKeyAll    []common.Address
}

func parseContracts(r *types.RegistryAddress) (*Contracts, error) {
	if r == nil || r.IdentityRegistry == "" {
		return nil, fmt.Errorf("identity registry address missing")
	}
	var c Contracts
	var err error
	if c.IdentityRegistry, err = parseAddress(r.IdentityRegistry); err != nil {
		return nil, err
	}
	if c.PublicKey, err = parseAddress(r.PublicKey); err != nil {
		return nil, err
	}
	if c.ServiceKey, err = parseAddress(r.ServiceKey); err != nil {
		return nil, err
	}
	for _, l := range []struct {
		in  []string
		out *[]common.Address
	}{
		{r.Providers, &c.Providers},
		{r.Resolvers, &c.Resolvers},
		{r.PublicKeyAll, &c.PublicKeyAll},
		{r.ServiceKeyAll, &c.ServiceKeyAll},
	} {
		for _, s := range l.in {
			a, err := parseAddress(s)
			if err != nil {
				return nil, err
			}
			*l.out = append(*l.out, a)
		}
	}
	return &c, nil
}

func parseAddress(s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("malformed address %q", s)
	}
	return common.HexToAddress(s), nil
}

// Directory resolves the registry contract addresses of one relay endpoint and
// memoizes the first successful answer for its whole lifetime. Create a new
// Directory to pick up changed addresses.
type Directory struct {
	relay   *relayCaller
	mu      sync.Mutex
	address *types.RegistryAddress
	parsed  *Contracts
}

// NewDirectory constructs a Directory. A non-nil pinned registry is served
// without ever calling the relay.
func NewDirectory(relay Relay, pinned *types.RegistryAddress) (*Directory, error) {
	return newDirectory(&relayCaller{relay: relay}, pinned)
}

func newDirectory(caller *relayCaller, pinned *types.RegistryAddress) (*Directory, error) {
	d := &Directory{relay: caller}
	if pinned != nil {
		parsed, err := parseContracts(pinned)
		if err != nil {
			return nil, types.WrapError(types.KindConfig, "delegator: pinned registry", err)
		}
		d.address, d.parsed = pinned.Clone(), parsed
	}
	return d, nil
}

// RegistryAddress returns the registry addresses. The returned value must not be modified.
func (d *Directory) RegistryAddress(ctx context.Context) (*types.RegistryAddress, error) {
	if _, err := d.Contracts(ctx); err != nil {
		return nil, err
	}
	return d.address, nil
}

// Contracts returns the parsed registry addresses.
func (d *Directory) Contracts(ctx context.Context) (*Contracts, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.parsed != nil {
		return d.parsed, nil
	}

	var fetched types.RegistryAddress
	if err := d.relay.call(ctx, &fetched, methodRegistryAddress); err != nil {
		return nil, err
	}
	parsed, err := parseContracts(&fetched)
	if err != nil {
		return nil, types.WrapError(types.KindNetwork, methodRegistryAddress, fmt.Errorf("malformed payload: %w", err))
	}
	d.address, d.parsed = &fetched, parsed
	return parsed, nil
}
