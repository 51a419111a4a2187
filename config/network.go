// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

package config

import (
	"fmt"

	"github.com/aumos-ai/did-delegator/types"
)

// Network names.
const (
	Mainnet = "mainnet"
	Testnet = "testnet"
	Private = "private"
)

// Network locates the relay, the ledger node and the resolver of one DID network.
type Network struct {
	Name         string `yaml:"name"`
	DelegatorURL string `yaml:"delegator_url"`
	NodeURL      string `yaml:"node_url"`
	ResolverURL  string `yaml:"resolver_url"`
	DIDPrefix    string `yaml:"did_prefix"`
	APIKey       string `yaml:"api_key"`
	// PinRegistry serves Registry (or the network's default addresses) instead
	// of asking the relay.
	PinRegistry bool                   `yaml:"pin_registry"`
	Registry    *types.RegistryAddress `yaml:"registry"`
}

var presets = map[string]Network{
	Mainnet: {
		Name:         Mainnet,
		DelegatorURL: "https://delegator.metadium.com",
		NodeURL:      "https://api.metadium.com/prod",
		ResolverURL:  "https://resolver.metadium.com/1.0",
		DIDPrefix:    "did:meta",
	},
	Testnet: {
		Name:         Testnet,
		DelegatorURL: "https://testdelegator.metadium.com",
		NodeURL:      "https://api.metadium.com/dev",
		ResolverURL:  "https://testnetresolver.metadium.com/1.0",
		DIDPrefix:    "did:meta:testnet",
	},
}

var defaultRegistries = map[string]types.RegistryAddress{
	Mainnet: {
		IdentityRegistry: "0x42bbff659772231bb63c7c175a1021e080a4cf9d",
		Providers:        []string{"0x298fde31b830f43b664e32d84180462802c4ec01", "0x85d9d6df80356ac3893c63dba54560afb10fef78"},
		Resolvers:        []string{"0x5d4b8c6c6abecf9b5277747fa15980b964c40ce3", "0xd9f39ab902f835400cfb424529bb0423d7342331"},
		PublicKey:        "0xd9f39ab902f835400cfb424529bb0423d7342331",
		PublicKeyAll:     []string{"0xd9f39ab902f835400cfb424529bb0423d7342331"},
		ServiceKey:       "0x5d4b8c6c6abecf9b5277747fa15980b964c40ce3",
		ServiceKeyAll:    []string{"0x5d4b8c6c6abecf9b5277747fa15980b964c40ce3"},
	},
	// The testnet has no well-known public key resolver; pinning it disables
	// the public key operations.
	Testnet: {
		IdentityRegistry: "0xbe2bb3d7085ff04bde4b3f177a730a826f05cb70",
		Providers:        []string{"0x084f8293f1b047d3a217025b24cd7b5ace8fc657"},
		Resolvers:        []string{"0xf4f9790205ee559a379c519e04042b20560eefad"},
		ServiceKey:       "0xf4f9790205ee559a379c519e04042b20560eefad",
		ServiceKeyAll:    []string{"0x43fe3710e701730151c5fad21d205a4b9f68caf3", "0xf4f9790205ee559a379c519e04042b20560eefad"},
	},
}

// Preset returns the named network's endpoints.
func Preset(name string) (Network, bool) {
	n, ok := presets[name]
	return n, ok
}

// DefaultRegistry returns a copy of the well-known contract addresses of a
// preset network, or nil.
func DefaultRegistry(name string) *types.RegistryAddress {
	r, ok := defaultRegistries[name]
	if !ok {
		return nil
	}
	return r.Clone()
}

// Resolve fills n from its preset and checks it is complete. Fields already
// set in n win over the preset. A private network needs every URL and the prefix.
func (n Network) Resolve() (Network, error) {
	const op = "config: network"
	if n.Name == "" {
		n.Name = Testnet
	}
	switch n.Name {
	case Mainnet, Testnet:
		p := presets[n.Name]
		n.DelegatorURL = orDefault(n.DelegatorURL, p.DelegatorURL)
		n.NodeURL = orDefault(n.NodeURL, p.NodeURL)
		n.ResolverURL = orDefault(n.ResolverURL, p.ResolverURL)
		n.DIDPrefix = orDefault(n.DIDPrefix, p.DIDPrefix)
	case Private:
		if n.DelegatorURL == "" || n.NodeURL == "" || n.ResolverURL == "" || n.DIDPrefix == "" {
			return n, types.NewError(types.KindConfig, op,
				"private network needs delegator_url, node_url, resolver_url and did_prefix")
		}
	default:
		return n, types.NewError(types.KindConfig, op,
			fmt.Sprintf("unknown network %q, want %s, %s or %s", n.Name, Mainnet, Testnet, Private))
	}
	if n.PinRegistry && n.Registry == nil {
		if n.Registry = DefaultRegistry(n.Name); n.Registry == nil {
			return n, types.NewError(types.KindConfig, op, "pin_registry on a private network needs registry addresses")
		}
	}
	return n, nil
}

// PinnedRegistry returns the registry to pin, or nil to ask the relay.
func (n Network) PinnedRegistry() *types.RegistryAddress {
	if !n.PinRegistry {
		return nil
	}
	return n.Registry
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
