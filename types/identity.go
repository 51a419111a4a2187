// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

// Package types defines shared value types used across the did-delegator module.
package types

import "time"

// RegistryAddress is the set of registry contract addresses for one network.
// Once obtained it is never mutated.
type RegistryAddress struct {
	IdentityRegistry string   `json:"identity_registry" yaml:"identity_registry"`
	Providers        []string `json:"providers" yaml:"providers"`
	Resolvers        []string `json:"resolvers" yaml:"resolvers"`
	PublicKey        string   `json:"public_key" yaml:"public_key"`
	PublicKeyAll     []string `json:"public_key_all" yaml:"public_key_all"`
	ServiceKey       string   `json:"service_key" yaml:"service_key"`
	ServiceKeyAll    []string `json:"service_key_all" yaml:"service_key_all"`
}

// Clone returns a deep copy.
func (r *RegistryAddress) Clone() *RegistryAddress {
	if r == nil {
		return nil
	}
	out := *r
	out.Providers = append([]string(nil), r.Providers...)
	out.Resolvers = append([]string(nil), r.Resolvers...)
	out.PublicKeyAll = append([]string(nil), r.PublicKeyAll...)
	out.ServiceKeyAll = append([]string(nil), r.ServiceKeyAll...)
	return &out
}

// KeyRotationRecord captures metadata about a completed key rotation.
type KeyRotationRecord struct {
	DID             string    `json:"did"`
	PreviousAddress string    `json:"previousAddress"`
	NewAddress      string    `json:"newAddress"`
	BlockNumber     uint64    `json:"blockNumber"`
	RotatedAt       time.Time `json:"rotatedAt"`
}
