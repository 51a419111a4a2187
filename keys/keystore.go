// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

package keys

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/aumos-ai/did-delegator/types"
)

// KeyStore is a thread-safe, in-process store of secp256k1 keys. A key is
// stored once per address. Key material exists only for the lifetime of the
// process.
type KeyStore struct {
	mu     sync.RWMutex
	keys   map[string]*Key
	byAddr map[common.Address]string
}

// NewKeyStore constructs an empty KeyStore.
func NewKeyStore() *KeyStore {
	return &KeyStore{
		keys:   make(map[string]*Key),
		byAddr: make(map[common.Address]string),
	}
}

// Generate creates a fresh key, stores it and returns it with its ID.
func (s *KeyStore) Generate(ctx context.Context) (string, *Key, error) {
	k, err := GenerateKey()
	if err != nil {
		return "", nil, err
	}
	id, err := s.Store(ctx, k)
	if err != nil {
		return "", nil, err
	}
	return id, k, nil
}

// Store saves k and returns its ID. Storing a key whose address is already
// present returns the existing ID.
func (s *KeyStore) Store(_ context.Context, k *Key) (string, error) {
	if k == nil {
		return "", fmt.Errorf("keys: cannot store nil key")
	}
	addr := k.Address()
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byAddr[addr]; ok {
		return id, nil
	}
	id := uuid.NewString()
	s.keys[id] = k
	s.byAddr[addr] = id
	return id, nil
}

// Load returns the key stored under id.
func (s *KeyStore) Load(_ context.Context, id string) (*Key, error) {
	s.mu.RLock()
	k, ok := s.keys[id]
	s.mu.RUnlock()
	if !ok {
		return nil, &types.ErrKeyNotFound{KeyID: id}
	}
	return k, nil
}

// ByAddress returns the key controlling addr, if stored.
func (s *KeyStore) ByAddress(addr common.Address) (*Key, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byAddr[addr]
	if !ok {
		return nil, false
	}
	return s.keys[id], true
}

// List returns the stored key IDs in lexical order.
func (s *KeyStore) List(_ context.Context) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.keys))
	for id := range s.keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Delete drops the key stored under id. Unknown IDs are ignored.
func (s *KeyStore) Delete(_ context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.keys[id]; ok {
		delete(s.byAddr, k.Address())
		delete(s.keys, id)
	}
}
