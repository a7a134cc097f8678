// Package whitelist holds the set of 256-bit hashes approved through
// executed polls. The set is only ever mutated by the poll result executor.
package whitelist

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"sort"
	"sync"
)

// HashSize is the byte length of a whitelisted hash.
const HashSize = 32

// ErrBadHashLength reports a hash that is not exactly 32 bytes.
var ErrBadHashLength = errors.New("hash must be 32 bytes")

// Hash is a 256-bit whitelisted value.
type Hash [HashSize]byte

// Hex returns the canonical lowercase hex rendering.
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

// ParseHash parses a 64-character hex string into a Hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != HashSize {
		return h, ErrBadHashLength
	}
	copy(h[:], b)
	return h, nil
}

// Store is the durable whitelisted-hash repository. Add and Remove are
// idempotent: re-adding or removing an absent hash is a no-op.
type Store interface {
	Add(ctx context.Context, h Hash) error
	Remove(ctx context.Context, h Hash) error
	Contains(ctx context.Context, h Hash) (bool, error)
	List(ctx context.Context) ([]Hash, error)
}

// Memory is an in-memory Store.
type Memory struct {
	mu     sync.RWMutex
	hashes map[Hash]struct{}
}

// NewMemory creates an empty in-memory whitelist.
func NewMemory() *Memory {
	return &Memory{hashes: make(map[Hash]struct{})}
}

func (m *Memory) Add(_ context.Context, h Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashes[h] = struct{}{}
	return nil
}

func (m *Memory) Remove(_ context.Context, h Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hashes, h)
	return nil
}

func (m *Memory) Contains(_ context.Context, h Hash) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.hashes[h]
	return ok, nil
}

// List returns the hashes in bytewise ascending order so every node renders
// the same sequence.
func (m *Memory) List(_ context.Context) ([]Hash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Hash, 0, len(m.hashes))
	for h := range m.hashes {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out, nil
}
