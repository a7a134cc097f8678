// Package chain exposes the minimal view of this chain's connected headers
// and the node's sync state that the settlement core consumes. The consensus
// pipeline that produces and connects blocks lives outside this module.
package chain

import (
	"sync"
	"time"
)

// Header is one connected block header, backward-linked to its parent.
// The genesis header has Prev == nil.
type Header struct {
	Height uint64
	Hash   [32]byte
	Time   time.Time
	Prev   *Header
}

// View provides the current tip of the connected header chain.
type View interface {
	Tip() *Header
}

// NodeState reports whether the node may safely act on counter-chain facts.
type NodeState interface {
	IsInitialBlockDownload() bool
	WalletSyncedHeight() uint64
}

// Memory is an in-memory header chain, appended to by the block-connect
// pipeline.
type Memory struct {
	mu  sync.RWMutex
	tip *Header
}

// NewMemory creates a chain holding only the genesis header.
func NewMemory(genesisHash [32]byte, genesisTime time.Time) *Memory {
	return &Memory{tip: &Header{Height: 0, Hash: genesisHash, Time: genesisTime}}
}

// Append connects a new tip header.
func (m *Memory) Append(hash [32]byte, t time.Time) *Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := &Header{Height: m.tip.Height + 1, Hash: hash, Time: t, Prev: m.tip}
	m.tip = h
	return h
}

// Tip returns the current best header.
func (m *Memory) Tip() *Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tip
}

// Disconnect rolls the tip back one header, used on reorg.
func (m *Memory) Disconnect() *Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tip.Prev != nil {
		m.tip = m.tip.Prev
	}
	return m.tip
}

// StaticNodeState is a fixed NodeState, useful for wiring and tests until a
// live wallet/IBD feed is attached.
type StaticNodeState struct {
	InIBD        bool
	WalletHeight uint64
}

func (s StaticNodeState) IsInitialBlockDownload() bool { return s.InIBD }
func (s StaticNodeState) WalletSyncedHeight() uint64   { return s.WalletHeight }
