package peg

import (
	"context"
	"sync"
)

// ConversionStore is the durable mapping of deposit id to conversion
// request. Requests are created exactly once and never deleted here.
type ConversionStore interface {
	Exists(ctx context.Context, id DepositID) (bool, error)
	Save(ctx context.Context, req *ConversionRequest) error
	List(ctx context.Context) ([]*ConversionRequest, error)
}

// TransferStore is the external cross-chain transfer store boundary. It owns
// the sync checkpoint: NextMatureDepositHeight advances only through its own
// accounting when a matured block is recorded.
type TransferStore interface {
	// RecordLatestMatureDeposits records the standard deposits of one matured
	// counter-chain block (already deterministically ordered) and reports
	// whether anything new was recorded.
	RecordLatestMatureDeposits(ctx context.Context, blockHeight uint64, deposits []Deposit) (bool, error)
	// SaveCurrentTip flushes the store's current tip when the node is caught
	// up.
	SaveCurrentTip(ctx context.Context) error
	// NextMatureDepositHeight is where the next fetch resumes.
	NextMatureDepositHeight(ctx context.Context) (uint64, error)
}

// MemoryConversionStore keeps conversion requests in memory in creation
// order.
type MemoryConversionStore struct {
	mu       sync.RWMutex
	requests map[DepositID]*ConversionRequest
	order    []DepositID
}

// NewMemoryConversionStore creates an empty in-memory conversion store.
func NewMemoryConversionStore() *MemoryConversionStore {
	return &MemoryConversionStore{requests: make(map[DepositID]*ConversionRequest)}
}

func (s *MemoryConversionStore) Exists(_ context.Context, id DepositID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.requests[id]
	return ok, nil
}

func (s *MemoryConversionStore) Save(_ context.Context, req *ConversionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.RequestID]; !ok {
		s.order = append(s.order, req.RequestID)
	}
	c := *req
	s.requests[req.RequestID] = &c
	return nil
}

func (s *MemoryConversionStore) List(_ context.Context) ([]*ConversionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ConversionRequest, 0, len(s.order))
	for _, id := range s.order {
		c := *s.requests[id]
		out = append(out, &c)
	}
	return out, nil
}

// MemoryTransferStore is an in-memory TransferStore for tests and embedded
// runs.
type MemoryTransferStore struct {
	mu         sync.Mutex
	nextHeight uint64
	recorded   map[DepositID]Deposit
	order      []DepositID
	tipSaves   int
}

// NewMemoryTransferStore creates a transfer store resuming at startHeight.
func NewMemoryTransferStore(startHeight uint64) *MemoryTransferStore {
	return &MemoryTransferStore{
		nextHeight: startHeight,
		recorded:   make(map[DepositID]Deposit),
	}
}

func (s *MemoryTransferStore) RecordLatestMatureDeposits(_ context.Context, blockHeight uint64, deposits []Deposit) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recorded := false
	for _, d := range deposits {
		if _, ok := s.recorded[d.ID]; ok {
			continue
		}
		s.recorded[d.ID] = d
		s.order = append(s.order, d.ID)
		recorded = true
	}
	if blockHeight+1 > s.nextHeight {
		s.nextHeight = blockHeight + 1
	}
	return recorded, nil
}

func (s *MemoryTransferStore) SaveCurrentTip(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tipSaves++
	return nil
}

func (s *MemoryTransferStore) NextMatureDepositHeight(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextHeight, nil
}

// Recorded returns the recorded deposits in record order.
func (s *MemoryTransferStore) Recorded() []Deposit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Deposit, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.recorded[id])
	}
	return out
}

// TipSaves returns how often SaveCurrentTip was called.
func (s *MemoryTransferStore) TipSaves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tipSaves
}
