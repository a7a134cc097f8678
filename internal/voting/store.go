package voting

import (
	"context"
	"sync"
)

// PollStore is the durable mapping of proposal identity to poll state.
// Get returns (nil, nil) when no poll exists for the data.
type PollStore interface {
	Get(ctx context.Context, data VotingData) (*Poll, error)
	Save(ctx context.Context, poll *Poll) error
	Delete(ctx context.Context, data VotingData) error
	List(ctx context.Context) ([]*Poll, error)
}

// MemoryPollStore keeps polls in memory in first-seen order.
type MemoryPollStore struct {
	mu    sync.RWMutex
	polls map[string]*Poll
	order []string
}

// NewMemoryPollStore creates an empty in-memory poll store.
func NewMemoryPollStore() *MemoryPollStore {
	return &MemoryPollStore{polls: make(map[string]*Poll)}
}

func (s *MemoryPollStore) Get(_ context.Context, data VotingData) (*Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.polls[data.id()]
	if !ok {
		return nil, nil
	}
	return p.Clone(), nil
}

func (s *MemoryPollStore) Save(_ context.Context, poll *Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := poll.Data.id()
	if _, ok := s.polls[key]; !ok {
		s.order = append(s.order, key)
	}
	s.polls[key] = poll.Clone()
	return nil
}

func (s *MemoryPollStore) Delete(_ context.Context, data VotingData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := data.id()
	if _, ok := s.polls[key]; !ok {
		return nil
	}
	delete(s.polls, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryPollStore) List(_ context.Context) ([]*Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Poll, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.polls[k].Clone())
	}
	return out, nil
}
