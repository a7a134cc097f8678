package voting

import "sync"

// Scheduler queues votes this node intends to cast but has not yet had
// embedded into a produced block. It is owned by the local node only and is
// never shared with other federation members, so it lives in memory.
type Scheduler struct {
	mu    sync.Mutex
	queue []VotingData
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Add appends a vote to the back of the queue.
func (s *Scheduler) Add(data VotingData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, data)
}

// Snapshot returns the queued votes in FIFO order without consuming them.
func (s *Scheduler) Snapshot() []VotingData {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]VotingData, len(s.queue))
	for i, d := range s.queue {
		out[i] = VotingData{Key: d.Key, Payload: append([]byte(nil), d.Payload...)}
	}
	return out
}

// Take drains the queue. The block-production collaborator calls this once
// it is ready to embed the votes.
func (s *Scheduler) Take() []VotingData {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.queue
	s.queue = nil
	return out
}

// Len returns the number of queued votes.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
