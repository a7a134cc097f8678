// Package federation tracks the roster of authorized signers governing the
// sidechain. Membership changes only through executed polls.
package federation

import (
	"bytes"
	"sync"
)

// Roster is the current federation membership in join order.
type Roster struct {
	mu      sync.RWMutex
	members [][]byte
}

// NewRoster creates a roster from the initial member public keys.
func NewRoster(members ...[]byte) *Roster {
	r := &Roster{}
	for _, m := range members {
		r.Add(m)
	}
	return r
}

// Members returns a snapshot copy of the roster.
func (r *Roster) Members() [][]byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([][]byte, len(r.members))
	for i, m := range r.members {
		out[i] = append([]byte(nil), m...)
	}
	return out
}

// IsMember reports whether pub is currently a federation member.
func (r *Roster) IsMember(pub []byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index(pub) >= 0
}

// Add inserts a member. Adding an existing member is a no-op.
func (r *Roster) Add(pub []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index(pub) >= 0 {
		return
	}
	r.members = append(r.members, append([]byte(nil), pub...))
}

// Remove kicks a member. Removing an absent member is a no-op.
func (r *Roster) Remove(pub []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(pub)
	if i < 0 {
		return
	}
	r.members = append(r.members[:i], r.members[i+1:]...)
}

// Size returns the current member count.
func (r *Roster) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Quorum returns the strict-majority vote count for the current roster.
func (r *Roster) Quorum() int {
	return r.Size()/2 + 1
}

func (r *Roster) index(pub []byte) int {
	for i, m := range r.members {
		if bytes.Equal(m, pub) {
			return i
		}
	}
	return -1
}
