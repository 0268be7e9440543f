package fisher

import "sync"

// MemoryStore is the in-memory Store used by default.
//
// Suitable for single-instance deployments where payment history does not
// need to survive a restart. Deployments needing durable history can swap in
// a Store backed by a database without touching the state machine.
type MemoryStore struct {
	mu       sync.RWMutex
	payments map[string]*Payment
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{payments: make(map[string]*Payment)}
}

func (s *MemoryStore) Put(p *Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = p
}

func (s *MemoryStore) Get(id string) (*Payment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[id]
	return p, ok
}

func (s *MemoryStore) ListByStatus(status Status) []*Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Payment
	for _, p := range s.payments {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out
}

func (s *MemoryStore) Counts() map[Status]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[Status]int)
	for _, p := range s.payments {
		counts[p.Status]++
	}
	return counts
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.payments)
}

var _ Store = (*MemoryStore)(nil)
