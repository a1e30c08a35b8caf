package store

import (
	"context"
	"sync"

	"storefront-checkout/internal/domain"
)

// MemoryStore keeps serialized drafts in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	slots map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string][]byte)}
}

func (s *MemoryStore) Stage(_ context.Context, sessionID string, draft *domain.OrderDraft) error {
	data, err := encode(draft)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[key(sessionID)] = data
	return nil
}

func (s *MemoryStore) Read(_ context.Context, sessionID string) (*domain.OrderDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return decode(s.slots[key(sessionID)]), nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, key(sessionID))
	return nil
}

func (s *MemoryStore) Take(_ context.Context, sessionID string) (*domain.OrderDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(sessionID)
	data := s.slots[k]
	delete(s.slots, k)
	return decode(data), nil
}

// Put writes raw bytes into a slot, bypassing validation.
func (s *MemoryStore) Put(sessionID string, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[key(sessionID)] = raw
}
