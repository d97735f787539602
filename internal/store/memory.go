package store

import (
	"context"
	"errors"
	"sync"
	"time"
)

type memoryEntry struct {
	req       Request
	expiresAt time.Time
}

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

var _ RequestStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store with RequestTTL expiry.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]memoryEntry),
		ttl:     RequestTTL,
		now:     time.Now,
	}
}

func (s *MemoryStore) PutRequest(ctx context.Context, req *Request) error {
	if req == nil || req.ID == "" {
		return errors.New("request record without ID")
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.records {
		if now.After(e.expiresAt) {
			delete(s.records, id)
		}
	}
	s.records[req.ID] = memoryEntry{req: *req, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *MemoryStore) GetRequest(ctx context.Context, id string) (*Request, error) {
	s.mu.RLock()
	e, ok := s.records[id]
	s.mu.RUnlock()
	if !ok || s.now().After(e.expiresAt) {
		return nil, nil
	}
	req := e.req
	return &req, nil
}

// Len returns the number of live records.
func (s *MemoryStore) Len() int {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.records {
		if !now.After(e.expiresAt) {
			n++
		}
	}
	return n
}
