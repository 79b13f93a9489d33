package memory

import (
	"context"
	"sync"

	"quizcat-service/internal/domain"
)

// FallbackStore parks answers in process memory. It does not survive a restart;
// the sqlite implementation does.
type FallbackStore struct {
	mu      sync.Mutex
	pending []domain.PendingAnswer
}

func NewFallbackStore() *FallbackStore {
	return &FallbackStore{}
}

func (s *FallbackStore) Save(_ context.Context, p domain.PendingAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.pending {
		if existing.Record.ID == p.Record.ID {
			s.pending[i] = p
			return nil
		}
	}
	s.pending = append(s.pending, p)
	return nil
}

func (s *FallbackStore) Pending(_ context.Context, limit int) ([]domain.PendingAnswer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.pending)
	if limit > 0 && limit < n {
		n = limit
	}
	return append([]domain.PendingAnswer(nil), s.pending[:n]...), nil
}

func (s *FallbackStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.pending {
		if existing.Record.ID == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *FallbackStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
