package memory

import (
	"context"
	"sort"
	"sync"

	"quizcat-service/internal/domain"
)

// AnswerStore keeps answer records keyed by their deterministic ID.
type AnswerStore struct {
	mu      sync.RWMutex
	records map[string]domain.AnswerRecord
	fail    error
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{records: make(map[string]domain.AnswerRecord)}
}

func (s *AnswerStore) Insert(_ context.Context, rec domain.AnswerRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return false, s.fail
	}
	if _, ok := s.records[rec.ID]; ok {
		return false, nil
	}
	s.records[rec.ID] = rec
	return true, nil
}

// SetFail makes Insert return err until reset with nil; it simulates an unavailable backend.
func (s *AnswerStore) SetFail(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

func (s *AnswerStore) ListByUser(_ context.Context, userID string) ([]domain.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AnswerRecord, 0)
	for _, rec := range s.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Delete removes the record if it belongs to userID. Records of other users are reported as missing.
func (s *AnswerStore) Delete(_ context.Context, userID, answerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[answerID]
	if !ok || rec.UserID != userID {
		return domain.ErrAnswerNotFound
	}
	delete(s.records, answerID)
	return nil
}
