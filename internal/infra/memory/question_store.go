package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"quizcat-service/internal/domain"
)

// QuestionStore is an in-memory question bank (useful for tests/demos).
type QuestionStore struct {
	mu        sync.RWMutex
	questions map[string]domain.Question
	order     []string
}

func NewQuestionStore(seed ...domain.Question) *QuestionStore {
	s := &QuestionStore{questions: make(map[string]domain.Question)}
	for _, q := range seed {
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		s.put(q)
	}
	return s
}

func (s *QuestionStore) Find(_ context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Question, 0)
	for _, id := range s.order {
		q := s.questions[id]
		if !filter.Matches(q) {
			continue
		}
		out = append(out, cloneQuestion(q))
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *QuestionStore) Get(_ context.Context, id string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return cloneQuestion(q), nil
}

func (s *QuestionStore) Create(_ context.Context, q domain.Question) (domain.Question, error) {
	if err := q.Validate(); err != nil {
		return domain.Question{}, err
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	s.mu.Lock()
	s.put(q)
	s.mu.Unlock()
	return cloneQuestion(q), nil
}

func (s *QuestionStore) Update(_ context.Context, q domain.Question) (domain.Question, error) {
	if err := q.Validate(); err != nil {
		return domain.Question{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[q.ID]; !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	s.put(q)
	return cloneQuestion(q), nil
}

func (s *QuestionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[id]; !ok {
		return domain.ErrQuestionNotFound
	}
	delete(s.questions, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *QuestionStore) Catalog(_ context.Context) (domain.Catalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]domain.Question, 0, len(s.questions))
	for _, q := range s.questions {
		all = append(all, q)
	}
	return domain.BuildCatalog(all), nil
}

// put must be called with mu held (or before the store is shared).
func (s *QuestionStore) put(q domain.Question) {
	if _, ok := s.questions[q.ID]; !ok {
		s.order = append(s.order, q.ID)
	}
	s.questions[q.ID] = cloneQuestion(q)
}

func cloneQuestion(q domain.Question) domain.Question {
	q.Choices = append([]string(nil), q.Choices...)
	return q
}
