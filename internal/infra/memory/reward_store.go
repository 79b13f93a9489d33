package memory

import (
	"context"
	"sort"
	"sync"

	"quizcat-service/internal/domain"
)

// RewardStore holds rewards and claims in memory.
type RewardStore struct {
	mu         sync.RWMutex
	rewards    map[string]domain.Reward
	claims     []domain.RewardClaim
	failClaims error
}

func NewRewardStore() *RewardStore {
	return &RewardStore{rewards: make(map[string]domain.Reward)}
}

func (s *RewardStore) CreateReward(_ context.Context, r domain.Reward) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rewards[r.ID] = r
	return nil
}

func (s *RewardStore) GetReward(_ context.Context, id string) (domain.Reward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rewards[id]
	if !ok {
		return domain.Reward{}, domain.ErrRewardNotFound
	}
	return r, nil
}

func (s *RewardStore) ListRewards(_ context.Context) ([]domain.Reward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Reward, 0, len(s.rewards))
	for _, r := range s.rewards {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CostInPoints != out[j].CostInPoints {
			return out[i].CostInPoints < out[j].CostInPoints
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *RewardStore) DeleteReward(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rewards[id]; !ok {
		return domain.ErrRewardNotFound
	}
	delete(s.rewards, id)
	return nil
}

func (s *RewardStore) CreateClaim(_ context.Context, c domain.RewardClaim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failClaims != nil {
		return s.failClaims
	}
	s.claims = append(s.claims, c)
	return nil
}

func (s *RewardStore) ListClaims(_ context.Context, userID string) ([]domain.RewardClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RewardClaim, 0)
	for i := len(s.claims) - 1; i >= 0; i-- {
		if s.claims[i].UserID == userID {
			out = append(out, s.claims[i])
		}
	}
	return out, nil
}

// SetClaimFailure makes CreateClaim return err until reset with nil.
func (s *RewardStore) SetClaimFailure(err error) {
	s.mu.Lock()
	s.failClaims = err
	s.mu.Unlock()
}
