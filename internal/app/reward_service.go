package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"quizcat-service/internal/domain"
	"quizcat-service/internal/logger"
	"quizcat-service/internal/metrics"
)

// RewardService manages the reward catalogue and redemptions against the points ledger.
type RewardService struct {
	rewards RewardRepository
	ledger  PointsLedger
	events  EventPublisher
	admins  map[string]bool
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
}

// NewRewardService wires the service. admins are user IDs allowed to delete any reward.
func NewRewardService(rewards RewardRepository, ledger PointsLedger, events EventPublisher, admins []string, log *logger.Logger, m *metrics.Metrics) *RewardService {
	if events == nil {
		events = NopPublisher{}
	}
	set := make(map[string]bool, len(admins))
	for _, a := range admins {
		set[a] = true
	}
	return &RewardService{
		rewards: rewards,
		ledger:  ledger,
		events:  events,
		admins:  set,
		log:     logger.OrNop(log).With("component", "rewards"),
		metrics: m,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// WithClock is test-only.
func (s *RewardService) WithClock(now func() time.Time) *RewardService {
	s.now = now
	return s
}

// Create adds a reward owned by userID.
func (s *RewardService) Create(ctx context.Context, userID string, r domain.Reward) (domain.Reward, error) {
	if userID == "" {
		return domain.Reward{}, domain.ErrUnauthenticated
	}
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return domain.Reward{}, fmt.Errorf("%w: name is empty", domain.ErrInvalidReward)
	}
	if r.CostInPoints <= 0 {
		return domain.Reward{}, fmt.Errorf("%w: cost must be positive", domain.ErrInvalidReward)
	}
	r.ID = s.newID()
	r.CreatedBy = userID
	r.CreatedAt = s.now().UTC()
	if err := s.rewards.CreateReward(ctx, r); err != nil {
		return domain.Reward{}, fmt.Errorf("create reward: %w", err)
	}
	return r, nil
}

// List returns the rewards that can still be claimed.
func (s *RewardService) List(ctx context.Context) ([]domain.Reward, error) {
	all, err := s.rewards.ListRewards(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]domain.Reward, 0, len(all))
	for _, r := range all {
		if !r.Expired(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Delete removes a reward. Only its creator or an admin may do so.
func (s *RewardService) Delete(ctx context.Context, userID, rewardID string) error {
	r, err := s.rewards.GetReward(ctx, rewardID)
	if err != nil {
		return err
	}
	if r.CreatedBy != userID && !s.admins[userID] {
		return domain.ErrForbidden
	}
	return s.rewards.DeleteReward(ctx, rewardID)
}

// Redeem spends the reward's cost and records the claim. The balance check and
// decrement are a single conditional update in the ledger, so concurrent
// redemptions cannot overspend. If the claim cannot be written the points are refunded.
func (s *RewardService) Redeem(ctx context.Context, userID, rewardID string) (domain.RewardClaim, int, error) {
	if userID == "" {
		return domain.RewardClaim{}, 0, domain.ErrUnauthenticated
	}
	r, err := s.rewards.GetReward(ctx, rewardID)
	if err != nil {
		return domain.RewardClaim{}, 0, err
	}
	now := s.now()
	if r.Expired(now) {
		s.metrics.Redemption("expired")
		return domain.RewardClaim{}, 0, domain.ErrRewardExpired
	}

	balance, err := s.ledger.Spend(ctx, userID, r.CostInPoints)
	if err != nil {
		s.metrics.Redemption("rejected")
		return domain.RewardClaim{}, balance, err
	}

	claim := domain.RewardClaim{
		ID:        s.newID(),
		RewardID:  r.ID,
		UserID:    userID,
		Cost:      r.CostInPoints,
		ClaimedAt: now.UTC(),
	}
	if err := s.rewards.CreateClaim(ctx, claim); err != nil {
		refunded, rerr := s.ledger.Award(context.WithoutCancel(ctx), userID, r.CostInPoints)
		if rerr != nil {
			s.log.Error("refund after failed claim", "user_id", userID, "reward_id", r.ID, "cost", r.CostInPoints, "error", rerr)
			refunded = balance
		}
		s.metrics.Redemption("failed")
		return domain.RewardClaim{}, refunded, fmt.Errorf("record claim: %w", err)
	}

	s.metrics.Redemption("ok")
	s.log.Info("reward redeemed", "user_id", userID, "reward_id", r.ID, "cost", r.CostInPoints, "balance", balance)
	if err := s.events.Publish(ctx, EventRewardRedeemed, claim); err != nil {
		s.log.Warn("publish redemption event", "claim_id", claim.ID, "error", err)
	}
	return claim, balance, nil
}

// Claims lists the user's redemptions, newest first.
func (s *RewardService) Claims(ctx context.Context, userID string) ([]domain.RewardClaim, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return s.rewards.ListClaims(ctx, userID)
}

// Balance returns the user's point balance.
func (s *RewardService) Balance(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, domain.ErrUnauthenticated
	}
	return s.ledger.Balance(ctx, userID)
}
