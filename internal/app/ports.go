package app

import (
	"context"

	"quizcat-service/internal/domain"
)

// SessionRepository abstracts how live quiz sessions are held (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
	// List returns every live session held by this process.
	List() []*Session
}

// QuestionRepository is the question bank (from cache/backing store).
type QuestionRepository interface {
	Find(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error)
	Get(ctx context.Context, id string) (domain.Question, error)
	Create(ctx context.Context, q domain.Question) (domain.Question, error)
	Update(ctx context.Context, q domain.Question) (domain.Question, error)
	Delete(ctx context.Context, id string) error
	Catalog(ctx context.Context) (domain.Catalog, error)
}

// AnswerRepository stores answer records keyed by their deterministic ID.
type AnswerRepository interface {
	// Insert stores rec unless a record with the same ID exists; it reports whether a row was created.
	Insert(ctx context.Context, rec domain.AnswerRecord) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]domain.AnswerRecord, error)
	Delete(ctx context.Context, userID, answerID string) error
}

// PointsLedger keeps a non-negative balance per user using atomic primitives of the backing store.
type PointsLedger interface {
	Balance(ctx context.Context, userID string) (int, error)
	Award(ctx context.Context, userID string, amount int) (int, error)
	// Spend decrements only if the balance covers amount, otherwise domain.ErrInsufficientBalance.
	Spend(ctx context.Context, userID string, amount int) (int, error)
}

// RewardRepository stores rewards and their claims.
type RewardRepository interface {
	CreateReward(ctx context.Context, r domain.Reward) error
	GetReward(ctx context.Context, id string) (domain.Reward, error)
	ListRewards(ctx context.Context) ([]domain.Reward, error)
	DeleteReward(ctx context.Context, id string) error
	CreateClaim(ctx context.Context, c domain.RewardClaim) error
	ListClaims(ctx context.Context, userID string) ([]domain.RewardClaim, error)
}

// ProfileRepository stores user profiles. Points live in the PointsLedger.
type ProfileRepository interface {
	GetProfile(ctx context.Context, uid string) (domain.UserProfile, error)
	SaveProfile(ctx context.Context, p domain.UserProfile) error
}

// FallbackStore parks answer writes that failed so they can be replayed later.
// Saving an answer that is already parked replaces the entry.
type FallbackStore interface {
	Save(ctx context.Context, p domain.PendingAnswer) error
	Pending(ctx context.Context, limit int) ([]domain.PendingAnswer, error)
	Remove(ctx context.Context, id string) error
}

// EventPublisher emits domain events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

const (
	EventAnswerRecorded = "answer.recorded"
	EventRewardRedeemed = "reward.redeemed"
)
