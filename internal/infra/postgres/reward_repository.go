package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizcat-service/internal/domain"
)

type RewardRepository struct {
	pool *pgxpool.Pool
}

func NewRewardRepository(pool *pgxpool.Pool) *RewardRepository {
	return &RewardRepository{pool: pool}
}

const rewardColumns = `id, name, cost_in_points, image_url, description, expires_at, created_by, created_at`

func (r *RewardRepository) CreateReward(ctx context.Context, rw domain.Reward) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO rewards (`+rewardColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rw.ID, rw.Name, rw.CostInPoints, rw.ImageURL, rw.Description, rw.ExpiresAt, rw.CreatedBy, rw.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reward: %w", err)
	}
	return nil
}

func (r *RewardRepository) GetReward(ctx context.Context, id string) (domain.Reward, error) {
	rw, err := scanReward(r.pool.QueryRow(ctx, `SELECT `+rewardColumns+` FROM rewards WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Reward{}, domain.ErrRewardNotFound
	}
	return rw, err
}

func (r *RewardRepository) ListRewards(ctx context.Context) ([]domain.Reward, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+rewardColumns+` FROM rewards ORDER BY cost_in_points, id`)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Reward, 0)
	for rows.Next() {
		rw, err := scanReward(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rw)
	}
	return out, rows.Err()
}

func (r *RewardRepository) DeleteReward(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM rewards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete reward: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRewardNotFound
	}
	return nil
}

func (r *RewardRepository) CreateClaim(ctx context.Context, c domain.RewardClaim) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reward_claims (id, reward_id, user_id, cost, claimed_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.RewardID, c.UserID, c.Cost, c.ClaimedAt)
	if err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

func (r *RewardRepository) ListClaims(ctx context.Context, userID string) ([]domain.RewardClaim, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, reward_id, user_id, cost, claimed_at FROM reward_claims
		WHERE user_id = $1 ORDER BY claimed_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RewardClaim, 0)
	for rows.Next() {
		var c domain.RewardClaim
		if err := rows.Scan(&c.ID, &c.RewardID, &c.UserID, &c.Cost, &c.ClaimedAt); err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanReward(row pgx.Row) (domain.Reward, error) {
	var (
		rw      domain.Reward
		expires *time.Time
	)
	err := row.Scan(&rw.ID, &rw.Name, &rw.CostInPoints, &rw.ImageURL, &rw.Description, &expires, &rw.CreatedBy, &rw.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Reward{}, err
		}
		return domain.Reward{}, fmt.Errorf("scan reward: %w", err)
	}
	rw.ExpiresAt = expires
	return rw, nil
}
