package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizcat-service/internal/domain"
)

// Ledger keeps the balance in users.points. The CHECK (points >= 0) constraint backs up the conditional update.
type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

func (l *Ledger) Balance(ctx context.Context, userID string) (int, error) {
	var points int
	err := l.pool.QueryRow(ctx, `SELECT points FROM users WHERE uid = $1`, userID).Scan(&points)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return points, nil
}

func (l *Ledger) Award(ctx context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	var points int
	err := l.pool.QueryRow(ctx, `
		INSERT INTO users (uid, points) VALUES ($1, $2)
		ON CONFLICT (uid) DO UPDATE SET points = users.points + EXCLUDED.points, updated_at = now()
		RETURNING points`, userID, amount).Scan(&points)
	if err != nil {
		return 0, fmt.Errorf("award points: %w", err)
	}
	return points, nil
}

// Spend decrements in a single conditional UPDATE, so concurrent spends cannot both pass the check.
func (l *Ledger) Spend(ctx context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	var points int
	err := l.pool.QueryRow(ctx, `
		UPDATE users SET points = points - $2, updated_at = now()
		WHERE uid = $1 AND points >= $2
		RETURNING points`, userID, amount).Scan(&points)
	if errors.Is(err, pgx.ErrNoRows) {
		balance, berr := l.Balance(ctx, userID)
		if berr != nil {
			return 0, berr
		}
		return balance, domain.ErrInsufficientBalance
	}
	if err != nil {
		return 0, fmt.Errorf("spend points: %w", err)
	}
	return points, nil
}
