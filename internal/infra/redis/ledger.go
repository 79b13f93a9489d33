package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"quizcat-service/internal/domain"
)

// Ledger keeps point balances as integers under quizcat:points:{userID}.
type Ledger struct {
	client *redis.Client
}

func NewLedger(client *redis.Client) *Ledger {
	return &Ledger{client: client}
}

// spendScript decrements only when the balance covers the amount.
// It returns the new balance, or -1 - balance when the balance is insufficient.
var spendScript = redis.NewScript(`
local balance = tonumber(redis.call("GET", KEYS[1]) or "0")
local amount = tonumber(ARGV[1])
if balance < amount then
  return -1 - balance
end
return redis.call("DECRBY", KEYS[1], amount)
`)

func (l *Ledger) Balance(ctx context.Context, userID string) (int, error) {
	n, err := l.client.Get(ctx, l.key(userID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return n, nil
}

func (l *Ledger) Award(ctx context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	n, err := l.client.IncrBy(ctx, l.key(userID), int64(amount)).Result()
	if err != nil {
		return 0, fmt.Errorf("award points: %w", err)
	}
	return int(n), nil
}

func (l *Ledger) Spend(ctx context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	n, err := spendScript.Run(ctx, l.client, []string{l.key(userID)}, amount).Int()
	if err != nil {
		return 0, fmt.Errorf("spend points: %w", err)
	}
	if n < 0 {
		return -1 - n, domain.ErrInsufficientBalance
	}
	return n, nil
}

func (l *Ledger) key(userID string) string {
	return "quizcat:points:" + userID
}
