package memory

import (
	"context"
	"sync"

	"quizcat-service/internal/domain"
)

// Ledger is a mutex-guarded points ledger.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]int
	fail     error
}

func NewLedger() *Ledger {
	return &Ledger{balances: make(map[string]int)}
}

func (l *Ledger) Balance(_ context.Context, userID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID], nil
}

// SetFail makes Award return err until reset with nil.
func (l *Ledger) SetFail(err error) {
	l.mu.Lock()
	l.fail = err
	l.mu.Unlock()
}

func (l *Ledger) Award(_ context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return l.balances[userID], l.fail
	}
	l.balances[userID] += amount
	return l.balances[userID], nil
}

func (l *Ledger) Spend(_ context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	balance := l.balances[userID]
	if balance < amount {
		return balance, domain.ErrInsufficientBalance
	}
	l.balances[userID] = balance - amount
	return l.balances[userID], nil
}
