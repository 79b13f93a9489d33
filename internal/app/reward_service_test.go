package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizcat-service/internal/app"
	"quizcat-service/internal/domain"
	"quizcat-service/internal/infra/memory"
)

func newRewardService(admins ...string) (*app.RewardService, *memory.RewardStore, *memory.Ledger) {
	store := memory.NewRewardStore()
	ledger := memory.NewLedger()
	return app.NewRewardService(store, ledger, nil, admins, nil, nil), store, ledger
}

func TestRedeemWithInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	service, store, ledger := newRewardService()
	_, _ = ledger.Award(ctx, "kid", 15)

	reward, err := service.Create(ctx, "coach", domain.Reward{Name: "Sticker", CostInPoints: 20})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, balance, err := service.Redeem(ctx, "kid", reward.ID)
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if balance != 15 {
		t.Fatalf("expected balance to stay 15, got %d", balance)
	}
	if current, _ := ledger.Balance(ctx, "kid"); current != 15 {
		t.Fatalf("expected ledger balance 15, got %d", current)
	}
	if claims, _ := store.ListClaims(ctx, "kid"); len(claims) != 0 {
		t.Fatalf("expected no claim, got %d", len(claims))
	}
}

func TestRedeemSpendsAndRecordsClaim(t *testing.T) {
	ctx := context.Background()
	service, _, ledger := newRewardService()
	_, _ = ledger.Award(ctx, "kid", 50)
	reward, _ := service.Create(ctx, "coach", domain.Reward{Name: "Pencil", CostInPoints: 20})

	claim, balance, err := service.Redeem(ctx, "kid", reward.ID)
	if err != nil {
		t.Fatalf("redeem failed: %v", err)
	}
	if balance != 30 || claim.Cost != 20 || claim.RewardID != reward.ID {
		t.Fatalf("unexpected redemption %+v balance=%d", claim, balance)
	}
	claims, _ := service.Claims(ctx, "kid")
	if len(claims) != 1 {
		t.Fatalf("expected one claim, got %d", len(claims))
	}
}

func TestRedeemRefundsWhenClaimWriteFails(t *testing.T) {
	ctx := context.Background()
	service, store, ledger := newRewardService()
	_, _ = ledger.Award(ctx, "kid", 40)
	reward, _ := service.Create(ctx, "coach", domain.Reward{Name: "Book", CostInPoints: 25})

	store.SetClaimFailure(errors.New("write failed"))
	_, balance, err := service.Redeem(ctx, "kid", reward.ID)
	if err == nil {
		t.Fatalf("expected redeem to fail")
	}
	if balance != 40 {
		t.Fatalf("expected refund to 40, got %d", balance)
	}
}

func TestExpiredRewardsAreHiddenAndUnclaimable(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	service, _, ledger := newRewardService()
	service.WithClock(func() time.Time { return now })
	_, _ = ledger.Award(ctx, "kid", 100)

	past := now.Add(-time.Hour)
	expired, _ := service.Create(ctx, "coach", domain.Reward{Name: "Old", CostInPoints: 5, ExpiresAt: &past})
	_, _ = service.Create(ctx, "coach", domain.Reward{Name: "New", CostInPoints: 5})

	list, _ := service.List(ctx)
	if len(list) != 1 || list[0].Name != "New" {
		t.Fatalf("expected only the live reward, got %+v", list)
	}
	if _, _, err := service.Redeem(ctx, "kid", expired.ID); !errors.Is(err, domain.ErrRewardExpired) {
		t.Fatalf("expected ErrRewardExpired, got %v", err)
	}
}

func TestDeleteRewardRequiresCreatorOrAdmin(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newRewardService("admin")
	r1, _ := service.Create(ctx, "coach", domain.Reward{Name: "A", CostInPoints: 5})
	r2, _ := service.Create(ctx, "coach", domain.Reward{Name: "B", CostInPoints: 5})

	if err := service.Delete(ctx, "kid", r1.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := service.Delete(ctx, "coach", r1.ID); err != nil {
		t.Fatalf("creator delete failed: %v", err)
	}
	if err := service.Delete(ctx, "admin", r2.ID); err != nil {
		t.Fatalf("admin delete failed: %v", err)
	}
}

func TestCreateRewardValidates(t *testing.T) {
	service, _, _ := newRewardService()
	if _, err := service.Create(context.Background(), "coach", domain.Reward{Name: "Free", CostInPoints: 0}); !errors.Is(err, domain.ErrInvalidReward) {
		t.Fatalf("expected ErrInvalidReward, got %v", err)
	}
}
