package cli

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"quizcat-service/internal/app"
	"quizcat-service/internal/config"
	"quizcat-service/internal/domain"
	"quizcat-service/internal/logger"
	"quizcat-service/internal/questionbank"
)

func TestBuildServicesInMemory(t *testing.T) {
	ctx := context.Background()
	var cfg config.Config
	cfg.Quiz.PassPolicyPath = filepath.Join("..", "..", "config", "pass_policy.yaml")
	cfg.Fallback.Path = filepath.Join(t.TempDir(), "data", "fallback.db")

	svc, err := buildServices(ctx, cfg, logger.Nop())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer svc.Close()

	q, err := svc.questions.Create(ctx, domain.Question{
		Text:               "1 + 1 = ?",
		Choices:            []string{"1", "2", "3", "4"},
		CorrectChoiceIndex: 1,
		Subject:            "Math",
	})
	if err != nil {
		t.Fatalf("create question: %v", err)
	}

	view, err := svc.quiz.Start(ctx, "u1", domain.QuestionFilter{Subject: "math"}, app.StartOptions{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if view.Question == nil || view.Question.ID != q.ID {
		t.Fatalf("expected the created question, got %+v", view.Question)
	}
	if _, err := svc.quiz.Select(ctx, "u1", view.SessionID, 1); err != nil {
		t.Fatalf("select: %v", err)
	}
	res, err := svc.quiz.Submit(ctx, "u1", view.SessionID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Persisted || res.Balance != domain.PointsPerCorrect {
		t.Fatalf("unexpected submit result %+v", res)
	}

	if _, err := svc.questions.Generate(ctx, questionbank.GenerateRequest{Prompt: "x"}); !errors.Is(err, questionbank.ErrGeneratorDisabled) {
		t.Fatalf("expected generator disabled without an API key, got %v", err)
	}
}

func TestBuildServicesRejectsBrokenPassPolicy(t *testing.T) {
	var cfg config.Config
	cfg.Quiz.PassPolicyPath = filepath.Join("..", "..", "config", "config.yaml")

	if _, err := buildServices(context.Background(), cfg, logger.Nop()); err == nil {
		t.Fatalf("expected a policy without a default table to be rejected")
	}
}
