package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"quizcat-service/internal/domain"
)

func newRecord(questionID string, at time.Time) domain.AnswerRecord {
	q := domain.Question{ID: questionID, CorrectChoiceIndex: 1, Subject: "Math", Topic: "Addition"}
	return domain.NewAnswerRecord("u1", "s1", q, 1, domain.ConfidenceGuess, 2*time.Second, at)
}

func TestFallbackStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fallback.db")

	store, err := NewFallbackStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	first := newRecord("q1", at)
	second := newRecord("q2", at.Add(time.Second))
	if err := store.Save(ctx, domain.PendingAnswer{Record: first}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, domain.PendingAnswer{Record: second}); err != nil {
		t.Fatalf("save: %v", err)
	}
	// the insert went through on retry, only the award is still owed
	if err := store.Save(ctx, domain.PendingAnswer{Record: first, Stored: true}); err != nil {
		t.Fatalf("save again: %v", err)
	}
	store.Close()

	store, err = NewFallbackStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()

	pending, err := store.Pending(ctx, 0)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 parked answers, got %d", len(pending))
	}
	got := pending[0].Record
	if got.ID != first.ID || !got.IsCorrect || got.ConfidenceLevel != domain.ConfidenceGuess {
		t.Fatalf("unexpected first record %+v", got)
	}
	if !got.CreatedAt.Equal(at) {
		t.Fatalf("expected timestamp preserved, got %v", got.CreatedAt)
	}
	if !pending[0].Stored || pending[1].Stored {
		t.Fatalf("expected stored flag kept per answer, got %+v", pending)
	}

	if err := store.Remove(ctx, first.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if n, _ := store.Len(ctx); n != 1 {
		t.Fatalf("expected one left, got %d", n)
	}
	limited, _ := store.Pending(ctx, 1)
	if len(limited) != 1 || limited[0].Record.ID != second.ID {
		t.Fatalf("unexpected limited result %+v", limited)
	}
}
