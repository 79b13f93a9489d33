package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quizcat-service/internal/app"
	"quizcat-service/internal/domain"
	"quizcat-service/internal/infra/memory"
)

type harness struct {
	service  *app.QuizService
	sessions *memory.SessionStore
	answers  *memory.AnswerStore
	ledger   *memory.Ledger
	fallback *memory.FallbackStore

	mu      sync.Mutex
	now     time.Time
	expires []func()
}

func (h *harness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	h.now = h.now.Add(d)
	h.mu.Unlock()
}

func (h *harness) schedule(_ time.Duration, f func()) app.Timer {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.expires = append(h.expires, f)
	return stopTimer{}
}

// fireLatest runs the most recently scheduled countdown callback.
func (h *harness) fireLatest() {
	h.mu.Lock()
	f := h.expires[len(h.expires)-1]
	h.mu.Unlock()
	f()
}

type stopTimer struct{}

func (stopTimer) Stop() bool { return true }

func newHarness(cfg app.QuizConfig) *harness {
	h := &harness{
		sessions: memory.NewSessionStore(),
		answers:  memory.NewAnswerStore(),
		ledger:   memory.NewLedger(),
		fallback: memory.NewFallbackStore(),
		now:      time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	h.service = app.NewQuizService(app.QuizDeps{
		Sessions:  h.sessions,
		Questions: memory.NewQuestionStore(testQuestions()...),
		Answers:   h.answers,
		Ledger:    h.ledger,
		Fallback:  h.fallback,
	}, cfg).WithClock(h.clock, h.schedule)
	return h
}

func testQuestions() []domain.Question {
	return []domain.Question{
		{ID: "m1", Text: "1 + 1", Choices: []string{"1", "2", "3", "4"}, CorrectChoiceIndex: 1, Subject: "Math", Topic: "Addition", Grade: 1},
		{ID: "m2", Text: "2 + 2", Choices: []string{"2", "3", "4", "5"}, CorrectChoiceIndex: 2, Subject: "Math", Topic: "Addition", Grade: 1},
		{ID: "m3", Text: "3 + 3", Choices: []string{"6", "7", "8", "9"}, CorrectChoiceIndex: 0, Subject: "Math", Topic: "Addition", Grade: 1},
		{ID: "t1", Text: "ก", Choices: []string{"ก", "ข", "ค", "ง"}, CorrectChoiceIndex: 0, Subject: "Thai", Topic: "Reading", Grade: 1},
	}
}

var answerKey = map[string]int{"m1": 1, "m2": 2, "m3": 0, "t1": 0}

func TestSubmitPersistsAndAwardsPoints(t *testing.T) {
	ctx := context.Background()
	h := newHarness(app.QuizConfig{})

	view, err := h.service.Start(ctx, "u1", domain.QuestionFilter{Subject: "Math"}, app.StartOptions{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if view.Total != 3 {
		t.Fatalf("expected 3 math questions, got %d", view.Total)
	}

	qid := view.Question.ID
	if _, err := h.service.Select(ctx, "u1", view.SessionID, answerKey[qid]); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	res, err := h.service.Submit(ctx, "u1", view.SessionID)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !res.Record.IsCorrect || res.Awarded != 10 || res.Balance != 10 || !res.Persisted {
		t.Fatalf("unexpected submit result %+v", res)
	}

	if _, err := h.service.Submit(ctx, "u1", view.SessionID); !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("expected ErrAlreadyAnswered, got %v", err)
	}
	records, _ := h.answers.ListByUser(ctx, "u1")
	if len(records) != 1 {
		t.Fatalf("expected a single stored record, got %d", len(records))
	}
}

func TestWrongAnswerAwardsNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(app.QuizConfig{})
	view, _ := h.service.Start(ctx, "u1", domain.QuestionFilter{Subject: "Thai"}, app.StartOptions{})

	_, _ = h.service.Select(ctx, "u1", view.SessionID, 3)
	res, err := h.service.Submit(ctx, "u1", view.SessionID)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if res.Record.IsCorrect || res.Awarded != 0 || !res.Persisted {
		t.Fatalf("unexpected result %+v", res)
	}
	if balance, _ := h.ledger.Balance(ctx, "u1"); balance != 0 {
		t.Fatalf("expected balance 0, got %d", balance)
	}
}

func TestStartWithEmptyPool(t *testing.T) {
	h := newHarness(app.QuizConfig{})
	_, err := h.service.Start(context.Background(), "u1", domain.QuestionFilter{Subject: "Science"}, app.StartOptions{})
	if !errors.Is(err, domain.ErrEmptyQuestionPool) {
		t.Fatalf("expected ErrEmptyQuestionPool, got %v", err)
	}
}

func TestSessionBelongsToItsUser(t *testing.T) {
	ctx := context.Background()
	h := newHarness(app.QuizConfig{})
	view, _ := h.service.Start(ctx, "u1", domain.QuestionFilter{}, app.StartOptions{})

	if _, err := h.service.Select(ctx, "u2", view.SessionID, 0); !errors.Is(err, domain.ErrNotSessionOwner) {
		t.Fatalf("expected ErrNotSessionOwner, got %v", err)
	}
	if _, err := h.service.Skip(ctx, "u1", "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestPracticeModePersistsNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(app.QuizConfig{})
	view, _ := h.service.Start(ctx, "u1", domain.QuestionFilter{Subject: "Thai"}, app.StartOptions{Practice: true})

	_, _ = h.service.Select(ctx, "u1", view.SessionID, 0)
	res, err := h.service.Submit(ctx, "u1", view.SessionID)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !res.Record.IsCorrect || res.Persisted || res.Awarded != 0 {
		t.Fatalf("practice answers must not be stored or rewarded: %+v", res)
	}
	if records, _ := h.answers.ListByUser(ctx, "u1"); len(records) != 0 {
		t.Fatalf("expected no stored records, got %d", len(records))
	}
}

func TestFailedWriteIsParkedAndReplayedOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(app.QuizConfig{})
	view, _ := h.service.Start(ctx, "u1", domain.QuestionFilter{Subject: "Thai"}, app.StartOptions{})

	h.answers.SetFail(errors.New("backend down"))
	_, _ = h.service.Select(ctx, "u1", view.SessionID, 0)
	res, err := h.service.Submit(ctx, "u1", view.SessionID)
	if err != nil {
		t.Fatalf("a failed write must not fail the submission: %v", err)
	}
	if res.Persisted || res.View.Answered != 1 {
		t.Fatalf("expected unpersisted but progressed session, got %+v", res)
	}
	if h.fallback.Len() != 1 {
		t.Fatalf("expected answer parked locally, got %d", h.fallback.Len())
	}

	// still down: nothing is lost
	if n, err := h.service.ReplayPending(ctx); err == nil || n != 0 {
		t.Fatalf("expected replay to stop on failure, got %d %v", n, err)
	}
	if h.fallback.Len() != 1 {
		t.Fatalf("expected answer kept after failed replay")
	}

	h.answers.SetFail(nil)
	n, err := h.service.ReplayPending(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected one replayed answer, got %d %v", n, err)
	}
	if balance, _ := h.ledger.Balance(ctx, "u1"); balance != 10 {
		t.Fatalf("expected points awarded on replay, got %d", balance)
	}

	// replaying the same record again is a duplicate and awards nothing
	_ = h.fallback.Save(ctx, domain.PendingAnswer{Record: res.Record})
	if _, err := h.service.ReplayPending(ctx); err != nil {
		t.Fatalf("replay duplicate: %v", err)
	}
	if balance, _ := h.ledger.Balance(ctx, "u1"); balance != 10 {
		t.Fatalf("duplicate must not award again, got %d", balance)
	}
	if h.fallback.Len() != 0 {
		t.Fatalf("expected fallback drained")
	}
}

func TestFailedAwardIsRetriedWithoutDuplicatingTheRecord(t *testing.T) {
	ctx := context.Background()
	h := newHarness(app.QuizConfig{})
	view, _ := h.service.Start(ctx, "u1", domain.QuestionFilter{Subject: "Thai"}, app.StartOptions{})

	h.ledger.SetFail(errors.New("ledger down"))
	_, _ = h.service.Select(ctx, "u1", view.SessionID, 0)
	res, err := h.service.Submit(ctx, "u1", view.SessionID)
	if err != nil {
		t.Fatalf("a failed award must not fail the submission: %v", err)
	}
	if !res.Record.IsCorrect || !res.Persisted || res.Awarded != 0 {
		t.Fatalf("expected stored record without points yet, got %+v", res)
	}
	pending, _ := h.fallback.Pending(ctx, 10)
	if len(pending) != 1 || !pending[0].Stored {
		t.Fatalf("expected the award parked for retry, got %+v", pending)
	}

	if n, err := h.service.ReplayPending(ctx); err == nil || n != 0 {
		t.Fatalf("expected replay to stop while the ledger is down, got %d %v", n, err)
	}

	h.ledger.SetFail(nil)
	n, err := h.service.ReplayPending(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected one replayed award, got %d %v", n, err)
	}
	if balance, _ := h.ledger.Balance(ctx, "u1"); balance != 10 {
		t.Fatalf("expected 10 points after recovery, got %d", balance)
	}
	if records, _ := h.answers.ListByUser(ctx, "u1"); len(records) != 1 {
		t.Fatalf("expected a single stored record, got %d", len(records))
	}
	if h.fallback.Len() != 0 {
		t.Fatalf("expected fallback drained")
	}
}

func TestReplayMarksRecordStoredWhenOnlyAwardFails(t *testing.T) {
	ctx := context.Background()
	h := newHarness(app.QuizConfig{})
	view, _ := h.service.Start(ctx, "u1", domain.QuestionFilter{Subject: "Thai"}, app.StartOptions{})

	h.answers.SetFail(errors.New("backend down"))
	_, _ = h.service.Select(ctx, "u1", view.SessionID, 0)
	_, _ = h.service.Submit(ctx, "u1", view.SessionID)

	// the answer store recovers before the ledger does
	h.answers.SetFail(nil)
	h.ledger.SetFail(errors.New("ledger down"))
	if _, err := h.service.ReplayPending(ctx); err == nil {
		t.Fatalf("expected replay to report the failed award")
	}
	pending, _ := h.fallback.Pending(ctx, 10)
	if len(pending) != 1 || !pending[0].Stored {
		t.Fatalf("expected only the award left, got %+v", pending)
	}

	h.ledger.SetFail(nil)
	if _, err := h.service.ReplayPending(ctx); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if balance, _ := h.ledger.Balance(ctx, "u1"); balance != 10 {
		t.Fatalf("expected points awarded exactly once, got %d", balance)
	}
}

func TestSweepIdleClosesAbandonedSessions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(app.QuizConfig{IdleTimeout: 10 * time.Minute})

	for i := 0; i < 5; i++ {
		view, _ := h.service.Start(ctx, "u1", domain.QuestionFilter{Subject: "Thai"}, app.StartOptions{})
		_, _ = h.service.Select(ctx, "u1", view.SessionID, 0)
		_, _ = h.service.Submit(ctx, "u1", view.SessionID)
		if view, _ = h.service.Advance(ctx, "u1", view.SessionID); !view.Finished {
			t.Fatalf("expected single-question session finished")
		}
	}
	open, _ := h.service.Start(ctx, "u2", domain.QuestionFilter{}, app.StartOptions{})
	watched, _ := h.service.Start(ctx, "u3", domain.QuestionFilter{}, app.StartOptions{})
	updates, cancel, err := h.service.Subscribe(ctx, "u3", watched.SessionID)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()
	<-updates

	if h.service.SweepIdle() != 0 || h.sessions.Len() != 7 {
		t.Fatalf("expected nothing swept before the timeout, got %d live", h.sessions.Len())
	}

	h.advance(9 * time.Minute)
	_, _ = h.service.Skip(ctx, "u2", open.SessionID)
	h.advance(2 * time.Minute)

	if closed := h.service.SweepIdle(); closed != 5 {
		t.Fatalf("expected the 5 finished sessions closed, got %d", closed)
	}
	if h.sessions.Len() != 2 {
		t.Fatalf("expected the active and the watched session kept, got %d", h.sessions.Len())
	}
	if _, err := h.service.View(ctx, "u2", open.SessionID); err != nil {
		t.Fatalf("expected recently used session kept: %v", err)
	}

	h.advance(10 * time.Minute)
	if closed := h.service.SweepIdle(); closed != 1 {
		t.Fatalf("expected the idle unfinished session closed, got %d", closed)
	}
	if _, err := h.service.View(ctx, "u3", watched.SessionID); err != nil {
		t.Fatalf("a subscribed session must stay open: %v", err)
	}
}

func TestTimerExpiryAutoSubmitsSelection(t *testing.T) {
	ctx := context.Background()
	h := newHarness(app.QuizConfig{QuestionTimeout: 30 * time.Second})
	view, _ := h.service.Start(ctx, "u1", domain.QuestionFilter{Subject: "Math"}, app.StartOptions{})

	ch, cancel, err := h.service.Subscribe(ctx, "u1", view.SessionID)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()
	<-ch // initial snapshot

	qid := view.Question.ID
	_, _ = h.service.Select(ctx, "u1", view.SessionID, answerKey[qid])
	<-ch

	h.advance(31 * time.Second)
	h.fireLatest()

	update := <-ch
	if update.Answered != 1 || update.Index == view.Index {
		t.Fatalf("expected auto-submit and advance, got %+v", update)
	}
	if balance, _ := h.ledger.Balance(ctx, "u1"); balance != 10 {
		t.Fatalf("expected auto-submitted answer rewarded, got %d", balance)
	}
}

func TestSessionRunsToResult(t *testing.T) {
	ctx := context.Background()
	h := newHarness(app.QuizConfig{Ordering: app.OrderDeterministic})
	view, _ := h.service.Start(ctx, "u1", domain.QuestionFilter{}, app.StartOptions{})

	if _, err := h.service.Result(ctx, "u1", view.SessionID); !errors.Is(err, domain.ErrSessionInProgress) {
		t.Fatalf("expected ErrSessionInProgress, got %v", err)
	}
	for !view.Finished {
		qid := view.Question.ID
		_, _ = h.service.Select(ctx, "u1", view.SessionID, answerKey[qid])
		if _, err := h.service.Submit(ctx, "u1", view.SessionID); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
		var err error
		view, err = h.service.Advance(ctx, "u1", view.SessionID)
		if err != nil {
			t.Fatalf("advance failed: %v", err)
		}
	}

	res, err := h.service.Result(ctx, "u1", view.SessionID)
	if err != nil {
		t.Fatalf("result failed: %v", err)
	}
	if res.Correct != 4 || res.Score != 40 || len(res.Report.Buckets) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	h.service.Abandon(ctx, "u1", view.SessionID)
	if _, err := h.service.View(ctx, "u1", view.SessionID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session dropped after abandon, got %v", err)
	}
}

func TestDeterministicOrderingRepeatsForSameFilter(t *testing.T) {
	ctx := context.Background()
	h := newHarness(app.QuizConfig{Ordering: app.OrderDeterministic})
	filter := domain.QuestionFilter{Grade: 1}

	order := func() []string {
		view, err := h.service.Start(ctx, "u1", filter, app.StartOptions{})
		if err != nil {
			t.Fatalf("start failed: %v", err)
		}
		var ids []string
		for !view.Finished {
			ids = append(ids, view.Question.ID)
			view, _ = h.service.Advance(ctx, "u1", view.SessionID)
			if view.Revisit {
				break
			}
		}
		return ids
	}

	first, second := order(), order()
	if len(first) != 4 || len(second) != 4 {
		t.Fatalf("expected full pool, got %v and %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("expected identical order, got %v and %v", first, second)
		}
	}
}

func TestStartLimitCapsQuestions(t *testing.T) {
	h := newHarness(app.QuizConfig{MaxQuestions: 3})
	view, _ := h.service.Start(context.Background(), "u1", domain.QuestionFilter{}, app.StartOptions{})
	if view.Total != 3 {
		t.Fatalf("expected configured cap of 3, got %d", view.Total)
	}
	view, _ = h.service.Start(context.Background(), "u1", domain.QuestionFilter{Limit: 2}, app.StartOptions{})
	if view.Total != 2 {
		t.Fatalf("expected request limit of 2, got %d", view.Total)
	}
}
