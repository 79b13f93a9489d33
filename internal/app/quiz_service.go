package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"quizcat-service/internal/domain"
	"quizcat-service/internal/logger"
	"quizcat-service/internal/metrics"
)

// QuizConfig tunes session behaviour.
type QuizConfig struct {
	Ordering          Ordering
	QuestionTimeout   time.Duration
	RequireConfidence bool
	// MaxQuestions caps a session when the request does not set a limit; zero means the whole pool.
	MaxQuestions int
	// WriteTimeout bounds answer persistence, which outlives the request that triggered it.
	WriteTimeout time.Duration
	ReplayBatch  int
	// IdleTimeout closes sessions that saw no transition and have no subscriber for this long.
	IdleTimeout time.Duration
}

// QuizDeps are the collaborators of QuizService. Ledger, Fallback, Events, Logger and Metrics are optional.
type QuizDeps struct {
	Sessions  SessionRepository
	Questions QuestionRepository
	Answers   AnswerRepository
	Ledger    PointsLedger
	Fallback  FallbackStore
	Events    EventPublisher
	Logger    *logger.Logger
	Metrics   *metrics.Metrics
}

// QuizService contains the quiz session use cases.
type QuizService struct {
	sessions  SessionRepository
	questions QuestionRepository
	answers   AnswerRepository
	ledger    PointsLedger
	fallback  FallbackStore
	events    EventPublisher
	log       *logger.Logger
	metrics   *metrics.Metrics
	cfg       QuizConfig

	// replayMu keeps concurrent replays from awarding the same parked answer twice.
	replayMu sync.Mutex

	now      func() time.Time
	newID    func() string
	schedule func(time.Duration, func()) Timer
}

func NewQuizService(deps QuizDeps, cfg QuizConfig) *QuizService {
	if cfg.Ordering == "" {
		cfg.Ordering = OrderShuffle
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.ReplayBatch <= 0 {
		cfg.ReplayBatch = 100
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	events := deps.Events
	if events == nil {
		events = NopPublisher{}
	}
	return &QuizService{
		sessions:  deps.Sessions,
		questions: deps.Questions,
		answers:   deps.Answers,
		ledger:    deps.Ledger,
		fallback:  deps.Fallback,
		events:    events,
		log:       logger.OrNop(deps.Logger).With("component", "quiz"),
		metrics:   deps.Metrics,
		cfg:       cfg,
		now:       time.Now,
		newID:     uuid.NewString,
		schedule: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
	}
}

// WithClock is test-only for deterministic timestamps and timers.
func (s *QuizService) WithClock(now func() time.Time, schedule func(time.Duration, func()) Timer) *QuizService {
	s.now = now
	s.schedule = schedule
	return s
}

// StartOptions override the configured session settings for one session.
type StartOptions struct {
	Practice          bool
	RequireConfidence *bool
	QuestionTimeout   *time.Duration
}

// SubmitResult summarises the outcome of a submission.
type SubmitResult struct {
	Record      domain.AnswerRecord `json:"record"`
	Explanation string              `json:"explanation,omitempty"`
	Awarded     int                 `json:"awarded"`
	Balance     int                 `json:"balance"`
	Persisted   bool                `json:"persisted"`
	Duplicate   bool                `json:"duplicate"`
	View        SessionView         `json:"view"`
}

// Start fetches the question pool for filter and opens a new session for the user.
func (s *QuizService) Start(ctx context.Context, userID string, filter domain.QuestionFilter, opts StartOptions) (SessionView, error) {
	if userID == "" {
		return SessionView{}, domain.ErrUnauthenticated
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = s.cfg.MaxQuestions
	}
	filter.Limit = 0
	pool, err := s.questions.Find(ctx, filter)
	if err != nil {
		return SessionView{}, fmt.Errorf("load questions: %w", err)
	}
	if len(pool) == 0 {
		return SessionView{}, domain.ErrEmptyQuestionPool
	}

	options := SessionOptions{
		RequireConfidence: s.cfg.RequireConfidence,
		Practice:          opts.Practice,
		QuestionTimeout:   s.cfg.QuestionTimeout,
	}
	if opts.RequireConfidence != nil {
		options.RequireConfidence = *opts.RequireConfidence
	}
	if opts.QuestionTimeout != nil {
		options.QuestionTimeout = *opts.QuestionTimeout
	}

	ordered := orderQuestions(pool, filter, s.cfg.Ordering, limit)
	session := NewSessionWithClock(s.newID(), userID, ordered, options, s.now)
	s.sessions.Put(session)
	session.bindTimer(s.schedule, s.handleExpiry)
	s.metrics.SessionStarted()
	s.log.Info("session started", "session_id", session.ID(), "user_id", userID,
		"questions", len(ordered), "filter", filter.Key(), "practice", options.Practice)
	return session.View(), nil
}

// Select sets the selected choice of the current question.
func (s *QuizService) Select(_ context.Context, userID, sessionID string, choice int) (SessionView, error) {
	session, err := s.session(userID, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	return session.selectChoice(choice)
}

// SetConfidence records the self-reported confidence for the current question.
func (s *QuizService) SetConfidence(_ context.Context, userID, sessionID string, level domain.ConfidenceLevel) (SessionView, error) {
	session, err := s.session(userID, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	return session.setConfidence(level)
}

// Submit records the answer to the current question. A failed write never
// blocks the session: the record is parked in the fallback store and replayed later.
func (s *QuizService) Submit(ctx context.Context, userID, sessionID string) (SubmitResult, error) {
	session, err := s.session(userID, sessionID)
	if err != nil {
		return SubmitResult{}, err
	}
	rec, view, err := session.submit()
	if err != nil {
		return SubmitResult{}, err
	}
	out := s.persist(ctx, session.Options(), rec)
	return SubmitResult{
		Record:      rec,
		Explanation: explanationFor(session, rec.QuestionID),
		Awarded:     out.awarded,
		Balance:     out.balance,
		Persisted:   out.persisted,
		Duplicate:   out.duplicate,
		View:        view,
	}, nil
}

// Skip defers the current question.
func (s *QuizService) Skip(_ context.Context, userID, sessionID string) (SessionView, error) {
	session, err := s.session(userID, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	return session.skip()
}

// Advance moves to the next question, or finishes the session.
func (s *QuizService) Advance(_ context.Context, userID, sessionID string) (SessionView, error) {
	session, err := s.session(userID, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	view, err := session.advance()
	if err == nil && view.Finished {
		s.log.Info("session finished", "session_id", sessionID, "user_id", userID,
			"answered", view.Answered, "correct", view.Correct)
	}
	return view, err
}

// View returns the current state of a session.
func (s *QuizService) View(_ context.Context, userID, sessionID string) (SessionView, error) {
	session, err := s.session(userID, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	return session.View(), nil
}

// Result returns the final score and aggregation of a finished session.
func (s *QuizService) Result(_ context.Context, userID, sessionID string) (SessionResult, error) {
	session, err := s.session(userID, sessionID)
	if err != nil {
		return SessionResult{}, err
	}
	return session.result()
}

// Subscribe returns a channel that receives a snapshot after every transition,
// including timer-driven ones. The caller must invoke cancel to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, userID, sessionID string) (<-chan SessionView, func(), error) {
	session, err := s.session(userID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Abandon drops the session without waiting for in-flight writes, then
// flushes parked answers in the background.
func (s *QuizService) Abandon(_ context.Context, userID, sessionID string) {
	session, err := s.session(userID, sessionID)
	if err != nil {
		return
	}
	s.drop(session)

	if s.fallback != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
			defer cancel()
			_, _ = s.ReplayPending(ctx)
		}()
	}
}

// SweepIdle closes every session that is idle for longer than the configured
// timeout, finished or not, and reports how many were closed.
func (s *QuizService) SweepIdle() int {
	now := s.now()
	closed := 0
	for _, session := range s.sessions.List() {
		if session.idleFor(now, s.cfg.IdleTimeout) {
			s.drop(session)
			closed++
		}
	}
	if closed > 0 {
		s.log.Info("closed idle sessions", "count", closed)
	}
	return closed
}

// RunSweeper calls SweepIdle every interval until ctx is done.
func (s *QuizService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepIdle()
		}
	}
}

func (s *QuizService) drop(session *Session) {
	s.sessions.Delete(session.ID())
	session.close()
	s.metrics.SessionEnded()
	s.log.Debug("session closed", "session_id", session.ID(), "user_id", session.UserID())
}

// ReplayPending retries answers parked in the fallback store. It stops at the
// first failed write, since the backing store is most likely still unavailable.
func (s *QuizService) ReplayPending(ctx context.Context) (int, error) {
	if s.fallback == nil {
		return 0, nil
	}
	s.replayMu.Lock()
	defer s.replayMu.Unlock()

	pending, err := s.fallback.Pending(ctx, s.cfg.ReplayBatch)
	if err != nil {
		return 0, fmt.Errorf("load pending answers: %w", err)
	}
	replayed := 0
	for _, p := range pending {
		out, err := s.store(ctx, p)
		if err != nil {
			if out.persisted && !p.Stored {
				// keep only the award queued, the record is in place now
				if serr := s.fallback.Save(ctx, domain.PendingAnswer{Record: p.Record, Stored: true}); serr != nil {
					s.log.Error("mark parked answer stored", "answer_id", p.Record.ID, "error", serr)
				}
			}
			s.metrics.FallbackReplayed(replayed)
			return replayed, err
		}
		if err := s.fallback.Remove(ctx, p.Record.ID); err != nil {
			s.log.Warn("remove replayed answer", "answer_id", p.Record.ID, "error", err)
		}
		replayed++
	}
	s.metrics.FallbackReplayed(replayed)
	if replayed > 0 {
		s.log.Info("replayed parked answers", "count", replayed)
	}
	return replayed, nil
}

// RunReplayer calls ReplayPending every interval until ctx is done.
func (s *QuizService) RunReplayer(ctx context.Context, interval time.Duration) {
	if s.fallback == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ReplayPending(ctx); err != nil {
				s.log.Warn("replay parked answers", "error", err)
			}
		}
	}
}

func (s *QuizService) session(userID, sessionID string) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if session.UserID() != userID {
		return nil, domain.ErrNotSessionOwner
	}
	return session, nil
}

func (s *QuizService) handleExpiry(session *Session) {
	rec, changed := session.expire()
	if !changed {
		return
	}
	s.log.Debug("question timed out", "session_id", session.ID(), "auto_submitted", rec != nil)
	if rec != nil {
		s.persist(context.Background(), session.Options(), *rec)
	}
}

type persistOutcome struct {
	persisted bool
	duplicate bool
	awarded   int
	balance   int
}

func (s *QuizService) persist(ctx context.Context, options SessionOptions, rec domain.AnswerRecord) persistOutcome {
	if options.Practice {
		s.metrics.Answer("practice")
		return persistOutcome{}
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.WriteTimeout)
	defer cancel()

	out, err := s.store(wctx, domain.PendingAnswer{Record: rec})
	if err == nil {
		return out
	}
	s.log.Warn("answer write failed, parking locally", "answer_id", rec.ID, "session_id", rec.SessionID,
		"stored", out.persisted, "error", err)
	if s.fallback == nil {
		return out
	}
	if ferr := s.fallback.Save(wctx, domain.PendingAnswer{Record: rec, Stored: out.persisted}); ferr != nil {
		s.log.Error("answer lost: fallback store failed", "answer_id", rec.ID, "error", ferr)
		return out
	}
	s.metrics.FallbackQueued()
	return out
}

// store writes the record unless p says it is already stored, then awards
// points for a correct answer. Points follow only a write that created the
// record. A failed award comes back as an error with persisted set, so the
// caller can park the award alone.
func (s *QuizService) store(ctx context.Context, p domain.PendingAnswer) (persistOutcome, error) {
	rec := p.Record
	if !p.Stored {
		inserted, err := s.answers.Insert(ctx, rec)
		if err != nil {
			return persistOutcome{}, fmt.Errorf("insert answer: %w", err)
		}
		if !inserted {
			s.metrics.Answer("duplicate")
			return persistOutcome{persisted: true, duplicate: true}, nil
		}
		if rec.IsCorrect {
			s.metrics.Answer("correct")
		} else {
			s.metrics.Answer("incorrect")
		}
		if err := s.events.Publish(ctx, EventAnswerRecorded, rec); err != nil {
			s.log.Warn("publish answer event", "answer_id", rec.ID, "error", err)
		}
	}
	out := persistOutcome{persisted: true}
	if !rec.IsCorrect || s.ledger == nil {
		return out, nil
	}
	balance, err := s.ledger.Award(ctx, rec.UserID, domain.PointsPerCorrect)
	if err != nil {
		return out, fmt.Errorf("award points: %w", err)
	}
	out.awarded = domain.PointsPerCorrect
	out.balance = balance
	return out, nil
}

func explanationFor(session *Session, questionID string) string {
	for _, q := range session.questions {
		if q.ID == questionID {
			return q.Explanation
		}
	}
	return ""
}
