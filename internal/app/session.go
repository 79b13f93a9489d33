package app

import (
	"sync"
	"time"

	"quizcat-service/internal/analysis"
	"quizcat-service/internal/domain"
)

// SessionOptions are the per-session settings. They travel with the session
// from Start to Abandon instead of living in shared global state.
type SessionOptions struct {
	RequireConfidence bool `json:"requireConfidence"`
	// Practice sessions persist nothing and award no points.
	Practice bool `json:"practice"`
	// QuestionTimeout is the per-question countdown; zero disables it.
	QuestionTimeout time.Duration `json:"questionTimeout"`
}

// Timer is the subset of *time.Timer the session needs.
type Timer interface {
	Stop() bool
}

// QuestionView is a question as shown to the learner, without the answer key.
type QuestionView struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	Choices    []string          `json:"choices"`
	Subject    string            `json:"subject"`
	Topic      string            `json:"topic"`
	Grade      domain.Grade      `json:"grade"`
	Difficulty domain.Difficulty `json:"difficulty"`
}

// SessionView is a snapshot of a session's progress.
type SessionView struct {
	SessionID       string                 `json:"sessionId"`
	Index           int                    `json:"index"`
	Total           int                    `json:"total"`
	Question        *QuestionView          `json:"question,omitempty"`
	Selected        *int                   `json:"selected,omitempty"`
	Confidence      domain.ConfidenceLevel `json:"confidence,omitempty"`
	Revisit         bool                   `json:"revisit"`
	CurrentAnswered bool                   `json:"currentAnswered"`
	Answered        int                    `json:"answered"`
	Correct         int                    `json:"correct"`
	Skipped         []int                  `json:"skipped"`
	Forfeited       int                    `json:"forfeited"`
	Score           int                    `json:"score"`
	Finished        bool                   `json:"finished"`
	Deadline        *time.Time             `json:"deadline,omitempty"`
	Options         SessionOptions         `json:"options"`
}

// SessionResult is presented once a session has finished.
type SessionResult struct {
	SessionID string          `json:"sessionId"`
	Total     int             `json:"total"`
	Answered  int             `json:"answered"`
	Correct   int             `json:"correct"`
	Forfeited int             `json:"forfeited"`
	Score     int             `json:"score"`
	Report    analysis.Report `json:"report"`
}

// Session is the in-memory state machine of one quiz attempt.
//
// Every question index ends either answered (at most once) or, when its
// countdown runs out on a revisit without a selection, forfeited.
type Session struct {
	id        string
	userID    string
	options   SessionOptions
	questions []domain.Question
	createdAt time.Time
	now       func() time.Time

	mu          sync.Mutex
	current     int
	skipped     []int
	answered    map[int]bool
	forfeited   map[int]bool
	selected    *int
	confidence  domain.ConfidenceLevel
	revisit     bool
	timeStart   time.Time
	lastActive  time.Time
	finished    bool
	correct     int
	records     []domain.AnswerRecord
	subscribers map[chan SessionView]struct{}

	timer    Timer
	schedule func(time.Duration, func()) Timer
	onExpire func(*Session)
}

// NewSession is exported for infrastructure layers and tests that need to seed sessions.
func NewSession(id, userID string, questions []domain.Question, options SessionOptions) *Session {
	return NewSessionWithClock(id, userID, questions, options, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(id, userID string, questions []domain.Question, options SessionOptions, now func() time.Time) *Session {
	started := now()
	return &Session{
		id:          id,
		userID:      userID,
		options:     options,
		questions:   questions,
		createdAt:   started,
		now:         now,
		answered:    make(map[int]bool),
		forfeited:   make(map[int]bool),
		timeStart:   started,
		lastActive:  started,
		finished:    len(questions) == 0,
		subscribers: make(map[chan SessionView]struct{}),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) UserID() string { return s.userID }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) Options() SessionOptions { return s.options }

// View returns a snapshot of the current state.
func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Finished reports whether every question has been resolved.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// idleFor reports whether the session has no subscriber and saw no transition within ttl.
func (s *Session) idleFor(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers) == 0 && now.Sub(s.lastActive) >= ttl
}

// bindTimer wires the countdown and starts it for the current question.
func (s *Session) bindTimer(schedule func(time.Duration, func()) Timer, onExpire func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedule = schedule
	s.onExpire = onExpire
	s.startTimerLocked()
}

func (s *Session) selectChoice(i int) (SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return SessionView{}, domain.ErrSessionFinished
	}
	if i < 0 || i >= len(s.questions[s.current].Choices) {
		return SessionView{}, domain.ErrInvalidChoice
	}
	// Locked once answered.
	if s.answered[s.current] {
		return s.viewLocked(), nil
	}
	choice := i
	s.selected = &choice
	return s.broadcastLocked(), nil
}

func (s *Session) setConfidence(level domain.ConfidenceLevel) (SessionView, error) {
	if !level.Valid() {
		return SessionView{}, domain.ErrInvalidConfidence
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return SessionView{}, domain.ErrSessionFinished
	}
	if s.answered[s.current] {
		return s.viewLocked(), nil
	}
	s.confidence = level
	return s.broadcastLocked(), nil
}

// submit records the answer to the current question. Rejected submissions leave the state untouched.
func (s *Session) submit() (domain.AnswerRecord, SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return domain.AnswerRecord{}, SessionView{}, domain.ErrSessionFinished
	}
	if s.answered[s.current] {
		return domain.AnswerRecord{}, SessionView{}, domain.ErrAlreadyAnswered
	}
	if s.selected == nil {
		return domain.AnswerRecord{}, SessionView{}, domain.ErrNoChoiceSelected
	}
	if s.options.RequireConfidence && s.confidence == "" {
		return domain.AnswerRecord{}, SessionView{}, domain.ErrConfidenceRequired
	}
	rec := s.recordLocked()
	return rec, s.broadcastLocked(), nil
}

func (s *Session) skip() (SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return SessionView{}, domain.ErrSessionFinished
	}
	if s.answered[s.current] {
		return SessionView{}, domain.ErrAlreadyAnswered
	}
	s.skipLocked()
	return s.broadcastLocked(), nil
}

// advance moves to the next unresolved question. Leaving an unresolved question counts as skipping it.
func (s *Session) advance() (SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return SessionView{}, domain.ErrSessionFinished
	}
	if !s.resolvedLocked(s.current) {
		s.skipLocked()
	}
	s.advanceLocked()
	return s.broadcastLocked(), nil
}

// expire handles the countdown running out. Stale timers are ignored. A
// complete selection is submitted; otherwise the question is skipped, or
// forfeited when the countdown ran out on a revisit. The session then advances.
func (s *Session) expire() (*domain.AnswerRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished || s.options.QuestionTimeout <= 0 || s.answered[s.current] {
		return nil, false
	}
	if s.now().Before(s.timeStart.Add(s.options.QuestionTimeout)) {
		return nil, false
	}

	var rec *domain.AnswerRecord
	switch {
	case s.selected != nil && (!s.options.RequireConfidence || s.confidence != ""):
		r := s.recordLocked()
		rec = &r
	case s.revisit:
		s.removeSkippedLocked(s.current)
		s.forfeited[s.current] = true
	default:
		s.skipLocked()
	}
	s.advanceLocked()
	s.broadcastLocked()
	return rec, true
}

func (s *Session) result() (SessionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finished {
		return SessionResult{}, domain.ErrSessionInProgress
	}
	records := make([]domain.AnswerRecord, len(s.records))
	copy(records, s.records)
	return SessionResult{
		SessionID: s.id,
		Total:     len(s.questions),
		Answered:  len(s.answered),
		Correct:   s.correct,
		Forfeited: len(s.forfeited),
		Score:     s.correct * domain.PointsPerCorrect,
		Report:    analysis.Aggregate(records),
	}, nil
}

// close stops the countdown and releases every subscriber.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Session) subscribe() (<-chan SessionView, func()) {
	ch := make(chan SessionView, 8)

	// the buffer is empty, so the first send never blocks while holding the lock
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- s.viewLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) recordLocked() domain.AnswerRecord {
	now := s.now()
	rec := domain.NewAnswerRecord(s.userID, s.id, s.questions[s.current], *s.selected, s.confidence, now.Sub(s.timeStart), now)
	s.answered[s.current] = true
	s.removeSkippedLocked(s.current)
	if rec.IsCorrect {
		s.correct++
	}
	s.records = append(s.records, rec)
	s.stopTimerLocked()
	return rec
}

// skipLocked queues the current question for a revisit, moving it to the back if already queued.
func (s *Session) skipLocked() {
	s.removeSkippedLocked(s.current)
	s.skipped = append(s.skipped, s.current)
}

func (s *Session) advanceLocked() {
	next, revisit := s.nextIndexLocked()
	if next < 0 {
		s.finished = true
		s.stopTimerLocked()
		return
	}
	s.current = next
	s.revisit = revisit
	s.selected = nil
	s.confidence = ""
	s.timeStart = s.now()
	s.startTimerLocked()
}

// nextIndexLocked picks the next unresolved index ahead, else the earliest skipped one, else -1.
func (s *Session) nextIndexLocked() (int, bool) {
	for i := s.current + 1; i < len(s.questions); i++ {
		if !s.resolvedLocked(i) && !s.inSkippedLocked(i) {
			return i, false
		}
	}
	if len(s.skipped) > 0 {
		return s.skipped[0], true
	}
	return -1, false
}

func (s *Session) resolvedLocked(i int) bool {
	return s.answered[i] || s.forfeited[i]
}

func (s *Session) inSkippedLocked(i int) bool {
	for _, idx := range s.skipped {
		if idx == i {
			return true
		}
	}
	return false
}

func (s *Session) removeSkippedLocked(i int) {
	for pos, idx := range s.skipped {
		if idx == i {
			s.skipped = append(s.skipped[:pos], s.skipped[pos+1:]...)
			return
		}
	}
}

func (s *Session) startTimerLocked() {
	s.stopTimerLocked()
	if s.finished || s.options.QuestionTimeout <= 0 || s.schedule == nil || s.onExpire == nil {
		return
	}
	onExpire := s.onExpire
	s.timer = s.schedule(s.options.QuestionTimeout, func() { onExpire(s) })
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) broadcastLocked() SessionView {
	s.lastActive = s.now()
	view := s.viewLocked()
	for ch := range s.subscribers {
		select {
		case ch <- view:
		default:
			// drop the stale snapshot so slow readers never block transitions
			select {
			case <-ch:
			default:
			}
			ch <- view
		}
	}
	return view
}

func (s *Session) viewLocked() SessionView {
	view := SessionView{
		SessionID: s.id,
		Index:     s.current,
		Total:     len(s.questions),
		Answered:  len(s.answered),
		Correct:   s.correct,
		Skipped:   append([]int(nil), s.skipped...),
		Forfeited: len(s.forfeited),
		Score:     s.correct * domain.PointsPerCorrect,
		Finished:  s.finished,
		Options:   s.options,
	}
	if s.finished {
		return view
	}
	q := s.questions[s.current]
	view.Question = &QuestionView{
		ID:         q.ID,
		Text:       q.Text,
		Choices:    append([]string(nil), q.Choices...),
		Subject:    q.Subject,
		Topic:      q.Topic,
		Grade:      q.Grade,
		Difficulty: q.Difficulty,
	}
	if s.selected != nil {
		sel := *s.selected
		view.Selected = &sel
	}
	view.Confidence = s.confidence
	view.Revisit = s.revisit
	view.CurrentAnswered = s.answered[s.current]
	if s.options.QuestionTimeout > 0 && !view.CurrentAnswered {
		deadline := s.timeStart.Add(s.options.QuestionTimeout)
		view.Deadline = &deadline
	}
	return view
}
