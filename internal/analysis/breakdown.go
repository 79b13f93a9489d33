package analysis

import (
	"sort"
	"time"

	"quizcat-service/internal/domain"
)

// DifficultyStat is the correctness for one difficulty level.
type DifficultyStat struct {
	Difficulty domain.Difficulty `json:"difficulty"`
	Correct    int               `json:"correct"`
	Total      int               `json:"total"`
	Percent    int               `json:"percent"`
}

var difficultyOrder = map[domain.Difficulty]int{
	domain.DifficultyEasy:   0,
	domain.DifficultyMedium: 1,
	domain.DifficultyHard:   2,
	"":                      3,
}

// ByDifficulty groups records by difficulty, easy first.
func ByDifficulty(records []domain.AnswerRecord) []DifficultyStat {
	index := make(map[domain.Difficulty]*DifficultyStat)
	for _, rec := range records {
		st, ok := index[rec.Difficulty]
		if !ok {
			st = &DifficultyStat{Difficulty: rec.Difficulty}
			index[rec.Difficulty] = st
		}
		st.Total++
		if rec.IsCorrect {
			st.Correct++
		}
	}
	out := make([]DifficultyStat, 0, len(index))
	for _, st := range index {
		st.Percent = Percent(st.Correct, st.Total)
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		return rank(out[i].Difficulty) < rank(out[j].Difficulty)
	})
	return out
}

func rank(d domain.Difficulty) int {
	if r, ok := difficultyOrder[d]; ok {
		return r
	}
	return len(difficultyOrder)
}

// SessionSummary reconstructs one quiz attempt from the answers sharing its session token.
type SessionSummary struct {
	SessionID  string    `json:"sessionId"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Answered   int       `json:"answered"`
	Correct    int       `json:"correct"`
	Score      int       `json:"score"`
	Percent    int       `json:"percent"`
}

// SummarizeSessions groups records by session, most recent first.
func SummarizeSessions(records []domain.AnswerRecord) []SessionSummary {
	index := make(map[string]*SessionSummary)
	for _, rec := range records {
		s, ok := index[rec.SessionID]
		if !ok {
			s = &SessionSummary{SessionID: rec.SessionID, StartedAt: rec.CreatedAt, FinishedAt: rec.CreatedAt}
			index[rec.SessionID] = s
		}
		s.Answered++
		if rec.IsCorrect {
			s.Correct++
		}
		if rec.CreatedAt.Before(s.StartedAt) {
			s.StartedAt = rec.CreatedAt
		}
		if rec.CreatedAt.After(s.FinishedAt) {
			s.FinishedAt = rec.CreatedAt
		}
	}
	out := make([]SessionSummary, 0, len(index))
	for _, s := range index {
		s.Score = s.Correct * domain.PointsPerCorrect
		s.Percent = Percent(s.Correct, s.Answered)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out
}
