package domain

import (
	"strings"
	"time"
)

// ChoiceCount is the fixed number of choices per question.
const ChoiceCount = 4

// PointsPerCorrect is awarded for every newly recorded correct answer. No partial credit.
const PointsPerCorrect = 10

// Difficulty of a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty accepts the canonical names case-insensitively. Empty input yields "".
func ParseDifficulty(raw string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(raw))); d {
	case "", DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, nil
	}
	return "", ErrInvalidDifficulty
}

// ConfidenceLevel is the learner's self-reported certainty attached to an answer.
type ConfidenceLevel string

const (
	ConfidenceGuess     ConfidenceLevel = "guess"
	ConfidenceUncertain ConfidenceLevel = "uncertain"
	ConfidenceConfident ConfidenceLevel = "confident"
)

// ConfidenceLevels lists the levels in display order.
var ConfidenceLevels = []ConfidenceLevel{ConfidenceGuess, ConfidenceUncertain, ConfidenceConfident}

// Valid reports whether c is one of the known levels.
func (c ConfidenceLevel) Valid() bool {
	switch c {
	case ConfidenceGuess, ConfidenceUncertain, ConfidenceConfident:
		return true
	}
	return false
}

// Question models a four-choice question with exactly one correct choice.
type Question struct {
	ID                 string     `json:"id"`
	Text               string     `json:"text"`
	Choices            []string   `json:"choices"`
	CorrectChoiceIndex int        `json:"correctChoiceIndex"`
	Subject            string     `json:"subject"`
	Topic              string     `json:"topic"`
	Grade              Grade      `json:"grade"`
	Difficulty         Difficulty `json:"difficulty"`
	Explanation        string     `json:"explanation,omitempty"`
}

// QuestionFilter narrows a question query by equality on the non-empty fields.
type QuestionFilter struct {
	Subject    string
	Topic      string
	Grade      Grade
	Difficulty Difficulty
	Limit      int
}

// Key is a stable representation of the filter, used for caching and deterministic ordering.
func (f QuestionFilter) Key() string {
	return strings.Join([]string{
		strings.ToLower(strings.TrimSpace(f.Subject)),
		strings.ToLower(strings.TrimSpace(f.Topic)),
		f.Grade.String(),
		string(f.Difficulty),
	}, "|")
}

// Matches reports whether q satisfies the filter.
func (f QuestionFilter) Matches(q Question) bool {
	if f.Subject != "" && !strings.EqualFold(strings.TrimSpace(f.Subject), strings.TrimSpace(q.Subject)) {
		return false
	}
	if f.Topic != "" && !strings.EqualFold(strings.TrimSpace(f.Topic), strings.TrimSpace(q.Topic)) {
		return false
	}
	if f.Grade != 0 && f.Grade != q.Grade {
		return false
	}
	if f.Difficulty != "" && f.Difficulty != q.Difficulty {
		return false
	}
	return true
}

// AnswerRecord is the single recorded answer of a user to a question within a session.
type AnswerRecord struct {
	ID                  string          `json:"id"`
	QuestionID          string          `json:"questionId"`
	SelectedChoiceIndex int             `json:"selectedChoiceIndex"`
	CorrectChoiceIndex  int             `json:"correctChoiceIndex"`
	IsCorrect           bool            `json:"isCorrect"`
	ConfidenceLevel     ConfidenceLevel `json:"confidenceLevel,omitempty"`
	TimeSpentSeconds    float64         `json:"timeSpentSeconds"`
	Subject             string          `json:"subject"`
	Topic               string          `json:"topic"`
	Difficulty          Difficulty      `json:"difficulty"`
	UserID              string          `json:"userId"`
	SessionID           string          `json:"sessionId"`
	CreatedAt           time.Time       `json:"createdAt"`
}

// PendingAnswer is an answer write that has not completed. Stored is set once
// the record reached the answer store and only its points award is owed.
type PendingAnswer struct {
	Record AnswerRecord
	Stored bool
}

// Theme is the cosmetic UI preference stored on the profile.
type Theme string

const (
	ThemeSystem Theme = "system"
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
)

// UserProfile holds the learner's editable profile and point balance.
type UserProfile struct {
	UID             string `json:"uid"`
	Name            string `json:"name"`
	AvatarURL       string `json:"avatarUrl,omitempty"`
	Grade           Grade  `json:"grade"`
	PointsBalance   int    `json:"pointsBalance"`
	ThemePreference Theme  `json:"themePreference"`
}

// Reward is redeemable for points. There is no stock: redemption is unlimited until deleted or expired.
type Reward struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	CostInPoints int        `json:"costInPoints"`
	ImageURL     string     `json:"imageUrl,omitempty"`
	Description  string     `json:"description,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	CreatedBy    string     `json:"createdBy"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Expired reports whether the reward can no longer be claimed at now.
func (r Reward) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

// RewardClaim records a successful redemption.
type RewardClaim struct {
	ID        string    `json:"id"`
	RewardID  string    `json:"rewardId"`
	UserID    string    `json:"userId"`
	Cost      int       `json:"cost"`
	ClaimedAt time.Time `json:"claimedAt"`
}

// Identity is what the authentication collaborator tells us about the caller.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// Catalog lists the distinct subjects, topics and grades present in the question bank.
type Catalog struct {
	Subjects []string `json:"subjects"`
	Topics   []string `json:"topics"`
	Grades   []Grade  `json:"grades"`
}
