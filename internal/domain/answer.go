package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// AnswerID derives the storage key of an answer. One answer per question per
// session: the same (user, question, session) triple always maps to the same
// key, so the store rejects duplicates instead of racing a read-then-write check.
func AnswerID(userID, questionID, sessionID string) string {
	h := sha256.New()
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write([]byte(questionID))
	h.Write([]byte{0})
	h.Write([]byte(sessionID))
	return hex.EncodeToString(h.Sum(nil))
}

// NewAnswerRecord builds the record for a submission. IsCorrect is always derived.
func NewAnswerRecord(userID, sessionID string, q Question, selected int, confidence ConfidenceLevel, spent time.Duration, now time.Time) AnswerRecord {
	if spent < 0 {
		spent = 0
	}
	return AnswerRecord{
		ID:                  AnswerID(userID, q.ID, sessionID),
		QuestionID:          q.ID,
		SelectedChoiceIndex: selected,
		CorrectChoiceIndex:  q.CorrectChoiceIndex,
		IsCorrect:           selected == q.CorrectChoiceIndex,
		ConfidenceLevel:     confidence,
		TimeSpentSeconds:    spent.Seconds(),
		Subject:             q.Subject,
		Topic:               q.Topic,
		Difficulty:          q.Difficulty,
		UserID:              userID,
		SessionID:           sessionID,
		CreatedAt:           now.UTC(),
	}
}
