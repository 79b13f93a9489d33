package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quizcat-service/internal/domain"
)

// AnswerRepository stores answer records; the primary key is the deterministic answer ID.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// Insert relies on the primary key to reject duplicates in one round trip.
func (r *AnswerRepository) Insert(ctx context.Context, rec domain.AnswerRecord) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO answers (id, question_id, user_id, session_id, selected_choice_index, correct_choice_index,
		                     is_correct, confidence_level, time_spent_seconds, subject, topic, difficulty, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.QuestionID, rec.UserID, rec.SessionID, rec.SelectedChoiceIndex, rec.CorrectChoiceIndex,
		rec.IsCorrect, string(rec.ConfidenceLevel), rec.TimeSpentSeconds, rec.Subject, rec.Topic,
		string(rec.Difficulty), rec.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert answer: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *AnswerRepository) ListByUser(ctx context.Context, userID string) ([]domain.AnswerRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, question_id, user_id, session_id, selected_choice_index, correct_choice_index,
		       is_correct, confidence_level, time_spent_seconds, subject, topic, difficulty, created_at
		FROM answers
		WHERE user_id = $1
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AnswerRecord, 0)
	for rows.Next() {
		var (
			rec                 domain.AnswerRecord
			selected, correct   int16
			confidence, diffStr string
		)
		if err := rows.Scan(&rec.ID, &rec.QuestionID, &rec.UserID, &rec.SessionID, &selected, &correct,
			&rec.IsCorrect, &confidence, &rec.TimeSpentSeconds, &rec.Subject, &rec.Topic, &diffStr, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		rec.SelectedChoiceIndex = int(selected)
		rec.CorrectChoiceIndex = int(correct)
		rec.ConfidenceLevel = domain.ConfidenceLevel(confidence)
		rec.Difficulty = domain.Difficulty(diffStr)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *AnswerRepository) Delete(ctx context.Context, userID, answerID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM answers WHERE id = $1 AND user_id = $2`, answerID, userID)
	if err != nil {
		return fmt.Errorf("delete answer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAnswerNotFound
	}
	return nil
}
