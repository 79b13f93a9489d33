package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizcat-service/internal/domain"
)

// QuestionRepository stores the question bank in Postgres.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

const questionColumns = `id, text, choices, correct_choice_index, subject, topic, grade, difficulty, explanation`

func (r *QuestionRepository) Find(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	query, args := buildFindQuery(filter)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find questions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Question, 0)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// buildFindQuery translates the non-empty filter fields into equality predicates.
func buildFindQuery(filter domain.QuestionFilter) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	add := func(expr string, v interface{}) {
		args = append(args, v)
		where = append(where, expr+" = $"+strconv.Itoa(len(args)))
	}
	if s := strings.TrimSpace(filter.Subject); s != "" {
		add("lower(subject)", strings.ToLower(s))
	}
	if t := strings.TrimSpace(filter.Topic); t != "" {
		add("lower(topic)", strings.ToLower(t))
	}
	if filter.Grade != 0 {
		add("grade", int(filter.Grade))
	}
	if filter.Difficulty != "" {
		add("difficulty", string(filter.Difficulty))
	}

	query := `SELECT ` + questionColumns + ` FROM questions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	return query, args
}

func (r *QuestionRepository) Get(ctx context.Context, id string) (domain.Question, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, err
}

func (r *QuestionRepository) Create(ctx context.Context, q domain.Question) (domain.Question, error) {
	if err := q.Validate(); err != nil {
		return domain.Question{}, err
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO questions (`+questionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		q.ID, q.Text, q.Choices, q.CorrectChoiceIndex, q.Subject, q.Topic, int(q.Grade), string(q.Difficulty), q.Explanation)
	if err != nil {
		return domain.Question{}, fmt.Errorf("insert question: %w", err)
	}
	return q, nil
}

func (r *QuestionRepository) Update(ctx context.Context, q domain.Question) (domain.Question, error) {
	if err := q.Validate(); err != nil {
		return domain.Question{}, err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE questions
		SET text = $2, choices = $3, correct_choice_index = $4, subject = $5, topic = $6,
		    grade = $7, difficulty = $8, explanation = $9, updated_at = now()
		WHERE id = $1`,
		q.ID, q.Text, q.Choices, q.CorrectChoiceIndex, q.Subject, q.Topic, int(q.Grade), string(q.Difficulty), q.Explanation)
	if err != nil {
		return domain.Question{}, fmt.Errorf("update question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (r *QuestionRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

// Catalog reads the classification columns only; the dedup rules live in domain.BuildCatalog.
func (r *QuestionRepository) Catalog(ctx context.Context) (domain.Catalog, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT subject, topic, grade FROM questions`)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("load catalog: %w", err)
	}
	defer rows.Close()

	var qs []domain.Question
	for rows.Next() {
		var (
			q     domain.Question
			grade int16
		)
		if err := rows.Scan(&q.Subject, &q.Topic, &grade); err != nil {
			return domain.Catalog{}, fmt.Errorf("scan catalog: %w", err)
		}
		q.Grade = domain.Grade(grade)
		qs = append(qs, q)
	}
	if err := rows.Err(); err != nil {
		return domain.Catalog{}, err
	}
	return domain.BuildCatalog(qs), nil
}

func scanQuestion(row pgx.Row) (domain.Question, error) {
	var (
		q          domain.Question
		correct    int16
		grade      int16
		difficulty string
	)
	err := row.Scan(&q.ID, &q.Text, &q.Choices, &correct, &q.Subject, &q.Topic, &grade, &difficulty, &q.Explanation)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Question{}, err
		}
		return domain.Question{}, fmt.Errorf("scan question: %w", err)
	}
	q.CorrectChoiceIndex = int(correct)
	q.Grade = domain.Grade(grade)
	q.Difficulty = domain.Difficulty(difficulty)
	return q, nil
}
