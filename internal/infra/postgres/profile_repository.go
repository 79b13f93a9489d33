package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizcat-service/internal/domain"
)

// ProfileRepository reads and writes the profile columns of users. Points are owned by Ledger.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

func (r *ProfileRepository) GetProfile(ctx context.Context, uid string) (domain.UserProfile, error) {
	var (
		p     domain.UserProfile
		grade int16
		theme string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT uid, name, avatar_url, grade, points, theme_preference FROM users WHERE uid = $1`, uid).
		Scan(&p.UID, &p.Name, &p.AvatarURL, &grade, &p.PointsBalance, &theme)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UserProfile{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("get profile: %w", err)
	}
	p.Grade = domain.Grade(grade)
	p.ThemePreference = domain.Theme(theme)
	return p, nil
}

func (r *ProfileRepository) SaveProfile(ctx context.Context, p domain.UserProfile) error {
	theme := p.ThemePreference
	if theme == "" {
		theme = domain.ThemeSystem
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (uid, name, avatar_url, grade, theme_preference)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (uid) DO UPDATE
		SET name = EXCLUDED.name, avatar_url = EXCLUDED.avatar_url, grade = EXCLUDED.grade,
		    theme_preference = EXCLUDED.theme_preference, updated_at = now()`,
		p.UID, p.Name, p.AvatarURL, int(p.Grade), string(theme))
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}
