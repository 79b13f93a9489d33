package app

import (
	"context"
	"errors"
	"strings"

	"quizcat-service/internal/domain"
)

// ProfileUpdate carries the editable profile fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	Name      *string       `json:"name"`
	AvatarURL *string       `json:"avatarUrl"`
	Grade     *domain.Grade `json:"grade"`
	Theme     *domain.Theme `json:"themePreference"`
}

// ProfileService reads and edits user profiles. The balance always comes from the ledger.
type ProfileService struct {
	profiles ProfileRepository
	ledger   PointsLedger
}

func NewProfileService(profiles ProfileRepository, ledger PointsLedger) *ProfileService {
	return &ProfileService{profiles: profiles, ledger: ledger}
}

// Get returns the profile for the identity, creating a default one on first sign-in.
func (s *ProfileService) Get(ctx context.Context, id domain.Identity) (domain.UserProfile, error) {
	if id.UID == "" {
		return domain.UserProfile{}, domain.ErrUnauthenticated
	}
	p, err := s.profiles.GetProfile(ctx, id.UID)
	if errors.Is(err, domain.ErrProfileNotFound) {
		p = defaultProfile(id)
		if err := s.profiles.SaveProfile(ctx, p); err != nil {
			return domain.UserProfile{}, err
		}
	} else if err != nil {
		return domain.UserProfile{}, err
	}
	return s.withBalance(ctx, p)
}

// Update applies the non-nil fields of u.
func (s *ProfileService) Update(ctx context.Context, id domain.Identity, u ProfileUpdate) (domain.UserProfile, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return domain.UserProfile{}, err
	}
	if u.Name != nil {
		p.Name = strings.TrimSpace(*u.Name)
	}
	if u.AvatarURL != nil {
		p.AvatarURL = strings.TrimSpace(*u.AvatarURL)
	}
	if u.Grade != nil {
		if *u.Grade < 0 || *u.Grade > domain.MaxGrade {
			return domain.UserProfile{}, domain.ErrInvalidGrade
		}
		p.Grade = *u.Grade
	}
	if u.Theme != nil {
		switch *u.Theme {
		case domain.ThemeSystem, domain.ThemeLight, domain.ThemeDark:
			p.ThemePreference = *u.Theme
		default:
			return domain.UserProfile{}, domain.ErrInvalidTheme
		}
	}
	if err := s.profiles.SaveProfile(ctx, p); err != nil {
		return domain.UserProfile{}, err
	}
	return s.withBalance(ctx, p)
}

func (s *ProfileService) withBalance(ctx context.Context, p domain.UserProfile) (domain.UserProfile, error) {
	if s.ledger == nil {
		return p, nil
	}
	balance, err := s.ledger.Balance(ctx, p.UID)
	if err != nil {
		return domain.UserProfile{}, err
	}
	p.PointsBalance = balance
	return p, nil
}

func defaultProfile(id domain.Identity) domain.UserProfile {
	name := id.Email
	if at := strings.IndexByte(name, '@'); at > 0 {
		name = name[:at]
	}
	return domain.UserProfile{UID: id.UID, Name: name, ThemePreference: domain.ThemeSystem}
}
