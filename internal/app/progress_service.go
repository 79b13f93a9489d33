package app

import (
	"context"
	"errors"
	"strings"

	"quizcat-service/internal/analysis"
	"quizcat-service/internal/domain"
	"quizcat-service/internal/logger"
)

// ReportFilter narrows the answers that feed a progress report. Empty fields match everything.
type ReportFilter struct {
	SessionID string
	Subject   string
}

// ProgressReport is the learner's analysis page.
type ProgressReport struct {
	analysis.Report
	ByDifficulty []analysis.DifficultyStat `json:"byDifficulty"`
	Sessions     []analysis.SessionSummary `json:"sessions"`
	Grade        domain.Grade              `json:"grade"`
	PassChance   int                       `json:"passChance"`
}

// ProgressService reads a learner's answer history.
type ProgressService struct {
	answers  AnswerRepository
	profiles ProfileRepository
	policy   analysis.PassPolicy
	log      *logger.Logger
}

func NewProgressService(answers AnswerRepository, profiles ProfileRepository, policy analysis.PassPolicy, log *logger.Logger) *ProgressService {
	return &ProgressService{
		answers:  answers,
		profiles: profiles,
		policy:   policy,
		log:      logger.OrNop(log).With("component", "progress"),
	}
}

// Answers lists the user's answer records, oldest first.
func (s *ProgressService) Answers(ctx context.Context, userID string) ([]domain.AnswerRecord, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return s.answers.ListByUser(ctx, userID)
}

// DeleteAnswer removes one of the user's records. Aggregates are derived, so the next report reflects it.
func (s *ProgressService) DeleteAnswer(ctx context.Context, userID, answerID string) error {
	if userID == "" {
		return domain.ErrUnauthenticated
	}
	if err := s.answers.Delete(ctx, userID, answerID); err != nil {
		return err
	}
	s.log.Info("answer deleted", "user_id", userID, "answer_id", answerID)
	return nil
}

// Report aggregates the user's answers and estimates the pass chance for their grade.
func (s *ProgressService) Report(ctx context.Context, userID string, filter ReportFilter) (ProgressReport, error) {
	records, err := s.Answers(ctx, userID)
	if err != nil {
		return ProgressReport{}, err
	}
	records = filterRecords(records, filter)

	var grade domain.Grade
	profile, err := s.profiles.GetProfile(ctx, userID)
	switch {
	case err == nil:
		grade = profile.Grade
	case errors.Is(err, domain.ErrProfileNotFound):
	default:
		s.log.Warn("load profile for report", "user_id", userID, "error", err)
	}

	report := analysis.Aggregate(records)
	return ProgressReport{
		Report:       report,
		ByDifficulty: analysis.ByDifficulty(records),
		Sessions:     analysis.SummarizeSessions(records),
		Grade:        grade,
		PassChance:   s.policy.ChanceForReport(report, grade),
	}, nil
}

func filterRecords(records []domain.AnswerRecord, filter ReportFilter) []domain.AnswerRecord {
	if filter.SessionID == "" && filter.Subject == "" {
		return records
	}
	out := make([]domain.AnswerRecord, 0, len(records))
	for _, rec := range records {
		if filter.SessionID != "" && rec.SessionID != filter.SessionID {
			continue
		}
		if filter.Subject != "" && !strings.EqualFold(strings.TrimSpace(rec.Subject), strings.TrimSpace(filter.Subject)) {
			continue
		}
		out = append(out, rec)
	}
	return out
}
