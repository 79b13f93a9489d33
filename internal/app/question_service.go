package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"quizcat-service/internal/domain"
	"quizcat-service/internal/logger"
	"quizcat-service/internal/metrics"
	"quizcat-service/internal/questionbank"
)

// QuestionGenerator produces candidate questions from a prompt.
type QuestionGenerator interface {
	Generate(ctx context.Context, req questionbank.GenerateRequest) (questionbank.Batch, error)
}

// ImportReport summarises a bulk save.
type ImportReport struct {
	Imported  int                      `json:"imported"`
	Questions []domain.Question        `json:"questions"`
	Rejected  []questionbank.ItemError `json:"rejected"`
}

// QuestionService manages the question bank.
type QuestionService struct {
	repo      QuestionRepository
	generator QuestionGenerator
	log       *logger.Logger
	metrics   *metrics.Metrics
}

// NewQuestionService wires the service. generator may be nil when generation is not configured.
func NewQuestionService(repo QuestionRepository, generator QuestionGenerator, log *logger.Logger, m *metrics.Metrics) *QuestionService {
	return &QuestionService{
		repo:      repo,
		generator: generator,
		log:       logger.OrNop(log).With("component", "questions"),
		metrics:   m,
	}
}

func (s *QuestionService) Find(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	return s.repo.Find(ctx, filter)
}

func (s *QuestionService) Get(ctx context.Context, id string) (domain.Question, error) {
	return s.repo.Get(ctx, id)
}

func (s *QuestionService) Create(ctx context.Context, q domain.Question) (domain.Question, error) {
	normalise(&q)
	if err := q.Validate(); err != nil {
		return domain.Question{}, err
	}
	return s.repo.Create(ctx, q)
}

func (s *QuestionService) Update(ctx context.Context, q domain.Question) (domain.Question, error) {
	if q.ID == "" {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	normalise(&q)
	if err := q.Validate(); err != nil {
		return domain.Question{}, err
	}
	return s.repo.Update(ctx, q)
}

func (s *QuestionService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *QuestionService) Catalog(ctx context.Context) (domain.Catalog, error) {
	return s.repo.Catalog(ctx)
}

// ImportCSV stores every valid row of r and reports the rejected ones.
func (s *QuestionService) ImportCSV(ctx context.Context, r io.Reader, defaults questionbank.Defaults) (ImportReport, error) {
	batch, err := questionbank.ParseCSV(r, defaults)
	if err != nil {
		return ImportReport{}, err
	}
	report := s.save(ctx, "csv", batch.Questions, batch.Rows, nil)
	report.Rejected = append(batch.Rejected, report.Rejected...)
	s.metrics.Imported("csv", "rejected", len(report.Rejected))
	s.log.Info("csv import finished", "imported", report.Imported, "rejected", len(report.Rejected))
	return report, nil
}

// Generate asks the generator for candidates. Nothing is stored; see SaveGenerated.
func (s *QuestionService) Generate(ctx context.Context, req questionbank.GenerateRequest) (questionbank.Batch, error) {
	if s.generator == nil {
		return questionbank.Batch{}, questionbank.ErrGeneratorDisabled
	}
	batch, err := s.generator.Generate(ctx, req)
	if err != nil {
		s.log.Warn("question generation failed", "error", err)
		return questionbank.Batch{}, err
	}
	s.metrics.Imported("ai", "rejected", len(batch.Rejected))
	return batch, nil
}

// SaveGenerated stores the chosen candidates, validating each again.
// Rejections are indexed by position in qs.
func (s *QuestionService) SaveGenerated(ctx context.Context, qs []domain.Question) (ImportReport, error) {
	report := s.save(ctx, "ai", qs, nil, func(q domain.Question) error {
		return q.Validate()
	})
	s.metrics.Imported("ai", "rejected", len(report.Rejected))
	return report, nil
}

// save stores qs one by one. rows carries the source index of each question;
// when nil, rejections are indexed by 1-based position in qs.
func (s *QuestionService) save(ctx context.Context, source string, qs []domain.Question, rows []int, check func(domain.Question) error) ImportReport {
	report := ImportReport{Questions: []domain.Question{}, Rejected: []questionbank.ItemError{}}
	for i, q := range qs {
		index := i + 1
		if i < len(rows) {
			index = rows[i]
		}
		normalise(&q)
		if check != nil {
			if err := check(q); err != nil {
				report.Rejected = append(report.Rejected, questionbank.ItemError{Index: index, Err: err})
				continue
			}
		}
		created, err := s.repo.Create(ctx, q)
		if err != nil {
			s.log.Warn("save question", "source", source, "index", index, "error", err)
			report.Rejected = append(report.Rejected, questionbank.ItemError{Index: index, Err: fmt.Errorf("save %q: %w", q.Text, err)})
			continue
		}
		report.Questions = append(report.Questions, created)
	}
	report.Imported = len(report.Questions)
	s.metrics.Imported(source, "imported", report.Imported)
	return report
}

func normalise(q *domain.Question) {
	q.Text = strings.TrimSpace(q.Text)
	q.Subject = strings.TrimSpace(q.Subject)
	q.Topic = strings.TrimSpace(q.Topic)
}
