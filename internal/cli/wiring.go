package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"quizcat-service/internal/analysis"
	"quizcat-service/internal/app"
	"quizcat-service/internal/config"
	"quizcat-service/internal/infra/events"
	"quizcat-service/internal/infra/memory"
	"quizcat-service/internal/infra/postgres"
	redisinfra "quizcat-service/internal/infra/redis"
	"quizcat-service/internal/infra/sqlite"
	"quizcat-service/internal/logger"
	"quizcat-service/internal/metrics"
	"quizcat-service/internal/questionbank"
)

// services is the fully wired application. Postgres and Redis are optional:
// without them everything runs in memory, which is what local development uses.
type services struct {
	quiz      *app.QuizService
	questions *app.QuestionService
	progress  *app.ProgressService
	rewards   *app.RewardService
	profiles  *app.ProfileService
	metrics   *metrics.Metrics

	closers []io.Closer
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i].Close()
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func buildServices(ctx context.Context, cfg config.Config, log *logger.Logger) (*services, error) {
	out := &services{metrics: metrics.New()}
	ok := false
	defer func() {
		if !ok {
			out.Close()
		}
	}()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		out.closers = append(out.closers, redisClient)
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		out.closers = append(out.closers, closerFunc(func() error { pool.Close(); return nil }))
	}

	var (
		questionStore app.QuestionRepository
		answers       app.AnswerRepository
		ledger        app.PointsLedger
		rewards       app.RewardRepository
		profiles      app.ProfileRepository
	)
	if pool != nil {
		questionStore = postgres.NewQuestionRepository(pool)
		answers = postgres.NewAnswerRepository(pool)
		ledger = postgres.NewLedger(pool)
		rewards = postgres.NewRewardRepository(pool)
		profiles = postgres.NewProfileRepository(pool)
	} else {
		log.Warn("postgres URL is empty, using in-memory storage")
		questionStore = memory.NewQuestionStore()
		answers = memory.NewAnswerStore()
		ledger = memory.NewLedger()
		rewards = memory.NewRewardStore()
		profiles = memory.NewProfileStore()
	}

	cacheTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var (
		questionRepo app.QuestionRepository
		sessions     app.SessionRepository
	)
	if redisClient != nil {
		questionRepo = redisinfra.NewQuestionCache(redisClient, questionStore, cacheTTL)
		sessions = redisinfra.NewSessionStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 30*time.Minute))
		// without Postgres the Redis ledger keeps balances across restarts
		if pool == nil {
			ledger = redisinfra.NewLedger(redisClient)
		}
	} else {
		questionRepo = memory.NewQuestionCache(questionStore, cacheTTL)
		sessions = memory.NewSessionStore()
	}

	var fallback app.FallbackStore
	if cfg.Fallback.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Fallback.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create fallback dir: %w", err)
		}
		store, err := sqlite.NewFallbackStore(cfg.Fallback.Path)
		if err != nil {
			return nil, err
		}
		out.closers = append(out.closers, store)
		fallback = store
	} else {
		fallback = memory.NewFallbackStore()
	}

	publisher, err := events.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, log)
	if err != nil {
		return nil, err
	}
	out.closers = append(out.closers, publisher)

	var generator app.QuestionGenerator
	gen, err := questionbank.NewOpenAIGenerator(questionbank.GeneratorConfig{
		APIKey:      cfg.AI.APIKey,
		BaseURL:     cfg.AI.BaseURL,
		Model:       cfg.AI.Model,
		MaxTokens:   cfg.AI.MaxTokens,
		Temperature: cfg.AI.Temperature,
	})
	switch {
	case err == nil:
		generator = gen
	case errors.Is(err, questionbank.ErrGeneratorDisabled):
		log.Warn("OpenAI API key is empty, question generation is disabled")
	default:
		return nil, err
	}

	policy := analysis.DefaultPassPolicy()
	if cfg.Quiz.PassPolicyPath != "" {
		loaded, err := analysis.LoadPassPolicy(cfg.Quiz.PassPolicyPath)
		switch {
		case err == nil:
			policy = loaded
		case errors.Is(err, os.ErrNotExist):
			log.Warn("pass policy file not found, using defaults", "path", cfg.Quiz.PassPolicyPath)
		default:
			return nil, err
		}
	}

	out.quiz = app.NewQuizService(app.QuizDeps{
		Sessions:  sessions,
		Questions: questionRepo,
		Answers:   answers,
		Ledger:    ledger,
		Fallback:  fallback,
		Events:    publisher,
		Logger:    log,
		Metrics:   out.metrics,
	}, app.QuizConfig{
		Ordering:          app.Ordering(cfg.Quiz.Ordering),
		QuestionTimeout:   config.TTLDuration(cfg.Quiz.QuestionTimeout, 0),
		RequireConfidence: cfg.Quiz.RequireConfidence,
		MaxQuestions:      cfg.Quiz.MaxQuestions,
		WriteTimeout:      config.TTLDuration(cfg.Quiz.WriteTimeout, 5*time.Second),
		IdleTimeout:       config.TTLDuration(cfg.Quiz.IdleTimeout, 30*time.Minute),
	})
	out.questions = app.NewQuestionService(questionRepo, generator, log, out.metrics)
	out.progress = app.NewProgressService(answers, profiles, policy, log)
	out.rewards = app.NewRewardService(rewards, ledger, publisher, cfg.Auth.Admins, log, out.metrics)
	out.profiles = app.NewProfileService(profiles, ledger)

	ok = true
	return out, nil
}
