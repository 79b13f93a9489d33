package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizcat-service/internal/app"
	"quizcat-service/internal/domain"
)

// QuestionCache caches filtered question queries with TTL to avoid repeated DB hits.
// Writes go straight to the backing store and drop every cached entry.
type QuestionCache struct {
	app.QuestionRepository

	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand
	rndMu sync.Mutex

	mu      sync.RWMutex
	queries map[string]cachedQuestions
	catalog *cachedCatalog
}

type cachedQuestions struct {
	questions []domain.Question
	expiresAt time.Time
}

type cachedCatalog struct {
	catalog   domain.Catalog
	expiresAt time.Time
}

func NewQuestionCache(backing app.QuestionRepository, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		QuestionRepository: backing,
		ttl:                ttl,
		clock:              time.Now,
		rnd:                rand.New(rand.NewSource(time.Now().UnixNano())),
		queries:            make(map[string]cachedQuestions),
	}
}

func (c *QuestionCache) Find(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	key := filter.Key() + "|" + strconv.Itoa(filter.Limit)
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.queries[key]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return copyQuestions(entry.questions), nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.queries[key]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.questions, nil
		}
		c.mu.RUnlock()

		questions, err := c.QuestionRepository.Find(ctx, filter)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.queries[key] = cachedQuestions{
			questions: questions,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return copyQuestions(result.([]domain.Question)), nil
}

func (c *QuestionCache) Catalog(ctx context.Context) (domain.Catalog, error) {
	now := c.clock()
	c.mu.RLock()
	if c.catalog != nil && c.catalog.expiresAt.After(now) {
		cat := c.catalog.catalog
		c.mu.RUnlock()
		return cat, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("catalog", func() (interface{}, error) {
		cat, err := c.QuestionRepository.Catalog(ctx)
		if err != nil {
			return domain.Catalog{}, err
		}
		c.mu.Lock()
		c.catalog = &cachedCatalog{catalog: cat, expiresAt: now.Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return cat, nil
	})
	if err != nil {
		return domain.Catalog{}, err
	}
	return result.(domain.Catalog), nil
}

func (c *QuestionCache) Create(ctx context.Context, q domain.Question) (domain.Question, error) {
	created, err := c.QuestionRepository.Create(ctx, q)
	if err == nil {
		c.Invalidate()
	}
	return created, err
}

func (c *QuestionCache) Update(ctx context.Context, q domain.Question) (domain.Question, error) {
	updated, err := c.QuestionRepository.Update(ctx, q)
	if err == nil {
		c.Invalidate()
	}
	return updated, err
}

func (c *QuestionCache) Delete(ctx context.Context, id string) error {
	err := c.QuestionRepository.Delete(ctx, id)
	if err == nil {
		c.Invalidate()
	}
	return err
}

// Invalidate drops every cached query.
func (c *QuestionCache) Invalidate() {
	c.mu.Lock()
	c.queries = make(map[string]cachedQuestions)
	c.catalog = nil
	c.mu.Unlock()
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func copyQuestions(qs []domain.Question) []domain.Question {
	out := make([]domain.Question, len(qs))
	for i, q := range qs {
		out[i] = cloneQuestion(q)
	}
	return out
}
