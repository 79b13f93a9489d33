package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quizcat-service/internal/app"
	"quizcat-service/internal/domain"
)

// QuestionCache caches filtered question queries in Redis and falls back to the backing store on a miss.
// Entries are stored as JSON under: quizcat:questions:{generation}:{filterKey}
// Writes bump quizcat:questions:gen, which orphans every entry of the previous generation on all instances.
type QuestionCache struct {
	app.QuestionRepository

	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewQuestionCache(client *redis.Client, backing app.QuestionRepository, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		QuestionRepository: backing,
		client:             client,
		ttl:                ttl,
		rnd:                rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

const generationKey = "quizcat:questions:gen"

func (c *QuestionCache) Find(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	var questions []domain.Question
	err := c.cached(ctx, "find:"+filter.Key()+"|"+strconv.Itoa(filter.Limit), &questions, func() (any, error) {
		return c.QuestionRepository.Find(ctx, filter)
	})
	return questions, err
}

func (c *QuestionCache) Catalog(ctx context.Context) (domain.Catalog, error) {
	var catalog domain.Catalog
	err := c.cached(ctx, "catalog", &catalog, func() (any, error) {
		return c.QuestionRepository.Catalog(ctx)
	})
	return catalog, err
}

func (c *QuestionCache) Create(ctx context.Context, q domain.Question) (domain.Question, error) {
	created, err := c.QuestionRepository.Create(ctx, q)
	if err == nil {
		c.Invalidate(ctx)
	}
	return created, err
}

func (c *QuestionCache) Update(ctx context.Context, q domain.Question) (domain.Question, error) {
	updated, err := c.QuestionRepository.Update(ctx, q)
	if err == nil {
		c.Invalidate(ctx)
	}
	return updated, err
}

func (c *QuestionCache) Delete(ctx context.Context, id string) error {
	err := c.QuestionRepository.Delete(ctx, id)
	if err == nil {
		c.Invalidate(ctx)
	}
	return err
}

// Invalidate starts a new cache generation. Old entries expire on their own TTL.
func (c *QuestionCache) Invalidate(ctx context.Context) {
	_ = c.client.Incr(ctx, generationKey).Err()
}

// cached decodes the entry for name into dst, loading and storing it on a miss.
// Redis being unavailable degrades to a direct load.
func (c *QuestionCache) cached(ctx context.Context, name string, dst any, load func() (any, error)) error {
	key := c.key(ctx, name)
	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		if json.Unmarshal(raw, dst) == nil {
			return nil
		}
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
			return raw, nil
		}
		value, err := load()
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		return raw, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(result.([]byte), dst)
}

func (c *QuestionCache) key(ctx context.Context, name string) string {
	gen, err := c.client.Get(ctx, generationKey).Result()
	if err != nil {
		gen = "0"
	}
	return "quizcat:questions:" + gen + ":" + name
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
