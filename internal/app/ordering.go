package app

import (
	"hash/fnv"
	"math/rand"
	"sort"

	"quizcat-service/internal/domain"
)

// Ordering decides how a fetched question pool is sequenced.
type Ordering string

const (
	// OrderShuffle randomises every session.
	OrderShuffle Ordering = "shuffle"
	// OrderDeterministic gives the same filter the same sequence, independent of store order.
	OrderDeterministic Ordering = "deterministic"
)

func orderQuestions(pool []domain.Question, filter domain.QuestionFilter, mode Ordering, limit int) []domain.Question {
	ordered := make([]domain.Question, len(pool))
	copy(ordered, pool)

	switch mode {
	case OrderDeterministic:
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
		h := fnv.New64a()
		h.Write([]byte(filter.Key()))
		rnd := rand.New(rand.NewSource(int64(h.Sum64())))
		rnd.Shuffle(len(ordered), func(i, j int) {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		})
	default:
		rand.Shuffle(len(ordered), func(i, j int) {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		})
	}

	if limit > 0 && limit < len(ordered) {
		ordered = ordered[:limit]
	}
	return ordered
}
