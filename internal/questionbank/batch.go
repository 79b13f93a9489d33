// Package questionbank turns external question sources (CSV files, an AI
// generator) into validated questions. Invalid items are reported one by one
// and never abort the batch.
package questionbank

import (
	"encoding/json"
	"fmt"

	"quizcat-service/internal/domain"
)

// ItemError reports why one item of a batch was rejected. Index is 1-based:
// the data row for CSV (header excluded), the position in the response for generated questions.
type ItemError struct {
	Index int
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

func (e ItemError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Index  int    `json:"index"`
		Reason string `json:"reason"`
	}{e.Index, e.Err.Error()})
}

// Batch is the outcome of reading a question source.
type Batch struct {
	Questions []domain.Question `json:"questions"`
	Rejected  []ItemError       `json:"rejected"`
	// Rows[i] is the source index of Questions[i], in the same numbering as ItemError.Index.
	Rows []int `json:"-"`
}

// Defaults fill the classification fields the source does not carry.
type Defaults struct {
	Subject    string
	Topic      string
	Grade      domain.Grade
	Difficulty domain.Difficulty
}

func (d Defaults) apply(q *domain.Question) {
	if q.Subject == "" {
		q.Subject = d.Subject
	}
	if q.Topic == "" {
		q.Topic = d.Topic
	}
	if q.Grade == 0 {
		q.Grade = d.Grade
	}
	if q.Difficulty == "" {
		q.Difficulty = d.Difficulty
	}
}

func (b *Batch) accept(index int, q domain.Question) {
	b.Questions = append(b.Questions, q)
	b.Rows = append(b.Rows, index)
}

func (b *Batch) reject(index int, err error) {
	b.Rejected = append(b.Rejected, ItemError{Index: index, Err: err})
}
