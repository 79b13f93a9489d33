// Package analysis turns recorded answers into per-topic summaries and insights.
// Everything here is a pure function of its input.
package analysis

import (
	"math"
	"sort"
	"strings"

	"quizcat-service/internal/domain"
)

// Unspecified replaces an empty subject or topic in bucket keys.
const Unspecified = "unspecified"

// ConfidenceCount tallies answers given at one confidence level.
type ConfidenceCount struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
}

// Bucket summarises the answers for one normalised "subject / topic" key.
type Bucket struct {
	Key              string                                     `json:"key"`
	Subject          string                                     `json:"subject"`
	Topic            string                                     `json:"topic"`
	Correct          int                                        `json:"correct"`
	Total            int                                        `json:"total"`
	Percent          int                                        `json:"percent"`
	Confidence       map[domain.ConfidenceLevel]ConfidenceCount `json:"confidence"`
	TimeSpentSeconds float64                                    `json:"timeSpentSeconds"`
	AvgTimeSeconds   float64                                    `json:"avgTimeSeconds"`
}

// Insights are the global scalars derived from a record set. Bucket references
// are nil when there are no records.
type Insights struct {
	Answered       int     `json:"answered"`
	AvgScore       float64 `json:"avgScore"`
	AvgTimeSeconds float64 `json:"avgTimeSeconds"`
	Best           *Bucket `json:"best,omitempty"`
	Worst          *Bucket `json:"worst,omitempty"`
	MostTimeSpent  *Bucket `json:"mostTimeSpent,omitempty"`
}

// Report is the output of Aggregate.
type Report struct {
	Buckets  []Bucket `json:"buckets"`
	Insights Insights `json:"insights"`
}

// Key normalises subject and topic into a bucket key.
func Key(subject, topic string) string {
	return normalise(subject) + " / " + normalise(topic)
}

func normalise(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Unspecified
	}
	return s
}

// Aggregate groups records by normalised subject/topic, worst-performing first.
func Aggregate(records []domain.AnswerRecord) Report {
	index := make(map[string]*Bucket)
	var (
		correct   int
		timeSpent float64
	)
	for _, rec := range records {
		key := Key(rec.Subject, rec.Topic)
		b, ok := index[key]
		if !ok {
			b = &Bucket{
				Key:        key,
				Subject:    normalise(rec.Subject),
				Topic:      normalise(rec.Topic),
				Confidence: make(map[domain.ConfidenceLevel]ConfidenceCount),
			}
			index[key] = b
		}
		b.Total++
		if rec.IsCorrect {
			b.Correct++
			correct++
		}
		if rec.ConfidenceLevel != "" {
			cc := b.Confidence[rec.ConfidenceLevel]
			cc.Total++
			if rec.IsCorrect {
				cc.Correct++
			}
			b.Confidence[rec.ConfidenceLevel] = cc
		}
		spent := math.Max(rec.TimeSpentSeconds, 0)
		b.TimeSpentSeconds += spent
		timeSpent += spent
	}

	buckets := make([]Bucket, 0, len(index))
	for _, b := range index {
		if b.Total == 0 {
			continue
		}
		b.Percent = Percent(b.Correct, b.Total)
		b.AvgTimeSeconds = b.TimeSpentSeconds / float64(b.Total)
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Percent != buckets[j].Percent {
			return buckets[i].Percent < buckets[j].Percent
		}
		return buckets[i].Key < buckets[j].Key
	})

	report := Report{Buckets: buckets}
	report.Insights.Answered = len(records)
	if len(records) == 0 {
		return report
	}
	report.Insights.AvgScore = float64(correct) / float64(len(records))
	report.Insights.AvgTimeSeconds = timeSpent / float64(len(records))

	worst := buckets[0]
	report.Insights.Worst = &worst
	bestIdx, slowIdx := 0, 0
	for i := range buckets {
		// Strict comparisons keep the earlier bucket on ties.
		if buckets[i].Percent > buckets[bestIdx].Percent {
			bestIdx = i
		}
		if buckets[i].TimeSpentSeconds > buckets[slowIdx].TimeSpentSeconds {
			slowIdx = i
		}
	}
	best, slow := buckets[bestIdx], buckets[slowIdx]
	report.Insights.Best = &best
	report.Insights.MostTimeSpent = &slow
	return report
}

// Percent is round(correct/total*100), 0 for an empty total.
func Percent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}
