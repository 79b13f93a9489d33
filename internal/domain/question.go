package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validate checks the structural rules every stored question must satisfy.
// It returns all problems joined and wrapped in ErrInvalidQuestion.
func (q Question) Validate() error {
	var errs []error
	if strings.TrimSpace(q.Text) == "" {
		errs = append(errs, errors.New("question text is empty"))
	}
	if len(q.Choices) != ChoiceCount {
		errs = append(errs, errors.New("exactly four choices are required"))
	} else {
		for i, c := range q.Choices {
			if strings.TrimSpace(c) == "" {
				errs = append(errs, &EmptyChoiceError{Index: i})
			}
		}
	}
	if q.CorrectChoiceIndex < 0 || q.CorrectChoiceIndex >= ChoiceCount {
		errs = append(errs, ErrInvalidChoice)
	}
	switch q.Difficulty {
	case "", DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		errs = append(errs, ErrInvalidDifficulty)
	}
	if q.Grade < 0 || q.Grade > MaxGrade {
		errs = append(errs, ErrInvalidGrade)
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidQuestion, errors.Join(errs...))
}

// EmptyChoiceError reports a blank choice (0-based index).
type EmptyChoiceError struct {
	Index int
}

func (e *EmptyChoiceError) Error() string {
	return "choice " + string(rune('1'+e.Index)) + " is empty"
}

// BuildCatalog collects the distinct subjects, topics and grades of qs, sorted.
// Subjects and topics are compared case-insensitively; the first spelling wins.
func BuildCatalog(qs []Question) Catalog {
	subjects := map[string]string{}
	topics := map[string]string{}
	grades := map[Grade]bool{}
	for _, q := range qs {
		if s := strings.TrimSpace(q.Subject); s != "" {
			if _, ok := subjects[strings.ToLower(s)]; !ok {
				subjects[strings.ToLower(s)] = s
			}
		}
		if t := strings.TrimSpace(q.Topic); t != "" {
			if _, ok := topics[strings.ToLower(t)]; !ok {
				topics[strings.ToLower(t)] = t
			}
		}
		if q.Grade > 0 {
			grades[q.Grade] = true
		}
	}
	cat := Catalog{Subjects: []string{}, Topics: []string{}, Grades: []Grade{}}
	for _, s := range subjects {
		cat.Subjects = append(cat.Subjects, s)
	}
	for _, t := range topics {
		cat.Topics = append(cat.Topics, t)
	}
	for g := range grades {
		cat.Grades = append(cat.Grades, g)
	}
	sort.Strings(cat.Subjects)
	sort.Strings(cat.Topics)
	sort.Slice(cat.Grades, func(i, j int) bool { return cat.Grades[i] < cat.Grades[j] })
	return cat
}
