package questionbank

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"quizcat-service/internal/domain"
)

// CSV layout: question, choice1..choice4, correctIndex (1-based), explanation (optional).
const (
	colQuestion    = 0
	colFirstChoice = 1
	colCorrect     = 5
	colExplanation = 6
	minColumns     = 6
)

var (
	errMissingColumns = errors.New("expected at least 6 columns: question, choice1..choice4, correctIndex")
	errCorrectIndex   = errors.New("correctIndex must be 1, 2, 3 or 4")
)

// ParseCSV reads every row of r. A header row is detected and skipped when its
// correctIndex cell is not a number. Only reader failures are returned as error.
func ParseCSV(r io.Reader, defaults Defaults) (Batch, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	batch := Batch{Questions: []domain.Question{}, Rejected: []ItemError{}}
	row := 0
	first := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				row++
				batch.reject(row, err)
				continue
			}
			return batch, fmt.Errorf("read csv: %w", err)
		}
		if first {
			first = false
			record[0] = strings.TrimPrefix(record[0], "\ufeff")
			if isHeader(record) {
				continue
			}
		}
		if blank(record) {
			continue
		}
		row++
		q, err := parseRow(record)
		if err != nil {
			batch.reject(row, err)
			continue
		}
		defaults.apply(&q)
		batch.accept(row, q)
	}
	return batch, nil
}

func parseRow(record []string) (domain.Question, error) {
	if len(record) < minColumns {
		return domain.Question{}, errMissingColumns
	}
	idx, err := strconv.Atoi(strings.TrimSpace(record[colCorrect]))
	if err != nil || idx < 1 || idx > domain.ChoiceCount {
		return domain.Question{}, errCorrectIndex
	}
	q := domain.Question{
		Text:               strings.TrimSpace(record[colQuestion]),
		Choices:            make([]string, domain.ChoiceCount),
		CorrectChoiceIndex: idx - 1,
	}
	for i := range q.Choices {
		q.Choices[i] = strings.TrimSpace(record[colFirstChoice+i])
	}
	if len(record) > colExplanation {
		q.Explanation = strings.TrimSpace(record[colExplanation])
	}
	if err := q.Validate(); err != nil {
		return domain.Question{}, err
	}
	return q, nil
}

func isHeader(record []string) bool {
	if !strings.EqualFold(strings.TrimSpace(record[0]), "question") {
		return false
	}
	if len(record) > colCorrect {
		if _, err := strconv.Atoi(strings.TrimSpace(record[colCorrect])); err == nil {
			return false
		}
	}
	return true
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
