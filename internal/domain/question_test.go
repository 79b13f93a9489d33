package domain

import (
	"errors"
	"testing"
)

func TestQuestionValidate(t *testing.T) {
	valid := Question{Text: "2 + 2 = ?", Choices: []string{"1", "2", "3", "4"}, CorrectChoiceIndex: 3, Grade: 2}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid question, got %v", err)
	}

	bad := Question{Text: " ", Choices: []string{"1", "", "3", "4"}, CorrectChoiceIndex: 4, Difficulty: "extreme"}
	err := bad.Validate()
	if !errors.Is(err, ErrInvalidQuestion) {
		t.Fatalf("expected ErrInvalidQuestion, got %v", err)
	}
	if !errors.Is(err, ErrInvalidChoice) || !errors.Is(err, ErrInvalidDifficulty) {
		t.Fatalf("expected every problem reported, got %v", err)
	}
	var empty *EmptyChoiceError
	if !errors.As(err, &empty) || empty.Index != 1 {
		t.Fatalf("expected empty choice 2 reported, got %v", err)
	}
}

func TestBuildCatalogDeduplicatesCaseInsensitively(t *testing.T) {
	cat := BuildCatalog([]Question{
		{Subject: "Math", Topic: "Addition", Grade: 2},
		{Subject: "math ", Topic: "addition", Grade: 2},
		{Subject: "Thai", Topic: "", Grade: 0},
	})
	if len(cat.Subjects) != 2 || cat.Subjects[0] != "Math" {
		t.Fatalf("unexpected subjects %v", cat.Subjects)
	}
	if len(cat.Topics) != 1 || len(cat.Grades) != 1 || cat.Grades[0] != 2 {
		t.Fatalf("unexpected catalog %+v", cat)
	}
}
