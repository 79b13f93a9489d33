package questionbank

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizcat-service/internal/domain"
)

type stubChat struct {
	content string
	err     error
	last    openai.ChatCompletionRequest
}

func (s *stubChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.last = req
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: s.content}}},
	}, nil
}

func TestGenerateRejectsStructurallyInvalidQuestions(t *testing.T) {
	chat := &stubChat{content: `{"questions":[
		{"question":"5 + 5 = ?","choices":["8","9","10","11"],"correctIndex":3,"explanation":"five and five make ten"},
		{"question":"Odd one out?","choices":["cat","dog","fish"],"correctIndex":1,"explanation":""},
		{"question":"7 - 2 = ?","choices":["5","4","3","2"],"correctIndex":9,"explanation":""},
		{"question":"","choices":["a","b","c","d"],"correctIndex":1,"explanation":""}
	]}`}
	gen := NewGenerator(chat, GeneratorConfig{})

	batch, err := gen.Generate(context.Background(), GenerateRequest{
		Prompt:   "addition for grade 2",
		Count:    4,
		Defaults: Defaults{Subject: "Math", Grade: 2, Difficulty: domain.DifficultyEasy},
	})
	require.NoError(t, err)

	require.Len(t, batch.Questions, 1)
	assert.Equal(t, []int{1}, batch.Rows)
	q := batch.Questions[0]
	assert.Equal(t, 2, q.CorrectChoiceIndex)
	assert.Equal(t, "Math", q.Subject)
	assert.Equal(t, domain.Grade(2), q.Grade)

	require.Len(t, batch.Rejected, 3)
	assert.Equal(t, []int{2, 3, 4}, []int{batch.Rejected[0].Index, batch.Rejected[1].Index, batch.Rejected[2].Index})

	require.NotNil(t, chat.last.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONSchema, chat.last.ResponseFormat.Type)
	assert.Contains(t, chat.last.Messages[1].Content, "Write 4 questions.")
}

func TestGenerateRejectsMalformedDocument(t *testing.T) {
	gen := NewGenerator(&stubChat{content: `{"items":[]}`}, GeneratorConfig{})
	_, err := gen.Generate(context.Background(), GenerateRequest{Prompt: "anything"})

	var invalid *ErrInvalidResponse
	require.True(t, errors.As(err, &invalid), "got %v", err)

	gen = NewGenerator(&stubChat{content: `not json`}, GeneratorConfig{})
	_, err = gen.Generate(context.Background(), GenerateRequest{Prompt: "anything"})
	require.True(t, errors.As(err, &invalid))
}

func TestGeneratePropagatesClientErrors(t *testing.T) {
	gen := NewGenerator(&stubChat{err: errors.New("boom")}, GeneratorConfig{})
	_, err := gen.Generate(context.Background(), GenerateRequest{Prompt: "anything"})
	assert.Error(t, err)

	_, err = gen.Generate(context.Background(), GenerateRequest{Prompt: "  "})
	assert.Error(t, err)
}

func TestNewOpenAIGeneratorNeedsKey(t *testing.T) {
	_, err := NewOpenAIGenerator(GeneratorConfig{})
	assert.ErrorIs(t, err, ErrGeneratorDisabled)
}
