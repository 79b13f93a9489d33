package questionbank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	openai "github.com/sashabaranov/go-openai"

	"quizcat-service/internal/domain"
)

// ChatClient is the subset of *openai.Client the generator uses.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// GeneratorConfig holds the model settings for question generation.
type GeneratorConfig struct {
	APIKey      string  `yaml:"apiKey"`
	BaseURL     string  `yaml:"baseURL"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"maxTokens"`
	Temperature float32 `yaml:"temperature"`
}

// GenerateRequest describes what to ask the model for.
type GenerateRequest struct {
	Prompt   string
	Count    int
	Defaults Defaults
}

// ErrGeneratorDisabled is returned when no API key is configured.
var ErrGeneratorDisabled = errors.New("question generator not configured")

// ErrInvalidResponse wraps a model response that is not the expected JSON document.
type ErrInvalidResponse struct {
	Content string
	Err     error
}

func (e *ErrInvalidResponse) Error() string {
	return "invalid generator response: " + e.Err.Error()
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }

// Generator asks an OpenAI-compatible chat endpoint for quiz questions using
// JSON-schema structured output, then validates each question like a CSV row.
type Generator struct {
	client ChatClient
	cfg    GeneratorConfig
}

// NewOpenAIGenerator builds a Generator for the OpenAI API, or any compatible API via BaseURL.
func NewOpenAIGenerator(cfg GeneratorConfig) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, ErrGeneratorDisabled
	}
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	return NewGenerator(openai.NewClientWithConfig(config), cfg), nil
}

func NewGenerator(client ChatClient, cfg GeneratorConfig) *Generator {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4000
	}
	return &Generator{client: client, cfg: cfg}
}

const systemPrompt = `You write multiple-choice quiz questions for primary-school students in Thailand.
Every question has exactly four non-empty choices and exactly one correct choice.
correctIndex is 1-based: 1 for the first choice, 4 for the last.
Keep the language of the user's request. Add a one-sentence explanation of the correct answer.`

const schemaName = "quiz_questions"

// questionSchema only fixes the document shape. Per-question rules are checked
// afterwards so one bad question does not discard the whole response.
var questionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"questions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"question":     map[string]any{"type": "string"},
					"choices":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"correctIndex": map[string]any{"type": "integer"},
					"explanation":  map[string]any{"type": "string"},
				},
				"required":             []any{"question", "choices", "correctIndex", "explanation"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []any{"questions"},
	"additionalProperties": false,
}

type generatedQuestion struct {
	Question     string   `json:"question"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation"`
}

type generatedBatch struct {
	Questions []generatedQuestion `json:"questions"`
}

// Generate returns the accepted questions and the rejected ones with their reasons.
// Nothing is saved here; the caller decides what to store.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (Batch, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return Batch{}, errors.New("prompt is empty")
	}
	if req.Count > 0 {
		prompt = fmt.Sprintf("%s\n\nWrite %d questions.", prompt, req.Count)
	}

	schemaBytes, err := json.Marshal(questionSchema)
	if err != nil {
		return Batch{}, fmt.Errorf("marshal schema: %w", err)
	}
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxCompletionTokens: g.cfg.MaxTokens,
		Temperature:         g.cfg.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: json.RawMessage(schemaBytes),
				Strict: true,
			},
		},
	})
	if err != nil {
		return Batch{}, fmt.Errorf("generate questions: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Batch{}, &ErrInvalidResponse{Err: errors.New("no choices in response")}
	}
	return decodeGenerated(resp.Choices[0].Message.Content, req.Defaults)
}

func decodeGenerated(content string, defaults Defaults) (Batch, error) {
	if err := validateDocument(content); err != nil {
		return Batch{}, err
	}
	var raw generatedBatch
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return Batch{}, &ErrInvalidResponse{Content: content, Err: err}
	}

	batch := Batch{Questions: []domain.Question{}, Rejected: []ItemError{}}
	for i, gq := range raw.Questions {
		if gq.CorrectIndex < 1 || gq.CorrectIndex > domain.ChoiceCount {
			batch.reject(i+1, errCorrectIndex)
			continue
		}
		q := domain.Question{
			Text:               strings.TrimSpace(gq.Question),
			Choices:            trimAll(gq.Choices),
			CorrectChoiceIndex: gq.CorrectIndex - 1,
			Explanation:        strings.TrimSpace(gq.Explanation),
		}
		defaults.apply(&q)
		if err := q.Validate(); err != nil {
			batch.reject(i+1, err)
			continue
		}
		batch.accept(i+1, q)
	}
	return batch, nil
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func validateDocument(content string) error {
	var parsed any
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return &ErrInvalidResponse{Content: content, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	compileOnce.Do(func() {
		// the compiler wants a plain decoded JSON value, not the Go map literal
		raw, err := json.Marshal(questionSchema)
		if err != nil {
			compileErr = err
			return
		}
		var def any
		if err := json.Unmarshal(raw, &def); err != nil {
			compileErr = err
			return
		}
		c := jsonschema.NewCompiler()
		url := "schema://" + schemaName + ".json"
		if err := c.AddResource(url, def); err != nil {
			compileErr = err
			return
		}
		compiled, compileErr = c.Compile(url)
	})
	if compileErr != nil {
		return fmt.Errorf("compile schema: %w", compileErr)
	}
	if err := compiled.Validate(parsed); err != nil {
		return &ErrInvalidResponse{Content: content, Err: fmt.Errorf("schema validation failed: %w", err)}
	}
	return nil
}

func trimAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}
