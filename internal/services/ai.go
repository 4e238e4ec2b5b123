package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/yukikurage/task-tracker-api/internal/constants"
)

var errAIEmptyResponse = errors.New("no response from OpenAI")

type AIService struct {
	client  *openai.Client
	model   string
	breaker *gobreaker.CircuitBreaker
}

type GeneratedTask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func NewAIService(apiKey, model string, log logrus.FieldLogger) *AIService {
	return NewAIServiceWithConfig(openai.DefaultConfig(apiKey), model, log)
}

// NewAIServiceWithConfig allows pointing the client at another base URL.
func NewAIServiceWithConfig(cfg openai.ClientConfig, model string, log logrus.FieldLogger) *AIService {
	if model == "" {
		model = openai.GPT4o
	}

	return &AIService{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "openai",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Circuit breaker state changed")
			},
		}),
	}
}

// GenerateTasksFromText analyzes text and extracts tasks using OpenAI GPT
func (s *AIService) GenerateTasksFromText(ctx context.Context, text string) ([]GeneratedTask, error) {
	if s.client == nil {
		return nil, fmt.Errorf("OpenAI client not initialized")
	}

	prompt := fmt.Sprintf(`You are a task extraction assistant. Extract concrete, actionable tasks from the text below.

Text:
%s

Return a JSON array of at most %d tasks in this format:
[
  {
    "title": "short task title",
    "description": "task details"
  }
]

Rules:
- Return an empty array [] if the text contains no tasks
- Return only JSON, without any explanation`, text, constants.MaxAIGeneratedTasks)

	ctx, cancel := context.WithTimeout(ctx, constants.AIRequestTimeout)
	defer cancel()

	result, err := s.breaker.Execute(func() (interface{}, error) {
		resp, err := s.client.CreateChatCompletion(
			ctx,
			openai.ChatCompletionRequest{
				Model: s.model,
				Messages: []openai.ChatCompletionMessage{
					{
						Role:    openai.ChatMessageRoleUser,
						Content: prompt,
					},
				},
				Temperature: 0.3,
			},
		)
		if err != nil {
			return nil, fmt.Errorf("OpenAI API error: %w", err)
		}

		if len(resp.Choices) == 0 {
			return nil, errAIEmptyResponse
		}

		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrAIServiceUnavailable
		}
		return nil, err
	}

	content := stripCodeFence(result.(string))

	var tasks []GeneratedTask
	if err := json.Unmarshal([]byte(content), &tasks); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w (response: %s)", err, content)
	}

	return tasks, nil
}

// stripCodeFence removes a surrounding markdown code fence if the model added one.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	content = strings.TrimPrefix(content, "```")
	content = strings.TrimPrefix(content, "json")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
