package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/task-tracker-api/internal/logging"
)

// newFakeOpenAI serves chat completions whose content is produced by reply.
func newFakeOpenAI(t *testing.T, status int, reply func() string) (*AIService, *int32) {
	t.Helper()
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":{"message":"upstream down","type":"server_error"}}`)
			return
		}

		resp := openai.ChatCompletionResponse{
			ID:     "chatcmpl-test",
			Object: "chat.completion",
			Choices: []openai.ChatCompletionChoice{{
				Index:        0,
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply()},
				FinishReason: openai.FinishReasonStop,
			}},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(server.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL + "/v1"
	return NewAIServiceWithConfig(cfg, "", logging.Discard()), &calls
}

func TestGenerateTasksFromText(t *testing.T) {
	ai, _ := newFakeOpenAI(t, http.StatusOK, func() string {
		return "```json\n[{\"title\":\"Buy milk\",\"description\":\"2 liters\"}]\n```"
	})

	tasks, err := ai.GenerateTasksFromText(context.Background(), "remember to buy milk")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Buy milk", tasks[0].Title)
	assert.Equal(t, "2 liters", tasks[0].Description)
}

func TestGenerateTasksFromText_UnparseableReply(t *testing.T) {
	ai, _ := newFakeOpenAI(t, http.StatusOK, func() string { return "I could not find any tasks." })

	_, err := ai.GenerateTasksFromText(context.Background(), "hello")
	assert.Error(t, err)
}

func TestGenerateTasksFromText_BreakerOpens(t *testing.T) {
	ai, calls := newFakeOpenAI(t, http.StatusInternalServerError, func() string { return "" })
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := ai.GenerateTasksFromText(ctx, "anything")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrAIServiceUnavailable)
	}

	before := atomic.LoadInt32(calls)
	_, err := ai.GenerateTasksFromText(ctx, "anything")
	assert.ErrorIs(t, err, ErrAIServiceUnavailable)
	assert.Equal(t, before, atomic.LoadInt32(calls))
}

func TestSuggestTasks_FiltersAndCaps(t *testing.T) {
	ai, _ := newFakeOpenAI(t, http.StatusOK, func() string {
		items := []GeneratedTask{{Title: "  "}, {Title: strings.Repeat("x", 300)}}
		for i := 0; i < 25; i++ {
			items = append(items, GeneratedTask{Title: fmt.Sprintf(" task %d ", i)})
		}
		body, _ := json.Marshal(items)
		return string(body)
	})
	svc := NewTaskService(nil, nil, nil, ai, logging.Discard())

	tasks, err := svc.SuggestTasks(context.Background(), "a long meeting transcript")
	require.NoError(t, err)
	require.Len(t, tasks, 20)
	assert.Equal(t, "task 0", tasks[0].Title)
}

func TestSuggestTasks_UpstreamFailureIsUnavailable(t *testing.T) {
	ai, _ := newFakeOpenAI(t, http.StatusBadGateway, func() string { return "" })
	svc := NewTaskService(nil, nil, nil, ai, logging.Discard())

	_, err := svc.SuggestTasks(context.Background(), "text")
	assert.ErrorIs(t, err, ErrAIServiceUnavailable)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, "[]", stripCodeFence("```json\n[]\n```"))
	assert.Equal(t, "[]", stripCodeFence("```\n[]\n```"))
	assert.Equal(t, "[]", stripCodeFence("  []  "))
}
