package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/learncode/internal/domain/ai"
)

func completionBody(content string) string {
	resp := openai.ChatCompletionResponse{
		ID:     "cmpl-1",
		Object: "chat.completion",
		Model:  DefaultModel,
		Choices: []openai.ChatCompletionChoice{{
			Index:   0,
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
		}},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient("test-key", srv.URL, "", srv.Client())
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient("  ", "", "", nil)
	assert.ErrorIs(t, err, ai.ErrMissingCredentials)
}

func TestGenerateRoadmapRequest(t *testing.T) {
	var got openai.ChatCompletionRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody(`{"title":"t","learningPath":"p"}`)))
	})

	out, err := c.GenerateRoadmap(context.Background(), "fmt.Println(1)")
	require.NoError(t, err)
	assert.Equal(t, `{"title":"t","learningPath":"p"}`, out)

	assert.Equal(t, DefaultModel, got.Model)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, got.ResponseFormat.Type)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, "fmt.Println(1)", got.Messages[1].Content)
	assert.Equal(t, roadmapMaxTokens, got.MaxTokens)
}

func TestExplainTopicPrompt(t *testing.T) {
	var got openai.ChatCompletionRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody("  A closure captures variables.  ")))
	})

	react := "React"
	out, err := c.ExplainTopic(context.Background(), ai.TopicPrompt{
		Topic: "closures", LevelName: "Level 2", Language: "JavaScript", Framework: &react,
	})
	require.NoError(t, err)
	assert.Equal(t, "A closure captures variables.", out)
	assert.Equal(t, `Explain "closures" in the context of Level 2 using React in JavaScript.`, got.Messages[1].Content)
	assert.Nil(t, got.ResponseFormat)
}

func TestRateLimitMapsToQuota(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Rate limit exceeded","type":"rate_limit_error"}}`))
	})
	_, err := c.ExplainTopic(context.Background(), ai.TopicPrompt{Topic: "x", Language: "Go"})
	assert.ErrorIs(t, err, ai.ErrQuotaExceeded)
}

func TestServerErrorIsNotQuota(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	})
	_, err := c.GenerateRoadmap(context.Background(), "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ai.ErrQuotaExceeded)
}

func TestEmptyChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	})
	_, err := c.ExplainTopic(context.Background(), ai.TopicPrompt{Topic: "x"})
	assert.ErrorIs(t, err, ai.ErrEmptyCompletion)
}

func TestBlankContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody(" \n ")))
	})
	_, err := c.ExplainTopic(context.Background(), ai.TopicPrompt{Topic: "x"})
	assert.ErrorIs(t, err, ai.ErrEmptyCompletion)
}

func TestSetMaxTokens(t *testing.T) {
	req := openai.ChatCompletionRequest{Model: "openai/o3-mini"}
	setMaxTokens(&req, 100)
	assert.Equal(t, 100, req.MaxCompletionTokens)
	assert.Zero(t, req.MaxTokens)

	req = openai.ChatCompletionRequest{Model: "deepseek/deepseek-chat"}
	setMaxTokens(&req, 100)
	assert.Equal(t, 100, req.MaxTokens)
	assert.True(t, strings.HasPrefix(req.Model, "deepseek"))
}
