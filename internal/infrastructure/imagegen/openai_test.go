package imagegen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storybook-ai-api/internal/config"
	"storybook-ai-api/internal/domain/service"
	"storybook-ai-api/pkg/errors"
)

func testClient(t *testing.T, baseURL string) *OpenAIClient {
	t.Helper()
	c, err := NewOpenAIClient(config.ImageGenConfig{
		APIKey:         "sk-test",
		BaseURL:        baseURL,
		Model:          "gpt-image-1",
		Timeout:        5 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func TestNewOpenAIClientMissingKey(t *testing.T) {
	_, err := NewOpenAIClient(config.ImageGenConfig{})
	require.Error(t, err)

	appErr := errors.AsAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.CodeCredentialMissing, appErr.Code)
	assert.False(t, errors.IsRetryable(err))
}

func TestGenerateImageTokenRotation(t *testing.T) {
	var gotPrev string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotPrev, _ = req["previous_response_id"].(string)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "resp_2",
			"output": []map[string]any{
				{"type": "image_generation_call", "result": "aGVsbG8="},
			},
		})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	res, err := c.GenerateImage(context.Background(), service.GenerateImageInput{
		StoryID:      "s1",
		SessionToken: "resp_1",
		Prompt:       "a fox",
	})
	require.NoError(t, err)
	assert.Equal(t, "resp_1", gotPrev)
	assert.Equal(t, "resp_2", res.SessionToken)
	assert.Equal(t, "data:image/png;base64,aGVsbG8=", res.ImageURL)
}

func TestGenerateImageRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "resp_ok",
			"output": []map[string]any{
				{"type": "image_generation_call", "result": "https://img.example/1.png"},
			},
		})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	res, err := c.GenerateImage(context.Background(), service.GenerateImageInput{Prompt: "a fox"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "https://img.example/1.png", res.ImageURL)
}

func TestGenerateImageNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad prompt"}}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.GenerateImage(context.Background(), service.GenerateImageInput{Prompt: "a fox"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, errors.IsRetryable(err))
}

func TestGenerateImageRetryBudgetExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.GenerateImage(context.Background(), service.GenerateImageInput{Prompt: "a fox"})
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.True(t, errors.IsRetryable(err))
}

func TestStartSessionSeedsArtStyle(t *testing.T) {
	var gotInput string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotInput, _ = req["input"].(string)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "resp_session"})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	token, err := c.StartSession(context.Background(), service.StartSessionInput{
		StoryID:    "s1",
		ArtStyle:   "watercolor",
		StoryTitle: "The Lantern Forest",
	})
	require.NoError(t, err)
	assert.Equal(t, "resp_session", token)
	assert.Contains(t, gotInput, "Art Style: watercolor")
	assert.Contains(t, gotInput, "Story: The Lantern Forest")
}

func TestValidateSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/responses/resp_good":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	ctx := context.Background()

	ok, err := c.ValidateSession(ctx, "resp_good")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.ValidateSession(ctx, "resp_gone")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.ValidateSession(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExtractImageRefFallbackPaths(t *testing.T) {
	// 主路径缺失时走 message 内容兜底
	ref, ok := extractImageRef([]outputItem{
		{Type: "message", Content: []contentItem{
			{Type: "text"},
			{Type: "image", ImageURL: &imageURLSpec{URL: "https://img.example/a.png"}},
		}},
	})
	require.True(t, ok)
	assert.Equal(t, "https://img.example/a.png", ref)

	ref, ok = extractImageRef([]outputItem{
		{Type: "message", Content: []contentItem{
			{Type: "image", Source: &sourceSpec{Data: "Zm9v"}},
		}},
	})
	require.True(t, ok)
	assert.Equal(t, "data:image/png;base64,Zm9v", ref)

	_, ok = extractImageRef([]outputItem{{Type: "message"}})
	assert.False(t, ok)
}
