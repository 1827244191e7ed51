package visual

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storybook-ai-api/internal/application/prompt"
	"storybook-ai-api/internal/domain/entity"
	"storybook-ai-api/internal/domain/service"
	"storybook-ai-api/internal/infrastructure/persistence/memstore"
	"storybook-ai-api/pkg/errors"
)

// fakeImageClient 记录调用并按脚本注入失败
type fakeImageClient struct {
	mu         sync.Mutex
	startCalls int
	genCalls   int
	genPrompts []string
	validateOK bool
	tokenSeq   int

	// failGenCall 第 n 次 GenerateImage 调用（从 1 数）返回错误
	failGenCall map[int]bool
}

func newFakeImageClient() *fakeImageClient {
	return &fakeImageClient{validateOK: true, failGenCall: map[int]bool{}}
}

func (f *fakeImageClient) nextToken() string {
	f.tokenSeq++
	return fmt.Sprintf("resp_%d", f.tokenSeq)
}

func (f *fakeImageClient) StartSession(_ context.Context, _ service.StartSessionInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	return f.nextToken(), nil
}

func (f *fakeImageClient) GenerateImage(_ context.Context, in service.GenerateImageInput) (*service.GenerateImageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.genCalls++
	f.genPrompts = append(f.genPrompts, in.Prompt)
	if f.failGenCall[f.genCalls] {
		return nil, errors.NewRetryable(errors.CodeImageProviderError, "provider unavailable", nil)
	}
	return &service.GenerateImageResult{
		ImageURL:     fmt.Sprintf("https://img.example/%d.png", f.genCalls),
		SessionToken: f.nextToken(),
	}, nil
}

func (f *fakeImageClient) ValidateSession(_ context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validateOK && token != "", nil
}

type literalSummarizer struct{}

func (literalSummarizer) Summarize(_ context.Context, sceneText string, _ []entity.CharacterProfile) string {
	return sceneText
}

func newTestOrchestrator(client *fakeImageClient) (*Orchestrator, *memstore.SessionStore) {
	store := memstore.NewSessionStore()
	o := NewOrchestrator(client, store, prompt.NewComposer(1500), literalSummarizer{}, "", "")
	return o, store
}

func testStory() *entity.Story {
	return entity.NewStory("story-1", entity.StoryMetadata{
		Title:    "The Lantern Forest",
		ArtStyle: "watercolor",
		NumPages: 3,
	}, []entity.Page{
		{PageNumber: 1, Text: "Luna found a lantern."},
		{PageNumber: 2, Text: "The forest lit up."},
		{PageNumber: 3, Text: "Everyone cheered."},
	})
}

func TestEnsureSessionIdempotentFastPath(t *testing.T) {
	ctx := context.Background()
	client := newFakeImageClient()
	o, _ := newTestOrchestrator(client)
	story := testStory()

	token1, err := o.EnsureSession(ctx, story)
	require.NoError(t, err)
	require.NotEmpty(t, token1)
	assert.Equal(t, 1, client.startCalls)

	// 第二次走快路径，不产生任何网络调用
	token2, err := o.EnsureSession(ctx, story)
	require.NoError(t, err)
	assert.Equal(t, token1, token2)
	assert.Equal(t, 1, client.startCalls)
	assert.Equal(t, 0, client.genCalls)
}

func TestEnsureSessionValidatesPersistedToken(t *testing.T) {
	ctx := context.Background()
	client := newFakeImageClient()
	o, store := newTestOrchestrator(client)

	story := testStory()
	story.ImageSessionID = "resp_persisted"

	token, err := o.EnsureSession(ctx, story)
	require.NoError(t, err)
	assert.Equal(t, "resp_persisted", token)
	// 校验通过则不重建
	assert.Equal(t, 0, client.startCalls)

	init, err := store.IsInitialized(ctx, story.ID)
	require.NoError(t, err)
	assert.True(t, init)
}

func TestEnsureSessionRebuildsOnInvalidToken(t *testing.T) {
	ctx := context.Background()
	client := newFakeImageClient()
	client.validateOK = false
	o, _ := newTestOrchestrator(client)

	story := testStory()
	story.ImageSessionID = "resp_stale"

	token, err := o.EnsureSession(ctx, story)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NotEqual(t, "resp_stale", token)
	// 恰好一次重建
	assert.Equal(t, 1, client.startCalls)
	assert.Equal(t, token, story.ImageSessionID)
}

func TestRebuildArtBibleFailureIsolated(t *testing.T) {
	ctx := context.Background()
	client := newFakeImageClient()
	// 第一次 GenerateImage（art bible）失败
	client.failGenCall[1] = true
	o, _ := newTestOrchestrator(client)

	story := testStory()
	story.ArtBible = &entity.ArtBible{Prompt: "art bible prompt", ArtStyle: "watercolor"}
	story.CharacterReferences = []entity.CharacterReference{
		{CharacterName: "Luna", Prompt: "luna reference"},
		{CharacterName: "Bram", Prompt: "bram reference"},
	}

	token, err := o.RebuildVisualContext(ctx, story)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// art bible 失败被吞掉，两个角色仍然都尝试了
	assert.Equal(t, 3, client.genCalls)
	assert.Empty(t, story.ArtBible.ImageURL)
	assert.NotEmpty(t, story.CharacterReferences[0].ImageURL)
	assert.NotEmpty(t, story.CharacterReferences[1].ImageURL)
}

func TestRebuildCharacterFailureIsolated(t *testing.T) {
	ctx := context.Background()
	client := newFakeImageClient()
	// 第一个角色失败，第二个成功
	client.failGenCall[1] = true
	o, _ := newTestOrchestrator(client)

	story := testStory()
	story.CharacterReferences = []entity.CharacterReference{
		{CharacterName: "Luna", Prompt: "luna reference"},
		{CharacterName: "Bram", Prompt: "bram reference"},
	}

	_, err := o.RebuildVisualContext(ctx, story)
	require.NoError(t, err)
	assert.Empty(t, story.CharacterReferences[0].ImageURL)
	assert.NotEmpty(t, story.CharacterReferences[1].ImageURL)
}

func TestGenerateImageForPageRotatesToken(t *testing.T) {
	ctx := context.Background()
	client := newFakeImageClient()
	o, store := newTestOrchestrator(client)
	story := testStory()

	res, err := o.GenerateImageForPage(ctx, story, "Luna found a lantern.", nil, "", "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.ImageURL)
	assert.Contains(t, res.Prompt, "watercolor")

	// 轮换后的令牌同时写回存储和故事
	token, ok, err := store.Get(ctx, story.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, story.ImageSessionID, token)
}

func TestGenerateImagesForStoryPartialFailure(t *testing.T) {
	ctx := context.Background()
	client := newFakeImageClient()
	o, _ := newTestOrchestrator(client)
	story := testStory()

	// 预热会话，保证后续 GenerateImage 调用序号可预测
	_, err := o.EnsureSession(ctx, story)
	require.NoError(t, err)

	// 第 2 页对应第 2 次 GenerateImage 调用
	client.failGenCall[2] = true

	err = o.GenerateImagesForStory(ctx, story)
	require.NoError(t, err)

	assert.NotEmpty(t, story.Pages[0].ImageURL)
	assert.Empty(t, story.Pages[1].ImageURL)
	assert.Empty(t, story.Pages[1].ImagePrompt)
	assert.NotEmpty(t, story.Pages[2].ImageURL)
}

func TestGenerateImagesForStoryHonorsCancellation(t *testing.T) {
	client := newFakeImageClient()
	o, _ := newTestOrchestrator(client)
	story := testStory()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := o.GenerateImagesForStory(ctx, story)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, client.genCalls)
}

func TestEnsureSessionConcurrentSingleRebuild(t *testing.T) {
	ctx := context.Background()
	client := newFakeImageClient()
	o, _ := newTestOrchestrator(client)
	story := testStory()

	var wg sync.WaitGroup
	tokens := make([]string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			token, err := o.EnsureSession(ctx, story)
			require.NoError(t, err)
			tokens[n] = token
		}(i)
	}
	wg.Wait()

	for _, token := range tokens {
		assert.Equal(t, tokens[0], token)
	}
	assert.Equal(t, 1, client.startCalls)
}

func TestConversationPromptIsShort(t *testing.T) {
	ctx := context.Background()
	client := newFakeImageClient()
	o, _ := newTestOrchestrator(client)
	story := testStory()

	longScene := strings.Repeat("The forest was full of glowing lanterns and dancing shadows. ", 20)
	_, err := o.GenerateImageForPage(ctx, story, longScene, nil, "", "", "")
	require.NoError(t, err)

	require.Len(t, client.genPrompts, 1)
	assert.LessOrEqual(t, len(client.genPrompts[0]), 1500)
}

func TestRebuildUpdatesStoryTimestamp(t *testing.T) {
	ctx := context.Background()
	client := newFakeImageClient()
	o, _ := newTestOrchestrator(client)
	story := testStory()
	before := story.UpdatedAt

	time.Sleep(time.Millisecond)
	_, err := o.RebuildVisualContext(ctx, story)
	require.NoError(t, err)
	assert.True(t, story.UpdatedAt.After(before))
}

func TestGenerateCharacterReferenceImageByName(t *testing.T) {
	ctx := context.Background()
	client := newFakeImageClient()
	o, _ := newTestOrchestrator(client)

	story := testStory()
	story.CharacterReferences = []entity.CharacterReference{
		{CharacterName: "Luna", Prompt: "luna reference"},
	}

	ref, err := o.GenerateCharacterReferenceImage(ctx, story, "Luna")
	require.NoError(t, err)
	assert.Equal(t, "Luna", ref.CharacterName)
	assert.NotEmpty(t, ref.ImageURL)
}

func TestGenerateCharacterReferenceImageUnknownName(t *testing.T) {
	ctx := context.Background()
	client := newFakeImageClient()
	o, _ := newTestOrchestrator(client)

	_, err := o.GenerateCharacterReferenceImage(ctx, testStory(), "Nobody")
	require.Error(t, err)
	assert.Equal(t, errors.CodeValidationFailed, errors.AsAppError(err).Code)
	assert.Equal(t, 0, client.genCalls)
}

func TestGenerateCharacterReferenceImageBuildsMissingPrompt(t *testing.T) {
	ctx := context.Background()
	client := newFakeImageClient()
	o, _ := newTestOrchestrator(client)

	story := testStory()
	story.Characters = []entity.CharacterProfile{{
		Name:                "Luna",
		Species:             "Rabbit",
		PhysicalDescription: "small grey rabbit",
	}}

	ref, err := o.GenerateCharacterReferenceImage(ctx, story, "Luna")
	require.NoError(t, err)
	assert.Contains(t, ref.Prompt, "Luna")
	assert.NotEmpty(t, ref.ImageURL)

	// 补建的记录要落回故事
	stored, ok := story.FindCharacterReference("Luna")
	require.True(t, ok)
	assert.Equal(t, ref.ImageURL, stored.ImageURL)
}
