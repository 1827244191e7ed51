package project

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appprompt "storybook-ai-api/internal/application/prompt"
	"storybook-ai-api/internal/application/story"
	"storybook-ai-api/internal/application/visual"
	"storybook-ai-api/internal/domain/entity"
	"storybook-ai-api/internal/infrastructure/imagegen"
	"storybook-ai-api/internal/infrastructure/persistence/jsonfile"
	"storybook-ai-api/internal/infrastructure/persistence/memstore"
	wfchain "storybook-ai-api/internal/workflow/chain"
	"storybook-ai-api/pkg/errors"
)

type scriptedChatModel struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

func (m *scriptedChatModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls >= len(m.replies) {
		return nil, fmt.Errorf("no scripted reply for call %d", m.calls+1)
	}
	reply := m.replies[m.calls]
	m.calls++
	return schema.AssistantMessage(reply, nil), nil
}

func (m *scriptedChatModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("stream not supported")
}

type fakeFactory struct {
	model model.BaseChatModel
}

func (f *fakeFactory) Get(_ context.Context, _ string) (model.BaseChatModel, error) {
	return f.model, nil
}

const storyReply = "Sir Cedric rode his horse across the bridge at dawn. " +
	"The dragon waited quietly in the misty valley below. " +
	"Together they shared a breakfast of toast and jam."

func newTestService(t *testing.T, m *scriptedChatModel) *Service {
	t.Helper()
	factory := &fakeFactory{model: m}

	repo, err := jsonfile.NewProjectRepository(t.TempDir())
	require.NoError(t, err)
	sessions := memstore.NewSessionStore()
	client := imagegen.NewStubClient()

	generator := story.NewGenerator(wfchain.NewStoryTextChain(factory, nil), 3, 50)
	extractor := story.NewExtractor(
		wfchain.NewCharacterExtractChain(factory, nil),
		wfchain.NewCharacterProfileChain(factory, nil),
	)
	// 摘要生成器留空，走本地截断降级，避免额外模型调用
	summarizer := appprompt.NewSceneSummarizer(nil, time.Hour)
	orchestrator := visual.NewOrchestrator(client, sessions, appprompt.NewComposer(1500), summarizer, "", "")

	return NewService(repo, sessions, generator, extractor, orchestrator)
}

func createInput() CreateInput {
	return CreateInput{
		Name: "Cedric and the Dragon",
		Metadata: entity.StoryMetadata{
			Title:        "Cedric and the Dragon",
			NumPages:     3,
			WordsPerPage: 9,
			ArtStyle:     "watercolor",
			Genre:        "adventure",
		},
	}
}

func TestCreateGeneratesStory(t *testing.T) {
	ctx := context.Background()
	m := &scriptedChatModel{replies: []string{storyReply}}
	svc := newTestService(t, m)

	proj, err := svc.Create(ctx, createInput())
	require.NoError(t, err)

	assert.Equal(t, entity.ProjectStatusStoryGenerated, proj.Status)
	require.NotNil(t, proj.Story)
	assert.Len(t, proj.Story.Pages, 3)

	got, err := svc.Get(ctx, proj.ID)
	require.NoError(t, err)
	assert.Equal(t, proj.Story.ID, got.Story.ID)
}

func TestCreateFullPipeline(t *testing.T) {
	ctx := context.Background()
	m := &scriptedChatModel{replies: []string{
		storyReply,
		`{"characters":[{"name":"Cedric","description":"a young knight"}]}`,
		`{"name":"Cedric","species":"human","physical_description":"young knight with red hair","clothing":"silver armor","distinctive_features":"crooked smile","personality_traits":"brave"}`,
	}}
	svc := newTestService(t, m)

	in := createInput()
	in.WithCharacters = true
	in.WithImages = true
	proj, err := svc.Create(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, entity.ProjectStatusCompleted, proj.Status)
	st := proj.Story
	require.Len(t, st.Characters, 1)
	assert.Equal(t, "Cedric", st.Characters[0].Name)
	require.NotNil(t, st.ArtBible)
	assert.Contains(t, st.ArtBible.Prompt, "watercolor")
	require.Len(t, st.CharacterReferences, 1)
	assert.Equal(t, "Cedric", st.CharacterReferences[0].CharacterName)

	for _, p := range st.Pages {
		assert.NotEmpty(t, p.ImageURL)
		assert.NotEmpty(t, p.ImagePrompt)
	}
	assert.NotEmpty(t, st.ImageSessionID)
}

func TestDeleteClearsImageSession(t *testing.T) {
	ctx := context.Background()
	m := &scriptedChatModel{replies: []string{storyReply}}
	svc := newTestService(t, m)

	proj, err := svc.Create(ctx, createInput())
	require.NoError(t, err)
	_, err = svc.GenerateImages(ctx, proj.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, proj.ID))

	_, err = svc.Get(ctx, proj.ID)
	appErr := errors.AsAppError(err)
	assert.Equal(t, errors.CodeProjectNotFound, appErr.Code)
}

func TestRegenerateStoryKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	m := &scriptedChatModel{replies: []string{storyReply, storyReply}}
	svc := newTestService(t, m)

	proj, err := svc.Create(ctx, createInput())
	require.NoError(t, err)
	originalStoryID := proj.Story.ID

	got, err := svc.RegenerateStory(ctx, proj.ID, entity.StoryMetadata{
		NumPages: 3, WordsPerPage: 9,
	}, "", "", "")
	require.NoError(t, err)

	assert.Equal(t, originalStoryID, got.Story.ID)
	// 标题和画风从旧故事继承
	assert.Equal(t, "Cedric and the Dragon", got.Story.Metadata.Title)
	assert.Equal(t, "watercolor", got.Story.Metadata.ArtStyle)
	// 旧插图作废
	for _, p := range got.Story.Pages {
		assert.Empty(t, p.ImageURL)
	}
}

func TestRegenerateImagesRebuildsContext(t *testing.T) {
	ctx := context.Background()
	m := &scriptedChatModel{replies: []string{storyReply}}
	svc := newTestService(t, m)

	proj, err := svc.Create(ctx, createInput())
	require.NoError(t, err)

	got, err := svc.RegenerateImages(ctx, proj.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ProjectStatusCompleted, got.Status)
	for _, p := range got.Story.Pages {
		assert.NotEmpty(t, p.ImageURL)
	}
}

func TestCreateRequiresName(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &scriptedChatModel{})

	_, err := svc.Create(ctx, CreateInput{})
	appErr := errors.AsAppError(err)
	assert.Equal(t, errors.CodeValidationFailed, appErr.Code)
}
