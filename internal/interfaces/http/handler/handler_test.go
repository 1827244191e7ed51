package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storybook-ai-api/internal/application/project"
	appprompt "storybook-ai-api/internal/application/prompt"
	"storybook-ai-api/internal/application/story"
	"storybook-ai-api/internal/application/visual"
	"storybook-ai-api/internal/config"
	"storybook-ai-api/internal/infrastructure/imagegen"
	"storybook-ai-api/internal/infrastructure/persistence/jsonfile"
	"storybook-ai-api/internal/infrastructure/persistence/memstore"
	"storybook-ai-api/internal/interfaces/http/dto"
	wfchain "storybook-ai-api/internal/workflow/chain"
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

func testConfig() *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			DefaultProvider: "default",
			Providers: map[string]config.ProviderConfig{
				"default": {Model: "test-model"},
			},
		},
	}
}

// newTestRouter 组装处理器并注册与生产环境一致的路由
func newTestRouter(t *testing.T, m *scriptedChatModel) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
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
	summarizer := appprompt.NewSceneSummarizer(nil, time.Hour)
	orchestrator := visual.NewOrchestrator(client, sessions, appprompt.NewComposer(1500), summarizer, "", "")
	svc := project.NewService(repo, sessions, generator, extractor, orchestrator)

	storyHandler := NewStoryHandler(cfg, generator, extractor)
	projectHandler := NewProjectHandler(cfg, svc)
	visualHandler := NewVisualHandler(svc)

	r := gin.New()
	v1 := r.Group("/v1")

	stories := v1.Group("/stories")
	stories.POST("", storyHandler.GenerateStory)
	stories.POST("/characters/extract", storyHandler.ExtractCharacters)

	projects := v1.Group("/projects")
	projects.GET("", projectHandler.ListProjects)
	projects.POST("", projectHandler.CreateProject)
	projects.GET("/:id", projectHandler.GetProject)
	projects.DELETE("/:id", projectHandler.DeleteProject)
	projects.POST("/:id/story", projectHandler.RegenerateStory)
	projects.POST("/:id/characters", projectHandler.ExtractCharacters)
	projects.POST("/:id/images", projectHandler.GenerateImages)

	v1.POST("/images/stories/:id/pages/:page", projectHandler.GeneratePageImage)

	visualGroup := v1.Group("/visual")
	visualGroup.POST("/art-bible/prompt", visualHandler.BuildArtBiblePrompt)
	visualGroup.POST("/character-reference/prompt", visualHandler.BuildCharacterReferencePrompt)
	visualGroup.POST("/session/start", visualHandler.StartSession)
	visualGroup.POST("/session/clear", visualHandler.ClearSession)

	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope[T any] struct {
	Code    int           `json:"code"`
	Message string        `json:"message"`
	Data    T             `json:"data"`
	Meta    *dto.PageMeta `json:"meta"`
}

func decodeEnvelope[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var resp envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGenerateStoryEndpoint(t *testing.T) {
	r := newTestRouter(t, &scriptedChatModel{replies: []string{storyReply}})

	w := doJSON(t, r, http.MethodPost, "/v1/stories", dto.GenerateStoryRequest{
		Title:        "Cedric and the Dragon",
		NumPages:     3,
		WordsPerPage: 9,
		Genre:        "adventure",
	})

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope[dto.StoryResponse](t, w)
	assert.Equal(t, "Cedric and the Dragon", resp.Data.Title)
	assert.Len(t, resp.Data.Pages, 3)
	for _, p := range resp.Data.Pages {
		assert.NotEmpty(t, p.Text)
		assert.Positive(t, p.WordCount)
	}
}

func TestGenerateStoryRejectsEmptyRequest(t *testing.T) {
	r := newTestRouter(t, &scriptedChatModel{})

	w := doJSON(t, r, http.MethodPost, "/v1/stories", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtractCharactersRequiresText(t *testing.T) {
	r := newTestRouter(t, &scriptedChatModel{})

	w := doJSON(t, r, http.MethodPost, "/v1/stories/characters/extract", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProjectLifecycle(t *testing.T) {
	r := newTestRouter(t, &scriptedChatModel{replies: []string{storyReply}})

	create := doJSON(t, r, http.MethodPost, "/v1/projects", dto.CreateProjectRequest{
		Name: "Cedric and the Dragon",
		GenerateStoryRequest: dto.GenerateStoryRequest{
			Title:        "Cedric and the Dragon",
			NumPages:     3,
			WordsPerPage: 9,
		},
	})
	require.Equal(t, http.StatusCreated, create.Code)
	created := decodeEnvelope[dto.ProjectResponse](t, create)
	require.NotEmpty(t, created.Data.ID)
	require.NotNil(t, created.Data.Story)

	got := doJSON(t, r, http.MethodGet, "/v1/projects/"+created.Data.ID, nil)
	require.Equal(t, http.StatusOK, got.Code)

	list := doJSON(t, r, http.MethodGet, "/v1/projects?page=1&page_size=10", nil)
	require.Equal(t, http.StatusOK, list.Code)
	listResp := decodeEnvelope[dto.ProjectListResponse](t, list)
	assert.Len(t, listResp.Data.Projects, 1)
	require.NotNil(t, listResp.Meta)
	assert.Equal(t, 1, listResp.Meta.Total)

	del := doJSON(t, r, http.MethodDelete, "/v1/projects/"+created.Data.ID, nil)
	require.Equal(t, http.StatusNoContent, del.Code)

	missing := doJSON(t, r, http.MethodGet, "/v1/projects/"+created.Data.ID, nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)

	var errResp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(missing.Body.Bytes(), &errResp))
	assert.Equal(t, "project not found", errResp.Message)
	require.NotNil(t, errResp.Error)
	assert.Equal(t, "3002", errResp.Error.ErrorCode)
}

func TestExtractProjectCharacters(t *testing.T) {
	r := newTestRouter(t, &scriptedChatModel{replies: []string{
		storyReply,
		`{"characters":[{"name":"Cedric","description":"a young knight"}]}`,
		`{"name":"Cedric","species":"human","physical_description":"young knight with messy brown hair","clothing":"dented armor","distinctive_features":"crooked smile","personality_traits":"brave and polite"}`,
	}})

	create := doJSON(t, r, http.MethodPost, "/v1/projects", dto.CreateProjectRequest{
		Name: "Cedric and the Dragon",
		GenerateStoryRequest: dto.GenerateStoryRequest{
			Title:        "Cedric and the Dragon",
			NumPages:     3,
			WordsPerPage: 9,
		},
	})
	require.Equal(t, http.StatusCreated, create.Code)
	created := decodeEnvelope[dto.ProjectResponse](t, create)
	require.Empty(t, created.Data.Story.Characters)

	w := doJSON(t, r, http.MethodPost, "/v1/projects/"+created.Data.ID+"/characters", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope[dto.ProjectResponse](t, w)
	require.NotNil(t, resp.Data.Story)
	require.Len(t, resp.Data.Story.Characters, 1)
	assert.Equal(t, "Cedric", resp.Data.Story.Characters[0].Name)
	assert.Len(t, resp.Data.Story.CharacterReferences, 1)
}

func TestExtractProjectCharactersUnknownProject(t *testing.T) {
	r := newTestRouter(t, &scriptedChatModel{})

	w := doJSON(t, r, http.MethodPost, "/v1/projects/nope/characters", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGeneratePageImageWithCustomPrompt(t *testing.T) {
	r := newTestRouter(t, &scriptedChatModel{replies: []string{storyReply}})

	create := doJSON(t, r, http.MethodPost, "/v1/projects", dto.CreateProjectRequest{
		Name: "Cedric and the Dragon",
		GenerateStoryRequest: dto.GenerateStoryRequest{
			Title:        "Cedric and the Dragon",
			NumPages:     3,
			WordsPerPage: 9,
		},
	})
	require.Equal(t, http.StatusCreated, create.Code)
	created := decodeEnvelope[dto.ProjectResponse](t, create)
	storyID := created.Data.Story.ID

	path := fmt.Sprintf("/v1/images/stories/%s/pages/1", storyID)
	w := doJSON(t, r, http.MethodPost, path, dto.PageImageRequest{
		Prompt: "the dragon sleeping under a cherry tree",
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope[dto.PageImageResponse](t, w)
	assert.NotEmpty(t, resp.Data.ImageURL)
	assert.Contains(t, resp.Data.Prompt, "cherry tree")
}

func TestGeneratePageImageUnknownPage(t *testing.T) {
	r := newTestRouter(t, &scriptedChatModel{replies: []string{storyReply}})

	create := doJSON(t, r, http.MethodPost, "/v1/projects", dto.CreateProjectRequest{
		Name: "Cedric and the Dragon",
		GenerateStoryRequest: dto.GenerateStoryRequest{
			NumPages: 3, WordsPerPage: 9, Title: "Cedric",
		},
	})
	require.Equal(t, http.StatusCreated, create.Code)
	created := decodeEnvelope[dto.ProjectResponse](t, create)

	path := fmt.Sprintf("/v1/images/stories/%s/pages/99", created.Data.Story.ID)
	w := doJSON(t, r, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVisualSessionEndpoints(t *testing.T) {
	r := newTestRouter(t, &scriptedChatModel{replies: []string{storyReply}})

	create := doJSON(t, r, http.MethodPost, "/v1/projects", dto.CreateProjectRequest{
		Name: "Cedric and the Dragon",
		GenerateStoryRequest: dto.GenerateStoryRequest{
			NumPages: 3, WordsPerPage: 9, Title: "Cedric", ArtStyle: "watercolor",
		},
	})
	require.Equal(t, http.StatusCreated, create.Code)
	created := decodeEnvelope[dto.ProjectResponse](t, create)

	start := doJSON(t, r, http.MethodPost, "/v1/visual/session/start", dto.SessionRequest{
		ProjectID: created.Data.ID,
	})
	require.Equal(t, http.StatusOK, start.Code)
	startResp := decodeEnvelope[dto.SessionResponse](t, start)
	assert.NotEmpty(t, startResp.Data.SessionToken)

	clear := doJSON(t, r, http.MethodPost, "/v1/visual/session/clear", dto.SessionRequest{
		ProjectID: created.Data.ID,
	})
	require.Equal(t, http.StatusOK, clear.Code)
	clearResp := decodeEnvelope[dto.SessionResponse](t, clear)
	assert.True(t, clearResp.Data.Cleared)
}

func TestBuildArtBiblePrompt(t *testing.T) {
	r := newTestRouter(t, &scriptedChatModel{})

	w := doJSON(t, r, http.MethodPost, "/v1/visual/art-bible/prompt", dto.ArtBiblePromptRequest{
		ArtStyle:   "watercolor",
		Genre:      "adventure",
		StoryTitle: "Cedric and the Dragon",
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope[dto.PromptResponse](t, w)
	assert.Contains(t, resp.Data.Prompt, "watercolor")

	missing := doJSON(t, r, http.MethodPost, "/v1/visual/art-bible/prompt", dto.ArtBiblePromptRequest{})
	assert.Equal(t, http.StatusBadRequest, missing.Code)
}

func TestBuildCharacterReferencePrompt(t *testing.T) {
	r := newTestRouter(t, &scriptedChatModel{})

	w := doJSON(t, r, http.MethodPost, "/v1/visual/character-reference/prompt", dto.CharacterReferencePromptRequest{
		CharacterProfileResponse: dto.CharacterProfileResponse{
			Name:                "Cedric",
			Species:             "Human",
			PhysicalDescription: "young knight with red hair",
		},
		ArtStyle: "watercolor",
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope[dto.PromptResponse](t, w)
	assert.Contains(t, resp.Data.Prompt, "Cedric")

	invalid := doJSON(t, r, http.MethodPost, "/v1/visual/character-reference/prompt", dto.CharacterReferencePromptRequest{
		ArtStyle: "watercolor",
	})
	assert.Equal(t, http.StatusBadRequest, invalid.Code)
}
