package story

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storybook-ai-api/internal/domain/entity"
	wfchain "storybook-ai-api/internal/workflow/chain"
	"storybook-ai-api/pkg/errors"
)

func newGenerator(m *scriptedChatModel) *Generator {
	factory := &fakeFactory{model: m}
	return NewGenerator(wfchain.NewStoryTextChain(factory, nil), 3, 50)
}

const threeSentenceStory = "Sir Cedric rode his horse across the bridge at dawn. " +
	"The dragon waited quietly in the misty valley below. " +
	"Together they shared a breakfast of toast and jam."

func TestGenerateProducesPaginatedStory(t *testing.T) {
	m := &scriptedChatModel{replies: []string{threeSentenceStory}}
	st, err := newGenerator(m).Generate(context.Background(), GenerateInput{
		Metadata: entity.StoryMetadata{
			Title:        "Sir Cedric",
			NumPages:     3,
			WordsPerPage: 9,
			ArtStyle:     "watercolor",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, st)

	assert.NotEmpty(t, st.ID)
	assert.Equal(t, "Sir Cedric", st.Metadata.Title)
	assert.Len(t, st.Pages, 3)
	for i, p := range st.Pages {
		assert.Equal(t, i+1, p.PageNumber)
		assert.NotEmpty(t, p.Text)
	}
}

func TestGenerateAppliesDefaults(t *testing.T) {
	m := &scriptedChatModel{replies: []string{threeSentenceStory}}
	st, err := newGenerator(m).Generate(context.Background(), GenerateInput{
		Metadata: entity.StoryMetadata{Title: "Defaults"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, st.Metadata.NumPages)
	assert.Equal(t, 50, st.Metadata.WordsPerPage)
}

func TestGenerateRejectsEmptyRequest(t *testing.T) {
	m := &scriptedChatModel{}
	_, err := newGenerator(m).Generate(context.Background(), GenerateInput{})
	require.Error(t, err)
	appErr := errors.AsAppError(err)
	assert.Equal(t, errors.CodeValidationFailed, appErr.Code)
	assert.Equal(t, 0, m.calls)
}

func TestGenerateWrapsChainFailure(t *testing.T) {
	m := &scriptedChatModel{errs: []error{assert.AnError}, replies: []string{""}}
	_, err := newGenerator(m).Generate(context.Background(), GenerateInput{
		Metadata: entity.StoryMetadata{Title: "Broken"},
	})
	require.Error(t, err)
	appErr := errors.AsAppError(err)
	assert.Equal(t, errors.CodeGenerationFailed, appErr.Code)
}

func TestGeneratePromptCarriesRequestDetails(t *testing.T) {
	m := &scriptedChatModel{replies: []string{threeSentenceStory}}
	_, err := newGenerator(m).Generate(context.Background(), GenerateInput{
		Metadata: entity.StoryMetadata{
			Title:        "Jam",
			Genre:        "adventure",
			NumPages:     3,
			WordsPerPage: 9,
			UserPrompt:   "a knight who befriends a dragon",
		},
		Theme: "friendship",
	})
	require.NoError(t, err)

	require.Len(t, m.inputs, 1)
	var userMsg string
	for _, msg := range m.inputs[0] {
		if msg.Role == schema.User {
			userMsg = msg.Content
		}
	}
	assert.Contains(t, userMsg, "exactly 3 pages")
	assert.Contains(t, userMsg, "Genre: adventure")
	assert.Contains(t, userMsg, "a knight who befriends a dragon")
	assert.Contains(t, userMsg, "Theme: friendship")
	assert.NotContains(t, strings.ToLower(userMsg), "page 1")
}

func TestStoryOutputTokenBudget(t *testing.T) {
	// 150 词 × 1.5 × 1.5 = 337，低于下限取 1000
	assert.Equal(t, 1000, storyOutputTokenBudget(150))
	// 2000 词 × 2.25 = 4500
	assert.Equal(t, 4500, storyOutputTokenBudget(2000))
	// 超过上限取 8000
	assert.Equal(t, 8000, storyOutputTokenBudget(10000))
}
