package story

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	appprompt "storybook-ai-api/internal/application/prompt"
	"storybook-ai-api/internal/domain/entity"
	wfchain "storybook-ai-api/internal/workflow/chain"
	wfmodel "storybook-ai-api/internal/workflow/model"
	"storybook-ai-api/pkg/errors"
	"storybook-ai-api/pkg/logger"
	"storybook-ai-api/pkg/metrics"
)

const (
	storyTextTemperature float32 = 0.8

	// 估算输出预算：词数 × 1.5 token/词，再留 1.5 倍余量
	storyTokensPerWord  = 1.5
	storyTokenHeadroom  = 1.5
	storyMinOutputToken = 1000
	storyMaxOutputToken = 8000
)

// GenerateInput 故事生成请求
type GenerateInput struct {
	Metadata entity.StoryMetadata
	Theme    string

	Provider string
	Model    string
}

// Generator 生成完整故事：正文 -> 分页 -> 聚合为 Story
type Generator struct {
	textChain *wfchain.StoryTextChain

	defaultNumPages     int
	defaultWordsPerPage int
}

func NewGenerator(textChain *wfchain.StoryTextChain, defaultNumPages, defaultWordsPerPage int) *Generator {
	if defaultNumPages <= 0 {
		defaultNumPages = 3
	}
	if defaultWordsPerPage <= 0 {
		defaultWordsPerPage = 50
	}
	return &Generator{
		textChain:           textChain,
		defaultNumPages:     defaultNumPages,
		defaultWordsPerPage: defaultWordsPerPage,
	}
}

func (g *Generator) Generate(ctx context.Context, in GenerateInput) (*entity.Story, error) {
	start := time.Now()

	metadata := in.Metadata
	if metadata.NumPages <= 0 {
		metadata.NumPages = g.defaultNumPages
	}
	if metadata.WordsPerPage <= 0 {
		metadata.WordsPerPage = g.defaultWordsPerPage
	}
	if strings.TrimSpace(metadata.Title) == "" && strings.TrimSpace(metadata.UserPrompt) == "" {
		return nil, errors.New(errors.CodeValidationFailed, "story needs a title or a story idea")
	}

	userPrompt := appprompt.BuildStoryPrompt(metadata, in.Theme, metadata.UserPrompt)

	temperature := storyTextTemperature
	maxTokens := storyOutputTokenBudget(metadata.NumPages * metadata.WordsPerPage)

	msg, err := g.textChain.Invoke(ctx, &wfmodel.StoryTextInput{
		Provider:     in.Provider,
		Model:        in.Model,
		Temperature:  &temperature,
		MaxTokens:    &maxTokens,
		StoryRequest: userPrompt,
	})
	if err != nil {
		metrics.StoryGenerationTotal.WithLabelValues("error").Inc()
		return nil, errors.Wrap(err, errors.CodeGenerationFailed, "story text generation failed")
	}

	pages, err := Paginate(msg.Content, metadata.NumPages, metadata.WordsPerPage)
	if err != nil {
		metrics.StoryGenerationTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	st := entity.NewStory(uuid.NewString(), metadata, pages)

	metrics.StoryGenerationTotal.WithLabelValues("success").Inc()
	metrics.StoryGenerationDuration.Observe(time.Since(start).Seconds())
	metrics.StoryPageCount.Observe(float64(len(pages)))
	logger.Info(ctx, "story generated",
		"story_id", st.ID,
		"pages", len(pages),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return st, nil
}

func storyOutputTokenBudget(totalWords int) int {
	budget := int(float64(totalWords) * storyTokensPerWord * storyTokenHeadroom)
	if budget < storyMinOutputToken {
		return storyMinOutputToken
	}
	if budget > storyMaxOutputToken {
		return storyMaxOutputToken
	}
	return budget
}
