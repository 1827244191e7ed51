package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"storybook-ai-api/internal/application/story"
	"storybook-ai-api/internal/config"
	"storybook-ai-api/internal/interfaces/http/dto"
	"storybook-ai-api/pkg/logger"
)

// StoryHandler 故事处理器
type StoryHandler struct {
	cfg       *config.Config
	generator *story.Generator
	extractor *story.Extractor
}

// NewStoryHandler 创建故事处理器
func NewStoryHandler(cfg *config.Config, generator *story.Generator, extractor *story.Extractor) *StoryHandler {
	return &StoryHandler{
		cfg:       cfg,
		generator: generator,
		extractor: extractor,
	}
}

// GenerateStory 生成故事（不落盘，调用方自行决定是否挂到项目上）
// @Summary 生成故事
// @Tags Stories
// @Accept json
// @Produce json
// @Param body body dto.GenerateStoryRequest true "故事参数"
// @Success 200 {object} dto.Response[dto.StoryResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/stories [post]
func (h *StoryHandler) GenerateStory(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.GenerateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	provider, model, err := resolveProviderModel(h.cfg, req.Provider, req.Model)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	st, err := h.generator.Generate(ctx, story.GenerateInput{
		Metadata: req.ToStoryMetadata(),
		Theme:    req.Theme,
		Provider: provider,
		Model:    model,
	})
	if err != nil {
		logger.Error(ctx, "story generation failed", err)
		respondError(c, err)
		return
	}
	dto.Success(c, dto.ToStoryResponse(st))
}

// ExtractCharacters 从故事文本抽取角色档案
// @Summary 抽取角色
// @Tags Stories
// @Accept json
// @Produce json
// @Param body body dto.ExtractCharactersRequest true "故事文本"
// @Success 200 {object} dto.Response[dto.CharacterListResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/stories/characters/extract [post]
func (h *StoryHandler) ExtractCharacters(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ExtractCharactersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	text := strings.TrimSpace(req.StoryText)
	if text == "" && len(req.Pages) > 0 {
		text = strings.TrimSpace(strings.Join(req.Pages, "\n\n"))
	}
	if text == "" {
		dto.BadRequest(c, "story_text or pages is required")
		return
	}

	provider, model, err := resolveProviderModel(h.cfg, req.Provider, req.Model)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	profiles, err := h.extractor.ExtractCharacters(ctx, text, provider, model)
	if err != nil {
		logger.Error(ctx, "character extraction failed", err)
		respondError(c, err)
		return
	}
	dto.Success(c, dto.ToCharacterListResponse(profiles))
}
