package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"storybook-ai-api/internal/application/project"
	appprompt "storybook-ai-api/internal/application/prompt"
	"storybook-ai-api/internal/interfaces/http/dto"
	"storybook-ai-api/pkg/logger"
)

// VisualHandler 视觉一致性处理器
type VisualHandler struct {
	svc *project.Service
}

// NewVisualHandler 创建视觉一致性处理器
func NewVisualHandler(svc *project.Service) *VisualHandler {
	return &VisualHandler{svc: svc}
}

// BuildArtBiblePrompt 构建 art bible 提示词（纯计算，不调用提供商）
// @Summary 构建 art bible 提示词
// @Tags Visual
// @Accept json
// @Produce json
// @Param body body dto.ArtBiblePromptRequest true "风格参数"
// @Success 200 {object} dto.Response[dto.PromptResponse]
// @Router /v1/visual/art-bible/prompt [post]
func (h *VisualHandler) BuildArtBiblePrompt(c *gin.Context) {
	var req dto.ArtBiblePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.ArtStyle) == "" {
		dto.BadRequest(c, "art_style is required")
		return
	}

	prompt := appprompt.BuildArtBiblePrompt(req.ArtStyle, req.Genre, req.StoryTitle, req.AdditionalNotes)
	dto.Success(c, dto.PromptResponse{Prompt: prompt})
}

// GenerateArtBibleImage 为项目生成 art bible 参考图
// @Summary 生成 art bible 参考图
// @Tags Visual
// @Accept json
// @Produce json
// @Param body body dto.VisualImageRequest true "项目 ID"
// @Success 200 {object} dto.Response[dto.ArtBibleResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/visual/art-bible/image [post]
func (h *VisualHandler) GenerateArtBibleImage(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.VisualImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	bible, err := h.svc.GenerateArtBibleImage(ctx, req.ProjectID)
	if err != nil {
		logger.Error(ctx, "failed to generate art bible image", err, "project_id", req.ProjectID)
		respondError(c, err)
		return
	}
	dto.Success(c, dto.ToArtBibleResponse(bible))
}

// BuildCharacterReferencePrompt 构建角色参考图提示词（纯计算）
// @Summary 构建角色参考图提示词
// @Tags Visual
// @Accept json
// @Produce json
// @Param body body dto.CharacterReferencePromptRequest true "角色档案"
// @Success 200 {object} dto.Response[dto.PromptResponse]
// @Router /v1/visual/character-reference/prompt [post]
func (h *VisualHandler) BuildCharacterReferencePrompt(c *gin.Context) {
	var req dto.CharacterReferencePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	profile := req.ToCharacterProfile()
	if !profile.IsValid() {
		dto.BadRequest(c, "name, species and physical_description are required")
		return
	}

	prompt := appprompt.BuildCharacterReferencePrompt(profile, req.ArtStyle, req.IncludeTurnaround)
	dto.Success(c, dto.PromptResponse{Prompt: prompt})
}

// GenerateCharacterReferenceImage 为项目的单个角色生成参考图
// @Summary 生成角色参考图
// @Tags Visual
// @Accept json
// @Produce json
// @Param body body dto.VisualImageRequest true "项目 ID 与角色名"
// @Success 200 {object} dto.Response[dto.CharacterReferenceResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/visual/character-reference/image [post]
func (h *VisualHandler) GenerateCharacterReferenceImage(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.VisualImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.CharacterName) == "" {
		dto.BadRequest(c, "character_name is required")
		return
	}

	ref, err := h.svc.GenerateCharacterReferenceImage(ctx, req.ProjectID, req.CharacterName)
	if err != nil {
		logger.Error(ctx, "failed to generate character reference image", err,
			"project_id", req.ProjectID, "character", req.CharacterName)
		respondError(c, err)
		return
	}
	dto.Success(c, dto.ToCharacterReferenceResponse(ref))
}

// StartSession 重建项目的视觉上下文会话
// @Summary 重建视觉会话
// @Tags Visual
// @Accept json
// @Produce json
// @Param body body dto.SessionRequest true "项目 ID"
// @Success 200 {object} dto.Response[dto.SessionResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/visual/session/start [post]
func (h *VisualHandler) StartSession(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	token, err := h.svc.StartVisualSession(ctx, req.ProjectID)
	if err != nil {
		logger.Error(ctx, "failed to start visual session", err, "project_id", req.ProjectID)
		respondError(c, err)
		return
	}
	dto.Success(c, dto.SessionResponse{SessionToken: token})
}

// ClearSession 清除项目的视觉上下文会话
// @Summary 清除视觉会话
// @Tags Visual
// @Accept json
// @Produce json
// @Param body body dto.SessionRequest true "项目 ID"
// @Success 200 {object} dto.Response[dto.SessionResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/visual/session/clear [post]
func (h *VisualHandler) ClearSession(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	if err := h.svc.ClearVisualSession(ctx, req.ProjectID); err != nil {
		logger.Error(ctx, "failed to clear visual session", err, "project_id", req.ProjectID)
		respondError(c, err)
		return
	}
	dto.Success(c, dto.SessionResponse{Cleared: true})
}
