package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"storybook-ai-api/internal/application/project"
	"storybook-ai-api/internal/config"
	"storybook-ai-api/internal/domain/entity"
	"storybook-ai-api/internal/domain/repository"
	"storybook-ai-api/internal/interfaces/http/dto"
	"storybook-ai-api/pkg/logger"
)

// ProjectHandler 项目处理器
type ProjectHandler struct {
	cfg *config.Config
	svc *project.Service
}

// NewProjectHandler 创建项目处理器
func NewProjectHandler(cfg *config.Config, svc *project.Service) *ProjectHandler {
	return &ProjectHandler{cfg: cfg, svc: svc}
}

// ListProjects 获取项目列表
// @Summary 获取项目列表
// @Tags Projects
// @Produce json
// @Success 200 {object} dto.Response[dto.ProjectListResponse]
// @Router /v1/projects [get]
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	ctx := c.Request.Context()

	page := dto.BindPage(c)
	result, err := h.svc.List(ctx, repository.NewPagination(page.Page, page.PageSize))
	if err != nil {
		logger.Error(ctx, "failed to list projects", err)
		respondError(c, err)
		return
	}
	dto.SuccessWithPage(c, dto.ToProjectListResponse(result.Items),
		dto.NewPageMeta(result.Page, result.PageSize, int(result.Total)))
}

// CreateProject 创建项目并生成故事
// @Summary 创建项目
// @Tags Projects
// @Accept json
// @Produce json
// @Param body body dto.CreateProjectRequest true "项目参数"
// @Success 201 {object} dto.Response[dto.ProjectResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/projects [post]
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	provider, model, err := resolveProviderModel(h.cfg, req.Provider, req.Model)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	proj, err := h.svc.Create(ctx, project.CreateInput{
		Name:           req.Name,
		Metadata:       req.ToStoryMetadata(),
		Theme:          req.Theme,
		Provider:       provider,
		Model:          model,
		WithCharacters: req.WithCharacters,
		WithImages:     req.WithImages,
	})
	if err != nil {
		logger.Error(ctx, "failed to create project", err)
		respondError(c, err)
		return
	}
	dto.Created(c, dto.ToProjectResponse(proj))
}

// GetProject 获取项目详情
// @Summary 获取项目详情
// @Tags Projects
// @Produce json
// @Param id path string true "项目 ID"
// @Success 200 {object} dto.Response[dto.ProjectResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/projects/{id} [get]
func (h *ProjectHandler) GetProject(c *gin.Context) {
	ctx := c.Request.Context()

	proj, err := h.svc.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, dto.ToProjectResponse(proj))
}

// DeleteProject 删除项目
// @Summary 删除项目
// @Tags Projects
// @Param id path string true "项目 ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/projects/{id} [delete]
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.svc.Delete(ctx, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	dto.NoContent(c)
}

// RegenerateStory 重新生成项目故事
// @Summary 重新生成故事
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path string true "项目 ID"
// @Param body body dto.RegenerateStoryRequest true "故事参数"
// @Success 200 {object} dto.Response[dto.ProjectResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/projects/{id}/story [post]
func (h *ProjectHandler) RegenerateStory(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.RegenerateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	provider, model, err := resolveProviderModel(h.cfg, req.Provider, req.Model)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	proj, err := h.svc.RegenerateStory(ctx, c.Param("id"), req.ToStoryMetadata(), req.Theme, provider, model)
	if err != nil {
		logger.Error(ctx, "failed to regenerate story", err, "project_id", c.Param("id"))
		respondError(c, err)
		return
	}
	dto.Success(c, dto.ToProjectResponse(proj))
}

// ExtractCharacters 为已有项目抽取角色
// @Summary 抽取角色
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path string true "项目 ID"
// @Param body body dto.ExtractCharactersRequest false "模型选项"
// @Success 200 {object} dto.Response[dto.ProjectResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/projects/{id}/characters [post]
func (h *ProjectHandler) ExtractCharacters(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ExtractCharactersRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			dto.BadRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	provider, model, err := resolveProviderModel(h.cfg, req.Provider, req.Model)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	proj, err := h.svc.ExtractCharacters(ctx, c.Param("id"), provider, model)
	if err != nil {
		logger.Error(ctx, "failed to extract characters", err, "project_id", c.Param("id"))
		respondError(c, err)
		return
	}
	dto.Success(c, dto.ToProjectResponse(proj))
}

// GenerateImages 为项目生成全部插图
// @Summary 生成插图
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path string true "项目 ID"
// @Param body body dto.GenerateImagesRequest false "生成选项"
// @Success 200 {object} dto.Response[dto.ProjectResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/projects/{id}/images [post]
func (h *ProjectHandler) GenerateImages(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.GenerateImagesRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			dto.BadRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	var (
		proj *entity.Project
		err  error
	)
	if req.RebuildContext {
		proj, err = h.svc.RegenerateImages(ctx, c.Param("id"))
	} else {
		proj, err = h.svc.GenerateImages(ctx, c.Param("id"))
	}
	if err != nil {
		logger.Error(ctx, "failed to generate images", err, "project_id", c.Param("id"))
		respondError(c, err)
		return
	}
	dto.Success(c, dto.ToProjectResponse(proj))
}

// GeneratePageImage 为单页生成插图
// @Summary 生成单页插图
// @Tags Images
// @Accept json
// @Produce json
// @Param id path string true "故事 ID"
// @Param page path int true "页码"
// @Param body body dto.PageImageRequest false "生成选项"
// @Success 200 {object} dto.Response[dto.PageImageResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/images/stories/{id}/pages/{page} [post]
func (h *ProjectHandler) GeneratePageImage(c *gin.Context) {
	ctx := c.Request.Context()

	pageNumber, err := strconv.Atoi(c.Param("page"))
	if err != nil || pageNumber < 1 {
		dto.BadRequest(c, "invalid page number")
		return
	}

	var req dto.PageImageRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			dto.BadRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	res, err := h.svc.GeneratePageImage(ctx, c.Param("id"), pageNumber, req.Prompt, req.Size, req.Quality)
	if err != nil {
		logger.Error(ctx, "failed to generate page image", err,
			"story_id", c.Param("id"), "page", pageNumber)
		respondError(c, err)
		return
	}
	dto.Success(c, dto.PageImageResponse{ImageURL: res.ImageURL, Prompt: res.Prompt})
}
