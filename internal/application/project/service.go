// Package project 编排绘本项目的完整生命周期：
// 生成故事 -> 抽取角色 -> 建立视觉上下文 -> 逐页生成插图 -> 持久化
package project

import (
	"context"
	"strings"

	"github.com/google/uuid"

	appprompt "storybook-ai-api/internal/application/prompt"
	"storybook-ai-api/internal/application/story"
	"storybook-ai-api/internal/application/visual"
	"storybook-ai-api/internal/domain/entity"
	"storybook-ai-api/internal/domain/repository"
	"storybook-ai-api/pkg/errors"
	"storybook-ai-api/pkg/logger"
)

// Service 项目应用服务
type Service struct {
	repo         repository.ProjectRepository
	sessions     repository.SessionStore
	generator    *story.Generator
	extractor    *story.Extractor
	orchestrator *visual.Orchestrator
}

func NewService(
	repo repository.ProjectRepository,
	sessions repository.SessionStore,
	generator *story.Generator,
	extractor *story.Extractor,
	orchestrator *visual.Orchestrator,
) *Service {
	return &Service{
		repo:         repo,
		sessions:     sessions,
		generator:    generator,
		extractor:    extractor,
		orchestrator: orchestrator,
	}
}

// CreateInput 项目创建请求
type CreateInput struct {
	Name     string
	Metadata entity.StoryMetadata
	Theme    string

	Provider string
	Model    string

	// WithCharacters 创建时顺带抽取角色并生成参考提示词
	WithCharacters bool
	// WithImages 创建时顺带生成全部插图（耗时较长）
	WithImages bool
}

// Create 创建项目并生成故事。
// 角色抽取和插图生成默认按需触发，也可以在创建时一并完成。
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = strings.TrimSpace(in.Metadata.Title)
	}
	if name == "" {
		return nil, errors.New(errors.CodeValidationFailed, "project name is required")
	}

	st, err := s.generator.Generate(ctx, story.GenerateInput{
		Metadata: in.Metadata,
		Theme:    in.Theme,
		Provider: in.Provider,
		Model:    in.Model,
	})
	if err != nil {
		return nil, err
	}

	proj := entity.NewProject(uuid.NewString(), name)
	proj.SetStory(st)
	if err := s.repo.Save(ctx, proj); err != nil {
		return nil, err
	}
	logger.Info(ctx, "project created", "project_id", proj.ID, "story_id", st.ID)

	if in.WithCharacters {
		if err := s.extractAndAttachCharacters(ctx, proj, in.Provider, in.Model); err != nil {
			return nil, err
		}
	}
	if in.WithImages {
		if err := s.generateImages(ctx, proj); err != nil {
			return nil, err
		}
	}
	return proj, nil
}

// Get 按 ID 读取项目
func (s *Service) Get(ctx context.Context, id string) (*entity.Project, error) {
	return s.repo.GetByID(ctx, id)
}

// List 列出全部项目，按创建时间倒序
func (s *Service) List(ctx context.Context, page repository.Pagination) (*repository.PagedResult[*entity.Project], error) {
	projects, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	total := int64(len(projects))
	start := page.Offset()
	if start > len(projects) {
		start = len(projects)
	}
	end := start + page.Limit()
	if end > len(projects) {
		end = len(projects)
	}
	return repository.NewPagedResult(projects[start:end], total, page), nil
}

// Delete 删除项目并清掉它的图像会话
func (s *Service) Delete(ctx context.Context, id string) error {
	proj, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if proj.Story != nil {
		if err := s.sessions.Clear(ctx, proj.Story.ID); err != nil {
			logger.Warn(ctx, "failed to clear image session on delete",
				"project_id", id, "story_id", proj.Story.ID, "error", err.Error())
		}
	}
	return s.repo.Delete(ctx, id)
}

// ExtractCharacters 为已有项目抽取角色并生成视觉参考提示词
func (s *Service) ExtractCharacters(ctx context.Context, id, provider, model string) (*entity.Project, error) {
	proj, err := s.loadWithStory(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.extractAndAttachCharacters(ctx, proj, provider, model); err != nil {
		return nil, err
	}
	return proj, nil
}

// RegenerateStory 重新生成故事文本和分页，保留故事身份。
// 旧插图、角色档案和视觉上下文随正文一起作废。
func (s *Service) RegenerateStory(ctx context.Context, id string, metadata entity.StoryMetadata, theme, provider, model string) (*entity.Project, error) {
	proj, err := s.loadWithStory(ctx, id)
	if err != nil {
		return nil, err
	}

	old := proj.Story
	if metadata.Title == "" {
		metadata.Title = old.Metadata.Title
	}
	if metadata.ArtStyle == "" {
		metadata.ArtStyle = old.Metadata.ArtStyle
	}

	st, err := s.generator.Generate(ctx, story.GenerateInput{
		Metadata: metadata,
		Theme:    theme,
		Provider: provider,
		Model:    model,
	})
	if err != nil {
		return nil, err
	}
	// 同一个项目保持同一个故事 ID
	st.ID = old.ID

	if err := s.sessions.Clear(ctx, old.ID); err != nil {
		logger.Warn(ctx, "failed to clear image session on story regeneration",
			"story_id", old.ID, "error", err.Error())
	}

	proj.SetStory(st)
	if err := s.repo.Save(ctx, proj); err != nil {
		return nil, err
	}
	logger.Info(ctx, "story regenerated", "project_id", proj.ID, "story_id", st.ID)
	return proj, nil
}

// RegenerateImages 重建视觉上下文并重新生成全部插图
func (s *Service) RegenerateImages(ctx context.Context, id string) (*entity.Project, error) {
	proj, err := s.loadWithStory(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.orchestrator.RebuildVisualContext(ctx, proj.Story); err != nil {
		return nil, err
	}
	if err := s.generateImages(ctx, proj); err != nil {
		return nil, err
	}
	return proj, nil
}

// GenerateImages 为项目的全部页面生成插图
func (s *Service) GenerateImages(ctx context.Context, id string) (*entity.Project, error) {
	proj, err := s.loadWithStory(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.generateImages(ctx, proj); err != nil {
		return nil, err
	}
	return proj, nil
}

// GeneratePageImage 为指定故事的单页生成插图。
// customPrompt 非空时覆盖页面文本作为场景描述。
func (s *Service) GeneratePageImage(ctx context.Context, storyID string, pageNumber int, customPrompt, size, quality string) (*visual.PageImage, error) {
	proj, err := s.findByStoryID(ctx, storyID)
	if err != nil {
		return nil, err
	}
	st := proj.Story

	var page *entity.Page
	for i := range st.Pages {
		if st.Pages[i].PageNumber == pageNumber {
			page = &st.Pages[i]
			break
		}
	}
	if page == nil {
		return nil, errors.New(errors.CodePageNotFound, "page not found")
	}

	sceneText := page.Text
	if strings.TrimSpace(customPrompt) != "" {
		sceneText = customPrompt
	}

	res, err := s.orchestrator.GenerateImageForPage(ctx, st, sceneText, st.Characters, "", size, quality)
	if err != nil {
		return nil, err
	}
	page.ImageURL = res.ImageURL
	page.ImagePrompt = res.Prompt

	if err := s.repo.Save(ctx, proj); err != nil {
		return nil, err
	}
	return res, nil
}

// GenerateArtBibleImage 为项目生成 art bible 参考图
func (s *Service) GenerateArtBibleImage(ctx context.Context, id string) (*entity.ArtBible, error) {
	proj, err := s.loadWithStory(ctx, id)
	if err != nil {
		return nil, err
	}
	st := proj.Story
	if st.ArtBible == nil {
		st.ArtBible = appprompt.NewArtBible(st.Metadata.ArtStyle, st.Metadata.Genre, st.Metadata.Title, "")
	}
	bible, err := s.orchestrator.GenerateArtBibleImage(ctx, st)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, proj); err != nil {
		return nil, err
	}
	return bible, nil
}

// GenerateCharacterReferenceImage 为项目的单个角色生成参考图
func (s *Service) GenerateCharacterReferenceImage(ctx context.Context, id, characterName string) (*entity.CharacterReference, error) {
	proj, err := s.loadWithStory(ctx, id)
	if err != nil {
		return nil, err
	}
	ref, err := s.orchestrator.GenerateCharacterReferenceImage(ctx, proj.Story, characterName)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, proj); err != nil {
		return nil, err
	}
	return ref, nil
}

// StartVisualSession 废弃旧会话并重建项目的视觉上下文
func (s *Service) StartVisualSession(ctx context.Context, id string) (string, error) {
	proj, err := s.loadWithStory(ctx, id)
	if err != nil {
		return "", err
	}
	token, err := s.orchestrator.RebuildVisualContext(ctx, proj.Story)
	if err != nil {
		return "", err
	}
	if err := s.repo.Save(ctx, proj); err != nil {
		return "", err
	}
	return token, nil
}

// ClearVisualSession 清除项目的视觉上下文
func (s *Service) ClearVisualSession(ctx context.Context, id string) error {
	proj, err := s.loadWithStory(ctx, id)
	if err != nil {
		return err
	}
	if err := s.orchestrator.ClearSession(ctx, proj.Story); err != nil {
		return err
	}
	return s.repo.Save(ctx, proj)
}

func (s *Service) findByStoryID(ctx context.Context, storyID string) (*entity.Project, error) {
	projects, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		if p.Story != nil && p.Story.ID == storyID {
			return p, nil
		}
	}
	return nil, errors.New(errors.CodeStoryNotFound, "story not found")
}

func (s *Service) loadWithStory(ctx context.Context, id string) (*entity.Project, error) {
	proj, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if proj.Story == nil {
		return nil, errors.New(errors.CodeStoryNotFound, "project has no story yet")
	}
	return proj, nil
}

func (s *Service) extractAndAttachCharacters(ctx context.Context, proj *entity.Project, provider, model string) error {
	st := proj.Story
	profiles, err := s.extractor.ExtractCharacters(ctx, combinedPageText(st), provider, model)
	if err != nil {
		return err
	}
	st.Characters = profiles

	artStyle := st.Metadata.ArtStyle
	if st.ArtBible == nil {
		st.ArtBible = appprompt.NewArtBible(artStyle, st.Metadata.Genre, st.Metadata.Title, "")
	}
	for _, p := range profiles {
		st.UpsertCharacterReference(appprompt.NewCharacterReference(p, artStyle, true))
	}

	return s.repo.Save(ctx, proj)
}

func (s *Service) generateImages(ctx context.Context, proj *entity.Project) error {
	if err := s.orchestrator.GenerateImagesForStory(ctx, proj.Story); err != nil {
		return err
	}
	proj.MarkImagesGenerated()
	if allPagesIllustrated(proj.Story) {
		proj.MarkCompleted()
	}
	return s.repo.Save(ctx, proj)
}

func allPagesIllustrated(st *entity.Story) bool {
	if len(st.Pages) == 0 {
		return false
	}
	for _, p := range st.Pages {
		if p.ImageURL == "" {
			return false
		}
	}
	return true
}

func combinedPageText(st *entity.Story) string {
	parts := make([]string, 0, len(st.Pages))
	for _, p := range st.Pages {
		if t := strings.TrimSpace(p.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}
