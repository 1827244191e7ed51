package dto

import (
	"time"

	"storybook-ai-api/internal/domain/entity"
)

// CreateProjectRequest 创建项目请求
type CreateProjectRequest struct {
	Name string `json:"name"`
	GenerateStoryRequest

	// WithCharacters 创建时抽取角色并生成参考提示词
	WithCharacters bool `json:"with_characters"`
	// WithImages 创建时同步生成全部插图
	WithImages bool `json:"with_images"`
}

// RegenerateStoryRequest 重新生成故事请求
type RegenerateStoryRequest struct {
	GenerateStoryRequest
}

// GenerateImagesRequest 批量插图生成请求
type GenerateImagesRequest struct {
	// RebuildContext 生成前先重建视觉上下文
	RebuildContext bool `json:"rebuild_context"`
}

// ProjectResponse 项目响应
type ProjectResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Status    string         `json:"status"`
	Story     *StoryResponse `json:"story,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ProjectListResponse 项目列表响应
type ProjectListResponse struct {
	Projects []*ProjectResponse `json:"projects"`
	Total    int                `json:"total"`
}

// ToProjectResponse 转换项目实体
func ToProjectResponse(p *entity.Project) *ProjectResponse {
	if p == nil {
		return nil
	}
	return &ProjectResponse{
		ID:        p.ID,
		Name:      p.Name,
		Status:    string(p.Status),
		Story:     ToStoryResponse(p.Story),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// ToProjectListResponse 转换项目列表
func ToProjectListResponse(projects []*entity.Project) ProjectListResponse {
	out := ProjectListResponse{
		Projects: make([]*ProjectResponse, 0, len(projects)),
		Total:    len(projects),
	}
	for _, p := range projects {
		out.Projects = append(out.Projects, ToProjectResponse(p))
	}
	return out
}
