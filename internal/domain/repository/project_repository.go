// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"storybook-ai-api/internal/domain/entity"
)

// ProjectRepository 项目仓储接口
type ProjectRepository interface {
	// Save 保存项目（存在则覆盖）
	Save(ctx context.Context, project *entity.Project) error

	// GetByID 根据 ID 获取项目
	GetByID(ctx context.Context, id string) (*entity.Project, error)

	// Delete 删除项目
	Delete(ctx context.Context, id string) error

	// List 获取全部项目（按创建时间降序）
	List(ctx context.Context) ([]*entity.Project, error)
}
