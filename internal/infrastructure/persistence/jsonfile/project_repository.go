// Package jsonfile 提供基于本地 JSON 文档的项目持久化实现
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"storybook-ai-api/internal/domain/entity"
	"storybook-ai-api/pkg/errors"
)

// ProjectRepository 每个项目一个 <id>.json 文件
// 写入先落临时文件再重命名，避免写一半的文件被读到
type ProjectRepository struct {
	dir string
	mu  sync.Mutex
}

// NewProjectRepository 创建仓储并确保目录存在
func NewProjectRepository(dir string) (*ProjectRepository, error) {
	if dir == "" {
		return nil, errors.New(errors.CodeConfigMissing, "project storage dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageError, "failed to create project storage dir")
	}
	return &ProjectRepository{dir: dir}, nil
}

func (r *ProjectRepository) path(id string) string {
	return filepath.Join(r.dir, id+".json")
}

// Save 保存项目（存在则覆盖）
func (r *ProjectRepository) Save(ctx context.Context, project *entity.Project) error {
	if project == nil || project.ID == "" {
		return errors.New(errors.CodeValidationFailed, "project id is empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(project, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.CodeStorageError, "failed to marshal project")
	}

	tmp := r.path(project.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, errors.CodeStorageError, "failed to write project file")
	}
	if err := os.Rename(tmp, r.path(project.ID)); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, errors.CodeStorageError, "failed to commit project file")
	}
	return nil
}

// GetByID 根据 ID 获取项目
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*entity.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path(id))
	if os.IsNotExist(err) {
		return nil, errors.New(errors.CodeProjectNotFound, "project not found").WithDetail(fmt.Sprintf("project %s", id))
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageError, "failed to read project file")
	}

	var project entity.Project
	if err := json.Unmarshal(data, &project); err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageError, "failed to unmarshal project")
	}
	return &project, nil
}

// Delete 删除项目
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err := os.Remove(r.path(id))
	if os.IsNotExist(err) {
		return errors.New(errors.CodeProjectNotFound, "project not found").WithDetail(fmt.Sprintf("project %s", id))
	}
	if err != nil {
		return errors.Wrap(err, errors.CodeStorageError, "failed to delete project file")
	}
	return nil
}

// List 获取全部项目，按创建时间降序
func (r *ProjectRepository) List(ctx context.Context) ([]*entity.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageError, "failed to list project dir")
	}

	projects := make([]*entity.Project, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.dir, e.Name()))
		if err != nil {
			continue
		}
		var project entity.Project
		if err := json.Unmarshal(data, &project); err != nil {
			// 坏文件跳过，不让单个损坏项目拖垮整个列表
			continue
		}
		projects = append(projects, &project)
	}

	sort.Slice(projects, func(i, j int) bool {
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
	return projects, nil
}
