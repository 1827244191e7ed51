// Package entity 定义领域实体
package entity

import (
	"time"
)

// ProjectStatus 项目状态
type ProjectStatus string

const (
	ProjectStatusDraft           ProjectStatus = "draft"
	ProjectStatusStoryGenerated  ProjectStatus = "story_generated"
	ProjectStatusImagesGenerated ProjectStatus = "images_generated"
	ProjectStatusCompleted       ProjectStatus = "completed"
)

// Project 绘本项目实体，持有一个故事及其生成进度
type Project struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Story     *Story        `json:"story,omitempty"`
	Status    ProjectStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NewProject 创建新项目
func NewProject(id, name string) *Project {
	now := time.Now()
	return &Project{
		ID:        id,
		Name:      name,
		Status:    ProjectStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetStory 写入故事并推进状态
func (p *Project) SetStory(story *Story) {
	p.Story = story
	p.Status = ProjectStatusStoryGenerated
	p.UpdatedAt = time.Now()
}

// MarkImagesGenerated 图像批次完成后推进状态
func (p *Project) MarkImagesGenerated() {
	p.Status = ProjectStatusImagesGenerated
	p.UpdatedAt = time.Now()
}

// MarkCompleted 标记项目完成
func (p *Project) MarkCompleted() {
	p.Status = ProjectStatusCompleted
	p.UpdatedAt = time.Now()
}
