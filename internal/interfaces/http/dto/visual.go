package dto

import (
	"storybook-ai-api/internal/domain/entity"
)

// PageImageRequest 单页插图生成请求
type PageImageRequest struct {
	// Prompt 非空时覆盖页面文本作为场景描述
	Prompt  string `json:"prompt,omitempty"`
	Size    string `json:"size,omitempty"`
	Quality string `json:"quality,omitempty"`
}

// PageImageResponse 单页插图生成响应
type PageImageResponse struct {
	ImageURL string `json:"image_url"`
	Prompt   string `json:"prompt"`
}

// ArtBiblePromptRequest art bible 提示词构建请求
type ArtBiblePromptRequest struct {
	ArtStyle        string `json:"art_style"`
	Genre           string `json:"genre,omitempty"`
	StoryTitle      string `json:"story_title,omitempty"`
	AdditionalNotes string `json:"additional_notes,omitempty"`
}

// CharacterReferencePromptRequest 角色参考图提示词构建请求
type CharacterReferencePromptRequest struct {
	CharacterProfileResponse
	ArtStyle          string `json:"art_style"`
	IncludeTurnaround bool   `json:"include_turnaround"`
}

// ToCharacterProfile 转换为领域角色档案
func (r *CharacterReferencePromptRequest) ToCharacterProfile() entity.CharacterProfile {
	return entity.CharacterProfile{
		Name:                r.Name,
		Species:             r.Species,
		PhysicalDescription: r.PhysicalDescription,
		Clothing:            r.Clothing,
		DistinctiveFeatures: r.DistinctiveFeatures,
		PersonalityTraits:   r.PersonalityTraits,
	}
}

// PromptResponse 提示词构建响应
type PromptResponse struct {
	Prompt string `json:"prompt"`
}

// VisualImageRequest 项目内参考图生成请求
type VisualImageRequest struct {
	ProjectID     string `json:"project_id" binding:"required"`
	CharacterName string `json:"character_name,omitempty"`
}

// SessionRequest 视觉会话操作请求
type SessionRequest struct {
	ProjectID string `json:"project_id" binding:"required"`
}

// SessionResponse 视觉会话响应
type SessionResponse struct {
	SessionToken string `json:"session_token,omitempty"`
	Cleared      bool   `json:"cleared,omitempty"`
}

// ToArtBibleResponse 转换 art bible 实体
func ToArtBibleResponse(b *entity.ArtBible) *ArtBibleResponse {
	if b == nil {
		return nil
	}
	return &ArtBibleResponse{
		Prompt:   b.Prompt,
		ImageURL: b.ImageURL,
		ArtStyle: b.ArtStyle,
	}
}

// ToCharacterReferenceResponse 转换角色参考图实体
func ToCharacterReferenceResponse(ref *entity.CharacterReference) *CharacterReferenceResponse {
	if ref == nil {
		return nil
	}
	return &CharacterReferenceResponse{
		CharacterName: ref.CharacterName,
		Prompt:        ref.Prompt,
		ImageURL:      ref.ImageURL,
	}
}
