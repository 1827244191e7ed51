package service

import "context"

// StartSessionInput 开启图像会话的参数
type StartSessionInput struct {
	StoryID    string
	ArtStyle   string
	StoryTitle string
}

// GenerateImageInput 会话内生成一张图像的参数
// SessionToken 为上一轮会话令牌，空值表示无上下文的首轮调用
type GenerateImageInput struct {
	StoryID      string
	SessionToken string
	Prompt       string
	Size         string
	Quality      string
}

// GenerateImageResult 图像生成结果
// SessionToken 是提供商轮换后的新令牌，调用方必须回写会话存储
type GenerateImageResult struct {
	ImageURL     string
	SessionToken string
}

// ImageConversationClient 多轮图像会话客户端（port）
// 说明：该接口位于 domain/service，作为跨层的稳定契约（port），避免基础设施层依赖应用层实现。
// 实现方在客户端边界完成错误分类：可重试错误标记 Retryable，配置缺失立即失败。
type ImageConversationClient interface {
	// StartSession 开启新会话并返回首个令牌
	StartSession(ctx context.Context, in StartSessionInput) (string, error)

	// GenerateImage 在会话中生成图像，返回图像引用和轮换后的令牌
	GenerateImage(ctx context.Context, in GenerateImageInput) (*GenerateImageResult, error)

	// ValidateSession 校验令牌在提供商侧是否仍可用
	ValidateSession(ctx context.Context, token string) (bool, error)
}
