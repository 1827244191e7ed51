package imagegen

import (
	"fmt"

	"storybook-ai-api/internal/config"
	"storybook-ai-api/internal/domain/service"
)

// NewClient 按配置选择图像客户端实现
func NewClient(cfg config.ImageGenConfig) (service.ImageConversationClient, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIClient(cfg)
	case "stub":
		return NewStubClient(), nil
	default:
		return nil, fmt.Errorf("unknown imagegen provider: %s", cfg.Provider)
	}
}
