package repository

import (
	"context"
)

// SessionStore 图像会话存储接口
// 以故事 ID 为键保存当前会话令牌和初始化标记；
// 令牌随每次生成调用轮换，不同故事之间绝不共享
type SessionStore interface {
	// Get 获取故事当前会话令牌
	Get(ctx context.Context, storyID string) (string, bool, error)

	// Set 写入故事会话令牌
	Set(ctx context.Context, storyID, token string) error

	// Clear 清除故事的令牌和初始化标记
	Clear(ctx context.Context, storyID string) error

	// IsInitialized 故事视觉上下文是否已在本进程周期内建立
	IsInitialized(ctx context.Context, storyID string) (bool, error)

	// MarkInitialized 标记故事视觉上下文已建立
	MarkInitialized(ctx context.Context, storyID string) error
}
