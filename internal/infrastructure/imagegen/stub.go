package imagegen

import (
	"context"
	"fmt"
	"sync/atomic"

	"storybook-ai-api/internal/domain/service"
)

// StubClient 开发环境用的假客户端，不访问任何外部服务
// 返回确定性的占位图引用和递增令牌，保留令牌轮换语义
type StubClient struct {
	counter atomic.Int64
}

// NewStubClient 创建假客户端
func NewStubClient() *StubClient {
	return &StubClient{}
}

func (s *StubClient) nextToken() string {
	return fmt.Sprintf("stub_resp_%d", s.counter.Add(1))
}

// StartSession 返回一个新的假令牌
func (s *StubClient) StartSession(_ context.Context, in service.StartSessionInput) (string, error) {
	_ = in
	return s.nextToken(), nil
}

// GenerateImage 返回占位图引用并轮换令牌
func (s *StubClient) GenerateImage(_ context.Context, in service.GenerateImageInput) (*service.GenerateImageResult, error) {
	return &service.GenerateImageResult{
		ImageURL:     fmt.Sprintf("https://placehold.co/1024x1024?text=story+%s", in.StoryID),
		SessionToken: s.nextToken(),
	}, nil
}

// ValidateSession 非空令牌视为有效
func (s *StubClient) ValidateSession(_ context.Context, token string) (bool, error) {
	return token != "", nil
}
