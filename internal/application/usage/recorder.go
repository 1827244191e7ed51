// Package usage 记录模型用量流水
package usage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"storybook-ai-api/internal/domain/service"
	"storybook-ai-api/pkg/logger"
)

// Recorder 把每次模型调用写成一条结构化日志，并维护进程内累计值。
// 单机部署下够用；接计费系统时替换这一个实现即可。
type Recorder struct {
	mu               sync.Mutex
	promptTokens     int64
	completionTokens int64
	calls            int64
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Record(ctx context.Context, in service.LLMUsageInput) error {
	if r == nil {
		return nil
	}
	if in.PromptTokens < 0 || in.CompletionTokens < 0 {
		return fmt.Errorf("invalid token usage")
	}

	r.mu.Lock()
	r.calls++
	r.promptTokens += int64(in.PromptTokens)
	r.completionTokens += int64(in.CompletionTokens)
	r.mu.Unlock()

	logger.Info(ctx, "llm usage",
		"workflow", strings.TrimSpace(in.Workflow),
		"provider", strings.TrimSpace(in.Provider),
		"model", strings.TrimSpace(in.Model),
		"prompt_tokens", in.PromptTokens,
		"completion_tokens", in.CompletionTokens,
		"duration_ms", in.DurationMs,
	)
	return nil
}

// Totals 返回进程启动以来的累计用量
func (r *Recorder) Totals() (calls, promptTokens, completionTokens int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls, r.promptTokens, r.completionTokens
}
