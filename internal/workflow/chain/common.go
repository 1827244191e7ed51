package chain

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"

	llmctx "storybook-ai-api/internal/domain/service"
	workflowprompt "storybook-ai-api/internal/workflow/prompt"
	"storybook-ai-api/pkg/logger"
	"storybook-ai-api/pkg/metrics"
)

var defaultPromptRegistry = workflowprompt.NewRegistry()

// recordLLMCall 上报一次模型调用的指标并（best-effort）记录用量，不影响主流程
func recordLLMCall(ctx context.Context, recorder llmctx.LLMUsageRecorder, provider, model string, start time.Time, outMsg *schema.Message, callErr error) {
	if provider == "" {
		provider = "default"
	}
	status := "success"
	if callErr != nil {
		status = "error"
	}
	metrics.LLMCallTotal.WithLabelValues(provider, model, status).Inc()
	metrics.LLMCallDuration.WithLabelValues(provider, model).Observe(time.Since(start).Seconds())

	if recorder == nil || callErr != nil {
		return
	}
	in := llmctx.LLMUsageInput{
		Workflow:   llmctx.WorkflowFromContext(ctx),
		Provider:   provider,
		Model:      model,
		DurationMs: int(time.Since(start).Milliseconds()),
	}
	if outMsg != nil && outMsg.ResponseMeta != nil && outMsg.ResponseMeta.Usage != nil {
		in.PromptTokens = outMsg.ResponseMeta.Usage.PromptTokens
		in.CompletionTokens = outMsg.ResponseMeta.Usage.CompletionTokens
	}
	if err := recorder.Record(ctx, in); err != nil {
		logger.Warn(ctx, "llm usage record failed", "error", err.Error())
	}
}
