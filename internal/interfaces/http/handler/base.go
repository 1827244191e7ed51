// Package handler 提供 HTTP 请求处理器
package handler

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"storybook-ai-api/internal/config"
	"storybook-ai-api/internal/interfaces/http/dto"
	"storybook-ai-api/pkg/errors"
	"storybook-ai-api/pkg/logger"
)

// resolveProviderModel 解析 LLM Provider 和 Model
func resolveProviderModel(cfg *config.Config, provider, model string) (string, string, error) {
	if cfg == nil {
		return "", "", fmt.Errorf("server config not configured")
	}

	p := strings.TrimSpace(provider)
	if p == "" {
		p = strings.TrimSpace(cfg.LLM.DefaultProvider)
	}
	if p == "" {
		return "", "", fmt.Errorf("llm provider not specified")
	}
	if len(p) > 32 {
		return "", "", fmt.Errorf("llm provider too long")
	}

	providerCfg, ok := cfg.LLM.Providers[p]
	if !ok {
		return "", "", fmt.Errorf("llm provider not found: %s", p)
	}

	m := strings.TrimSpace(model)
	if m == "" {
		m = strings.TrimSpace(providerCfg.Model)
	}
	if len(m) > 64 {
		return "", "", fmt.Errorf("llm model too long")
	}
	return p, m, nil
}

// respondError 把应用层错误映射为统一错误响应
func respondError(c *gin.Context, err error) {
	appErr := errors.AsAppError(err)
	if appErr.Code == errors.CodeUnknown {
		logger.Error(c.Request.Context(), "unhandled error", err)
	}
	detail := &dto.ErrorDetail{ErrorCode: string(appErr.Code)}
	if appErr.Detail != "" {
		detail.Details = appErr.Detail
	}
	dto.ErrorWithDetail(c, appErr.HTTPStatus, appErr.Message, detail)
}
