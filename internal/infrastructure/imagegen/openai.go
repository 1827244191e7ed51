// Package imagegen 提供多轮图像会话客户端实现
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"storybook-ai-api/internal/config"
	"storybook-ai-api/internal/domain/service"
	"storybook-ai-api/pkg/errors"
	"storybook-ai-api/pkg/logger"
	"storybook-ai-api/pkg/metrics"
)

// startSessionPrompt 会话首轮的系统式种子消息
const startSessionPrompt = `You are an expert children's book illustrator creating illustrations for a story.

Art Style: %s
%s
IMPORTANT GUIDELINES:
- All images must maintain perfect visual consistency throughout the story
- Characters must look EXACTLY the same in every illustration
- The art style, colors, and techniques must remain consistent
- When I reference "the art bible" or "previously created characters", use them exactly as designed

You will help me create:
1. An Art Bible - establishing the visual style
2. Character Reference Sheets - detailed character designs
3. Page Illustrations - scenes from the story

Respond briefly to acknowledge you're ready, then wait for my requests.`

// OpenAIClient 基于 OpenAI Responses API 的会话图像客户端
// 客户端本身无会话状态，令牌由调用方持有并随每次调用轮换
type OpenAIClient struct {
	cfg        config.ImageGenConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewOpenAIClient 创建客户端，API key 缺失视为致命配置错误
func NewOpenAIClient(cfg config.ImageGenConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New(errors.CodeCredentialMissing, "openai api key is not configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-image-1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 2 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimit.Enabled {
		rps := cfg.RateLimit.RequestsPerSecond
		if rps <= 0 {
			rps = 1
		}
		burst := cfg.RateLimit.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}

	return &OpenAIClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
	}, nil
}

// Responses API 请求/响应结构

type responsesRequest struct {
	Model              string     `json:"model"`
	Input              string     `json:"input"`
	Tools              []toolSpec `json:"tools,omitempty"`
	PreviousResponseID string     `json:"previous_response_id,omitempty"`
}

type toolSpec struct {
	Type    string `json:"type"`
	Size    string `json:"size,omitempty"`
	Quality string `json:"quality,omitempty"`
}

type responsesResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status,omitempty"`
	Output []outputItem `json:"output"`
}

// outputItem Responses API 输出项的标签判别结构
// Type 决定读取哪些字段：image_generation_call 读 Result，message 读 Content
type outputItem struct {
	Type    string        `json:"type"`
	Result  string        `json:"result,omitempty"`
	Content []contentItem `json:"content,omitempty"`
}

type contentItem struct {
	Type     string        `json:"type"`
	URL      string        `json:"url,omitempty"`
	ImageURL *imageURLSpec `json:"image_url,omitempty"`
	Source   *sourceSpec   `json:"source,omitempty"`
}

type imageURLSpec struct {
	URL string `json:"url"`
}

type sourceSpec struct {
	Data string `json:"data,omitempty"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// StartSession 开启新会话并返回首个响应令牌
func (c *OpenAIClient) StartSession(ctx context.Context, in service.StartSessionInput) (string, error) {
	titleLine := ""
	if in.StoryTitle != "" {
		titleLine = "Story: " + in.StoryTitle + "\n"
	}
	req := responsesRequest{
		Model: c.cfg.Model,
		Input: fmt.Sprintf(startSessionPrompt, in.ArtStyle, titleLine),
	}

	start := time.Now()
	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		metrics.ImageGenerationTotal.WithLabelValues("session", "error").Inc()
		return "", err
	}
	metrics.ImageGenerationTotal.WithLabelValues("session", "success").Inc()
	logger.Info(ctx, "image session started",
		"story_id", in.StoryID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp.ID, nil
}

// GenerateImage 在会话中生成图像
func (c *OpenAIClient) GenerateImage(ctx context.Context, in service.GenerateImageInput) (*service.GenerateImageResult, error) {
	size := in.Size
	if size == "" {
		size = c.cfg.Size
	}
	quality := in.Quality
	if quality == "" {
		quality = c.cfg.Quality
	}

	req := responsesRequest{
		Model:              c.cfg.Model,
		Input:              in.Prompt,
		Tools:              []toolSpec{{Type: "image_generation", Size: size, Quality: quality}},
		PreviousResponseID: in.SessionToken,
	}

	start := time.Now()
	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		metrics.ImageGenerationTotal.WithLabelValues("call", "error").Inc()
		return nil, err
	}

	imageURL, ok := extractImageRef(resp.Output)
	if !ok {
		metrics.ImageGenerationTotal.WithLabelValues("call", "error").Inc()
		return nil, errors.New(errors.CodeImageGenFailed, "no image in provider response").
			WithDetail(fmt.Sprintf("response %s", resp.ID))
	}

	metrics.ImageGenerationTotal.WithLabelValues("call", "success").Inc()
	metrics.ImageGenerationDuration.WithLabelValues("call").Observe(time.Since(start).Seconds())
	return &service.GenerateImageResult{
		ImageURL:     imageURL,
		SessionToken: resp.ID,
	}, nil
}

// ValidateSession 查询提供商确认令牌是否仍可用
func (c *OpenAIClient) ValidateSession(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/responses/"+token, nil)
	if err != nil {
		return false, errors.Wrap(err, errors.CodeImageProviderError, "failed to build validate request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return false, errors.NewRetryable(errors.CodeImageProviderError, "session validation request failed", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
		return false, nil
	default:
		return false, classifyStatus(resp.StatusCode, "session validation failed")
	}
}

// doWithRetry 带限流和指数退避的请求执行
// 仅可重试类别进入退避循环，其余错误立即向上传播
func (c *OpenAIClient) doWithRetry(ctx context.Context, req responsesRequest) (*responsesResponse, error) {
	var out *responsesResponse

	ebo := backoff.NewExponentialBackOff()
	ebo.InitialInterval = c.cfg.RetryBaseDelay
	ebo.Multiplier = 2
	ebo.RandomizationFactor = 0
	ebo.MaxElapsedTime = 0

	attempt := 0
	op := func() error {
		attempt++
		resp, err := c.do(ctx, req)
		if err != nil {
			if errors.IsRetryable(err) {
				logger.Warn(ctx, "image provider call failed, will retry",
					"attempt", attempt,
					"error", err.Error(),
				)
				return err
			}
			return backoff.Permanent(err)
		}
		out = resp
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(ebo, uint64(c.cfg.MaxRetries-1)), ctx))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// do 单次 Responses API 调用
func (c *OpenAIClient) do(ctx context.Context, req responsesRequest) (*responsesResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeImageProviderError, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeImageProviderError, "failed to build request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// 网络错误和超时都可重试
		return nil, errors.NewRetryable(errors.CodeImageProviderError, "provider request failed", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.NewRetryable(errors.CodeImageProviderError, "failed to read provider response", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		var apiErr apiErrorBody
		detail := ""
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			detail = apiErr.Error.Message
		}
		return nil, classifyStatus(httpResp.StatusCode, detail)
	}

	var resp responsesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationFailed, "malformed provider response")
	}
	if resp.ID == "" {
		return nil, errors.New(errors.CodeValidationFailed, "provider response missing id")
	}
	return &resp, nil
}

// classifyStatus 在客户端边界做错误分类
// 429 和 5xx 可重试，其余 4xx 立即失败
func classifyStatus(status int, detail string) *errors.AppError {
	msg := fmt.Sprintf("provider returned status %d", status)
	switch {
	case status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout ||
		status >= 500:
		return errors.NewRetryable(errors.CodeImageProviderError, msg, nil).WithDetail(detail)
	default:
		return errors.New(errors.CodeImageProviderError, msg).WithDetail(detail)
	}
}

// extractImageRef 从输出项中提取图像引用
// 主路径：image_generation_call 的 result（裸 base64 转为 data URL）；
// 兜底路径：message 内容里的图像 URL 或 base64 source
func extractImageRef(output []outputItem) (string, bool) {
	for _, item := range output {
		if item.Type == "image_generation_call" && item.Result != "" {
			return normalizeImageRef(item.Result), true
		}
	}
	for _, item := range output {
		for _, content := range item.Content {
			if content.Type != "image" && content.Type != "output_image" {
				continue
			}
			switch {
			case content.ImageURL != nil && content.ImageURL.URL != "":
				return content.ImageURL.URL, true
			case content.URL != "":
				return content.URL, true
			case content.Source != nil && content.Source.Data != "":
				return "data:image/png;base64," + content.Source.Data, true
			}
		}
	}
	return "", false
}

func normalizeImageRef(result string) string {
	if len(result) >= 4 && result[:4] == "http" {
		return result
	}
	if len(result) >= 5 && result[:5] == "data:" {
		return result
	}
	return "data:image/png;base64," + result
}
