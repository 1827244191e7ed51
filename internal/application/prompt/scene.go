package prompt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode/utf8"

	gocache "github.com/patrickmn/go-cache"

	"storybook-ai-api/internal/domain/entity"
	"storybook-ai-api/pkg/logger"
)

// sceneFallbackRunes 摘要失败时按原文截断的长度
const sceneFallbackRunes = 200

// SceneSummaryGenerator 场景摘要生成能力（由 LLM 工作流实现）
type SceneSummaryGenerator interface {
	SummarizeScene(ctx context.Context, sceneText string, profiles []entity.CharacterProfile) (string, error)
}

// SceneSummarizer 把整页叙事文本压缩成简短的可作画场景描述
// 结果按文本哈希做本地缓存；任何失败都回退为原文截断，绝不让页面失败
type SceneSummarizer struct {
	gen   SceneSummaryGenerator
	cache *gocache.Cache
}

// NewSceneSummarizer 创建场景摘要器，ttl <= 0 时使用 1 小时
func NewSceneSummarizer(gen SceneSummaryGenerator, ttl time.Duration) *SceneSummarizer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SceneSummarizer{
		gen:   gen,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Summarize 生成场景摘要，永不返回错误
func (s *SceneSummarizer) Summarize(ctx context.Context, sceneText string, profiles []entity.CharacterProfile) string {
	if s == nil || s.gen == nil {
		return fallbackSummary(sceneText)
	}

	key := sceneCacheKey(sceneText, profiles)
	if cached, ok := s.cache.Get(key); ok {
		if summary, ok := cached.(string); ok && summary != "" {
			return summary
		}
	}

	summary, err := s.gen.SummarizeScene(ctx, sceneText, profiles)
	if err != nil || strings.TrimSpace(summary) == "" {
		if err != nil {
			logger.Warn(ctx, "scene summary failed, falling back to truncation", "error", err)
		}
		return fallbackSummary(sceneText)
	}

	summary = strings.TrimSpace(summary)
	s.cache.Set(key, summary, gocache.DefaultExpiration)
	return summary
}

func sceneCacheKey(sceneText string, profiles []entity.CharacterProfile) string {
	h := sha256.New()
	h.Write([]byte(sceneText))
	for _, p := range profiles {
		h.Write([]byte{0})
		h.Write([]byte(p.Name))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func fallbackSummary(sceneText string) string {
	sceneText = strings.TrimSpace(sceneText)
	if utf8.RuneCountInString(sceneText) <= sceneFallbackRunes {
		return sceneText
	}
	return string([]rune(sceneText)[:sceneFallbackRunes])
}
