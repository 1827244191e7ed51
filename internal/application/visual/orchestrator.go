// Package visual 维护跨图像调用的视觉上下文
//
// 一个故事的所有插图（art bible、角色参考图、页面插图）都在同一个
// 提供商会话中生成，依靠会话上下文保持风格与角色的一致性。
// 状态机：NoSession -> SessionLoadedUnvalidated -> ContextInitialized，
// 任何状态都可以通过 clear 回到 NoSession。
package visual

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"storybook-ai-api/internal/application/prompt"
	"storybook-ai-api/internal/domain/entity"
	"storybook-ai-api/internal/domain/repository"
	"storybook-ai-api/internal/domain/service"
	"storybook-ai-api/pkg/errors"
	"storybook-ai-api/pkg/logger"
	"storybook-ai-api/pkg/metrics"
)

// SceneSummarizer 场景摘要能力，失败时自行降级，永不报错
type SceneSummarizer interface {
	Summarize(ctx context.Context, sceneText string, profiles []entity.CharacterProfile) string
}

// PageImage 单页图像生成结果
type PageImage struct {
	ImageURL string
	Prompt   string
}

// Orchestrator 视觉上下文编排器
type Orchestrator struct {
	client     service.ImageConversationClient
	store      repository.SessionStore
	composer   *prompt.Composer
	summarizer SceneSummarizer

	defaultSize    string
	defaultQuality string

	// 并发 EnsureSession 按故事 ID 合并，重建至多执行一次
	sf singleflight.Group
}

// NewOrchestrator 创建编排器
func NewOrchestrator(
	client service.ImageConversationClient,
	store repository.SessionStore,
	composer *prompt.Composer,
	summarizer SceneSummarizer,
	defaultSize, defaultQuality string,
) *Orchestrator {
	if defaultSize == "" {
		defaultSize = "1024x1024"
	}
	if defaultQuality == "" {
		defaultQuality = "medium"
	}
	return &Orchestrator{
		client:         client,
		store:          store,
		composer:       composer,
		summarizer:     summarizer,
		defaultSize:    defaultSize,
		defaultQuality: defaultQuality,
	}
}

// EnsureSession 确保故事持有可用的会话令牌
//
// 快路径：上下文已建立且令牌在存储中，不产生任何网络调用；
// 加载路径：story.ImageSessionID 已持久化，校验后标记已建立；
// 重建路径：没有可用会话时重建全部视觉上下文。
func (o *Orchestrator) EnsureSession(ctx context.Context, story *entity.Story) (string, error) {
	v, err, _ := o.sf.Do(story.ID, func() (interface{}, error) {
		return o.ensureSession(ctx, story)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (o *Orchestrator) ensureSession(ctx context.Context, story *entity.Story) (string, error) {
	initialized, err := o.store.IsInitialized(ctx, story.ID)
	if err != nil {
		return "", err
	}
	if initialized {
		if token, ok, err := o.store.Get(ctx, story.ID); err == nil && ok {
			return token, nil
		}
	}

	if story.ImageSessionID != "" {
		// 持久化的会话先载入存储再校验
		if _, ok, _ := o.store.Get(ctx, story.ID); !ok {
			if err := o.store.Set(ctx, story.ID, story.ImageSessionID); err != nil {
				return "", err
			}
		}
		valid, err := o.client.ValidateSession(ctx, story.ImageSessionID)
		if err != nil {
			logger.Warn(ctx, "session validation failed, rebuilding",
				"story_id", story.ID, "error", err.Error())
		}
		if err == nil && valid {
			if err := o.store.MarkInitialized(ctx, story.ID); err != nil {
				return "", err
			}
			return story.ImageSessionID, nil
		}
	}

	token, err := o.RebuildVisualContext(ctx, story)
	if err != nil {
		return "", err
	}
	return token, nil
}

// RebuildVisualContext 重建故事的视觉上下文
//
// 清除陈旧会话 -> 开启新会话（注入风格和标题）-> 重生成 art bible 图
// （失败记录后吞掉）-> 逐个重生成角色参考图（单个失败不影响其他）->
// 把最终令牌写回存储和 story.ImageSessionID。
// 每次故事装载至多执行一次，代价是 O(1 + 角色数) 次网络调用。
func (o *Orchestrator) RebuildVisualContext(ctx context.Context, story *entity.Story) (string, error) {
	start := time.Now()
	metrics.SessionRebuildTotal.Inc()

	if err := o.store.Clear(ctx, story.ID); err != nil {
		return "", err
	}

	token, err := o.client.StartSession(ctx, service.StartSessionInput{
		StoryID:    story.ID,
		ArtStyle:   o.artStyle(story),
		StoryTitle: story.Metadata.Title,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.CodeImageGenFailed, "failed to start image session")
	}
	if err := o.store.Set(ctx, story.ID, token); err != nil {
		return "", err
	}

	// art bible 失败不阻塞：会话本身仍然可用于页面生成
	if story.ArtBible != nil && story.ArtBible.Prompt != "" {
		res, err := o.client.GenerateImage(ctx, service.GenerateImageInput{
			StoryID:      story.ID,
			SessionToken: token,
			Prompt:       story.ArtBible.Prompt,
			Size:         "1536x1024",
			Quality:      o.defaultQuality,
		})
		if err != nil {
			metrics.ImageGenerationTotal.WithLabelValues("art_bible", "error").Inc()
			logger.Warn(ctx, "art bible regeneration failed, continuing",
				"story_id", story.ID, "error", err.Error())
		} else {
			metrics.ImageGenerationTotal.WithLabelValues("art_bible", "success").Inc()
			story.ArtBible.ImageURL = res.ImageURL
			token = res.SessionToken
			if err := o.store.Set(ctx, story.ID, token); err != nil {
				return "", err
			}
		}
	}

	// 角色参考图逐个独立重生成
	for i := range story.CharacterReferences {
		ref := &story.CharacterReferences[i]
		if ref.Prompt == "" {
			continue
		}
		res, err := o.client.GenerateImage(ctx, service.GenerateImageInput{
			StoryID:      story.ID,
			SessionToken: token,
			Prompt:       ref.Prompt,
			Size:         "1536x1024",
			Quality:      o.defaultQuality,
		})
		if err != nil {
			metrics.ImageGenerationTotal.WithLabelValues("character", "error").Inc()
			logger.Warn(ctx, "character reference regeneration failed, continuing",
				"story_id", story.ID, "character", ref.CharacterName, "error", err.Error())
			continue
		}
		metrics.ImageGenerationTotal.WithLabelValues("character", "success").Inc()
		ref.ImageURL = res.ImageURL
		token = res.SessionToken
		if err := o.store.Set(ctx, story.ID, token); err != nil {
			return "", err
		}
	}

	story.ImageSessionID = token
	story.UpdatedAt = time.Now()
	if err := o.store.MarkInitialized(ctx, story.ID); err != nil {
		return "", err
	}

	logger.Info(ctx, "visual context rebuilt",
		"story_id", story.ID,
		"characters", len(story.CharacterReferences),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return token, nil
}

// GenerateImageForPage 为单页生成插图
// 会话已携带风格与角色上下文，页面提示词只需场景摘要
func (o *Orchestrator) GenerateImageForPage(
	ctx context.Context,
	story *entity.Story,
	sceneText string,
	profiles []entity.CharacterProfile,
	artStyle, size, quality string,
) (*PageImage, error) {
	token, err := o.EnsureSession(ctx, story)
	if err != nil {
		return nil, err
	}

	if artStyle == "" {
		artStyle = o.artStyle(story)
	}
	if size == "" {
		size = o.defaultSize
	}
	if quality == "" {
		quality = o.defaultQuality
	}

	summary := o.summarizer.Summarize(ctx, sceneText, profiles)
	pagePrompt := o.composer.ComposeConversationPrompt(summary, artStyle)

	start := time.Now()
	res, err := o.client.GenerateImage(ctx, service.GenerateImageInput{
		StoryID:      story.ID,
		SessionToken: token,
		Prompt:       pagePrompt,
		Size:         size,
		Quality:      quality,
	})
	if err != nil {
		metrics.ImageGenerationTotal.WithLabelValues("page", "error").Inc()
		return nil, err
	}
	metrics.ImageGenerationTotal.WithLabelValues("page", "success").Inc()
	metrics.ImageGenerationDuration.WithLabelValues("page").Observe(time.Since(start).Seconds())

	// 提供商逐轮轮换令牌，立即回写存储和故事
	if res.SessionToken != "" && res.SessionToken != token {
		if err := o.store.Set(ctx, story.ID, res.SessionToken); err != nil {
			return nil, err
		}
		story.ImageSessionID = res.SessionToken
		story.UpdatedAt = time.Now()
	}

	return &PageImage{ImageURL: res.ImageURL, Prompt: pagePrompt}, nil
}

// GenerateArtBibleImage 在会话内（重新）生成 art bible 参考图
func (o *Orchestrator) GenerateArtBibleImage(ctx context.Context, story *entity.Story) (*entity.ArtBible, error) {
	if story.ArtBible == nil || story.ArtBible.Prompt == "" {
		return nil, errors.New(errors.CodeValidationFailed, "story has no art bible prompt")
	}
	token, err := o.EnsureSession(ctx, story)
	if err != nil {
		return nil, err
	}

	res, err := o.client.GenerateImage(ctx, service.GenerateImageInput{
		StoryID:      story.ID,
		SessionToken: token,
		Prompt:       story.ArtBible.Prompt,
		Size:         "1536x1024",
		Quality:      o.defaultQuality,
	})
	if err != nil {
		metrics.ImageGenerationTotal.WithLabelValues("art_bible", "error").Inc()
		return nil, err
	}
	metrics.ImageGenerationTotal.WithLabelValues("art_bible", "success").Inc()

	story.ArtBible.ImageURL = res.ImageURL
	if err := o.adoptToken(ctx, story, res.SessionToken); err != nil {
		return nil, err
	}
	return story.ArtBible, nil
}

// GenerateCharacterReferenceImage 在会话内（重新）生成单个角色的参考图
func (o *Orchestrator) GenerateCharacterReferenceImage(ctx context.Context, story *entity.Story, characterName string) (*entity.CharacterReference, error) {
	ref, ok := story.FindCharacterReference(characterName)
	if !ok {
		// 有档案但还没建参考图记录时现场补建提示词
		profile, found := story.FindCharacter(characterName)
		if !found {
			return nil, errors.New(errors.CodeValidationFailed, "character not found in story")
		}
		story.UpsertCharacterReference(prompt.NewCharacterReference(*profile, o.artStyle(story), true))
		ref, _ = story.FindCharacterReference(characterName)
	}
	if ref.Prompt == "" {
		return nil, errors.New(errors.CodeValidationFailed, "character has no reference prompt")
	}
	token, err := o.EnsureSession(ctx, story)
	if err != nil {
		return nil, err
	}

	res, err := o.client.GenerateImage(ctx, service.GenerateImageInput{
		StoryID:      story.ID,
		SessionToken: token,
		Prompt:       ref.Prompt,
		Size:         "1536x1024",
		Quality:      o.defaultQuality,
	})
	if err != nil {
		metrics.ImageGenerationTotal.WithLabelValues("character", "error").Inc()
		return nil, err
	}
	metrics.ImageGenerationTotal.WithLabelValues("character", "success").Inc()

	ref.ImageURL = res.ImageURL
	if err := o.adoptToken(ctx, story, res.SessionToken); err != nil {
		return nil, err
	}
	return ref, nil
}

// ClearSession 废弃故事当前的视觉上下文
func (o *Orchestrator) ClearSession(ctx context.Context, story *entity.Story) error {
	if err := o.store.Clear(ctx, story.ID); err != nil {
		return err
	}
	story.ImageSessionID = ""
	story.UpdatedAt = time.Now()
	return nil
}

func (o *Orchestrator) adoptToken(ctx context.Context, story *entity.Story, token string) error {
	if token == "" || token == story.ImageSessionID {
		return nil
	}
	if err := o.store.Set(ctx, story.ID, token); err != nil {
		return err
	}
	story.ImageSessionID = token
	story.UpdatedAt = time.Now()
	return nil
}

// GenerateImagesForStory 按页码顺序为整个故事生成插图
//
// 会话逐轮依赖上一轮状态，页面必须串行生成；
// 单页失败记录后跳过，批次永不整体失败；页与页之间响应取消。
func (o *Orchestrator) GenerateImagesForStory(ctx context.Context, story *entity.Story) error {
	artStyle := o.artStyle(story)

	for i := range story.Pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		page := &story.Pages[i]

		res, err := o.GenerateImageForPage(ctx, story, page.Text, story.Characters, artStyle, "", "")
		if err != nil {
			logger.Warn(ctx, "page image generation failed, skipping page",
				"story_id", story.ID,
				"page", page.PageNumber,
				"error", err.Error(),
			)
			continue
		}
		page.ImageURL = res.ImageURL
		page.ImagePrompt = res.Prompt
	}

	story.UpdatedAt = time.Now()
	return nil
}

func (o *Orchestrator) artStyle(story *entity.Story) string {
	if story.Metadata.ArtStyle != "" {
		return story.Metadata.ArtStyle
	}
	return "cartoon"
}
