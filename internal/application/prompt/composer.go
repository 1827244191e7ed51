// Package prompt 负责组装故事文本和图像生成的提示词
// 所有组装都是纯字符串拼接，相同输入产出相同结果
package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"storybook-ai-api/internal/domain/entity"
)

const (
	// DefaultMaxPromptChars 图像提示词硬上限
	DefaultMaxPromptChars = 1500

	// 各字段独立截断预算
	physicalDescBudget = 100
	shortFieldBudget   = 60
	sceneBudget        = 200

	// maxCharacterBlocks 图像提示词最多携带的角色块数
	maxCharacterBlocks = 2
)

// 一致性强化后缀：有 art bible / 参考图上下文时用长版
const (
	consistencySuffixShort = "Vibrant colors, child-friendly, professional children's book illustration style."
	consistencySuffixLong  = "Maintain perfect visual consistency with the established art direction and character reference sheets: " +
		"same color palette, same lighting, same rendering technique, identical character designs. " +
		"Vibrant colors, child-friendly, professional children's book illustration style."
)

// Composer 图像提示词组装器
type Composer struct {
	maxPromptChars int
}

// NewComposer 创建组装器，maxPromptChars <= 0 时使用默认上限
func NewComposer(maxPromptChars int) *Composer {
	if maxPromptChars <= 0 {
		maxPromptChars = DefaultMaxPromptChars
	}
	return &Composer{maxPromptChars: maxPromptChars}
}

// MaxPromptChars 返回配置的提示词上限
func (c *Composer) MaxPromptChars() int {
	return c.maxPromptChars
}

// ComposeImagePrompt 组装完整的页面插图提示词
//
// 按固定顺序拼接：风格指令（含 art bible 描述符）-> 至多两个角色块 ->
// 场景摘要 -> 一致性后缀。超出预算时优先压缩场景段
// （风格与角色一致性字段的保真优先于场景细节），仍超限则带省略号硬切。
func (c *Composer) ComposeImagePrompt(
	scene string,
	profiles []entity.CharacterProfile,
	artStyle string,
	artBible *entity.ArtBible,
	refs []entity.CharacterReference,
) string {
	sceneLimit := sceneBudget
	p := c.assembleImagePrompt(scene, sceneLimit, profiles, artStyle, artBible, refs)

	if over := utf8.RuneCountInString(p) - c.maxPromptChars; over > 0 {
		sceneLimit -= over
		if sceneLimit < 0 {
			sceneLimit = 0
		}
		p = c.assembleImagePrompt(scene, sceneLimit, profiles, artStyle, artBible, refs)
	}
	if utf8.RuneCountInString(p) > c.maxPromptChars {
		p = hardCut(p, c.maxPromptChars)
	}
	return p
}

func (c *Composer) assembleImagePrompt(
	scene string,
	sceneLimit int,
	profiles []entity.CharacterProfile,
	artStyle string,
	artBible *entity.ArtBible,
	refs []entity.CharacterReference,
) string {
	var parts []string

	// 1. 风格指令
	style := artStyle
	if style == "" {
		style = "cartoon"
	}
	parts = append(parts, fmt.Sprintf("A %s style children's book illustration showing", style))
	if artBible != nil {
		if d := TruncateAtWord(artBible.ColorPalette, shortFieldBudget); d != "" {
			parts = append(parts, fmt.Sprintf("Color palette: %s.", d))
		}
		if d := TruncateAtWord(artBible.LightingStyle, shortFieldBudget); d != "" {
			parts = append(parts, fmt.Sprintf("Lighting: %s.", d))
		}
		if d := TruncateAtWord(artBible.BrushTechnique, shortFieldBudget); d != "" {
			parts = append(parts, fmt.Sprintf("Technique: %s.", d))
		}
		if d := TruncateAtWord(artBible.StyleNotes, shortFieldBudget); d != "" {
			parts = append(parts, fmt.Sprintf("Style notes: %s.", d))
		}
	}

	// 2. 角色块（至多两个）
	var blocks []string
	for _, profile := range profiles {
		if len(blocks) >= maxCharacterBlocks {
			break
		}
		block := characterBlock(profile, hasReference(refs, profile.Name))
		if block != "" {
			blocks = append(blocks, block)
		}
	}
	if len(blocks) > 0 {
		parts = append(parts, strings.Join(blocks, " and "))
	}

	// 3. 场景摘要
	if s := TruncateAtWord(scene, sceneLimit); s != "" {
		parts = append(parts, fmt.Sprintf("in this scene: %s", s))
	}

	// 4. 一致性后缀
	if artBible != nil || len(refs) > 0 {
		parts = append(parts, consistencySuffixLong)
	} else {
		parts = append(parts, consistencySuffixShort)
	}

	return strings.Join(parts, " ")
}

// characterBlock 组装单个角色描述块
// 角色存在参考图时注入更强的一致性措辞
func characterBlock(p entity.CharacterProfile, hasRef bool) string {
	if p.Name == "" || p.Species == "" || p.PhysicalDescription == "" {
		return ""
	}

	desc := fmt.Sprintf("%s (a %s", p.Name, p.Species)
	if d := TruncateAtWord(p.PhysicalDescription, physicalDescBudget); d != "" {
		desc += ", " + d
	}
	if d := TruncateAtWord(p.DistinctiveFeatures, shortFieldBudget); d != "" {
		desc += ", " + d
	}
	if d := TruncateAtWord(p.Clothing, shortFieldBudget); d != "" {
		desc += ", " + d
	}
	if d := TruncateAtWord(p.PersonalityTraits, shortFieldBudget); d != "" {
		desc += ", " + d
	}
	desc += ")"
	if hasRef {
		desc += fmt.Sprintf(", %s must match the reference sheet exactly", p.Name)
	}
	return desc
}

func hasReference(refs []entity.CharacterReference, name string) bool {
	if name == "" {
		return false
	}
	for _, r := range refs {
		if r.CharacterName == name {
			return true
		}
	}
	return false
}

// ComposeConversationPrompt 组装会话内页面提示词
// 活跃会话已携带风格与角色上下文，这里只需场景和风格提醒，显著短于完整版
func (c *Composer) ComposeConversationPrompt(scene, artStyle string) string {
	style := artStyle
	if style == "" {
		style = "cartoon"
	}
	p := fmt.Sprintf(
		"Illustrate the next page of the story in the same established %s style: %s "+
			"Keep every character exactly consistent with the previous images.",
		style, TruncateAtWord(scene, sceneBudget),
	)
	if utf8.RuneCountInString(p) > c.maxPromptChars {
		p = hardCut(p, c.maxPromptChars)
	}
	return p
}

// TruncateAtWord 将文本截断到 limit 个字符且不切断单词
// 规则：在上限前的最后一个空格处截断；没有空格时在上限处硬截
func TruncateAtWord(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	cut := string([]rune(s)[:limit])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ")
}

// hardCut 终极兜底：硬切到上限并追加省略号
func hardCut(s string, limit int) string {
	r := []rune(s)
	if limit <= 3 {
		return string(r[:limit])
	}
	return string(r[:limit-3]) + "..."
}
