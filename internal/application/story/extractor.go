package story

import (
	"context"
	"encoding/json"
	"strings"
	"unicode"

	"storybook-ai-api/internal/domain/entity"
	wfchain "storybook-ai-api/internal/workflow/chain"
	wfmodel "storybook-ai-api/internal/workflow/model"
	"storybook-ai-api/internal/workflow/node"
	"storybook-ai-api/pkg/logger"
)

// 单个故事最多建档的角色数，再多的配角交给场景摘要顺带描述
const maxExtractedCharacters = 5

// Extractor 从故事正文抽取角色并为每个角色生成视觉档案
type Extractor struct {
	extractChain *wfchain.CharacterExtractChain
	profileChain *wfchain.CharacterProfileChain
}

func NewExtractor(extractChain *wfchain.CharacterExtractChain, profileChain *wfchain.CharacterProfileChain) *Extractor {
	return &Extractor{extractChain: extractChain, profileChain: profileChain}
}

// extractedCharacter 容错解码：不同模型对字段名的叫法不一致
type extractedCharacter struct {
	Name                string `json:"name"`
	CharacterName       string `json:"character_name"`
	Description         string `json:"description"`
	PhysicalDescription string `json:"physical_description"`
}

func (c extractedCharacter) name() string {
	if n := strings.TrimSpace(c.Name); n != "" {
		return n
	}
	return strings.TrimSpace(c.CharacterName)
}

func (c extractedCharacter) description() string {
	if d := strings.TrimSpace(c.Description); d != "" {
		return d
	}
	return strings.TrimSpace(c.PhysicalDescription)
}

type extractEnvelope struct {
	Characters []extractedCharacter `json:"characters"`
}

type profilePayload struct {
	Name                string `json:"name"`
	Species             string `json:"species"`
	PhysicalDescription string `json:"physical_description"`
	Clothing            string `json:"clothing"`
	DistinctiveFeatures string `json:"distinctive_features"`
	PersonalityTraits   string `json:"personality_traits"`
}

// ExtractCharacters 抽取角色名单并逐个建档。
// 解码失败按降级处理：返回空名单而不是让整条流水线失败；
// 单个角色建档失败跳过该角色，不影响其他角色。
func (e *Extractor) ExtractCharacters(ctx context.Context, storyText, provider, model string) ([]entity.CharacterProfile, error) {
	storyText = strings.TrimSpace(storyText)
	if storyText == "" {
		return nil, nil
	}

	msg, err := e.extractChain.Invoke(ctx, &wfmodel.CharacterExtractInput{
		Provider:  provider,
		Model:     model,
		StoryText: storyText,
	})
	if err != nil {
		logger.Warn(ctx, "character extraction failed, continuing without characters", "error", err.Error())
		return nil, nil
	}

	candidates := decodeExtractedCharacters(msg.Content)
	if len(candidates) == 0 {
		logger.Warn(ctx, "character extraction returned no usable characters")
		return nil, nil
	}

	// 先按名字去重，再截断到上限
	deduped := make([]extractedCharacter, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, cand := range candidates {
		name := cand.name()
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		deduped = append(deduped, cand)
	}
	if len(deduped) > maxExtractedCharacters {
		deduped = deduped[:maxExtractedCharacters]
	}

	profiles := make([]entity.CharacterProfile, 0, len(deduped))
	for _, cand := range deduped {
		profile, err := e.buildProfile(ctx, storyText, cand.name(), cand.description(), provider, model)
		if err != nil {
			logger.Warn(ctx, "character profile generation failed, skipping character",
				"character", cand.name(), "error", err.Error())
			continue
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

func (e *Extractor) buildProfile(ctx context.Context, storyText, name, description, provider, model string) (entity.CharacterProfile, error) {
	msg, err := e.profileChain.Invoke(ctx, &wfmodel.CharacterProfileInput{
		Provider:      provider,
		Model:         model,
		StoryText:     storyText,
		CharacterName: name,
		Description:   description,
	})
	if err != nil {
		return entity.CharacterProfile{}, err
	}

	var payload profilePayload
	raw := node.ExtractJSONObject(msg.Content)
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		// 档案解码失败退回抽取阶段的描述，角色仍然可用
		logger.Warn(ctx, "character profile decode failed, using extraction description",
			"character", name, "error", err.Error())
		return entity.CharacterProfile{
			Name:                name,
			Species:             NormalizeSpecies(""),
			PhysicalDescription: description,
		}, nil
	}

	profile := entity.CharacterProfile{
		Name:                name,
		Species:             NormalizeSpecies(payload.Species),
		PhysicalDescription: strings.TrimSpace(payload.PhysicalDescription),
		Clothing:            strings.TrimSpace(payload.Clothing),
		DistinctiveFeatures: strings.TrimSpace(payload.DistinctiveFeatures),
		PersonalityTraits:   strings.TrimSpace(payload.PersonalityTraits),
	}
	if profile.PhysicalDescription == "" {
		profile.PhysicalDescription = description
	}
	return profile, nil
}

// decodeExtractedCharacters 兼容两种输出形态：
// 带 "characters" 键的对象，或裸的角色数组
func decodeExtractedCharacters(content string) []extractedCharacter {
	raw := node.ExtractJSONObject(content)
	if raw == "" {
		return nil
	}

	var envelope extractEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err == nil && len(envelope.Characters) > 0 {
		return envelope.Characters
	}

	var list []extractedCharacter
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return list
	}
	return nil
}

// 泛指词不是具体物种，一律回退为 Human
var genericSpecies = map[string]bool{
	"creature":  true,
	"animal":    true,
	"being":     true,
	"character": true,
	"unknown":   true,
}

// NormalizeSpecies 把模型给出的物种词归一化：去空白、剔除泛指词、首字母大写
func NormalizeSpecies(species string) string {
	s := strings.ToLower(strings.TrimSpace(species))
	if s == "" || genericSpecies[s] {
		return "Human"
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
