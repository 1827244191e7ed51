package story

import (
	"context"
	"fmt"
	"strings"

	"storybook-ai-api/internal/domain/entity"
	wfchain "storybook-ai-api/internal/workflow/chain"
	wfmodel "storybook-ai-api/internal/workflow/model"
)

// SceneSummaryAdapter 把场景摘要链适配成提示词层需要的生成器接口
type SceneSummaryAdapter struct {
	chain    *wfchain.SceneSummaryChain
	provider string
	model    string
}

func NewSceneSummaryAdapter(chain *wfchain.SceneSummaryChain, provider, model string) *SceneSummaryAdapter {
	return &SceneSummaryAdapter{chain: chain, provider: provider, model: model}
}

func (a *SceneSummaryAdapter) SummarizeScene(ctx context.Context, sceneText string, profiles []entity.CharacterProfile) (string, error) {
	msg, err := a.chain.Invoke(ctx, &wfmodel.SceneSummaryInput{
		Provider:        a.provider,
		Model:           a.model,
		SceneText:       sceneText,
		CharactersBlock: charactersBlock(profiles),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(msg.Content), nil
}

func charactersBlock(profiles []entity.CharacterProfile) string {
	if len(profiles) == 0 {
		return ""
	}
	lines := make([]string, 0, len(profiles))
	for _, p := range profiles {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		line := fmt.Sprintf("- %s (%s)", p.Name, p.Species)
		if d := strings.TrimSpace(p.PhysicalDescription); d != "" {
			line += ": " + d
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
