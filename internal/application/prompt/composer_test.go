package prompt

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storybook-ai-api/internal/domain/entity"
)

func sampleProfiles() []entity.CharacterProfile {
	return []entity.CharacterProfile{
		{
			Name:                "Luna",
			Species:             "Fox",
			PhysicalDescription: "small orange fox with a fluffy white-tipped tail and bright green eyes",
			Clothing:            "a tiny blue scarf",
			DistinctiveFeatures: "a star-shaped patch of white fur on her forehead",
			PersonalityTraits:   "curious and always smiling",
		},
		{
			Name:                "Bram",
			Species:             "Bear",
			PhysicalDescription: "large brown bear with round ears",
		},
		{
			Name:                "Pip",
			Species:             "Mouse",
			PhysicalDescription: "tiny grey mouse",
		},
	}
}

func TestComposeImagePromptWithinBudget(t *testing.T) {
	c := NewComposer(1500)
	long := strings.Repeat("The forest was glowing with a thousand tiny lanterns. ", 60)

	p := c.ComposeImagePrompt(long, sampleProfiles(), "watercolor", &entity.ArtBible{
		ArtStyle:       "watercolor",
		ColorPalette:   strings.Repeat("warm amber and deep teal ", 10),
		LightingStyle:  "soft golden hour light",
		BrushTechnique: "loose wet-on-wet washes",
		StyleNotes:     "storybook whimsy",
	}, []entity.CharacterReference{{CharacterName: "Luna", Prompt: "ref"}})

	assert.LessOrEqual(t, utf8.RuneCountInString(p), 1500)
	assert.Contains(t, p, "watercolor")
	assert.Contains(t, p, "Luna")
}

func TestComposeImagePromptLimitsCharacterBlocks(t *testing.T) {
	c := NewComposer(1500)
	p := c.ComposeImagePrompt("A quiet meadow.", sampleProfiles(), "cartoon", nil, nil)

	assert.Contains(t, p, "Luna")
	assert.Contains(t, p, "Bram")
	// 第三个角色不进入提示词
	assert.NotContains(t, p, "Pip")
}

func TestComposeImagePromptReferenceSheetLanguage(t *testing.T) {
	c := NewComposer(1500)
	profiles := sampleProfiles()[:1]

	withRef := c.ComposeImagePrompt("A meadow.", profiles, "cartoon", nil,
		[]entity.CharacterReference{{CharacterName: "Luna", Prompt: "ref"}})
	withoutRef := c.ComposeImagePrompt("A meadow.", profiles, "cartoon", nil, nil)

	assert.Contains(t, withRef, "must match the reference sheet exactly")
	assert.NotContains(t, withoutRef, "must match the reference sheet exactly")
}

func TestComposeImagePromptSuffixVariants(t *testing.T) {
	c := NewComposer(1500)
	profiles := sampleProfiles()[:1]

	plain := c.ComposeImagePrompt("A meadow.", profiles, "cartoon", nil, nil)
	rich := c.ComposeImagePrompt("A meadow.", profiles, "cartoon", &entity.ArtBible{ArtStyle: "cartoon"}, nil)

	assert.Contains(t, plain, consistencySuffixShort)
	assert.NotContains(t, plain, "reference sheets")
	assert.Contains(t, rich, "established art direction")
}

func TestComposeImagePromptDeterministic(t *testing.T) {
	c := NewComposer(1500)
	a := c.ComposeImagePrompt("A meadow.", sampleProfiles(), "cartoon", nil, nil)
	b := c.ComposeImagePrompt("A meadow.", sampleProfiles(), "cartoon", nil, nil)
	assert.Equal(t, a, b)
}

func TestComposeImagePromptTinyBudgetHardCut(t *testing.T) {
	c := NewComposer(120)
	long := strings.Repeat("word ", 200)
	p := c.ComposeImagePrompt(long, sampleProfiles(), "cartoon", nil, nil)

	require.LessOrEqual(t, utf8.RuneCountInString(p), 120)
	assert.True(t, strings.HasSuffix(p, "..."))
}

func TestComposeConversationPromptShorter(t *testing.T) {
	c := NewComposer(1500)
	scene := "Luna and Bram discover a glowing cave behind the waterfall."

	full := c.ComposeImagePrompt(scene, sampleProfiles(), "watercolor", &entity.ArtBible{ArtStyle: "watercolor"}, nil)
	conv := c.ComposeConversationPrompt(scene, "watercolor")

	assert.Less(t, utf8.RuneCountInString(conv), utf8.RuneCountInString(full))
	assert.Contains(t, conv, scene)
	// 会话版不再重复角色描述
	assert.NotContains(t, conv, "Luna (a Fox")
}

func TestTruncateAtWordNeverCutsMidWord(t *testing.T) {
	s := "the quick brown fox jumps over the lazy dog"
	got := TruncateAtWord(s, 20)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 20)
	// 截断结果必须是原文的完整词前缀
	assert.True(t, strings.HasPrefix(s, got))
	assert.True(t, got == "" || strings.HasPrefix(s[len(got):], " "), "cut must land on a word boundary: %q", got)
}

func TestTruncateAtWordEdgeCases(t *testing.T) {
	assert.Equal(t, "", TruncateAtWord("anything", 0))
	assert.Equal(t, "short", TruncateAtWord("short", 10))
	// 没有空格时在上限处硬截
	assert.Equal(t, "abcde", TruncateAtWord("abcdefghij", 5))
}

func TestBuildStoryPrompt(t *testing.T) {
	md := entity.StoryMetadata{
		Language:            "Spanish",
		Complexity:          "simple",
		AgeGroup:            "3-5",
		NumPages:            4,
		WordsPerPage:        30,
		Genre:               "adventure",
		VocabularyDiversity: "varied",
	}
	p := BuildStoryPrompt(md, "friendship", "a fox who finds a lantern")

	assert.Contains(t, p, "Spanish")
	assert.Contains(t, p, "exactly 4 pages")
	assert.Contains(t, p, "Genre: adventure.")
	assert.Contains(t, p, "Theme: friendship.")
	assert.Contains(t, p, "Story idea: a fox who finds a lantern.")
	assert.Contains(t, p, "without page markers")
}

func TestNewCharacterReference(t *testing.T) {
	ref := NewCharacterReference(sampleProfiles()[0], "watercolor", true)

	assert.Equal(t, "Luna", ref.CharacterName)
	assert.Contains(t, ref.Prompt, "turnaround")
	assert.Contains(t, ref.Prompt, "watercolor")
	assert.Equal(t, "Fox", ref.Species)
	assert.Equal(t, "a tiny blue scarf", ref.Clothing)

	single := NewCharacterReference(sampleProfiles()[0], "watercolor", false)
	assert.NotContains(t, single.Prompt, "turnaround")
}

func TestNewArtBible(t *testing.T) {
	ab := NewArtBible("watercolor", "adventure", "The Lantern Forest", "muted tones")

	assert.Equal(t, "watercolor", ab.ArtStyle)
	assert.Equal(t, "muted tones", ab.StyleNotes)
	assert.Contains(t, ab.Prompt, "The Lantern Forest")
	assert.Contains(t, ab.Prompt, "adventure")
	assert.Empty(t, ab.ImageURL)
}
