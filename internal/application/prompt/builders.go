package prompt

import (
	"fmt"
	"strings"

	"storybook-ai-api/internal/domain/entity"
)

// BuildStoryPrompt 组装故事文本生成的用户提示词
func BuildStoryPrompt(metadata entity.StoryMetadata, theme, customPrompt string) string {
	var parts []string

	complexity := metadata.Complexity
	if complexity == "" {
		complexity = "simple"
	}
	language := metadata.Language
	if language == "" {
		language = "English"
	}
	ageGroup := metadata.AgeGroup
	if ageGroup == "" {
		ageGroup = "3-5"
	}

	parts = append(parts, fmt.Sprintf(
		"Write a %s children's story in %s for ages %s.",
		complexity, language, ageGroup,
	))
	parts = append(parts, fmt.Sprintf(
		"The story should have exactly %d pages, with each page containing about %d words appropriate for the age group.",
		metadata.NumPages, metadata.WordsPerPage,
	))

	if metadata.Genre != "" {
		parts = append(parts, fmt.Sprintf("Genre: %s.", metadata.Genre))
	}
	if theme != "" {
		parts = append(parts, fmt.Sprintf("Theme: %s.", theme))
	}
	if customPrompt != "" {
		parts = append(parts, fmt.Sprintf("Story idea: %s.", customPrompt))
	}
	if metadata.VocabularyDiversity != "" {
		parts = append(parts, fmt.Sprintf(
			"Use %s vocabulary appropriate for the %s age group.",
			metadata.VocabularyDiversity, ageGroup,
		))
	}

	parts = append(parts,
		"Write the story as continuous prose without page markers or headings. "+
			"Make the story engaging, age-appropriate, and complete within the specified number of pages.",
	)

	return strings.Join(parts, " ")
}

// BuildArtBiblePrompt 组装 art bible 参考图的生成提示词
func BuildArtBiblePrompt(artStyle, genre, storyTitle, additionalNotes string) string {
	var parts []string

	parts = append(parts, fmt.Sprintf(
		"Create an art bible reference illustration that establishes the visual style for a children's storybook, rendered in %s style.",
		artStyle,
	))
	if storyTitle != "" {
		parts = append(parts, fmt.Sprintf("The story is titled \"%s\".", storyTitle))
	}
	if genre != "" {
		parts = append(parts, fmt.Sprintf("The genre is %s.", genre))
	}
	parts = append(parts,
		"Show a sample environment scene that defines the color palette, lighting mood, and rendering technique "+
			"to be reused across every illustration in the book. No characters, no text, no panels.",
	)
	if additionalNotes != "" {
		parts = append(parts, fmt.Sprintf("Additional style notes: %s.", additionalNotes))
	}

	return strings.Join(parts, " ")
}

// NewArtBible 构建带生成提示词的 art bible
func NewArtBible(artStyle, genre, storyTitle, additionalNotes string) *entity.ArtBible {
	if artStyle == "" {
		artStyle = "cartoon"
	}
	return &entity.ArtBible{
		Prompt:     BuildArtBiblePrompt(artStyle, genre, storyTitle, additionalNotes),
		ArtStyle:   artStyle,
		StyleNotes: additionalNotes,
	}
}

// BuildCharacterReferencePrompt 组装角色参考图的生成提示词
func BuildCharacterReferencePrompt(p entity.CharacterProfile, artStyle string, includeTurnaround bool) string {
	var parts []string

	species := p.Species
	if species == "" {
		species = "character"
	}
	parts = append(parts, fmt.Sprintf(
		"Character reference sheet for %s, a %s, in %s style.",
		p.Name, species, artStyle,
	))
	if p.PhysicalDescription != "" {
		parts = append(parts, fmt.Sprintf("Appearance: %s.", TruncateAtWord(p.PhysicalDescription, physicalDescBudget)))
	}
	if p.DistinctiveFeatures != "" {
		parts = append(parts, fmt.Sprintf("Distinctive features: %s.", TruncateAtWord(p.DistinctiveFeatures, shortFieldBudget)))
	}
	if p.Clothing != "" {
		parts = append(parts, fmt.Sprintf("Wearing: %s.", TruncateAtWord(p.Clothing, shortFieldBudget)))
	}
	if includeTurnaround {
		parts = append(parts, "Show a full-body turnaround with front, side, and back views of the character.")
	} else {
		parts = append(parts, "Show a single full-body front view of the character.")
	}
	parts = append(parts, "Plain neutral background, no text, no other characters.")

	return strings.Join(parts, " ")
}

// NewCharacterReference 构建角色参考图记录，视觉字段从档案反规范化拷贝
func NewCharacterReference(p entity.CharacterProfile, artStyle string, includeTurnaround bool) entity.CharacterReference {
	if artStyle == "" {
		artStyle = "cartoon"
	}
	return entity.CharacterReference{
		CharacterName:       p.Name,
		Prompt:              BuildCharacterReferencePrompt(p, artStyle, includeTurnaround),
		Species:             p.Species,
		PhysicalDescription: p.PhysicalDescription,
		Clothing:            p.Clothing,
		DistinctiveFeatures: p.DistinctiveFeatures,
	}
}
