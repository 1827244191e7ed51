package dto

import (
	"time"

	"storybook-ai-api/internal/domain/entity"
)

// GenerateStoryRequest 故事生成请求
type GenerateStoryRequest struct {
	Title               string `json:"title"`
	Language            string `json:"language"`
	Complexity          string `json:"complexity"`
	VocabularyDiversity string `json:"vocabulary_diversity"`
	AgeGroup            string `json:"age_group"`
	NumPages            int    `json:"num_pages"`
	WordsPerPage        int    `json:"words_per_page"`
	Genre               string `json:"genre"`
	ArtStyle            string `json:"art_style"`
	Theme               string `json:"theme"`
	Prompt              string `json:"prompt"`

	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// ToStoryMetadata 转换为领域元数据
func (r *GenerateStoryRequest) ToStoryMetadata() entity.StoryMetadata {
	return entity.StoryMetadata{
		Title:               r.Title,
		Language:            r.Language,
		Complexity:          r.Complexity,
		VocabularyDiversity: r.VocabularyDiversity,
		AgeGroup:            r.AgeGroup,
		NumPages:            r.NumPages,
		WordsPerPage:        r.WordsPerPage,
		Genre:               r.Genre,
		ArtStyle:            r.ArtStyle,
		UserPrompt:          r.Prompt,
	}
}

// ExtractCharactersRequest 角色抽取请求
type ExtractCharactersRequest struct {
	StoryText string   `json:"story_text"`
	Pages     []string `json:"pages,omitempty"`

	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// PageResponse 单页响应
type PageResponse struct {
	PageNumber  int    `json:"page_number"`
	Text        string `json:"text"`
	WordCount   int    `json:"word_count"`
	ImageURL    string `json:"image_url,omitempty"`
	ImagePrompt string `json:"image_prompt,omitempty"`
}

// CharacterProfileResponse 角色档案响应
type CharacterProfileResponse struct {
	Name                string `json:"name"`
	Species             string `json:"species"`
	PhysicalDescription string `json:"physical_description"`
	Clothing            string `json:"clothing,omitempty"`
	DistinctiveFeatures string `json:"distinctive_features,omitempty"`
	PersonalityTraits   string `json:"personality_traits,omitempty"`
}

// ArtBibleResponse art bible 响应
type ArtBibleResponse struct {
	Prompt   string `json:"prompt"`
	ImageURL string `json:"image_url,omitempty"`
	ArtStyle string `json:"art_style,omitempty"`
}

// CharacterReferenceResponse 角色参考图响应
type CharacterReferenceResponse struct {
	CharacterName string `json:"character_name"`
	Prompt        string `json:"prompt"`
	ImageURL      string `json:"image_url,omitempty"`
}

// StoryResponse 故事响应
type StoryResponse struct {
	ID                  string                       `json:"id"`
	Title               string                       `json:"title"`
	Language            string                       `json:"language,omitempty"`
	AgeGroup            string                       `json:"age_group,omitempty"`
	Genre               string                       `json:"genre,omitempty"`
	ArtStyle            string                       `json:"art_style,omitempty"`
	NumPages            int                          `json:"num_pages"`
	WordsPerPage        int                          `json:"words_per_page"`
	Pages               []PageResponse               `json:"pages"`
	Characters          []CharacterProfileResponse   `json:"characters,omitempty"`
	ArtBible            *ArtBibleResponse            `json:"art_bible,omitempty"`
	CharacterReferences []CharacterReferenceResponse `json:"character_references,omitempty"`
	ImageSessionID      string                       `json:"image_session_id,omitempty"`
	CreatedAt           time.Time                    `json:"created_at"`
	UpdatedAt           time.Time                    `json:"updated_at"`
}

// ToStoryResponse 转换故事实体
func ToStoryResponse(st *entity.Story) *StoryResponse {
	if st == nil {
		return nil
	}
	resp := &StoryResponse{
		ID:             st.ID,
		Title:          st.Metadata.Title,
		Language:       st.Metadata.Language,
		AgeGroup:       st.Metadata.AgeGroup,
		Genre:          st.Metadata.Genre,
		ArtStyle:       st.Metadata.ArtStyle,
		NumPages:       st.Metadata.NumPages,
		WordsPerPage:   st.Metadata.WordsPerPage,
		ImageSessionID: st.ImageSessionID,
		CreatedAt:      st.CreatedAt,
		UpdatedAt:      st.UpdatedAt,
	}
	resp.Pages = make([]PageResponse, 0, len(st.Pages))
	for _, p := range st.Pages {
		resp.Pages = append(resp.Pages, PageResponse{
			PageNumber:  p.PageNumber,
			Text:        p.Text,
			WordCount:   p.WordCount(),
			ImageURL:    p.ImageURL,
			ImagePrompt: p.ImagePrompt,
		})
	}
	for _, c := range st.Characters {
		resp.Characters = append(resp.Characters, ToCharacterProfileResponse(c))
	}
	if st.ArtBible != nil {
		resp.ArtBible = &ArtBibleResponse{
			Prompt:   st.ArtBible.Prompt,
			ImageURL: st.ArtBible.ImageURL,
			ArtStyle: st.ArtBible.ArtStyle,
		}
	}
	for _, ref := range st.CharacterReferences {
		resp.CharacterReferences = append(resp.CharacterReferences, CharacterReferenceResponse{
			CharacterName: ref.CharacterName,
			Prompt:        ref.Prompt,
			ImageURL:      ref.ImageURL,
		})
	}
	return resp
}

// ToCharacterProfileResponse 转换角色档案
func ToCharacterProfileResponse(p entity.CharacterProfile) CharacterProfileResponse {
	return CharacterProfileResponse{
		Name:                p.Name,
		Species:             p.Species,
		PhysicalDescription: p.PhysicalDescription,
		Clothing:            p.Clothing,
		DistinctiveFeatures: p.DistinctiveFeatures,
		PersonalityTraits:   p.PersonalityTraits,
	}
}

// CharacterListResponse 角色列表响应
type CharacterListResponse struct {
	Characters []CharacterProfileResponse `json:"characters"`
}

// ToCharacterListResponse 转换角色档案列表
func ToCharacterListResponse(profiles []entity.CharacterProfile) CharacterListResponse {
	out := CharacterListResponse{Characters: make([]CharacterProfileResponse, 0, len(profiles))}
	for _, p := range profiles {
		out.Characters = append(out.Characters, ToCharacterProfileResponse(p))
	}
	return out
}
