// Package entity 定义领域实体
package entity

import (
	"time"
)

// StoryMetadata 故事生成参数
type StoryMetadata struct {
	Title               string `json:"title,omitempty"`
	Language            string `json:"language,omitempty"`
	Complexity          string `json:"complexity,omitempty"`
	VocabularyDiversity string `json:"vocabulary_diversity,omitempty"`
	AgeGroup            string `json:"age_group,omitempty"`
	NumPages            int    `json:"num_pages"`
	WordsPerPage        int    `json:"words_per_page"`
	Genre               string `json:"genre,omitempty"`
	ArtStyle            string `json:"art_style,omitempty"`
	UserPrompt          string `json:"user_prompt,omitempty"`
}

// Page 故事页
// PageNumber 从 1 开始连续递增，缺图缺提示词不影响编号
type Page struct {
	PageNumber  int    `json:"page_number"`
	Text        string `json:"text"`
	ImageURL    string `json:"image_url,omitempty"`
	ImagePrompt string `json:"image_prompt,omitempty"`
}

// WordCount 页面词数（按空白切分）
func (p *Page) WordCount() int {
	count := 0
	inWord := false
	for _, r := range p.Text {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			inWord = false
			continue
		}
		if !inWord {
			count++
			inWord = true
		}
	}
	return count
}

// Story 故事聚合根
type Story struct {
	ID                  string               `json:"id"`
	Metadata            StoryMetadata        `json:"metadata"`
	Pages               []Page               `json:"pages"`
	Characters          []CharacterProfile   `json:"characters,omitempty"`
	ArtBible            *ArtBible            `json:"art_bible,omitempty"`
	CharacterReferences []CharacterReference `json:"character_references,omitempty"`
	// ImageSessionID 最近一次图像会话令牌，用于进程重启后恢复视觉上下文
	ImageSessionID string    `json:"image_session_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewStory 创建新故事
func NewStory(id string, metadata StoryMetadata, pages []Page) *Story {
	now := time.Now()
	return &Story{
		ID:        id,
		Metadata:  metadata,
		Pages:     pages,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// FindCharacter 按名称查找角色档案
func (s *Story) FindCharacter(name string) (*CharacterProfile, bool) {
	for i := range s.Characters {
		if s.Characters[i].Name == name {
			return &s.Characters[i], true
		}
	}
	return nil, false
}

// FindCharacterReference 按角色名查找参考图记录
func (s *Story) FindCharacterReference(name string) (*CharacterReference, bool) {
	for i := range s.CharacterReferences {
		if s.CharacterReferences[i].CharacterName == name {
			return &s.CharacterReferences[i], true
		}
	}
	return nil, false
}

// UpsertCharacterReference 写入或覆盖角色参考图记录
func (s *Story) UpsertCharacterReference(ref CharacterReference) {
	for i := range s.CharacterReferences {
		if s.CharacterReferences[i].CharacterName == ref.CharacterName {
			s.CharacterReferences[i] = ref
			s.UpdatedAt = time.Now()
			return
		}
	}
	s.CharacterReferences = append(s.CharacterReferences, ref)
	s.UpdatedAt = time.Now()
}

// SetPageImage 写入指定页的图像结果
func (s *Story) SetPageImage(pageNumber int, imageURL, imagePrompt string) bool {
	for i := range s.Pages {
		if s.Pages[i].PageNumber == pageNumber {
			s.Pages[i].ImageURL = imageURL
			s.Pages[i].ImagePrompt = imagePrompt
			s.UpdatedAt = time.Now()
			return true
		}
	}
	return false
}
