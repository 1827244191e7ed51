package entity

// ArtBible 全局风格基准
// 每个故事至多一份，所有页面插图都以它为风格锚点
type ArtBible struct {
	Prompt         string `json:"prompt"`
	ImageURL       string `json:"image_url,omitempty"`
	ArtStyle       string `json:"art_style"`
	StyleNotes     string `json:"style_notes,omitempty"`
	ColorPalette   string `json:"color_palette,omitempty"`
	LightingStyle  string `json:"lighting_style,omitempty"`
	BrushTechnique string `json:"brush_technique,omitempty"`
}

// CharacterReference 角色参考图记录
// CharacterName 必须对应故事中的某个角色档案；
// 视觉字段是档案的反规范化拷贝，生成提示词时无需回查档案
type CharacterReference struct {
	CharacterName       string `json:"character_name"`
	Prompt              string `json:"prompt"`
	ImageURL            string `json:"image_url,omitempty"`
	Species             string `json:"species,omitempty"`
	PhysicalDescription string `json:"physical_description,omitempty"`
	Clothing            string `json:"clothing,omitempty"`
	DistinctiveFeatures string `json:"distinctive_features,omitempty"`
}
