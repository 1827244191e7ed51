package model

// StoryTextInput 故事正文生成链输入
type StoryTextInput struct {
	Provider    string
	Model       string
	Temperature *float32
	MaxTokens   *int

	// StoryRequest 已组装好的用户请求全文（标题、题材、页数、每页词数等）
	StoryRequest string
}

// SceneSummaryInput 场景摘要链输入
type SceneSummaryInput struct {
	Provider    string
	Model       string
	Temperature *float32
	MaxTokens   *int

	SceneText string
	// CharactersBlock 出场角色的名字与外观速写，每行一个
	CharactersBlock string
}

// CharacterExtractInput 角色名单抽取链输入
type CharacterExtractInput struct {
	Provider    string
	Model       string
	Temperature *float32
	MaxTokens   *int

	StoryText string
}

// CharacterProfileInput 单角色档案生成链输入
type CharacterProfileInput struct {
	Provider    string
	Model       string
	Temperature *float32
	MaxTokens   *int

	StoryText     string
	CharacterName string
	// Description 抽取阶段给出的角色一句话描述，可为空
	Description string
}
