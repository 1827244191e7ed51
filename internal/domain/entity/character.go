package entity

// CharacterProfile 角色视觉档案
// 创建后不可变，作为所有页面插图的一致性依据
type CharacterProfile struct {
	Name                string `json:"name"`
	Species             string `json:"species"`
	PhysicalDescription string `json:"physical_description"`
	Clothing            string `json:"clothing,omitempty"`
	DistinctiveFeatures string `json:"distinctive_features,omitempty"`
	PersonalityTraits   string `json:"personality_traits,omitempty"`
}

// IsValid 档案是否满足最低要求
func (c *CharacterProfile) IsValid() bool {
	return c.Name != "" && c.PhysicalDescription != ""
}
