package node

import "strings"

// 提供商不支持结构化输出时，错误文本里常见的标记。
// openai 兼容层的措辞各不相同，这里只做宽松匹配。
var structuredOutputErrorMarkers = [][]string{
	{"response_format"},
	{"json_schema"},
	{"response_schema"},
	{"failed to parse"},
	{"unknown parameter", "response"},
	{"invalid", "response"},
}

// IsResponseFormatUnsupportedError 判断错误是否因为模型不支持
// 结构化输出（json_schema / response_format）。角色抽取链据此
// 回退到纯提示词模式重试一次。
func IsResponseFormatUnsupportedError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, markers := range structuredOutputErrorMarkers {
		matched := true
		for _, marker := range markers {
			if !strings.Contains(msg, marker) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}
