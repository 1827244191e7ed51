package node

import "unicode/utf8"

// TruncateByRunes 按 rune 数截断，保证不切断多字节字符。
// 场景摘要链用它限制送入模型的正文长度。
func TruncateByRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}
