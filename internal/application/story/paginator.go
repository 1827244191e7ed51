package story

import (
	"regexp"
	"strings"

	"storybook-ai-api/internal/domain/entity"
	"storybook-ai-api/pkg/errors"
)

// pageMarkerRe 匹配生成器违反指令输出的 "Page N:" / "Página N:" 标记
var pageMarkerRe = regexp.MustCompile(`(?i)\b(?:page|p[áa]gina)\s*\d+\s*[:：]\s*`)

// Paginate 将连续叙事文本按句子边界切分为页
//
// 切分流程：
//  1. 规范化文本，剥离生成器可能残留的页码标记；
//  2. 按 . ! ? 切句；没有句子边界时依次回退到段落、行、整段文本，
//     保证非空输入永远至少产出一页；
//  3. 贪心填页：当前页词数达到理想值且后续还有页可填时收页，
//     超过 1.5 倍理想值时强制收页（防止单页过大）；
//  4. 每次收页后按剩余词数和剩余页槽重算理想值，
//     让长短句的不均匀向后摊平而不是全部压到最后一页；
//  5. 最后一页吸收所有剩余句子。
//
// 句子永远不会被从中间切开。文本太短时返回少于 targetPageCount 页，
// 这是可接受的退化结果而非错误。
func Paginate(text string, targetPageCount, targetWordsPerPage int) ([]entity.Page, error) {
	normalized := strings.TrimSpace(pageMarkerRe.ReplaceAllString(text, ""))
	if normalized == "" {
		return nil, errors.New(errors.CodeValidationFailed, "story text is empty")
	}

	if targetPageCount < 1 {
		// 未指定页数时按目标每页词数推一个
		if targetWordsPerPage > 0 {
			targetPageCount = (countWords(normalized) + targetWordsPerPage - 1) / targetWordsPerPage
		}
		if targetPageCount < 1 {
			targetPageCount = 1
		}
	}

	sentences := splitSentences(normalized)

	totalWords := 0
	sentenceWords := make([]int, len(sentences))
	for i, s := range sentences {
		sentenceWords[i] = countWords(s)
		totalWords += sentenceWords[i]
	}

	ideal := idealWords(totalWords, targetPageCount)

	var pages []entity.Page
	var current []string
	currentWords := 0
	remainingWords := totalWords

	closePage := func() {
		pages = append(pages, entity.Page{
			PageNumber: len(pages) + 1,
			Text:       strings.Join(current, " "),
		})
		current = nil
		currentWords = 0
	}

	for i, s := range sentences {
		current = append(current, s)
		currentWords += sentenceWords[i]
		remainingWords -= sentenceWords[i]

		remainingSlots := targetPageCount - len(pages) - 1
		if remainingSlots <= 0 {
			// 最后一页吸收剩余全部句子
			continue
		}
		hasMore := i < len(sentences)-1

		reachedIdeal := currentWords >= ideal && hasMore
		overflow := currentWords > ideal+ideal/2
		if reachedIdeal || overflow {
			closePage()
			// 按剩余内容和剩余页槽重算理想值
			ideal = idealWords(remainingWords, remainingSlots)
		}
	}
	if len(current) > 0 {
		closePage()
	}

	return pages, nil
}

// idealWords 计算每页理想词数（向下取整，至少 1）
func idealWords(totalWords, pageCount int) int {
	if pageCount < 1 {
		pageCount = 1
	}
	ideal := totalWords / pageCount
	if ideal < 1 {
		ideal = 1
	}
	return ideal
}

// splitSentences 按句子边界切分文本
// 回退链：句子 -> 段落 -> 行 -> 整段文本
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(b.String()); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	if strings.ContainsAny(text, ".!?") {
		return sentences
	}

	// 没有句子边界：按段落切
	if parts := splitNonEmpty(text, "\n\n"); len(parts) > 1 {
		return parts
	}
	// 再按行切
	if parts := splitNonEmpty(text, "\n"); len(parts) > 1 {
		return parts
	}
	// 整段文本作为单一句子
	return []string{text}
}

func splitNonEmpty(text, sep string) []string {
	var out []string
	for _, p := range strings.Split(text, sep) {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// countWords 按空白统计词数
func countWords(s string) int {
	return len(strings.Fields(s))
}
