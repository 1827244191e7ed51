package story

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginateOneSentencePerPage(t *testing.T) {
	pages, err := Paginate("Sir Cedric ran. He found a sword. He won the day.", 3, 10)
	require.NoError(t, err)
	require.Len(t, pages, 3)

	assert.Equal(t, "Sir Cedric ran.", pages[0].Text)
	assert.Equal(t, "He found a sword.", pages[1].Text)
	assert.Equal(t, "He won the day.", pages[2].Text)
	for i, p := range pages {
		assert.Equal(t, i+1, p.PageNumber)
	}
}

func TestPaginateEmptyText(t *testing.T) {
	_, err := Paginate("   ", 3, 10)
	require.Error(t, err)

	_, err = Paginate("", 1, 10)
	require.Error(t, err)
}

func TestPaginateStripsPageMarkers(t *testing.T) {
	pages, err := Paginate("Page 1: The cat slept. Página 2: The dog barked.", 2, 10)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "The cat slept.", pages[0].Text)
	assert.Equal(t, "The dog barked.", pages[1].Text)
}

func TestPaginateNeverSplitsSentences(t *testing.T) {
	text := "The dragon woke up hungry and grumpy in its cave. It flew over the green valley looking for breakfast. " +
		"A small girl waved at it from her garden. The dragon landed softly next to her roses. " +
		"They shared warm bread and honey together. From that day on they were best friends."
	pages, err := Paginate(text, 3, 20)
	require.NoError(t, err)
	require.True(t, len(pages) >= 1 && len(pages) <= 3)

	// 拼接所有页应还原完整的句子序列
	var joined []string
	for _, p := range pages {
		joined = append(joined, p.Text)
		// 每页以句子边界结尾
		assert.True(t, strings.HasSuffix(strings.TrimSpace(p.Text), "."), "page %d must end at a sentence boundary", p.PageNumber)
	}
	assert.Equal(t, strings.Fields(text), strings.Fields(strings.Join(joined, " ")))
}

func TestPaginateShortTextFewerPages(t *testing.T) {
	pages, err := Paginate("One sentence only.", 5, 10)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].PageNumber)
}

func TestPaginateNoSentenceBoundaries(t *testing.T) {
	// 无 .!? 边界时回退到段落切分
	pages, err := Paginate("first paragraph\n\nsecond paragraph\n\nthird paragraph", 3, 5)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, "first paragraph", pages[0].Text)

	// 单行无边界时整体作为一页
	pages, err = Paginate("just a fragment without punctuation", 3, 5)
	require.NoError(t, err)
	require.Len(t, pages, 1)
}

func TestPaginatePageNumbersContiguous(t *testing.T) {
	text := strings.Repeat("A short sentence here. ", 40)
	pages, err := Paginate(text, 8, 12)
	require.NoError(t, err)
	require.True(t, len(pages) <= 8)
	for i, p := range pages {
		assert.Equal(t, i+1, p.PageNumber)
		assert.NotEmpty(t, p.Text)
	}
}

func TestPaginateDerivesPageCountFromWordsPerPage(t *testing.T) {
	text := strings.Repeat("Five words in this sentence. ", 10)
	pages, err := Paginate(text, 0, 25)
	require.NoError(t, err)
	assert.True(t, len(pages) > 1)
}
