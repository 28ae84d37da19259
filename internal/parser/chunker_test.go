package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 生成n个可区分的词，便于校验分块边界
func makeWords(n int) []string {
	words := make([]string, n)
	for i := 0; i < n; i++ {
		words[i] = fmt.Sprintf("w%03d", i)
	}
	return words
}

func TestWordChunkerBasicSplit(t *testing.T) {
	chunker := NewWordChunker(10)
	words := makeWords(25)
	chunks := chunker.Chunk(strings.Join(words, " "))

	require.Len(t, chunks, 3, "25个词按10切分应得到3块")
	assert.Equal(t, strings.Join(words[0:10], " "), chunks[0])
	assert.Equal(t, strings.Join(words[10:20], " "), chunks[1])
	assert.Equal(t, strings.Join(words[20:25], " "), chunks[2], "最后一块允许不足size个词")
}

func TestWordChunkerChunkCount(t *testing.T) {
	// 块数 = ceil(词数/size)
	cases := []struct {
		wordCount int
		size      int
		expected  int
	}{
		{1, 500, 1},
		{500, 500, 1},
		{501, 500, 2},
		{1000, 500, 2},
		{1001, 500, 3},
		{299, 300, 1},
		{300, 300, 1},
		{301, 300, 2},
	}

	for _, tc := range cases {
		chunker := NewWordChunker(tc.size)
		text := strings.Join(makeWords(tc.wordCount), " ")
		chunks := chunker.Chunk(text)
		assert.Len(t, chunks, tc.expected, "词数=%d size=%d", tc.wordCount, tc.size)
	}
}

func TestWordChunkerCoverage(t *testing.T) {
	// 所有块重新连接后应覆盖全部词，顺序不变
	chunker := NewWordChunker(7)
	words := makeWords(40)
	chunks := chunker.Chunk(strings.Join(words, " "))

	rejoined := strings.Fields(strings.Join(chunks, " "))
	assert.Equal(t, words, rejoined, "分块不应丢词或改变顺序")
}

func TestWordChunkerIdempotent(t *testing.T) {
	// 块内空白已归一化为单个空格，对块再次分块应原样返回
	chunker := NewWordChunker(10)
	text := "  alpha\tbeta\n\ngamma   delta epsilon  "
	chunks := chunker.Chunk(text)
	require.Len(t, chunks, 1)
	assert.Equal(t, "alpha beta gamma delta epsilon", chunks[0])

	again := chunker.Chunk(chunks[0])
	require.Len(t, again, 1)
	assert.Equal(t, chunks[0], again[0], "重复分块应是幂等的")
}

func TestWordChunkerEmptyInput(t *testing.T) {
	chunker := NewWordChunker(10)
	assert.Empty(t, chunker.Chunk(""), "空文本应返回空切片")
	assert.Empty(t, chunker.Chunk("   \n\t  "), "纯空白文本应返回空切片")
}

func TestWordChunkerDefaultSize(t *testing.T) {
	assert.Equal(t, DefaultIngestChunkSize, NewWordChunker(0).Size())
	assert.Equal(t, DefaultIngestChunkSize, NewWordChunker(-1).Size())
	assert.Equal(t, 300, NewWordChunker(300).Size())
}

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeWhitespace("a\n b\t\tc "))
	assert.Equal(t, "", NormalizeWhitespace("  \n "))
	assert.Equal(t, "单个 词", NormalizeWhitespace("单个\n词"))
}
