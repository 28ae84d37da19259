/*
此文件实现了基于词数的文本分块功能。
简历全文与岗位描述都通过它切分，保证入库和查询两侧使用同一套分块语义。
*/

package parser

import (
	"strings"
)

const (
	// DefaultIngestChunkSize 简历入库时的默认分块大小（词数）
	DefaultIngestChunkSize = 500

	// DefaultQueryChunkSize 岗位描述查询时的默认分块大小（词数）
	DefaultQueryChunkSize = 300
)

// WordChunker 按词数切分文本的分块器
// 分词按任意空白切分，块内以单个空格重新连接，因此对同一文本重复分块是幂等的。
type WordChunker struct {
	size int
}

// NewWordChunker 创建指定块大小的分块器，size非正时退回默认入库块大小
func NewWordChunker(size int) *WordChunker {
	if size <= 0 {
		size = DefaultIngestChunkSize
	}
	return &WordChunker{size: size}
}

// Size 返回分块大小（词数）
func (c *WordChunker) Size() int {
	return c.size
}

// Chunk 将文本切分为连续的词块
// 空文本或纯空白文本返回空切片；最后一块可以少于size个词。
func (c *WordChunker) Chunk(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	chunks := make([]string, 0, (len(words)+c.size-1)/c.size)
	for start := 0; start < len(words); start += c.size {
		end := start + c.size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}

// NormalizeWhitespace 将连续空白（包括换行）折叠为单个空格并去除首尾空白
// 岗位描述在分块前先做一次归一化，避免换行影响词边界。
func NormalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
