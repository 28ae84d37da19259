package parser

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/rs/zerolog"

	"resume-rag-go/internal/logger"
)

// CachedEmbedder 带向量缓存的TextEmbedder装饰器
// 查询侧的岗位描述分块经常重复，优先走缓存可以省掉大部分嵌入调用。
// 缓存读写失败只记日志，不影响主流程。
type CachedEmbedder struct {
	inner  TextEmbedder
	cache  VectorCache
	ttl    time.Duration
	model  string
	logger zerolog.Logger
}

// NewCachedEmbedder 创建带缓存的嵌入器
// model参与缓存键，避免不同模型的向量互相污染。
func NewCachedEmbedder(inner TextEmbedder, cache VectorCache, model string, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		model:  model,
		logger: logger.Logger.With().Str("component", "cached_embedder").Logger(),
	}
}

// cacheKey 计算文本的缓存键
func (c *CachedEmbedder) cacheKey(text string) string {
	sum := md5.Sum([]byte(c.model + "\x00" + text))
	return "embedding:" + hex.EncodeToString(sum[:])
}

// EmbedStrings 实现 TextEmbedder 接口
// 未命中的文本批量送往内部嵌入器，结果按原始顺序返回并回填缓存。
func (c *CachedEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}
	if c.cache == nil {
		return c.inner.EmbedStrings(ctx, texts, opts...)
	}

	result := make([][]float64, len(texts))
	var missTexts []string
	var missIndexes []int

	for i, text := range texts {
		vector, found, err := c.cache.GetEmbedding(ctx, c.cacheKey(text))
		if err != nil {
			c.logger.Warn().Err(err).Msg("读取向量缓存失败，回退到嵌入服务")
		}
		if found && len(vector) > 0 {
			result[i] = vector
			continue
		}
		missTexts = append(missTexts, text)
		missIndexes = append(missIndexes, i)
	}

	if len(missTexts) == 0 {
		c.logger.Debug().Int("texts", len(texts)).Msg("向量缓存全部命中")
		return result, nil
	}

	vectors, err := c.inner.EmbedStrings(ctx, missTexts, opts...)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("%w: 返回向量数量(%d)与文本数量(%d)不匹配",
			ErrEmbeddingUnavailable, len(vectors), len(missTexts))
	}

	for j, idx := range missIndexes {
		result[idx] = vectors[j]
		if err := c.cache.SetEmbedding(ctx, c.cacheKey(missTexts[j]), vectors[j], c.ttl); err != nil {
			c.logger.Warn().Err(err).Msg("写入向量缓存失败")
		}
	}

	c.logger.Debug().
		Int("texts", len(texts)).
		Int("hits", len(texts)-len(missTexts)).
		Int("misses", len(missTexts)).
		Msg("向量缓存部分命中")

	return result, nil
}
