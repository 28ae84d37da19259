/*
此文件定义了文本向量化的抽象接口与向量缓存接口。
使用自定义接口而非依赖eino-ext，便于集成任何向量模型。
*/

package parser

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/components/embedding"
)

// ErrEmbeddingUnavailable 嵌入服务不可用
// 网络失败、非200响应、响应体解析失败都归为此类，调用方据此整体失败或按分块降级。
var ErrEmbeddingUnavailable = errors.New("嵌入服务不可用")

// TextEmbedder 文本向量化接口
// 签名与 cloudwego/eino 的 embedding.Embedder 保持一致，实现可直接挂入eino编排。
type TextEmbedder interface {
	// EmbedStrings 将一批文本转换为向量表示，返回向量与输入一一对应
	EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error)
}

// VectorCache 向量缓存接口，用于避免对相同文本的重复嵌入调用
type VectorCache interface {
	// GetEmbedding 按缓存键取向量，未命中时found为false且不报错
	GetEmbedding(ctx context.Context, key string) (vector []float64, found bool, err error)
	// SetEmbedding 写入向量，ttl为0时不过期
	SetEmbedding(ctx context.Context, key string, vector []float64, ttl time.Duration) error
}
