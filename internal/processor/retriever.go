package processor

import (
	"context"
	"fmt"

	"resume-rag-go/internal/parser"
	"resume-rag-go/internal/storage"
	"resume-rag-go/internal/tracing"
	"resume-rag-go/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CandidateRetriever 按描述分块检索候选块
type CandidateRetriever interface {
	RetrieveForChunk(ctx context.Context, chunkText string, topK int) ([]types.RetrievedCandidate, error)
}

// VectorRetriever 基于Qdrant最近邻搜索的候选检索器
// 候选人身份字段从点payload直接取出，无需回查MySQL。
type VectorRetriever struct {
	vectorDB storage.VectorDatabase
	embedder parser.TextEmbedder
	tracer   trace.Tracer
}

var _ CandidateRetriever = (*VectorRetriever)(nil)

// NewVectorRetriever 创建向量检索器
func NewVectorRetriever(vectorDB storage.VectorDatabase, embedder parser.TextEmbedder) *VectorRetriever {
	return &VectorRetriever{
		vectorDB: vectorDB,
		embedder: embedder,
		tracer:   otel.Tracer("resume-rag-go/processor"),
	}
}

// RetrieveForChunk 对单个描述分块执行嵌入和最近邻查询
func (r *VectorRetriever) RetrieveForChunk(ctx context.Context, chunkText string, topK int) ([]types.RetrievedCandidate, error) {
	ctx, span := r.tracer.Start(ctx, "retriever.retrieve_for_chunk")
	defer span.End()
	span.SetAttributes(
		attribute.Int("retrieve.top_k", topK),
		attribute.String("retrieve.chunk_preview", tracing.SafeJobDescription(chunkText)),
	)

	vectors, err := r.embedder.EmbedStrings(ctx, []string{chunkText})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeEmbedding)
		return nil, fmt.Errorf("描述分块嵌入失败: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("描述分块嵌入返回%d个向量, 期望1个", len(vectors))
	}

	results, err := r.vectorDB.SearchSimilarChunks(ctx, vectors[0], topK)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, fmt.Errorf("最近邻搜索失败: %w", err)
	}

	candidates := make([]types.RetrievedCandidate, 0, len(results))
	for _, res := range results {
		candidates = append(candidates, candidateFromPayload(res.Payload))
	}
	span.SetAttributes(attribute.Int("retrieve.candidate_count", len(candidates)))
	return candidates, nil
}

// candidateFromPayload 从Qdrant点payload还原候选块
// payload写入时已反规范化携带候选人身份字段。
func candidateFromPayload(payload map[string]interface{}) types.RetrievedCandidate {
	return types.RetrievedCandidate{
		ResumeID:  payloadString(payload, "resume_id"),
		Name:      payloadString(payload, "candidate_name"),
		Email:     payloadString(payload, "candidate_email"),
		Education: payloadString(payload, "education"),
		Content:   payloadString(payload, "content"),
	}
}

func payloadString(payload map[string]interface{}, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}
