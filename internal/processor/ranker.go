package processor

import (
	"context"
	"errors"
	"sort"
	"time"

	"resume-rag-go/internal/logger"
	"resume-rag-go/internal/parser"
	"resume-rag-go/internal/tracing"
	"resume-rag-go/internal/types"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTopKPerChunk 每个描述分块默认检索的候选数
const DefaultTopKPerChunk = 5

// DefaultChunkTimeout 单个描述分块的检索超时
const DefaultChunkTimeout = 30 * time.Second

// Ranker 岗位描述与候选人的检索打分聚合器
// 对描述逐块执行检索和关键词打分，跨分块合并去重，按分数过滤排序。
// 单个分块失败只削减该分块的候选覆盖，不中止整体排名。
type Ranker struct {
	retriever    CandidateRetriever
	matcher      *parser.SkillMatcher
	chunker      *parser.WordChunker
	topK         int
	chunkTimeout time.Duration
	logger       zerolog.Logger
	tracer       trace.Tracer
}

// RankerOption Ranker的配置选项
type RankerOption func(*Ranker)

// WithQueryChunkSize 覆盖描述分块大小（词数）
func WithQueryChunkSize(size int) RankerOption {
	return func(r *Ranker) {
		r.chunker = parser.NewWordChunker(size)
	}
}

// WithTopKPerChunk 覆盖每个分块的检索候选数
func WithTopKPerChunk(topK int) RankerOption {
	return func(r *Ranker) {
		if topK > 0 {
			r.topK = topK
		}
	}
}

// WithChunkTimeout 覆盖单个分块的检索超时
func WithChunkTimeout(d time.Duration) RankerOption {
	return func(r *Ranker) {
		if d > 0 {
			r.chunkTimeout = d
		}
	}
}

// NewRanker 创建排名器
func NewRanker(retriever CandidateRetriever, matcher *parser.SkillMatcher, opts ...RankerOption) *Ranker {
	r := &Ranker{
		retriever:    retriever,
		matcher:      matcher,
		chunker:      parser.NewWordChunker(parser.DefaultQueryChunkSize),
		topK:         DefaultTopKPerChunk,
		chunkTimeout: DefaultChunkTimeout,
		logger:       logger.Logger.With().Str("component", "ranker").Logger(),
		tracer:       otel.Tracer("resume-rag-go/processor"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RankCandidates 对岗位描述执行完整的检索打分排名
// threshold为[0,100]的分数下限，结果只保留matchPercent >= threshold的条目。
// 返回的ChunkReport按分块序号给出每个分块的候选贡献和失败原因；
// 所有分块都失败时返回ErrAllChunksFailed。
func (r *Ranker) RankCandidates(ctx context.Context, jobDescription string, threshold float64) ([]types.ScoredCandidate, []types.ChunkReport, error) {
	ctx, span := r.tracer.Start(ctx, "ranker.rank_candidates")
	defer span.End()
	span.SetAttributes(
		attribute.Float64("rank.threshold", threshold),
		attribute.Int("rank.top_k", r.topK),
		attribute.String("rank.description_preview", tracing.SafeJobDescription(jobDescription)),
	)

	normalized := parser.NormalizeWhitespace(jobDescription)
	if normalized == "" {
		return nil, nil, ErrEmptyDescription
	}

	chunks := r.chunker.Chunk(normalized)
	span.SetAttributes(attribute.Int("rank.chunk_count", len(chunks)))

	var accumulated []types.ScoredCandidate
	reports := make([]types.ChunkReport, 0, len(chunks))
	failedChunks := 0

	for i, chunk := range chunks {
		report := types.ChunkReport{ChunkIndex: i}
		report.RequiredSkills = r.matcher.ExtractSkills(chunk)

		scored, err := r.scoreChunk(ctx, i, chunk, report.RequiredSkills)
		if err != nil {
			report.Err = err
			failedChunks++
			r.logger.Warn().Err(err).Int("chunk_index", i).Msg("描述分块检索失败，跳过该分块")
		} else {
			report.CandidateCount = len(scored)
			accumulated = append(accumulated, scored...)
		}
		reports = append(reports, report)
	}

	if len(chunks) > 0 && failedChunks == len(chunks) {
		tracing.RecordError(span, ErrAllChunksFailed, tracing.ErrorTypeVectorDB)
		return nil, reports, ErrAllChunksFailed
	}

	results := dedupeByEmail(accumulated)
	results = filterByThreshold(results, threshold)
	sortByScoreDesc(results)

	span.SetAttributes(
		attribute.Int("rank.result_count", len(results)),
		attribute.Int("rank.failed_chunks", failedChunks),
	)
	r.logger.Info().
		Int("chunks", len(chunks)).
		Int("failed_chunks", failedChunks).
		Int("results", len(results)).
		Float64("threshold", threshold).
		Msg("排名完成")

	return results, reports, nil
}

// scoreChunk 对单个描述分块执行检索和打分
// 该分块的required技能集对检索到的所有候选复用。
func (r *Ranker) scoreChunk(ctx context.Context, chunkIndex int, chunkText string, required []string) ([]types.ScoredCandidate, error) {
	chunkCtx, cancel := context.WithTimeout(ctx, r.chunkTimeout)
	defer cancel()

	candidates, err := r.retriever.RetrieveForChunk(chunkCtx, chunkText, r.topK)
	if err != nil {
		op := "retrieve"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(chunkCtx.Err(), context.DeadlineExceeded) {
			op = "retrieve_timeout"
		}
		if errors.Is(err, parser.ErrEmbeddingUnavailable) {
			op = "embed"
		}
		return nil, newChunkError(chunkIndex, op, err, "")
	}

	scored := make([]types.ScoredCandidate, 0, len(candidates))
	for _, cand := range candidates {
		matched, percent := r.matcher.MatchAgainst(cand.Content, required)
		scored = append(scored, types.ScoredCandidate{
			ResumeID:      cand.ResumeID,
			Name:          cand.Name,
			Email:         cand.Email,
			Education:     cand.Education,
			MatchedSkills: matched,
			MatchPercent:  percent,
		})
	}
	return scored, nil
}

// dedupeByEmail 按候选人身份去重，保留最高分
// 身份键是规范化email；email为空时退化为resume_id，避免所有无邮箱
// 候选被错误合并。相同分数时先出现的条目胜出，且保留其位置。
func dedupeByEmail(candidates []types.ScoredCandidate) []types.ScoredCandidate {
	results := make([]types.ScoredCandidate, 0, len(candidates))
	seen := make(map[string]int, len(candidates))

	for _, cand := range candidates {
		key := types.NormalizeEmail(cand.Email)
		if key == "" {
			key = "resume:" + cand.ResumeID
		}
		if idx, ok := seen[key]; ok {
			if cand.MatchPercent > results[idx].MatchPercent {
				results[idx] = cand
			}
			continue
		}
		seen[key] = len(results)
		results = append(results, cand)
	}
	return results
}

// filterByThreshold 丢弃低于阈值的条目
func filterByThreshold(candidates []types.ScoredCandidate, threshold float64) []types.ScoredCandidate {
	filtered := make([]types.ScoredCandidate, 0, len(candidates))
	for _, cand := range candidates {
		if cand.MatchPercent >= threshold {
			filtered = append(filtered, cand)
		}
	}
	return filtered
}

// sortByScoreDesc 按分数降序稳定排序，同分保持累积顺序
func sortByScoreDesc(candidates []types.ScoredCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].MatchPercent > candidates[j].MatchPercent
	})
}
