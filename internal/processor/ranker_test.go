package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"resume-rag-go/internal/parser"
	"resume-rag-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRetriever 按调用序号返回预置的候选列表或错误
type mockRetriever struct {
	batches []mockBatch
	calls   int
}

type mockBatch struct {
	candidates []types.RetrievedCandidate
	err        error
}

func (m *mockRetriever) RetrieveForChunk(ctx context.Context, chunkText string, topK int) ([]types.RetrievedCandidate, error) {
	if m.calls >= len(m.batches) {
		return nil, fmt.Errorf("未预置第%d次调用的返回值", m.calls)
	}
	batch := m.batches[m.calls]
	m.calls++
	return batch.candidates, batch.err
}

func testMatcher() *parser.SkillMatcher {
	return parser.NewSkillMatcher([]string{"python", "aws", "kubernetes", "docker"})
}

// 构造一个会被切成n个分块的描述，每个分块都包含指定技能词
func multiChunkDescription(n, chunkSize int, skills string) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteString(skills)
		skillWords := len(strings.Fields(skills))
		for j := skillWords; j < chunkSize; j++ {
			sb.WriteString(" filler")
		}
		sb.WriteString(" ")
	}
	return sb.String()
}

func TestRankCandidatesFullMatch(t *testing.T) {
	retriever := &mockRetriever{batches: []mockBatch{
		{candidates: []types.RetrievedCandidate{
			{ResumeID: "r1", Name: "Alice", Email: "alice@example.com",
				Content: "Experienced Python developer with AWS and Docker skills"},
		}},
	}}
	ranker := NewRanker(retriever, parser.NewSkillMatcher([]string{"python", "aws"}))

	results, reports, err := ranker.RankCandidates(context.Background(), "we need python and aws experience", 0)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.False(t, reports[0].Failed())
	assert.Equal(t, []string{"python", "aws"}, reports[0].RequiredSkills)

	require.Len(t, results, 1)
	assert.Equal(t, []string{"python", "aws"}, results[0].MatchedSkills)
	assert.Equal(t, 100.0, results[0].MatchPercent)
}

func TestRankCandidatesPartialMatch(t *testing.T) {
	retriever := &mockRetriever{batches: []mockBatch{
		{candidates: []types.RetrievedCandidate{
			{ResumeID: "r1", Email: "bob@example.com", Content: "python enthusiast"},
		}},
	}}
	ranker := NewRanker(retriever, testMatcher())

	results, _, err := ranker.RankCandidates(context.Background(), "python aws kubernetes", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"python"}, results[0].MatchedSkills)
	assert.Equal(t, 33.33, results[0].MatchPercent)
}

func TestRankCandidatesDedupKeepsBestScore(t *testing.T) {
	// 两个分块命中同一候选人，分数60和80，阈值70下只应留下80那条
	retriever := &mockRetriever{batches: []mockBatch{
		{candidates: []types.RetrievedCandidate{
			// 5个required中命中3个 -> 60.0
			{ResumeID: "r1", Email: "Carol@Example.com", Content: "python aws docker"},
		}},
		{candidates: []types.RetrievedCandidate{
			// 5个required中命中4个 -> 80.0
			{ResumeID: "r1", Email: "carol@example.com", Content: "python aws docker kubernetes"},
		}},
	}}
	matcher := parser.NewSkillMatcher([]string{"python", "aws", "kubernetes", "docker", "graphql"})
	desc := multiChunkDescription(2, 10, "python aws kubernetes docker graphql")
	ranker := NewRanker(retriever, matcher, WithQueryChunkSize(10))

	results, reports, err := ranker.RankCandidates(context.Background(), desc, 70)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	// 大小写不同的email也应归并为同一候选人
	require.Len(t, results, 1)
	assert.Equal(t, 80.0, results[0].MatchPercent)
}

func TestRankCandidatesThresholdFilter(t *testing.T) {
	retriever := &mockRetriever{batches: []mockBatch{
		{candidates: []types.RetrievedCandidate{
			{ResumeID: "r1", Email: "a@x.com", Content: "python aws kubernetes docker"},
			{ResumeID: "r2", Email: "b@x.com", Content: "python"},
			{ResumeID: "r3", Email: "c@x.com", Content: "irrelevant"},
		}},
	}}
	ranker := NewRanker(retriever, testMatcher())

	results, _, err := ranker.RankCandidates(context.Background(), "python aws kubernetes docker", 50)
	require.NoError(t, err)

	// r1=100, r2=25, r3=0，阈值50只留r1
	require.Len(t, results, 1)
	assert.Equal(t, "r1", results[0].ResumeID)
	for _, res := range results {
		assert.GreaterOrEqual(t, res.MatchPercent, 50.0)
	}
}

func TestRankCandidatesEmptyResultNotError(t *testing.T) {
	retriever := &mockRetriever{batches: []mockBatch{
		{candidates: []types.RetrievedCandidate{
			{ResumeID: "r1", Email: "a@x.com", Content: "python"},
		}},
	}}
	ranker := NewRanker(retriever, testMatcher())

	results, _, err := ranker.RankCandidates(context.Background(), "python aws kubernetes docker", 90)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRankCandidatesSortedDescending(t *testing.T) {
	retriever := &mockRetriever{batches: []mockBatch{
		{candidates: []types.RetrievedCandidate{
			{ResumeID: "r1", Email: "a@x.com", Content: "python"},
			{ResumeID: "r2", Email: "b@x.com", Content: "python aws kubernetes docker"},
			{ResumeID: "r3", Email: "c@x.com", Content: "python aws"},
		}},
	}}
	ranker := NewRanker(retriever, testMatcher())

	results, _, err := ranker.RankCandidates(context.Background(), "python aws kubernetes docker", 0)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "r2", results[0].ResumeID)
	assert.Equal(t, "r3", results[1].ResumeID)
	assert.Equal(t, "r1", results[2].ResumeID)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].MatchPercent, results[i-1].MatchPercent)
	}
}

func TestRankCandidatesStableOnTies(t *testing.T) {
	// 同分候选保持遇到顺序
	retriever := &mockRetriever{batches: []mockBatch{
		{candidates: []types.RetrievedCandidate{
			{ResumeID: "r1", Email: "a@x.com", Content: "python aws"},
			{ResumeID: "r2", Email: "b@x.com", Content: "aws python"},
		}},
	}}
	ranker := NewRanker(retriever, parser.NewSkillMatcher([]string{"python", "aws"}))

	results, _, err := ranker.RankCandidates(context.Background(), "python aws", 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "r1", results[0].ResumeID)
	assert.Equal(t, "r2", results[1].ResumeID)
}

func TestRankCandidatesAbsorbsChunkFailure(t *testing.T) {
	// 第一个分块失败，第二个分块正常，整体排名不中止
	retriever := &mockRetriever{batches: []mockBatch{
		{err: errors.New("qdrant连接被拒绝")},
		{candidates: []types.RetrievedCandidate{
			{ResumeID: "r1", Email: "a@x.com", Content: "python aws"},
		}},
	}}
	desc := multiChunkDescription(2, 10, "python aws")
	ranker := NewRanker(retriever, parser.NewSkillMatcher([]string{"python", "aws"}), WithQueryChunkSize(10))

	results, reports, err := ranker.RankCandidates(context.Background(), desc, 0)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	assert.True(t, reports[0].Failed())
	var chunkErr *ChunkRetrievalError
	require.ErrorAs(t, reports[0].Err, &chunkErr)
	assert.Equal(t, 0, chunkErr.ChunkIndex)

	assert.False(t, reports[1].Failed())
	assert.Equal(t, 1, reports[1].CandidateCount)
	require.Len(t, results, 1)
	assert.Equal(t, 100.0, results[0].MatchPercent)
}

// slowThenFastRetriever 首次调用阻塞到ctx超时，之后正常返回
type slowThenFastRetriever struct {
	calls int
}

func (m *slowThenFastRetriever) RetrieveForChunk(ctx context.Context, _ string, _ int) ([]types.RetrievedCandidate, error) {
	m.calls++
	if m.calls == 1 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return []types.RetrievedCandidate{
		{ResumeID: "r1", Email: "a@x.com", Content: "python aws"},
	}, nil
}

func TestRankCandidatesChunkTimeoutAbsorbed(t *testing.T) {
	// 第一个分块检索超时，第二个正常，超时只削减该分块的候选覆盖
	desc := multiChunkDescription(2, 10, "python aws")
	ranker := NewRanker(&slowThenFastRetriever{}, parser.NewSkillMatcher([]string{"python", "aws"}),
		WithQueryChunkSize(10), WithChunkTimeout(20*time.Millisecond))

	results, reports, err := ranker.RankCandidates(context.Background(), desc, 0)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	var chunkErr *ChunkRetrievalError
	require.ErrorAs(t, reports[0].Err, &chunkErr)
	assert.Equal(t, "retrieve_timeout", chunkErr.Op)
	assert.ErrorIs(t, reports[0].Err, context.DeadlineExceeded)

	assert.False(t, reports[1].Failed())
	require.Len(t, results, 1)
	assert.Equal(t, 100.0, results[0].MatchPercent)
}

func TestRankCandidatesAllChunksFailed(t *testing.T) {
	retriever := &mockRetriever{batches: []mockBatch{
		{err: errors.New("qdrant连接被拒绝")},
	}}
	ranker := NewRanker(retriever, testMatcher())

	results, reports, err := ranker.RankCandidates(context.Background(), "python aws", 0)
	require.ErrorIs(t, err, ErrAllChunksFailed)
	assert.Empty(t, results)
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Failed())
}

func TestRankCandidatesEmptyDescription(t *testing.T) {
	ranker := NewRanker(&mockRetriever{}, testMatcher())

	_, _, err := ranker.RankCandidates(context.Background(), "   \n\t  ", 0)
	assert.ErrorIs(t, err, ErrEmptyDescription)
}

func TestRankCandidatesEmptyRequiredSkillsScoreZero(t *testing.T) {
	// 描述分块不含词表技能时required为空，所有候选得0分
	retriever := &mockRetriever{batches: []mockBatch{
		{candidates: []types.RetrievedCandidate{
			{ResumeID: "r1", Email: "a@x.com", Content: "python aws docker"},
		}},
	}}
	ranker := NewRanker(retriever, testMatcher())

	results, reports, err := ranker.RankCandidates(context.Background(), "seeking a motivated team player", 0)
	require.NoError(t, err)
	assert.Empty(t, reports[0].RequiredSkills)
	require.Len(t, results, 1)
	assert.Equal(t, 0.0, results[0].MatchPercent)
	assert.Empty(t, results[0].MatchedSkills)
}

func TestDedupeFallsBackToResumeID(t *testing.T) {
	// email为空的候选各自独立，不被合并
	input := []types.ScoredCandidate{
		{ResumeID: "r1", MatchPercent: 40},
		{ResumeID: "r2", MatchPercent: 60},
		{ResumeID: "r1", MatchPercent: 85},
	}
	out := dedupeByEmail(input)
	require.Len(t, out, 2)
	assert.Equal(t, 85.0, out[0].MatchPercent)
	assert.Equal(t, "r1", out[0].ResumeID)
	assert.Equal(t, "r2", out[1].ResumeID)
}
