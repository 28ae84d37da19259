package processor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"resume-rag-go/internal/storage"
	"resume-rag-go/internal/types"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEmbedder 返回固定维度向量或预置错误
type mockEmbedder struct {
	dim    int
	err    error
	short  bool // 返回比输入少一个向量，模拟服务端截断
	lastIn []string
}

func (m *mockEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	m.lastIn = texts
	if m.err != nil {
		return nil, m.err
	}
	n := len(texts)
	if m.short && n > 0 {
		n--
	}
	out := make([][]float64, n)
	for i := range out {
		vec := make([]float64, m.dim)
		vec[0] = float64(i + 1)
		out[i] = vec
	}
	return out, nil
}

// mockVectorDB 记录写入并可注入失败
type mockVectorDB struct {
	storeErr     error
	deleteCalled bool
	storedResume string
	storedChunks []string
}

func (m *mockVectorDB) StoreResumeChunkVectors(ctx context.Context, resumeID string, record types.ResumeRecord, chunks []string, embeddings [][]float64) ([]string, error) {
	if m.storeErr != nil {
		return nil, m.storeErr
	}
	m.storedResume = resumeID
	m.storedChunks = chunks
	ids := make([]string, len(chunks))
	for i := range chunks {
		ids[i] = storage.ResumeChunkPointID(resumeID, i)
	}
	return ids, nil
}

func (m *mockVectorDB) SearchSimilarChunks(ctx context.Context, queryVector []float64, limit int) ([]storage.SearchResult, error) {
	return nil, nil
}

func (m *mockVectorDB) DeletePointsByResumeID(ctx context.Context, resumeID string) error {
	m.deleteCalled = true
	return nil
}

func sampleParsed() *types.ParsedResume {
	return &types.ParsedResume{
		Record: types.ResumeRecord{
			Name:   "张三",
			Phone:  "13812345678",
			Email:  "ZhangSan@Example.com",
			Skills: []string{"Python", "Docker"},
		},
		Confidence: types.ParseStrict,
	}
}

func TestStoreRejectsNilParsed(t *testing.T) {
	p := NewIngestProcessor(nil, &mockVectorDB{}, &mockEmbedder{dim: 4})

	_, err := p.Store(context.Background(), nil, StoreMeta{})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestStoreRejectsEmptyRecord(t *testing.T) {
	p := NewIngestProcessor(nil, &mockVectorDB{}, &mockEmbedder{dim: 4})

	parsed := &types.ParsedResume{Confidence: types.ParseFailed}
	_, err := p.Store(context.Background(), parsed, StoreMeta{})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestStoreEmbeddingFailureBeforeAnyWrite(t *testing.T) {
	embedErr := errors.New("上游限流")
	vectorDB := &mockVectorDB{}
	p := NewIngestProcessor(nil, vectorDB, &mockEmbedder{err: embedErr})

	_, err := p.Store(context.Background(), sampleParsed(), StoreMeta{})
	require.Error(t, err)
	assert.ErrorIs(t, err, embedErr)

	var ingErr *IngestError
	require.ErrorAs(t, err, &ingErr)
	assert.Equal(t, "embed", ingErr.Op)
	assert.Empty(t, vectorDB.storedResume)
}

func TestStoreEmbeddingCountMismatch(t *testing.T) {
	p := NewIngestProcessor(nil, &mockVectorDB{}, &mockEmbedder{dim: 4, short: true})

	// 构造会切成2块的长文本，mock只返回1个向量
	words := make([]string, 600)
	for i := range words {
		words[i] = "word"
	}
	parsed := sampleParsed()
	parsed.Record.Experience = []string{strings.Join(words, " ")}

	_, err := p.Store(context.Background(), parsed, StoreMeta{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorageFailure)
	assert.Contains(t, err.Error(), "嵌入数量不匹配")
}

func TestBuildResumeRowNormalizesEmail(t *testing.T) {
	parsed := sampleParsed()
	parsed.RecoveredFields = []string{"phone"}

	row, err := buildResumeRow("id-1", parsed, parsed.Record.Flatten(), StoreMeta{
		SourceObjectKey: "resume/id-1/original.pdf",
	})
	require.NoError(t, err)

	assert.Equal(t, "id-1", row.ResumeID)
	assert.Equal(t, "zhangsan@example.com", row.Email)
	assert.Equal(t, string(types.ParseStrict), row.ParseConfidence)
	assert.Equal(t, "resume/id-1/original.pdf", row.SourceObjectKey)
	assert.Len(t, row.RawTextMD5, 32)

	var skills []string
	require.NoError(t, json.Unmarshal(row.SkillsJSON, &skills))
	assert.Equal(t, []string{"Python", "Docker"}, skills)

	var recovered []string
	require.NoError(t, json.Unmarshal(row.RecoveredJSON, &recovered))
	assert.Equal(t, []string{"phone"}, recovered)
}

func TestBuildChunkRowsDeterministicPointIDs(t *testing.T) {
	rows := buildChunkRows("id-1", []string{"chunk zero", "chunk one"})
	require.Len(t, rows, 2)

	assert.Equal(t, 0, rows[0].ChunkIndex)
	assert.Equal(t, 1, rows[1].ChunkIndex)
	assert.Equal(t, storage.ResumeChunkPointID("id-1", 0), rows[0].PointID)
	assert.Equal(t, storage.ResumeChunkPointID("id-1", 1), rows[1].PointID)
	assert.NotEqual(t, rows[0].PointID, rows[1].PointID)

	// 重建得到相同的点ID
	again := buildChunkRows("id-1", []string{"chunk zero", "chunk one"})
	assert.Equal(t, rows[0].PointID, again[0].PointID)
}

func TestTextMD5Stable(t *testing.T) {
	a := textMD5("hello world")
	b := textMD5("hello world")
	c := textMD5("hello world!")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 32)
}
