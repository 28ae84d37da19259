package parser_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-rag-go/internal/config"
	"resume-rag-go/internal/parser"
)

func newTestEmbedder(t *testing.T, serverURL string) *parser.AliyunEmbedder {
	t.Helper()
	embedder, err := parser.NewAliyunEmbedder("test-key", config.EmbeddingConfig{
		Model:      "text-embedding-v3",
		Dimensions: 4,
		BaseURL:    serverURL,
	})
	require.NoError(t, err)
	return embedder
}

func TestAliyunEmbedderEmbedStrings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req parser.AliyunOpenAIEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-v3", req.Model)

		// 故意乱序返回，验证按Index重排
		resp := parser.AliyunOpenAIEmbeddingResponse{
			Object: "list",
			Data: []parser.AliyunOpenAIDataEntry{
				{Object: "embedding", Embedding: []float64{0.5, 0.6, 0.7, 0.8}, Index: 1},
				{Object: "embedding", Embedding: []float64{0.1, 0.2, 0.3, 0.4}, Index: 0},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	embedder := newTestEmbedder(t, server.URL)
	vectors, err := embedder.EmbedStrings(context.Background(), []string{"第一段", "第二段"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4}, vectors[0])
	assert.Equal(t, []float64{0.5, 0.6, 0.7, 0.8}, vectors[1])
}

func TestAliyunEmbedderEmptyInput(t *testing.T) {
	embedder := newTestEmbedder(t, "http://127.0.0.1:1") // 不应发起请求
	vectors, err := embedder.EmbedStrings(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, vectors)
	assert.Empty(t, vectors)
}

func TestAliyunEmbedderServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"rate limited","type":"throttle","code":"429"}`))
	}))
	defer server.Close()

	embedder := newTestEmbedder(t, server.URL)
	_, err := embedder.EmbedStrings(context.Background(), []string{"文本"})
	require.Error(t, err)
	assert.ErrorIs(t, err, parser.ErrEmbeddingUnavailable)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestAliyunEmbedderCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := parser.AliyunOpenAIEmbeddingResponse{
			Object: "list",
			Data: []parser.AliyunOpenAIDataEntry{
				{Object: "embedding", Embedding: []float64{0.1}, Index: 0},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	embedder := newTestEmbedder(t, server.URL)
	_, err := embedder.EmbedStrings(context.Background(), []string{"一", "二"})
	require.Error(t, err)
	assert.ErrorIs(t, err, parser.ErrEmbeddingUnavailable)
}

func TestNewAliyunEmbedderRequiresAPIKey(t *testing.T) {
	_, err := parser.NewAliyunEmbedder("", config.EmbeddingConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API密钥不能为空")
}
